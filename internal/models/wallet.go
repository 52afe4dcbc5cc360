package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is a player's ledger account: cached per-currency balances derived
// from the transaction log. Balances never go negative; only the ledger
// mutates them, and always in the same unit of work as the transaction append.
type Wallet struct {
	PlayerID  uuid.UUID          `db:"player_id" json:"playerId"`
	Balances  map[Currency]int64 `db:"balances" json:"balances"`
	CreatedAt time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `db:"updated_at" json:"updatedAt"`
}

// CanAfford reports whether every currency in the cost tuple is covered.
func (w *Wallet) CanAfford(cost CostTuple) bool {
	for cur, amount := range cost {
		if w.Balances[cur] < amount {
			return false
		}
	}
	return true
}

// TransactionReason tags why a balance changed.
type TransactionReason string

const (
	ReasonChoiceSpend TransactionReason = "choice_spend"
	ReasonGrant       TransactionReason = "grant"
	ReasonRefund      TransactionReason = "refund"
)

// Transaction is one append-only audit row. Amount is signed: negative for
// spends, positive for grants and refunds.
type Transaction struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	PlayerID    uuid.UUID         `db:"player_id" json:"playerId"`
	Currency    Currency          `db:"currency" json:"currency"`
	Amount      int64             `db:"amount" json:"amount"`
	Reason      TransactionReason `db:"reason" json:"reason"`
	Detail      string            `db:"detail" json:"detail,omitempty"`
	StoryNodeID *uuid.UUID        `db:"story_node_id" json:"storyNodeId,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"createdAt"`
}
