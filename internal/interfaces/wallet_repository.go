package interfaces

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
)

// WalletRepository is the economy ledger: cached balances plus the append-only
// transaction log. It is the only component allowed to mutate either.
//
//go:generate mockery --name WalletRepository --output ../mocks --outpkg mocks --case=underscore
type WalletRepository interface {
	// EnsureWallet returns the player's wallet, seeding a new one with the
	// standard starting balances (recorded as grant transactions) on first use.
	EnsureWallet(ctx context.Context, querier DBTX, playerID uuid.UUID) (*models.Wallet, error)

	// GetWallet retrieves the cached balances.
	// Returns models.ErrNotFound if the player has no wallet yet.
	GetWallet(ctx context.Context, querier DBTX, playerID uuid.UUID) (*models.Wallet, error)

	// Debit atomically spends the whole cost tuple: every balance is checked
	// before any is decremented, one choice_spend transaction row is appended
	// per currency touched, and the cached balances are updated in the same
	// unit of work. Returns models.ErrInsufficientFunds when any single
	// currency cannot cover its amount, leaving the ledger untouched.
	Debit(ctx context.Context, querier DBTX, playerID uuid.UUID, cost models.CostTuple, detail string, nodeID *uuid.UUID) error

	// Credit appends one transaction row with the given reason and increases
	// the cached balance in the same unit of work. Amount must be positive.
	Credit(ctx context.Context, querier DBTX, playerID uuid.UUID, currency models.Currency, amount int64, reason models.TransactionReason, detail string, nodeID *uuid.UUID) error

	// Refund compensates a previously debited cost tuple: one refund
	// transaction row per currency, balances restored in the same unit of work.
	Refund(ctx context.Context, querier DBTX, playerID uuid.UUID, cost models.CostTuple, detail string, nodeID *uuid.UUID) error

	// ListTransactions returns the player's most recent transactions, newest
	// first.
	ListTransactions(ctx context.Context, querier DBTX, playerID uuid.UUID, limit int) ([]*models.Transaction, error)
}

// BalanceCache is the read-path snapshot of wallet balances. Writes go through
// the ledger only; the cache is invalidated after a write commits and
// repopulated on the next read.
//
//go:generate mockery --name BalanceCache --output ../mocks --outpkg mocks --case=underscore
type BalanceCache interface {
	// Get returns the cached balances, or models.ErrNotFound on a miss.
	Get(ctx context.Context, playerID uuid.UUID) (map[models.Currency]int64, error)

	// Set stores a snapshot with the cache's configured TTL.
	Set(ctx context.Context, playerID uuid.UUID, balances map[models.Currency]int64) error

	// Invalidate drops the snapshot after a ledger write.
	Invalidate(ctx context.Context, playerID uuid.UUID) error
}
