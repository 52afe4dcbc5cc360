package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.WalletRepository = (*pgWalletRepository)(nil)

type pgWalletRepository struct {
	logger *zap.Logger
}

// NewPgWalletRepository creates the PostgreSQL-backed economy ledger. Balance
// mutations and their audit rows always happen on the same querier, so a
// caller-owned transaction makes them atomic with the rest of the turn.
func NewPgWalletRepository(logger *zap.Logger) interfaces.WalletRepository {
	return &pgWalletRepository{
		logger: logger.Named("PgWalletRepo"),
	}
}

const getWalletQuery = `
SELECT player_id, balances, created_at, updated_at FROM wallets WHERE player_id = $1`

// Balance mutations read the row under FOR UPDATE so concurrent debits of the
// same wallet serialize instead of double-spending.
const getWalletForUpdateQuery = getWalletQuery + ` FOR UPDATE`

const insertWalletQuery = `
INSERT INTO wallets (player_id, balances, created_at, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (player_id) DO NOTHING`

const updateWalletBalancesQuery = `
UPDATE wallets SET balances = $2, updated_at = $3 WHERE player_id = $1`

const insertTransactionQuery = `
INSERT INTO wallet_transactions (id, player_id, currency, amount, reason, detail, story_node_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const listTransactionsQuery = `
SELECT id, player_id, currency, amount, reason, detail, story_node_id, created_at
FROM wallet_transactions WHERE player_id = $1 ORDER BY created_at DESC LIMIT $2`

// EnsureWallet returns the player's wallet, seeding a new one with the
// standard issue on first use. The seed is recorded as one grant transaction
// per currency so the balances stay derivable from the audit trail.
func (r *pgWalletRepository) EnsureWallet(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID) (*models.Wallet, error) {
	logFields := []zap.Field{zap.String("playerID", playerID.String())}

	wallet, err := r.GetWallet(ctx, querier, playerID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	seeded := &models.Wallet{
		PlayerID:  playerID,
		Balances:  make(map[models.Currency]int64, len(models.StartingBalances)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for cur, amount := range models.StartingBalances {
		seeded.Balances[cur] = amount
	}

	cmdTag, err := querier.Exec(ctx, insertWalletQuery, seeded.PlayerID, seeded.Balances, seeded.CreatedAt, seeded.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to seed wallet", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to seed wallet for player %s: %w", playerID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		// Lost a seeding race; the winner's row is authoritative.
		return r.GetWallet(ctx, querier, playerID)
	}

	for _, cur := range models.AllCurrencies {
		amount, ok := models.StartingBalances[cur]
		if !ok {
			continue
		}
		if err := r.insertTransaction(ctx, querier, playerID, cur, amount, models.ReasonGrant, "starting balance", nil, now); err != nil {
			return nil, err
		}
	}

	r.logger.Info("Wallet seeded with starting balances", logFields...)
	return seeded, nil
}

// GetWallet retrieves the cached balances.
func (r *pgWalletRepository) GetWallet(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := pgxscan.Get(ctx, querier, &wallet, getWalletQuery, playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get wallet", zap.Error(err), zap.String("playerID", playerID.String()))
		return nil, fmt.Errorf("failed to get wallet for player %s: %w", playerID, err)
	}
	if wallet.Balances == nil {
		wallet.Balances = make(map[models.Currency]int64)
	}
	return &wallet, nil
}

// Debit spends the whole cost tuple or none of it. Every balance is checked
// under the row lock before any is decremented; one choice_spend row is
// appended per currency touched.
func (r *pgWalletRepository) Debit(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, cost models.CostTuple, detail string, nodeID *uuid.UUID) error {
	if cost.IsZero() {
		return nil
	}
	logFields := []zap.Field{zap.String("playerID", playerID.String())}

	wallet, err := r.lockWallet(ctx, querier, playerID)
	if err != nil {
		return err
	}

	for _, cur := range models.AllCurrencies {
		amount := cost[cur]
		if amount <= 0 {
			continue
		}
		if wallet.Balances[cur] < amount {
			r.logger.Info("Debit rejected, insufficient funds",
				append(logFields,
					zap.String("currency", string(cur)),
					zap.Int64("required", amount),
					zap.Int64("available", wallet.Balances[cur]))...)
			return models.ErrInsufficientFunds
		}
	}

	now := time.Now().UTC()
	for _, cur := range models.AllCurrencies {
		amount := cost[cur]
		if amount <= 0 {
			continue
		}
		wallet.Balances[cur] -= amount
		if err := r.insertTransaction(ctx, querier, playerID, cur, -amount, models.ReasonChoiceSpend, detail, nodeID, now); err != nil {
			return err
		}
	}

	if err := r.writeBalances(ctx, querier, playerID, wallet.Balances, now); err != nil {
		return err
	}
	r.logger.Debug("Wallet debited", append(logFields, zap.Any("cost", cost))...)
	return nil
}

// Credit appends one transaction row and increases the cached balance.
func (r *pgWalletRepository) Credit(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, currency models.Currency, amount int64, reason models.TransactionReason, detail string, nodeID *uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	wallet, err := r.lockWallet(ctx, querier, playerID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	wallet.Balances[currency] += amount
	if err := r.insertTransaction(ctx, querier, playerID, currency, amount, reason, detail, nodeID, now); err != nil {
		return err
	}
	if err := r.writeBalances(ctx, querier, playerID, wallet.Balances, now); err != nil {
		return err
	}

	r.logger.Debug("Wallet credited",
		zap.String("playerID", playerID.String()),
		zap.String("currency", string(currency)),
		zap.Int64("amount", amount),
		zap.String("reason", string(reason)))
	return nil
}

// Refund compensates a previously debited cost tuple.
func (r *pgWalletRepository) Refund(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, cost models.CostTuple, detail string, nodeID *uuid.UUID) error {
	if cost.IsZero() {
		return nil
	}

	wallet, err := r.lockWallet(ctx, querier, playerID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, cur := range models.AllCurrencies {
		amount := cost[cur]
		if amount <= 0 {
			continue
		}
		wallet.Balances[cur] += amount
		if err := r.insertTransaction(ctx, querier, playerID, cur, amount, models.ReasonRefund, detail, nodeID, now); err != nil {
			return err
		}
	}
	if err := r.writeBalances(ctx, querier, playerID, wallet.Balances, now); err != nil {
		return err
	}

	r.logger.Info("Wallet refunded",
		zap.String("playerID", playerID.String()),
		zap.Any("cost", cost))
	return nil
}

// ListTransactions returns the player's most recent transactions, newest first.
func (r *pgWalletRepository) ListTransactions(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var transactions []*models.Transaction
	err := pgxscan.Select(ctx, querier, &transactions, listTransactionsQuery, playerID, limit)
	if err != nil {
		r.logger.Error("Failed to list transactions",
			zap.Error(err), zap.String("playerID", playerID.String()))
		return nil, fmt.Errorf("failed to list transactions for player %s: %w", playerID, err)
	}
	return transactions, nil
}

func (r *pgWalletRepository) lockWallet(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := pgxscan.Get(ctx, querier, &wallet, getWalletForUpdateQuery, playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to lock wallet", zap.Error(err), zap.String("playerID", playerID.String()))
		return nil, fmt.Errorf("failed to lock wallet for player %s: %w", playerID, err)
	}
	if wallet.Balances == nil {
		wallet.Balances = make(map[models.Currency]int64)
	}
	return &wallet, nil
}

func (r *pgWalletRepository) writeBalances(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, balances map[models.Currency]int64, now time.Time) error {
	cmdTag, err := querier.Exec(ctx, updateWalletBalancesQuery, playerID, balances, now)
	if err != nil {
		r.logger.Error("Failed to write wallet balances", zap.Error(err), zap.String("playerID", playerID.String()))
		return fmt.Errorf("failed to write balances for player %s: %w", playerID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgWalletRepository) insertTransaction(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, currency models.Currency, amount int64, reason models.TransactionReason, detail string, nodeID *uuid.UUID, now time.Time) error {
	_, err := querier.Exec(ctx, insertTransactionQuery,
		uuid.New(), playerID, currency, amount, reason, detail, nodeID, now)
	if err != nil {
		r.logger.Error("Failed to insert wallet transaction",
			zap.Error(err),
			zap.String("playerID", playerID.String()),
			zap.String("currency", string(currency)),
			zap.Int64("amount", amount))
		return fmt.Errorf("failed to insert wallet transaction: %w", err)
	}
	return nil
}
