package database

import (
	"context"
	"fmt"

	"github.com/82deutschmark/Disavowed/internal/interfaces"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.TxManager = (*pgxTxManager)(nil)

type pgxTxManager struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewTxManager returns a TxManager running callbacks on pool transactions.
func NewTxManager(db *pgxpool.Pool, logger *zap.Logger) interfaces.TxManager {
	return &pgxTxManager{
		db:     db,
		logger: logger.Named("TxManager"),
	}
}

// WithTransaction runs fn inside one transaction, committing on nil and
// rolling back on error or panic. The callback's error is returned unwrapped
// so sentinel errors survive errors.Is checks at the caller.
func (m *pgxTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx interfaces.DBTX) error) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				m.logger.Error("Failed to rollback transaction after panic",
					zap.Error(rollbackErr),
					zap.Any("panic", p))
			}
			panic(p) // re-throw panic after rollback
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			m.logger.Error("Failed to rollback transaction",
				zap.Error(rollbackErr),
				zap.NamedError("original_error", err))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
