package database

import (
	"context"
	"fmt"
	"time"

	"github.com/82deutschmark/Disavowed/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	connectTimeout    = 10 * time.Second
	connectMaxRetries = 5
	connectRetryDelay = 5 * time.Second
)

// NewPgxPool builds the connection pool from the service configuration and
// verifies connectivity with a ping. The database may still be starting when
// the service comes up, so the ping is retried a few times before giving up.
func NewPgxPool(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectMaxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		pool, err = pgxpool.NewWithConfig(pingCtx, poolConfig)
		if err == nil {
			err = pool.Ping(pingCtx)
		}
		cancel()
		if err == nil {
			logger.Info("Connected to PostgreSQL",
				zap.Int("max_conns", cfg.DBMaxConns),
				zap.Duration("max_idle", cfg.DBIdleTimeout))
			return pool, nil
		}
		if pool != nil {
			pool.Close()
			pool = nil
		}
		logger.Warn("Failed to connect to PostgreSQL",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectMaxRetries),
			zap.Duration("retry_delay", connectRetryDelay),
			zap.Error(err))
		if attempt < connectMaxRetries {
			select {
			case <-time.After(connectRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectMaxRetries, err)
}
