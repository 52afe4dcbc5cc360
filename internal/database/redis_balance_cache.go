package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.BalanceCache = (*redisBalanceCache)(nil)

// DefaultBalanceTTL bounds how stale a cached balance snapshot can get if an
// invalidation is ever lost.
const DefaultBalanceTTL = 5 * time.Minute

type redisBalanceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisBalanceCache creates the Redis-backed balance snapshot cache.
// A ttl of zero falls back to DefaultBalanceTTL.
func NewRedisBalanceCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) interfaces.BalanceCache {
	if ttl <= 0 {
		ttl = DefaultBalanceTTL
	}
	return &redisBalanceCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisBalanceCache"),
	}
}

func balanceKey(playerID uuid.UUID) string {
	return fmt.Sprintf("wallet_balances:%s", playerID)
}

// Get returns the cached balances, or models.ErrNotFound on a miss.
func (c *redisBalanceCache) Get(ctx context.Context, playerID uuid.UUID) (map[models.Currency]int64, error) {
	key := balanceKey(playerID)
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, models.ErrNotFound
		}
		c.logger.Error("Failed to read balance snapshot", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("failed to read balance snapshot: %w", err)
	}

	var balances map[models.Currency]int64
	if err := json.Unmarshal([]byte(raw), &balances); err != nil {
		// A corrupt snapshot behaves like a miss; the caller repopulates it.
		c.logger.Warn("Dropping unparseable balance snapshot", zap.Error(err), zap.String("key", key))
		c.client.Del(ctx, key)
		return nil, models.ErrNotFound
	}
	return balances, nil
}

// Set stores a snapshot with the cache's configured TTL.
func (c *redisBalanceCache) Set(ctx context.Context, playerID uuid.UUID, balances map[models.Currency]int64) error {
	raw, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("failed to marshal balance snapshot: %w", err)
	}
	key := balanceKey(playerID)
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Error("Failed to store balance snapshot", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("failed to store balance snapshot: %w", err)
	}
	c.logger.Debug("Balance snapshot stored", zap.String("key", key), zap.Duration("ttl", c.ttl))
	return nil
}

// Invalidate drops the snapshot after a ledger write.
func (c *redisBalanceCache) Invalidate(ctx context.Context, playerID uuid.UUID) error {
	key := balanceKey(playerID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("Failed to invalidate balance snapshot", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("failed to invalidate balance snapshot: %w", err)
	}
	return nil
}
