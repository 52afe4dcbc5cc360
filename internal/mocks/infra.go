package mocks

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock BalanceCache
type BalanceCache struct {
	mock.Mock
}

func (m *BalanceCache) Get(ctx context.Context, playerID uuid.UUID) (map[models.Currency]int64, error) {
	args := m.Called(ctx, playerID)
	balances, _ := args.Get(0).(map[models.Currency]int64)
	return balances, args.Error(1)
}
func (m *BalanceCache) Set(ctx context.Context, playerID uuid.UUID, balances map[models.Currency]int64) error {
	args := m.Called(ctx, playerID, balances)
	return args.Error(0)
}
func (m *BalanceCache) Invalidate(ctx context.Context, playerID uuid.UUID) error {
	args := m.Called(ctx, playerID)
	return args.Error(0)
}

// Mock MissionEventPublisher
type MissionEventPublisher struct {
	mock.Mock
}

func (m *MissionEventPublisher) PublishMissionEvent(ctx context.Context, event interfaces.MissionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// InlineTxManager executes callbacks immediately with a nil querier, standing
// in for a real transaction around mocked repositories. The callback's error
// comes back raw, matching the real manager.
type InlineTxManager struct{}

func (InlineTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx interfaces.DBTX) error) error {
	return fn(ctx, nil)
}

var _ interfaces.BalanceCache = (*BalanceCache)(nil)
var _ interfaces.MissionEventPublisher = (*MissionEventPublisher)(nil)
var _ interfaces.TxManager = (*InlineTxManager)(nil)
