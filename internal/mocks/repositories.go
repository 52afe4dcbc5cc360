package mocks

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock MissionRepository
type MissionRepository struct {
	mock.Mock
}

func (m *MissionRepository) Create(ctx context.Context, querier interfaces.DBTX, mission *models.Mission) error {
	args := m.Called(ctx, querier, mission)
	return args.Error(0)
}
func (m *MissionRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Mission, error) {
	args := m.Called(ctx, querier, id)
	mission, _ := args.Get(0).(*models.Mission)
	return mission, args.Error(1)
}
func (m *MissionRepository) UpdateCursor(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, currentNodeID uuid.UUID, status models.MissionStatus) error {
	args := m.Called(ctx, querier, id, currentNodeID, status)
	return args.Error(0)
}
func (m *MissionRepository) UpdateStatus(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.MissionStatus) error {
	args := m.Called(ctx, querier, id, status)
	return args.Error(0)
}
func (m *MissionRepository) ListByPlayer(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, limit int) ([]*models.Mission, error) {
	args := m.Called(ctx, querier, playerID, limit)
	missions, _ := args.Get(0).([]*models.Mission)
	return missions, args.Error(1)
}

// Mock StoryNodeRepository
type StoryNodeRepository struct {
	mock.Mock
}

func (m *StoryNodeRepository) Create(ctx context.Context, querier interfaces.DBTX, node *models.StoryNode) error {
	args := m.Called(ctx, querier, node)
	return args.Error(0)
}
func (m *StoryNodeRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.StoryNode, error) {
	args := m.Called(ctx, querier, id)
	node, _ := args.Get(0).(*models.StoryNode)
	return node, args.Error(1)
}
func (m *StoryNodeRepository) ListByMission(ctx context.Context, querier interfaces.DBTX, missionID uuid.UUID) ([]*models.StoryNode, error) {
	args := m.Called(ctx, querier, missionID)
	nodes, _ := args.Get(0).([]*models.StoryNode)
	return nodes, args.Error(1)
}

// Mock WalletRepository
type WalletRepository struct {
	mock.Mock
}

func (m *WalletRepository) EnsureWallet(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID) (*models.Wallet, error) {
	args := m.Called(ctx, querier, playerID)
	wallet, _ := args.Get(0).(*models.Wallet)
	return wallet, args.Error(1)
}
func (m *WalletRepository) GetWallet(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID) (*models.Wallet, error) {
	args := m.Called(ctx, querier, playerID)
	wallet, _ := args.Get(0).(*models.Wallet)
	return wallet, args.Error(1)
}
func (m *WalletRepository) Debit(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, cost models.CostTuple, detail string, nodeID *uuid.UUID) error {
	args := m.Called(ctx, querier, playerID, cost, detail, nodeID)
	return args.Error(0)
}
func (m *WalletRepository) Credit(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, currency models.Currency, amount int64, reason models.TransactionReason, detail string, nodeID *uuid.UUID) error {
	args := m.Called(ctx, querier, playerID, currency, amount, reason, detail, nodeID)
	return args.Error(0)
}
func (m *WalletRepository) Refund(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, cost models.CostTuple, detail string, nodeID *uuid.UUID) error {
	args := m.Called(ctx, querier, playerID, cost, detail, nodeID)
	return args.Error(0)
}
func (m *WalletRepository) ListTransactions(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, querier, playerID, limit)
	transactions, _ := args.Get(0).([]*models.Transaction)
	return transactions, args.Error(1)
}

// Mock CharacterRepository
type CharacterRepository struct {
	mock.Mock
}

func (m *CharacterRepository) GetSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CharacterSummary, error) {
	args := m.Called(ctx, ids)
	summaries, _ := args.Get(0).(map[uuid.UUID]models.CharacterSummary)
	return summaries, args.Error(1)
}

var _ interfaces.MissionRepository = (*MissionRepository)(nil)
var _ interfaces.StoryNodeRepository = (*StoryNodeRepository)(nil)
var _ interfaces.WalletRepository = (*WalletRepository)(nil)
var _ interfaces.CharacterRepository = (*CharacterRepository)(nil)
