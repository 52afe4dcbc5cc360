package mocks

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock MissionService
type MissionService struct {
	mock.Mock
}

func (m *MissionService) BootstrapMission(ctx context.Context, playerID uuid.UUID, selections []models.CharacterSelection, overrides models.StyleOverrides) (*models.Mission, error) {
	args := m.Called(ctx, playerID, selections, overrides)
	mission, _ := args.Get(0).(*models.Mission)
	return mission, args.Error(1)
}
func (m *MissionService) AdvanceTurn(ctx context.Context, missionID uuid.UUID, choiceID uuid.UUID, customText string) (*interfaces.TurnResult, error) {
	args := m.Called(ctx, missionID, choiceID, customText)
	result, _ := args.Get(0).(*interfaces.TurnResult)
	return result, args.Error(1)
}
func (m *MissionService) AdvanceTurnStream(ctx context.Context, missionID uuid.UUID, choiceID uuid.UUID, customText string, onFragment interfaces.FragmentHandler) (*interfaces.TurnResult, error) {
	args := m.Called(ctx, missionID, choiceID, customText, onFragment)
	result, _ := args.Get(0).(*interfaces.TurnResult)
	return result, args.Error(1)
}
func (m *MissionService) AbandonMission(ctx context.Context, missionID uuid.UUID) error {
	args := m.Called(ctx, missionID)
	return args.Error(0)
}
func (m *MissionService) GetMission(ctx context.Context, missionID uuid.UUID) (*models.Mission, *models.StoryNode, error) {
	args := m.Called(ctx, missionID)
	mission, _ := args.Get(0).(*models.Mission)
	node, _ := args.Get(1).(*models.StoryNode)
	return mission, node, args.Error(2)
}
func (m *MissionService) ListMissions(ctx context.Context, playerID uuid.UUID, limit int) ([]*models.Mission, error) {
	args := m.Called(ctx, playerID, limit)
	missions, _ := args.Get(0).([]*models.Mission)
	return missions, args.Error(1)
}
func (m *MissionService) GetNode(ctx context.Context, missionID uuid.UUID, nodeID uuid.UUID) (*models.StoryNode, error) {
	args := m.Called(ctx, missionID, nodeID)
	node, _ := args.Get(0).(*models.StoryNode)
	return node, args.Error(1)
}
func (m *MissionService) Balances(ctx context.Context, playerID uuid.UUID) (map[models.Currency]int64, error) {
	args := m.Called(ctx, playerID)
	balances, _ := args.Get(0).(map[models.Currency]int64)
	return balances, args.Error(1)
}
func (m *MissionService) History(ctx context.Context, playerID uuid.UUID, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, playerID, limit)
	transactions, _ := args.Get(0).([]*models.Transaction)
	return transactions, args.Error(1)
}

var _ interfaces.MissionService = (*MissionService)(nil)
