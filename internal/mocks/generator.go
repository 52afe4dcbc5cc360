package mocks

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/stretchr/testify/mock"
)

// Mock NarrativeGenerator
type NarrativeGenerator struct {
	mock.Mock
}

func (m *NarrativeGenerator) GenerateBootstrap(ctx context.Context, genCtx models.BootstrapContext) (*models.BootstrapPayload, *models.GenerationMeta, error) {
	args := m.Called(ctx, genCtx)
	payload, _ := args.Get(0).(*models.BootstrapPayload)
	meta, _ := args.Get(1).(*models.GenerationMeta)
	return payload, meta, args.Error(2)
}
func (m *NarrativeGenerator) GenerateTurn(ctx context.Context, genCtx models.TurnContext) (*models.TurnPayload, *models.GenerationMeta, error) {
	args := m.Called(ctx, genCtx)
	payload, _ := args.Get(0).(*models.TurnPayload)
	meta, _ := args.Get(1).(*models.GenerationMeta)
	return payload, meta, args.Error(2)
}
func (m *NarrativeGenerator) GenerateTurnStream(ctx context.Context, genCtx models.TurnContext, onFragment interfaces.FragmentHandler) (*models.TurnPayload, *models.GenerationMeta, error) {
	args := m.Called(ctx, genCtx, onFragment)
	payload, _ := args.Get(0).(*models.TurnPayload)
	meta, _ := args.Get(1).(*models.GenerationMeta)
	return payload, meta, args.Error(2)
}

var _ interfaces.NarrativeGenerator = (*NarrativeGenerator)(nil)
