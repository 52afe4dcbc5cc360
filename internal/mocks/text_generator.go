package mocks

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/ai"

	"github.com/stretchr/testify/mock"
)

// Mock ai.TextGenerator
type TextGenerator struct {
	mock.Mock
}

func (m *TextGenerator) GenerateText(ctx context.Context, playerID string, instructions string, input string, params ai.GenerationParams) (string, ai.UsageInfo, error) {
	args := m.Called(ctx, playerID, instructions, input, params)
	usage, _ := args.Get(1).(ai.UsageInfo)
	return args.String(0), usage, args.Error(2)
}
func (m *TextGenerator) GenerateTextStream(ctx context.Context, playerID string, instructions string, input string, params ai.GenerationParams, fragmentHandler func(string) error) (ai.UsageInfo, error) {
	args := m.Called(ctx, playerID, instructions, input, params, fragmentHandler)
	usage, _ := args.Get(0).(ai.UsageInfo)
	return usage, args.Error(1)
}

var _ ai.TextGenerator = (*TextGenerator)(nil)
