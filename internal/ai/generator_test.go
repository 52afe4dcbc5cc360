package ai_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/82deutschmark/Disavowed/internal/ai"
	"github.com/82deutschmark/Disavowed/internal/config"
	"github.com/82deutschmark/Disavowed/internal/mocks"
	"github.com/82deutschmark/Disavowed/internal/models"
	"github.com/82deutschmark/Disavowed/internal/schema"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGenerator(client *mocks.TextGenerator) *ai.Generator {
	cfg := &config.Config{AITemperature: 0.8, AIMaxTokens: 2000}
	return ai.NewGenerator(client, cfg, zap.NewNop())
}

func bootstrapContext() models.BootstrapContext {
	return models.BootstrapContext{
		PlayerID: uuid.New(),
		Characters: []models.CharacterSummary{
			{ID: uuid.New(), Name: "Director Hale", Role: models.RoleMissionGiver, Backstory: "Runs the black operations desk."},
			{ID: uuid.New(), Name: "Anton Kessler", Role: models.RoleVillain},
			{ID: uuid.New(), Name: "Mara Voss", Role: models.RolePartner},
		},
	}
}

func turnContext() models.TurnContext {
	return models.TurnContext{
		MissionID:        uuid.New(),
		PlayerID:         uuid.New(),
		Title:            "Operation Glass Harbor",
		Objective:        "Recover the encrypted ledger",
		Setting:          "Rotterdam docklands",
		NarrativeStyle:   "Modern Espionage Thriller",
		Mood:             "Tense",
		CurrentNarrative: "You slip past the first patrol.",
		ChosenText:       "Pick the lock",
	}
}

func marshalJSON(t *testing.T, payload map[string]interface{}) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(raw)
}

func validBootstrapJSON(t *testing.T) string {
	return marshalJSON(t, map[string]interface{}{
		"mission_title":       "Operation Glass Harbor",
		"mission_description": "Infiltrate the consortium and recover the ledger.",
		"objective":           "Recover the encrypted ledger",
		"setting":             "Rotterdam docklands at night",
		"narrative_style":     "Modern Espionage Thriller",
		"mood":                "Tense",
		"opening_narrative":   "Rain hammers the container stacks.",
		"choices": []interface{}{
			map[string]interface{}{"text": "Bribe the foreman", "character_used": "Mara Voss", "risk_level": "low"},
			map[string]interface{}{"text": "Scout the cranes", "character_used": "Mara Voss", "risk_level": "medium"},
			map[string]interface{}{"text": "Storm the office", "character_used": "Anton Kessler", "risk_level": "high"},
		},
	})
}

func validTurnJSON(t *testing.T) string {
	return marshalJSON(t, map[string]interface{}{
		"narrative_text": "The lock gives way and the office door swings open.",
		"mission_status": "ongoing",
		"choices": []interface{}{
			map[string]interface{}{"text": "Search the desk", "character_used": "Mara Voss", "risk_level": "low"},
			map[string]interface{}{"text": "Crack the safe", "character_used": "Mara Voss", "risk_level": "high"},
		},
	})
}

func TestGenerateBootstrap(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)
		genCtx := bootstrapContext()

		client.On("GenerateText", mock.Anything, genCtx.PlayerID.String(),
			mock.MatchedBy(func(instructions string) bool {
				return strings.Contains(instructions, "professional game narrative designer")
			}),
			mock.MatchedBy(func(input string) bool {
				return strings.Contains(input, "Director Hale") && strings.Contains(input, "Backstory:")
			}),
			mock.Anything,
		).Return(validBootstrapJSON(t), ai.UsageInfo{TotalTokens: 900}, nil).Once()

		payload, meta, err := generator.GenerateBootstrap(context.Background(), genCtx)
		require.NoError(t, err)
		require.NotNil(t, payload)
		assert.Equal(t, "Operation Glass Harbor", payload.MissionTitle)
		assert.Len(t, payload.Choices, 3)
		assert.Equal(t, 1, meta.Attempts)
		assert.False(t, meta.Fallback)
		assert.Empty(t, meta.Warnings)

		client.AssertExpectations(t)
	})

	t.Run("transport failure retries with abbreviated context", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)
		genCtx := bootstrapContext()

		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything,
			mock.MatchedBy(func(input string) bool { return strings.Contains(input, "Backstory:") }),
			mock.Anything,
		).Return("", ai.UsageInfo{}, ai.ErrTextGenerationFailed).Once()

		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything,
			mock.MatchedBy(func(input string) bool { return !strings.Contains(input, "Backstory:") }),
			mock.Anything,
		).Return(validBootstrapJSON(t), ai.UsageInfo{}, nil).Once()

		payload, meta, err := generator.GenerateBootstrap(context.Background(), genCtx)
		require.NoError(t, err)
		assert.Equal(t, "Operation Glass Harbor", payload.MissionTitle)
		assert.Equal(t, 2, meta.Attempts)
		assert.False(t, meta.Fallback)

		client.AssertExpectations(t)
	})

	t.Run("both attempts failing yields the fallback payload", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)

		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", ai.UsageInfo{}, ai.ErrTextGenerationFailed).Twice()

		payload, meta, err := generator.GenerateBootstrap(context.Background(), bootstrapContext())
		require.NoError(t, err, "generation outage must not surface as an error")
		assert.Equal(t, schema.DefaultMissionTitle, payload.MissionTitle)
		assert.Equal(t, schema.DefaultOpeningNarrative, payload.OpeningNarrative)
		assert.Len(t, payload.Choices, 3)
		assert.True(t, meta.Fallback)
		assert.Equal(t, 2, meta.Attempts)

		client.AssertExpectations(t)
	})

	t.Run("non-JSON body counts as a failed attempt", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)

		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("I am sorry, I cannot help with that.", ai.UsageInfo{}, nil).Once()
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(validBootstrapJSON(t), ai.UsageInfo{}, nil).Once()

		payload, meta, err := generator.GenerateBootstrap(context.Background(), bootstrapContext())
		require.NoError(t, err)
		assert.Equal(t, "Operation Glass Harbor", payload.MissionTitle)
		assert.Equal(t, 2, meta.Attempts)
		assert.False(t, meta.Fallback)

		client.AssertExpectations(t)
	})

	t.Run("sanitizer coercions land in the meta warnings", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)

		messy := marshalJSON(t, map[string]interface{}{
			"mission_title": strings.Repeat("An Extremely Overlong Mission Title ", 10),
			"choices": []interface{}{
				map[string]interface{}{"text": "Act", "character_used": "Mara Voss", "risk_level": "medium"},
			},
		})
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(messy, ai.UsageInfo{}, nil).Once()

		payload, meta, err := generator.GenerateBootstrap(context.Background(), bootstrapContext())
		require.NoError(t, err)
		assert.Equal(t, 1, meta.Attempts)
		assert.NotEmpty(t, meta.Warnings)
		assert.NotEmpty(t, payload.Objective, "missing required fields are defaulted, never empty")

		client.AssertExpectations(t)
	})

	t.Run("empty character list is a caller error, no request sent", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)

		_, _, err := generator.GenerateBootstrap(context.Background(), models.BootstrapContext{PlayerID: uuid.New()})
		assert.Error(t, err)
		client.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGenerateTurn(t *testing.T) {
	t.Run("successful turn carries the declared mission status", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)
		genCtx := turnContext()

		ending := marshalJSON(t, map[string]interface{}{
			"narrative_text": "The ledger is yours. Extraction complete.",
			"mission_status": "mission_complete",
			"choices": []interface{}{
				map[string]interface{}{"text": "Walk away", "character_used": "Mara Voss", "risk_level": "low"},
			},
		})
		client.On("GenerateText", mock.Anything, genCtx.PlayerID.String(), mock.Anything,
			mock.MatchedBy(func(input string) bool {
				return strings.Contains(input, "Pick the lock") && strings.Contains(input, "Operation Glass Harbor")
			}),
			mock.Anything,
		).Return(ending, ai.UsageInfo{}, nil).Once()

		payload, meta, err := generator.GenerateTurn(context.Background(), genCtx)
		require.NoError(t, err)
		assert.Equal(t, models.TurnStatusMissionComplete, payload.MissionStatus)
		assert.Equal(t, 1, meta.Attempts)

		client.AssertExpectations(t)
	})

	t.Run("retry input trims a long narrative history", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)
		genCtx := turnContext()
		genCtx.CurrentNarrative = strings.Repeat("The chase continues through the flooded terminal while alarms echo overhead. ", 80)

		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything,
			mock.MatchedBy(func(input string) bool { return !strings.Contains(input, "[earlier events omitted]") }),
			mock.Anything,
		).Return("", ai.UsageInfo{}, ai.ErrTextGenerationFailed).Once()

		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything,
			mock.MatchedBy(func(input string) bool { return strings.Contains(input, "[earlier events omitted]") }),
			mock.Anything,
		).Return(validTurnJSON(t), ai.UsageInfo{}, nil).Once()

		payload, meta, err := generator.GenerateTurn(context.Background(), genCtx)
		require.NoError(t, err)
		assert.Equal(t, "The lock gives way and the office door swings open.", payload.NarrativeText)
		assert.Equal(t, 2, meta.Attempts)

		client.AssertExpectations(t)
	})

	t.Run("double failure falls back with the generic narrative", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)

		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", ai.UsageInfo{}, ai.ErrTextGenerationFailed).Twice()

		payload, meta, err := generator.GenerateTurn(context.Background(), turnContext())
		require.NoError(t, err)
		assert.Equal(t, schema.DefaultNarrativeText, payload.NarrativeText)
		assert.Equal(t, models.TurnStatusOngoing, payload.MissionStatus)
		assert.Len(t, payload.Choices, 3)
		assert.True(t, meta.Fallback)

		client.AssertExpectations(t)
	})
}

func TestGenerateTurnStream(t *testing.T) {
	t.Run("fragments are forwarded in order and the accumulation is parsed", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)
		genCtx := turnContext()

		full := validTurnJSON(t)
		half := len(full) / 2

		client.On("GenerateTextStream", mock.Anything, genCtx.PlayerID.String(), mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				handler := args.Get(5).(func(string) error)
				require.NoError(t, handler(full[:half]))
				require.NoError(t, handler(full[half:]))
			}).
			Return(ai.UsageInfo{}, nil).Once()

		var received []string
		payload, meta, err := generator.GenerateTurnStream(context.Background(), genCtx, func(fragment string) error {
			received = append(received, fragment)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{full[:half], full[half:]}, received)
		assert.Equal(t, "The lock gives way and the office door swings open.", payload.NarrativeText)
		assert.Equal(t, 1, meta.Attempts)
		assert.False(t, meta.Fallback)

		client.AssertExpectations(t)
	})

	t.Run("dead stream falls back to a blocking retry", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)
		genCtx := turnContext()

		client.On("GenerateTextStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(ai.UsageInfo{}, ai.ErrTextGenerationFailed).Once()
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(validTurnJSON(t), ai.UsageInfo{}, nil).Once()

		payload, meta, err := generator.GenerateTurnStream(context.Background(), genCtx, nil)
		require.NoError(t, err)
		assert.Equal(t, "The lock gives way and the office door swings open.", payload.NarrativeText)
		assert.Equal(t, 2, meta.Attempts)
		assert.False(t, meta.Fallback)

		client.AssertExpectations(t)
	})

	t.Run("garbage accumulation plus failed retry yields the fallback", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)

		client.On("GenerateTextStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				handler := args.Get(5).(func(string) error)
				require.NoError(t, handler("partial garbage that never beco"))
			}).
			Return(ai.UsageInfo{}, nil).Once()
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", ai.UsageInfo{}, ai.ErrTextGenerationFailed).Once()

		payload, meta, err := generator.GenerateTurnStream(context.Background(), turnContext(), nil)
		require.NoError(t, err)
		assert.Equal(t, schema.DefaultNarrativeText, payload.NarrativeText)
		assert.True(t, meta.Fallback)
		assert.Equal(t, 2, meta.Attempts)

		client.AssertExpectations(t)
	})

	t.Run("consumer errors do not abort the turn", func(t *testing.T) {
		client := new(mocks.TextGenerator)
		generator := newTestGenerator(client)
		genCtx := turnContext()
		full := validTurnJSON(t)

		client.On("GenerateTextStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				handler := args.Get(5).(func(string) error)
				// The transport keeps accumulating even when the consumer
				// refuses fragments.
				_ = handler(full)
			}).
			Return(ai.UsageInfo{}, nil).Once()

		payload, _, err := generator.GenerateTurnStream(context.Background(), genCtx, func(string) error {
			return context.Canceled
		})
		require.NoError(t, err)
		assert.Equal(t, "The lock gives way and the office door swings open.", payload.NarrativeText)

		client.AssertExpectations(t)
	})
}
