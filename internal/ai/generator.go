package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/82deutschmark/Disavowed/internal/config"
	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"
	"github.com/82deutschmark/Disavowed/internal/prompts"
	"github.com/82deutschmark/Disavowed/internal/schema"

	"go.uber.org/zap"
)

// Generator produces sanitized mission payloads from the transport client.
// One primary attempt, one retry with abbreviated context, then the
// documented fallback payload. A generation outage therefore never surfaces
// as an error to the mission engine.
type Generator struct {
	client TextGenerator
	params GenerationParams
	logger *zap.Logger
}

var _ interfaces.NarrativeGenerator = (*Generator)(nil)

// NewGenerator builds a Generator with sampling defaults from cfg.
func NewGenerator(client TextGenerator, cfg *config.Config, logger *zap.Logger) *Generator {
	temperature := cfg.AITemperature
	maxTokens := cfg.AIMaxTokens
	return &Generator{
		client: client,
		params: GenerationParams{
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		},
		logger: logger.Named("narrative_generator"),
	}
}

// GenerateBootstrap produces the opening payload for a new mission.
func (g *Generator) GenerateBootstrap(ctx context.Context, genCtx models.BootstrapContext) (*models.BootstrapPayload, *models.GenerationMeta, error) {
	instructions, err := prompts.InstructionsFor(schema.ContractMissionBootstrap)
	if err != nil {
		return nil, nil, err
	}
	fullInput, err := prompts.FormatInputForBootstrap(genCtx, false)
	if err != nil {
		return nil, nil, err
	}
	abbreviatedInput, err := prompts.FormatInputForBootstrap(genCtx, true)
	if err != nil {
		return nil, nil, err
	}

	clean, meta := g.generateWithRetry(ctx, genCtx.PlayerID.String(), schema.ContractMissionBootstrap, instructions, fullInput, abbreviatedInput)

	payload, err := models.DecodeBootstrapPayload(clean)
	if err != nil {
		return nil, nil, fmt.Errorf("decode sanitized bootstrap payload: %w", err)
	}
	return payload, meta, nil
}

// GenerateTurn produces the next narrative beat for a turn advance.
func (g *Generator) GenerateTurn(ctx context.Context, genCtx models.TurnContext) (*models.TurnPayload, *models.GenerationMeta, error) {
	instructions, fullInput, abbreviatedInput, err := g.turnPrompts(genCtx)
	if err != nil {
		return nil, nil, err
	}

	clean, meta := g.generateWithRetry(ctx, genCtx.PlayerID.String(), schema.ContractTurnAdvance, instructions, fullInput, abbreviatedInput)

	payload, err := models.DecodeTurnPayload(clean)
	if err != nil {
		return nil, nil, fmt.Errorf("decode sanitized turn payload: %w", err)
	}
	return payload, meta, nil
}

// GenerateTurnStream streams raw fragments to onFragment while accumulating
// the full text, then parses and sanitizes the accumulation exactly as the
// blocking path would. A stream that dies before yielding a parseable object
// falls back to the blocking retry and, failing that, the fallback payload.
func (g *Generator) GenerateTurnStream(ctx context.Context, genCtx models.TurnContext, onFragment interfaces.FragmentHandler) (*models.TurnPayload, *models.GenerationMeta, error) {
	instructions, fullInput, abbreviatedInput, err := g.turnPrompts(genCtx)
	if err != nil {
		return nil, nil, err
	}

	correlationID := genCtx.PlayerID.String()
	logFields := []zap.Field{
		zap.String("contract", string(schema.ContractTurnAdvance)),
		zap.String("playerID", correlationID),
		zap.String("missionID", genCtx.MissionID.String()),
	}

	var accumulated strings.Builder
	_, streamErr := g.client.GenerateTextStream(ctx, correlationID, instructions, fullInput, g.params,
		func(fragment string) error {
			accumulated.WriteString(fragment)
			if onFragment != nil {
				return onFragment(fragment)
			}
			return nil
		})

	var clean map[string]interface{}
	var meta *models.GenerationMeta
	if streamErr == nil {
		sanitized, warnings, sanitizeErr := schema.Sanitize([]byte(accumulated.String()), schema.ContractTurnAdvance)
		if sanitizeErr == nil {
			clean = sanitized
			meta = &models.GenerationMeta{Attempts: 1, Warnings: warnings}
		} else {
			streamErr = sanitizeErr
		}
	}

	if clean == nil {
		g.logger.Warn("streamed generation unusable, retrying with abbreviated context",
			append(logFields, zap.Error(streamErr))...)
		retryClean, retryWarnings, retryErr := g.attempt(ctx, correlationID, schema.ContractTurnAdvance, instructions, abbreviatedInput)
		if retryErr == nil {
			clean = retryClean
			meta = &models.GenerationMeta{Attempts: 2, Warnings: retryWarnings}
		} else {
			unavailable := fmt.Errorf("%w: %v", models.ErrGenerationUnavailable, retryErr)
			g.logger.Error("substituting fallback payload", append(logFields, zap.Error(unavailable))...)
			clean = schema.FallbackPayload(schema.ContractTurnAdvance)
			meta = &models.GenerationMeta{Fallback: true, Attempts: 2}
		}
	}

	payload, err := models.DecodeTurnPayload(clean)
	if err != nil {
		return nil, nil, fmt.Errorf("decode sanitized turn payload: %w", err)
	}
	return payload, meta, nil
}

func (g *Generator) turnPrompts(genCtx models.TurnContext) (instructions, fullInput, abbreviatedInput string, err error) {
	instructions, err = prompts.InstructionsFor(schema.ContractTurnAdvance)
	if err != nil {
		return "", "", "", err
	}
	fullInput, err = prompts.FormatInputForTurn(genCtx, false)
	if err != nil {
		return "", "", "", err
	}
	abbreviatedInput, err = prompts.FormatInputForTurn(genCtx, true)
	if err != nil {
		return "", "", "", err
	}
	return instructions, fullInput, abbreviatedInput, nil
}

// generateWithRetry runs the primary attempt, the abbreviated retry, and the
// fallback substitution. It never fails: the worst case is the fallback
// payload, which is clean by construction.
func (g *Generator) generateWithRetry(ctx context.Context, correlationID string, name schema.ContractName, instructions, fullInput, abbreviatedInput string) (map[string]interface{}, *models.GenerationMeta) {
	logFields := []zap.Field{
		zap.String("contract", string(name)),
		zap.String("playerID", correlationID),
	}

	clean, warnings, err := g.attempt(ctx, correlationID, name, instructions, fullInput)
	if err == nil {
		g.logWarnings(name, warnings)
		return clean, &models.GenerationMeta{Attempts: 1, Warnings: warnings}
	}

	g.logger.Warn("generation attempt failed, retrying with abbreviated context",
		append(logFields, zap.Error(err))...)

	clean, warnings, err = g.attempt(ctx, correlationID, name, instructions, abbreviatedInput)
	if err == nil {
		g.logWarnings(name, warnings)
		return clean, &models.GenerationMeta{Attempts: 2, Warnings: warnings}
	}

	unavailable := fmt.Errorf("%w: %v", models.ErrGenerationUnavailable, err)
	g.logger.Error("substituting fallback payload", append(logFields, zap.Error(unavailable))...)
	return schema.FallbackPayload(name), &models.GenerationMeta{Fallback: true, Attempts: 2}
}

// attempt is one request-and-parse cycle. A transport failure and a
// non-parseable body are the same thing to the retry logic.
func (g *Generator) attempt(ctx context.Context, correlationID string, name schema.ContractName, instructions, input string) (map[string]interface{}, []string, error) {
	raw, _, err := g.client.GenerateText(ctx, correlationID, instructions, input, g.params)
	if err != nil {
		return nil, nil, err
	}
	clean, warnings, err := schema.Sanitize([]byte(raw), name)
	if err != nil {
		return nil, nil, fmt.Errorf("response not a JSON object: %w", err)
	}
	return clean, warnings, nil
}

// logWarnings surfaces sanitizer coercions to operators. Players never see
// them.
func (g *Generator) logWarnings(name schema.ContractName, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	g.logger.Warn("generation payload required sanitization",
		zap.String("contract", string(name)),
		zap.Strings("warnings", warnings))
}
