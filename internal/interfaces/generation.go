package interfaces

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/models"
)

// FragmentHandler receives incremental narrative text fragments in arrival
// order during a streaming generation. Returning an error stops delivery to
// this handler; the underlying generation still runs to completion.
type FragmentHandler func(fragment string) error

// NarrativeGenerator produces sanitized narrative payloads. Implementations
// never surface generation failure: after the primary attempt and one
// abbreviated-context retry both fail, they return the documented fallback
// payload with GenerationMeta.Fallback set. Retries happen entirely inside the
// generator, before any ledger or graph mutation.
//
//go:generate mockery --name NarrativeGenerator --output ../mocks --outpkg mocks --case=underscore
type NarrativeGenerator interface {
	// GenerateBootstrap produces the opening payload for a new mission.
	GenerateBootstrap(ctx context.Context, genCtx models.BootstrapContext) (*models.BootstrapPayload, *models.GenerationMeta, error)

	// GenerateTurn produces the next narrative beat for a turn advance.
	GenerateTurn(ctx context.Context, genCtx models.TurnContext) (*models.TurnPayload, *models.GenerationMeta, error)

	// GenerateTurnStream behaves like GenerateTurn while forwarding raw text
	// fragments to onFragment as they arrive. The final payload is parsed from
	// the accumulated text and sanitized exactly as in the blocking path.
	GenerateTurnStream(ctx context.Context, genCtx models.TurnContext, onFragment FragmentHandler) (*models.TurnPayload, *models.GenerationMeta, error)
}
