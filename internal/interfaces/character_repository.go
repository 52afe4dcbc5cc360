package interfaces

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
)

// CharacterRepository is the read-only boundary to the character roster. The
// core looks up id → name/trait summaries for generation context and never
// writes through this interface.
//
//go:generate mockery --name CharacterRepository --output ../mocks --outpkg mocks --case=underscore
type CharacterRepository interface {
	// GetSummaries resolves character ids to their summaries. Unknown ids are
	// omitted from the result rather than failing the lookup.
	GetSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CharacterSummary, error)
}
