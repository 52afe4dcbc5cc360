package database

import (
	"context"
	"fmt"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.CharacterRepository = (*pgCharacterRepository)(nil)

type pgCharacterRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgCharacterRepository creates the read-only character lookup. Lookups
// never join an engine transaction, so the querier is fixed at construction.
func NewPgCharacterRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.CharacterRepository {
	return &pgCharacterRepository{
		db:     db,
		logger: logger.Named("PgCharacterRepo"),
	}
}

const getCharactersByIDsQuery = `
SELECT id, name, traits, backstory FROM characters WHERE id = ANY($1::uuid[])`

// GetSummaries resolves character ids to their summaries. Unknown ids are
// omitted from the result rather than failing the lookup; the caller decides
// whether a missing character is an error.
func (r *pgCharacterRepository) GetSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CharacterSummary, error) {
	result := make(map[uuid.UUID]models.CharacterSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	logFields := []zap.Field{zap.Int("requested", len(ids))}

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	var summaries []models.CharacterSummary
	err := pgxscan.Select(ctx, r.db, &summaries, getCharactersByIDsQuery, pq.Array(idStrings))
	if err != nil {
		r.logger.Error("Failed to load character summaries", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to load character summaries: %w", err)
	}

	for _, summary := range summaries {
		result[summary.ID] = summary
	}
	if len(result) < len(ids) {
		r.logger.Warn("Some character ids were not found",
			append(logFields, zap.Int("found", len(result)))...)
	}
	return result, nil
}
