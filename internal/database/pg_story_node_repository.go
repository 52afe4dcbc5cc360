package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.StoryNodeRepository = (*pgStoryNodeRepository)(nil)

type pgStoryNodeRepository struct {
	logger *zap.Logger
}

// NewPgStoryNodeRepository creates the PostgreSQL-backed story graph
// repository. The graph is append-only: no update or delete methods exist.
func NewPgStoryNodeRepository(logger *zap.Logger) interfaces.StoryNodeRepository {
	return &pgStoryNodeRepository{
		logger: logger.Named("PgStoryNodeRepo"),
	}
}

const createStoryNodeQuery = `
INSERT INTO story_nodes (id, mission_id, parent_node_id, narrative_text, tags, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const createStoryChoiceQuery = `
INSERT INTO story_choices (id, node_id, text, character_used, tier, cost, position)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const getStoryNodeByIDQuery = `
SELECT id, mission_id, parent_node_id, narrative_text, tags, created_at
FROM story_nodes WHERE id = $1`

const listStoryNodesByMissionQuery = `
SELECT id, mission_id, parent_node_id, narrative_text, tags, created_at
FROM story_nodes WHERE mission_id = $1 ORDER BY created_at`

const listChoicesByNodeQuery = `
SELECT id, node_id, text, character_used, tier, cost, position
FROM story_choices WHERE node_id = $1 ORDER BY position`

const listChoicesByNodesQuery = `
SELECT id, node_id, text, character_used, tier, cost, position
FROM story_choices WHERE node_id = ANY($1::uuid[]) ORDER BY node_id, position`

// Create inserts a node together with its choices. For non-root nodes the
// parent row must already exist.
func (r *pgStoryNodeRepository) Create(ctx context.Context, querier interfaces.DBTX, node *models.StoryNode) error {
	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now().UTC()
	}
	if node.Tags == nil {
		node.Tags = []string{}
	}
	logFields := []zap.Field{
		zap.String("nodeID", node.ID.String()),
		zap.String("missionID", node.MissionID.String()),
		zap.Int("choices", len(node.Choices)),
	}

	_, err := querier.Exec(ctx, createStoryNodeQuery,
		node.ID,
		node.MissionID,
		node.ParentNodeID,
		node.NarrativeText,
		node.Tags,
		node.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create story node", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to create story node: %w", err)
	}

	for i := range node.Choices {
		choice := &node.Choices[i]
		if choice.ID == uuid.Nil {
			choice.ID = uuid.New()
		}
		choice.NodeID = node.ID
		_, err := querier.Exec(ctx, createStoryChoiceQuery,
			choice.ID,
			choice.NodeID,
			choice.Text,
			choice.CharacterUsed,
			choice.Tier,
			choice.Cost,
			choice.Position,
		)
		if err != nil {
			r.logger.Error("Failed to create story choice",
				append(logFields, zap.Error(err), zap.String("choiceID", choice.ID.String()))...)
			return fmt.Errorf("failed to create story choice: %w", err)
		}
	}

	r.logger.Info("Story node created", logFields...)
	return nil
}

// GetByID retrieves a node with its choices loaded in position order.
func (r *pgStoryNodeRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.StoryNode, error) {
	logFields := []zap.Field{zap.String("nodeID", id.String())}

	var node models.StoryNode
	err := pgxscan.Get(ctx, querier, &node, getStoryNodeByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story node not found", logFields...)
			return nil, models.ErrNodeNotFound
		}
		r.logger.Error("Failed to get story node", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to get story node %s: %w", id, err)
	}

	var choices []models.StoryChoice
	if err := pgxscan.Select(ctx, querier, &choices, listChoicesByNodeQuery, id); err != nil {
		r.logger.Error("Failed to load story choices", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to load choices for node %s: %w", id, err)
	}
	node.Choices = choices
	return &node, nil
}

// ListByMission returns every node of a mission in creation order, choices
// included.
func (r *pgStoryNodeRepository) ListByMission(ctx context.Context, querier interfaces.DBTX, missionID uuid.UUID) ([]*models.StoryNode, error) {
	logFields := []zap.Field{zap.String("missionID", missionID.String())}

	var nodes []*models.StoryNode
	err := pgxscan.Select(ctx, querier, &nodes, listStoryNodesByMissionQuery, missionID)
	if err != nil {
		r.logger.Error("Failed to list story nodes", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to list nodes for mission %s: %w", missionID, err)
	}
	if len(nodes) == 0 {
		return nodes, nil
	}

	nodeIDs := make([]string, len(nodes))
	byID := make(map[uuid.UUID]*models.StoryNode, len(nodes))
	for i, node := range nodes {
		nodeIDs[i] = node.ID.String()
		byID[node.ID] = node
	}

	var choices []models.StoryChoice
	if err := pgxscan.Select(ctx, querier, &choices, listChoicesByNodesQuery, pq.Array(nodeIDs)); err != nil {
		r.logger.Error("Failed to load story choices (batch)", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to load choices for mission %s: %w", missionID, err)
	}
	for _, choice := range choices {
		if node, ok := byID[choice.NodeID]; ok {
			node.Choices = append(node.Choices, choice)
		}
	}

	r.logger.Debug("Story nodes listed", append(logFields, zap.Int("count", len(nodes)))...)
	return nodes, nil
}
