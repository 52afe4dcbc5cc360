package interfaces

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
)

// StoryNodeRepository persists the append-only story graph. Nodes are never
// updated or deleted; corrections happen by appending new nodes.
//
//go:generate mockery --name StoryNodeRepository --output ../mocks --outpkg mocks --case=underscore
type StoryNodeRepository interface {
	// Create inserts a node together with its choices. For non-root nodes the
	// parent must already exist; the insert fails otherwise.
	Create(ctx context.Context, querier DBTX, node *models.StoryNode) error

	// GetByID retrieves a node with its choices loaded in position order.
	// Returns models.ErrNodeNotFound if it does not exist.
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.StoryNode, error)

	// ListByMission returns every node of a mission in creation order, choices
	// included. Used by reads and by graph-shape assertions in tests.
	ListByMission(ctx context.Context, querier DBTX, missionID uuid.UUID) ([]*models.StoryNode, error)
}
