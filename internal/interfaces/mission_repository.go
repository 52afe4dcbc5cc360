package interfaces

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
)

// MissionRepository persists missions and their lifecycle state.
//
//go:generate mockery --name MissionRepository --output ../mocks --outpkg mocks --case=underscore
type MissionRepository interface {
	// Create inserts a new mission row.
	Create(ctx context.Context, querier DBTX, mission *models.Mission) error

	// GetByID retrieves a mission by its id.
	// Returns models.ErrMissionNotFound if it does not exist.
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Mission, error)

	// UpdateCursor moves the mission's current-node pointer and, when the
	// content declared an ending, its lifecycle state, in one statement.
	// Returns models.ErrMissionNotFound when no row was touched.
	UpdateCursor(ctx context.Context, querier DBTX, id uuid.UUID, currentNodeID uuid.UUID, status models.MissionStatus) error

	// UpdateStatus changes only the lifecycle state.
	// Returns models.ErrMissionNotFound when no row was touched.
	UpdateStatus(ctx context.Context, querier DBTX, id uuid.UUID, status models.MissionStatus) error

	// ListByPlayer returns the player's missions, newest first.
	ListByPlayer(ctx context.Context, querier DBTX, playerID uuid.UUID, limit int) ([]*models.Mission, error)
}
