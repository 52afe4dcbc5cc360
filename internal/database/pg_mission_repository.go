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
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.MissionRepository = (*pgMissionRepository)(nil)

type pgMissionRepository struct {
	logger *zap.Logger
}

// NewPgMissionRepository creates the PostgreSQL-backed mission repository.
// Every method takes its querier explicitly so calls can join a caller-owned
// transaction.
func NewPgMissionRepository(logger *zap.Logger) interfaces.MissionRepository {
	return &pgMissionRepository{
		logger: logger.Named("PgMissionRepo"),
	}
}

const missionColumns = `id, player_id, title, description, objective, setting,
narrative_style, mood, primary_conflict, difficulty, deadline,
reward_currency, reward_amount, root_node_id, current_node_id, status,
created_at, updated_at`

const createMissionQuery = `
INSERT INTO missions (id, player_id, title, description, objective, setting,
                      narrative_style, mood, primary_conflict, difficulty, deadline,
                      reward_currency, reward_amount, root_node_id, current_node_id,
                      status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

const getMissionByIDQuery = `SELECT ` + missionColumns + ` FROM missions WHERE id = $1`

const listMissionsByPlayerQuery = `SELECT ` + missionColumns + `
FROM missions WHERE player_id = $1 ORDER BY created_at DESC LIMIT $2`

const updateMissionCursorQuery = `
UPDATE missions SET current_node_id = $2, status = $3, updated_at = $4 WHERE id = $1`

const updateMissionStatusQuery = `
UPDATE missions SET status = $2, updated_at = $3 WHERE id = $1`

// Create inserts a new mission row.
func (r *pgMissionRepository) Create(ctx context.Context, querier interfaces.DBTX, mission *models.Mission) error {
	if mission.ID == uuid.Nil {
		mission.ID = uuid.New()
	}
	now := time.Now().UTC()
	if mission.CreatedAt.IsZero() {
		mission.CreatedAt = now
	}
	mission.UpdatedAt = now

	_, err := querier.Exec(ctx, createMissionQuery,
		mission.ID,
		mission.PlayerID,
		mission.Title,
		mission.Description,
		mission.Objective,
		mission.Setting,
		mission.NarrativeStyle,
		mission.Mood,
		mission.PrimaryConflict,
		mission.Difficulty,
		mission.Deadline,
		mission.RewardCurrency,
		mission.RewardAmount,
		mission.RootNodeID,
		mission.CurrentNodeID,
		mission.Status,
		mission.CreatedAt,
		mission.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create mission",
			zap.Error(err),
			zap.String("missionID", mission.ID.String()),
			zap.String("playerID", mission.PlayerID.String()))
		return fmt.Errorf("failed to create mission: %w", err)
	}
	r.logger.Info("Mission created",
		zap.String("missionID", mission.ID.String()),
		zap.String("playerID", mission.PlayerID.String()))
	return nil
}

// GetByID retrieves a mission by its id.
func (r *pgMissionRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Mission, error) {
	logFields := []zap.Field{zap.String("missionID", id.String())}

	var mission models.Mission
	err := pgxscan.Get(ctx, querier, &mission, getMissionByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Mission not found", logFields...)
			return nil, models.ErrMissionNotFound
		}
		r.logger.Error("Failed to get mission", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to get mission %s: %w", id, err)
	}
	return &mission, nil
}

// UpdateCursor moves the current-node pointer and lifecycle state in one
// statement.
func (r *pgMissionRepository) UpdateCursor(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, currentNodeID uuid.UUID, status models.MissionStatus) error {
	logFields := []zap.Field{
		zap.String("missionID", id.String()),
		zap.String("currentNodeID", currentNodeID.String()),
		zap.String("status", string(status)),
	}

	cmdTag, err := querier.Exec(ctx, updateMissionCursorQuery, id, currentNodeID, status, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to update mission cursor", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to update mission cursor: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.Warn("Mission cursor update touched no rows", logFields...)
		return models.ErrMissionNotFound
	}
	r.logger.Debug("Mission cursor updated", logFields...)
	return nil
}

// UpdateStatus changes only the lifecycle state.
func (r *pgMissionRepository) UpdateStatus(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.MissionStatus) error {
	logFields := []zap.Field{
		zap.String("missionID", id.String()),
		zap.String("status", string(status)),
	}

	cmdTag, err := querier.Exec(ctx, updateMissionStatusQuery, id, status, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to update mission status", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to update mission status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.Warn("Mission status update touched no rows", logFields...)
		return models.ErrMissionNotFound
	}
	r.logger.Info("Mission status updated", logFields...)
	return nil
}

// ListByPlayer returns the player's missions, newest first.
func (r *pgMissionRepository) ListByPlayer(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, limit int) ([]*models.Mission, error) {
	if limit <= 0 {
		limit = 20
	}
	logFields := []zap.Field{zap.String("playerID", playerID.String()), zap.Int("limit", limit)}

	var missions []*models.Mission
	err := pgxscan.Select(ctx, querier, &missions, listMissionsByPlayerQuery, playerID, limit)
	if err != nil {
		r.logger.Error("Failed to list missions by player", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to list missions for player %s: %w", playerID, err)
	}
	r.logger.Debug("Missions listed", append(logFields, zap.Int("count", len(missions)))...)
	return missions, nil
}
