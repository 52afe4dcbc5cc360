package interfaces

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
)

// TurnResult is the success payload of a turn advance: the appended node plus
// the mission with its cursor (and possibly lifecycle state) moved.
type TurnResult struct {
	Mission *models.Mission   `json:"mission"`
	Node    *models.StoryNode `json:"node"`
	// Fallback marks a turn whose narrative came from the documented fallback
	// payload after generation failed twice. Still a successful turn.
	Fallback bool `json:"fallback,omitempty"`
}

// MissionService defines the operations of the mission engine.
//
//go:generate mockery --name MissionService --output ../mocks --outpkg mocks --case=underscore
type MissionService interface {
	// BootstrapMission creates a mission for the player from character
	// selections and optional style overrides. Selections are validated
	// structurally before any generation call; duplicate role assignments
	// return models.ErrInvalidSelection. On success the mission is ACTIVE with
	// its cursor at the root node.
	BootstrapMission(ctx context.Context, playerID uuid.UUID, selections []models.CharacterSelection, overrides models.StyleOverrides) (*models.Mission, error)

	// AdvanceTurn plays one choice on an ACTIVE mission: resolve the choice,
	// debit its cost tuple all-or-nothing, generate the next beat, then append
	// it and move the cursor, all as one compound operation under the
	// mission's lock.
	// customText is required (non-empty) for the custom tier and ignored
	// otherwise. A debit followed by a persistence failure is compensated with
	// refund transactions before models.ErrPersistenceFailure surfaces.
	AdvanceTurn(ctx context.Context, missionID uuid.UUID, choiceID uuid.UUID, customText string) (*TurnResult, error)

	// AdvanceTurnStream behaves like AdvanceTurn while forwarding narrative
	// fragments to onFragment as they arrive. A consumer that stops taking
	// fragments does not abort the turn; it simply stops receiving.
	AdvanceTurnStream(ctx context.Context, missionID uuid.UUID, choiceID uuid.UUID, customText string, onFragment FragmentHandler) (*TurnResult, error)

	// AbandonMission moves an ACTIVE mission to ABANDONED. No refunds.
	AbandonMission(ctx context.Context, missionID uuid.UUID) error

	// GetMission returns a mission with its current node loaded.
	GetMission(ctx context.Context, missionID uuid.UUID) (*models.Mission, *models.StoryNode, error)

	// ListMissions returns the player's missions, newest first, across all
	// lifecycle states.
	ListMissions(ctx context.Context, playerID uuid.UUID, limit int) ([]*models.Mission, error)

	// GetNode returns one node of a mission's graph.
	GetNode(ctx context.Context, missionID uuid.UUID, nodeID uuid.UUID) (*models.StoryNode, error)

	// Balances returns the player's wallet balances, seeding the wallet with
	// the standard issue on first use.
	Balances(ctx context.Context, playerID uuid.UUID) (map[models.Currency]int64, error)

	// History returns the player's most recent ledger transactions.
	History(ctx context.Context, playerID uuid.UUID, limit int) ([]*models.Transaction, error)
}
