package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MissionEventType names a lifecycle event published for downstream consumers.
type MissionEventType string

const (
	EventMissionStarted   MissionEventType = "mission_started"
	EventMissionCompleted MissionEventType = "mission_completed"
	EventMissionFailed    MissionEventType = "mission_failed"
	EventMissionAbandoned MissionEventType = "mission_abandoned"
	EventRefundIssued     MissionEventType = "refund_issued"
)

// MissionEvent is the JSON payload sent to the mission events queue.
type MissionEvent struct {
	EventType  MissionEventType `json:"event_type"`
	MissionID  uuid.UUID        `json:"mission_id"`
	PlayerID   uuid.UUID        `json:"player_id"`
	Detail     string           `json:"detail,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// MissionEventPublisher emits lifecycle events. Publishing is fire-and-forget
// from the engine's point of view: a publish failure is logged, never allowed
// to fail the player-facing operation.
//
//go:generate mockery --name MissionEventPublisher --output ../mocks --outpkg mocks --case=underscore
type MissionEventPublisher interface {
	// PublishMissionEvent sends one event to the configured queue.
	PublishMissionEvent(ctx context.Context, event MissionEvent) error
}
