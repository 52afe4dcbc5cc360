package models

import (
	"time"

	"github.com/google/uuid"
)

// MissionStatus is the lifecycle state of a mission.
type MissionStatus string

const (
	// MissionStatusBootstrapping exists only during the bootstrap call; a
	// mission with an unusable root node is never persisted in this state.
	MissionStatusBootstrapping MissionStatus = "bootstrapping"
	// MissionStatusActive is the only state in which turn advances are accepted.
	MissionStatusActive    MissionStatus = "active"
	MissionStatusCompleted MissionStatus = "completed"
	MissionStatusFailed    MissionStatus = "failed"
	MissionStatusAbandoned MissionStatus = "abandoned"
)

// IsTerminal reports whether no further transitions are possible.
func (s MissionStatus) IsTerminal() bool {
	switch s {
	case MissionStatusCompleted, MissionStatusFailed, MissionStatusAbandoned:
		return true
	}
	return false
}

// MissionDifficulty grades a mission, as declared by generated content.
type MissionDifficulty string

const (
	DifficultyLow    MissionDifficulty = "low"
	DifficultyMedium MissionDifficulty = "medium"
	DifficultyHigh   MissionDifficulty = "high"
)

// Mission ties a player to one playthrough: a root narrative, a cursor into
// the story graph and a lifecycle state.
type Mission struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	PlayerID        uuid.UUID         `db:"player_id" json:"playerId"`
	Title           string            `db:"title" json:"title"`
	Description     string            `db:"description" json:"description"`
	Objective       string            `db:"objective" json:"objective"`
	Setting         string            `db:"setting" json:"setting"`
	NarrativeStyle  string            `db:"narrative_style" json:"narrativeStyle"`
	Mood            string            `db:"mood" json:"mood"`
	PrimaryConflict string            `db:"primary_conflict" json:"primaryConflict"`
	Difficulty      MissionDifficulty `db:"difficulty" json:"difficulty"`
	Deadline        *string           `db:"deadline" json:"deadline,omitempty"`
	RewardCurrency  Currency          `db:"reward_currency" json:"rewardCurrency"`
	RewardAmount    int64             `db:"reward_amount" json:"rewardAmount"`
	RootNodeID      uuid.UUID         `db:"root_node_id" json:"rootNodeId"`
	CurrentNodeID   uuid.UUID         `db:"current_node_id" json:"currentNodeId"`
	Status          MissionStatus     `db:"status" json:"status"`
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updatedAt"`
}

// StyleOverrides carries optional caller preferences for bootstrap context.
// Blank fields fall back to the documented defaults.
type StyleOverrides struct {
	NarrativeStyle string `json:"narrativeStyle,omitempty"`
	Mood           string `json:"mood,omitempty"`
}

// Documented defaults used when style overrides are blank.
const (
	DefaultNarrativeStyle = "Modern Espionage Thriller"
	DefaultMood           = "Action-packed and Suspenseful"
)

// Mission reward bounds: every mission is worth a small diamond grant on
// completion, allocated at creation time.
const (
	MissionRewardMin = 2
	MissionRewardMax = 5
)
