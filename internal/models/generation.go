package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// --- Generation context ---

// BootstrapContext carries everything the prompt builder needs for a
// mission-bootstrap generation. All state is explicit; nothing is read from
// ambient request scope.
type BootstrapContext struct {
	PlayerID       uuid.UUID
	Characters     []CharacterSummary
	NarrativeStyle string
	Mood           string
}

// TurnContext carries the mission and cursor state a turn-advance prompt is
// built from.
type TurnContext struct {
	MissionID        uuid.UUID
	PlayerID         uuid.UUID
	Title            string
	Objective        string
	Setting          string
	NarrativeStyle   string
	Mood             string
	PrimaryConflict  string
	CurrentNarrative string
	CharacterNames   []string
	ChosenText       string
	IsCustom         bool
}

// GenerationMeta reports how a payload was produced, for operator logging.
// Fallback payloads still count as success toward the caller.
type GenerationMeta struct {
	Fallback bool
	Attempts int
	Warnings []string
}

// --- Typed views of sanitized generation payloads ---
//
// These mirror the schema contracts field for field. They are only ever
// decoded from payloads that already passed sanitization, so every required
// field is present and length-bounded here.

// GeneratedChoice is one choice entry of a generation payload.
type GeneratedChoice struct {
	Text          string `json:"text"`
	CharacterUsed string `json:"character_used"`
	RiskLevel     string `json:"risk_level"`
}

// BootstrapPayload is the sanitized result of a mission-bootstrap generation.
type BootstrapPayload struct {
	MissionTitle       string            `json:"mission_title"`
	MissionDescription string            `json:"mission_description"`
	Objective          string            `json:"objective"`
	Setting            string            `json:"setting"`
	NarrativeStyle     string            `json:"narrative_style"`
	Mood               string            `json:"mood"`
	OpeningNarrative   string            `json:"opening_narrative"`
	PrimaryConflict    string            `json:"primary_conflict,omitempty"`
	Difficulty         string            `json:"difficulty,omitempty"`
	Deadline           string            `json:"deadline,omitempty"`
	Choices            []GeneratedChoice `json:"choices"`
}

// TurnPayload is the sanitized result of a turn-advance generation.
type TurnPayload struct {
	NarrativeText string            `json:"narrative_text"`
	MissionStatus string            `json:"mission_status,omitempty"`
	Choices       []GeneratedChoice `json:"choices"`
}

// Content-declared mission status values on a turn payload.
const (
	TurnStatusOngoing         = "ongoing"
	TurnStatusMissionComplete = "mission_complete"
	TurnStatusMissionFailed   = "mission_failed"
)

// DecodeBootstrapPayload converts a sanitized payload map into its typed view.
func DecodeBootstrapPayload(clean map[string]interface{}) (*BootstrapPayload, error) {
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	var payload BootstrapPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// DecodeTurnPayload converts a sanitized payload map into its typed view.
func DecodeTurnPayload(clean map[string]interface{}) (*TurnPayload, error) {
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	var payload TurnPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
