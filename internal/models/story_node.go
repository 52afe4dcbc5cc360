package models

import (
	"time"

	"github.com/google/uuid"
)

// ChoiceTier classifies the cost of a choice.
type ChoiceTier string

const (
	TierLow    ChoiceTier = "low"
	TierMedium ChoiceTier = "medium"
	TierHigh   ChoiceTier = "high"
	// TierCustom marks the single player-written choice slot on a node. Its
	// cost is the fixed diamond price, resolved at selection time.
	TierCustom ChoiceTier = "custom"
)

// IsValid reports whether the tier is a known classification.
func (t ChoiceTier) IsValid() bool {
	switch t {
	case TierLow, TierMedium, TierHigh, TierCustom:
		return true
	}
	return false
}

// Node tags declared by generated content. The engine only reacts to these
// two; unknown tags are stored untouched.
const (
	NodeTagMissionComplete = "mission_complete"
	NodeTagMissionFailed   = "mission_failed"
)

// StoryNode is one narrative beat in a mission's story graph. Nodes are
// append-only: a node is immutable once created, corrections happen by
// creating a new node, never by editing history.
type StoryNode struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	MissionID     uuid.UUID     `db:"mission_id" json:"missionId"`
	ParentNodeID  *uuid.UUID    `db:"parent_node_id" json:"parentNodeId,omitempty"` // nil for the root
	NarrativeText string        `db:"narrative_text" json:"narrativeText"`
	Tags          []string      `db:"tags" json:"tags,omitempty"`
	Choices       []StoryChoice `db:"-" json:"choices"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
}

// IsRoot reports whether the node is the mission's root beat.
func (n *StoryNode) IsRoot() bool {
	return n.ParentNodeID == nil
}

// HasTag reports whether the node carries the given content-declared tag.
func (n *StoryNode) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ChoiceByID returns the outgoing choice with the given id, or nil.
func (n *StoryNode) ChoiceByID(id uuid.UUID) *StoryChoice {
	for i := range n.Choices {
		if n.Choices[i].ID == id {
			return &n.Choices[i]
		}
	}
	return nil
}

// CustomChoice returns the node's single custom-tier choice, or nil.
func (n *StoryNode) CustomChoice() *StoryChoice {
	for i := range n.Choices {
		if n.Choices[i].Tier == TierCustom {
			return &n.Choices[i]
		}
	}
	return nil
}

// StoryChoice is one outgoing option on a node. At most four choices exist per
// node and exactly one of them may be tier custom.
type StoryChoice struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	NodeID        uuid.UUID  `db:"node_id" json:"nodeId"`
	Text          string     `db:"text" json:"text"`
	CharacterUsed string     `db:"character_used" json:"characterUsed"`
	Tier          ChoiceTier `db:"tier" json:"tier"`
	Cost          CostTuple  `db:"cost" json:"cost"`
	Position      int        `db:"position" json:"position"`
}

// MaxChoicesPerNode caps the outgoing choices of a node, custom slot included.
const MaxChoicesPerNode = 4
