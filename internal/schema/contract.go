// Package schema is the single source of truth for the shape of generation
// payloads: every field a generation call may produce, with its type, length
// limit, enum members and default. Both prompt construction and response
// sanitization derive from the tables here; neither duplicates them.
package schema

import "fmt"

// FieldKind is the semantic type of a contract field.
type FieldKind string

const (
	KindShortText FieldKind = "short-text"
	KindLongText  FieldKind = "long-text"
	KindEnum      FieldKind = "enum"
	KindArray     FieldKind = "nested-array"
)

// Field declares one payload field.
type Field struct {
	Name     string
	Kind     FieldKind
	MaxLen   int
	Required bool
	// Default substitutes a missing required field or an unrecognized enum
	// value. Never empty for required fields: downstream persistence requires
	// non-null content.
	Default string
	// Enum lists the accepted members for KindEnum fields; Default is a member.
	Enum []string
	// Description feeds the generated response schema.
	Description string
}

// ContractName identifies one of the two generation contracts.
type ContractName string

const (
	ContractMissionBootstrap ContractName = "mission_bootstrap"
	ContractTurnAdvance      ContractName = "turn_advance"
)

// Contract is the full field table for one generation call, including the
// sub-contract applied to each element of the choices array.
type Contract struct {
	Name         ContractName
	Fields       []Field
	MaxChoices   int
	ChoiceFields []Field
}

// Documented default strings. Persisted content falls back to these, so none
// may be empty.
const (
	DefaultMissionTitle       = "Classified Operation"
	DefaultMissionDescription = "Espionage mission"
	DefaultObjective          = "Complete mission objectives"
	DefaultSetting            = "Various espionage locations"
	DefaultNarrativeStyle     = "Modern Espionage Thriller"
	DefaultMood               = "Action-packed and Suspenseful"
	DefaultOpeningNarrative   = "The mission begins with high stakes and danger lurking around every corner..."
	DefaultNarrativeText      = "Your bold action creates unexpected consequences..."
	DefaultChoiceText         = "Take action"
	DefaultCharacterUsed      = "Unknown"
	DefaultRiskLevel          = "medium"
	DefaultDifficulty         = "medium"
	DefaultMissionStatus      = "ongoing"
)

// choiceFields is the sub-contract shared by both contracts' choices arrays.
var choiceFields = []Field{
	{Name: "text", Kind: KindShortText, MaxLen: 255, Required: true, Default: DefaultChoiceText,
		Description: "Short action the player can take next."},
	{Name: "character_used", Kind: KindShortText, MaxLen: 200, Required: true, Default: DefaultCharacterUsed,
		Description: "Name of the character featured in this choice."},
	{Name: "risk_level", Kind: KindEnum, Required: true, Default: DefaultRiskLevel,
		Enum:        []string{"low", "medium", "high"},
		Description: "Risk classification of the action."},
}

var missionBootstrapContract = Contract{
	Name:       ContractMissionBootstrap,
	MaxChoices: 4,
	Fields: []Field{
		{Name: "mission_title", Kind: KindShortText, MaxLen: 200, Required: true, Default: DefaultMissionTitle,
			Description: "Codename-style title of the mission."},
		{Name: "mission_description", Kind: KindLongText, MaxLen: 1000, Required: true, Default: DefaultMissionDescription,
			Description: "Briefing paragraph describing the operation."},
		{Name: "objective", Kind: KindShortText, MaxLen: 255, Required: true, Default: DefaultObjective,
			Description: "Concrete goal the player must accomplish."},
		{Name: "setting", Kind: KindShortText, MaxLen: 500, Required: true, Default: DefaultSetting,
			Description: "Where the mission takes place."},
		{Name: "narrative_style", Kind: KindShortText, MaxLen: 100, Required: true, Default: DefaultNarrativeStyle,
			Description: "Narrative style the story is told in."},
		{Name: "mood", Kind: KindShortText, MaxLen: 100, Required: true, Default: DefaultMood,
			Description: "Emotional tone of the story."},
		{Name: "opening_narrative", Kind: KindLongText, MaxLen: 1500, Required: true, Default: DefaultOpeningNarrative,
			Description: "Opening narrative beat the player reads first."},
		{Name: "primary_conflict", Kind: KindShortText, MaxLen: 255, Required: false,
			Description: "Central conflict driving the mission."},
		{Name: "difficulty", Kind: KindEnum, Required: false, Default: DefaultDifficulty,
			Enum:        []string{"low", "medium", "high"},
			Description: "Overall mission difficulty."},
		{Name: "deadline", Kind: KindShortText, MaxLen: 200, Required: false,
			Description: "In-fiction time pressure, if any."},
		{Name: "choices", Kind: KindArray, Required: true,
			Description: "Opening set of player choices."},
	},
	ChoiceFields: choiceFields,
}

var turnAdvanceContract = Contract{
	Name:       ContractTurnAdvance,
	MaxChoices: 4,
	Fields: []Field{
		{Name: "narrative_text", Kind: KindLongText, MaxLen: 1500, Required: true, Default: DefaultNarrativeText,
			Description: "Narrative consequence of the chosen action."},
		{Name: "mission_status", Kind: KindEnum, Required: false, Default: DefaultMissionStatus,
			Enum:        []string{"ongoing", "mission_complete", "mission_failed"},
			Description: "Declare mission_complete or mission_failed only when this beat ends the mission."},
		{Name: "choices", Kind: KindArray, Required: true,
			Description: "Next set of player choices."},
	},
	ChoiceFields: choiceFields,
}

var contracts = map[ContractName]*Contract{
	ContractMissionBootstrap: &missionBootstrapContract,
	ContractTurnAdvance:      &turnAdvanceContract,
}

// Get returns the named contract.
func Get(name ContractName) (*Contract, error) {
	c, ok := contracts[name]
	if !ok {
		return nil, fmt.Errorf("unknown contract %q", name)
	}
	return c, nil
}

// MustGet returns the named contract or panics. For static call sites only.
func MustGet(name ContractName) *Contract {
	c, err := Get(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Field returns the field spec with the given name, or nil.
func (c *Contract) Field(name string) *Field {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// defaultChoiceSlots builds the standard choice slots substituted when a
// payload arrives without a usable choices array, and used by the fallback
// payload. The engine adds the custom slot at node creation, which brings a
// node built from these to the full four.
func defaultChoiceSlots() []interface{} {
	return []interface{}{
		map[string]interface{}{
			"text":           "Proceed with caution",
			"character_used": DefaultCharacterUsed,
			"risk_level":     "low",
		},
		map[string]interface{}{
			"text":           DefaultChoiceText,
			"character_used": DefaultCharacterUsed,
			"risk_level":     "medium",
		},
		map[string]interface{}{
			"text":           "Go all in",
			"character_used": DefaultCharacterUsed,
			"risk_level":     "high",
		},
	}
}

// FallbackPayload is the minimal hard-coded payload returned when generation
// fails twice: every documented default plus the standard choice slots. It is
// already clean with respect to the contract.
func FallbackPayload(name ContractName) map[string]interface{} {
	switch name {
	case ContractMissionBootstrap:
		return map[string]interface{}{
			"mission_title":       DefaultMissionTitle,
			"mission_description": DefaultMissionDescription,
			"objective":           DefaultObjective,
			"setting":             DefaultSetting,
			"narrative_style":     DefaultNarrativeStyle,
			"mood":                DefaultMood,
			"opening_narrative":   DefaultOpeningNarrative,
			"choices":             defaultChoiceSlots(),
		}
	default:
		return map[string]interface{}{
			"narrative_text": DefaultNarrativeText,
			"mission_status": DefaultMissionStatus,
			"choices":        defaultChoiceSlots(),
		}
	}
}

// ResponseSchemaObject renders the contract as a JSON schema map suitable for
// the generation service's response_format.json_schema, and for embedding in
// prompt instructions. Derived from the field table so the two never diverge.
func ResponseSchemaObject(c *Contract) map[string]interface{} {
	properties := make(map[string]interface{}, len(c.Fields))
	required := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		properties[f.Name] = fieldSchema(f, c)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]interface{}{
		"type":                 "object",
		"description":          fmt.Sprintf("Schema for %s generation.", c.Name),
		"additionalProperties": false,
		"properties":           properties,
		"required":             required,
	}
}

func fieldSchema(f Field, c *Contract) map[string]interface{} {
	switch f.Kind {
	case KindEnum:
		return map[string]interface{}{
			"type":        "string",
			"enum":        f.Enum,
			"description": f.Description,
		}
	case KindArray:
		choiceProps := make(map[string]interface{}, len(c.ChoiceFields))
		choiceRequired := make([]string, 0, len(c.ChoiceFields))
		for _, cf := range c.ChoiceFields {
			choiceProps[cf.Name] = fieldSchema(cf, c)
			if cf.Required {
				choiceRequired = append(choiceRequired, cf.Name)
			}
		}
		return map[string]interface{}{
			"type":        "array",
			"maxItems":    c.MaxChoices,
			"description": f.Description,
			"items": map[string]interface{}{
				"type":                 "object",
				"properties":           choiceProps,
				"required":             choiceRequired,
				"additionalProperties": false,
			},
		}
	default:
		return map[string]interface{}{
			"type":        "string",
			"maxLength":   f.MaxLen,
			"description": f.Description,
		}
	}
}
