// Package prompts renders generation instructions and input payloads from
// mission state. Length constraints and the embedded response schema are
// derived from the schema package, so prompt text can never promise a shape
// the sanitizer would reject.
package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/82deutschmark/Disavowed/internal/models"
	"github.com/82deutschmark/Disavowed/internal/schema"
)

const systemRole = "You are a professional game narrative designer for an espionage thriller game. " +
	"You MUST return only valid JSON with no additional text or formatting. " +
	"Do not include literal line breaks inside string values - use \\n for line breaks."

// Token budget the narrative history is trimmed to when a generation attempt
// is retried with abbreviated context.
const abbreviatedNarrativeTokens = 400

// roleOrder fixes the presentation order of character roles in prompts.
var roleOrder = map[models.CharacterRole]int{
	models.RoleMissionGiver: 0,
	models.RoleVillain:      1,
	models.RolePartner:      2,
	models.RoleAlly:         3,
	models.RoleRandom:       4,
}

// roleLabels are the human-readable role names used in prompt text.
var roleLabels = map[models.CharacterRole]string{
	models.RoleMissionGiver: "Mission Giver",
	models.RoleVillain:      "Target/Villain",
	models.RolePartner:      "Partner",
	models.RoleAlly:         "Ally",
	models.RoleRandom:       "Additional Character",
}

// InstructionsFor builds the system instructions for the named contract:
// the designer role, per-field constraints and the response schema.
func InstructionsFor(name schema.ContractName) (string, error) {
	contract, err := schema.Get(name)
	if err != nil {
		return "", err
	}

	schemaJSON, err := json.MarshalIndent(schema.ResponseSchemaObject(contract), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal response schema for %s: %w", name, err)
	}

	var sb strings.Builder
	sb.WriteString(systemRole)
	sb.WriteString("\n\nCONSTRAINTS:\n")
	for _, line := range constraintLines(contract) {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRESPONSE SCHEMA (JSON):\n")
	sb.Write(schemaJSON)
	return sb.String(), nil
}

// constraintLines renders one bullet per contract field, plus the choice
// sub-fields, stating length limits and enum members.
func constraintLines(c *schema.Contract) []string {
	var lines []string
	appendField := func(prefix string, f schema.Field) {
		switch f.Kind {
		case schema.KindEnum:
			members := make([]string, len(f.Enum))
			for i, m := range f.Enum {
				members[i] = fmt.Sprintf("%q", m)
			}
			lines = append(lines, fmt.Sprintf("- %s%s: exactly one of %s", prefix, f.Name, strings.Join(members, ", ")))
		case schema.KindArray:
			lines = append(lines, fmt.Sprintf("- %s%s: at most %d entries", prefix, f.Name, c.MaxChoices))
		default:
			lines = append(lines, fmt.Sprintf("- %s%s: at most %d characters", prefix, f.Name, f.MaxLen))
		}
	}
	for _, f := range c.Fields {
		appendField("", f)
	}
	for _, cf := range c.ChoiceFields {
		appendField("choices[]. ", cf)
	}
	return lines
}

// FormatInputForBootstrap formats the character roster and style preferences
// for the mission-bootstrap prompt. Abbreviated mode drops traits and
// backstories, keeping only names and roles.
func FormatInputForBootstrap(bc models.BootstrapContext, abbreviated bool) (string, error) {
	if len(bc.Characters) == 0 {
		return "", fmt.Errorf("bootstrap input requires at least one character")
	}

	characters := make([]models.CharacterSummary, len(bc.Characters))
	copy(characters, bc.Characters)
	sort.SliceStable(characters, func(i, j int) bool {
		ri, rj := roleOrder[characters[i].Role], roleOrder[characters[j].Role]
		if ri != rj {
			return ri < rj
		}
		return characters[i].Name < characters[j].Name
	})

	var sb strings.Builder
	sb.WriteString("Characters:\n")
	for _, ch := range characters {
		label := roleLabels[ch.Role]
		if label == "" {
			label = string(ch.Role)
		}
		sb.WriteString(fmt.Sprintf("  %s: %s\n", label, ch.Name))
		if abbreviated {
			continue
		}
		if len(ch.Traits) > 0 {
			sb.WriteString(fmt.Sprintf("    Traits: %s\n", strings.Join(ch.Traits, ", ")))
		}
		if ch.Backstory != "" {
			sb.WriteString(fmt.Sprintf("    Backstory: %s\n", ch.Backstory))
		}
	}

	style := bc.NarrativeStyle
	if style == "" {
		style = models.DefaultNarrativeStyle
	}
	mood := bc.Mood
	if mood == "" {
		mood = models.DefaultMood
	}
	sb.WriteString(fmt.Sprintf("\nNarrative Style: %s\n", style))
	sb.WriteString(fmt.Sprintf("Mood: %s\n", mood))

	sb.WriteString("\nTask:\n")
	sb.WriteString("Create a mission where the mission giver briefs the player to target the villain.\n")
	sb.WriteString("Write an opening narrative in the requested style and mood that establishes the mission scenario using the character backgrounds.\n")
	sb.WriteString("Generate exactly 3 distinct choices, each featuring one of the listed characters, representing cautious, moderate and aggressive approaches with matching risk levels.\n")
	sb.WriteString("Make it action-packed espionage with stakes and tension.")

	return sb.String(), nil
}

// FormatInputForTurn formats the mission state, narrative history and chosen
// action for the turn-advance prompt. Abbreviated mode trims the narrative
// history to its most recent tokens.
func FormatInputForTurn(tc models.TurnContext, abbreviated bool) (string, error) {
	if strings.TrimSpace(tc.ChosenText) == "" {
		return "", fmt.Errorf("turn input requires the chosen action text")
	}

	var sb strings.Builder
	sb.WriteString("Mission:\n")
	sb.WriteString(fmt.Sprintf("  Title: %s\n", tc.Title))
	sb.WriteString(fmt.Sprintf("  Objective: %s\n", tc.Objective))
	sb.WriteString(fmt.Sprintf("  Setting: %s\n", tc.Setting))
	sb.WriteString(fmt.Sprintf("  Narrative Style: %s\n", tc.NarrativeStyle))
	sb.WriteString(fmt.Sprintf("  Mood: %s\n", tc.Mood))
	if tc.PrimaryConflict != "" {
		sb.WriteString(fmt.Sprintf("  Primary Conflict: %s\n", tc.PrimaryConflict))
	}

	if len(tc.CharacterNames) > 0 {
		names := make([]string, len(tc.CharacterNames))
		copy(names, tc.CharacterNames)
		sort.Strings(names)
		sb.WriteString(fmt.Sprintf("\nCharacters: %s\n", strings.Join(names, ", ")))
	}

	narrative := tc.CurrentNarrative
	if abbreviated {
		trimmed, wasTrimmed := TrimToLastTokens(narrative, abbreviatedNarrativeTokens)
		if wasTrimmed {
			narrative = "[earlier events omitted]\n" + trimmed
		}
	}
	sb.WriteString("\nNarrative So Far:\n")
	sb.WriteString(narrative)
	sb.WriteString("\n")

	if tc.IsCustom {
		sb.WriteString(fmt.Sprintf("\nPlayer's Custom Action: %s\n", tc.ChosenText))
	} else {
		sb.WriteString(fmt.Sprintf("\nPlayer's Action: %s\n", tc.ChosenText))
	}

	sb.WriteString("\nTask:\n")
	sb.WriteString("Continue this espionage story based on the player's action.\n")
	sb.WriteString("1. Show the immediate consequences of the player's action\n")
	sb.WriteString("2. Advance the story with new complications or revelations\n")
	sb.WriteString("3. Maintain context with the mission objective\n")
	sb.WriteString("4. Set up the next decision point with 3 distinct choices at different risk levels\n")
	if tc.IsCustom {
		sb.WriteString("5. Acknowledge and incorporate the player's creative action with realistic consequences, positive or negative\n")
	}
	sb.WriteString("Declare mission_status \"mission_complete\" or \"mission_failed\" only when this beat genuinely ends the mission; otherwise use \"ongoing\".")

	return sb.String(), nil
}
