package schema_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/82deutschmark/Disavowed/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBootstrapPayload() map[string]interface{} {
	return map[string]interface{}{
		"mission_title":       "Operation Glass Harbor",
		"mission_description": "Infiltrate the shipping consortium and recover the ledger.",
		"objective":           "Recover the encrypted ledger",
		"setting":             "Rotterdam docklands at night",
		"narrative_style":     "Modern Espionage Thriller",
		"mood":                "Tense and paranoid",
		"opening_narrative":   "Rain hammers the container stacks as you slip past the first patrol.",
		"choices": []interface{}{
			map[string]interface{}{
				"text":           "Bribe the dock foreman",
				"character_used": "Viktor Hale",
				"risk_level":     "low",
			},
			map[string]interface{}{
				"text":           "Climb the crane for a better view",
				"character_used": "Mara Voss",
				"risk_level":     "medium",
			},
		},
	}
}

func TestSanitize(t *testing.T) {
	t.Run("clean payload passes through unchanged with zero warnings", func(t *testing.T) {
		payload := validBootstrapPayload()
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		clean, warnings, err := schema.Sanitize(raw, schema.ContractMissionBootstrap)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, "Operation Glass Harbor", clean["mission_title"])
		assert.Equal(t, "Rotterdam docklands at night", clean["setting"])

		cleanRaw, err := json.Marshal(clean)
		require.NoError(t, err)
		assert.JSONEq(t, string(raw), string(cleanRaw))
	})

	t.Run("non-object top level is the only hard failure", func(t *testing.T) {
		for _, raw := range []string{`[1,2,3]`, `"just a string"`, `42`, `null`} {
			_, _, err := schema.Sanitize([]byte(raw), schema.ContractMissionBootstrap)
			assert.Error(t, err, "input %s", raw)
		}
		_, _, err := schema.Sanitize([]byte(`{not json`), schema.ContractMissionBootstrap)
		assert.Error(t, err)
	})

	t.Run("missing required fields get documented non-empty defaults", func(t *testing.T) {
		clean, warnings, err := schema.Sanitize([]byte(`{}`), schema.ContractMissionBootstrap)
		require.NoError(t, err)
		assert.NotEmpty(t, warnings)

		for _, name := range []string{
			"mission_title", "mission_description", "objective", "setting",
			"narrative_style", "mood", "opening_narrative",
		} {
			value, ok := clean[name].(string)
			require.True(t, ok, "field %s should be a string", name)
			assert.NotEmpty(t, strings.TrimSpace(value), "field %s must not be blank", name)
		}
		assert.Equal(t, "Classified Operation", clean["mission_title"])

		// Optional fields stay absent rather than defaulted.
		_, hasDeadline := clean["deadline"]
		assert.False(t, hasDeadline)

		// An unusable choices array becomes the standard slots.
		choices, ok := clean["choices"].([]interface{})
		require.True(t, ok)
		assert.Len(t, choices, 3)
	})

	t.Run("over-length setting truncates at a word boundary", func(t *testing.T) {
		// 600 characters of whole words against the 500 limit.
		longSetting := strings.TrimSpace(strings.Repeat("harbor patrol ", 43)) // 601 runes
		require.Greater(t, utf8.RuneCountInString(longSetting), 590)

		payload := validBootstrapPayload()
		payload["setting"] = longSetting
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		clean, warnings, err := schema.Sanitize(raw, schema.ContractMissionBootstrap)
		require.NoError(t, err)

		setting, ok := clean["setting"].(string)
		require.True(t, ok)
		assert.LessOrEqual(t, utf8.RuneCountInString(setting), 500)
		assert.True(t, strings.HasPrefix(longSetting, setting))
		// The rune after the cut in the original is a separator, so no word
		// was split.
		next, _ := utf8.DecodeRuneInString(longSetting[len(setting):])
		assert.Equal(t, ' ', next)
		assert.False(t, strings.HasSuffix(setting, " "))

		found := false
		for _, w := range warnings {
			if strings.Contains(w, "setting: truncated") {
				found = true
			}
		}
		assert.True(t, found, "expected a truncation warning, got %v", warnings)
	})

	t.Run("unrecognized enum values coerce to the default member", func(t *testing.T) {
		payload := map[string]interface{}{
			"narrative_text": "The vault door swings open.",
			"mission_status": "victorious",
			"choices": []interface{}{
				map[string]interface{}{
					"text":           "Grab the ledger",
					"character_used": "Mara Voss",
					"risk_level":     "extreme",
				},
			},
		}
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		clean, warnings, err := schema.Sanitize(raw, schema.ContractTurnAdvance)
		require.NoError(t, err)
		assert.Equal(t, "ongoing", clean["mission_status"])

		choices := clean["choices"].([]interface{})
		choice := choices[0].(map[string]interface{})
		assert.Equal(t, "medium", choice["risk_level"])
		assert.Len(t, warnings, 2)
	})

	t.Run("choices array capped at four dropping from the end", func(t *testing.T) {
		var items []interface{}
		for i := 0; i < 6; i++ {
			items = append(items, map[string]interface{}{
				"text":           fmt.Sprintf("Option %d", i),
				"character_used": "Viktor Hale",
				"risk_level":     "medium",
			})
		}
		payload := validBootstrapPayload()
		payload["choices"] = items
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		clean, warnings, err := schema.Sanitize(raw, schema.ContractMissionBootstrap)
		require.NoError(t, err)

		choices := clean["choices"].([]interface{})
		require.Len(t, choices, 4)
		for i := 0; i < 4; i++ {
			choice := choices[i].(map[string]interface{})
			assert.Equal(t, fmt.Sprintf("Option %d", i), choice["text"])
		}
		assert.NotEmpty(t, warnings)
	})

	t.Run("wrong-typed required field substitutes the default", func(t *testing.T) {
		payload := validBootstrapPayload()
		payload["mission_title"] = 17
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		clean, warnings, err := schema.Sanitize(raw, schema.ContractMissionBootstrap)
		require.NoError(t, err)
		assert.Equal(t, "Classified Operation", clean["mission_title"])
		assert.NotEmpty(t, warnings)
	})

	t.Run("unknown fields pass through untouched", func(t *testing.T) {
		payload := validBootstrapPayload()
		payload["codeword"] = "nightjar"
		choices := payload["choices"].([]interface{})
		choices[0].(map[string]interface{})["next_node_summary"] = "Foreman lets you through"
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		clean, warnings, err := schema.Sanitize(raw, schema.ContractMissionBootstrap)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, "nightjar", clean["codeword"])
		first := clean["choices"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "Foreman lets you through", first["next_node_summary"])
	})

	t.Run("sanitizing twice is byte-identical with zero warnings", func(t *testing.T) {
		messy := map[string]interface{}{
			"mission_title": strings.Repeat("Operation Long Name ", 20),
			"objective":     "",
			"mood":          42,
			"choices": []interface{}{
				map[string]interface{}{"text": "Act", "risk_level": "bizarre"},
				"not an object",
			},
		}
		raw, err := json.Marshal(messy)
		require.NoError(t, err)

		first, firstWarnings, err := schema.Sanitize(raw, schema.ContractMissionBootstrap)
		require.NoError(t, err)
		assert.NotEmpty(t, firstWarnings)

		firstRaw, err := json.Marshal(first)
		require.NoError(t, err)

		second, secondWarnings, err := schema.Sanitize(firstRaw, schema.ContractMissionBootstrap)
		require.NoError(t, err)
		assert.Empty(t, secondWarnings)

		secondRaw, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, firstRaw, secondRaw)
	})
}

func TestFallbackPayload(t *testing.T) {
	t.Run("fallback payloads are already clean", func(t *testing.T) {
		for _, name := range []schema.ContractName{schema.ContractMissionBootstrap, schema.ContractTurnAdvance} {
			raw, err := json.Marshal(schema.FallbackPayload(name))
			require.NoError(t, err)
			_, warnings, err := schema.Sanitize(raw, name)
			require.NoError(t, err)
			assert.Empty(t, warnings, "fallback for %s should sanitize without warnings", name)
		}
	})

	t.Run("turn fallback carries a narrative and standard slots", func(t *testing.T) {
		fallback := schema.FallbackPayload(schema.ContractTurnAdvance)
		assert.Equal(t, "Your bold action creates unexpected consequences...", fallback["narrative_text"])
		choices := fallback["choices"].([]interface{})
		assert.Len(t, choices, 3)
	})
}

func TestResponseSchemaObject(t *testing.T) {
	contract := schema.MustGet(schema.ContractTurnAdvance)
	obj := schema.ResponseSchemaObject(contract)

	assert.Equal(t, "object", obj["type"])
	properties := obj["properties"].(map[string]interface{})
	assert.Contains(t, properties, "narrative_text")
	assert.Contains(t, properties, "choices")

	required := obj["required"].([]string)
	assert.Contains(t, required, "narrative_text")
	assert.NotContains(t, required, "mission_status")

	choicesSchema := properties["choices"].(map[string]interface{})
	assert.Equal(t, 4, choicesSchema["maxItems"])
}
