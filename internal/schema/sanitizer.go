package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Sanitize coerces a raw generation payload to the named contract. It never
// fails for malformed content: missing required fields get their documented
// defaults, over-length values are truncated at a word boundary, unrecognized
// enum values are coerced, and the choices array is capped. Every alteration
// is recorded in warnings. The only error case is a payload whose top level is
// not a JSON object.
//
// The function is pure: identical input yields identical output, and a clean
// payload passes through byte-identical with zero warnings.
func Sanitize(raw []byte, name ContractName) (map[string]interface{}, []string, error) {
	contract, err := Get(name)
	if err != nil {
		return nil, nil, err
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	payload, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("payload top level is %T, expected a JSON object", parsed)
	}

	clean := make(map[string]interface{}, len(payload))
	var warnings []string

	// Unknown fields pass through untouched; contract fields overwrite below.
	known := make(map[string]struct{}, len(contract.Fields))
	for _, f := range contract.Fields {
		known[f.Name] = struct{}{}
	}
	for key, value := range payload {
		if _, isKnown := known[key]; !isKnown {
			clean[key] = value
		}
	}

	for _, f := range contract.Fields {
		value, present := payload[f.Name]
		switch f.Kind {
		case KindArray:
			warnings = sanitizeChoices(contract, f, value, present, clean, warnings)
		case KindEnum:
			warnings = sanitizeEnum(f, value, present, clean, warnings)
		default:
			warnings = sanitizeText(f, value, present, clean, warnings)
		}
	}

	return clean, warnings, nil
}

func sanitizeText(f Field, value interface{}, present bool, clean map[string]interface{}, warnings []string) []string {
	s, isString := value.(string)
	switch {
	case !present:
		if f.Required {
			clean[f.Name] = f.Default
			warnings = append(warnings, fmt.Sprintf("%s: missing required field, substituted default", f.Name))
		}
	case !isString:
		if f.Required {
			clean[f.Name] = f.Default
			warnings = append(warnings, fmt.Sprintf("%s: expected string, got %T, substituted default", f.Name, value))
		} else {
			warnings = append(warnings, fmt.Sprintf("%s: expected string, got %T, dropped", f.Name, value))
		}
	case strings.TrimSpace(s) == "":
		if f.Required {
			clean[f.Name] = f.Default
			warnings = append(warnings, fmt.Sprintf("%s: blank required field, substituted default", f.Name))
		} else {
			warnings = append(warnings, fmt.Sprintf("%s: blank field dropped", f.Name))
		}
	default:
		truncated, changed := truncateAtWord(s, f.MaxLen)
		if changed {
			if f.Required && strings.TrimSpace(truncated) == "" {
				// Pathological: nothing readable fits inside the limit.
				truncated = f.Default
			}
			clean[f.Name] = truncated
			warnings = append(warnings, fmt.Sprintf("%s: truncated from %d to %d characters",
				f.Name, len([]rune(s)), len([]rune(truncated))))
		} else {
			clean[f.Name] = s
		}
	}
	return warnings
}

func sanitizeEnum(f Field, value interface{}, present bool, clean map[string]interface{}, warnings []string) []string {
	if !present {
		if f.Required {
			clean[f.Name] = f.Default
			warnings = append(warnings, fmt.Sprintf("%s: missing required field, substituted %q", f.Name, f.Default))
		}
		return warnings
	}
	s, isString := value.(string)
	if isString {
		for _, member := range f.Enum {
			if s == member {
				clean[f.Name] = s
				return warnings
			}
		}
	}
	clean[f.Name] = f.Default
	warnings = append(warnings, fmt.Sprintf("%s: unrecognized value %v, coerced to %q", f.Name, value, f.Default))
	return warnings
}

func sanitizeChoices(contract *Contract, f Field, value interface{}, present bool, clean map[string]interface{}, warnings []string) []string {
	items, isArray := value.([]interface{})
	if !present || !isArray || len(items) == 0 {
		if !f.Required {
			return warnings
		}
		clean[f.Name] = defaultChoiceSlots()
		warnings = append(warnings, fmt.Sprintf("%s: missing or unusable, substituted standard slots", f.Name))
		return warnings
	}
	if len(items) > contract.MaxChoices {
		warnings = append(warnings, fmt.Sprintf("%s: dropped %d elements over the maximum of %d",
			f.Name, len(items)-contract.MaxChoices, contract.MaxChoices))
		items = items[:contract.MaxChoices]
	}

	cleanItems := make([]interface{}, 0, len(items))
	for i, item := range items {
		element, isObject := item.(map[string]interface{})
		if !isObject {
			warnings = append(warnings, fmt.Sprintf("%s[%d]: expected object, got %T, substituted defaults", f.Name, i, item))
			element = map[string]interface{}{}
		}
		cleanElement := make(map[string]interface{}, len(element))
		knownChoice := make(map[string]struct{}, len(contract.ChoiceFields))
		for _, cf := range contract.ChoiceFields {
			knownChoice[cf.Name] = struct{}{}
		}
		for key, v := range element {
			if _, isKnown := knownChoice[key]; !isKnown {
				cleanElement[key] = v
			}
		}
		for _, cf := range contract.ChoiceFields {
			v, elemPresent := element[cf.Name]
			prefixed := cf
			prefixed.Name = fmt.Sprintf("%s[%d].%s", f.Name, i, cf.Name)
			var elementWarnings []string
			scoped := map[string]interface{}{}
			if cf.Kind == KindEnum {
				elementWarnings = sanitizeEnum(prefixed, v, elemPresent, scoped, nil)
			} else {
				elementWarnings = sanitizeText(prefixed, v, elemPresent, scoped, nil)
			}
			if cleanValue, ok := scoped[prefixed.Name]; ok {
				cleanElement[cf.Name] = cleanValue
			}
			warnings = append(warnings, elementWarnings...)
		}
		cleanItems = append(cleanItems, cleanElement)
	}
	clean[f.Name] = cleanItems
	return warnings
}

// truncateAtWord cuts s to at most max runes, backing off to the last
// whitespace boundary inside the window so no word is ever cut in half. When
// the window holds no whitespace the cut is hard. Reports whether s changed.
func truncateAtWord(s string, max int) (string, bool) {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s, false
	}
	window := runes[:max]
	lastSpace := -1
	for i, r := range window {
		if unicode.IsSpace(r) {
			lastSpace = i
		}
	}
	var out string
	if lastSpace <= 0 {
		out = string(window)
	} else {
		out = string(window[:lastSpace])
	}
	out = strings.TrimRightFunc(out, unicode.IsSpace)
	return out, true
}
