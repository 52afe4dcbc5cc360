package prompts

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

// Rough fallback when the tokenizer is unavailable.
const charsPerTokenEstimate = 4

// EstimateTokens counts the tokens in text, falling back to a character
// heuristic when the tokenizer cannot be loaded.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tke, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return (utf8.RuneCountInString(text) + charsPerTokenEstimate - 1) / charsPerTokenEstimate
	}
	return len(tke.Encode(text, nil, nil))
}

// TrimToLastTokens keeps the newest portion of text that fits the token
// budget. The head is dropped rather than the tail: for narrative history the
// most recent beats carry the context a continuation needs. Reports whether
// anything was cut.
func TrimToLastTokens(text string, budget int) (string, bool) {
	if budget <= 0 || text == "" {
		return text, false
	}
	tke, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		runes := []rune(text)
		max := budget * charsPerTokenEstimate
		if len(runes) <= max {
			return text, false
		}
		return string(runes[len(runes)-max:]), true
	}
	tokens := tke.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text, false
	}
	return tke.Decode(tokens[len(tokens)-budget:]), true
}
