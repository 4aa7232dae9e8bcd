package chunker

import (
	"strings"
	"unicode/utf8"
)

// EstimateTokens approximates how many LLM tokens text will cost. It takes
// the larger of a word-based and a character-based guess so that equation
// heavy text with few spaces is not undercounted.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	byWords := int(float64(len(strings.Fields(text))) * 1.33)
	byChars := utf8.RuneCountInString(text) / 4
	tokens := max(byWords, byChars)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
