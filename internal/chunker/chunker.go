package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLimit is the longest rich-text content the Notion API accepts.
const DefaultLimit = 2000

// Boundaries searched for a split point, strongest first. Within a tier the
// rightmost match wins.
var (
	sentenceEnds = []string{". ", "! ", "? "}
	clauseEnds   = []string{", ", "; ", "): ", "] "}
)

// SplitToLimit breaks text into chunks of at most limit runes. Text that
// already fits is returned unchanged as the only chunk. Longer text is cut
// greedily at the last sentence end, then clause end, then space inside the
// limit, falling back to a hard cut. Chunks are trimmed and never empty.
func SplitToLimit(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	rest := text
	for utf8.RuneCountInString(rest) > limit {
		window := prefixRunes(rest, limit)
		cut := splitPoint(window)
		if chunk := strings.TrimSpace(rest[:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = strings.TrimLeftFunc(rest[cut:], unicode.IsSpace)
	}
	if rest = strings.TrimSpace(rest); rest != "" || len(chunks) == 0 {
		chunks = append(chunks, rest)
	}
	return chunks
}

// splitPoint returns the byte offset in window at which to cut. The matched
// punctuation stays with the left side.
func splitPoint(window string) int {
	if i, term := lastOf(window, sentenceEnds); i > 0 {
		return i + len(term) - 1
	}
	if i, term := lastOf(window, clauseEnds); i > 0 {
		return i + len(term) - 1
	}
	if i := strings.LastIndexByte(window, ' '); i > 0 {
		return i
	}
	return len(window)
}

func lastOf(s string, terms []string) (int, string) {
	best, bestTerm := -1, ""
	for _, t := range terms {
		if i := strings.LastIndex(s, t); i > best {
			best, bestTerm = i, t
		}
	}
	return best, bestTerm
}

// prefixRunes returns the first n runes of s.
func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
