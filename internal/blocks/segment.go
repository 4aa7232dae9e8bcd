package blocks

import (
	"errors"
	"strings"
)

// ErrNoContentMarker is returned when the start marker does not occur in the
// document. Nothing is converted in that case.
var ErrNoContentMarker = errors.New("content start marker not found")

const boldDelim = "**"

// Segment discards everything before the start marker and splits the rest
// into sections. The bold form of the marker wins over a bare occurrence.
func Segment(raw, startMarker string) ([]Section, error) {
	if startMarker == "" {
		startMarker = DefaultStartMarker
	}

	start := strings.Index(raw, boldDelim+startMarker+boldDelim)
	if start == -1 {
		start = strings.Index(raw, startMarker)
	}
	if start == -1 {
		return nil, ErrNoContentMarker
	}

	var sections []Section
	var current []string
	for _, line := range strings.Split(raw[start:], "\n") {
		if isHeaderLine(line) && len(current) > 0 {
			sections = append(sections, Section{Lines: current})
			current = nil
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, Section{Lines: current})
	}
	return sections, nil
}

// isHeaderLine reports whether line opens with a bold delimiter and closes
// that span later on the same line.
func isHeaderLine(line string) bool {
	return strings.HasPrefix(line, boldDelim) && strings.Contains(line[len(boldDelim):], boldDelim)
}
