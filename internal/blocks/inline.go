package blocks

import "strings"

// FormatBold splits a line into plain and bold runs on ** delimiters.
// An unterminated ** ends scanning; the rest of the line, delimiter
// included, becomes a single plain run.
func FormatBold(line string) []Run {
	var runs []Run
	pos := 0
	for pos < len(line) {
		open := strings.Index(line[pos:], boldDelim)
		if open == -1 {
			break
		}
		open += pos
		if open > pos {
			runs = append(runs, plain(line[pos:open]))
		}
		end := strings.Index(line[open+len(boldDelim):], boldDelim)
		if end == -1 {
			runs = append(runs, plain(line[open:]))
			pos = len(line)
			break
		}
		end += open + len(boldDelim)

		runs = append(runs, Run{Kind: RunBold, Content: line[open+len(boldDelim) : end]})
		pos = end + len(boldDelim)
	}
	if pos < len(line) {
		runs = append(runs, plain(line[pos:]))
	}
	if len(runs) == 0 {
		return []Run{plain(line)}
	}
	return runs
}

// FormatEquations splits a line into plain and equation runs. $$...$$ is a
// display equation and $...$ an inline one. An unterminated opener turns the
// rest of the line into one plain run.
func FormatEquations(line string) []Run {
	var runs []Run
	pos := 0
	for pos < len(line) {
		open := strings.IndexByte(line[pos:], '$')
		if open == -1 {
			break
		}
		open += pos

		delim := "$"
		if strings.HasPrefix(line[open:], "$$") {
			delim = "$$"
		}
		body := open + len(delim)
		if open > pos {
			runs = append(runs, plain(line[pos:open]))
		}
		end := strings.Index(line[body:], delim)
		if end == -1 {
			runs = append(runs, plain(line[open:]))
			pos = len(line)
			break
		}
		end += body

		expr := line[body:end]
		if strings.TrimSpace(expr) == "" {
			// Notion rejects empty expressions.
			runs = append(runs, plain(line[open:end+len(delim)]))
		} else {
			runs = append(runs, Run{Kind: RunEquation, Content: expr, Display: delim == "$$"})
		}
		pos = end + len(delim)
	}
	if pos < len(line) {
		runs = append(runs, plain(line[pos:]))
	}
	if len(runs) == 0 {
		return []Run{plain(line)}
	}
	return runs
}
