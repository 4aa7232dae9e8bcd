package blocks

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docblocks/internal/chunker"
)

// Options tunes classification. The zero value is the default policy.
type Options struct {
	// BoldHeading is the block type for whole-line **bold** headings.
	// Defaults to Heading2; Heading1 is the only other accepted value.
	BoldHeading BlockType

	// PreserveBold keeps **bold** spans in plain paragraphs as bold runs
	// instead of stripping the delimiters.
	PreserveBold bool

	// TextLimit caps the length of every run. Defaults to MaxTextLength.
	TextLimit int
}

func (o Options) boldHeading() BlockType {
	if o.BoldHeading == Heading1 {
		return Heading1
	}
	return Heading2
}

func (o Options) limit() int {
	if o.TextLimit <= 0 {
		return MaxTextLength
	}
	return o.TextLimit
}

// listState is threaded through classification of a section's lines.
type listState struct {
	afterNumbered bool
}

// BuildBlocks classifies every line of a section and returns its blocks in
// line order. One line may expand into several paragraph blocks; two lines
// never share a block.
func BuildBlocks(sec Section, opts Options) []Block {
	var out []Block
	var st listState
	for _, line := range sec.Lines {
		var bs []Block
		bs, st = classifyLine(line, st, opts)
		out = append(out, bs...)
	}
	return out
}

func classifyLine(raw string, st listState, opts Options) ([]Block, listState) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return nil, st
	}

	switch {
	case strings.HasPrefix(line, "##") && !strings.HasPrefix(line, "###"):
		return []Block{textBlock(Heading2, headingText(line), opts)}, listState{}

	case strings.HasPrefix(line, "###"):
		return []Block{textBlock(Heading3, headingText(line), opts)}, listState{}

	case strings.HasPrefix(line, boldDelim) && strings.HasSuffix(line, boldDelim):
		text := strings.TrimSpace(strings.ReplaceAll(line, "*", ""))
		return []Block{textBlock(opts.boldHeading(), text, opts)}, listState{}

	case strings.HasPrefix(line, "*") && !strings.HasSuffix(line, "*"):
		text := stripBold(strings.TrimSpace(strings.TrimLeft(line, "*")))
		b := textBlock(BulletedItem, text, opts)
		if st.afterNumbered {
			b.Indent = 1
		}
		return []Block{b}, st

	case strings.HasPrefix(line, "1.") || strings.HasPrefix(line, "2."):
		_, after, _ := strings.Cut(line, ".")
		text := stripBold(strings.TrimSpace(after))
		return []Block{textBlock(NumberedItem, text, opts)}, listState{afterNumbered: true}
	}

	return paragraphBlocks(line, opts), listState{}
}

// paragraphBlocks emits one equation paragraph for lines carrying math and
// one paragraph per length-limited chunk otherwise. Expressions are never
// split; over-long text between them is.
func paragraphBlocks(line string, opts Options) []Block {
	if strings.Contains(line, "$") {
		var runs []Run
		for _, r := range FormatEquations(line) {
			if r.Kind == RunEquation {
				runs = append(runs, r)
				continue
			}
			runs = append(runs, splitRun(r, opts.limit())...)
		}
		return []Block{{Type: EquationParagraph, Runs: runs}}
	}

	if opts.PreserveBold {
		var runs []Run
		for _, r := range FormatBold(line) {
			runs = append(runs, splitRun(r, opts.limit())...)
		}
		var out []Block
		for len(runs) > MaxRunsPerBlock {
			out = append(out, Block{Type: Paragraph, Runs: runs[:MaxRunsPerBlock:MaxRunsPerBlock]})
			runs = runs[MaxRunsPerBlock:]
		}
		return append(out, Block{Type: Paragraph, Runs: runs})
	}

	chunks := chunker.SplitToLimit(stripBold(line), opts.limit())
	out := make([]Block, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, Block{Type: Paragraph, Runs: []Run{plain(c)}})
	}
	return out
}

// textBlock builds a single-block element whose text may need several runs
// to stay under the run limit.
func textBlock(t BlockType, text string, opts Options) Block {
	chunks := chunker.SplitToLimit(text, opts.limit())
	runs := make([]Run, len(chunks))
	for i, c := range chunks {
		runs[i] = plain(c)
	}
	return Block{Type: t, Runs: runs}
}

// splitRun cuts a run longer than limit into several runs of the same kind.
// Spacing at either end is kept when it fits, so text stays apart from a
// neighbouring equation or bold span.
func splitRun(r Run, limit int) []Run {
	if utf8.RuneCountInString(r.Content) <= limit {
		return []Run{r}
	}
	chunks := chunker.SplitToLimit(r.Content, limit)
	lead := r.Content[:len(r.Content)-len(strings.TrimLeftFunc(r.Content, unicode.IsSpace))]
	if lead != "" && utf8.RuneCountInString(lead+chunks[0]) <= limit {
		chunks[0] = lead + chunks[0]
	}
	trail := r.Content[len(strings.TrimRightFunc(r.Content, unicode.IsSpace)):]
	last := len(chunks) - 1
	if trail != "" && utf8.RuneCountInString(chunks[last]+trail) <= limit {
		chunks[last] += trail
	}
	out := make([]Run, len(chunks))
	for i, c := range chunks {
		out[i] = Run{Kind: r.Kind, Content: c}
	}
	return out
}

func headingText(line string) string {
	text := strings.TrimSpace(strings.TrimLeft(line, "#"))
	return strings.TrimSpace(strings.ReplaceAll(text, "*", ""))
}

func stripBold(s string) string {
	return strings.ReplaceAll(s, boldDelim, "")
}
