// Package blocks converts loosely structured markdown-like text into typed
// content blocks ready to be appended to a Notion page.
package blocks

import "github.com/dgallion1/docblocks/internal/chunker"

// MaxTextLength is the longest text run the Notion API accepts.
const MaxTextLength = chunker.DefaultLimit

// MaxRunsPerBlock is the most rich text elements Notion accepts in one block.
const MaxRunsPerBlock = 100

// DefaultStartMarker is the label that marks where a paper's content begins.
const DefaultStartMarker = "Abstract"

// BlockType names a block in the Notion vocabulary.
type BlockType string

const (
	Heading1          BlockType = "heading_1"
	Heading2          BlockType = "heading_2"
	Heading3          BlockType = "heading_3"
	BulletedItem      BlockType = "bulleted_list_item"
	NumberedItem      BlockType = "numbered_list_item"
	Paragraph         BlockType = "paragraph"
	EquationParagraph BlockType = "equation_paragraph"
)

// RunKind is the styling of a text run.
type RunKind string

const (
	RunPlain    RunKind = "plain"
	RunBold     RunKind = "bold"
	RunEquation RunKind = "equation"
)

// Run is an inline-styled fragment of text within a block. For equation
// runs Content holds the expression without its delimiters.
type Run struct {
	Kind    RunKind `json:"kind" yaml:"kind"`
	Content string  `json:"content" yaml:"content"`
	Display bool    `json:"display,omitempty" yaml:"display,omitempty"`
}

// Block is one typed content unit. Runs is never empty.
type Block struct {
	Type   BlockType `json:"type" yaml:"type"`
	Runs   []Run     `json:"runs" yaml:"runs"`
	Indent int       `json:"indent,omitempty" yaml:"indent,omitempty"`
}

// Text concatenates the content of all runs.
func (b Block) Text() string {
	switch len(b.Runs) {
	case 0:
		return ""
	case 1:
		return b.Runs[0].Content
	}
	n := 0
	for _, r := range b.Runs {
		n += len(r.Content)
	}
	buf := make([]byte, 0, n)
	for _, r := range b.Runs {
		buf = append(buf, r.Content...)
	}
	return string(buf)
}

func plain(s string) Run { return Run{Kind: RunPlain, Content: s} }

// Document is the raw text of one conversion request.
type Document struct {
	Text        string
	StartMarker string // DefaultStartMarker when empty
}

// Section is a contiguous run of lines opened by a heading-like line.
type Section struct {
	Lines []string
}
