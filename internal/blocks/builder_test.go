package blocks

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func block(t BlockType, text string) Block {
	return Block{Type: t, Runs: []Run{plain(text)}}
}

func TestBuildBlocks_Classification(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []Block
	}{
		{
			name:  "level two heading",
			lines: []string{"## Background"},
			want:  []Block{block(Heading2, "Background")},
		},
		{
			name:  "level three heading strips emphasis",
			lines: []string{"### Sub *topic*"},
			want:  []Block{block(Heading3, "Sub topic")},
		},
		{
			name:  "deeper heading is level three",
			lines: []string{"#### Deep"},
			want:  []Block{block(Heading3, "Deep")},
		},
		{
			name:  "bold line heading",
			lines: []string{"**Abstract**"},
			want:  []Block{block(Heading2, "Abstract")},
		},
		{
			name:  "bullet",
			lines: []string{"* first item"},
			want:  []Block{block(BulletedItem, "first item")},
		},
		{
			name:  "bullet strips bold",
			lines: []string{"* **Note:** important"},
			want:  []Block{block(BulletedItem, "Note: important")},
		},
		{
			name:  "numbered",
			lines: []string{"1. step one", "2. **Mix** the sample"},
			want:  []Block{block(NumberedItem, "step one"), block(NumberedItem, "Mix the sample")},
		},
		{
			name:  "only first two ordinals are list items",
			lines: []string{"3. third"},
			want:  []Block{block(Paragraph, "3. third")},
		},
		{
			name:  "single emphasis is a paragraph",
			lines: []string{"*emphasis*"},
			want:  []Block{block(Paragraph, "*emphasis*")},
		},
		{
			name:  "paragraph strips bold",
			lines: []string{"This is **key** text"},
			want:  []Block{block(Paragraph, "This is key text")},
		},
		{
			name:  "blank lines produce nothing",
			lines: []string{"", "   ", "\t"},
			want:  nil,
		},
		{
			name:  "surrounding whitespace trimmed",
			lines: []string{"   plain words   "},
			want:  []Block{block(Paragraph, "plain words")},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildBlocks(Section{Lines: tc.lines}, Options{})
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("blocks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildBlocks_BulletIndent(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []int
	}{
		{"after numbered", []string{"1. step one", "* first item"}, []int{0, 1}},
		{"without numbered", []string{"* first item"}, []int{0}},
		{"blank line keeps state", []string{"1. step", "", "* sub"}, []int{0, 1}},
		{"consecutive bullets stay nested", []string{"1. step", "* a", "* b"}, []int{0, 1, 1}},
		{"paragraph resets", []string{"1. step", "text", "* b"}, []int{0, 0, 0}},
		{"heading resets", []string{"2. step", "## Next", "* b"}, []int{0, 0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildBlocks(Section{Lines: tc.lines}, Options{})
			indents := make([]int, len(got))
			for i, b := range got {
				indents[i] = b.Indent
			}
			if diff := cmp.Diff(tc.want, indents); diff != "" {
				t.Errorf("indent mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildBlocks_BoldHeadingLevel(t *testing.T) {
	got := BuildBlocks(Section{Lines: []string{"**Methods**"}}, Options{BoldHeading: Heading1})
	if diff := cmp.Diff([]Block{block(Heading1, "Methods")}, got); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}

	got = BuildBlocks(Section{Lines: []string{"**Methods**"}}, Options{BoldHeading: Heading3})
	if got[0].Type != Heading2 {
		t.Errorf("unsupported bold heading level should fall back to heading_2, got %s", got[0].Type)
	}
}

func TestBuildBlocks_Equation(t *testing.T) {
	got := BuildBlocks(Section{Lines: []string{"$E=mc^2$"}}, Options{})
	want := []Block{{
		Type: EquationParagraph,
		Runs: []Run{{Kind: RunEquation, Content: "E=mc^2"}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildBlocks_EquationParagraphNotSplit(t *testing.T) {
	line := strings.Repeat("word ", 30) + "$x+y$"
	got := BuildBlocks(Section{Lines: []string{line}}, Options{TextLimit: 20})
	if len(got) != 1 {
		t.Fatalf("expected a single equation paragraph, got %d blocks", len(got))
	}
	if got[0].Type != EquationParagraph {
		t.Errorf("expected equation_paragraph, got %s", got[0].Type)
	}
}

func TestBuildBlocks_EquationParagraphSplitsLongText(t *testing.T) {
	line := strings.Repeat("word ", 10) + "$x+y$ tail"
	got := BuildBlocks(Section{Lines: []string{line}}, Options{TextLimit: 20})
	if len(got) != 1 {
		t.Fatalf("expected a single equation paragraph, got %d blocks", len(got))
	}
	var eqs int
	for i, r := range got[0].Runs {
		if n := utf8.RuneCountInString(r.Content); n > 20 {
			t.Errorf("run %d has %d runes", i, n)
		}
		if r.Kind == RunEquation {
			eqs++
			if r.Content != "x+y" {
				t.Errorf("expected the expression intact, got %q", r.Content)
			}
		}
	}
	if eqs != 1 {
		t.Errorf("expected one equation run, got %d", eqs)
	}
	last := got[0].Runs[len(got[0].Runs)-1]
	if last != plain(" tail") {
		t.Errorf("expected short trailing text untouched, got %+v", last)
	}
	if squeeze(got[0].Text()) != squeeze(strings.ReplaceAll(line, "$", "")) {
		t.Error("equation paragraph lost content")
	}
}

func TestBuildBlocks_PreserveBoldCapsRunsPerBlock(t *testing.T) {
	line := strings.Repeat("a **b** ", 60)
	got := BuildBlocks(Section{Lines: []string{line}}, Options{PreserveBold: true})
	if len(got) != 2 {
		t.Fatalf("expected the paragraph spread over 2 blocks, got %d", len(got))
	}
	total := 0
	for i, b := range got {
		if b.Type != Paragraph {
			t.Errorf("block %d: expected paragraph, got %s", i, b.Type)
		}
		if len(b.Runs) > MaxRunsPerBlock {
			t.Errorf("block %d has %d runs", i, len(b.Runs))
		}
		total += len(b.Runs)
	}
	// The trailing space is trimmed with the line, so 60 bold and 60 plain runs.
	if total != 120 {
		t.Errorf("expected 120 runs in total, got %d", total)
	}
}

func TestBuildBlocks_LongParagraphSplits(t *testing.T) {
	line := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)
	got := BuildBlocks(Section{Lines: []string{line}}, Options{})
	if len(got) < 2 {
		t.Fatalf("expected several paragraphs, got %d", len(got))
	}
	var rebuilt strings.Builder
	for i, b := range got {
		if b.Type != Paragraph {
			t.Errorf("block %d: expected paragraph, got %s", i, b.Type)
		}
		if n := utf8.RuneCountInString(b.Text()); n > MaxTextLength {
			t.Errorf("block %d has %d runes", i, n)
		}
		rebuilt.WriteString(b.Text())
	}
	if squeeze(rebuilt.String()) != squeeze(line) {
		t.Error("split paragraphs lost content")
	}
}

func TestBuildBlocks_LongHeadingUsesRuns(t *testing.T) {
	line := "## " + strings.Repeat("abcd ", 10)
	got := BuildBlocks(Section{Lines: []string{line}}, Options{TextLimit: 12})
	if len(got) != 1 {
		t.Fatalf("expected one heading block, got %d", len(got))
	}
	if len(got[0].Runs) < 2 {
		t.Errorf("expected the heading text split across runs, got %d run", len(got[0].Runs))
	}
	for i, r := range got[0].Runs {
		if n := utf8.RuneCountInString(r.Content); n > 12 {
			t.Errorf("run %d has %d runes", i, n)
		}
	}
}

func TestBuildBlocks_PreserveBold(t *testing.T) {
	got := BuildBlocks(Section{Lines: []string{"This is **key** text"}}, Options{PreserveBold: true})
	want := []Block{{
		Type: Paragraph,
		Runs: []Run{plain("This is "), {Kind: RunBold, Content: "key"}, plain(" text")},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildBlocks_RunsNeverEmpty(t *testing.T) {
	lines := []string{"##", "**   **", "* ", "1.", "$$$$", "plain"}
	for _, b := range BuildBlocks(Section{Lines: lines}, Options{}) {
		if len(b.Runs) == 0 {
			t.Errorf("%s block has no runs", b.Type)
		}
	}
}
