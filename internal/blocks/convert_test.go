package blocks

import (
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/google/go-cmp/cmp"
)

const samplePaper = `A Study of Things
Some Author, Some University

**Abstract**
We examine **several** things.

## Background
Prior work exists.
1. step one
* first item
* second item

**Results**
The energy is $E=mc^2$ overall.
`

func TestConvert_Document(t *testing.T) {
	got, err := Convert(Document{Text: samplePaper}, Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	want := []Block{
		block(Heading2, "Abstract"),
		block(Paragraph, "We examine several things."),
		block(Heading2, "Background"),
		block(Paragraph, "Prior work exists."),
		block(NumberedItem, "step one"),
		{Type: BulletedItem, Runs: []Run{plain("first item")}, Indent: 1},
		{Type: BulletedItem, Runs: []Run{plain("second item")}, Indent: 1},
		block(Heading2, "Results"),
		{Type: EquationParagraph, Runs: []Run{
			plain("The energy is "),
			{Kind: RunEquation, Content: "E=mc^2"},
			plain(" overall."),
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestConvert_MissingMarker(t *testing.T) {
	got, err := Convert(Document{Text: "no content label here"}, Options{})
	if !errors.Is(err, ErrNoContentMarker) {
		t.Fatalf("expected ErrNoContentMarker, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no blocks, got %d", len(got))
	}
}

func TestConvert_CustomMarker(t *testing.T) {
	got, err := Convert(Document{Text: "skip\n**Summary**\nbody", StartMarker: "Summary"}, Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := []Block{block(Heading2, "Summary"), block(Paragraph, "body")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

// Apart from markup delimiters every character after the marker ends up in
// some block, in order.
func TestConvert_KeepsContent(t *testing.T) {
	text := "**Abstract**\nWe **found** $a+b$ effects.\n### Details\n* point one\nclosing words"
	got, err := Convert(Document{Text: text}, Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	var b strings.Builder
	for _, blk := range got {
		b.WriteString(blk.Text())
	}
	if got, want := stripMarkup(b.String()), stripMarkup(text); got != want {
		t.Errorf("content mismatch:\n got %q\nwant %q", got, want)
	}
}

func stripMarkup(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '#' || r == '*' || r == '$' {
			return -1
		}
		return r
	}, s)
}

func squeeze(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
