package restructure

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// unwrapFence returns the body of a reply that consists of exactly one
// fenced code block, and the trimmed reply otherwise. Models often wrap the
// whole answer in ```markdown.
func unwrapFence(reply string) string {
	src := []byte(strings.TrimSpace(reply))
	if len(src) == 0 {
		return ""
	}
	doc := md.Parser().Parse(text.NewReader(src))
	if doc.ChildCount() != 1 {
		return string(src)
	}
	fcb, ok := doc.FirstChild().(*ast.FencedCodeBlock)
	if !ok {
		return string(src)
	}

	var b strings.Builder
	lines := fcb.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimSpace(b.String())
}
