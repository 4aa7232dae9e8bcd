// Package doctree holds the intermediate outline every parser produces.
package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Render flattens the tree into the line-oriented text the block converter
// reads. Section titles become whole-line **bold** headers so that the
// segmenter starts a new section at each of them. The document title is not
// rendered.
func Render(t *DocTree) string {
	if t == nil {
		return ""
	}
	var parts []string
	var visit func(n *DocNode)
	visit = func(n *DocNode) {
		if title := strings.TrimSpace(n.Title); title != "" {
			parts = append(parts, "**"+strings.ReplaceAll(title, "**", "")+"**")
		}
		if text := strings.TrimSpace(n.Text); text != "" {
			parts = append(parts, text)
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	for _, c := range t.Children {
		visit(c)
	}
	return strings.Join(parts, "\n\n")
}
