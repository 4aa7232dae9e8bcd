package notion

import "github.com/dgallion1/docblocks/internal/blocks"

type appendRequest struct {
	Children []map[string]any `json:"children"`
}

type richText struct {
	Type        string       `json:"type"`
	Text        *textBody    `json:"text,omitempty"`
	Equation    *exprBody    `json:"equation,omitempty"`
	Annotations *annotations `json:"annotations,omitempty"`
}

type textBody struct {
	Content string `json:"content"`
}

type exprBody struct {
	Expression string `json:"expression"`
}

type annotations struct {
	Bold bool `json:"bold"`
}

// EncodeBlocks renders blocks as Notion block objects. Indented bullets that
// directly follow a numbered item become children of that item.
func EncodeBlocks(bs []blocks.Block) []map[string]any {
	out := make([]map[string]any, 0, len(bs))
	var parent map[string]any
	for _, b := range bs {
		obj, payload := encodeBlock(b)
		if b.Type == blocks.BulletedItem && b.Indent > 0 && parent != nil {
			children, _ := parent["children"].([]map[string]any)
			parent["children"] = append(children, obj)
			continue
		}
		parent = nil
		if b.Type == blocks.NumberedItem {
			parent = payload
		}
		out = append(out, obj)
	}
	return out
}

func encodeBlock(b blocks.Block) (obj, payload map[string]any) {
	typ := string(b.Type)
	if b.Type == blocks.EquationParagraph {
		typ = string(blocks.Paragraph)
	}
	payload = map[string]any{"rich_text": encodeRuns(b.Runs)}
	return map[string]any{
		"object": "block",
		"type":   typ,
		typ:      payload,
	}, payload
}

func encodeRuns(runs []blocks.Run) []richText {
	out := make([]richText, 0, len(runs))
	for _, r := range runs {
		switch r.Kind {
		case blocks.RunEquation:
			out = append(out, richText{Type: "equation", Equation: &exprBody{Expression: r.Content}})
		case blocks.RunBold:
			out = append(out, richText{Type: "text", Text: &textBody{Content: r.Content}, Annotations: &annotations{Bold: true}})
		default:
			out = append(out, richText{Type: "text", Text: &textBody{Content: r.Content}})
		}
	}
	return out
}
