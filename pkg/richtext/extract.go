package richtext

import "strings"

// ExtractText flattens v to plain text. Top-level nodes are joined with a
// single space; text inside a node is concatenated as is.
func ExtractText(v any) string {
	doc := Normalize(v)
	parts := make([]string, 0, len(doc.Root.Children))
	for _, n := range doc.Root.Children {
		parts = append(parts, NodeText(n))
	}
	return strings.Join(parts, " ")
}

// ExtractParagraphs flattens v into one string per top-level node. Paragraph
// text is trimmed; nodes without text are skipped.
func ExtractParagraphs(v any) []string {
	doc := Normalize(v)
	out := make([]string, 0, len(doc.Root.Children))
	for _, n := range doc.Root.Children {
		var text string
		if n.Type == KindParagraph {
			text = strings.TrimSpace(childrenText(n))
		} else {
			text = NodeText(n)
		}
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

// NodeText returns the concatenated literal text of n and its descendants.
func NodeText(n Node) string {
	if n.IsText() {
		return n.Text
	}
	return childrenText(n)
}

func childrenText(n Node) string {
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(NodeText(c))
	}
	return b.String()
}
