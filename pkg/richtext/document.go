package richtext

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Format is the inline formatting bitmask carried by text nodes.
type Format int

const (
	Bold Format = 1 << iota
	Italic
	Strikethrough
	Underline
	Code
)

// Has reports whether every bit of flag is set.
func (f Format) Has(flag Format) bool {
	return f&flag == flag
}

// Element kinds understood by the renderer. Anything else falls back to a
// generic container.
const (
	KindRoot      = "root"
	KindText      = "text"
	KindParagraph = "paragraph"
	KindHeading   = "heading"
	KindList      = "list"
	KindListItem  = "listitem"
	KindLink      = "link"
	KindLineBreak = "linebreak"
)

// Document is the canonical rich-text tree. Every input shape is converted
// into one before it is rendered or flattened.
type Document struct {
	Root Node `json:"root"`
}

// Node is either a text node (IsText) or an element holding children.
type Node struct {
	Type     string `json:"type,omitempty"`
	Text     string `json:"text,omitempty"`
	HasText  bool   `json:"-"`
	Format   Format `json:"format,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Level    int    `json:"level,omitempty"`
	ListType string `json:"listType,omitempty"`
	// URL is the resolved link target: url, href, fields.url, then fields.href.
	URL      string `json:"url,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// IsText reports whether n is a leaf carrying literal text.
func (n Node) IsText() bool {
	return n.HasText || n.Type == KindText
}

// HeadingLevel returns the heading level from Tag ("h3" or "3") or Level,
// clamped to [1,6].
func (n Node) HeadingLevel() int {
	level := 0
	if n.Tag != "" {
		if v, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(n.Tag), "h")); err == nil {
			level = v
		}
	}
	if level == 0 {
		level = n.Level
	}
	if level == 0 {
		level = 1
	}
	return min(max(level, 1), 6)
}

// Ordered reports whether a list node renders as an ordered list.
func (n Node) Ordered() bool {
	return n.ListType == "number"
}

// Empty reports whether the document has no top-level nodes.
func (d Document) Empty() bool {
	return len(d.Root.Children) == 0
}

// Nodes returns the top-level nodes of the document.
func (d Document) Nodes() []Node {
	return d.Root.Children
}

// NewDocument wraps nodes under a synthesized root.
func NewDocument(nodes ...Node) Document {
	return Document{Root: Node{Type: KindRoot, Children: nodes}}
}

// Paragraph builds a paragraph holding a single plain text node.
func Paragraph(text string) Node {
	return Node{
		Type:     KindParagraph,
		Children: []Node{TextNode(text, 0)},
	}
}

// TextNode builds a text leaf.
func TextNode(text string, format Format) Node {
	return Node{Type: KindText, Text: text, HasText: true, Format: format}
}

var (
	ErrInvalidJSON   = errors.New("invalid JSON")
	ErrNotDocument   = errors.New("value is not a rich-text document")
	ErrExpectedArray = errors.New("expected JSON array")
)

// Error reports where strict parsing of a document failed.
type Error struct {
	Op   string // "parse", "node"
	Path string // e.g. "root.children[2]"
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("richtext %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("richtext %s at %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}
