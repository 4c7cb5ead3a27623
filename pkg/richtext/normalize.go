package richtext

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Normalize converts any accepted rich-text shape into a Document:
//
//   - a string becomes one paragraph
//   - a list of strings becomes one paragraph per string
//   - a list of nodes is wrapped under a synthesized root
//   - an object with "root" is used as is
//   - a single bare node becomes the only child of the root
//
// Raw JSON ([]byte, json.RawMessage) is decoded first. Anything else,
// including nil and malformed input, yields an empty document.
func Normalize(v any) Document {
	switch t := v.(type) {
	case nil:
		return NewDocument()
	case Document:
		return t
	case *Document:
		if t == nil {
			return NewDocument()
		}
		return *t
	case Node:
		return NewDocument(t)
	case []Node:
		return NewDocument(t...)
	case string:
		if t == "" {
			return NewDocument()
		}
		return NewDocument(Paragraph(t))
	case []string:
		nodes := make([]Node, 0, len(t))
		for _, s := range t {
			nodes = append(nodes, Paragraph(s))
		}
		return NewDocument(nodes...)
	case json.RawMessage:
		return normalizeJSON(t)
	case []byte:
		return normalizeJSON(t)
	case []any:
		return NewDocument(nodesFromList(t, true)...)
	case map[string]any:
		if root, ok := t["root"].(map[string]any); ok {
			children, _ := root["children"].([]any)
			return NewDocument(nodesFromList(children, false)...)
		}
		if _, ok := t["root"]; ok {
			return NewDocument()
		}
		if looksLikeNode(t) {
			return NewDocument(nodeFromMap(t))
		}
	}
	return NewDocument()
}

// Parse strictly decodes a JSON rich-text value. Unlike Normalize it reports
// malformed input, with the path of the offending node.
func Parse(data []byte) (Document, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Document{}, wrap("parse", "", fmt.Errorf("%w: %v", ErrInvalidJSON, err))
	}
	switch t := v.(type) {
	case string, []any:
		if list, ok := t.([]any); ok {
			if err := checkList(list, ""); err != nil {
				return Document{}, err
			}
		}
	case map[string]any:
		if rootVal, ok := t["root"]; ok {
			root, ok := rootVal.(map[string]any)
			if !ok {
				return Document{}, wrap("parse", "root", ErrNotDocument)
			}
			if children, ok := root["children"]; ok {
				list, ok := children.([]any)
				if !ok {
					return Document{}, wrap("parse", "root.children", ErrExpectedArray)
				}
				if err := checkList(list, "root.children"); err != nil {
					return Document{}, err
				}
			}
		} else if !looksLikeNode(t) {
			return Document{}, wrap("parse", "", ErrNotDocument)
		}
	default:
		return Document{}, wrap("parse", "", ErrNotDocument)
	}
	return Normalize(v), nil
}

func checkList(list []any, path string) error {
	for i, item := range list {
		p := path + "[" + strconv.Itoa(i) + "]"
		switch t := item.(type) {
		case string, nil:
		case map[string]any:
			if children, ok := t["children"]; ok && children != nil {
				sub, ok := children.([]any)
				if !ok {
					return wrap("node", p+".children", ErrExpectedArray)
				}
				if err := checkList(sub, p+".children"); err != nil {
					return err
				}
			}
		default:
			return wrap("node", p, ErrNotDocument)
		}
	}
	return nil
}

func normalizeJSON(data []byte) Document {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return NewDocument()
	}
	return Normalize(v)
}

func looksLikeNode(m map[string]any) bool {
	if _, ok := m["text"]; ok {
		return true
	}
	if _, ok := m["children"].([]any); ok {
		return true
	}
	_, ok := m["type"].(string)
	return ok
}

// nodesFromList converts decoded JSON items. Strings become paragraphs at the
// top level and plain text leaves when nested.
func nodesFromList(items []any, topLevel bool) []Node {
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			if topLevel {
				nodes = append(nodes, Paragraph(t))
			} else {
				nodes = append(nodes, TextNode(t, 0))
			}
		case map[string]any:
			nodes = append(nodes, nodeFromMap(t))
		}
	}
	return nodes
}

func nodeFromMap(m map[string]any) Node {
	n := Node{}
	n.Type, _ = m["type"].(string)

	if raw, ok := m["text"]; ok {
		n.HasText = true
		n.Text, _ = raw.(string)
	}
	if f, ok := m["format"].(float64); ok {
		n.Format = Format(int(f))
	}
	switch tag := m["tag"].(type) {
	case string:
		n.Tag = tag
	case float64:
		n.Tag = strconv.Itoa(int(tag))
	}
	if level, ok := m["level"].(float64); ok {
		n.Level = int(level)
	}
	n.ListType, _ = m["listType"].(string)
	n.URL = linkTarget(m)

	if children, ok := m["children"].([]any); ok {
		n.Children = nodesFromList(children, false)
	}
	return n
}

func linkTarget(m map[string]any) string {
	if s, ok := m["url"].(string); ok && s != "" {
		return s
	}
	if s, ok := m["href"].(string); ok && s != "" {
		return s
	}
	if fields, ok := m["fields"].(map[string]any); ok {
		if s, ok := fields["url"].(string); ok && s != "" {
			return s
		}
		if s, ok := fields["href"].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
