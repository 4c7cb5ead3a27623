package blocks

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strconv"
	"strings"

	"github.com/rubiojr/kallitechnia/pkg/media"
	"github.com/rubiojr/kallitechnia/pkg/richtext"
)

// Field types below never fail to decode. A value of the wrong shape
// decodes to its zero value so a single odd field cannot drop a section.

// Str is a plain text field. Rich text is flattened, numbers are kept as
// written and anything else is empty.
type Str string

func (s *Str) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0:
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			*s = ""
			return nil
		}
		*s = Str(v)
	case b[0] == '{' || b[0] == '[':
		*s = Str(richtext.ExtractText(json.RawMessage(b)))
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		if _, err := strconv.ParseFloat(string(b), 64); err == nil {
			*s = Str(b)
		}
	default:
		*s = ""
	}
	return nil
}

func (s Str) String() string { return string(s) }

// Or returns s, or def when s is empty.
func (s Str) Or(def string) string {
	if s == "" {
		return def
	}
	return string(s)
}

// Rich is a rich-text field normalized at decode time.
type Rich struct {
	Doc richtext.Document
}

func (r *Rich) UnmarshalJSON(b []byte) error {
	r.Doc = richtext.Normalize(json.RawMessage(b))
	return nil
}

func (r Rich) Empty() bool { return r.Doc.Empty() }
func (r Rich) Text() string { return richtext.ExtractText(r.Doc) }
func (r Rich) Paragraphs() []string { return richtext.ExtractParagraphs(r.Doc) }
func (r Rich) HTML() template.HTML { return richtext.Render(r.Doc) }

// Image is an image or file reference in any of the shapes the CMS emits.
type Image struct {
	raw json.RawMessage
}

func (i *Image) UnmarshalJSON(b []byte) error {
	i.raw = append(i.raw[:0], b...)
	return nil
}

// URL resolves the reference, returning "" when there is nothing to show.
func (i Image) URL(r *media.Resolver) string {
	if len(i.raw) == 0 {
		return ""
	}
	if r == nil {
		return media.ExtractImageURL(i.raw)
	}
	return r.ExtractImageURL(i.raw)
}

// Raw returns the reference as received.
func (i Image) Raw() json.RawMessage { return i.raw }

// List is an array field. Non-array values decode to an empty list and
// elements that are not objects are dropped.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		*l = nil
		return nil
	}
	out := make(List[T], 0, len(items))
	for _, item := range items {
		if !isObject(item) {
			continue
		}
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// linkURL keeps absolute http(s) and site-relative targets and drops
// everything else.
func linkURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http") || strings.HasPrefix(s, "/") {
		return s
	}
	return ""
}
