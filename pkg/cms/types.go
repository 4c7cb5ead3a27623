package cms

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/rubiojr/kallitechnia/pkg/richtext"
)

// ID is a Payload document id. Depending on the database adapter it arrives
// as a JSON string or number; both decode to the same value.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Paged is the envelope Payload wraps list responses in.
type Paged[T any] struct {
	Docs          []T  `json:"docs"`
	TotalDocs     int  `json:"totalDocs"`
	Limit         int  `json:"limit"`
	TotalPages    int  `json:"totalPages"`
	Page          int  `json:"page"`
	PagingCounter int  `json:"pagingCounter"`
	HasPrevPage   bool `json:"hasPrevPage"`
	HasNextPage   bool `json:"hasNextPage"`
	PrevPage      *int `json:"prevPage"`
	NextPage      *int `json:"nextPage"`
}

// emptyPage is returned by list operations when the CMS is unreachable.
func emptyPage[T any](limit, page int) *Paged[T] {
	return &Paged[T]{Docs: []T{}, Limit: limit, Page: page}
}

type Tenant struct {
	ID   ID     `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Relation is a relationship field that is either an id or a populated
// document depending on the request depth.
type Relation json.RawMessage

func (r *Relation) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

func (r Relation) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// ID returns the related document id whether or not it was populated.
func (r Relation) ID() ID {
	var id ID
	if err := json.Unmarshal(r, &id); err == nil && id != "" {
		return id
	}
	var doc struct {
		ID ID `json:"id"`
	}
	_ = json.Unmarshal(r, &doc)
	return doc.ID
}

type Homepage struct {
	ID       ID                `json:"id"`
	Sections []json.RawMessage `json:"sections"`
	Tenant   Relation          `json:"tenant"`
	Status   string            `json:"status"`
}

type Page struct {
	ID       ID                `json:"id"`
	Title    string            `json:"title"`
	Slug     string            `json:"slug"`
	Sections []json.RawMessage `json:"sections"`
	Tenant   Relation          `json:"tenant"`
	Status   string            `json:"status"`
}

type Post struct {
	ID            ID              `json:"id"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Excerpt       json.RawMessage `json:"excerpt"`
	Content       json.RawMessage `json:"content"`
	PublishedAt   *time.Time      `json:"publishedAt"`
	FeaturedImage json.RawMessage `json:"featuredImage"`
	Tenant        Relation        `json:"tenant"`
	Status        string          `json:"status"`
}

// ExcerptText returns the excerpt as plain text; it may be stored as a
// string or as rich text.
func (p *Post) ExcerptText() string {
	return richtext.ExtractText(json.RawMessage(p.Excerpt))
}

type FormOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FormField is one input of a CMS form. Type is one of text, email, tel,
// textarea, number, select or checkbox.
type FormField struct {
	Type        string       `json:"type"`
	BlockType   string       `json:"blockType"`
	Label       string       `json:"label"`
	Name        string       `json:"name"`
	Required    bool         `json:"required"`
	Placeholder string       `json:"placeholder"`
	Options     []FormOption `json:"options"`
}

// Kind returns the field type, falling back to the form-builder block type.
func (f FormField) Kind() string {
	if f.Type != "" {
		return f.Type
	}
	if f.BlockType != "" {
		return f.BlockType
	}
	return "text"
}

type Form struct {
	ID             ID          `json:"id"`
	Name           string      `json:"name"`
	Slug           string      `json:"slug"`
	Fields         []FormField `json:"fields"`
	SuccessMessage string      `json:"successMessage"`
	RedirectURL    string      `json:"redirectUrl"`
	Status         string      `json:"status"`
}

// Active reports whether the form accepts submissions.
func (f *Form) Active() bool {
	return f != nil && f.Status == "active"
}

// SubmitResult is the outcome of a form submission.
type SubmitResult struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	RedirectURL string            `json:"redirectUrl,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
}
