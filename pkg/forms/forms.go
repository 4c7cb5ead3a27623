// Package forms validates CMS form submissions and carries the state needed
// to re-render a form after a POST.
package forms

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rubiojr/kallitechnia/pkg/cms"
)

const (
	MsgSuccess = "Thank you! Your submission has been received."
	MsgFailed  = "Failed to submit form. Please try again."
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Status of a submission attempt as shown to the visitor.
type Status string

const (
	StatusNone    Status = ""
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is the per-request view of a form: what the visitor typed, the
// field errors and the outcome banner. It is attached to the render context
// of the page that hosts the form.
type State struct {
	Slug    string
	Values  map[string]any
	Errors  map[string]string
	Status  Status
	Message string
}

// Matches reports whether the state belongs to form f.
func (s *State) Matches(f *cms.Form) bool {
	if s == nil || f == nil {
		return false
	}
	return s.Slug != "" && (s.Slug == f.Slug || s.Slug == f.ID.String())
}

// Value returns the submitted value for a field as a string.
func (s *State) Value(name string) string {
	if s == nil {
		return ""
	}
	switch v := s.Values[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Checked reports whether a checkbox field was ticked.
func (s *State) Checked(name string) bool {
	if s == nil {
		return false
	}
	b, _ := s.Values[name].(bool)
	return b
}

// Error returns the validation message for a field, if any.
func (s *State) Error(name string) string {
	if s == nil {
		return ""
	}
	return s.Errors[name]
}

// InitialValues returns the empty value set for a form: false for
// checkboxes, "" for everything else.
func InitialValues(f *cms.Form) map[string]any {
	values := make(map[string]any, len(f.Fields))
	for _, field := range f.Fields {
		if field.Kind() == "checkbox" {
			values[field.Name] = false
		} else {
			values[field.Name] = ""
		}
	}
	return values
}

// ValuesFromRequest picks the form's fields out of posted values.
// Checkboxes become booleans and numeric fields become numbers when they
// parse; unknown keys are ignored.
func ValuesFromRequest(f *cms.Form, posted url.Values) map[string]any {
	values := InitialValues(f)
	for _, field := range f.Fields {
		raw := strings.TrimSpace(posted.Get(field.Name))
		switch field.Kind() {
		case "checkbox":
			values[field.Name] = raw != "" && raw != "false" && raw != "off"
		case "number":
			if n, err := strconv.ParseFloat(raw, 64); err == nil {
				values[field.Name] = n
			} else {
				values[field.Name] = raw
			}
		default:
			values[field.Name] = raw
		}
	}
	return values
}

// Validate checks required fields and email syntax. The returned map is
// keyed by field name and empty when the submission is valid.
func Validate(f *cms.Form, values map[string]any) map[string]string {
	errs := map[string]string{}
	for _, field := range f.Fields {
		v := values[field.Name]
		if field.Required && !present(v) {
			errs[field.Name] = fmt.Sprintf("%s is required", field.Label)
		}
		if s, ok := v.(string); ok && s != "" && field.Kind() == "email" {
			if !emailPattern.MatchString(s) {
				errs[field.Name] = fmt.Sprintf("%s must be a valid email", field.Label)
			}
		}
	}
	return errs
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	}
	return true
}
