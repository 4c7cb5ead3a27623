package blocks

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/rubiojr/kallitechnia/pkg/cms"
	"github.com/rubiojr/kallitechnia/pkg/forms"
)

// Form embeds a CMS form. The form reference may be an id or slug string,
// an object carrying slug, id or _id, or a fully populated form.
type Form struct {
	base
	Ref         json.RawMessage `json:"form"`
	Title       Str             `json:"title"`
	Description Rich            `json:"description"`
}

type formFieldView struct {
	cms.FormField
	Input   string
	ID      string
	Value   string
	Checked bool
	Error   string
}

type formView struct {
	Title       string
	Description template.HTML
	Action      string
	Return      string
	Fields      []formFieldView
	Status      string
	Message     string
}

func (f *Form) Render(rc *RenderContext) (template.HTML, error) {
	form := f.resolve(rc)
	if form == nil || !form.Active() {
		return "", nil
	}

	var state *forms.State
	if rc.Page.Form.Matches(form) {
		state = rc.Page.Form
	}

	slug := form.Slug
	if slug == "" {
		slug = form.ID.String()
	}
	v := formView{
		Title:       f.Title.Or(form.Name),
		Description: f.Description.HTML(),
		Action:      "/forms/" + slug,
		Return:      rc.Page.Path,
	}
	if state != nil {
		v.Status = string(state.Status)
		v.Message = state.Message
	}
	for _, field := range form.Fields {
		fv := formFieldView{FormField: field, Input: field.Kind(), ID: "field-" + field.Name}
		// A successful submission clears the inputs.
		if state != nil && state.Status != forms.StatusSuccess {
			fv.Value = state.Value(field.Name)
			fv.Checked = state.Checked(field.Name)
			fv.Error = state.Error(field.Name)
		}
		v.Fields = append(v.Fields, fv)
	}
	return execute("form", v)
}

func (f *Form) resolve(rc *RenderContext) *cms.Form {
	raw := bytes.TrimSpace(f.Ref)
	if len(raw) == 0 {
		return nil
	}

	if isObject(raw) && gjson.GetBytes(raw, "fields").IsArray() {
		var form cms.Form
		if err := json.Unmarshal(raw, &form); err != nil {
			rc.Warn("form-decode-"+strconv.Itoa(rc.Index), "Cannot decode populated form at index %d: %v", rc.Index, err)
			return nil
		}
		if form.ID == "" {
			form.ID = cms.ID(gjson.GetBytes(raw, "_id").String())
		}
		return &form
	}

	ref := formRef(raw)
	if ref == "" {
		return nil
	}
	if rc.Forms == nil {
		rc.Warn("form-source", "No form source configured, cannot load form %q", ref)
		return nil
	}
	form, err := rc.Forms.FormByIDOrSlug(rc.Ctx, ref)
	if err != nil || form == nil {
		rc.Warn("form-missing-"+ref, "Form not found by slug/ID: %s", ref)
		return nil
	}
	return form
}

// formRef extracts the lookup key from a reference that is not populated.
func formRef(raw json.RawMessage) string {
	res := gjson.ParseBytes(raw)
	switch {
	case res.Type == gjson.String, res.Type == gjson.Number:
		return res.String()
	case res.IsObject():
		for _, key := range []string{"slug", "id", "_id"} {
			if v := res.Get(key); truthy(v) {
				return v.String()
			}
		}
	}
	return ""
}
