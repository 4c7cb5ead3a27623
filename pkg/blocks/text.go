package blocks

import (
	"html/template"
	"strings"
)

// CTABanner is registered under both "cta" (the CMS name) and the older
// "ctaBanner".
type CTABanner struct {
	base
	Title       Str  `json:"title"`
	Description Rich `json:"description"`
	ButtonLabel Str  `json:"buttonLabel"`
	ButtonURL   Str  `json:"buttonUrl"`
}

func (c *CTABanner) Render(rc *RenderContext) (template.HTML, error) {
	return execute("cta-banner", map[string]any{
		"Title":       c.Title.String(),
		"Description": c.Description.Text(),
		"ButtonLabel": c.ButtonLabel.String(),
		"ButtonURL":   linkURL(c.ButtonURL.String()),
		"Dev":         rc.Dev,
	})
}

type Quote struct {
	base
	Text Rich `json:"text"`
}

func (q *Quote) Render(rc *RenderContext) (template.HTML, error) {
	text := q.Text.Text()
	if text == "" {
		return "", nil
	}
	return execute("quote", map[string]any{"Padding": rc.Padding(), "Text": text})
}

const sloganHeading = "Σύνθημα του συλλόγου μας είναι:"

type Slogan struct {
	base
	Text Rich `json:"text"`
}

func (s *Slogan) Render(rc *RenderContext) (template.HTML, error) {
	text := s.Text.Text()
	if text == "" {
		return "", nil
	}
	return execute("slogan", map[string]any{
		"Padding": rc.Padding(),
		"Heading": sloganHeading,
		"Parts":   sloganParts(text),
	})
}

// sloganParts splits a slogan into lines at each comma.
func sloganParts(text string) []string {
	parts := strings.Split(text, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

type ImageText struct {
	base
	Title         Str   `json:"title"`
	Content       Rich  `json:"content"`
	Image         Image `json:"image"`
	ImageAlt      Str   `json:"imageAlt"`
	ImagePosition Str   `json:"imagePosition"`
}

func (it *ImageText) Render(rc *RenderContext) (template.HTML, error) {
	title := it.Title.String()
	content := it.Content.Paragraphs()
	if title == "" && len(content) == 0 {
		return "", nil
	}
	return execute("image-text", map[string]any{
		"Padding":  rc.Padding(),
		"Title":    title,
		"Content":  content,
		"Image":    rc.image(it.Image),
		"ImageAlt": it.ImageAlt.Or(title),
		"Right":    imageOnRight(it.ImagePosition),
	})
}

func imageOnRight(pos Str) bool {
	return strings.EqualFold(strings.TrimSpace(pos.String()), "right")
}

type RichText struct {
	base
	Title    Str  `json:"title"`
	Subtitle Str  `json:"subtitle"`
	Content  Rich `json:"content"`
}

func (r *RichText) Render(rc *RenderContext) (template.HTML, error) {
	if r.Content.Empty() {
		return "", nil
	}
	return execute("rich-text", map[string]any{
		"Padding":  rc.Padding(),
		"Title":    r.Title.String(),
		"Subtitle": r.Subtitle.String(),
		"Content":  r.Content.HTML(),
	})
}
