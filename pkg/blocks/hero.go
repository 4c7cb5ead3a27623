package blocks

import "html/template"

const heroImageAlt = "Προπόνηση γυμναστικής"

// Hero is the page header. With a background image it renders the full
// homepage hero; without one it falls back to the gradient header used by
// inner pages.
type Hero struct {
	base
	Title           Str   `json:"title"`
	Subtitle        Str   `json:"subtitle"`
	BackgroundImage Image `json:"backgroundImage"`
	CTALabel        Str   `json:"ctaLabel"`
	CTAURL          Str   `json:"ctaUrl"`
}

type heroView struct {
	Title    string
	Subtitle string
	Image    string
	ImageAlt string
	CTALabel string
	CTAURL   string
}

func (h *Hero) Render(rc *RenderContext) (template.HTML, error) {
	v := heroView{
		Title:    h.Title.String(),
		Subtitle: h.Subtitle.String(),
		Image:    rc.image(h.BackgroundImage),
		ImageAlt: heroImageAlt,
		CTALabel: h.CTALabel.String(),
		CTAURL:   linkURL(h.CTAURL.String()),
	}
	if v.Image != "" {
		return execute("hero-image", v)
	}
	return execute("hero-gradient", v)
}
