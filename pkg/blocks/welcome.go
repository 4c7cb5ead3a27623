package blocks

import "html/template"

const (
	welcomeImage    = "https://hebbkx1anhila5yf.public.blob.vercel-storage.com/IMG_6321-EPivdvbOD9wX1IPMd2dA4e3aZlVtiE.jpeg"
	welcomeImageAlt = "Ελένη Δαρδαμάνη - Ιδρύτρια"
)

type Welcome struct {
	base
	Image      Image `json:"image"`
	Title      Str   `json:"title"`
	Paragraphs Rich  `json:"paragraphs"`
}

type welcomeView struct {
	Image      string
	ImageAlt   string
	Title      string
	Paragraphs []string
}

func (w *Welcome) Render(rc *RenderContext) (template.HTML, error) {
	img := rc.image(w.Image)
	if img == "" {
		img = welcomeImage
	}
	return execute("welcome", welcomeView{
		Image:      img,
		ImageAlt:   welcomeImageAlt,
		Title:      w.Title.String(),
		Paragraphs: w.Paragraphs.Paragraphs(),
	})
}
