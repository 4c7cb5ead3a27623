package blocks

import (
	"fmt"
	"html/template"
)

type ProgramCard struct {
	Title       Str   `json:"title"`
	Description Rich  `json:"description"`
	Image       Image `json:"image"`
	ImageAlt    Str   `json:"imageAlt"`
	ButtonLabel Str   `json:"buttonLabel"`
	ButtonURL   Str   `json:"buttonUrl"`
}

type ProgramsGrid struct {
	base
	Title    Str               `json:"title"`
	Subtitle Str               `json:"subtitle"`
	Programs List[ProgramCard] `json:"programs"`
}

type programCardView struct {
	Title       string
	Description string
	Image       string
	ImageAlt    string
	ButtonLabel string
	ButtonURL   string
}

func (g *ProgramsGrid) Render(rc *RenderContext) (template.HTML, error) {
	if len(g.Programs) == 0 {
		return "", nil
	}
	cards := make([]programCardView, 0, len(g.Programs))
	for _, p := range g.Programs {
		title := p.Title.String()
		cards = append(cards, programCardView{
			Title:       title,
			Description: p.Description.Text(),
			Image:       rc.image(p.Image),
			ImageAlt:    p.ImageAlt.Or(title),
			ButtonLabel: p.ButtonLabel.Or("Μάθετε Περισσότερα"),
			ButtonURL:   linkURL(p.ButtonURL.String()),
		})
	}
	return execute("programs-grid", map[string]any{
		"Title":    g.Title.String(),
		"Subtitle": g.Subtitle.String(),
		"Programs": cards,
	})
}

type GalleryItem struct {
	Image       Image `json:"image"`
	ImageAlt    Str   `json:"imageAlt"`
	Title       Str   `json:"title"`
	Description Rich  `json:"description"`
}

type ImageGallery struct {
	base
	Title    Str               `json:"title"`
	Subtitle Str               `json:"subtitle"`
	Images   List[GalleryItem] `json:"images"`
}

type galleryItemView struct {
	Image       string
	ImageAlt    string
	Title       string
	Description string
}

func (g *ImageGallery) Render(rc *RenderContext) (template.HTML, error) {
	if len(g.Images) == 0 {
		return "", nil
	}
	items := make([]galleryItemView, 0, len(g.Images))
	for i, it := range g.Images {
		items = append(items, galleryItemView{
			Image:       rc.image(it.Image),
			ImageAlt:    it.ImageAlt.Or(it.Title.Or(fmt.Sprintf("Gallery image %d", i+1))),
			Title:       it.Title.String(),
			Description: it.Description.Text(),
		})
	}
	return execute("image-gallery", map[string]any{
		"Title":    g.Title.String(),
		"Subtitle": g.Subtitle.String(),
		"Images":   items,
	})
}

type NewsItem struct {
	Title         Str   `json:"title"`
	Date          Str   `json:"date"`
	Excerpt       Rich  `json:"excerpt"`
	Image         Image `json:"image"`
	ImageAlt      Str   `json:"imageAlt"`
	ReadMoreLabel Str   `json:"readMoreLabel"`
	ReadMoreURL   Str   `json:"readMoreUrl"`
}

type NewsGrid struct {
	base
	Title       Str            `json:"title"`
	Subtitle    Str            `json:"subtitle"`
	ButtonLabel Str            `json:"buttonLabel"`
	ButtonURL   Str            `json:"buttonUrl"`
	NewsItems   List[NewsItem] `json:"newsItems"`
}

type newsItemView struct {
	Title         string
	Date          string
	Excerpt       string
	Image         string
	ImageAlt      string
	ReadMoreLabel string
	ReadMoreURL   string
}

func (g *NewsGrid) Render(rc *RenderContext) (template.HTML, error) {
	if len(g.NewsItems) == 0 {
		return "", nil
	}
	buttonURL := linkURL(g.ButtonURL.Or("/news"))
	if buttonURL == "" {
		buttonURL = "/news"
	}
	items := make([]newsItemView, 0, len(g.NewsItems))
	for _, it := range g.NewsItems {
		title := it.Title.String()
		readMore := linkURL(it.ReadMoreURL.Or(buttonURL))
		if readMore == "" {
			readMore = buttonURL
		}
		items = append(items, newsItemView{
			Title:         title,
			Date:          it.Date.String(),
			Excerpt:       it.Excerpt.Text(),
			Image:         rc.image(it.Image),
			ImageAlt:      it.ImageAlt.Or(title),
			ReadMoreLabel: it.ReadMoreLabel.Or("Διαβάστε περισσότερα"),
			ReadMoreURL:   readMore,
		})
	}
	return execute("news-grid", map[string]any{
		"Title":       g.Title.String(),
		"Subtitle":    g.Subtitle.String(),
		"ButtonLabel": g.ButtonLabel.Or("Όλα τα Νέα"),
		"ButtonURL":   buttonURL,
		"Items":       items,
	})
}

type Sponsor struct {
	Logo Image `json:"logo"`
	Name Str   `json:"name"`
}

type Sponsors struct {
	base
	Title    Str           `json:"title"`
	Subtitle Str           `json:"subtitle"`
	Sponsors List[Sponsor] `json:"sponsors"`
}

type sponsorView struct {
	Logo string
	Name string
}

// placeholderSponsors is how many empty slots are shown before any sponsor
// is entered in the CMS.
const placeholderSponsors = 6

func (s *Sponsors) Render(rc *RenderContext) (template.HTML, error) {
	var items []sponsorView
	if len(s.Sponsors) == 0 {
		for i := range placeholderSponsors {
			items = append(items, sponsorView{Name: fmt.Sprintf("Χορηγός %d", i+1)})
		}
	} else {
		for i, sp := range s.Sponsors {
			items = append(items, sponsorView{
				Logo: rc.image(sp.Logo),
				Name: sp.Name.Or(fmt.Sprintf("Χορηγός %d", i+1)),
			})
		}
	}
	return execute("sponsors", map[string]any{
		"Title":    s.Title.String(),
		"Subtitle": s.Subtitle.String(),
		"Sponsors": items,
	})
}
