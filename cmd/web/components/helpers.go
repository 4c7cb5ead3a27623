package components

import (
	"encoding/json"
	"html/template"
	"strings"

	bf "github.com/russross/blackfriday"

	"github.com/rubiojr/kallitechnia/cmd/web/components/types"
	"github.com/rubiojr/kallitechnia/pkg/blocks"
	"github.com/rubiojr/kallitechnia/pkg/cms"
	"github.com/rubiojr/kallitechnia/pkg/media"
	"github.com/rubiojr/kallitechnia/pkg/richtext"
)

var navigation = []types.NavItem{
	{Href: "/", Label: "Αρχική"},
	{Href: "/about", Label: "Ο Σύλλογος"},
	{Href: "/news", Label: "Νέα"},
	{Href: "/programs", Label: "Πρόγραμμα"},
	{Href: "/registration", Label: "Εγγραφές"},
	{Href: "/contact", Label: "Επικοινωνία"},
}

// NavItems returns the site navigation with the entry for path marked
// active. Nested paths such as /news/{slug} activate their parent.
func NavItems(path string) []types.NavItem {
	items := make([]types.NavItem, len(navigation))
	for i, item := range navigation {
		switch {
		case item.Href == "/":
			item.Active = path == "/"
		default:
			item.Active = path == item.Href || strings.HasPrefix(path, item.Href+"/")
		}
		items[i] = item
	}
	return items
}

// NewsCards converts posts to listing cards. Posts without a usable
// featured image get fallback.
func NewsCards(posts []cms.Post, m *media.Resolver, fallback string) []types.NewsCard {
	cards := make([]types.NewsCard, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		cards = append(cards, types.NewsCard{
			Title:   p.Title,
			Href:    "/news/" + p.Slug,
			Date:    postDate(p),
			Excerpt: p.ExcerptText(),
			Image:   imageOr(m, p.FeaturedImage, fallback),
		})
	}
	return cards
}

// NewPostView prepares a single post. The body is the rich-text content,
// sanitized; without content the excerpt is shown instead.
func NewPostView(p *cms.Post, m *media.Resolver) *types.PostView {
	v := &types.PostView{
		Title:   p.Title,
		Excerpt: p.ExcerptText(),
		Date:    postDate(p),
		Image:   imageOr(m, p.FeaturedImage, ""),
	}
	if len(p.Content) > 0 {
		if html := richtext.RenderValue(json.RawMessage(p.Content)); html != "" {
			v.Content = richtext.Sanitize(string(html))
		}
	}
	return v
}

// Markdown renders static page content. Output is sanitized with the same
// policy as CMS rich text.
func Markdown(src []byte) template.HTML {
	html := bf.Markdown(src, bf.HtmlRenderer(0, "", ""), bf.EXTENSION_TABLES|bf.EXTENSION_AUTOLINK)
	return richtext.Sanitize(string(html))
}

func postDate(p *cms.Post) string {
	if p.PublishedAt == nil {
		return ""
	}
	return blocks.FormatDate(*p.PublishedAt)
}

func imageOr(m *media.Resolver, raw json.RawMessage, fallback string) string {
	if len(raw) > 0 {
		if u := m.ExtractImageURL(raw); u != "" {
			return u
		}
	}
	return fallback
}
