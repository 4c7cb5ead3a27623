package components

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/kallitechnia/cmd/web/components/types"
	"github.com/rubiojr/kallitechnia/pkg/cms"
	"github.com/rubiojr/kallitechnia/pkg/media"
)

func renderString(t *testing.T, name string, data types.PageData) string {
	t.Helper()
	var b strings.Builder
	if err := page(name, data).Render(context.Background(), &b); err != nil {
		t.Fatalf("render %s: %v", name, err)
	}
	return b.String()
}

func TestNavItems(t *testing.T) {
	tests := []struct {
		path   string
		active string
	}{
		{"/", "/"},
		{"/about", "/about"},
		{"/news/first-post", "/news"},
		{"/newsletter", ""},
		{"/terms", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var active []string
			for _, item := range NavItems(tt.path) {
				if item.Active {
					active = append(active, item.Href)
				}
			}
			if tt.active == "" {
				if len(active) != 0 {
					t.Errorf("expected no active item, got %v", active)
				}
				return
			}
			if len(active) != 1 || active[0] != tt.active {
				t.Errorf("active = %v, want %s", active, tt.active)
			}
		})
	}
}

func TestNewsCards(t *testing.T) {
	published := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	posts := []cms.Post{
		{
			Title:         "Πανελλήνιοι Αγώνες",
			Slug:          "panellinioi",
			Excerpt:       json.RawMessage(`"Χρυσό μετάλλιο"`),
			PublishedAt:   &published,
			FeaturedImage: json.RawMessage(`{"url":"/api/media/file/medal.jpg"}`),
		},
		{Title: "Χωρίς εικόνα", Slug: "no-image"},
	}

	cards := NewsCards(posts, media.NewResolver("https://cms.example.org"), "https://img.example.org/fallback.jpg")
	if len(cards) != 2 {
		t.Fatalf("got %d cards", len(cards))
	}
	if cards[0].Href != "/news/panellinioi" {
		t.Errorf("href = %q", cards[0].Href)
	}
	if cards[0].Date != "15 Μαρτίου 2025" {
		t.Errorf("date = %q", cards[0].Date)
	}
	if cards[0].Excerpt != "Χρυσό μετάλλιο" {
		t.Errorf("excerpt = %q", cards[0].Excerpt)
	}
	if cards[0].Image != "https://cms.example.org/api/media/file/medal.jpg" {
		t.Errorf("image = %q", cards[0].Image)
	}
	if cards[1].Image != "https://img.example.org/fallback.jpg" {
		t.Errorf("fallback image = %q", cards[1].Image)
	}
	if cards[1].Date != "" {
		t.Errorf("unpublished post should have no date, got %q", cards[1].Date)
	}
}

func TestNewPostView(t *testing.T) {
	p := &cms.Post{
		Title:   "Νέα σεζόν",
		Excerpt: json.RawMessage(`"Ξεκινάμε"`),
		Content: json.RawMessage(`{"root":{"children":[{"type":"paragraph","children":[{"type":"text","text":"Καλή αρχή <σε όλους>","format":1}]}]}}`),
	}
	v := NewPostView(p, media.NewResolver(""))
	content := string(v.Content)
	if !strings.Contains(content, "<strong>Καλή αρχή &lt;σε όλους&gt;</strong>") {
		t.Errorf("unexpected content %s", content)
	}

	p.Content = nil
	if v := NewPostView(p, media.NewResolver("")); v.Content != "" || v.Excerpt != "Ξεκινάμε" {
		t.Errorf("expected excerpt only, got %+v", v)
	}
}

func TestMarkdownSanitized(t *testing.T) {
	html := string(Markdown([]byte("## Όροι\n\nΚείμενο <script>alert(1)</script> [link](https://example.org)\n")))
	if !strings.Contains(html, "<h2>Όροι</h2>") {
		t.Errorf("missing heading: %s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("script survived sanitizing: %s", html)
	}
	if !strings.Contains(html, `href="https://example.org"`) {
		t.Errorf("missing link: %s", html)
	}
}

func TestPageRendering(t *testing.T) {
	t.Run("empty state", func(t *testing.T) {
		out := renderString(t, "page", types.PageData{
			Title: "Ο Σύλλογος",
			Path:  "/about",
			Nav:   NavItems("/about"),
			Empty: "Το περιεχόμενο αυτής της σελίδας προετοιμάζεται.",
		})
		for _, want := range []string{
			"<title>Ο Σύλλογος | Γυμναστική Καλλιτεχνία Κεφαλονιάς</title>",
			"Το περιεχόμενο αυτής της σελίδας προετοιμάζεται.",
			`aria-current="page"`,
			`href="mailto:info@kallitechnia-kefalonia.gr"`,
			`href="tel:+301234567890"`,
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
		if strings.Contains(out, "/ws/reload") {
			t.Error("live reload script rendered outside dev mode")
		}
	})

	t.Run("sections win over empty state", func(t *testing.T) {
		out := renderString(t, "page", types.PageData{
			Title:    "Τμήματα",
			Sections: `<section id="programs">grid</section>`,
			Empty:    "κενό",
			Dev:      true,
		})
		if !strings.Contains(out, `<section id="programs">grid</section>`) {
			t.Error("sections not rendered")
		}
		if strings.Contains(out, "κενό") {
			t.Error("empty state rendered alongside sections")
		}
		if !strings.Contains(out, "/ws/reload") {
			t.Error("live reload script missing in dev mode")
		}
	})

	t.Run("news listing", func(t *testing.T) {
		out := renderString(t, "news", types.PageData{
			Title: "Νέα & Ανακοινώσεις",
			Posts: []types.NewsCard{{Title: "Αγώνες", Href: "/news/agones", Image: "/x.jpg"}},
		})
		if !strings.Contains(out, `href="/news/agones"`) {
			t.Error("missing post link")
		}
	})

	t.Run("contact cards linkify", func(t *testing.T) {
		out := renderString(t, "contact", types.PageData{Title: "Επικοινωνία"})
		if !strings.Contains(out, `href="mailto:contact@kallitechnia-kefalonia.gr"`) {
			t.Error("contact email not linked")
		}
		if !strings.Contains(out, "Πού Βρισκόμαστε") {
			t.Error("map fallback missing")
		}
	})
}
