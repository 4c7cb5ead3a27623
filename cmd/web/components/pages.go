// Package components renders the site pages. Every page is a templ
// component backed by the embedded html/template set, so handlers render
// them the same way whatever the page.
package components

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"sync"

	"github.com/a-h/templ"

	"github.com/rubiojr/kallitechnia/cmd/web/components/types"
	"github.com/rubiojr/kallitechnia/pkg/blocks"
	"github.com/rubiojr/kallitechnia/pkg/contact"
	"github.com/rubiojr/kallitechnia/pkg/realtime"
)

//go:embed templates/*.html
var templateFS embed.FS

// LogoURL is the club logo shown in the navigation and the footer.
const LogoURL = "https://hebbkx1anhila5yf.public.blob.vercel-storage.com/Logo%20KGK%20%CF%85%CF%88%CE%B7%CE%BB%CE%AE%CF%82%20%CE%B1%CE%BD%CE%AC%CE%BB%CF%85%CF%83%CE%B7%CF%82-YP2dWdAD9HKxgCBQOBLccXnxTydRcQ.png"

var (
	pagesOnce sync.Once
	pages     *template.Template
	pagesErr  error
)

type infoCard struct {
	Title  string
	Accent string
	Link   bool
	Lines  []string
}

func funcs() template.FuncMap {
	fm := blocks.TemplateFuncs()
	fm["linkify"] = contact.Linkify
	fm["logoURL"] = func() string { return LogoURL }
	fm["liveReload"] = func() template.HTML { return template.HTML(realtime.Script) }
	fm["card"] = func(title, accent string, link bool, lines ...string) infoCard {
		return infoCard{Title: title, Accent: accent, Link: link, Lines: lines}
	}
	return fm
}

func parsed() (*template.Template, error) {
	pagesOnce.Do(func() {
		pages, pagesErr = template.New("pages").Funcs(funcs()).ParseFS(templateFS, "templates/*.html")
	})
	return pages, pagesErr
}

func page(name string, data types.PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, err := parsed()
		if err != nil {
			return fmt.Errorf("parsing page templates: %w", err)
		}
		return t.ExecuteTemplate(w, name, data)
	})
}

// Home renders the homepage sections without a page header.
func Home(data types.PageData) templ.Component { return page("home", data) }

// Page renders a CMS page: gradient header, then sections, static body or
// the empty-state message.
func Page(data types.PageData) templ.Component { return page("page", data) }

func Contact(data types.PageData) templ.Component { return page("contact", data) }

func Registration(data types.PageData) templ.Component { return page("registration", data) }

func News(data types.PageData) templ.Component { return page("news", data) }

func Post(data types.PageData) templ.Component { return page("post", data) }

func NotFound(data types.PageData) templ.Component { return page("notfound", data) }

// Debug renders the CMS connectivity report served in dev mode.
func Debug(data types.PageData) templ.Component { return page("debug", data) }
