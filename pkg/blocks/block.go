package blocks

import (
	"context"
	"html/template"
	"sort"

	"github.com/rubiojr/kallitechnia/pkg/cms"
	"github.com/rubiojr/kallitechnia/pkg/forms"
	"github.com/rubiojr/kallitechnia/pkg/media"
)

// Block is one parsed page section.
type Block interface {
	// Kind returns the full namespaced kind, e.g. "kallitechnia.hero".
	Kind() string
	Render(rc *RenderContext) (template.HTML, error)
}

// Logger is the diagnostics port of the pipeline.
type Logger interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// FormSource resolves form references that were not populated by the CMS.
type FormSource interface {
	FormByIDOrSlug(ctx context.Context, idOrSlug string) (*cms.Form, error)
}

// PageContext describes the page hosting the sections.
type PageContext struct {
	PageSlug   string
	IsHomepage bool
	// Path is the request path, posted back by forms so the result can be
	// shown on the same page.
	Path string
	// Form carries a submission outcome to re-render a form with.
	Form *forms.State
}

// RenderContext is handed to each block renderer.
type RenderContext struct {
	Ctx   context.Context
	Page  PageContext
	Index int
	Kind  string
	Media *media.Resolver
	Forms FormSource
	Dev   bool

	pass *Pass
}

// Padding is the vertical padding of text sections. The first five
// sections of the about page are packed tighter.
func (rc *RenderContext) Padding() string {
	if rc.Page.PageSlug == "about" && rc.Index < 5 {
		return "py-4"
	}
	return "py-20"
}

// Warn logs once per render pass under key.
func (rc *RenderContext) Warn(key, format string, args ...any) {
	if rc.pass != nil {
		rc.pass.warnOnce(key, format, args...)
	}
}

func (rc *RenderContext) image(img Image) string {
	return img.URL(rc.Media)
}

type base struct {
	kind string
}

func (b *base) Kind() string { return b.kind }
func (b *base) setKind(k string) { b.kind = k }

type decodable interface {
	Block
	setKind(string)
}

// registry maps block names to constructors. It is fixed at compile time.
var registry = map[string]func() decodable{
	"hero":          func() decodable { return &Hero{} },
	"welcome":       func() decodable { return &Welcome{} },
	"programsGrid":  func() decodable { return &ProgramsGrid{} },
	"imageGallery":  func() decodable { return &ImageGallery{} },
	"newsGrid":      func() decodable { return &NewsGrid{} },
	"sponsors":      func() decodable { return &Sponsors{} },
	"cta":           func() decodable { return &CTABanner{} },
	"ctaBanner":     func() decodable { return &CTABanner{} },
	"richText":      func() decodable { return &RichText{} },
	"quote":         func() decodable { return &Quote{} },
	"slogan":        func() decodable { return &Slogan{} },
	"imageText":     func() decodable { return &ImageText{} },
	"programDetail": func() decodable { return &ProgramDetail{} },
	"form":          func() decodable { return &Form{} },
}

// Kinds lists the registered block names, sorted.
func Kinds() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
