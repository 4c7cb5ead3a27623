package blocks

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	tmplOnce sync.Once
	tmpl     *template.Template
	tmplErr  error
)

func templates() (*template.Template, error) {
	tmplOnce.Do(func() {
		tmpl, tmplErr = template.New("blocks").Funcs(TemplateFuncs()).ParseFS(templateFS, "templates/*.html")
	})
	return tmpl, tmplErr
}

// execute renders the named template with data.
func execute(name string, data any) (template.HTML, error) {
	t, err := templates()
	if err != nil {
		return "", fmt.Errorf("parsing templates: %w", err)
	}
	var buf strings.Builder
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("executing %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// accent cycles card colors every four items.
var accents = []string{"primary", "secondary", "accent", "primary"}

// TemplateFuncs returns the helpers available to section templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"accent": func(i int) string { return accents[i%len(accents)] },
		"delay": func(i int) template.CSS {
			return template.CSS(fmt.Sprintf("animation-delay: %gs", float64(i+1)/10))
		},
		"add":  func(a, b int) int { return a + b },
		"last": func(i, n int) bool { return i == n-1 },
		"truncate": func(s string, length int) string {
			r := []rune(s)
			if len(r) <= length {
				return s
			}
			if length <= 3 {
				return string(r[:length])
			}
			return string(r[:length-3]) + "..."
		},
		"default": func(def, val string) string {
			if strings.TrimSpace(val) == "" {
				return def
			}
			return val
		},
		"formatDate": FormatDate,
		// Greek casing drops the tonos when upper-casing.
		"upper": func(s string) string { return cases.Upper(language.Greek).String(s) },
		"title": func(s string) string { return cases.Title(language.Greek).String(s) },
	}
}

var greekMonths = [...]string{
	"Ιανουαρίου", "Φεβρουαρίου", "Μαρτίου", "Απριλίου", "Μαΐου", "Ιουνίου",
	"Ιουλίου", "Αυγούστου", "Σεπτεμβρίου", "Οκτωβρίου", "Νοεμβρίου", "Δεκεμβρίου",
}

// FormatDate formats t as a long Greek date, e.g. "15 Ιανουαρίου 2025".
// The month is in the genitive case as Greek dates require.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s %d", t.Day(), greekMonths[t.Month()-1], t.Year())
}
