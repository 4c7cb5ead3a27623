package richtext

import (
	"html/template"
	"strconv"
	"strings"
)

// formatTags lists inline wrappers from innermost to outermost.
var formatTags = []struct {
	flag Format
	tag  string
}{
	{Bold, "strong"},
	{Italic, "em"},
	{Strikethrough, "del"},
	{Underline, "u"},
	{Code, "code"},
}

// Render renders a normalized document to HTML. Text is always escaped.
func Render(doc Document) template.HTML {
	return RenderNodes(doc.Root.Children)
}

// RenderValue normalizes v and renders it.
func RenderValue(v any) template.HTML {
	return Render(Normalize(v))
}

// RenderNodes renders a list of sibling nodes.
func RenderNodes(nodes []Node) template.HTML {
	var b strings.Builder
	for _, n := range nodes {
		renderNode(&b, n)
	}
	return template.HTML(b.String())
}

func renderNode(b *strings.Builder, n Node) {
	if n.IsText() {
		renderText(b, n)
		return
	}
	if n.Type == KindLineBreak {
		b.WriteString("<br>")
		return
	}

	var inner strings.Builder
	for _, child := range n.Children {
		renderNode(&inner, child)
	}
	if inner.Len() == 0 {
		return
	}
	body := inner.String()

	switch n.Type {
	case KindParagraph:
		wrapElement(b, "p", `class="text-lg leading-relaxed text-muted-foreground"`, body)
	case KindHeading:
		tag := "h" + strconv.Itoa(n.HeadingLevel())
		wrapElement(b, tag, `class="text-2xl font-bold text-primary mb-4"`, body)
	case KindList:
		tag := "ul"
		if n.Ordered() {
			tag = "ol"
		}
		wrapElement(b, tag, `class="list-disc list-inside space-y-2 mb-4"`, body)
	case KindListItem, "list-item":
		wrapElement(b, "li", `class="mb-2"`, body)
	case KindLink:
		href := SafeHref(n.URL)
		attrs := `href="` + template.HTMLEscapeString(href) + `"`
		if IsExternal(href) {
			attrs += ` target="_blank" rel="noopener noreferrer"`
		}
		wrapElement(b, "a", attrs+` class="text-primary hover:underline"`, body)
	default:
		wrapElement(b, "div", `class="mb-4"`, body)
	}
}

func renderText(b *strings.Builder, n Node) {
	if n.Text == "" {
		return
	}
	out := template.HTMLEscapeString(n.Text)
	for _, ft := range formatTags {
		if n.Format.Has(ft.flag) {
			out = "<" + ft.tag + ">" + out + "</" + ft.tag + ">"
		}
	}
	b.WriteString(out)
}

func wrapElement(b *strings.Builder, tag, attrs, body string) {
	b.WriteString("<" + tag)
	if attrs != "" {
		b.WriteString(" " + attrs)
	}
	b.WriteString(">")
	b.WriteString(body)
	b.WriteString("</" + tag + ">")
}

// IsExternal reports whether href is an absolute http(s) URL that should
// open in a new tab.
func IsExternal(href string) bool {
	return strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://")
}

// SafeHref returns href unless it is empty or uses a scheme other than
// http, https, mailto or tel, in which case it returns "#".
func SafeHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return "#"
	}
	colon := strings.IndexByte(href, ':')
	if colon < 0 {
		return href
	}
	if slash := strings.IndexAny(href, "/?#"); slash >= 0 && slash < colon {
		return href
	}
	switch strings.ToLower(href[:colon]) {
	case "http", "https", "mailto", "tel":
		return href
	}
	return "#"
}
