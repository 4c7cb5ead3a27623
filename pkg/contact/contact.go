// Package contact turns e-mail addresses and phone numbers in plain text
// into mailto: and tel: links.
package contact

import (
	"html/template"
	"regexp"
	"sort"
	"strings"
)

const linkClass = "text-primary hover:underline"

var (
	emailPattern = regexp.MustCompile(`(?i)[a-zA-Z0-9._-]+@[a-zA-Z0-9._-]+\.[a-zA-Z0-9_-]+`)
	// Up to four digit groups, so "+30 123 456 7890" is one number.
	phonePattern = regexp.MustCompile(`\+?[0-9]{1,4}[\s-]?[0-9]{1,4}(?:[\s-]?[0-9]{1,4})?[\s-]?[0-9]{1,9}`)
	phoneStrip   = strings.NewReplacer(" ", "", "-", "", "\t", "", "\n", "", "\r", "")
)

type matchKind int

const (
	email matchKind = iota
	phone
)

type match struct {
	kind       matchKind
	start, end int
}

// Linkify escapes text and wraps every e-mail address and phone number in
// a link. Phone-like digits inside an address are left alone.
func Linkify(text string) template.HTML {
	if text == "" {
		return ""
	}

	var matches []match
	for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
		matches = append(matches, match{email, loc[0], loc[1]})
	}
	emails := len(matches)
	for _, loc := range phonePattern.FindAllStringIndex(text, -1) {
		inside := false
		for _, m := range matches[:emails] {
			if loc[0] >= m.start && loc[0] < m.end {
				inside = true
				break
			}
		}
		if !inside {
			matches = append(matches, match{phone, loc[0], loc[1]})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	var b strings.Builder
	pos := 0
	for _, m := range matches {
		if m.start < pos {
			continue
		}
		b.WriteString(template.HTMLEscapeString(text[pos:m.start]))
		value := text[m.start:m.end]
		href := "mailto:" + value
		if m.kind == phone {
			href = "tel:" + phoneStrip.Replace(value)
		}
		b.WriteString(`<a href="`)
		b.WriteString(template.HTMLEscapeString(href))
		b.WriteString(`" class="` + linkClass + `">`)
		b.WriteString(template.HTMLEscapeString(value))
		b.WriteString("</a>")
		pos = m.end
	}
	b.WriteString(template.HTMLEscapeString(text[pos:]))
	return template.HTML(b.String())
}
