package richtext

import (
	"html/template"
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// Policy returns the shared sanitizer for HTML that did not come out of
// Render, such as markdown pages. It is the UGC policy plus class
// attributes, so layout classes survive.
func Policy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").Globally()
		p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
		p.RequireNoFollowOnLinks(false)
		p.RequireNoReferrerOnLinks(true)
		policy = p
	})
	return policy
}

// Sanitize runs html through Policy.
func Sanitize(html string) template.HTML {
	return template.HTML(Policy().Sanitize(html))
}
