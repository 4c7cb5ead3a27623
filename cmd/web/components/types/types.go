package types

import (
	"html/template"
	"time"
)

// PageData represents data passed to templates
type PageData struct {
	Title    string
	Subtitle string
	Path     string // Request path, used to highlight the active nav item
	SiteName string
	Nav      []NavItem
	Sections template.HTML // Rendered CMS sections
	Body     template.HTML // Static fallback content
	Empty    string        // Shown when neither sections nor body are present
	Posts    []NewsCard
	Post     *PostView
	Debug    *DebugInfo
	Dev      bool   // Injects the live reload script
	Version  string // Application version (for footer display)
}

// HasContent reports whether the page has anything to show below the header.
func (p PageData) HasContent() bool {
	return p.Sections != "" || p.Body != ""
}

// NavItem is one entry of the site navigation.
type NavItem struct {
	Href   string
	Label  string
	Active bool
}

// NewsCard is a post summary on the news listing.
type NewsCard struct {
	Title   string
	Href    string
	Date    string
	Excerpt string
	Image   string
}

// PostView is a single news post.
type PostView struct {
	Title   string
	Excerpt string
	Date    string
	Image   string
	Content template.HTML
}

// DebugInfo is shown on the dev-only CMS connectivity page.
type DebugInfo struct {
	CMSURL        string
	Tenant        string
	TenantJSON    string
	TenantError   string
	HomepageJSON  string
	HomepageError string
	Sections      int
	Snapshots     []SnapshotInfo
}

// SnapshotInfo describes one stored last-known-good CMS response.
type SnapshotInfo struct {
	Key       string
	Size      int
	Stored    int
	Encoding  string
	UpdatedAt time.Time
}
