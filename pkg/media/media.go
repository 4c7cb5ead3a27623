package media

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultOrigin is the CMS origin used when none is configured.
const DefaultOrigin = "https://cms.ftiaxesite.gr"

// FilePath is where the CMS serves uploaded media.
const FilePath = "/api/media/file/"

var imageFilename = regexp.MustCompile(`(?i)^[a-zA-Z0-9_-]+\.(jpg|jpeg|png|gif|webp|svg)$`)

// nestedPaths are checked, in order, when an object carries no direct
// url, filename or id.
var nestedPaths = []string{
	"image.url",
	"image.filename",
	"media.url",
	"media.filename",
	"backgroundImage.url",
	"backgroundImage.filename",
	"logo.url",
	"logo.filename",
	"photo.url",
	"photo.filename",
}

// Resolver turns CMS image and file references into absolute URLs.
// The empty string is the "no image" value.
type Resolver struct {
	Origin string
}

// NewResolver returns a resolver for origin, or DefaultOrigin when empty.
func NewResolver(origin string) *Resolver {
	origin = strings.TrimRight(origin, "/")
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Resolver{Origin: origin}
}

var defaultResolver = NewResolver(DefaultOrigin)

// NormalizeImageURL resolves v against DefaultOrigin.
func NormalizeImageURL(v any) string { return defaultResolver.NormalizeImageURL(v) }

// ExtractImageURL resolves v against DefaultOrigin.
func ExtractImageURL(v any) string { return defaultResolver.ExtractImageURL(v) }

// NormalizeImageURL accepts a bare filename, a relative path, an absolute
// URL, or an object with url, filename, id or _id (in that order).
func (r *Resolver) NormalizeImageURL(v any) string {
	switch t := v.(type) {
	case string:
		return r.normalizeString(t)
	case map[string]any:
		if s, ok := t["url"].(string); ok && s != "" {
			return r.normalizeString(s)
		}
		if s, ok := t["filename"].(string); ok && s != "" {
			return r.normalizeString(s)
		}
		if id := firstString(t, "id", "_id"); id != "" {
			return r.fromID(id)
		}
	case json.RawMessage:
		return r.NormalizeImageURL(decode(t))
	}
	return ""
}

// ExtractImageURL is NormalizeImageURL plus _ref ids and the nested media
// shapes produced by populated relationships (image.url, logo.filename, ...).
func (r *Resolver) ExtractImageURL(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return r.normalizeString(t)
	case json.RawMessage:
		return r.ExtractImageURL(decode(t))
	case map[string]any:
		if s, ok := t["url"].(string); ok && s != "" {
			return r.normalizeString(s)
		}
		if s, ok := t["filename"].(string); ok && s != "" {
			return r.normalizeString(s)
		}
		if id := firstString(t, "id", "_id", "_ref"); id != "" {
			return r.fromID(id)
		}
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		for _, path := range nestedPaths {
			res := gjson.GetBytes(raw, path)
			switch {
			case res.Type == gjson.String && res.Str != "":
				return r.normalizeString(res.Str)
			case res.IsObject():
				if u := r.ExtractImageURL(res.Value()); u != "" {
					return u
				}
			}
		}
	}
	return ""
}

// fromID builds a file URL from an identifier. Filename-like ids and opaque
// document ids both map onto the media file path.
func (r *Resolver) fromID(id string) string {
	if strings.Contains(id, ".") || imageFilename.MatchString(id) {
		return r.normalizeString(id)
	}
	return r.Origin + FilePath + id
}

func (r *Resolver) normalizeString(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return s
	case strings.HasPrefix(s, "/"):
		return r.Origin + s
	default:
		return r.Origin + FilePath + s
	}
}

// ProxyDownloadURL maps a CMS file reference onto the site's own download
// proxy, e.g. "https://cms/api/media/file/a.pdf" becomes "/api/download/a.pdf".
// It returns "" when nothing usable is found.
func ProxyDownloadURL(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case map[string]any:
		if u, ok := t["url"].(string); ok && u != "" {
			s = u
		} else if f, ok := t["filename"].(string); ok && f != "" {
			s = f
		}
	case json.RawMessage:
		return ProxyDownloadURL(decode(t))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	name := s
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if u, err := url.Parse(s); err == nil {
			name = u.Path
		}
	}
	switch {
	case strings.Contains(name, FilePath):
		name = name[strings.Index(name, FilePath)+len(FilePath):]
	case strings.Contains(name, "media/file/"):
		name = name[strings.Index(name, "media/file/")+len("media/file/"):]
	case strings.HasPrefix(name, "/api/"):
		name = strings.TrimPrefix(name, "/api/")
	case strings.HasPrefix(name, "/"):
		name = name[1:]
	}
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return ""
	}
	return "/api/download/" + name
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func decode(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
