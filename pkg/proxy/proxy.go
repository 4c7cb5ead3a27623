// Package proxy re-serves CMS media files under the site's own origin, so
// download links never point at the CMS host.
package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/kallitechnia/pkg/log"
	"github.com/rubiojr/kallitechnia/pkg/media"
)

const (
	Prefix       = "/api/download/"
	CacheControl = "public, max-age=3600, must-revalidate"

	ErrFilenameRequired = "Filename is required"
	ErrNotFound         = "File not found"
	ErrDownloadFailed   = "Failed to download file"
)

var dispositionFilename = regexp.MustCompile(`filename[^;=\n]*=("[^"]*"|'[^']*'|[^;\n]*)`)

type Handler struct {
	Origin string
	Client *http.Client
	logger *log.Logger
}

// New returns a download proxy for the CMS at origin.
func New(origin string, client *http.Client) *Handler {
	origin = strings.TrimRight(origin, "/")
	if origin == "" {
		origin = media.DefaultOrigin
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Handler{Origin: origin, Client: client, logger: log.ForService("proxy")}
}

// UpstreamURL maps a download path onto the CMS. Paths already under
// media/file/ keep their shape; bare names go to the media file route.
func (h *Handler) UpstreamURL(name string) string {
	if strings.HasPrefix(name, "media/file/") {
		return h.Origin + "/api/" + name
	}
	return h.Origin + media.FilePath + name
}

// Filename picks the download name from a Content-Disposition value,
// falling back to the last element of the requested path.
func Filename(disposition, requested string) string {
	if m := dispositionFilename.FindStringSubmatch(disposition); m != nil {
		name := strings.NewReplacer(`"`, "", "'", "").Replace(strings.TrimSpace(m[1]))
		if name != "" {
			return name
		}
	}
	return path.Base(requested)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("path")
	if name == "" {
		name = strings.TrimPrefix(r.URL.Path, Prefix)
	}
	name = strings.Trim(name, "/")
	if name == "" || hasDotDot(name) {
		writeError(w, http.StatusBadRequest, ErrFilenameRequired)
		return
	}

	upstream := h.UpstreamURL(name)
	h.logger.Debugf("Fetching file from CMS: %s", upstream)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream, nil)
	if err != nil {
		h.logger.Errorf("Error creating request for %s: %v", upstream, err)
		writeError(w, http.StatusInternalServerError, ErrDownloadFailed)
		return
	}
	req.Header.Set("Accept", "*/*")

	resp, err := h.Client.Do(req)
	if err != nil {
		h.logger.Errorf("Error fetching %s: %v", upstream, err)
		writeError(w, http.StatusInternalServerError, ErrDownloadFailed)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.Warnf("CMS returned error: %s for %s", resp.Status, upstream)
		writeError(w, resp.StatusCode, ErrNotFound)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := Filename(resp.Header.Get("Content-Disposition"), name)

	hdr := w.Header()
	hdr.Set("Content-Type", contentType)
	hdr.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	hdr.Set("Cache-Control", CacheControl)
	if resp.ContentLength >= 0 {
		hdr.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		h.logger.Errorf("Error streaming %s after %d bytes: %v", filename, n, err)
		return
	}
	h.logger.Debugf("Served file: %s (%s, %d bytes)", filename, contentType, n)
}

func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
