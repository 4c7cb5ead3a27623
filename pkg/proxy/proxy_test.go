package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProxy(t *testing.T, upstream http.HandlerFunc) (*httptest.Server, *Handler) {
	t.Helper()
	cms := httptest.NewServer(upstream)
	t.Cleanup(cms.Close)

	h := New(cms.URL, cms.Client())
	mux := http.NewServeMux()
	mux.Handle("GET "+Prefix+"{path...}", h)
	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site, h
}

func TestUpstreamURL(t *testing.T) {
	h := New("https://cms.example.gr/", nil)
	assert.Equal(t, "https://cms.example.gr/api/media/file/a.pdf", h.UpstreamURL("a.pdf"))
	assert.Equal(t, "https://cms.example.gr/api/media/file/b.pdf", h.UpstreamURL("media/file/b.pdf"))
}

func TestFilename(t *testing.T) {
	tests := []struct {
		disposition string
		want        string
	}{
		{`attachment; filename="programma.pdf"`, "programma.pdf"},
		{`inline; filename='x y.pdf'; size=10`, "x y.pdf"},
		{`attachment; filename=plain.pdf`, "plain.pdf"},
		{`attachment; filename*=UTF-8''enc.pdf`, "UTF-8enc.pdf"},
		{``, "doc.pdf"},
		{`attachment`, "doc.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Filename(tt.disposition, "media/file/doc.pdf"), tt.disposition)
	}
}

func TestServeFile(t *testing.T) {
	var gotPath, gotAccept string
	site, _ := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="Πρόγραμμα.pdf"`)
		_, _ = io.WriteString(w, "%PDF-1.4")
	})

	resp, err := http.Get(site.URL + "/api/download/schedule.pdf")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/api/media/file/schedule.pdf", gotPath)
	assert.Equal(t, "*/*", gotAccept)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Πρόγραμμα.pdf"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "8", resp.Header.Get("Content-Length"))
	assert.Equal(t, CacheControl, resp.Header.Get("Cache-Control"))
}

func TestServeFileDefaults(t *testing.T) {
	site, _ := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0, 1, 2})
	})

	resp, err := http.Get(site.URL + "/api/download/media/file/raw.bin")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="raw.bin"`, resp.Header.Get("Content-Disposition"))
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["error"]
}

func TestUpstreamErrorPassesStatus(t *testing.T) {
	site, _ := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})

	resp, err := http.Get(site.URL + "/api/download/missing.pdf")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, ErrNotFound, decodeError(t, resp))
}

func TestUnreachableUpstream(t *testing.T) {
	cms := httptest.NewServer(http.NotFoundHandler())
	origin := cms.URL
	cms.Close()

	h := New(origin, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/download/a.pdf", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to download file"}`, rec.Body.String())
}

func TestBadPaths(t *testing.T) {
	h := New("https://cms.example.gr", nil)
	for _, p := range []string{"/api/download/", "/api/download/../secrets", "/api/download/a/../../b"} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, p)
		assert.JSONEq(t, `{"error":"Filename is required"}`, rec.Body.String(), p)
	}
}
