package cmd

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/a-h/templ"

	"github.com/rubiojr/kallitechnia/pkg/config"
	"github.com/rubiojr/kallitechnia/pkg/storage"
)

const contactForm = `{"id":3,"name":"Επικοινωνία","slug":"contact","status":"active","fields":[
	{"type":"text","name":"name","label":"Όνομα","required":true},
	{"type":"email","name":"email","label":"Email","required":true}]}`

const newsletterForm = `{"id":4,"name":"Newsletter","slug":"newsletter","status":"active","redirectUrl":"/thanks","fields":[
	{"type":"email","name":"email","label":"Email","required":true}]}`

// fakeCMS answers the Payload endpoints the site uses.
type fakeCMS struct {
	mu        sync.Mutex
	down      bool
	submitted []map[string]any
	submitErr bool
}

func (f *fakeCMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		http.Error(w, "down", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/tenants":
		io.WriteString(w, `{"docs":[{"id":1,"code":"kallitechnia","name":"Καλλιτεχνία"}]}`)
	case "/api/homepages":
		io.WriteString(w, `{"docs":[{"id":1,"sections":[
			{"blockType":"kallitechnia.quote","text":"Η γυμναστική είναι τρόπος ζωής"},
			{"blockType":"other.hero","title":"ξένο"}]}]}`)
	case "/api/pages":
		switch q.Get("where[and][0][slug][equals]") {
		case "programs":
			io.WriteString(w, `{"docs":[{"id":7,"title":"Αθλήματα","slug":"programs","sections":[
				{"blockType":"kallitechnia.slogan","text":"Δύναμη, Χάρη"}]}]}`)
		case "contact":
			io.WriteString(w, `{"docs":[{"id":8,"title":"Επικοινωνία","slug":"contact","sections":[
				{"blockType":"kallitechnia.form","title":"Στείλτε μας μήνυμα","form":`+contactForm+`}]}]}`)
		default:
			io.WriteString(w, `{"docs":[]}`)
		}
	case "/api/posts":
		switch q.Get("where[and][0][slug][equals]") {
		case "":
			io.WriteString(w, `{"docs":[{"id":1,"title":"Πανελλήνιοι","slug":"panellinioi","excerpt":"Χρυσό μετάλλιο","publishedAt":"2025-03-15T10:00:00Z"}],"totalDocs":1,"limit":20,"page":1}`)
		case "panellinioi":
			io.WriteString(w, `{"docs":[{"id":1,"title":"Πανελλήνιοι","slug":"panellinioi","excerpt":"Χρυσό μετάλλιο",
				"content":{"root":{"children":[{"type":"paragraph","children":[{"type":"text","text":"Συγχαρητήρια στις αθλήτριες"}]}]}}}]}`)
		default:
			io.WriteString(w, `{"docs":[]}`)
		}
	case "/api/forms":
		switch q.Get("where[slug][equals]") {
		case "contact":
			io.WriteString(w, `{"docs":[`+contactForm+`]}`)
		case "newsletter":
			io.WriteString(w, `{"docs":[`+newsletterForm+`]}`)
		default:
			io.WriteString(w, `{"docs":[]}`)
		}
	case "/api/forms/submit":
		var body struct {
			FormSlug string         `json:"formSlug"`
			Data     map[string]any `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.submitted = append(f.submitted, body.Data)
		if f.submitErr {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"Η υποβολή απέτυχε"}`)
			return
		}
		io.WriteString(w, `{"message":"Ευχαριστούμε!"}`)
	case "/api/media/file/programma.pdf":
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, "%PDF-1.4")
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeCMS) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func setupTestWebServer(t *testing.T, dev bool) (*WebServer, *fakeCMS, http.Handler) {
	t.Helper()
	fake := &fakeCMS{}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	store, err := storage.Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("Failed to open snapshot store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		CMSURL:     ts.URL,
		Tenant:     "kallitechnia",
		DevMode:    dev,
		StorageDir: t.TempDir(),
		Site: config.SiteInfo{
			Name:          "Καλλιτεχνία",
			FallbackImage: "https://img.example.org/fallback.jpg",
		},
	}
	server := NewWebServer(cfg, store)
	return server, fake, server.Handler(nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func postForm(t *testing.T, h http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func assertContains(t *testing.T, body string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("Expected body to contain %q", want)
		}
	}
}

func TestHomeRendersCMSSections(t *testing.T) {
	_, _, h := setupTestWebServer(t, false)

	w := get(t, h, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	assertContains(t, body, "Η γυμναστική είναι τρόπος ζωής")
	if strings.Contains(body, "ξένο") {
		t.Error("Block of another tenant was rendered")
	}
}

func TestHomeFallsBackToDefaultSections(t *testing.T) {
	_, fake, h := setupTestWebServer(t, false)
	fake.setDown(true)

	w := get(t, h, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), "Η Γυμναστική είναι δύναμη, χαρά, δημιουργία.")
}

func TestHomeServedFromSnapshotWhenCMSDown(t *testing.T) {
	_, fake, h := setupTestWebServer(t, false)

	if w := get(t, h, "/"); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	fake.setDown(true)

	w := get(t, h, "/")
	assertContains(t, w.Body.String(), "Η γυμναστική είναι τρόπος ζωής")
}

func TestSitePages(t *testing.T) {
	_, _, h := setupTestWebServer(t, false)

	tests := []struct {
		path  string
		wants []string
	}{
		{"/about", []string{"Ο Σύλλογος", "Το περιεχόμενο αυτής της σελίδας προετοιμάζεται."}},
		{"/programs", []string{"<title>Αθλήματα |", "<span>Δύναμη<br></span>", "Ανακαλύψτε τα προγράμματά μας"}},
		{"/contact", []string{"Στείλτε μας μήνυμα", `action="/forms/contact"`, `name="_return" value="/contact"`}},
		{"/registration", []string{"Γίνε μέλος της οικογένειας της Καλλιτεχνίας!", "Ιατρική βεβαίωση (πρωτότυπη)"}},
		{"/terms", []string{"Όροι Χρήσης", "Πολιτική Απορρήτου", "privacy@kallitechnia-kefalonia.gr"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, h, tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
				t.Errorf("Unexpected Content-Type %q", ct)
			}
			assertContains(t, w.Body.String(), tt.wants...)
		})
	}
}

func TestNewsPages(t *testing.T) {
	_, _, h := setupTestWebServer(t, false)

	w := get(t, h, "/news")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	assertContains(t, w.Body.String(),
		`href="/news/panellinioi"`,
		"15 Μαρτίου 2025",
		"https://img.example.org/fallback.jpg",
	)

	w = get(t, h, "/news/panellinioi")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), "Συγχαρητήρια στις αθλήτριες", "Πίσω στα Νέα")

	if w := get(t, h, "/news/missing"); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for a missing post, got %d", w.Code)
	}
}

func TestNewsEmptyWhenCMSDown(t *testing.T) {
	_, fake, h := setupTestWebServer(t, false)
	fake.setDown(true)

	w := get(t, h, "/news")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), "Δεν υπάρχουν διαθέσιμες δημοσιεύσεις αυτή τη στιγμή.")
}

func TestFormValidationRerendersPage(t *testing.T) {
	_, fake, h := setupTestWebServer(t, false)

	w := postForm(t, h, "/forms/contact", url.Values{
		"_return": {"/contact"},
		"name":    {"Μαρία"},
		"email":   {"not-an-email"},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), "Email must be a valid email", `value="Μαρία"`)
	if len(fake.submitted) != 0 {
		t.Error("Invalid submission reached the CMS")
	}
}

func TestFormSubmitSuccess(t *testing.T) {
	_, fake, h := setupTestWebServer(t, false)

	w := postForm(t, h, "/forms/contact", url.Values{
		"_return": {"/contact"},
		"name":    {"Μαρία"},
		"email":   {"maria@example.org"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), "Ευχαριστούμε!")
	if strings.Contains(w.Body.String(), `value="Μαρία"`) {
		t.Error("Inputs should be cleared after a successful submission")
	}
	if len(fake.submitted) != 1 || fake.submitted[0]["email"] != "maria@example.org" {
		t.Errorf("Unexpected submissions %v", fake.submitted)
	}
}

func TestFormSubmitRejected(t *testing.T) {
	_, fake, h := setupTestWebServer(t, false)
	fake.submitErr = true

	w := postForm(t, h, "/forms/contact", url.Values{
		"_return": {"/contact"},
		"name":    {"Μαρία"},
		"email":   {"maria@example.org"},
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), "Η υποβολή απέτυχε", `value="Μαρία"`)
}

func TestFormRedirect(t *testing.T) {
	_, _, h := setupTestWebServer(t, false)

	w := postForm(t, h, "/forms/newsletter", url.Values{"email": {"a@b.gr"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected status 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/thanks" {
		t.Errorf("Expected redirect to /thanks, got %q", loc)
	}
}

func TestFormUnknown(t *testing.T) {
	_, _, h := setupTestWebServer(t, false)

	w := postForm(t, h, "/forms/ghost", url.Values{"email": {"a@b.gr"}})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestReturnPath(t *testing.T) {
	tests := map[string]string{
		"":                    "/",
		"/contact":            "/contact",
		"/contact?sent=1#top": "/contact",
		"//evil.example.org":  "/",
		"/\\evil.example.org": "/",
		"https://evil.org/":   "/",
	}
	for in, want := range tests {
		if got := returnPath(in); got != want {
			t.Errorf("returnPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDownloadProxyRoute(t *testing.T) {
	_, _, h := setupTestWebServer(t, false)

	w := get(t, h, "/api/download/programma.pdf")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="programma.pdf"` {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}
	if w.Body.String() != "%PDF-1.4" {
		t.Errorf("Unexpected body %q", w.Body.String())
	}
}

func TestStaticAndNotFound(t *testing.T) {
	_, _, h := setupTestWebServer(t, false)

	w := get(t, h, "/static/site.css")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/css; charset=utf-8" {
		t.Errorf("Unexpected Content-Type %q", ct)
	}

	if w := get(t, h, "/static/missing.css"); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	w = get(t, h, "/no/such/page")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), "Η σελίδα που ζητήσατε δεν βρέθηκε.")
}

func TestDevOnlyRoutes(t *testing.T) {
	_, _, prod := setupTestWebServer(t, false)
	if w := get(t, prod, "/debug"); w.Code != http.StatusNotFound {
		t.Errorf("Expected /debug to be hidden outside dev mode, got %d", w.Code)
	}

	_, _, dev := setupTestWebServer(t, true)
	w := get(t, dev, "/debug")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), "CMS Connection Debug", "&#34;code&#34;: &#34;kallitechnia&#34;")

	w = get(t, dev, "/")
	assertContains(t, w.Body.String(), "/ws/reload")
}

func TestGzipResponses(t *testing.T) {
	_, _, h := setupTestWebServer(t, false)

	req := httptest.NewRequest("GET", "/terms", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if enc := w.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("Expected gzip encoding, got %q", enc)
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("Failed to open gzip body: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("Failed to read gzip body: %v", err)
	}
	assertContains(t, string(body), "Πολιτική Απορρήτου")
}

func TestRequestIDHeader(t *testing.T) {
	_, _, h := setupTestWebServer(t, false)
	w := get(t, h, "/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a request id header")
	}
}

func TestReloadSwapsSite(t *testing.T) {
	server, _, h := setupTestWebServer(t, false)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `cms_url = "` + server.current().config.CMSURL + `"
tenant = "allos"
storage_dir = "` + dir + `"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := server.reload(path, nil); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := server.current().config.Tenant; got != "allos" {
		t.Errorf("Expected tenant allos after reload, got %q", got)
	}

	w := get(t, h, "/api/kinds")
	var res struct {
		Tenant string `json:"tenant"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Tenant != "allos" {
		t.Errorf("API still serving tenant %q", res.Tenant)
	}
}

func TestRenderErrorReturns500(t *testing.T) {
	server, _, _ := setupTestWebServer(t, false)

	broken := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, "<html><body>half a page")
		return errors.New("template exploded")
	})

	w := httptest.NewRecorder()
	server.render(w, httptest.NewRequest("GET", "/about", nil), broken, http.StatusOK)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "half a page") {
		t.Error("Partial page output leaked into the response")
	}
}
