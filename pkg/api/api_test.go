package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/kallitechnia/pkg/blocks"
	"github.com/rubiojr/kallitechnia/pkg/version"
)

func setupTestAPIServer(t *testing.T, dev bool) *http.ServeMux {
	t.Helper()
	server := NewServer(blocks.NewPipeline("kallitechnia"), dev)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	return mux
}

func TestAPIHealth(t *testing.T) {
	mux := setupTestAPIServer(t, false)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if contentType := w.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var health HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, version.APIVersion(), health.Version)
	assert.Equal(t, "kallitechnia", health.Tenant)
}

func TestAPIKinds(t *testing.T) {
	mux := setupTestAPIServer(t, false)

	req := httptest.NewRequest("GET", "/api/kinds", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var res KindsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, len(blocks.Kinds()), res.Count)
	assert.Contains(t, res.Kinds, "kallitechnia.hero")
	assert.Contains(t, res.Kinds, "kallitechnia.programDetail")
}

func TestAPIRenderOnlyInDev(t *testing.T) {
	mux := setupTestAPIServer(t, false)

	req := httptest.NewRequest("POST", "/api/render", strings.NewReader(`[]`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code == http.StatusOK {
		t.Errorf("render preview should not be served outside dev mode")
	}
}

func TestAPIRender(t *testing.T) {
	mux := setupTestAPIServer(t, true)

	tests := []struct {
		name     string
		body     string
		rendered int
		skipped  []string
	}{
		{
			name:     "bare array",
			body:     `[{"blockType":"kallitechnia.quote","text":"Η άσκηση είναι ζωή"},{"blockType":"other.hero"}]`,
			rendered: 1,
			skipped:  []string{blocks.ReasonTenantMismatch},
		},
		{
			name:     "wrapped with page",
			body:     `{"page":"about","sections":[{"type":"kallitechnia.slogan","text":"Δύναμη, Χάρη"},"oops",{"blockType":"kallitechnia.unknown"}]}`,
			rendered: 1,
			skipped:  []string{blocks.ReasonInvalid, blocks.ReasonNoRenderer},
		},
		{
			name:     "empty",
			body:     `[]`,
			rendered: 0,
			skipped:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/render", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var res RenderResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
			assert.Equal(t, tt.rendered, res.Rendered)
			assert.NotEmpty(t, res.PassID)

			reasons := []string{}
			for _, s := range res.Skipped {
				reasons = append(reasons, s.Reason)
			}
			assert.Equal(t, tt.skipped, reasons)
		})
	}
}

func TestAPIRenderInvalidJSON(t *testing.T) {
	mux := setupTestAPIServer(t, true)

	req := httptest.NewRequest("POST", "/api/render", strings.NewReader(`{`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	var res ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, "Invalid JSON", res.Error)
}

func TestAPIRenderTooLarge(t *testing.T) {
	mux := setupTestAPIServer(t, true)

	body := bytes.Repeat([]byte(" "), maxRenderBody+10)
	req := httptest.NewRequest("POST", "/api/render", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
}

func TestRequestIDAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestID(AccessLog(NewAccessLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestIDFromContext(r.Context()) == "" {
			t.Error("missing request id in context")
		}
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	req := httptest.NewRequest("GET", "/programs", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/programs", line["path"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
	assert.Equal(t, float64(len("short and stout")), line["bytes"])
	assert.Equal(t, "abc-123", line["request_id"])
	assert.Equal(t, "warn", line["level"])
}

func TestRequestIDGenerated(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestCorsPreflight(t *testing.T) {
	called := false
	handler := CorsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/render", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
