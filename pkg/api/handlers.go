package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rubiojr/kallitechnia/pkg/blocks"
	"github.com/rubiojr/kallitechnia/pkg/version"
)

const maxRenderBody = 1 << 20

func (s *Server) HandleRender(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRenderBody+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if len(body) > maxRenderBody {
		s.writeError(w, http.StatusRequestEntityTooLarge, "Body too large", fmt.Sprintf("Request body exceeds %d bytes", maxRenderBody))
		return
	}

	req, err := parseRenderRequest(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if slug := r.URL.Query().Get("page"); slug != "" {
		req.Page = slug
	}

	page := blocks.PageContext{
		PageSlug:   req.Page,
		IsHomepage: req.Page == "" || req.Page == "home",
		Path:       "/",
	}
	res := s.pipeline.Load().Render(r.Context(), req.Sections, page)

	s.writeJSON(w, http.StatusOK, RenderResponse{
		PassID:   res.PassID,
		HTML:     string(res.HTML),
		Rendered: res.Rendered,
		Kinds:    res.Kinds,
		Skipped:  res.Skipped,
	})
}

func parseRenderRequest(body []byte) (RenderRequest, error) {
	var req RenderRequest
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err := json.Unmarshal(trimmed, &req.Sections)
		return req, err
	}
	err := json.Unmarshal(trimmed, &req)
	return req, err
}

func (s *Server) HandleKinds(w http.ResponseWriter, r *http.Request) {
	tenant := s.pipeline.Load().Tenant
	kinds := blocks.Kinds()
	qualified := make([]string, len(kinds))
	for i, k := range kinds {
		qualified[i] = tenant + "." + k
	}
	s.writeJSON(w, http.StatusOK, KindsResponse{
		Tenant: tenant,
		Kinds:  qualified,
		Count:  len(qualified),
	})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Tenant:    s.pipeline.Load().Tenant,
	}

	s.writeJSON(w, http.StatusOK, health)
}
