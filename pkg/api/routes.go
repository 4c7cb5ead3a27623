package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/kinds", s.HandleKinds)
	mux.HandleFunc("GET /health", s.HandleHealth)
	if s.dev {
		mux.HandleFunc("POST /api/render", s.HandleRender)
	}
}
