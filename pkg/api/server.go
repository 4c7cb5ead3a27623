package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/rubiojr/kallitechnia/pkg/blocks"
	"github.com/rubiojr/kallitechnia/pkg/log"
)

type Server struct {
	pipeline atomic.Pointer[blocks.Pipeline]
	dev      bool
	logger   *log.Logger
}

// NewServer returns the JSON API around pipeline. The render preview
// endpoint is only registered when dev is true.
func NewServer(pipeline *blocks.Pipeline, dev bool) *Server {
	s := &Server{
		dev:    dev,
		logger: log.ForService("api"),
	}
	s.pipeline.Store(pipeline)
	return s
}

// SetPipeline swaps the pipeline used by subsequent requests, e.g. after a
// configuration reload.
func (s *Server) SetPipeline(p *blocks.Pipeline) {
	s.pipeline.Store(p)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}
