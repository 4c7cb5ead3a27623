package api

import (
	"encoding/json"
	"time"

	"github.com/rubiojr/kallitechnia/pkg/blocks"
)

// RenderRequest is accepted by the preview endpoint either as a bare
// array of sections or wrapped with the page slug they belong to.
type RenderRequest struct {
	Page     string            `json:"page"`
	Sections []json.RawMessage `json:"sections"`
}

type RenderResponse struct {
	PassID   string        `json:"pass_id"`
	HTML     string        `json:"html"`
	Rendered int           `json:"rendered"`
	Kinds    []string      `json:"kinds"`
	Skipped  []blocks.Skip `json:"skipped"`
}

type KindsResponse struct {
	Tenant string   `json:"tenant"`
	Kinds  []string `json:"kinds"`
	Count  int      `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Tenant    string    `json:"tenant"`
}
