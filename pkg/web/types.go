// Package web provides HTTP request and response types for the journey API.
package web

import (
	"time"

	"github.com/pathwave/journey/pkg/models"
)

// CreateJourneyRequest represents the request body for creating a journey.
type CreateJourneyRequest struct {
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description"`
}

// SaveDraftRequest represents the request body for saving a graph as a new
// draft version.
type SaveDraftRequest struct {
	Graph models.Graph `json:"schema" validate:"required"`
}

// EventRequest represents a subject event submitted over HTTP. Timestamp is
// optional and defaults to receipt time.
type EventRequest struct {
	SubjectID string         `json:"subject_id" validate:"required"`
	EventType string         `json:"event_type" validate:"required"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// SweepResponse reports the outcome of one due-task sweep.
type SweepResponse struct {
	Resumed int       `json:"resumed"`
	SweptAt time.Time `json:"swept_at"`
}
