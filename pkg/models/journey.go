// Package models defines the core domain models for journey automation.
package models

import "time"

// Journey is the identity and metadata for one automation definition.
// Its graph lives in immutable JourneyVersion snapshots; the journey row
// only tracks which version, if any, is currently published.
type Journey struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"        validate:"required,min=3"`
	Description      string    `json:"description"`
	PublishedVersion *int      `json:"published_version,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
