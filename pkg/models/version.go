package models

import "time"

// VersionStatus represents the lifecycle state of a journey version.
type VersionStatus string

const (
	VersionStatusDraft     VersionStatus = "draft"     // Editable target for publish
	VersionStatusPublished VersionStatus = "published" // Current active, executable
	VersionStatusArchived  VersionStatus = "archived"  // Historical, not executable
)

// JourneyVersion is an immutable snapshot of a journey's graph. Versions are
// numbered monotonically per journey starting at 1 and are never mutated
// after creation; corrections produce a new version.
type JourneyVersion struct {
	ID          string        `json:"id"`
	JourneyID   string        `json:"journey_id" validate:"required"`
	Version     int           `json:"version"`
	Status      VersionStatus `json:"status"`
	Graph       Graph         `json:"schema"`
	CreatedAt   time.Time     `json:"created_at"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
}
