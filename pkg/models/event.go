package models

import "time"

// Event is an inbound subject event as delivered by the event source.
// Delivery is at-least-once; the engine's idempotency keys make duplicate
// delivery safe.
type Event struct {
	SubjectID string         `json:"subject_id" validate:"required"`
	EventType string         `json:"event_type" validate:"required"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Completion records that a subject reached a goal node of a journey
// version. Kept for auditability and duplicate-goal suppression.
type Completion struct {
	ID          string    `json:"id"`
	JourneyID   string    `json:"journey_id"`
	Version     int       `json:"version"`
	SubjectID   string    `json:"subject_id"`
	GoalNodeID  string    `json:"goal_node_id"`
	CompletedAt time.Time `json:"completed_at"`
}
