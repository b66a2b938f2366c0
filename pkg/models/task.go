package models

import "time"

// TaskStatus represents the lifecycle state of a paused execution.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing" // Transient claim, prevents double-resumption
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

// JourneyTask is a paused execution created when a walk reaches a wait node.
// Version pins the graph active at schedule time, so publishing a newer
// version does not retroactively alter in-flight waits. NodeID is the node
// to resume from, i.e. the wait node's successor.
type JourneyTask struct {
	ID        string         `json:"id"`
	JourneyID string         `json:"journey_id" validate:"required"`
	Version   int            `json:"version"`
	NodeID    string         `json:"node_id"    validate:"required"`
	SubjectID string         `json:"subject_id" validate:"required"`
	Context   map[string]any `json:"context"`
	DueAt     time.Time      `json:"due_at"`
	Status    TaskStatus     `json:"status"`
	ClaimedAt *time.Time     `json:"claimed_at,omitempty"`
	LastError string         `json:"last_error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
