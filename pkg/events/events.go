// Package events defines event types for journey lifecycle notifications.
package events

import "time"

type EventType string

// Topic carries all journey lifecycle events.
const Topic = "journey.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	JourneyPublishedEvent EventType = "journey.published"

	WalkStartedEvent   EventType = "walk.started"
	WalkCompletedEvent EventType = "walk.completed"
	WalkFailedEvent    EventType = "walk.failed"
	GoalReachedEvent   EventType = "goal.reached"

	TaskScheduledEvent EventType = "task.scheduled"
	TaskResumedEvent   EventType = "task.resumed"
	TaskFailedEvent    EventType = "task.failed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	JourneyID string         `json:"journey_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type JourneyPublished struct {
	BaseEvent

	VersionID string `json:"version_id"`
	Version   int    `json:"version"`
}

func (e JourneyPublished) GetType() EventType {
	return JourneyPublishedEvent
}

type WalkStarted struct {
	BaseEvent

	WalkID    string `json:"walk_id"`
	Version   int    `json:"version"`
	SubjectID string `json:"subject_id"`
	NodeID    string `json:"node_id"`
}

func (e WalkStarted) GetType() EventType {
	return WalkStartedEvent
}

type WalkCompleted struct {
	BaseEvent

	WalkID    string `json:"walk_id"`
	Version   int    `json:"version"`
	SubjectID string `json:"subject_id"`
	EndNodeID string `json:"end_node_id"`
	Steps     int    `json:"steps"`
}

func (e WalkCompleted) GetType() EventType {
	return WalkCompletedEvent
}

type WalkFailed struct {
	BaseEvent

	WalkID    string `json:"walk_id"`
	Version   int    `json:"version"`
	SubjectID string `json:"subject_id"`
	NodeID    string `json:"node_id"`
	Error     string `json:"error"`
}

func (e WalkFailed) GetType() EventType {
	return WalkFailedEvent
}

type GoalReached struct {
	BaseEvent

	WalkID     string `json:"walk_id"`
	Version    int    `json:"version"`
	SubjectID  string `json:"subject_id"`
	GoalNodeID string `json:"goal_node_id"`
}

func (e GoalReached) GetType() EventType {
	return GoalReachedEvent
}

type TaskScheduled struct {
	BaseEvent

	TaskID    string    `json:"task_id"`
	Version   int       `json:"version"`
	SubjectID string    `json:"subject_id"`
	NodeID    string    `json:"node_id"`
	DueAt     time.Time `json:"due_at"`
}

func (e TaskScheduled) GetType() EventType {
	return TaskScheduledEvent
}

type TaskResumed struct {
	BaseEvent

	TaskID    string `json:"task_id"`
	Version   int    `json:"version"`
	SubjectID string `json:"subject_id"`
}

func (e TaskResumed) GetType() EventType {
	return TaskResumedEvent
}

type TaskFailed struct {
	BaseEvent

	TaskID    string `json:"task_id"`
	Version   int    `json:"version"`
	SubjectID string `json:"subject_id"`
	Error     string `json:"error"`
}

func (e TaskFailed) GetType() EventType {
	return TaskFailedEvent
}
