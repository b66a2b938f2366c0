// Package scheduler persists wait tasks and drives the periodic sweep that
// resumes them once due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pathwave/journey/pkg/engine"
	"github.com/pathwave/journey/pkg/eventbus"
	"github.com/pathwave/journey/pkg/events"
	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
)

const (
	// defaultClaimTimeout is how long a processing claim is honored before
	// a sweep may reclaim the task from a crashed worker.
	defaultClaimTimeout = 5 * time.Minute

	// defaultBatchLimit caps how many due tasks one sweep picks up.
	defaultBatchLimit = 100
)

// Resumer continues a paused walk from the node a task points at.
// Implemented by the engine.
type Resumer interface {
	Resume(ctx context.Context, task *models.JourneyTask) (engine.WalkResult, error)
}

// Scheduler owns the journey_tasks lifecycle. It keeps no in-memory timer
// state: due tasks survive restarts because due_at lives in storage, and
// any replica may run the sweep.
type Scheduler struct {
	persistence  persistence.Persistence
	resumer      Resumer
	bus          eventbus.EventPublisher
	logger       *slog.Logger
	claimTimeout time.Duration
	batchLimit   int
}

func New(p persistence.Persistence, resumer Resumer, bus eventbus.EventPublisher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		persistence:  p,
		resumer:      resumer,
		bus:          bus,
		logger:       logger.With("component", "scheduler"),
		claimTimeout: defaultClaimTimeout,
		batchLimit:   defaultBatchLimit,
	}
}

// SetClaimTimeout overrides the stale-claim reclaim window.
func (s *Scheduler) SetClaimTimeout(d time.Duration) {
	s.claimTimeout = d
}

// ScheduleWait persists a pending task for a paused walk and returns its id.
func (s *Scheduler) ScheduleWait(ctx context.Context, task *models.JourneyTask) (string, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	if err := s.persistence.CreateTask(ctx, task); err != nil {
		return "", fmt.Errorf("failed to persist wait task: %w", err)
	}

	s.logger.InfoContext(ctx, "Scheduled wait task",
		"task_id", task.ID, "journey_id", task.JourneyID,
		"subject_id", task.SubjectID, "due_at", task.DueAt)

	s.publishTaskScheduled(ctx, task)

	return task.ID, nil
}

// ProcessDue is one sweep: it lists due tasks, claims each, and resumes the
// paused walks. A failure in one task is recorded on that task and does not
// stop the sweep. Returns how many tasks were resumed.
func (s *Scheduler) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	staleBefore := now.Add(-s.claimTimeout)

	tasks, err := s.persistence.DueTasks(ctx, now, staleBefore, s.batchLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list due tasks: %w", err)
	}

	resumed := 0

	for _, task := range tasks {
		claimed, err := s.persistence.ClaimDueTask(ctx, task.ID, now, staleBefore)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to claim task", "task_id", task.ID, "error", err)

			continue
		}

		if !claimed {
			// Another sweep got there first.
			continue
		}

		if s.resume(ctx, task) {
			resumed++
		}
	}

	return resumed, nil
}

// ResumeOne is the operator path: it forces a pending or failed task into
// processing and resumes it immediately, ignoring due_at.
func (s *Scheduler) ResumeOne(ctx context.Context, taskID string) (engine.WalkResult, error) {
	task, err := s.persistence.TaskByID(ctx, taskID)
	if err != nil {
		return engine.WalkResult{}, err
	}

	claimed, err := s.persistence.RetryTask(ctx, taskID, time.Now().UTC())
	if err != nil {
		return engine.WalkResult{}, fmt.Errorf("failed to claim task %s: %w", taskID, err)
	}

	if !claimed {
		return engine.WalkResult{}, fmt.Errorf("task %s is not resumable in status %s", taskID, task.Status)
	}

	result, err := s.resumer.Resume(ctx, task)
	if err != nil {
		s.recordFailure(ctx, task, err)

		return result, err
	}

	s.recordSuccess(ctx, task)

	return result, nil
}

// resume runs one claimed task to its next pause point and records the
// outcome on the task row. Returns true on success.
func (s *Scheduler) resume(ctx context.Context, task *models.JourneyTask) bool {
	result, err := s.resumer.Resume(ctx, task)
	if err != nil {
		// A gone version or node is permanent; anything else may succeed
		// on a later sweep, but both land in failed for operator review.
		if errors.Is(err, engine.ErrResumeTarget) {
			s.logger.WarnContext(ctx, "Task resume target no longer exists",
				"task_id", task.ID, "journey_id", task.JourneyID, "error", err)
		}

		s.recordFailure(ctx, task, err)

		return false
	}

	s.logger.InfoContext(ctx, "Resumed task",
		"task_id", task.ID, "walk_id", result.WalkID, "status", result.Status)

	s.recordSuccess(ctx, task)

	return true
}

func (s *Scheduler) recordSuccess(ctx context.Context, task *models.JourneyTask) {
	if err := s.persistence.CompleteTask(ctx, task.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to mark task done", "task_id", task.ID, "error", err)

		return
	}

	s.publishTaskResumed(ctx, task)
}

func (s *Scheduler) recordFailure(ctx context.Context, task *models.JourneyTask, cause error) {
	if err := s.persistence.FailTask(ctx, task.ID, cause.Error()); err != nil {
		s.logger.ErrorContext(ctx, "Failed to mark task failed", "task_id", task.ID, "error", err)
	}

	s.publishTaskFailed(ctx, task, cause)
}

func (s *Scheduler) publishTaskScheduled(ctx context.Context, task *models.JourneyTask) {
	if s.bus == nil {
		return
	}

	event := events.TaskScheduled{
		BaseEvent: s.baseEvent(events.TaskScheduledEvent, task.JourneyID),
		TaskID:    task.ID,
		Version:   task.Version,
		SubjectID: task.SubjectID,
		NodeID:    task.NodeID,
		DueAt:     task.DueAt,
	}

	if err := s.bus.Publish(ctx, task.JourneyID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish task event", "error", err)
	}
}

func (s *Scheduler) publishTaskResumed(ctx context.Context, task *models.JourneyTask) {
	if s.bus == nil {
		return
	}

	event := events.TaskResumed{
		BaseEvent: s.baseEvent(events.TaskResumedEvent, task.JourneyID),
		TaskID:    task.ID,
		Version:   task.Version,
		SubjectID: task.SubjectID,
	}

	if err := s.bus.Publish(ctx, task.JourneyID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish task event", "error", err)
	}
}

func (s *Scheduler) publishTaskFailed(ctx context.Context, task *models.JourneyTask, cause error) {
	if s.bus == nil {
		return
	}

	event := events.TaskFailed{
		BaseEvent: s.baseEvent(events.TaskFailedEvent, task.JourneyID),
		TaskID:    task.ID,
		Version:   task.Version,
		SubjectID: task.SubjectID,
		Error:     cause.Error(),
	}

	if err := s.bus.Publish(ctx, task.JourneyID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish task event", "error", err)
	}
}

func (s *Scheduler) baseEvent(eventType events.EventType, journeyID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		JourneyID: journeyID,
	}
}
