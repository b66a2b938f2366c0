package file

import (
	"context"
	"sort"
	"time"

	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
)

// CreateTask persists a paused execution.
func (p *Persistence) CreateTask(_ context.Context, task *models.JourneyTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := copyTask(task)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now().UTC()
	}

	stored.UpdatedAt = now().UTC()
	p.tasks[stored.ID] = stored

	return p.flushLocked()
}

// TaskByID returns a task by id.
func (p *Persistence) TaskByID(_ context.Context, id string) (*models.JourneyTask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	task, ok := p.tasks[id]
	if !ok {
		return nil, persistence.ErrTaskNotFound
	}

	return copyTask(task), nil
}

// TasksByStatus returns all tasks in the given status.
func (p *Persistence) TasksByStatus(_ context.Context, status models.TaskStatus) ([]*models.JourneyTask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tasks := make([]*models.JourneyTask, 0)

	for _, task := range p.tasks {
		if task.Status == status {
			tasks = append(tasks, copyTask(task))
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].DueAt.Before(tasks[j].DueAt)
	})

	return tasks, nil
}

// DueTasks returns due pending tasks plus stale processing tasks, ordered
// by due time.
func (p *Persistence) DueTasks(_ context.Context, dueBy, staleBefore time.Time, limit int) ([]*models.JourneyTask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tasks := make([]*models.JourneyTask, 0)

	for _, task := range p.tasks {
		if taskEligible(task, dueBy, staleBefore) {
			tasks = append(tasks, copyTask(task))
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].DueAt.Before(tasks[j].DueAt)
	})

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}

	return tasks, nil
}

func taskEligible(task *models.JourneyTask, dueBy, staleBefore time.Time) bool {
	switch task.Status {
	case models.TaskStatusPending:
		return !task.DueAt.After(dueBy)
	case models.TaskStatusProcessing:
		// A claim older than the liveness threshold belongs to a crashed
		// worker; the action idempotency keys make the re-resume safe.
		return task.ClaimedAt != nil && task.ClaimedAt.Before(staleBefore)
	default:
		return false
	}
}

// ClaimDueTask is the conditional pending->processing transition.
func (p *Persistence) ClaimDueTask(_ context.Context, id string, claimTime, staleBefore time.Time) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	task, ok := p.tasks[id]
	if !ok {
		// Deleted between sweep and claim: treat as already handled.
		return false, nil
	}

	if !taskEligible(task, claimTime, staleBefore) {
		return false, nil
	}

	claimedAt := claimTime.UTC()
	task.Status = models.TaskStatusProcessing
	task.ClaimedAt = &claimedAt
	task.UpdatedAt = claimedAt

	if err := p.flushLocked(); err != nil {
		return false, err
	}

	return true, nil
}

// RetryTask transitions pending or failed to processing for a manual resume.
func (p *Persistence) RetryTask(_ context.Context, id string, claimTime time.Time) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	task, ok := p.tasks[id]
	if !ok {
		return false, persistence.ErrTaskNotFound
	}

	if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusFailed {
		return false, nil
	}

	claimedAt := claimTime.UTC()
	task.Status = models.TaskStatusProcessing
	task.ClaimedAt = &claimedAt
	task.UpdatedAt = claimedAt

	if err := p.flushLocked(); err != nil {
		return false, err
	}

	return true, nil
}

// CompleteTask marks a claimed task done.
func (p *Persistence) CompleteTask(_ context.Context, id string) error {
	return p.finishTask(id, models.TaskStatusDone, "")
}

// FailTask marks a task failed and records the error for inspection. Failed
// tasks are kept, not auto-deleted, to preserve auditability.
func (p *Persistence) FailTask(_ context.Context, id, reason string) error {
	return p.finishTask(id, models.TaskStatusFailed, reason)
}

func (p *Persistence) finishTask(id string, status models.TaskStatus, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	task, ok := p.tasks[id]
	if !ok {
		return persistence.ErrTaskNotFound
	}

	task.Status = status
	task.LastError = reason
	task.UpdatedAt = now().UTC()

	return p.flushLocked()
}

// DeleteTask removes a task row; this is the wait-cancellation path.
func (p *Persistence) DeleteTask(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.tasks[id]; !ok {
		return persistence.ErrTaskNotFound
	}

	delete(p.tasks, id)

	return p.flushLocked()
}

// SaveCompletion records a goal completion.
func (p *Persistence) SaveCompletion(_ context.Context, completion *models.Completion) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	copied := *completion
	p.completions[completion.ID] = &copied

	return p.flushLocked()
}

// Completions returns goal completions for a journey, optionally filtered
// by subject.
func (p *Persistence) Completions(_ context.Context, journeyID, subjectID string) ([]*models.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	completions := make([]*models.Completion, 0)

	for _, completion := range p.completions {
		if completion.JourneyID != journeyID {
			continue
		}

		if subjectID != "" && completion.SubjectID != subjectID {
			continue
		}

		copied := *completion
		completions = append(completions, &copied)
	}

	sort.Slice(completions, func(i, j int) bool {
		return completions[i].CompletedAt.Before(completions[j].CompletedAt)
	})

	return completions, nil
}
