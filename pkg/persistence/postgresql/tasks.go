package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
)

const taskColumns = "id, journey_id, version, node_id, subject_id, context, due_at, status, claimed_at, last_error, created_at, updated_at"

// CreateTask persists a paused execution.
func (p *Persistence) CreateTask(ctx context.Context, task *models.JourneyTask) error {
	taskContext, err := json.Marshal(task.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal task context: %w", err)
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	task.UpdatedAt = now

	query := `
		INSERT INTO journey_tasks (id, journey_id, version, node_id, subject_id, context, due_at, status, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = p.db.ExecContext(ctx, query,
		task.ID,
		task.JourneyID,
		task.Version,
		task.NodeID,
		task.SubjectID,
		taskContext,
		task.DueAt,
		task.Status,
		task.LastError,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	return nil
}

// TaskByID returns a task by id.
func (p *Persistence) TaskByID(ctx context.Context, id string) (*models.JourneyTask, error) {
	query := "SELECT " + taskColumns + " FROM journey_tasks WHERE id = $1"

	task, err := scanTask(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTaskNotFound
		}

		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	return task, nil
}

// TasksByStatus returns all tasks in the given status, ordered by due time.
func (p *Persistence) TasksByStatus(ctx context.Context, status models.TaskStatus) ([]*models.JourneyTask, error) {
	query := "SELECT " + taskColumns + " FROM journey_tasks WHERE status = $1 ORDER BY due_at ASC"

	return p.queryTasks(ctx, query, status)
}

// DueTasks returns due pending tasks plus stale processing tasks.
func (p *Persistence) DueTasks(ctx context.Context, dueBy, staleBefore time.Time, limit int) ([]*models.JourneyTask, error) {
	query := "SELECT " + taskColumns + ` FROM journey_tasks
		WHERE (status = 'pending' AND due_at <= $1)
		   OR (status = 'processing' AND claimed_at < $2)
		ORDER BY due_at ASC`

	args := []any{dueBy, staleBefore}

	if limit > 0 {
		query += " LIMIT $3"

		args = append(args, limit)
	}

	return p.queryTasks(ctx, query, args...)
}

// ClaimDueTask is the conditional pending->processing transition. The WHERE
// clause carries the whole claim: two concurrent sweeps cannot both see a
// row affected.
func (p *Persistence) ClaimDueTask(ctx context.Context, id string, claimTime, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE journey_tasks
		SET status = 'processing', claimed_at = $2, updated_at = $2
		WHERE id = $1
		  AND (status = 'pending' OR (status = 'processing' AND claimed_at < $3))
	`

	result, err := p.db.ExecContext(ctx, query, id, claimTime.UTC(), staleBefore.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// RetryTask transitions pending or failed to processing for a manual resume.
func (p *Persistence) RetryTask(ctx context.Context, id string, claimTime time.Time) (bool, error) {
	query := `
		UPDATE journey_tasks
		SET status = 'processing', claimed_at = $2, updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'failed')
	`

	result, err := p.db.ExecContext(ctx, query, id, claimTime.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to retry task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		exists, err := p.taskExists(ctx, id)
		if err != nil {
			return false, err
		}

		if !exists {
			return false, persistence.ErrTaskNotFound
		}
	}

	return affected == 1, nil
}

// CompleteTask marks a claimed task done.
func (p *Persistence) CompleteTask(ctx context.Context, id string) error {
	return p.finishTask(ctx, id, models.TaskStatusDone, "")
}

// FailTask marks a task failed and records the error.
func (p *Persistence) FailTask(ctx context.Context, id, reason string) error {
	return p.finishTask(ctx, id, models.TaskStatusFailed, reason)
}

func (p *Persistence) finishTask(ctx context.Context, id string, status models.TaskStatus, reason string) error {
	query := "UPDATE journey_tasks SET status = $2, last_error = $3, updated_at = $4 WHERE id = $1"

	result, err := p.db.ExecContext(ctx, query, id, status, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrTaskNotFound
	}

	return nil
}

// DeleteTask removes a task row; this is the wait-cancellation path.
func (p *Persistence) DeleteTask(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, "DELETE FROM journey_tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrTaskNotFound
	}

	return nil
}

// SaveCompletion records a goal completion.
func (p *Persistence) SaveCompletion(ctx context.Context, completion *models.Completion) error {
	query := `
		INSERT INTO journey_completions (id, journey_id, version, subject_id, goal_node_id, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := p.db.ExecContext(ctx, query,
		completion.ID,
		completion.JourneyID,
		completion.Version,
		completion.SubjectID,
		completion.GoalNodeID,
		completion.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save completion: %w", err)
	}

	return nil
}

// Completions returns goal completions for a journey, optionally filtered
// by subject.
func (p *Persistence) Completions(ctx context.Context, journeyID, subjectID string) ([]*models.Completion, error) {
	query := `
		SELECT id, journey_id, version, subject_id, goal_node_id, completed_at
		FROM journey_completions
		WHERE journey_id = $1 AND ($2 = '' OR subject_id = $2)
		ORDER BY completed_at ASC
	`

	rows, err := p.db.QueryContext(ctx, query, journeyID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	completions := make([]*models.Completion, 0)

	for rows.Next() {
		completion := &models.Completion{}

		err := rows.Scan(
			&completion.ID,
			&completion.JourneyID,
			&completion.Version,
			&completion.SubjectID,
			&completion.GoalNodeID,
			&completion.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}

		completions = append(completions, completion)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completions: %w", err)
	}

	return completions, nil
}

func (p *Persistence) taskExists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := p.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM journey_tasks WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}

	return exists, nil
}

func (p *Persistence) queryTasks(ctx context.Context, query string, args ...any) ([]*models.JourneyTask, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tasks := make([]*models.JourneyTask, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

func scanTask(row rowScanner) (*models.JourneyTask, error) {
	task := &models.JourneyTask{}

	var (
		taskContext []byte
		claimedAt   sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.JourneyID,
		&task.Version,
		&task.NodeID,
		&task.SubjectID,
		&taskContext,
		&task.DueAt,
		&task.Status,
		&claimedAt,
		&task.LastError,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(taskContext, &task.Context); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task context: %w", err)
	}

	if claimedAt.Valid {
		at := claimedAt.Time
		task.ClaimedAt = &at
	}

	return task, nil
}
