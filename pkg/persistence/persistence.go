// Package persistence provides the data storage abstraction for journeys,
// versions and tasks.
package persistence

import (
	"context"
	"time"

	"github.com/pathwave/journey/pkg/models"
)

type Persistence interface {
	// Journeys.
	Journeys(ctx context.Context) ([]*models.Journey, error)
	JourneyByID(ctx context.Context, id string) (*models.Journey, error)
	SaveJourney(ctx context.Context, journey *models.Journey) error
	// DeleteJourney rejects with ErrJourneyHasVersions while versions
	// still reference the journey.
	DeleteJourney(ctx context.Context, id string) error

	// Versions. Versions are immutable after creation; the only status
	// transitions happen inside PublishVersion.
	CreateVersion(ctx context.Context, version *models.JourneyVersion) error
	VersionByID(ctx context.Context, id string) (*models.JourneyVersion, error)
	VersionByNumber(ctx context.Context, journeyID string, number int) (*models.JourneyVersion, error)
	VersionsByJourney(ctx context.Context, journeyID string) ([]*models.JourneyVersion, error)
	NextVersionNumber(ctx context.Context, journeyID string) (int, error)

	// PublishVersion atomically archives the journey's current published
	// version (if any), marks the target draft published, stamps
	// published_at and updates Journey.PublishedVersion. The write is
	// conditional on the target still being a draft; a concurrent publish
	// race surfaces as ErrPublishConflict with no side effects.
	PublishVersion(ctx context.Context, versionID string, now time.Time) (*models.JourneyVersion, error)
	PublishedVersion(ctx context.Context, journeyID string) (*models.JourneyVersion, error)

	// Tasks.
	CreateTask(ctx context.Context, task *models.JourneyTask) error
	TaskByID(ctx context.Context, id string) (*models.JourneyTask, error)
	TasksByStatus(ctx context.Context, status models.TaskStatus) ([]*models.JourneyTask, error)
	// DueTasks returns pending tasks with due_at <= now, plus processing
	// tasks claimed before staleBefore (crashed-worker reclaim).
	DueTasks(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.JourneyTask, error)
	// ClaimDueTask conditionally transitions pending (or stale processing)
	// to processing. Returns false when another worker won the claim or
	// the row is gone.
	ClaimDueTask(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)
	// RetryTask conditionally transitions pending or failed to processing
	// for an operator-initiated resume.
	RetryTask(ctx context.Context, id string, now time.Time) (bool, error)
	CompleteTask(ctx context.Context, id string) error
	FailTask(ctx context.Context, id, reason string) error
	// DeleteTask is the cancellation path for an in-flight wait; deleting
	// a row a sweep has already claimed is safe.
	DeleteTask(ctx context.Context, id string) error

	// Goal completions.
	SaveCompletion(ctx context.Context, completion *models.Completion) error
	Completions(ctx context.Context, journeyID, subjectID string) ([]*models.Completion, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
