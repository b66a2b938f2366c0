package scheduler_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwave/journey/pkg/engine"
	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
	"github.com/pathwave/journey/pkg/persistence/file"
	"github.com/pathwave/journey/pkg/profiles"
	"github.com/pathwave/journey/pkg/scheduler"
	"github.com/pathwave/journey/pkg/senders"
)

type fixture struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	scheduler   *scheduler.Scheduler
	email       *senders.Recorder
	profiles    *profiles.StaticStore
}

func setup(t *testing.T) *fixture {
	t.Helper()

	p, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close(context.Background()) })

	email := senders.NewRecorder(models.ChannelEmail)

	registry := senders.NewRegistry(slog.Default())
	registry.Register(email)

	profileStore := profiles.NewStaticStore(nil)

	eng := engine.New(p, registry, profileStore, nil, slog.Default())
	sched := scheduler.New(p, eng, nil, slog.Default())
	eng.SetScheduler(sched)

	return &fixture{
		persistence: p,
		engine:      eng,
		scheduler:   sched,
		email:       email,
		profiles:    profileStore,
	}
}

func delayedEmailGraph(template string) models.Graph {
	return models.Graph{
		Nodes: []*models.Node{
			{ID: "t1", Type: models.NodeTypeTrigger, Data: map[string]any{"kind": "event", "event_type": "signup"}},
			{ID: "w1", Type: models.NodeTypeWait, Data: map[string]any{"delay_seconds": float64(86400)}},
			{ID: "a1", Type: models.NodeTypeAction, Data: map[string]any{
				"channel": "email", "payload": map[string]any{"template": template},
			}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "t1", Target: "w1"},
			{ID: "e2", Source: "w1", Target: "a1"},
		},
	}
}

func seedJourney(t *testing.T, p persistence.Persistence, graph models.Graph) *models.Journey {
	t.Helper()

	ctx := context.Background()

	j := &models.Journey{ID: uuid.New().String(), Name: "Scheduled Journey"}
	require.NoError(t, p.SaveJourney(ctx, j))

	version := &models.JourneyVersion{
		ID: uuid.New().String(), JourneyID: j.ID, Version: 1,
		Status: models.VersionStatusDraft, Graph: graph,
	}
	require.NoError(t, p.CreateVersion(ctx, version))

	_, err := p.PublishVersion(ctx, version.ID, time.Now())
	require.NoError(t, err)

	return j
}

func startWaitingWalk(t *testing.T, f *fixture) *models.JourneyTask {
	t.Helper()

	ctx := context.Background()

	results, err := f.engine.OnEvent(ctx, models.Event{
		SubjectID: "subject-1", EventType: "signup", Timestamp: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, engine.WalkStatusWaiting, results[0].Status)

	task, err := f.persistence.TaskByID(ctx, results[0].TaskID)
	require.NoError(t, err)

	return task
}

// A walk pauses on a wait and resumes only once the task is due; the sweep
// then completes the remainder of the walk and marks the task done.
func TestScheduler_SweepResumesDueTasks(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	seedJourney(t, f.persistence, delayedEmailGraph("day_after"))
	task := startWaitingWalk(t, f)

	// Too early: nothing is due yet.
	resumed, err := f.scheduler.ProcessDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, resumed)
	assert.Empty(t, f.email.Dispatches())

	// One second past due: the walk finishes.
	resumed, err = f.scheduler.ProcessDue(ctx, task.DueAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	dispatches := f.email.Dispatches()
	require.Len(t, dispatches, 1)
	assert.Equal(t, "day_after", dispatches[0]["template"])

	done, err := f.persistence.TaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, done.Status)

	// A later sweep finds nothing left.
	resumed, err = f.scheduler.ProcessDue(ctx, task.DueAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, resumed)
	assert.Len(t, f.email.Dispatches(), 1)
}

// Tasks resume against the version they were created under, even after a
// newer version is published.
func TestScheduler_ResumeUsesPinnedVersion(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	j := seedJourney(t, f.persistence, delayedEmailGraph("original_offer"))
	task := startWaitingWalk(t, f)

	// Publish a reworked version 2 with a different template.
	v2 := &models.JourneyVersion{
		ID: uuid.New().String(), JourneyID: j.ID, Version: 2,
		Status: models.VersionStatusDraft, Graph: delayedEmailGraph("new_offer"),
	}
	require.NoError(t, f.persistence.CreateVersion(ctx, v2))
	_, err := f.persistence.PublishVersion(ctx, v2.ID, time.Now())
	require.NoError(t, err)

	resumed, err := f.scheduler.ProcessDue(ctx, task.DueAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	dispatches := f.email.Dispatches()
	require.Len(t, dispatches, 1)
	assert.Equal(t, "original_offer", dispatches[0]["template"])
}

// A task whose pinned version or node was deleted fails cleanly and stays
// visible for operators.
func TestScheduler_ResumeTargetGoneFailsTask(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	j := seedJourney(t, f.persistence, delayedEmailGraph("day_after"))

	orphan := &models.JourneyTask{
		ID: uuid.New().String(), JourneyID: j.ID, Version: 42,
		NodeID: "a1", SubjectID: "subject-1",
		Status: models.TaskStatusPending, DueAt: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, f.persistence.CreateTask(ctx, orphan))

	resumed, err := f.scheduler.ProcessDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, resumed)

	failed, err := f.persistence.TaskByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Contains(t, failed.LastError, "no longer exists")
}

// One broken task must not block the rest of the sweep.
func TestScheduler_SweepIsolatesFailures(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	j := seedJourney(t, f.persistence, delayedEmailGraph("day_after"))
	healthy := startWaitingWalk(t, f)

	broken := &models.JourneyTask{
		ID: uuid.New().String(), JourneyID: j.ID, Version: 42,
		NodeID: "a1", SubjectID: "subject-2",
		Status: models.TaskStatusPending,
		// Earlier due time so the broken task is processed first.
		DueAt: healthy.DueAt.Add(-time.Hour),
	}
	require.NoError(t, f.persistence.CreateTask(ctx, broken))

	resumed, err := f.scheduler.ProcessDue(ctx, healthy.DueAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	assert.Len(t, f.email.Dispatches(), 1)

	brokenAfter, err := f.persistence.TaskByID(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, brokenAfter.Status)

	healthyAfter, err := f.persistence.TaskByID(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, healthyAfter.Status)
}

// A fresh processing claim shields a task from concurrent sweeps; once the
// claim goes stale it is reclaimed, and idempotency keys keep the re-run
// from double-sending.
func TestScheduler_ReclaimsStaleClaims(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	seedJourney(t, f.persistence, delayedEmailGraph("day_after"))
	task := startWaitingWalk(t, f)

	sweepTime := task.DueAt.Add(time.Second)

	claimed, err := f.persistence.ClaimDueTask(ctx, task.ID, sweepTime, sweepTime.Add(-5*time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)

	// Simulated crash: the claim holder never finished. A sweep within the
	// claim window leaves the task alone.
	resumed, err := f.scheduler.ProcessDue(ctx, sweepTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, resumed)

	// Past the claim timeout the task is picked up again.
	resumed, err = f.scheduler.ProcessDue(ctx, sweepTime.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	assert.Len(t, f.email.Dispatches(), 1)
}

func TestScheduler_ResumeOne(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	seedJourney(t, f.persistence, delayedEmailGraph("day_after"))
	task := startWaitingWalk(t, f)

	// Operator resume ignores due_at.
	result, err := f.scheduler.ResumeOne(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.WalkStatusCompleted, result.Status)
	assert.Len(t, f.email.Dispatches(), 1)

	// Done tasks are not resumable again.
	_, err = f.scheduler.ResumeOne(ctx, task.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not resumable")

	_, err = f.scheduler.ResumeOne(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrTaskNotFound)
}

func TestScheduler_ScheduleWaitDefaults(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	j := seedJourney(t, f.persistence, delayedEmailGraph("day_after"))

	id, err := f.scheduler.ScheduleWait(ctx, &models.JourneyTask{
		JourneyID: j.ID, Version: 1, NodeID: "a1", SubjectID: "subject-1",
		DueAt: time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, err := f.persistence.TaskByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, stored.Status)
}
