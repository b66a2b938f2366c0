package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwave/journey/pkg/engine"
	"github.com/pathwave/journey/pkg/journey"
	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence/file"
	"github.com/pathwave/journey/pkg/profiles"
	"github.com/pathwave/journey/pkg/scheduler"
	"github.com/pathwave/journey/pkg/senders"
	"github.com/pathwave/journey/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *profiles.StaticStore) {
	t.Helper()

	p, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close(context.Background()) })

	logger := slog.Default()
	registry := senders.NewDefaultRegistry(logger)
	profileStore := profiles.NewStaticStore(nil)

	journeyService := journey.NewService(p, registry, nil, logger)
	eng := engine.New(p, registry, profileStore, nil, logger)
	sched := scheduler.New(p, eng, nil, logger)
	eng.SetScheduler(sched)

	handlers := web.NewAPIHandlers(journeyService, eng, sched, p, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	j := app.Group("/journeys")
	j.Get("/", handlers.GetJourneys)
	j.Post("/", handlers.CreateJourney)
	j.Get("/:id", handlers.GetJourney)
	j.Delete("/:id", handlers.DeleteJourney)
	j.Post("/:id/versions", handlers.SaveDraft)
	j.Get("/:id/versions", handlers.GetVersions)
	j.Get("/:id/published", handlers.GetPublished)
	j.Get("/:id/completions", handlers.GetCompletions)

	app.Post("/versions/:versionId/publish", handlers.PublishVersion)
	app.Post("/events", handlers.SubmitEvent)

	tasks := app.Group("/tasks")
	tasks.Get("/", handlers.GetTasks)
	tasks.Post("/sweep", handlers.SweepTasks)
	tasks.Post("/:taskId/resume", handlers.ResumeTask)
	tasks.Delete("/:taskId", handlers.CancelTask)

	app.Get("/health", handlers.HealthCheck)

	return app, profileStore
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, payload
}

func graphBody() map[string]any {
	return map[string]any{
		"schema": map[string]any{
			"nodes": []map[string]any{
				{"id": "t1", "type": "trigger", "data": map[string]any{"kind": "event", "event_type": "signup"}},
				{"id": "a1", "type": "action", "data": map[string]any{
					"channel": "email", "payload": map[string]any{"template": "welcome"},
				}},
			},
			"edges": []map[string]any{
				{"id": "e1", "source": "t1", "target": "a1"},
			},
		},
	}
}

func TestAPI_JourneyLifecycle(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	// Create.
	resp, body := doJSON(t, app, http.MethodPost, "/journeys/", web.CreateJourneyRequest{
		Name: "Onboarding", Description: "welcome flow",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Journey
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)

	// Draft.
	resp, body = doJSON(t, app, http.MethodPost, "/journeys/"+created.ID+"/versions", graphBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var version models.JourneyVersion
	require.NoError(t, json.Unmarshal(body, &version))
	assert.Equal(t, 1, version.Version)
	assert.Equal(t, models.VersionStatusDraft, version.Status)

	// No published version yet.
	resp, _ = doJSON(t, app, http.MethodGet, "/journeys/"+created.ID+"/published", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Publish.
	resp, body = doJSON(t, app, http.MethodPost, "/versions/"+version.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var published models.JourneyVersion
	require.NoError(t, json.Unmarshal(body, &published))
	assert.Equal(t, models.VersionStatusPublished, published.Status)

	resp, body = doJSON(t, app, http.MethodGet, "/journeys/"+created.ID+"/published", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Publishing the same version again conflicts.
	resp, _ = doJSON(t, app, http.MethodPost, "/versions/"+version.ID+"/publish", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Deleting a journey with versions is rejected.
	resp, _ = doJSON(t, app, http.MethodDelete, "/journeys/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_CreateJourney_Validation(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/journeys/", web.CreateJourneyRequest{Name: "ab"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/journeys/", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_SaveDraft_Errors(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	// Unknown journey.
	resp, _ := doJSON(t, app, http.MethodPost, "/journeys/missing/versions", graphBody())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Broken references are a 400.
	respCreate, body := doJSON(t, app, http.MethodPost, "/journeys/", web.CreateJourneyRequest{Name: "Onboarding"})
	require.Equal(t, http.StatusCreated, respCreate.StatusCode)

	var created models.Journey
	require.NoError(t, json.Unmarshal(body, &created))

	broken := map[string]any{
		"schema": map[string]any{
			"nodes": []map[string]any{{"id": "a1", "type": "action"}},
			"edges": []map[string]any{{"id": "e1", "source": "a1", "target": "ghost"}},
		},
	}

	resp, _ = doJSON(t, app, http.MethodPost, "/journeys/"+created.ID+"/versions", broken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Publish_InvalidGraph(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/journeys/", web.CreateJourneyRequest{Name: "Onboarding"})

	var created models.Journey
	require.NoError(t, json.Unmarshal(body, &created))

	// Draft without a trigger saves fine but cannot be published.
	noTrigger := map[string]any{
		"schema": map[string]any{
			"nodes": []map[string]any{{"id": "a1", "type": "action", "data": map[string]any{
				"channel": "email", "payload": map[string]any{"template": "welcome"},
			}}},
		},
	}

	resp, body := doJSON(t, app, http.MethodPost, "/journeys/"+created.ID+"/versions", noTrigger)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var version models.JourneyVersion
	require.NoError(t, json.Unmarshal(body, &version))

	resp, _ = doJSON(t, app, http.MethodPost, "/versions/"+version.ID+"/publish", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_EventStartsWalk(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/journeys/", web.CreateJourneyRequest{Name: "Onboarding"})

	var created models.Journey
	require.NoError(t, json.Unmarshal(body, &created))

	_, body = doJSON(t, app, http.MethodPost, "/journeys/"+created.ID+"/versions", graphBody())

	var version models.JourneyVersion
	require.NoError(t, json.Unmarshal(body, &version))

	resp, _ := doJSON(t, app, http.MethodPost, "/versions/"+version.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/events", web.EventRequest{
		SubjectID: "subject-1", EventType: "signup",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var walks struct {
		Walks []engine.WalkResult `json:"walks"`
	}
	require.NoError(t, json.Unmarshal(body, &walks))
	require.Len(t, walks.Walks, 1)
	assert.Equal(t, engine.WalkStatusCompleted, walks.Walks[0].Status)

	// Missing subject_id is a 400.
	resp, _ = doJSON(t, app, http.MethodPost, "/events", web.EventRequest{EventType: "signup"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_TaskEndpoints(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/journeys/", web.CreateJourneyRequest{Name: "Onboarding"})

	var created models.Journey
	require.NoError(t, json.Unmarshal(body, &created))

	waitGraph := map[string]any{
		"schema": map[string]any{
			"nodes": []map[string]any{
				{"id": "t1", "type": "trigger", "data": map[string]any{"kind": "event", "event_type": "signup"}},
				{"id": "w1", "type": "wait", "data": map[string]any{"delay_seconds": 3600}},
				{"id": "a1", "type": "action", "data": map[string]any{
					"channel": "email", "payload": map[string]any{"template": "day_after"},
				}},
			},
			"edges": []map[string]any{
				{"id": "e1", "source": "t1", "target": "w1"},
				{"id": "e2", "source": "w1", "target": "a1"},
			},
		},
	}

	_, body = doJSON(t, app, http.MethodPost, "/journeys/"+created.ID+"/versions", waitGraph)

	var version models.JourneyVersion
	require.NoError(t, json.Unmarshal(body, &version))

	resp, _ := doJSON(t, app, http.MethodPost, "/versions/"+version.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/events", web.EventRequest{
		SubjectID: "subject-1", EventType: "signup",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// The wait produced a pending task.
	resp, body = doJSON(t, app, http.MethodGet, "/tasks/?status=pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Tasks []models.JourneyTask `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed.Tasks, 1)

	// Not due yet, so a sweep resumes nothing.
	resp, body = doJSON(t, app, http.MethodPost, "/tasks/sweep", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sweep web.SweepResponse
	require.NoError(t, json.Unmarshal(body, &sweep))
	assert.Zero(t, sweep.Resumed)

	// An operator can force it through.
	resp, body = doJSON(t, app, http.MethodPost, "/tasks/"+listed.Tasks[0].ID+"/resume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result engine.WalkResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, engine.WalkStatusCompleted, result.Status)

	resp, _ = doJSON(t, app, http.MethodPost, "/tasks/missing/resume", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
