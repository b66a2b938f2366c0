// Package web provides HTTP handlers and REST API endpoints for journey
// management and execution.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/pathwave/journey/pkg/engine"
	"github.com/pathwave/journey/pkg/journey"
	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
	"github.com/pathwave/journey/pkg/scheduler"
)

type APIHandlers struct {
	journeyService *journey.Service
	engine         *engine.Engine
	scheduler      *scheduler.Scheduler
	persistence    persistence.Persistence
	validator      *validator.Validate
}

func NewAPIHandlers(
	journeyService *journey.Service,
	eng *engine.Engine,
	sched *scheduler.Scheduler,
	p persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		journeyService: journeyService,
		engine:         eng,
		scheduler:      sched,
		persistence:    p,
		validator:      validate,
	}
}

func (h *APIHandlers) GetJourneys(c fiber.Ctx) error {
	journeys, err := h.journeyService.Journeys(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"journeys": journeys})
}

func (h *APIHandlers) CreateJourney(c fiber.Ctx) error {
	var req CreateJourneyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.journeyService.CreateJourney(c.Context(), req.Name, req.Description)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetJourney(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	found, err := h.journeyService.JourneyByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) DeleteJourney(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	err := h.persistence.DeleteJourney(c.Context(), id)
	if err != nil {
		if persistence.IsJourneyNotFound(err) {
			return notFound(c, "journey not found")
		}

		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// SaveDraft stores the submitted graph as the journey's next draft version.
// Only referential integrity is checked here; full validation runs at
// publish time.
func (h *APIHandlers) SaveDraft(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	var req SaveDraftRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	version, err := h.journeyService.SaveDraft(c.Context(), id, req.Graph)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(version)
}

func (h *APIHandlers) GetVersions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	versions, err := h.journeyService.Versions(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"versions": versions})
}

func (h *APIHandlers) GetPublished(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	version, err := h.journeyService.GetPublished(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(version)
}

func (h *APIHandlers) PublishVersion(c fiber.Ctx) error {
	versionID := c.Params("versionId")
	if versionID == "" {
		return badRequest(c, "Version ID is required")
	}

	published, err := h.journeyService.Publish(c.Context(), versionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) GetCompletions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	completions, err := h.persistence.Completions(c.Context(), id, c.Query("subject_id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"completions": completions})
}

// SubmitEvent runs the submitted subject event against all published
// journeys and returns the walks it started.
func (h *APIHandlers) SubmitEvent(c fiber.Ctx) error {
	var req EventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	timestamp := time.Now().UTC()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	event := models.Event{
		SubjectID: req.SubjectID,
		EventType: req.EventType,
		Timestamp: timestamp,
		Payload:   req.Payload,
	}

	results, err := h.engine.OnEvent(c.Context(), event)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"walks": results})
}

func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	status := models.TaskStatus(c.Query("status", string(models.TaskStatusPending)))

	tasks, err := h.persistence.TasksByStatus(c.Context(), status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

// SweepTasks triggers one due-task sweep immediately. The sweeper runs this
// on a cadence; the endpoint exists for operators and tests.
func (h *APIHandlers) SweepTasks(c fiber.Ctx) error {
	now := time.Now().UTC()

	resumed, err := h.scheduler.ProcessDue(c.Context(), now)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(SweepResponse{Resumed: resumed, SweptAt: now})
}

func (h *APIHandlers) ResumeTask(c fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return badRequest(c, "Task ID is required")
	}

	result, err := h.scheduler.ResumeOne(c.Context(), taskID)
	if err != nil {
		if persistence.IsTaskNotFound(err) {
			return notFound(c, "task not found")
		}

		if engine.IsResumeError(err) {
			return conflict(c, err.Error())
		}

		return internalError(c, err)
	}

	return c.JSON(result)
}

// CancelTask deletes an in-flight wait. Deleting a task a sweep already
// claimed is a no-op on the sweep side.
func (h *APIHandlers) CancelTask(c fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return badRequest(c, "Task ID is required")
	}

	if err := h.persistence.DeleteTask(c.Context(), taskID); err != nil {
		if persistence.IsTaskNotFound(err) {
			return notFound(c, "task not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	message := "Journey API is healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		message = "Journey API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
