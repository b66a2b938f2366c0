// Package main provides the journey API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/pathwave/journey/pkg/engine"
	"github.com/pathwave/journey/pkg/eventbus"
	"github.com/pathwave/journey/pkg/journey"
	"github.com/pathwave/journey/pkg/persistence"
	"github.com/pathwave/journey/pkg/profiles"
	"github.com/pathwave/journey/pkg/scheduler"
	"github.com/pathwave/journey/pkg/senders"
	"github.com/pathwave/journey/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	profiles    profiles.Store
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	profileStore profiles.Store,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		profiles:    profileStore,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	registry := senders.NewDefaultRegistry(a.logger)
	journeyService := journey.NewService(a.persistence, registry, a.eventBus, a.logger)

	eng := engine.New(a.persistence, registry, a.profiles, a.eventBus, a.logger)
	sched := scheduler.New(a.persistence, eng, a.eventBus, a.logger)
	eng.SetScheduler(sched)

	handlers := web.NewAPIHandlers(journeyService, eng, sched, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Journey API")
	})

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

	t := app.Group("/tasks")
	t.Get("/", handlers.GetTasks)
	t.Post("/sweep", handlers.SweepTasks)
	t.Post("/:taskId/resume", handlers.ResumeTask)
	t.Delete("/:taskId", handlers.CancelTask)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
