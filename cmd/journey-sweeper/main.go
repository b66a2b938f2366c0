package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/pathwave/journey/pkg/cmd"
	"github.com/pathwave/journey/pkg/engine"
	"github.com/pathwave/journey/pkg/log"
	"github.com/pathwave/journey/pkg/receivers/queue"
	"github.com/pathwave/journey/pkg/scheduler"
	"github.com/pathwave/journey/pkg/senders"
)

func main() {
	command := &cli.Command{
		Name:                  "journey-sweeper",
		Usage:                 "Resume due journey wait tasks on a schedule",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "sweeper-id",
				Aliases: []string{"id"},
				Usage:   "Custom sweeper ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SWEEPER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for the sweep cadence",
				Value:   "@every 30s",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "event-queue",
				Usage:   "Redis list to consume subject events from (disabled if empty)",
				Sources: cli.EnvVars("EVENT_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the event queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "profiles-path",
				Usage:   "Path to a JSON file with subject profiles",
				Sources: cli.EnvVars("PROFILES_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			sweeperID := command.String("sweeper-id")
			if sweeperID == "" {
				sweeperID = fmt.Sprintf("sweeper-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("sweeper").With("sweeper_id", sweeperID)
			logger.InfoContext(ctx, "Initializing Journey Sweeper")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			registry := senders.NewDefaultRegistry(logger)
			profileStore := cmd.NewProfileStore(command.String("profiles-path"))

			eng := engine.New(persistence, registry, profileStore, eventBus, logger)
			sched := scheduler.New(persistence, eng, eventBus, logger)
			eng.SetScheduler(sched)

			var receiver *queue.Receiver

			if queueName := command.String("event-queue"); queueName != "" {
				var err error

				receiver, err = queue.NewReceiver(queueName, map[string]string{
					"addr": command.String("redis-addr"),
				}, logger)
				if err != nil {
					return err
				}
			}

			sweeper := NewSweeper(
				sweeperID,
				eng,
				sched,
				receiver,
				command.String("schedule"),
				logger,
			)

			return sweeper.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
