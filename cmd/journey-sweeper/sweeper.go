// Package main provides the journey sweeper: the background service that
// resumes due wait tasks and, optionally, consumes subject events from a
// Redis queue.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pathwave/journey/pkg/engine"
	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/receivers/queue"
	"github.com/pathwave/journey/pkg/scheduler"
)

type Sweeper struct {
	id        string
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	receiver  *queue.Receiver
	schedule  string
	logger    *slog.Logger
	cron      *cron.Cron
}

func NewSweeper(
	id string,
	eng *engine.Engine,
	sched *scheduler.Scheduler,
	receiver *queue.Receiver,
	schedule string,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		id:        id,
		engine:    eng,
		scheduler: sched,
		receiver:  receiver,
		schedule:  schedule,
		logger:    logger.With("sweeper_id", id),
		cron:      cron.New(),
	}
}

// Start runs the sweep cadence (and the event receiver when configured)
// until SIGINT or SIGTERM.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return err
	}

	if s.receiver != nil {
		if err := s.receiver.Start(ctx, func(ctx context.Context, event models.Event) error {
			_, err := s.engine.OnEvent(ctx, event)

			return err
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Sweeper started", "schedule", s.schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	s.logger.InfoContext(ctx, "Shutting down sweeper...")

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	if s.receiver != nil {
		if err := s.receiver.Stop(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to stop receiver", "error", err)
		}
	}

	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	resumed, err := s.scheduler.ProcessDue(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Sweep failed", "error", err)

		return
	}

	if resumed > 0 {
		s.logger.InfoContext(ctx, "Sweep finished", "resumed", resumed)
	}
}
