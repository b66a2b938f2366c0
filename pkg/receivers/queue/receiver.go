// Package queue provides a Redis-backed event receiver that feeds subject
// events into the execution engine.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"

	"github.com/pathwave/journey/pkg/models"
)

// EventHandler receives each decoded subject event. Implemented by the
// engine's OnEvent.
type EventHandler func(ctx context.Context, event models.Event) error

// eventSchema is the shape producers must push onto the queue.
var eventSchema = map[string]any{
	"type":     "object",
	"required": []any{"subject_id", "event_type"},
	"properties": map[string]any{
		"subject_id": map[string]any{"type": "string", "minLength": 1},
		"event_type": map[string]any{"type": "string", "minLength": 1},
		"timestamp":  map[string]any{"type": "string"},
		"payload":    map[string]any{"type": "object"},
	},
}

// Receiver pops subject events from a Redis list and hands them to the
// handler. Malformed messages are logged and dropped, never retried.
type Receiver struct {
	Queue      string
	Connection map[string]string

	client  redis.UniversalClient
	handler EventHandler
	logger  *slog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewReceiver(queue string, connection map[string]string, logger *slog.Logger) (*Receiver, error) {
	if queue == "" {
		return nil, errors.New("queue receiver queue name is required")
	}

	return &Receiver{
		Queue:      queue,
		Connection: connection,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_receiver",
			"queue", queue,
		),
	}, nil
}

func (r *Receiver) Start(ctx context.Context, handler EventHandler) error {
	r.logger.InfoContext(ctx, "Starting queue receiver")
	r.handler = handler

	err := r.initializeClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	r.wg.Add(1)

	go r.consume(ctx)

	return nil
}

func (r *Receiver) initializeClient(ctx context.Context) error {
	addr := r.Connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	password := r.Connection["password"]
	db := 0

	if dbStr := r.Connection["db"]; dbStr != "" {
		var err error
		if db, err = r.parseDB(dbStr); err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}
	}

	r.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return nil
}

func (r *Receiver) parseDB(dbStr string) (int, error) {
	var db int

	_, err := fmt.Sscanf(dbStr, "%d", &db)

	return db, err
}

func (r *Receiver) consume(ctx context.Context) {
	defer r.wg.Done()

	r.logger.InfoContext(ctx, "Starting queue consumer", "queue", r.Queue)

	for {
		select {
		case <-r.stopCh:
			r.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := r.processMessage(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (r *Receiver) processMessage(ctx context.Context) error {
	result, err := r.client.BLPop(ctx, 1*time.Second, r.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	event, err := decodeEvent([]byte(message))
	if err != nil {
		r.logger.WarnContext(ctx, "Dropping malformed event", "error", err, "message", message)

		return nil
	}

	go func() {
		err := r.handler(ctx, event)
		if err != nil {
			r.logger.ErrorContext(ctx, "Error handling subject event",
				"subject_id", event.SubjectID, "event_type", event.EventType, "error", err)
		}
	}()

	return nil
}

// decodeEvent validates the raw message against the event schema and
// unmarshals it. A missing timestamp defaults to now.
func decodeEvent(raw []byte) (models.Event, error) {
	validation, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(eventSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to validate event: %w", err)
	}

	if !validation.Valid() {
		errs := validation.Errors()
		if len(errs) > 0 {
			return models.Event{}, fmt.Errorf("invalid event: %s", errs[0].String())
		}

		return models.Event{}, errors.New("invalid event")
	}

	var event models.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return models.Event{}, fmt.Errorf("failed to decode event: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	return event, nil
}

func (r *Receiver) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping queue receiver")

	close(r.stopCh)
	r.wg.Wait()

	if r.client != nil {
		err := r.client.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
