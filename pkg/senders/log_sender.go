package senders

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pathwave/journey/pkg/models"
)

// LogSender is the development sender for message channels: it logs the
// dispatch and tracks idempotency keys in memory. Production deployments
// register real provider-backed senders in its place.
type LogSender struct {
	logger  *slog.Logger
	channel models.Channel

	mu   sync.Mutex
	seen map[string]bool
}

func NewLogSender(logger *slog.Logger, channel models.Channel) *LogSender {
	return &LogSender{
		logger:  logger.With("component", "sender", "channel", string(channel)),
		channel: channel,
		seen:    make(map[string]bool),
	}
}

func (s *LogSender) Channel() models.Channel {
	return s.channel
}

func (s *LogSender) Send(ctx context.Context, payload map[string]any, idempotencyKey string) error {
	s.mu.Lock()

	if s.seen[idempotencyKey] {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Duplicate dispatch suppressed", "idempotency_key", idempotencyKey)

		return nil
	}

	s.seen[idempotencyKey] = true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Dispatching message",
		"idempotency_key", idempotencyKey,
		"payload", payload,
	)

	return nil
}

func (s *LogSender) PayloadSchema() map[string]any {
	switch s.channel {
	case models.ChannelEmail:
		return map[string]any{
			"type":     "object",
			"required": []any{"template"},
			"properties": map[string]any{
				"template": map[string]any{"type": "string", "minLength": 1},
				"subject":  map[string]any{"type": "string"},
			},
		}
	case models.ChannelSMS, models.ChannelPush:
		return map[string]any{
			"type":     "object",
			"required": []any{"message"},
			"properties": map[string]any{
				"message": map[string]any{"type": "string", "minLength": 1},
			},
		}
	case models.ChannelEngagement:
		return map[string]any{
			"type":     "object",
			"required": []any{"kind"},
			"properties": map[string]any{
				"kind": map[string]any{"type": "string", "minLength": 1},
			},
		}
	default:
		return map[string]any{"type": "object"}
	}
}
