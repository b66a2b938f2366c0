package senders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pathwave/journey/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Registry holds one sender per channel.
type Registry struct {
	logger  *slog.Logger
	senders map[models.Channel]Sender
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger,
		senders: make(map[models.Channel]Sender),
	}
}

// NewDefaultRegistry returns a registry with the built-in senders for all
// five channels.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	registry := NewRegistry(logger)

	registry.Register(NewLogSender(logger, models.ChannelEmail))
	registry.Register(NewLogSender(logger, models.ChannelSMS))
	registry.Register(NewLogSender(logger, models.ChannelPush))
	registry.Register(NewLogSender(logger, models.ChannelEngagement))
	registry.Register(NewWebhookSender(logger))

	return registry
}

func (r *Registry) Register(sender Sender) {
	r.senders[sender.Channel()] = sender
}

func (r *Registry) Get(channel models.Channel) (Sender, error) {
	sender, ok := r.senders[channel]
	if !ok {
		return nil, fmt.Errorf("channel %q not registered", channel)
	}

	return sender, nil
}

func (r *Registry) Channels() []models.Channel {
	channels := make([]models.Channel, 0, len(r.senders))
	for channel := range r.senders {
		channels = append(channels, channel)
	}

	return channels
}

// Send routes a payload to the channel's sender.
func (r *Registry) Send(ctx context.Context, channel models.Channel, payload map[string]any, idempotencyKey string) error {
	sender, err := r.Get(channel)
	if err != nil {
		return err
	}

	return sender.Send(ctx, payload, idempotencyKey)
}

// ValidatePayload checks an action payload against the channel sender's
// JSON schema. Used by publish-time validation.
func (r *Registry) ValidatePayload(channel models.Channel, payload map[string]any) error {
	sender, err := r.Get(channel)
	if err != nil {
		return err
	}

	schema := sender.PayloadSchema()
	if schema == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to validate %s payload: %w", channel, err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid %s payload: %s", channel, errs[0].String())
		}

		return fmt.Errorf("invalid %s payload", channel)
	}

	return nil
}
