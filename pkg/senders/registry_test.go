package senders_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/senders"
)

func TestRegistry_UnknownChannel(t *testing.T) {
	t.Parallel()

	registry := senders.NewRegistry(slog.Default())

	err := registry.Send(context.Background(), models.ChannelEmail, nil, "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestDefaultRegistry_CoversAllChannels(t *testing.T) {
	t.Parallel()

	registry := senders.NewDefaultRegistry(slog.Default())

	for _, channel := range []models.Channel{
		models.ChannelEmail,
		models.ChannelSMS,
		models.ChannelPush,
		models.ChannelWebhook,
		models.ChannelEngagement,
	} {
		_, err := registry.Get(channel)
		assert.NoError(t, err, string(channel))
	}
}

func TestRegistry_ValidatePayload(t *testing.T) {
	t.Parallel()

	registry := senders.NewDefaultRegistry(slog.Default())

	tests := []struct {
		name    string
		channel models.Channel
		payload map[string]any
		wantErr bool
	}{
		{"email with template", models.ChannelEmail, map[string]any{"template": "welcome"}, false},
		{"email missing template", models.ChannelEmail, map[string]any{"subject": "hi"}, true},
		{"email empty template", models.ChannelEmail, map[string]any{"template": ""}, true},
		{"sms with message", models.ChannelSMS, map[string]any{"message": "hello"}, false},
		{"sms missing message", models.ChannelSMS, map[string]any{}, true},
		{"push with message", models.ChannelPush, map[string]any{"message": "ping"}, false},
		{"engagement with kind", models.ChannelEngagement, map[string]any{"kind": "points"}, false},
		{"engagement missing kind", models.ChannelEngagement, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := registry.ValidatePayload(tt.channel, tt.payload)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLogSender_SuppressesDuplicateKeys(t *testing.T) {
	t.Parallel()

	sender := senders.NewLogSender(slog.Default(), models.ChannelEmail)
	ctx := context.Background()

	payload := map[string]any{"template": "welcome"}

	require.NoError(t, sender.Send(ctx, payload, "j1:1:a1:s1:w1"))
	require.NoError(t, sender.Send(ctx, payload, "j1:1:a1:s1:w1"))
	require.NoError(t, sender.Send(ctx, payload, "j1:1:a1:s1:w2"))
}
