package senders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pathwave/journey/pkg/models"
)

// WebhookSender POSTs the payload body to the payload's url, carrying the
// idempotency key as a header so the receiver can de-duplicate too.
type WebhookSender struct {
	logger *slog.Logger
	client *http.Client

	mu   sync.Mutex
	seen map[string]bool
}

func NewWebhookSender(logger *slog.Logger) *WebhookSender {
	return &WebhookSender{
		logger: logger.With("component", "sender", "channel", "webhook"),
		client: &http.Client{Timeout: 30 * time.Second},
		seen:   make(map[string]bool),
	}
}

func (s *WebhookSender) Channel() models.Channel {
	return models.ChannelWebhook
}

func (s *WebhookSender) Send(ctx context.Context, payload map[string]any, idempotencyKey string) error {
	s.mu.Lock()

	if s.seen[idempotencyKey] {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Duplicate dispatch suppressed", "idempotency_key", idempotencyKey)

		return nil
	}

	s.mu.Unlock()

	url, _ := payload["url"].(string)
	if url == "" {
		return fmt.Errorf("webhook payload missing url")
	}

	body, err := json.Marshal(payload["body"])
	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Idempotency-Key", idempotencyKey)

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", response.StatusCode)
	}

	// Only successful dispatches consume the key; a failed POST stays
	// retryable.
	s.mu.Lock()
	s.seen[idempotencyKey] = true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Webhook dispatched", "url", url, "idempotency_key", idempotencyKey)

	return nil
}

func (s *WebhookSender) PayloadSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url":  map[string]any{"type": "string", "format": "uri"},
			"body": map[string]any{},
		},
	}
}
