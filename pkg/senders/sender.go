// Package senders defines the delivery capability the engine delegates
// action nodes to, one sender per channel. Senders must de-duplicate on the
// idempotency key: the engine retries walks under at-least-once event
// delivery and scheduler reclaims, and relies on the key to suppress
// duplicate side effects.
package senders

import (
	"context"

	"github.com/pathwave/journey/pkg/models"
)

type Sender interface {
	// Channel identifies which action channel this sender serves.
	Channel() models.Channel

	// Send delivers the payload. Calls repeating an idempotency key must
	// be no-ops.
	Send(ctx context.Context, payload map[string]any, idempotencyKey string) error

	// PayloadSchema returns the JSON schema action payloads for this
	// channel must satisfy. Checked at publish time.
	PayloadSchema() map[string]any
}
