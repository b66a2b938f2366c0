package senders

import (
	"context"
	"sync"

	"github.com/pathwave/journey/pkg/models"
)

// Recorder is a test double sender. It records every Send call and, like a
// conforming sender, treats repeated idempotency keys as duplicates.
type Recorder struct {
	channel models.Channel
	failErr error

	mu       sync.Mutex
	payloads []map[string]any
	keys     map[string]int
}

func NewRecorder(channel models.Channel) *Recorder {
	return &Recorder{
		channel: channel,
		keys:    make(map[string]int),
	}
}

// FailWith makes subsequent Send calls return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failErr = err
}

func (r *Recorder) Channel() models.Channel {
	return r.channel
}

func (r *Recorder) Send(_ context.Context, payload map[string]any, idempotencyKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return r.failErr
	}

	r.keys[idempotencyKey]++
	if r.keys[idempotencyKey] > 1 {
		return nil
	}

	r.payloads = append(r.payloads, payload)

	return nil
}

func (r *Recorder) PayloadSchema() map[string]any {
	return map[string]any{"type": "object"}
}

// Dispatches returns the payloads of distinct dispatches, in order.
func (r *Recorder) Dispatches() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	dispatches := make([]map[string]any, len(r.payloads))
	copy(dispatches, r.payloads)

	return dispatches
}

// DistinctKeys returns how many distinct idempotency keys were seen.
func (r *Recorder) DistinctKeys() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.keys)
}

// CallsForKey returns how many times a key was sent.
func (r *Recorder) CallsForKey(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.keys[key]
}
