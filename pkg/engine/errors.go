// Package engine implements the journey interpreter: it walks a published
// graph from a trigger match or a resumed task until it reaches a wait,
// goal or end.
package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrWalkBudgetExceeded indicates a walk hit the synchronous node
	// budget. The validator rejects wait-free cycles, so this is a
	// backstop against graphs that slipped past it.
	ErrWalkBudgetExceeded = errors.New("walk exceeded synchronous node budget")

	// ErrResumeTarget indicates the version or node a task pinned no
	// longer exists. The task needs manual intervention.
	ErrResumeTarget = errors.New("resume target no longer exists")
)

// DispatchError reports a failed action send. The walk stops at the failing
// node; it is a local, reported failure.
type DispatchError struct {
	NodeID  string
	Channel string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed at node %s (%s): %v", e.NodeID, e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsResumeError checks whether an error means the task's pinned graph is
// gone.
func IsResumeError(err error) bool {
	return errors.Is(err, ErrResumeTarget)
}
