// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrJourneyNotFound indicates a journey was not found by the given identifier.
	ErrJourneyNotFound = errors.New("journey not found")

	// ErrVersionNotFound indicates a journey version was not found.
	ErrVersionNotFound = errors.New("journey version not found")

	// ErrPublishedVersionNotFound indicates no published version exists for the journey.
	ErrPublishedVersionNotFound = errors.New("published version not found")

	// ErrPublishConflict indicates a publish lost a race or targeted a
	// version that is no longer a draft.
	ErrPublishConflict = errors.New("publish conflict: version is not a draft")

	// ErrJourneyHasVersions indicates a journey delete was rejected
	// because versions still reference it.
	ErrJourneyHasVersions = errors.New("journey has versions")

	// ErrTaskNotFound indicates a task was not found by the given identifier.
	ErrTaskNotFound = errors.New("task not found")

	// ErrVersionExists indicates a version with the same journey/number
	// pair already exists.
	ErrVersionExists = errors.New("version already exists")
)

// VersionError wraps version-related errors with additional context.
type VersionError struct {
	Op        string
	JourneyID string
	VersionID string
	Err       error
}

func (e *VersionError) Error() string {
	target := e.VersionID
	if target == "" {
		target = "journey " + e.JourneyID
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, target, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

func (e *VersionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewVersionError creates a new version error with context.
func NewVersionError(op, versionID string, err error) *VersionError {
	return &VersionError{Op: op, VersionID: versionID, Err: err}
}

// IsJourneyNotFound checks if an error indicates a journey was not found.
func IsJourneyNotFound(err error) bool {
	return errors.Is(err, ErrJourneyNotFound)
}

// IsVersionNotFound checks if an error indicates a version was not found.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsPublishedVersionNotFound checks if an error indicates no published
// version exists.
func IsPublishedVersionNotFound(err error) bool {
	return errors.Is(err, ErrPublishedVersionNotFound)
}

// IsPublishConflict checks if an error indicates a lost publish race.
func IsPublishConflict(err error) bool {
	return errors.Is(err, ErrPublishConflict)
}

// IsTaskNotFound checks if an error indicates a task was not found.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}
