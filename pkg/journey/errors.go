// Package journey provides the version store: draft saves, publishing and
// published reads over the persistence layer.
package journey

import (
	"errors"

	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
)

var (
	// Validation errors (400).
	ErrJourneyNameRequired = errors.New("journey name is required")
	ErrGraphRequired       = errors.New("graph must have at least one node")

	// Conflict errors (409).
	ErrPublishConflict = persistence.ErrPublishConflict
)

// IsValidationError checks if an error should surface as a client
// validation failure.
func IsValidationError(err error) bool {
	var validationErr *models.ValidationError

	return errors.Is(err, ErrJourneyNameRequired) ||
		errors.Is(err, ErrGraphRequired) ||
		errors.As(err, &validationErr)
}

// IsConflictError checks if an error is a publish race the caller may retry
// after observing the new state.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrPublishConflict)
}
