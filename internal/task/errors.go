package task

import (
	"context"
	"errors"

	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/pricing"
	"github.com/phrazzld/fare-enricher/internal/store"
)

// ErrInconsistency is returned when the task record a queue message refers
// to does not exist. Nothing can be recorded for such a message.
var ErrInconsistency = errors.New("enrichment task record missing")

// IsRetryable reports whether an attempt that failed with err should be
// repeated. Upstream and extraction failures are retryable, as are
// unexpected storage errors. A missing flight or task, a task that already
// completed, a write the database rejects as invalid (such as a price outside
// NUMERIC(12,2)) and cancellation are not.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, store.ErrFlightNotFound),
		errors.Is(err, store.ErrTaskCompleted),
		errors.Is(err, ErrInconsistency),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTransition):
		return false
	case errors.Is(err, pricing.ErrUpstream), errors.Is(err, pricing.ErrExtraction):
		return true
	default:
		return true
	}
}

// failureMessage is the text stored on a failed task.
func failureMessage(err error) string {
	if errors.Is(err, store.ErrFlightNotFound) {
		return "Flight not found"
	}
	return err.Error()
}
