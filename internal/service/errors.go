package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/fare-enricher/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check for them with errors.Is; the API layer maps them to HTTP
// status codes.
var (
	// ErrTaskNotFound indicates that no enrichment task has the requested id.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrEnqueueFailed indicates that the flight and its task were stored but
	// the job could not be queued. The task is marked FAILURE.
	// API layer should map this to HTTP 503 Service Unavailable.
	ErrEnqueueFailed = errors.New("failed to enqueue enrichment")

	// ErrInvalidPaging indicates an out-of-range limit or offset.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidPaging = errors.New("invalid paging parameters")
)

// ServiceError wraps errors from the enrichment service with context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "ingest_flight")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enrichment service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("enrichment service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
// It returns known sentinel errors directly without wrapping.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, store.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, ErrInvalidPaging):
		return ErrInvalidPaging
	}

	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
