package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstream covers network failures, timeouts and non-2xx responses from
	// the search API. These are considered transient.
	ErrUpstream = errors.New("pricing upstream error")

	// ErrExtraction is returned when a response does not have the expected
	// shape, for example a price that is present but not numeric.
	ErrExtraction = errors.New("pricing extraction error")
)

// UpstreamError describes a non-2xx response from the search API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("pricing upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("pricing upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrUpstream) match.
func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

func extractionError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExtraction, fmt.Sprintf(format, args...))
}
