package store

import (
	"errors"
	"fmt"
)

// Base kinds. Implementations wrap one of these so callers can branch with
// errors.Is without knowing the backend.
var (
	ErrNotFound          = errors.New("entity not found")
	ErrDuplicate         = errors.New("entity already exists")
	ErrInvalidEntity     = errors.New("invalid entity")
	ErrUpdateFailed      = errors.New("update failed")
	ErrTransactionFailed = errors.New("transaction failed")
)

// Entity-specific errors.
var (
	ErrFlightNotFound = fmt.Errorf("%w: flight", ErrNotFound)
	ErrTaskNotFound   = fmt.Errorf("%w: enrichment task", ErrNotFound)
	ErrTaskExists     = fmt.Errorf("%w: enrichment task", ErrDuplicate)

	// ErrTaskCompleted rejects any write to a task already in SUCCESS or FAILURE.
	ErrTaskCompleted = fmt.Errorf("%w: task already completed", ErrUpdateFailed)
)

// IsNotFoundError reports whether err wraps ErrNotFound.
func IsNotFoundError(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicateError reports whether err wraps ErrDuplicate.
func IsDuplicateError(err error) bool { return errors.Is(err, ErrDuplicate) }
