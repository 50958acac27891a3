package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/service"
	"github.com/phrazzld/fare-enricher/internal/store"
)

const unexpectedErrorMessage = "An unexpected error occurred"

// errorRule pairs an error kind with its HTTP status. An empty message means
// the message is derived from the error itself.
type errorRule struct {
	is      func(error) bool
	status  int
	message string
}

func isErr(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func isValidatorErr(err error) bool {
	var ve validator.ValidationErrors
	return errors.As(err, &ve)
}

func isFieldErr(err error) bool {
	var fe *domain.ValidationError
	return errors.As(err, &fe)
}

// First match wins.
var errorRules = []errorRule{
	{is: isErr(service.ErrTaskNotFound), status: http.StatusNotFound, message: "Task not found"},
	{is: isErr(store.ErrFlightNotFound), status: http.StatusNotFound, message: "Flight not found"},
	{is: isErr(store.ErrNotFound), status: http.StatusNotFound, message: "Not found"},
	{is: isErr(service.ErrInvalidPaging), status: http.StatusBadRequest, message: "Invalid paging parameters"},
	{is: isErr(service.ErrEnqueueFailed), status: http.StatusServiceUnavailable, message: "Failed to enqueue enrichment"},
	{is: isValidatorErr, status: http.StatusBadRequest},
	{is: isFieldErr, status: http.StatusBadRequest},
	{is: isErr(domain.ErrValidation), status: http.StatusBadRequest, message: "Validation error"},
	{is: isErr(domain.ErrInvalidID), status: http.StatusBadRequest, message: "Validation error"},
	{is: isErr(store.ErrInvalidEntity), status: http.StatusBadRequest, message: "Validation error"},
}

func matchRule(err error) (errorRule, bool) {
	if err == nil {
		return errorRule{}, false
	}
	for _, r := range errorRules {
		if r.is(err) {
			return r, true
		}
	}
	return errorRule{}, false
}

// MapErrorToStatusCode returns the HTTP status for err. Anything
// unrecognised is a 500.
func MapErrorToStatusCode(err error) int {
	if r, ok := matchRule(err); ok {
		return r.status
	}
	return http.StatusInternalServerError
}

// GetSafeErrorMessage returns a client-facing message for err. Raw error
// text never reaches the client except for field validation messages.
func GetSafeErrorMessage(err error) string {
	r, ok := matchRule(err)
	switch {
	case !ok:
		return unexpectedErrorMessage
	case r.message != "":
		return r.message
	}

	var fe *domain.ValidationError
	if errors.As(err, &fe) {
		return fmt.Sprintf("Invalid %s: %s", fe.Field, fe.Message)
	}
	return SanitizeValidationError(err)
}

// SanitizeValidationError reports the first failed field of a validator
// error by its JSON path.
func SanitizeValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Validation error"
	}

	fe := ve[0]
	_, field, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		field = fe.Field()
	}
	return fmt.Sprintf("Invalid %s: %s", field, tagMessage(fe.Tag()))
}

func tagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "max":
		return "too long"
	case "gte":
		return "must not be negative"
	}
	return "validation failed"
}
