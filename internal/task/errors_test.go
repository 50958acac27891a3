package task

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/pricing"
	"github.com/phrazzld/fare-enricher/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"upstream", fmt.Errorf("search: %w", pricing.ErrUpstream), true},
		{"upstream status", &pricing.UpstreamError{StatusCode: 502}, true},
		{"extraction", fmt.Errorf("%w: bad price", pricing.ErrExtraction), true},
		{"unexpected store error", errors.New("connection reset"), true},
		{"flight missing", store.ErrFlightNotFound, false},
		{"task completed", store.ErrTaskCompleted, false},
		{"inconsistency", ErrInconsistency, false},
		{"invalid transition", domain.ErrInvalidTransition, false},
		{"rejected write", fmt.Errorf("%w (retail_price): numeric field overflow", store.ErrInvalidEntity), false},
		{"invalid field", domain.NewValidationError("flight_id", "cannot be empty", domain.ErrInvalidID), false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
