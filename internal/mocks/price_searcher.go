package mocks

import (
	"context"
	"sync/atomic"

	"github.com/phrazzld/fare-enricher/internal/pricing"
)

// MockPriceSearcher stands in for the pricing API client.
type MockPriceSearcher struct {
	SearchFn func(ctx context.Context, req pricing.SearchRequest) (map[string]any, error)

	calls atomic.Int64
}

// Search implements the searcher interface used by the enricher.
func (m *MockPriceSearcher) Search(ctx context.Context, req pricing.SearchRequest) (map[string]any, error) {
	m.calls.Add(1)
	return m.SearchFn(ctx, req)
}

// Calls returns how many searches were made.
func (m *MockPriceSearcher) Calls() int {
	return int(m.calls.Load())
}

// NewPriceSearcherReturning answers every search with a document whose first
// best_flights entry carries price. A nil price omits the field.
func NewPriceSearcherReturning(price any) *MockPriceSearcher {
	return &MockPriceSearcher{
		SearchFn: func(context.Context, pricing.SearchRequest) (map[string]any, error) {
			entry := map[string]any{}
			if price != nil {
				entry["price"] = price
			}
			return map[string]any{"best_flights": []any{entry}}, nil
		},
	}
}

// NewPriceSearcherFailing answers every search with err.
func NewPriceSearcherFailing(err error) *MockPriceSearcher {
	return &MockPriceSearcher{
		SearchFn: func(context.Context, pricing.SearchRequest) (map[string]any, error) {
			return nil, err
		},
	}
}
