package pricing

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	bestFlightsKey = "best_flights"
	priceKey       = "price"
)

// DecodeResponse parses a search response body. Numbers are kept as
// json.Number so prices come back exactly as the upstream wrote them.
func DecodeResponse(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, extractionError("invalid response body: %v", err)
	}
	if doc == nil {
		return nil, extractionError("response body is not an object")
	}
	return doc, nil
}

// ExtractRetailPrice returns the price of the first entry in best_flights.
//
// It returns nil when best_flights is missing, null or empty, and when the
// first entry carries no price. A price that is present but cannot be read
// as a finite number yields ErrExtraction. Numeric prices are returned
// unchanged; numeric strings are accepted. Booleans are rejected with
// ErrExtraction rather than coerced to 1 or 0.
func ExtractRetailPrice(doc map[string]any) (*float64, error) {
	raw, ok := doc[bestFlightsKey]
	if !ok || raw == nil {
		return nil, nil
	}

	flights, ok := raw.([]any)
	if !ok {
		return nil, extractionError("%s is %T, not a list", bestFlightsKey, raw)
	}
	if len(flights) == 0 {
		return nil, nil
	}

	first, ok := flights[0].(map[string]any)
	if !ok {
		return nil, extractionError("first %s entry is %T, not an object", bestFlightsKey, flights[0])
	}

	value, ok := first[priceKey]
	if !ok || value == nil {
		return nil, nil
	}

	price, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func toFloat(value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, extractionError("price %q is not a number", v.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, extractionError("price %q is not a number", v)
		}
		f = parsed
	default:
		return 0, extractionError("price has unsupported type %T", value)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, extractionError("price %v is not finite", value)
	}
	return f, nil
}
