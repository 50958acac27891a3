package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339 utc", `"2025-06-01T18:00:00Z"`, time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC), false},
		{"rfc3339 offset", `"2025-06-01T18:00:00+02:00"`, time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC), false},
		{"naive is utc wall clock", `"2025-06-01T18:00:00"`, time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC), false},
		{"naive fractional", `"2025-06-01T18:00:00.250"`, time.Date(2025, 6, 1, 18, 0, 0, 250_000_000, time.UTC), false},
		{"space separated", `"2025-06-01 18:00:00"`, time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC), false},
		{"date only", `"2025-06-01"`, time.Time{}, true},
		{"number", `1717264800`, time.Time{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tc.input), &ts)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(ts.Time), "got %s", ts.Time)
			assert.Equal(t, time.UTC, ts.Location())
		})
	}
}

func TestTimestampNull(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
}

func TestEnrichFlightRequestToDomain(t *testing.T) {
	var req EnrichFlightRequest
	require.NoError(t, json.Unmarshal([]byte(validFlightJSON), &req))
	require.NoError(t, req.Validate())

	f := req.ToDomain()
	assert.Equal(t, "F1", f.FlightID)
	assert.Equal(t, "economy", f.TravelClass)
	assert.Equal(t, []string{"DL40", "A3611"}, f.FlightNumbers)
	require.Len(t, f.Legs, 2)
	assert.Equal(t, "FRA", f.Legs[0].Destination)
	assert.Equal(t, 465, f.Legs[0].Duration)
	assert.Equal(t, 1.5, f.Legs[0].LayoverTime)
	assert.Nil(t, f.RetailPrice)
	assert.False(t, f.Enriched)

	req.FlightNumbers[0] = "XX1"
	assert.Equal(t, "DL40", f.FlightNumbers[0])
}

func TestEnrichFlightRequestValidate(t *testing.T) {
	var req EnrichFlightRequest
	require.NoError(t, json.Unmarshal([]byte(validFlightJSON), &req))

	req.Legs[0].DepartureTime = Timestamp{}
	err := req.Validate()
	require.Error(t, err)
	assert.Equal(t, "Invalid legs[0].departure_time: is required", GetSafeErrorMessage(err))
}
