package domain

import (
	"strings"
	"time"
)

// FlightLeg is one segment of a flight itinerary.
type FlightLeg struct {
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	FlightNumber  string    `json:"flight_number"`
	AircraftType  string    `json:"aircraft_type"`
	CabinType     string    `json:"cabin_type"`
	Duration      int       `json:"duration"`
	LayoverTime   float64   `json:"layover_time"`
	Distance      int       `json:"distance"`
}

// Flight is an ingested flight record, keyed by the caller-supplied FlightID.
// RetailPrice is nil until an enrichment pass extracts a price.
type Flight struct {
	FlightID      string      `json:"flight_id"`
	TravelClass   string      `json:"travel_class"`
	Origin        string      `json:"origin"`
	Destination   string      `json:"destination"`
	DepartureTime time.Time   `json:"departure_time"`
	ArrivalTime   time.Time   `json:"arrival_time"`
	FlightNumbers []string    `json:"flight_numbers"`
	Legs          []FlightLeg `json:"legs"`
	LastSeen      time.Time   `json:"last_seen"`
	RetailPrice   *float64    `json:"retail_price"`
	Enriched      bool        `json:"enriched"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Validate checks the fields every stored flight must carry.
func (f *Flight) Validate() error {
	if strings.TrimSpace(f.FlightID) == "" {
		return NewValidationError("flight_id", "cannot be empty", ErrInvalidID)
	}
	if strings.TrimSpace(f.Origin) == "" {
		return NewValidationError("origin", "cannot be empty", nil)
	}
	if strings.TrimSpace(f.Destination) == "" {
		return NewValidationError("destination", "cannot be empty", nil)
	}
	if f.DepartureTime.IsZero() {
		return NewValidationError("departure_time", "is required", nil)
	}
	if f.ArrivalTime.IsZero() {
		return NewValidationError("arrival_time", "is required", nil)
	}
	return nil
}

// NormalizeTimes pins every timestamp to an explicit zone. Values that arrived
// without zone information are already UTC wall-clock, so only the location is
// normalized; the instant is never shifted.
func (f *Flight) NormalizeTimes() {
	f.DepartureTime = f.DepartureTime.UTC()
	f.ArrivalTime = f.ArrivalTime.UTC()
	f.LastSeen = f.LastSeen.UTC()
	for i := range f.Legs {
		f.Legs[i].DepartureTime = f.Legs[i].DepartureTime.UTC()
		f.Legs[i].ArrivalTime = f.Legs[i].ArrivalTime.UTC()
	}
}

// ResetEnrichment clears enrichment state. Every ingestion restarts enrichment,
// whatever the previous record held.
func (f *Flight) ResetEnrichment() {
	f.RetailPrice = nil
	f.Enriched = false
}

// ApplyEnrichment records the outcome of an enrichment pass. A nil price leaves
// any previously extracted price in place; the flight is marked enriched either way.
func (f *Flight) ApplyEnrichment(price *float64) {
	if price != nil {
		p := *price
		f.RetailPrice = &p
	}
	f.Enriched = true
}
