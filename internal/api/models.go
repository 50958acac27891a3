package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/phrazzld/fare-enricher/internal/api/shared"
	"github.com/phrazzld/fare-enricher/internal/domain"
)

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp accepts RFC 3339 values and ISO 8601 values without a zone.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
// A JSON null leaves the zero value.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// FlightLegRequest is one leg of an ingested itinerary.
type FlightLegRequest struct {
	Origin        string    `json:"origin"         validate:"required"`
	Destination   string    `json:"destination"    validate:"required"`
	DepartureTime Timestamp `json:"departure_time"`
	ArrivalTime   Timestamp `json:"arrival_time"`
	FlightNumber  string    `json:"flight_number"  validate:"required"`
	AircraftType  string    `json:"aircraft_type"`
	CabinType     string    `json:"cabin_type"`
	Duration      int       `json:"duration"       validate:"gte=0"`
	LayoverTime   float64   `json:"layover_time"   validate:"gte=0"`
	Distance      int       `json:"distance"       validate:"gte=0"`
}

// EnrichFlightRequest is the body of POST /enrich-flight.
type EnrichFlightRequest struct {
	ID            string             `json:"id"             validate:"required,max=255"`
	TravelClass   string             `json:"travel_class"   validate:"required,max=50"`
	Origin        string             `json:"origin"         validate:"required,max=10"`
	Destination   string             `json:"destination"    validate:"required,max=10"`
	DepartureTime Timestamp          `json:"departure_time"`
	ArrivalTime   Timestamp          `json:"arrival_time"`
	FlightNumbers []string           `json:"flight_numbers" validate:"required,dive,required"`
	Legs          []FlightLegRequest `json:"legs"           validate:"required,dive"`
	LastSeen      Timestamp          `json:"last_seen"`
}

// Validate runs the struct rules and checks the timestamps the validator
// cannot see through the Timestamp wrapper.
func (req *EnrichFlightRequest) Validate() error {
	if err := shared.Validate.Struct(req); err != nil {
		return err
	}

	required := []requiredTimestamp{
		{"departure_time", req.DepartureTime},
		{"arrival_time", req.ArrivalTime},
		{"last_seen", req.LastSeen},
	}
	for i, leg := range req.Legs {
		required = append(required,
			requiredTimestamp{fmt.Sprintf("legs[%d].departure_time", i), leg.DepartureTime},
			requiredTimestamp{fmt.Sprintf("legs[%d].arrival_time", i), leg.ArrivalTime},
		)
	}
	for _, r := range required {
		if r.ts.IsZero() {
			return domain.NewValidationError(r.field, "is required", domain.ErrValidation)
		}
	}
	return nil
}

type requiredTimestamp struct {
	field string
	ts    Timestamp
}

// ToDomain converts the request into a flight record.
func (req *EnrichFlightRequest) ToDomain() *domain.Flight {
	legs := make([]domain.FlightLeg, len(req.Legs))
	for i, l := range req.Legs {
		legs[i] = domain.FlightLeg{
			Origin:        l.Origin,
			Destination:   l.Destination,
			DepartureTime: l.DepartureTime.Time,
			ArrivalTime:   l.ArrivalTime.Time,
			FlightNumber:  l.FlightNumber,
			AircraftType:  l.AircraftType,
			CabinType:     l.CabinType,
			Duration:      l.Duration,
			LayoverTime:   l.LayoverTime,
			Distance:      l.Distance,
		}
	}
	return &domain.Flight{
		FlightID:      req.ID,
		TravelClass:   req.TravelClass,
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime.Time,
		ArrivalTime:   req.ArrivalTime.Time,
		FlightNumbers: append([]string(nil), req.FlightNumbers...),
		Legs:          legs,
		LastSeen:      req.LastSeen.Time,
	}
}

// EnrichFlightResponse is returned when a flight is accepted.
type EnrichFlightResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskStatusResponse reports a task's progress.
type TaskStatusResponse struct {
	TaskID string             `json:"task_id"`
	Status string             `json:"status"`
	Result *domain.TaskResult `json:"result"`
}

// TaskSummaryResponse is one entry of GET /tasks.
type TaskSummaryResponse struct {
	TaskID      string             `json:"task_id"`
	FlightID    string             `json:"flight_id"`
	Status      string             `json:"status"`
	Result      *domain.TaskResult `json:"result"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at"`
}

// TaskListResponse is the body of GET /tasks.
type TaskListResponse struct {
	Tasks []TaskSummaryResponse `json:"tasks"`
}

// FlightResponse is one entry of GET /flights.
type FlightResponse struct {
	FlightID      string    `json:"flight_id"`
	TravelClass   string    `json:"travel_class"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	FlightNumbers []string  `json:"flight_numbers"`
	LastSeen      time.Time `json:"last_seen"`
	RetailPrice   *float64  `json:"retail_price"`
	Enriched      bool      `json:"enriched"`
}

// FlightListResponse is the body of GET /flights.
type FlightListResponse struct {
	Flights []FlightResponse `json:"flights"`
}

func taskToStatusResponse(task *domain.EnrichmentTask) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID: task.TaskID,
		Status: string(task.Status),
		Result: task.Result,
	}
}

func taskToSummaryResponse(task *domain.EnrichmentTask) TaskSummaryResponse {
	return TaskSummaryResponse{
		TaskID:      task.TaskID,
		FlightID:    task.FlightID,
		Status:      string(task.Status),
		Result:      task.Result,
		CreatedAt:   task.CreatedAt,
		CompletedAt: task.CompletedAt,
	}
}

func flightToResponse(f *domain.Flight) FlightResponse {
	numbers := f.FlightNumbers
	if numbers == nil {
		numbers = []string{}
	}
	return FlightResponse{
		FlightID:      f.FlightID,
		TravelClass:   f.TravelClass,
		Origin:        f.Origin,
		Destination:   f.Destination,
		DepartureTime: f.DepartureTime,
		ArrivalTime:   f.ArrivalTime,
		FlightNumbers: numbers,
		LastSeen:      f.LastSeen,
		RetailPrice:   f.RetailPrice,
		Enriched:      f.Enriched,
	}
}
