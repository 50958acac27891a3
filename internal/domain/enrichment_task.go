package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of an enrichment task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusStarted TaskStatus = "STARTED"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailure TaskStatus = "FAILURE"
)

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusStarted, TaskStatusSuccess, TaskStatusFailure:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is SUCCESS or FAILURE.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailure
}

// rank orders statuses along PENDING -> STARTED -> terminal.
func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusStarted:
		return 1
	case TaskStatusSuccess, TaskStatusFailure:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether a task may move from s to next.
// Staying in STARTED is allowed so a retried attempt can re-mark itself.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// TaskResult is the payload recorded on a completed task: either the
// extracted retail price (possibly null) or an error message.
type TaskResult struct {
	RetailPrice *float64
	Error       string
}

// IsError reports whether the result carries an error message.
func (r TaskResult) IsError() bool {
	return r.Error != ""
}

// MarshalJSON renders {"error": "..."} for failures and
// {"retail_price": <number|null>} otherwise.
func (r TaskResult) MarshalJSON() ([]byte, error) {
	if r.IsError() {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	return json.Marshal(struct {
		RetailPrice *float64 `json:"retail_price"`
	}{r.RetailPrice})
}

// UnmarshalJSON accepts either result shape.
func (r *TaskResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: task result: %v", ErrInvalidFormat, err)
	}

	*r = TaskResult{}
	if msg, ok := raw["error"]; ok {
		if err := json.Unmarshal(msg, &r.Error); err != nil {
			return fmt.Errorf("%w: task result error: %v", ErrInvalidFormat, err)
		}
		return nil
	}
	if price, ok := raw["retail_price"]; ok && !bytes.Equal(bytes.TrimSpace(price), []byte("null")) {
		var p float64
		if err := json.Unmarshal(price, &p); err != nil {
			return fmt.Errorf("%w: task result retail_price: %v", ErrInvalidFormat, err)
		}
		r.RetailPrice = &p
	}
	return nil
}

// EnrichmentTask tracks one asynchronous enrichment of a flight.
type EnrichmentTask struct {
	TaskID      string      `json:"task_id"`
	FlightID    string      `json:"flight_id"`
	Status      TaskStatus  `json:"status"`
	Result      *TaskResult `json:"result"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at"`
}

// NewEnrichmentTask creates a PENDING task for the given flight.
func NewEnrichmentTask(taskID, flightID string) (*EnrichmentTask, error) {
	t := &EnrichmentTask{
		TaskID:    taskID,
		FlightID:  flightID,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the task's identifiers, status and completion invariants.
func (t *EnrichmentTask) Validate() error {
	if strings.TrimSpace(t.TaskID) == "" {
		return NewValidationError("task_id", "cannot be empty", ErrInvalidID)
	}
	if strings.TrimSpace(t.FlightID) == "" {
		return NewValidationError("flight_id", "cannot be empty", ErrInvalidID)
	}
	if !t.Status.IsValid() {
		return ErrInvalidTaskStatus
	}
	if t.Status.IsTerminal() != (t.CompletedAt != nil) {
		return NewValidationError("completed_at", "must be set exactly when the task is terminal", nil)
	}
	return nil
}

// Start moves the task to STARTED.
func (t *EnrichmentTask) Start() error {
	return t.transition(TaskStatusStarted)
}

// Succeed completes the task with the extracted price, which may be nil.
func (t *EnrichmentTask) Succeed(price *float64, at time.Time) error {
	if err := t.transition(TaskStatusSuccess); err != nil {
		return err
	}
	t.Result = &TaskResult{RetailPrice: price}
	t.complete(at)
	return nil
}

// Fail completes the task with an error message.
func (t *EnrichmentTask) Fail(message string, at time.Time) error {
	if err := t.transition(TaskStatusFailure); err != nil {
		return err
	}
	if message == "" {
		message = "enrichment failed"
	}
	t.Result = &TaskResult{Error: message}
	t.complete(at)
	return nil
}

func (t *EnrichmentTask) transition(next TaskStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	return nil
}

func (t *EnrichmentTask) complete(at time.Time) {
	completed := at.UTC()
	t.CompletedAt = &completed
}
