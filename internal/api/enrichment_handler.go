package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/fare-enricher/internal/api/shared"
	"github.com/phrazzld/fare-enricher/internal/platform/logger"
	"github.com/phrazzld/fare-enricher/internal/redact"
	"github.com/phrazzld/fare-enricher/internal/service"
)

// EnrichmentHandler handles flight ingestion and task status requests.
type EnrichmentHandler struct {
	service service.EnrichmentService
	logger  *slog.Logger
}

// NewEnrichmentHandler creates a new EnrichmentHandler.
func NewEnrichmentHandler(svc service.EnrichmentService, log *slog.Logger) *EnrichmentHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EnrichmentHandler{
		service: svc,
		logger:  log.With(slog.String("component", "enrichment_handler")),
	}
}

// EnrichFlight handles POST /enrich-flight requests.
// The flight is stored and queued; the response carries the PENDING task.
func (h *EnrichmentHandler) EnrichFlight(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req EnrichFlightRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := req.Validate(); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
		return
	}

	task, err := h.service.IngestFlight(r.Context(), req.ToDomain())
	if err != nil {
		var opts []shared.ResponseOption
		if task != nil && errors.Is(err, service.ErrEnqueueFailed) {
			opts = append(opts, shared.WithTaskID(task.TaskID))
		}
		status := MapErrorToStatusCode(err)
		message := GetSafeErrorMessage(err)
		if status == http.StatusInternalServerError {
			message = "Failed to ingest flight"
		}
		shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
		return
	}

	log.Debug("flight accepted for enrichment",
		slog.String("flight_id", req.ID),
		slog.String("task_id", task.TaskID))
	shared.RespondWithJSON(w, r, http.StatusOK, EnrichFlightResponse{
		TaskID: task.TaskID,
		Status: string(task.Status),
	})
}

// GetTaskStatus handles GET /task-status/{task_id} requests.
func (h *EnrichmentHandler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if taskID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task ID is required")
		return
	}

	task, err := h.service.GetTaskStatus(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToStatusResponse(task))
}

// ListTasks handles GET /tasks requests, returning recently completed tasks.
func (h *EnrichmentHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
		return
	}

	tasks, err := h.service.ListRecentTasks(r.Context(), limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := TaskListResponse{Tasks: make([]TaskSummaryResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, taskToSummaryResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// ListFlights handles GET /flights requests.
func (h *EnrichmentHandler) ListFlights(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
		return
	}

	flights, err := h.service.ListFlights(r.Context(), limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := FlightListResponse{Flights: make([]FlightResponse, 0, len(flights))}
	for _, f := range flights {
		resp.Flights = append(resp.Flights, flightToResponse(f))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Health handles GET /health requests.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
