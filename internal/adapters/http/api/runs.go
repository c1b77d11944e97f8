package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/matchflow/internal/adapters/mq/queue"
	"github.com/okian/matchflow/internal/adapters/repository"
	service "github.com/okian/matchflow/internal/app"
	"github.com/okian/matchflow/internal/domain/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// RunsHandler submits runs and reads them back.
type RunsHandler struct {
	svc      RunService
	maxBytes int64
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(svc RunService) *RunsHandler {
	return &RunsHandler{svc: svc, maxBytes: defaultMaxRequestBytes}
}

// HandleSubmitMatching handles POST /matchings.
func (h *RunsHandler) HandleSubmitMatching(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_matching"
	var req service.MatchingRequest
	if err := decodeBody(w, r, h.maxBytes, &req); err != nil {
		writeDecodeError(w, op, err)
		return
	}
	run, dup, err := h.svc.SubmitMatching(r.Context(), &req)
	h.ack(w, op, run, dup, err)
}

// HandleSubmitCourses handles POST /course-assignments.
func (h *RunsHandler) HandleSubmitCourses(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_courses"
	var req service.CourseRequest
	if err := decodeBody(w, r, h.maxBytes, &req); err != nil {
		writeDecodeError(w, op, err)
		return
	}
	run, dup, err := h.svc.SubmitCourses(r.Context(), &req)
	h.ack(w, op, run, dup, err)
}

// HandleGetRun handles GET /runs/{id}.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_run"
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleListRuns handles GET /runs?limit=N, newest first.
func (h *RunsHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_runs"
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > maxListLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	runs, err := h.svc.ListRuns(r.Context(), limit)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if runs == nil {
		runs = []types.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunsHandler) ack(w http.ResponseWriter, op string, run types.Run, dup bool, err error) {
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{RunID: run.ID, Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{RunID: run.ID, Status: run.Status})
}

func writeDecodeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrPayloadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", WrapKind(op, ErrBadRequest, err))
		return
	}
	writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
}

// writeServiceError maps application errors onto status codes.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrBackpressure), errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
