package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/codecollab/execd/internal/domain"
	"github.com/codecollab/execd/internal/service"
)

// ExecutionRequest is the submission payload. Authentication happens
// upstream; the gateway forwards the caller identity in X-User-Id.
type ExecutionRequest struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
	Code     string `json:"code"`
	Input    string `json:"input"`
}

type ExecutionResponse struct {
	JobID       string `json:"jobId"`
	ExecutionID string `json:"executionId"`
	Status      string `json:"status"`
}

type RecordResponse struct {
	ID           string `json:"id"`
	Language     string `json:"language"`
	Status       string `json:"status"`
	Output       string `json:"output,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	ExecTimeMs   int64  `json:"execTimeMs"`
	MemoryUsedKb int64  `json:"memoryUsedKb"`
	JobID        string `json:"jobId,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	svc    *service.ExecutionService
	logger *zerolog.Logger
}

func NewHandler(svc *service.ExecutionService, logger *zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/executions", h.Submit)
	r.Get("/executions", h.List)
	r.Get("/executions/{id}", h.GetByID)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" || req.Language == "" {
		writeError(w, http.StatusBadRequest, "code and language are required")
		return
	}
	if req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "roomId is required")
		return
	}

	res, err := h.svc.Submit(r.Context(), userID, req.RoomID, domain.Language(req.Language), req.Code, req.Input)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, ExecutionResponse{
		JobID:       res.JobID,
		ExecutionID: res.ExecutionID,
		Status:      string(res.Status),
	})
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		h.logger.Error().Err(err).Str("execution_id", id).Msg("get execution failed")
		writeError(w, http.StatusInternalServerError, "failed to fetch execution")
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	recs, err := h.svc.ListRecent(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("list executions failed")
		writeError(w, http.StatusInternalServerError, "failed to fetch executions")
		return
	}

	out := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	if retryAfter, ok := domain.IsRateLimited(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotAMember):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrQueueSaturated):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrUnsupportedLanguage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("submission failed")
		writeError(w, http.StatusInternalServerError, "submission failed")
	}
}

func toRecordResponse(rec domain.ExecutionRecord) RecordResponse {
	return RecordResponse{
		ID:           rec.ID,
		Language:     string(rec.Language),
		Status:       string(rec.Status),
		Output:       rec.Output,
		ErrorMessage: rec.ErrorMessage,
		ExecTimeMs:   rec.ExecTimeMs,
		MemoryUsedKb: rec.MemoryUsedKb,
		JobID:        rec.JobID,
		CreatedAt:    rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
