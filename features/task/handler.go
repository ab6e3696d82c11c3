package task

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"vectorproxy/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tasks := h.service.Tasks()
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]interface{}{
		"data": tasks,
		"meta": map[string]int{"count": len(tasks)},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	t, ok := h.service.Task(id)
	if !ok {
		h.writeError(ctx, w, "NOT_FOUND", "Task not found", http.StatusNotFound)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": t})
}

func (h *Handler) ListFailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "listing failed tasks", "correlationId", correlationID)

	tasks, err := h.service.ListFailed(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list failed tasks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []FailedTask{}
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": tasks,
		"meta": map[string]int{"count": len(tasks)},
	})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	id := r.PathValue("id")

	slog.InfoContext(ctx, "retrying failed task", "id", id, "correlationId", correlationID)

	if err := h.service.Retry(ctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to retry task", "id", id, "error", err, "correlationId", correlationID)
		if errors.Is(err, ErrNotFound) {
			h.writeError(ctx, w, "NOT_FOUND", "Failed task not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, ErrPublisherUnavailable) {
			h.writeError(ctx, w, "PUBLISHER_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": "task retried"})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
