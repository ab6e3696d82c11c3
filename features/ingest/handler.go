package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"vectorproxy/internal/middleware"
	"vectorproxy/internal/pipeline"
	"vectorproxy/internal/queue"
)

// MaxBodyBytes caps a single HTTP batch.
const MaxBodyBytes = 32 << 20

type Submitter interface {
	Submit(ctx context.Context, msg pipeline.Message) (queue.Task, error)
}

type Handler struct {
	submitter Submitter
}

func NewHandler(s Submitter) *Handler {
	return &Handler{submitter: s}
}

// Create accepts a raw batch for the datasource in the path. The body is
// handed to the queue untouched; shape problems surface on the task.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	datasourceID := r.PathValue("id")
	ctx = middleware.WithDatasourceID(ctx, datasourceID)

	if datasourceID == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "datasource id is required", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(ctx, w, "PAYLOAD_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(ctx, w, "BAD_REQUEST", "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		h.writeError(ctx, w, "VALIDATION_ERROR", "request body is empty", http.StatusBadRequest)
		return
	}

	msg := pipeline.Message{
		DatasourceID:  datasourceID,
		TableName:     r.URL.Query().Get("table"),
		CorrelationID: correlationID,
		Body:          body,
	}

	task, err := h.submitter.Submit(ctx, msg)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrClosed) {
			slog.WarnContext(ctx, "rejected ingest request", "error", err)
			w.Header().Set("Retry-After", "1")
			h.writeError(ctx, w, "QUEUE_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
			return
		}
		slog.ErrorContext(ctx, "failed to dispatch ingest request", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "ingest request accepted", "task_id", task.ID, "bytes", len(body))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": task}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
