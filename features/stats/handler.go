package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"vectorproxy/internal/middleware"
	"vectorproxy/internal/queue"
)

type QueueReader interface {
	Counts() map[queue.Status]int
	Pending() []string
}

type FailedTaskRepo interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	queue      QueueReader
	failedRepo FailedTaskRepo
}

func NewHandler(q QueueReader, f FailedTaskRepo) *Handler {
	return &Handler{queue: q, failedRepo: f}
}

type StatsResponse struct {
	Queued      int `json:"queued"`
	Running     int `json:"running"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Datasources int `json:"pending_datasources"`
	FailedTasks int `json:"failed_tasks"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	fCount, err := h.failedRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count failed tasks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count failed tasks", http.StatusInternalServerError)
		return
	}

	counts := h.queue.Counts()
	seen := make(map[string]struct{})
	for _, id := range h.queue.Pending() {
		seen[id] = struct{}{}
	}

	resp := StatsResponse{
		Queued:      counts[queue.StatusQueued],
		Running:     counts[queue.StatusRunning],
		Completed:   counts[queue.StatusCompleted],
		Failed:      counts[queue.StatusFailed],
		Datasources: len(seen),
		FailedTasks: fCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
