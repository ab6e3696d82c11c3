package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"vectorproxy/internal/middleware"
	"vectorproxy/internal/pipeline"
	"vectorproxy/internal/queue"
)

type Submitter interface {
	Submit(ctx context.Context, msg pipeline.Message) (queue.Task, error)
}

// MessageConsumer feeds ingest messages from NSQ into the task queue.
type MessageConsumer struct {
	submitter Submitter
}

func NewMessageConsumer(s Submitter) *MessageConsumer {
	return &MessageConsumer{submitter: s}
}

// HandleMessage acks malformed envelopes and requeues only when the task
// queue pushes back.
func (h *MessageConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	msg, err := DecodeIngestMessage(m.Body)
	if err != nil {
		// Poison pill: retrying cannot fix the envelope
		slog.Error("poison pill: invalid ingest envelope", "error", err, "attempts", m.Attempts)
		return nil
	}

	// Redeliveries of one NSQ message map onto the same task.
	if msg.ID == "" && m.ID != (nsq.MessageID{}) {
		msg.ID = string(m.ID[:])
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), msg.CorrelationID)
	ctx = middleware.WithDatasourceID(ctx, msg.DatasourceID)

	task, err := h.submitter.Submit(ctx, msg)
	switch {
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrClosed):
		slog.WarnContext(ctx, "task queue unavailable, requeueing", "error", err, "attempts", m.Attempts)
		return err
	case err != nil:
		slog.ErrorContext(ctx, "failed to dispatch message", "error", err)
		return nil
	}

	slog.DebugContext(ctx, "message dispatched", "task_id", task.ID)
	return nil
}
