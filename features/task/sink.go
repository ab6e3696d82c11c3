package task

import (
	"context"
	"encoding/json"
	"log/slog"

	"vectorproxy/internal/config"
	"vectorproxy/internal/pipeline"
	"vectorproxy/internal/queue"
	"vectorproxy/internal/worker"
)

// Sink persists failed tasks for later inspection and retry. With a
// publisher it also copies the envelope to the failed topic.
type Sink struct {
	repo Repository
	pub  EventPublisher
}

func NewSink(repo Repository, pub EventPublisher) *Sink {
	return &Sink{repo: repo, pub: pub}
}

func (s *Sink) TaskFailed(ctx context.Context, t queue.Task, msg pipeline.Message, err error) {
	env, encErr := worker.NewIngestMessage(msg.DatasourceID, msg.TableName, msg.Body)
	if encErr != nil {
		slog.ErrorContext(ctx, "failed to encode failed task payload", "error", encErr)
		return
	}
	env.ID = t.ID
	env.CorrelationID = msg.CorrelationID

	payload, encErr := json.Marshal(env)
	if encErr != nil {
		slog.ErrorContext(ctx, "failed to encode failed task payload", "error", encErr)
		return
	}

	if s.pub != nil {
		if pubErr := s.pub.Publish(config.TopicIngestFailed, payload); pubErr != nil {
			slog.WarnContext(ctx, "failed to publish failed task", "error", pubErr)
		}
	}

	ft := &FailedTask{
		TaskID:       t.ID,
		DatasourceID: t.DatasourceID,
		TableName:    t.TableName,
		FailureKind:  t.FailureKind,
		Error:        err.Error(),
		Payload:      payload,
	}
	if saveErr := s.repo.Save(ctx, ft); saveErr != nil {
		slog.ErrorContext(ctx, "failed to save failed task", "error", saveErr)
		return
	}
	slog.InfoContext(ctx, "failed task recorded", "failed_task_id", ft.ID)
}
