package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vectorproxy/internal/config"
	"vectorproxy/internal/queue"
)

var (
	ErrPublishTimeout       = errors.New("timeout waiting for NSQ publish")
	ErrPublisherUnavailable = errors.New("no NSQ publisher configured")
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Tracker exposes the in-memory task records.
type Tracker interface {
	Get(id string) (queue.Task, bool)
	List() []queue.Task
	Counts() map[queue.Status]int
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	tracker        Tracker
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, tracker Tracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, tracker: tracker, logger: logger, publishTimeout: 5 * time.Second}
}

func (s *Service) Tasks() []queue.Task {
	return s.tracker.List()
}

func (s *Service) Task(id string) (queue.Task, bool) {
	return s.tracker.Get(id)
}

func (s *Service) Counts() map[queue.Status]int {
	return s.tracker.Counts()
}

func (s *Service) ListFailed(ctx context.Context) ([]FailedTask, error) {
	return s.repo.List(ctx)
}

func (s *Service) CountFailed(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Retry republishes a failed task's envelope and drops the failure row.
func (s *Service) Retry(ctx context.Context, id string) error {
	if s.pub == nil {
		return ErrPublisherUnavailable
	}

	ft, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicIngestMessages, ft.Payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(s.publishTimeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "failed task republished", "id", id, "task_id", ft.TaskID, "datasource_id", ft.DatasourceID)
	return s.repo.Delete(ctx, id)
}
