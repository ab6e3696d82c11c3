package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type slowPublisher struct {
	sleep time.Duration
}

func (p *slowPublisher) Publish(topic string, body []byte) error {
	time.Sleep(p.sleep)
	return nil
}

type stubRepo struct {
	Repository
	deleted bool
}

func (r *stubRepo) Get(ctx context.Context, id string) (*FailedTask, error) {
	return &FailedTask{ID: id, Payload: []byte("{}")}, nil
}

func (r *stubRepo) Delete(ctx context.Context, id string) error {
	r.deleted = true
	return nil
}

func TestRetry_Timeout(t *testing.T) {
	repo := &stubRepo{}
	s := NewService(repo, &slowPublisher{sleep: 200 * time.Millisecond}, nil, nil)
	s.publishTimeout = 20 * time.Millisecond

	err := s.Retry(context.Background(), "1")
	assert.ErrorIs(t, err, ErrPublishTimeout)
	assert.False(t, repo.deleted)
}
