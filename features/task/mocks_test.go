package task_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"vectorproxy/features/task"
	"vectorproxy/internal/queue"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, t *task.FailedTask) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepo) List(ctx context.Context) ([]task.FailedTask, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]task.FailedTask), args.Error(1)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*task.FailedTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.FailedTask), args.Error(1)
}

func (m *MockRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

type fakeTracker struct {
	tasks []queue.Task
}

func (f *fakeTracker) Get(id string) (queue.Task, bool) {
	for _, t := range f.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return queue.Task{}, false
}

func (f *fakeTracker) List() []queue.Task { return f.tasks }

func (f *fakeTracker) Counts() map[queue.Status]int {
	counts := map[queue.Status]int{}
	for _, t := range f.tasks {
		counts[t.Status]++
	}
	return counts
}
