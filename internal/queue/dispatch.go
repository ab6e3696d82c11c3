package queue

import (
	"context"

	"vectorproxy/internal/pipeline"
	"vectorproxy/internal/vector"
)

// AddMessageToEmbeddingUpsertingQueue enqueues msg and dispatches it with h
// under one hold of the queue lock. Lane workers start after the lock is
// released, so embedding never runs under it.
func AddMessageToEmbeddingUpsertingQueue(ctx context.Context, q *Queue, h pipeline.Handles, msg pipeline.Message) (Task, error) {
	q.mu.Lock()
	task, err := q.enqueueLocked(ctx, msg)
	if err != nil {
		q.mu.Unlock()
		return Task{}, err
	}
	_, starts, err := q.dispatchLocked(h)
	q.mu.Unlock()

	q.start(ctx, starts)
	return task, err
}

// AddVectorsToUpsertQueue would upsert precomputed points without embedding.
func AddVectorsToUpsertQueue(ctx context.Context, q *Queue, h pipeline.Handles, datasourceID string, points []vector.Point) (Task, error) {
	return Task{}, ErrNotImplemented
}

// AddMessageToEmbeddingQueue would embed a message without upserting.
func AddMessageToEmbeddingQueue(ctx context.Context, q *Queue, h pipeline.Handles, msg pipeline.Message) (Task, error) {
	return Task{}, ErrNotImplemented
}

// Dispatcher binds a queue to the handles every message is dispatched with.
type Dispatcher struct {
	Queue   *Queue
	Handles pipeline.Handles
}

func (d *Dispatcher) Submit(ctx context.Context, msg pipeline.Message) (Task, error) {
	return AddMessageToEmbeddingUpsertingQueue(ctx, d.Queue, d.Handles, msg)
}
