// Package queue schedules embedding/upsert tasks. Tasks of one datasource run
// one at a time in enqueue order; different datasources run concurrently on
// a bounded worker pool.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"vectorproxy/internal/middleware"
	"vectorproxy/internal/observe"
	"vectorproxy/internal/pipeline"
)

var (
	ErrQueueFull      = errors.New("task queue is full")
	ErrClosed         = errors.New("task queue is closed")
	ErrNotImplemented = errors.New("queue operation not implemented")
)

// Runner executes one message against the lent handles.
type Runner interface {
	Process(ctx context.Context, h pipeline.Handles, msg pipeline.Message) (pipeline.Outcome, error)
}

// FailureSink is told about every failed task.
type FailureSink interface {
	TaskFailed(ctx context.Context, task Task, msg pipeline.Message, err error)
}

type Options struct {
	Workers      int
	MaxDepth     int
	HistoryLimit int
	TaskTimeout  time.Duration
	Metrics      *observe.Metrics
	Sink         FailureSink
}

type entry struct {
	task    Task
	msg     pipeline.Message
	handles pipeline.Handles
}

type Queue struct {
	mu sync.Mutex

	runner Runner
	opts   Options
	pool   *ants.Pool
	now    func() time.Time

	tasks    map[string]*entry
	pending  []*entry // queued, not yet running, in enqueue order
	staged   []*entry // enqueued, not yet dispatched
	lanes    map[string][]*entry
	ready    []string // lanes waiting for a free worker
	workers  int
	finished []string
	closed   bool
	wg       sync.WaitGroup
}

func New(runner Runner, opts Options) (*Queue, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, err
	}
	return &Queue{
		runner: runner,
		opts:   opts,
		pool:   pool,
		now:    time.Now,
		tasks:  make(map[string]*entry),
		lanes:  make(map[string][]*entry),
	}, nil
}

// Enqueue records msg as a queued task. A message whose ID matches a task
// that is still queued or running returns that task unchanged.
func (q *Queue) Enqueue(ctx context.Context, msg pipeline.Message) (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueueLocked(ctx, msg)
}

// Dispatch hands every enqueued task to its datasource lane using h.
func (q *Queue) Dispatch(ctx context.Context, h pipeline.Handles) (int, error) {
	q.mu.Lock()
	n, starts, err := q.dispatchLocked(h)
	q.mu.Unlock()

	q.start(ctx, starts)
	return n, err
}

func (q *Queue) enqueueLocked(ctx context.Context, msg pipeline.Message) (Task, error) {
	if q.closed {
		q.opts.Metrics.TasksRejected.Add(ctx, 1)
		return Task{}, ErrClosed
	}

	if msg.ID != "" {
		if e, ok := q.tasks[msg.ID]; ok && !e.task.Status.Finished() {
			return e.task, nil
		}
	}

	if q.opts.MaxDepth > 0 && len(q.pending) >= q.opts.MaxDepth {
		q.opts.Metrics.TasksRejected.Add(ctx, 1)
		slog.WarnContext(ctx, "task queue full", "depth", len(q.pending), "datasource_id", msg.DatasourceID)
		return Task{}, ErrQueueFull
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	} else if _, ok := q.tasks[msg.ID]; ok {
		q.forgetLocked(msg.ID)
	}

	e := &entry{
		msg: msg,
		task: Task{
			ID:           msg.ID,
			DatasourceID: msg.DatasourceID,
			TableName:    msg.TableName,
			Status:       StatusQueued,
			EnqueuedAt:   q.now(),
		},
	}
	q.tasks[msg.ID] = e
	q.pending = append(q.pending, e)
	q.staged = append(q.staged, e)

	q.opts.Metrics.TasksEnqueued.Add(ctx, 1)
	q.opts.Metrics.QueueDepth.Add(ctx, 1)
	slog.DebugContext(ctx, "task enqueued", "task_id", msg.ID, "datasource_id", msg.DatasourceID)
	return e.task, nil
}

// dispatchLocked moves staged tasks into their lanes and returns the lanes
// that need a new worker. Workers are started by start once the lock is
// released.
func (q *Queue) dispatchLocked(h pipeline.Handles) (int, []string, error) {
	if q.closed {
		return 0, nil, ErrClosed
	}

	var starts []string
	staged := q.staged
	q.staged = nil
	for _, e := range staged {
		e.handles = h
		key := e.task.DatasourceID
		if lane, ok := q.lanes[key]; ok {
			q.lanes[key] = append(lane, e)
			continue
		}
		q.lanes[key] = []*entry{e}

		if q.workers >= q.opts.Workers {
			q.ready = append(q.ready, key)
			continue
		}
		q.workers++
		q.wg.Add(1)
		starts = append(starts, key)
	}
	return len(staged), starts, nil
}

func (q *Queue) start(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := q.pool.Submit(func() { q.drain(key) }); err != nil {
			slog.ErrorContext(ctx, "failed to start lane worker", "datasource_id", key, "error", err)
			q.mu.Lock()
			q.workers--
			q.mu.Unlock()
			q.wg.Done()
		}
	}
}

// drain runs the lane for key, then any lanes waiting for a worker.
func (q *Queue) drain(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		e, next := q.takeLocked(key)
		if e == nil {
			if next == "" {
				q.workers--
				q.mu.Unlock()
				return
			}
			key = next
			q.mu.Unlock()
			continue
		}
		q.mu.Unlock()

		q.run(e)
	}
}

// takeLocked pops the next task of lane key and marks it running. When the
// lane is empty it is removed and the next ready lane key is returned.
func (q *Queue) takeLocked(key string) (*entry, string) {
	lane := q.lanes[key]
	if len(lane) == 0 {
		delete(q.lanes, key)
		if len(q.ready) == 0 {
			return nil, ""
		}
		next := q.ready[0]
		q.ready = q.ready[1:]
		return nil, next
	}

	e := lane[0]
	lane[0] = nil
	q.lanes[key] = lane[1:]

	started := q.now()
	e.task.Status = StatusRunning
	e.task.StartedAt = &started
	q.removePendingLocked(e)
	return e, ""
}

func (q *Queue) run(e *entry) {
	ctx := middleware.WithTaskID(context.Background(), e.task.ID)
	ctx = middleware.WithDatasourceID(ctx, e.task.DatasourceID)
	if e.msg.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, e.msg.CorrelationID)
	}
	q.opts.Metrics.QueueDepth.Add(ctx, -1)

	runCtx := ctx
	if q.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, q.opts.TaskTimeout)
		defer cancel()
	}

	start := q.now()
	out, err := q.runner.Process(runCtx, e.handles, e.msg)
	observe.Since(ctx, q.opts.Metrics.TaskDuration, start)

	q.mu.Lock()
	finished := q.now()
	e.task.FinishedAt = &finished
	e.task.Records = out.Records
	e.task.Points = out.Points
	if err != nil {
		e.task.Status = StatusFailed
		e.task.FailureKind = pipeline.KindOf(err).String()
		e.task.Error = err.Error()
	} else {
		e.task.Status = StatusCompleted
	}
	task := e.task
	q.finishLocked(e.task.ID)
	q.mu.Unlock()

	if err != nil {
		q.opts.Metrics.RecordFailure(ctx, task.FailureKind)
		slog.ErrorContext(ctx, "task failed", "kind", task.FailureKind, "error", err)
		if q.opts.Sink != nil {
			q.opts.Sink.TaskFailed(ctx, task, e.msg, err)
		}
		return
	}
	q.opts.Metrics.TasksCompleted.Add(ctx, 1)
	slog.InfoContext(ctx, "task completed", "records", task.Records, "points", task.Points)
}

// abandonStagedLocked fails every staged task and returns copies of them.
func (q *Queue) abandonStagedLocked() []entry {
	if len(q.staged) == 0 {
		return nil
	}
	now := q.now()
	out := make([]entry, 0, len(q.staged))
	for _, e := range q.staged {
		finished := now
		e.task.Status = StatusFailed
		e.task.FailureKind = pipeline.KindOf(ErrClosed).String()
		e.task.Error = ErrClosed.Error()
		e.task.FinishedAt = &finished
		q.removePendingLocked(e)
		q.finishLocked(e.task.ID)
		out = append(out, *e)
	}
	q.staged = nil
	return out
}

func (q *Queue) removePendingLocked(e *entry) {
	for i, p := range q.pending {
		if p == e {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

func (q *Queue) finishLocked(id string) {
	q.finished = append(q.finished, id)
	if q.opts.HistoryLimit <= 0 {
		return
	}
	for len(q.finished) > q.opts.HistoryLimit {
		delete(q.tasks, q.finished[0])
		q.finished = q.finished[1:]
	}
}

// forgetLocked drops a finished task so its id can be reused.
func (q *Queue) forgetLocked(id string) {
	delete(q.tasks, id)
	for i, f := range q.finished {
		if f == id {
			q.finished = append(q.finished[:i], q.finished[i+1:]...)
			return
		}
	}
}

// Pending returns the datasource ids of queued tasks in enqueue order.
// A datasource appears once per queued task.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, len(q.pending))
	for i, e := range q.pending {
		ids[i] = e.task.DatasourceID
	}
	return ids
}

func (q *Queue) Get(id string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.tasks[id]
	if !ok {
		return Task{}, false
	}
	return e.task, true
}

// List returns all known tasks, newest first.
func (q *Queue) List() []Task {
	q.mu.Lock()
	out := make([]Task, 0, len(q.tasks))
	for _, e := range q.tasks {
		out = append(out, e.task)
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].EnqueuedAt.After(out[j].EnqueuedAt)
	})
	return out
}

// Counts returns the number of known tasks per status.
func (q *Queue) Counts() map[Status]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := map[Status]int{
		StatusQueued:    0,
		StatusRunning:   0,
		StatusCompleted: 0,
		StatusFailed:    0,
	}
	for _, e := range q.tasks {
		counts[e.task.Status]++
	}
	return counts
}

// Close stops intake and waits for dispatched tasks to finish or ctx to end.
// Tasks enqueued but never dispatched are failed with ErrClosed.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	abandoned := q.abandonStagedLocked()
	q.mu.Unlock()

	for _, e := range abandoned {
		q.opts.Metrics.QueueDepth.Add(ctx, -1)
		q.opts.Metrics.RecordFailure(ctx, e.task.FailureKind)
		slog.WarnContext(ctx, "task dropped on close", "task_id", e.task.ID, "datasource_id", e.task.DatasourceID)
		if q.opts.Sink != nil {
			q.opts.Sink.TaskFailed(ctx, e.task, e.msg, ErrClosed)
		}
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.pool.Release()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
