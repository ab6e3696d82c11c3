// Package observe holds the OpenTelemetry metric instruments and tracer used
// by the ingestion pipeline. Tests should build Metrics with NewMetrics over
// a ManualReader provider instead of using DefaultMetrics.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "vectorproxy"

type Metrics struct {
	TasksEnqueued  metric.Int64Counter
	TasksRejected  metric.Int64Counter
	TasksCompleted metric.Int64Counter
	// TasksFailed is recorded with attribute "kind".
	TasksFailed    metric.Int64Counter
	PointsUpserted metric.Int64Counter

	TaskDuration   metric.Float64Histogram
	EmbedDuration  metric.Float64Histogram
	UpsertDuration metric.Float64Histogram

	QueueDepth metric.Int64UpDownCounter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TasksEnqueued, err = m.Int64Counter("vectorproxy.tasks.enqueued",
		metric.WithDescription("Tasks accepted by the queue."),
	); err != nil {
		return nil, err
	}
	if met.TasksRejected, err = m.Int64Counter("vectorproxy.tasks.rejected",
		metric.WithDescription("Tasks rejected because the queue was full or closed."),
	); err != nil {
		return nil, err
	}
	if met.TasksCompleted, err = m.Int64Counter("vectorproxy.tasks.completed",
		metric.WithDescription("Tasks that finished successfully."),
	); err != nil {
		return nil, err
	}
	if met.TasksFailed, err = m.Int64Counter("vectorproxy.tasks.failed",
		metric.WithDescription("Tasks that failed, by failure kind."),
	); err != nil {
		return nil, err
	}
	if met.PointsUpserted, err = m.Int64Counter("vectorproxy.points.upserted",
		metric.WithDescription("Embedding points written to the vector store."),
	); err != nil {
		return nil, err
	}

	if met.TaskDuration, err = m.Float64Histogram("vectorproxy.task.duration",
		metric.WithDescription("Time from task start to completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbedDuration, err = m.Float64Histogram("vectorproxy.embed.duration",
		metric.WithDescription("Latency of batch embedding."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UpsertDuration, err = m.Float64Histogram("vectorproxy.upsert.duration",
		metric.WithDescription("Latency of vector store upserts."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.QueueDepth, err = m.Int64UpDownCounter("vectorproxy.queue.depth",
		metric.WithDescription("Tasks queued but not yet started."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a Metrics instance on the global meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordFailure(ctx context.Context, kind string) {
	m.TasksFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// Since records the seconds elapsed from start on h.
func Since(ctx context.Context, h metric.Float64Histogram, start time.Time) {
	h.Record(ctx, time.Since(start).Seconds())
}
