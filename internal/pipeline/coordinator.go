package pipeline

import (
	"context"
	"log/slog"
	"time"

	"vectorproxy/internal/embedding"
	"vectorproxy/internal/ingest"
	"vectorproxy/internal/observe"
	"vectorproxy/internal/vector"
)

// Embedder produces the points for a batch of records.
type Embedder interface {
	Embed(ctx context.Context, records []ingest.Record, ds embedding.Datasource) ([]vector.Point, error)
}

// Coordinator embeds a batch and writes the resulting points through a
// tenant-scoped store handle. Nothing is written when embedding fails.
type Coordinator struct {
	embedder Embedder
	metrics  *observe.Metrics
}

func NewCoordinator(e Embedder, m *observe.Metrics) *Coordinator {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Coordinator{embedder: e, metrics: m}
}

// EmbedInsert returns the number of points written. Errors are *Error with
// Kind EmbeddingFailure or UpsertFailure.
func (c *Coordinator) EmbedInsert(ctx context.Context, store *vector.TenantStore, records []ingest.Record, ds embedding.Datasource) (int, error) {
	points, err := c.embed(ctx, records, ds)
	if err != nil {
		slog.ErrorContext(ctx, "embedding and upsert failed",
			"kind", EmbeddingFailure.String(), "records", len(records), "error", err)
		return 0, &Error{Kind: EmbeddingFailure, DatasourceID: ds.ID, Err: err}
	}

	if err := c.upsert(ctx, store, points); err != nil {
		slog.ErrorContext(ctx, "embedding and upsert failed",
			"kind", UpsertFailure.String(), "points", len(points), "tenant", store.Tenant(), "error", err)
		return 0, &Error{Kind: UpsertFailure, DatasourceID: ds.ID, Err: err}
	}

	slog.InfoContext(ctx, "embedding and upsert succeeded", "points", len(points), "tenant", store.Tenant())
	return len(points), nil
}

func (c *Coordinator) embed(ctx context.Context, records []ingest.Record, ds embedding.Datasource) (_ []vector.Point, err error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.embed")
	defer func() { observe.EndSpan(span, err) }()
	defer observe.Since(ctx, c.metrics.EmbedDuration, time.Now())

	return c.embedder.Embed(ctx, records, ds)
}

func (c *Coordinator) upsert(ctx context.Context, store *vector.TenantStore, points []vector.Point) (err error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.upsert")
	defer func() { observe.EndSpan(span, err) }()
	defer observe.Since(ctx, c.metrics.UpsertDuration, time.Now())

	if err = store.Upsert(ctx, points); err != nil {
		return err
	}
	c.metrics.PointsUpserted.Add(ctx, int64(len(points)))
	return nil
}
