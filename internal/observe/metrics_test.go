package observe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.TasksEnqueued.Add(ctx, 3)
	m.PointsUpserted.Add(ctx, 10)
	m.QueueDepth.Add(ctx, 2)
	m.QueueDepth.Add(ctx, -1)

	rm := collect(t, reader)

	sum := func(name string) int64 {
		met := findMetric(rm, name)
		require.NotNil(t, met, name)
		data, ok := met.Data.(metricdata.Sum[int64])
		require.True(t, ok, name)
		var total int64
		for _, dp := range data.DataPoints {
			total += dp.Value
		}
		return total
	}

	assert.Equal(t, int64(3), sum("vectorproxy.tasks.enqueued"))
	assert.Equal(t, int64(10), sum("vectorproxy.points.upserted"))
	assert.Equal(t, int64(1), sum("vectorproxy.queue.depth"))
}

func TestRecordFailure(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFailure(ctx, "embedding")
	m.RecordFailure(ctx, "embedding")
	m.RecordFailure(ctx, "tenant")

	met := findMetric(collect(t, reader), "vectorproxy.tasks.failed")
	require.NotNil(t, met)
	data := met.Data.(metricdata.Sum[int64])

	byKind := map[string]int64{}
	for _, dp := range data.DataPoints {
		kind, _ := dp.Attributes.Value(attribute.Key("kind"))
		byKind[kind.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"embedding": 2, "tenant": 1}, byKind)
}

func TestSince(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	Since(ctx, m.EmbedDuration, time.Now().Add(-200*time.Millisecond))

	met := findMetric(collect(t, reader), "vectorproxy.embed.duration")
	require.NotNil(t, met)
	hist := met.Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.GreaterOrEqual(t, hist.DataPoints[0].Sum, 0.2)
}
