package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/bcic-ai/knowledge-sdk/capsule"
	"github.com/bcic-ai/knowledge-sdk/coreerr"
	"github.com/bcic-ai/knowledge-sdk/score"
	"github.com/bcic-ai/knowledge-sdk/store"
)

func testRequest(title string) store.CreateRequest {
	return store.CreateRequest{
		Type:      capsule.TypeKnowledge,
		Title:     title,
		Content:   capsule.Knowledge{Body: "body"},
		Score:     score.Inputs{Truth: 80, Goodness: 80, Beauty: 80, Intelligence: 80},
		CreatedBy: "tester",
	}
}

func TestPassThroughWithoutInstruments(t *testing.T) {
	s, err := NewInstrumentedStore(store.NewMemoryStore())
	require.NoError(t, err)

	c, err := s.Create(context.Background(), testRequest("bare"))
	require.NoError(t, err)

	got, err := s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "bare", got.Title)
}

func TestSpansRecorded(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s, err := NewInstrumentedStore(store.NewMemoryStore(), WithTracer(tp.Tracer("test")))
	require.NoError(t, err)

	c, err := s.Create(context.Background(), testRequest("traced"))
	require.NoError(t, err)
	_, err = s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "missing")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "store.Create", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "store.Get", spans[1].Name())

	// The failed Get carries the error kind and an error status.
	assert.Equal(t, codes.Error, spans[2].Status().Code)
	found := false
	for _, attr := range spans[2].Attributes() {
		if string(attr.Key) == "error.kind" {
			assert.Equal(t, coreerr.KindNotFound, attr.Value.AsString())
			found = true
		}
	}
	assert.True(t, found, "error.kind attribute missing")
}

func TestMetricsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	s, err := NewInstrumentedStore(store.NewMemoryStore(), WithMeter(mp.Meter("test")))
	require.NoError(t, err)

	c, err := s.Create(context.Background(), testRequest("measured"))
	require.NoError(t, err)

	// Provoke a conflict with a stale expected version.
	title := "stale"
	_, err = s.Update(context.Background(), c.ID, capsule.Patch{ExpectedVersion: 99, Title: &title})
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindConflict))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(2), sums["store.operations"])
	assert.Equal(t, int64(1), sums["store.conflicts"])
}
