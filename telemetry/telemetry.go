// Package telemetry instruments the capsule store with OpenTelemetry
// traces and metrics.
//
// InstrumentedStore is a decorator around any store.Store: each operation
// runs inside a span carrying the operation name and outcome, and the
// meter records an operation counter, a conflict counter, and a duration
// histogram. Both the tracer and the meter are optional; with neither
// configured the decorator is a transparent pass-through.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bcic-ai/knowledge-sdk/capsule"
	"github.com/bcic-ai/knowledge-sdk/coreerr"
	"github.com/bcic-ai/knowledge-sdk/store"
)

// storeMetrics holds the metric instruments, created once at construction
// and reused for every operation.
type storeMetrics struct {
	// opCounter increments per store operation, tagged with op and outcome
	opCounter metric.Int64Counter

	// conflictCounter increments per optimistic-concurrency conflict
	conflictCounter metric.Int64Counter

	// durationHistogram records operation duration in milliseconds
	durationHistogram metric.Float64Histogram
}

// InstrumentedStore wraps a store.Store with tracing and metrics.
type InstrumentedStore struct {
	inner   store.Store
	tracer  trace.Tracer
	metrics *storeMetrics
}

var _ store.Store = (*InstrumentedStore)(nil)

// Option configures an InstrumentedStore.
type Option func(*InstrumentedStore) error

// WithTracer enables span creation with the given tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *InstrumentedStore) error {
		s.tracer = tracer
		return nil
	}
}

// WithMeter creates the metric instruments on the given meter.
func WithMeter(meter metric.Meter) Option {
	return func(s *InstrumentedStore) error {
		m := &storeMetrics{}
		var err error

		m.opCounter, err = meter.Int64Counter(
			"store.operations",
			metric.WithDescription("Number of capsule store operations"),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("create operation counter: %w", err)
		}

		m.conflictCounter, err = meter.Int64Counter(
			"store.conflicts",
			metric.WithDescription("Number of optimistic-concurrency conflicts"),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("create conflict counter: %w", err)
		}

		m.durationHistogram, err = meter.Float64Histogram(
			"store.duration",
			metric.WithDescription("Capsule store operation duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return fmt.Errorf("create duration histogram: %w", err)
		}

		s.metrics = m
		return nil
	}
}

// NewInstrumentedStore decorates the given store.
func NewInstrumentedStore(inner store.Store, opts ...Option) (*InstrumentedStore, error) {
	s := &InstrumentedStore{inner: inner}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// observe wraps one operation with a span and metric recording.
func (s *InstrumentedStore) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
		defer span.End()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	kind := coreerr.KindOf(err)
	if span != nil {
		span.SetAttributes(attribute.String("store.op", op))
		if err != nil {
			span.SetAttributes(attribute.String("error.kind", kind))
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = kind
			if outcome == "" {
				outcome = "error"
			}
		}
		attrs := metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		)
		s.metrics.opCounter.Add(ctx, 1, attrs)
		s.metrics.durationHistogram.Record(ctx, float64(elapsed.Milliseconds()), attrs)
		if kind == coreerr.KindConflict {
			s.metrics.conflictCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
		}
	}
	return err
}

// Create implements store.Store.
func (s *InstrumentedStore) Create(ctx context.Context, req store.CreateRequest) (*capsule.Capsule, error) {
	var out *capsule.Capsule
	err := s.observe(ctx, "store.Create", func(ctx context.Context) error {
		var err error
		out, err = s.inner.Create(ctx, req)
		return err
	})
	return out, err
}

// Get implements store.Store.
func (s *InstrumentedStore) Get(ctx context.Context, id string) (*capsule.Capsule, error) {
	var out *capsule.Capsule
	err := s.observe(ctx, "store.Get", func(ctx context.Context) error {
		var err error
		out, err = s.inner.Get(ctx, id)
		return err
	})
	return out, err
}

// Update implements store.Store.
func (s *InstrumentedStore) Update(ctx context.Context, id string, patch capsule.Patch) (*capsule.Capsule, error) {
	var out *capsule.Capsule
	err := s.observe(ctx, "store.Update", func(ctx context.Context) error {
		var err error
		out, err = s.inner.Update(ctx, id, patch)
		return err
	})
	return out, err
}

// Delete implements store.Store.
func (s *InstrumentedStore) Delete(ctx context.Context, id string) error {
	return s.observe(ctx, "store.Delete", func(ctx context.Context) error {
		return s.inner.Delete(ctx, id)
	})
}

// Search implements store.Store.
func (s *InstrumentedStore) Search(ctx context.Context, f store.Filter) (*store.Page, error) {
	var out *store.Page
	err := s.observe(ctx, "store.Search", func(ctx context.Context) error {
		var err error
		out, err = s.inner.Search(ctx, f)
		return err
	})
	return out, err
}

// Stats implements store.Store.
func (s *InstrumentedStore) Stats(ctx context.Context) (*store.Stats, error) {
	var out *store.Stats
	err := s.observe(ctx, "store.Stats", func(ctx context.Context) error {
		var err error
		out, err = s.inner.Stats(ctx)
		return err
	})
	return out, err
}

// Export implements store.Store.
func (s *InstrumentedStore) Export(ctx context.Context) (*store.Snapshot, error) {
	var out *store.Snapshot
	err := s.observe(ctx, "store.Export", func(ctx context.Context) error {
		var err error
		out, err = s.inner.Export(ctx)
		return err
	})
	return out, err
}

// Import implements store.Store.
func (s *InstrumentedStore) Import(ctx context.Context, snap *store.Snapshot) (int, error) {
	var out int
	err := s.observe(ctx, "store.Import", func(ctx context.Context) error {
		var err error
		out, err = s.inner.Import(ctx, snap)
		return err
	})
	return out, err
}
