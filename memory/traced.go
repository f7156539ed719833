package memory

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this package to OpenTelemetry providers.
const instrumentationName = "github.com/insight-ai/memtier/memory"

// TracedManager wraps a Manager with OpenTelemetry tracing and metrics.
// Every dispatch operation is recorded as a span named
// "memtier.<tier>.<operation>" with tier, operation, and key attributes,
// and counted on the memtier.operations counter with an outcome dimension.
//
// The wrapper is opt-in; the underlying stores carry no instrumentation of
// their own.
type TracedManager struct {
	inner  *Manager
	tracer trace.Tracer
	ops    metric.Int64Counter
}

// NewTracedManager wraps the provided manager. A nil tracer or meter falls
// back to the global OpenTelemetry providers.
func NewTracedManager(m *Manager, tracer trace.Tracer, meter metric.Meter) (*TracedManager, error) {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	ops, err := meter.Int64Counter("memtier.operations",
		metric.WithDescription("Memory operations by tier, operation, and outcome."))
	if err != nil {
		return nil, err
	}

	return &TracedManager{
		inner:  m,
		tracer: tracer,
		ops:    ops,
	}, nil
}

// ID returns the wrapped manager's instance identifier.
func (t *TracedManager) ID() string {
	return t.inner.ID()
}

// Ephemeral returns the wrapped manager's ephemeral tier.
func (t *TracedManager) Ephemeral() Store {
	return t.inner.Ephemeral()
}

// Persistent returns the wrapped manager's persistent tier.
func (t *TracedManager) Persistent() *PersistentStore {
	return t.inner.Persistent()
}

// Session returns the wrapped manager's session tier.
func (t *TracedManager) Session() *SessionStore {
	return t.inner.Session()
}

// Relational returns the wrapped manager's relational tier.
func (t *TracedManager) Relational() *RelationalStore {
	return t.inner.Relational()
}

// Store puts a value into the named tier, recording a span and counting the
// operation.
func (t *TracedManager) Store(ctx context.Context, key string, value any, tier Tier) bool {
	ctx, span := t.start(ctx, tier, "store", key)
	defer span.End()

	ok := t.inner.Store(ctx, key, value, tier)
	t.finish(ctx, span, tier, "store", ok)
	return ok
}

// Retrieve gets a value from the named tier, recording a span and counting
// the operation.
func (t *TracedManager) Retrieve(ctx context.Context, key string, def any, tier Tier) any {
	ctx, span := t.start(ctx, tier, "retrieve", key)
	defer span.End()

	value := t.inner.Retrieve(ctx, key, def, tier)
	t.finish(ctx, span, tier, "retrieve", true)
	return value
}

// Delete removes a key from the named tier, recording a span and counting
// the operation.
func (t *TracedManager) Delete(ctx context.Context, key string, tier Tier) bool {
	ctx, span := t.start(ctx, tier, "delete", key)
	defer span.End()

	ok := t.inner.Delete(ctx, key, tier)
	t.finish(ctx, span, tier, "delete", ok)
	return ok
}

// Clear empties the named tier (or all tiers), recording a span and
// counting the operation.
func (t *TracedManager) Clear(ctx context.Context, tier Tier) bool {
	ctx, span := t.start(ctx, tier, "clear", "")
	defer span.End()

	ok := t.inner.Clear(ctx, tier)
	t.finish(ctx, span, tier, "clear", ok)
	return ok
}

// Stats returns the wrapped manager's per-tier statistics under a span.
func (t *TracedManager) Stats(ctx context.Context) map[Tier]TierStats {
	ctx, span := t.tracer.Start(ctx, "memtier.stats")
	defer span.End()

	stats := t.inner.Stats(ctx)
	span.SetAttributes(attribute.Int("memtier.tier_count", len(stats)))
	span.SetStatus(codes.Ok, "")
	return stats
}

// Close releases the wrapped manager's resources.
func (t *TracedManager) Close() error {
	_, span := t.tracer.Start(context.Background(), "memtier.close")
	defer span.End()

	err := t.inner.Close()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (t *TracedManager) start(ctx context.Context, tier Tier, operation, key string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "memtier."+tier.String()+"."+operation)
	attrs := []attribute.KeyValue{
		attribute.String("memtier.tier", tier.String()),
		attribute.String("memtier.operation", operation),
		attribute.String("memtier.manager_id", t.inner.ID()),
	}
	if key != "" {
		attrs = append(attrs, attribute.String("memtier.key", key))
	}
	span.SetAttributes(attrs...)
	return ctx, span
}

func (t *TracedManager) finish(ctx context.Context, span trace.Span, tier Tier, operation string, ok bool) {
	t.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("memtier.tier", tier.String()),
		attribute.String("memtier.operation", operation),
		attribute.Bool("memtier.ok", ok),
	))
	span.SetAttributes(attribute.Bool("memtier.ok", ok))
	if ok {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetStatus(codes.Error, "operation failed")
}
