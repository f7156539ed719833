package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTraced(t *testing.T) (*TracedManager, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	mgr, err := NewManager(testConfig(t), WithLogger(testLogger()), WithID("mgr-traced"))
	require.NoError(t, err)

	traced, err := NewTracedManager(mgr, provider.Tracer(instrumentationName), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = traced.Close() })
	return traced, recorder
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracedManager_StoreRecordsSpan(t *testing.T) {
	ctx := context.Background()
	traced, recorder := newTestTraced(t)

	require.True(t, traced.Store(ctx, "key1", "value1", TierEphemeral))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "memtier.ephemeral.store", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	tier, ok := spanAttr(span, "memtier.tier")
	require.True(t, ok)
	assert.Equal(t, "ephemeral", tier.AsString())

	key, ok := spanAttr(span, "memtier.key")
	require.True(t, ok)
	assert.Equal(t, "key1", key.AsString())

	id, ok := spanAttr(span, "memtier.manager_id")
	require.True(t, ok)
	assert.Equal(t, "mgr-traced", id.AsString())
}

func TestTracedManager_SpanNamesPerOperation(t *testing.T) {
	ctx := context.Background()
	traced, recorder := newTestTraced(t)

	traced.Store(ctx, "key1", "value1", TierPersistent)
	traced.Retrieve(ctx, "key1", nil, TierPersistent)
	traced.Delete(ctx, "key1", TierPersistent)
	traced.Clear(ctx, TierSession)

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	assert.Equal(t, "memtier.persistent.store", spans[0].Name())
	assert.Equal(t, "memtier.persistent.retrieve", spans[1].Name())
	assert.Equal(t, "memtier.persistent.delete", spans[2].Name())
	assert.Equal(t, "memtier.session.clear", spans[3].Name())
}

func TestTracedManager_FailedOperationMarksSpan(t *testing.T) {
	ctx := context.Background()
	traced, recorder := newTestTraced(t)

	assert.False(t, traced.Store(ctx, "key1", "value1", Tier("bogus")))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	ok, found := spanAttr(spans[0], "memtier.ok")
	require.True(t, found)
	assert.False(t, ok.AsBool())
}

func TestTracedManager_ClearSpanHasNoKeyAttribute(t *testing.T) {
	ctx := context.Background()
	traced, recorder := newTestTraced(t)

	traced.Clear(ctx, TierEphemeral)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	_, found := spanAttr(spans[0], "memtier.key")
	assert.False(t, found)
}

func TestTracedManager_StatsSpan(t *testing.T) {
	ctx := context.Background()
	traced, recorder := newTestTraced(t)

	traced.Store(ctx, "key1", 1, TierEphemeral)
	stats := traced.Stats(ctx)
	require.Len(t, stats, 4)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "memtier.stats", spans[1].Name())

	count, found := spanAttr(spans[1], "memtier.tier_count")
	require.True(t, found)
	assert.Equal(t, int64(4), count.AsInt64())
}

func TestTracedManager_DelegatesAccessors(t *testing.T) {
	traced, _ := newTestTraced(t)

	assert.Equal(t, "mgr-traced", traced.ID())
	assert.NotNil(t, traced.Ephemeral())
	assert.NotNil(t, traced.Persistent())
	assert.NotNil(t, traced.Session())
	assert.NotNil(t, traced.Relational())
}

func TestTracedManager_OperationsFlowThrough(t *testing.T) {
	ctx := context.Background()
	traced, _ := newTestTraced(t)

	require.True(t, traced.Store(ctx, "key1", "value1", TierPersistent))
	assert.Equal(t, "value1", traced.Retrieve(ctx, "key1", nil, TierPersistent))
	assert.True(t, traced.Delete(ctx, "key1", TierPersistent))
	assert.Equal(t, "fallback", traced.Retrieve(ctx, "key1", "fallback", TierPersistent))
}
