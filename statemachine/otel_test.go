package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer creates a test tracer with an in-memory exporter.
func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)

	oldProvider := otel.GetTracerProvider()

	otel.SetTracerProvider(tp)

	cleanup := func() {
		otel.SetTracerProvider(oldProvider)
	}

	return exporter, cleanup
}

func attrMap(attrs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		m[string(attr.Key)] = attr.Value.AsInterface()
	}

	return m
}

// TestTickSpan verifies one span per tick with an event per firing.
// Note: Cannot use t.Parallel() because setupTestTracer modifies global OTEL tracer provider.
//
//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestTickSpan(t *testing.T) {
	exporter, cleanup := setupTestTracer(t)
	t.Cleanup(cleanup)

	m, err := NewBuilder("A", WithName("traced")).
		AddTransition("A", "B", always, nil).Describe("leave A").
		AddStateAction("B", nil).
		AddTransition("B", "A", never, nil).
		Build()
	require.NoError(t, err)

	require.NoError(t, m.Tick(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "sequence.tick", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	attrs := attrMap(span.Attributes)
	assert.Equal(t, "traced", attrs["machine"])
	assert.Equal(t, m.ID(), attrs["machine_id"])
	assert.Equal(t, "A", attrs["state.from"])
	assert.Equal(t, "B", attrs["state.to"])

	require.Len(t, span.Events, 2)
	assert.Equal(t, "rule.fired", span.Events[0].Name)

	event := attrMap(span.Events[0].Attributes)
	assert.Equal(t, "leave A", event["rule.description"])
	assert.Equal(t, "StateTransition", event["rule.kind"])
	assert.Equal(t, int64(0), event["rule.index"])

	event = attrMap(span.Events[1].Attributes)
	assert.Equal(t, "StateAction", event["rule.kind"])
}

// TestTickSpanRecordsActionError verifies action failures mark the span.
//
//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestTickSpanRecordsActionError(t *testing.T) {
	exporter, cleanup := setupTestTracer(t)
	t.Cleanup(cleanup)

	m, err := NewBuilder("A").
		AddTransition("A", "B", always, func(context.Context) error { return errors.New("boom") }).
		AddTransition("B", "A", never, nil).
		Build()
	require.NoError(t, err)

	require.Error(t, m.Tick(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Status.Description, "boom")

	var names []string
	for _, e := range spans[0].Events {
		names = append(names, e.Name)
	}

	assert.Equal(t, []string{"rule.fired", "exception"}, names)
}

// TestTickSpanParent verifies the tick span joins the caller's trace.
//
//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestTickSpanParent(t *testing.T) {
	exporter, cleanup := setupTestTracer(t)
	t.Cleanup(cleanup)

	m, err := NewBuilder("A").
		AddTransition("A", "B", never, nil).
		AddTransition("B", "A", never, nil).
		Build()
	require.NoError(t, err)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, m.Tick(ctx))
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "sequence.tick", spans[0].Name)
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent.SpanID())
	assert.Empty(t, spans[0].Events)
}
