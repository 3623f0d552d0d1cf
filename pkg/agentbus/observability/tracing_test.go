package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("agentbus")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		tracer = otel.Tracer("agentbus")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestStartDispatchSpan(t *testing.T) {
	exporter := setupTracingTest(t)

	t.Run("sets name and attributes", func(t *testing.T) {
		exporter.Reset()
		_, span := StartDispatchSpan(context.Background(), "evt-1", "a.b", "wf-1")
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "agentbus.dispatch", spans[0].Name)

		attrs := attrMap(spans[0].Attributes)
		assert.Equal(t, "evt-1", attrs["event.id"])
		assert.Equal(t, "a.b", attrs["event.topic"])
		assert.Equal(t, "wf-1", attrs["event.correlation_id"])
	})

	t.Run("omits empty correlation id", func(t *testing.T) {
		exporter.Reset()
		_, span := StartDispatchSpan(context.Background(), "evt-2", "a.b", "")
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.NotContains(t, attrMap(spans[0].Attributes), "event.correlation_id")
	})
}

func TestEndSpanWithError(t *testing.T) {
	exporter := setupTracingTest(t)

	_, span := StartDispatchSpan(context.Background(), "evt-1", "a", "")
	EndSpanWithError(span, errors.New("boom"))

	_, okSpan := StartDispatchSpan(context.Background(), "evt-2", "a", "")
	EndSpanWithError(okSpan, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)

	assert.NotPanics(t, func() { EndSpanWithError(nil, nil) })
}

func TestAddSpanEvent(t *testing.T) {
	exporter := setupTracingTest(t)

	manager := NewSpanManager()
	ctx, span := manager.StartDispatchSpan(context.Background(), "evt-1", "a", "")
	manager.AddSpanEvent(ctx, "handler.failed", attribute.String("handler", "audit"))
	manager.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "handler.failed", spans[0].Events[0].Name)

	assert.NotPanics(t, func() {
		AddSpanEvent(context.Background(), "orphan")
	})
}
