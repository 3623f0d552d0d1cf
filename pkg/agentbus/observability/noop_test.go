package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordDispatch(ctx, "a", 2, time.Millisecond)
		m.RecordHandlerFailure(ctx, "a", "h", true)
		m.RecordIssue(ctx, "MISSING_ID", "ERROR")
	})
}

func TestNoopSpanManager(t *testing.T) {
	m := NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := m.StartDispatchSpan(ctx, "evt", "a", "wf")
	assert.Equal(t, ctx, newCtx)
	assert.False(t, span.IsRecording())

	assert.NotPanics(t, func() {
		m.AddSpanEvent(ctx, "x", attribute.String("k", "v"))
		m.EndSpanWithError(span, errors.New("ignored"))
	})
}
