package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WithoutDSNIsNoop(t *testing.T) {
	flush, err := Init(Config{})
	require.NoError(t, err)
	require.NotNil(t, flush)
	flush()
}

func TestSampler(t *testing.T) {
	sample := sampler(0.25)

	tests := []struct {
		name string
		span *sentry.Span
		want float64
	}{
		{"nil span", nil, 0.25},
		{"root transaction", &sentry.Span{Name: "GET /v1/todos"}, 0.25},
		{"health check", &sentry.Span{Name: "GET /health"}, 0},
		{"metrics scrape", &sentry.Span{Name: "GET /metrics"}, 0},
		{"sampled parent", &sentry.Span{Name: "db.transaction", ParentSpanID: sentry.SpanID{1}, Sampled: sentry.SampledTrue}, 1},
		{"unsampled parent", &sentry.Span{Name: "db.transaction", ParentSpanID: sentry.SpanID{1}, Sampled: sentry.SampledFalse}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sample(sentry.SamplingContext{Span: tt.span}))
		})
	}
}

func TestSpan_EndIsNilSafe(t *testing.T) {
	var s *Span
	assert.NotPanics(t, func() { s.End(errors.New("boom")) })
	assert.NotPanics(t, func() { (&Span{}).End(nil) })
}

func TestStartSpan_WithoutClient(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "db.transaction", SpanAttributes{Entity: "todo"})
	require.NotNil(t, span)
	assert.NotNil(t, sentry.SpanFromContext(ctx))
	assert.NotPanics(t, func() { span.End(nil) })
}

func TestHelpers_WithoutClient(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		CaptureError(ctx, errors.New("boom"))
		CaptureError(ctx, nil)
		AddBreadcrumb(ctx, "test", "message")
		SetUser(ctx, "1", "a@example.com")
	})
}
