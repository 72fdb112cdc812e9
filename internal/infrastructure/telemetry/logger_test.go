package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level        string
		debugEnabled bool
		infoEnabled  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"warning", false, false},
		{"error", false, false},
		{"unknown", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(tt.level)
			require.NoError(t, err)
			defer logger.Sync()

			assert.Equal(t, tt.debugEnabled, logger.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, tt.infoEnabled, logger.Core().Enabled(zapcore.InfoLevel))
		})
	}
}

func TestLoggerWithTraceNoSpan(t *testing.T) {
	logger := zap.NewNop()
	assert.Same(t, logger, LoggerWithTrace(context.Background(), logger))
}

func TestLoggerWithTraceAddsSpanFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x02},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	LoggerWithTrace(ctx, logger).Info("correlated line")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, sc.TraceID().String(), fields["trace_id"])
	assert.Equal(t, sc.SpanID().String(), fields["span_id"])
	assert.Equal(t, true, fields["sampled"])
}
