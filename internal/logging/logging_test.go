package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestStartSpanNestsUnderTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelDebug)
	ctx := WithLogger(context.Background(), logger)

	ctx, outer := StartSpan(ctx, "outer")
	traceID := stringValue(ctx, traceIDKey)
	outerID := stringValue(ctx, spanIDKey)
	require.NotEmpty(t, traceID)

	inner, span := StartSpan(ctx, "inner")
	assert.Equal(t, traceID, stringValue(inner, traceIDKey))
	assert.NotEqual(t, outerID, stringValue(inner, spanIDKey))

	span.End()
	outer.End()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "inner", record["span"])
	assert.Equal(t, outerID, record["parent_span_id"])
	assert.Equal(t, traceID, record["trace_id"])
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}
