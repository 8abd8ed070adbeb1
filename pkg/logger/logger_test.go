package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appctx "invencare/internal/core/context"
)

func TestWithContextAddsTraceAndUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := &Logger{zap.New(core).Sugar()}

	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "tr-1", RequestID: "rq-1"})
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "user-7"})
	ctx = WithLogger(ctx, l)

	Info(ctx, "transaction recorded", "reference_number", "SAL-2024-00001")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "tr-1", fields["trace_id"])
		assert.Equal(t, "rq-1", fields["request_id"])
		assert.Equal(t, "user-7", fields["user_id"])
		assert.Equal(t, "SAL-2024-00001", fields["reference_number"])
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "not-a-level", OutputPaths: []string{"stdout"}})
	assert.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Desugar().Core().Enabled(zap.DebugLevel))
}

func TestSetDefaultReplacesPackageLogger(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	core, logs := observer.New(zap.InfoLevel)
	SetDefault(&Logger{zap.New(core).Sugar()})

	ctx := appctx.WithTrace(context.Background(), appctx.NewTraceContext(appctx.OriginWorker))
	Warn(ctx, "outbox batch failed", "count", 3)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "worker", fields["origin"])
		assert.Equal(t, fields["trace_id"], fields["request_id"])
		assert.EqualValues(t, 3, fields["count"])
	}
}

func TestWithContextWithoutValuesKeepsLogger(t *testing.T) {
	l := NewNop()
	assert.Same(t, l, l.WithContext(context.Background()))
}
