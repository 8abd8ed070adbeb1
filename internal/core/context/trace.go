// Package context carries request-scoped values (trace ids, the calling user)
// between the HTTP layer, domain services and the logger.
package context

import (
	"context"

	"github.com/google/uuid"
)

// Origins of a unit of work.
const (
	OriginHTTP   = "http"
	OriginWorker = "worker"
)

// TraceContext identifies one unit of work: an API request or a worker batch.
type TraceContext struct {
	TraceID   string
	RequestID string
	Origin    string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext starts a trace for work that has no inbound request,
// e.g. an outbox batch. Trace and request id are the same value.
func NewTraceContext(origin string) *TraceContext {
	id := uuid.NewString()
	return &TraceContext{TraceID: id, RequestID: id, Origin: origin}
}
