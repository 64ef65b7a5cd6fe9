// Package ctxkeys carries request-scoped identifiers through context.
package ctxkeys

import "context"

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	queryIDKey contextKey = "query_id"
)

// WithTraceID attaches the request trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the request trace ID, if set.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithQueryID attaches the pipeline run ID.
func WithQueryID(ctx context.Context, queryID string) context.Context {
	return context.WithValue(ctx, queryIDKey, queryID)
}

// QueryID returns the pipeline run ID, if set.
func QueryID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(queryIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
