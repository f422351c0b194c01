// Package obscontext stores correlation identifiers on request contexts.
package obscontext

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	batchIDKey   ctxKey = "batch_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithBatchID tags logs emitted while a pipeline run owns the batch.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, batchIDKey, strings.TrimSpace(batchID))
}

func BatchIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(batchIDKey).(string)
	return value
}
