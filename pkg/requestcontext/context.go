// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Values are typically set by the upstream request handler (or a batch entry point)
// and read by services. Keeping this package free of net/http lets the lifecycle
// service and the reconciliation jobs share it.
//
// Usage in services (read values):
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "roster/pkg/domain"
)

type (
	requesterKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyRequester   = requesterKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Requester retrieves the authenticated requester's identity account ID.
func Requester(ctx context.Context) id.AccountID {
	if v, ok := ctx.Value(ContextKeyRequester).(id.AccountID); ok {
		return v
	}
	return ""
}

// WithRequester injects the requester's identity account ID.
func WithRequester(ctx context.Context, requester id.AccountID) context.Context {
	return context.WithValue(ctx, ContextKeyRequester, requester)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that need deterministic metadata timestamps
//   - Batch runs that stamp every mutation with the run start
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
