// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; registry services read them. Keeping the
// package free of net/http lets services stay transport-agnostic, and lets
// tests inject a fixed request time for deterministic expiry checks.
package requestcontext

import (
	"context"
	"time"

	id "portrait/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	callerKey         struct{}
	requestIDKey      struct{}
	requestTimeKey    struct{}
	clientPlatformKey struct{}
)

// WithCaller injects the authenticated caller address into a context.
func WithCaller(ctx context.Context, caller id.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Caller returns the authenticated caller address, or the zero address when
// no caller was established.
func Caller(ctx context.Context) id.Address {
	if caller, ok := ctx.Value(callerKey{}).(id.Address); ok {
		return caller
	}
	return id.ZeroAddress
}

// WithRequestID injects a correlation ID into a context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation ID, or "" when absent.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}

// WithTime pins the request time. Middleware sets this once per request so
// every expiry comparison within one operation observes the same instant;
// tests use it to freeze the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithClientPlatform records the requesting client's platform description
// (parsed from the User-Agent header) for event enrichment.
func WithClientPlatform(ctx context.Context, platform string) context.Context {
	return context.WithValue(ctx, clientPlatformKey{}, platform)
}

// ClientPlatform returns the recorded client platform, or "" when absent.
func ClientPlatform(ctx context.Context) string {
	if platform, ok := ctx.Value(clientPlatformKey{}).(string); ok {
		return platform
	}
	return ""
}
