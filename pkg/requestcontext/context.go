// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// This package defines context keys and getter/setter functions for values
// that are set by middleware but consumed by services. By keeping this package
// free of net/http dependencies, services can import only what they need.
//
// Usage in services (read values):
//
//	ident, ok := requestcontext.Identity(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithIdentity(ctx, ident)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "caretrack/pkg/domain"
)

// TenantIdentity is the immutable (tenantId, userId, role) triple resolved
// once per request. After the resolver attaches it, nothing mutates it for the
// lifetime of the request.
type TenantIdentity struct {
	TenantID id.TenantID
	UserID   id.UserID
	Role     id.Role
}

// CanCrossTenant reports whether this identity carries the cross-tenant
// capability. Callers branch on this, never on the role name.
func (t TenantIdentity) CanCrossTenant() bool {
	return t.Role.CanCrossTenant()
}

// Context key types (unexported for encapsulation).
type (
	identityKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyIdentity    = identityKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Identity retrieves the resolved tenant identity from the context. The second
// return is false when no resolver ran, which callers must treat as
// unauthenticated.
func Identity(ctx context.Context) (TenantIdentity, bool) {
	ident, ok := ctx.Value(ContextKeyIdentity).(TenantIdentity)
	return ident, ok
}

// WithIdentity injects a resolved tenant identity into the context.
func WithIdentity(ctx context.Context, ident TenantIdentity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, ident)
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

// Now retrieves the request-scoped time from context. Falls back to time.Now()
// for non-HTTP contexts (sweeps, CLI, tests that don't inject one).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests and for batch operations that need one consistent timestamp.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
