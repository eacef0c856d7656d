package testutil

import (
	"context"
	"net/http"

	id "caretrack/pkg/domain"
	"caretrack/pkg/requestcontext"
)

// Identity builds a context carrying a resolved tenant identity, simulating
// what the tenant-context middleware does for authenticated requests.
func Identity(ctx context.Context, tenantID id.TenantID, userID id.UserID, role id.Role) context.Context {
	return requestcontext.WithIdentity(ctx, requestcontext.TenantIdentity{
		TenantID: tenantID,
		UserID:   userID,
		Role:     role,
	})
}

// WithIdentity attaches a resolved tenant identity to an HTTP request.
func WithIdentity(req *http.Request, tenantID id.TenantID, userID id.UserID, role id.Role) *http.Request {
	return req.WithContext(Identity(req.Context(), tenantID, userID, role))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
