package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"caretrack/internal/transport/http/shared"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/requestcontext"
)

// ContextResolver builds the request's tenant identity from a bearer token.
type ContextResolver interface {
	ResolveContext(ctx context.Context, token string) (requestcontext.TenantIdentity, error)
}

// RequireTenantContext resolves the session token into a tenant identity and
// attaches it to the context. Requests that cannot resolve are rejected here,
// before any tenant-scoped handler runs.
func RequireTenantContext(resolver ContextResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ident, err := resolver.ResolveContext(ctx, bearerToken(r))
			if err != nil {
				logger.WarnContext(ctx, "tenant context resolution failed",
					"path", r.URL.Path,
					"request_id", GetRequestID(ctx),
					"error", err.Error(),
				)
				shared.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithIdentity(ctx, ident)))
		})
	}
}

// RequireConsoleCapability gates admin routes on the cross-tenant capability.
// It must run after RequireTenantContext.
func RequireConsoleCapability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := requestcontext.Identity(r.Context())
		if !ok {
			shared.WriteError(w, dErrors.New(dErrors.CodeNoTenantContext, "no tenant context on request"))
			return
		}
		if !ident.CanCrossTenant() {
			shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "console capability required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminToken gates operational endpoints (reconciliation) on a static
// admin token compared against its bcrypt hash from config. Used for routes
// that must work without a user session, such as startup tooling.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin endpoints disabled"))
				return
			}
			token := bearerToken(r)
			if token == "" {
				shared.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "missing admin token"))
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
				logger.WarnContext(r.Context(), "admin token rejected",
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the Bearer credential from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}
