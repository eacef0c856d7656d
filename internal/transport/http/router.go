// Package http assembles the HTTP surface: middleware chain, tenant-scoped
// routes, the console admin surface and the operational endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	budgethandler "caretrack/internal/budget/handler"
	"caretrack/internal/platform/middleware"
	reconcilehandler "caretrack/internal/reconcile/handler"
	tenanthandler "caretrack/internal/tenant/handler"
	"caretrack/internal/transport/http/shared"
)

// RouterConfig carries the wired handlers and the middleware dependencies.
type RouterConfig struct {
	Logger         *slog.Logger
	Resolver       middleware.ContextResolver
	AdminTokenHash string
	Tenants        *tenanthandler.Handler
	Budgets        *budgethandler.Handler
	Reconcile      *reconcilehandler.Handler
	HealthCheck    func(ctx context.Context) error
}

// NewRouter builds the chi router. Layout:
//
//	/healthz, /metrics        unauthenticated
//	/api/v1/...               tenant-scoped, resolver-gated
//	/api/v1/admin/...         console surface, capability-gated
//	/api/v1/admin/reconcile   operational, admin-token-gated
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(cfg.HealthCheck))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		// Tenant-scoped surface. Every request resolves a tenant identity
		// before any handler runs.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireTenantContext(cfg.Resolver, logger))
			cfg.Tenants.Register(r)
			cfg.Budgets.Register(r)
		})

		r.Route("/admin", func(r chi.Router) {
			// Console surface: resolved identity plus the cross-tenant
			// capability.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireTenantContext(cfg.Resolver, logger))
				r.Use(middleware.RequireConsoleCapability)
				cfg.Tenants.RegisterAdmin(r)
				cfg.Budgets.RegisterAdmin(r)
			})

			// Operational surface: static admin token, no user session. Used
			// by deploy tooling to trigger sweeps.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdminToken(cfg.AdminTokenHash, logger))
				cfg.Reconcile.Register(r)
			})
		})
	})

	return r
}

func handleHealth(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
