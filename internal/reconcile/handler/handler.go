// Package handler exposes the reconciliation sweep as operational endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caretrack/internal/reconcile"
	"caretrack/internal/transport/http/shared"
	id "caretrack/pkg/domain"
)

// Reconciler runs sweeps.
type Reconciler interface {
	Run(ctx context.Context) (*reconcile.Summary, error)
	ReconcileTenant(ctx context.Context, tenantID id.TenantID) (*reconcile.Result, error)
}

// Handler handles reconciliation endpoints.
type Handler struct {
	reconciler Reconciler
	logger     *slog.Logger
}

func New(reconciler Reconciler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{reconciler: reconciler, logger: logger}
}

// Register mounts the sweep endpoints. The caller gates the router on the
// admin token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reconcile", h.handleRunSweep)
	r.Post("/reconcile/{tenantID}", h.handleReconcileTenant)
}

func (h *Handler) handleRunSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconciler.Run(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleReconcileTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.reconciler.ReconcileTenant(r.Context(), tenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}
