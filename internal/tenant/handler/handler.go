// Package handler exposes tenant administration and care recipient
// management over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caretrack/internal/guard"
	"caretrack/internal/tenant/models"
	"caretrack/internal/tenant/service"
	"caretrack/internal/transport/http/shared"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/requestcontext"
)

// Service defines the tenant operations the handler exposes.
type Service interface {
	CreateTenant(ctx context.Context, in service.CreateTenantInput) (*service.CreateTenantResult, error)
	GetTenant(ctx context.Context, tenantID id.TenantID) (*models.TenantDetails, error)
	ListTenants(ctx context.Context) ([]*models.Tenant, error)
	DeactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	CreateClient(ctx context.Context, in service.CreateClientInput) (*models.Client, error)
	GetClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error)
	ListClients(ctx context.Context, tenantID id.TenantID) ([]*models.Client, error)
	UpdateClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID, in service.UpdateClientInput) (*models.Client, error)
}

// Handler handles tenant and client endpoints.
type Handler struct {
	tenants Service
	guard   *guard.Guard
	logger  *slog.Logger
}

func New(tenants Service, g *guard.Guard, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{tenants: tenants, guard: g, logger: logger}
}

// RegisterAdmin mounts the console surface. The caller gates the router on
// the console capability.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/tenants", h.handleCreateTenant)
	r.Get("/tenants", h.handleListTenants)
	r.Get("/tenants/{tenantID}", h.handleGetTenant)
	r.Post("/tenants/{tenantID}/deactivate", h.handleDeactivateTenant)
	r.Post("/tenants/{tenantID}/reactivate", h.handleReactivateTenant)
}

// Register mounts the tenant-scoped client surface.
func (h *Handler) Register(r chi.Router) {
	r.Post("/clients", h.handleCreateClient)
	r.Get("/clients", h.handleListClients)
	r.Get("/clients/{clientID}", h.handleGetClient)
	r.Patch("/clients/{clientID}", h.handleUpdateClient)
}

type createTenantRequest struct {
	Name       string `json:"name"`
	AdminEmail string `json:"admin_email,omitempty"`
	AdminName  string `json:"admin_name,omitempty"`
}

func (h *Handler) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	result, err := h.tenants.CreateTenant(r.Context(), service.CreateTenantInput{
		Name:       req.Name,
		AdminEmail: req.AdminEmail,
		AdminName:  req.AdminName,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.ListTenants(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (h *Handler) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	details, err := h.tenants.GetTenant(r.Context(), tenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, details)
}

func (h *Handler) handleDeactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.tenants.DeactivateTenant)
}

func (h *Handler) handleReactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.tenants.ReactivateTenant)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.TenantID) (*models.Tenant, error)) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	tenant, err := fn(r.Context(), tenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, tenant)
}

// createClientRequest carries its target tenant so the guard can validate or
// stamp it before the service runs.
type createClientRequest struct {
	TenantID id.TenantID `json:"tenant_id,omitempty"`
	Name     string      `json:"name"`
	NDISRef  string      `json:"ndis_ref,omitempty"`
}

func (r *createClientRequest) PayloadTenant() id.TenantID { return r.TenantID }
func (r *createClientRequest) StampTenant(t id.TenantID)  { r.TenantID = t }

func (h *Handler) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if err := h.guard.Enforce(ctx, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	client, err := h.tenants.CreateClient(ctx, service.CreateClientInput{
		TenantID: req.TenantID,
		Name:     req.Name,
		NDISRef:  req.NDISRef,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, client)
}

func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeNoTenantContext, "no tenant context on request"))
		return
	}
	clients, err := h.tenants.ListClients(ctx, ident.TenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeNoTenantContext, "no tenant context on request"))
		return
	}
	clientID, err := id.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	client, err := h.tenants.GetClient(ctx, ident.TenantID, clientID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, client)
}

type updateClientRequest struct {
	Name    *string              `json:"name,omitempty"`
	NDISRef *string              `json:"ndis_ref,omitempty"`
	Status  *models.ClientStatus `json:"status,omitempty"`
}

func (h *Handler) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeNoTenantContext, "no tenant context on request"))
		return
	}
	clientID, err := id.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	client, err := h.tenants.UpdateClient(ctx, ident.TenantID, clientID, service.UpdateClientInput{
		Name:    req.Name,
		NDISRef: req.NDISRef,
		Status:  req.Status,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, client)
}
