// Package handler exposes the budget ledger over HTTP. Every mutating
// request passes the boundary guard before it reaches the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"caretrack/internal/budget/models"
	"caretrack/internal/budget/service"
	"caretrack/internal/guard"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/requestcontext"
)

// Service defines the ledger operations the handler exposes.
type Service interface {
	CreateBudget(ctx context.Context, in service.CreateBudgetInput) (*models.Budget, error)
	ListBudgets(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) ([]*models.Budget, error)
	GetBudget(ctx context.Context, tenantID id.TenantID, budgetID id.BudgetID) (*models.Budget, error)
	ListTransactions(ctx context.Context, tenantID id.TenantID, budgetID id.BudgetID) ([]*models.BudgetTransaction, error)
	RecordDeduction(ctx context.Context, in service.DeductionInput) (*models.BudgetTransaction, error)
	RecordAdjustment(ctx context.Context, in service.AdjustmentInput) (*models.BudgetTransaction, error)
	RecordRefund(ctx context.Context, in service.AdjustmentInput) (*models.BudgetTransaction, error)
	BillingSummary(ctx context.Context) ([]models.TenantSpend, error)
}

// Handler handles budget and ledger endpoints.
type Handler struct {
	budgets Service
	guard   *guard.Guard
	logger  *slog.Logger
}

func New(budgets Service, g *guard.Guard, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{budgets: budgets, guard: g, logger: logger}
}

// Register mounts the budget routes. The caller's router already carries the
// resolver middleware, so every request here has a tenant identity.
func (h *Handler) Register(r chi.Router) {
	r.Post("/budgets", h.handleCreateBudget)
	r.Get("/budgets", h.handleListBudgets)
	r.Get("/budgets/{budgetID}", h.handleGetBudget)
	r.Get("/budgets/{budgetID}/transactions", h.handleListTransactions)
	r.Post("/budgets/deductions", h.handleRecordDeduction)
	r.Post("/budgets/adjustments", h.handleRecordAdjustment)
	r.Post("/budgets/refunds", h.handleRecordRefund)
}

// RegisterAdmin mounts the console billing surface. The caller gates the
// router on the console capability; the service re-checks it.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/billing/summary", h.handleBillingSummary)
}

func (h *Handler) handleBillingSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.budgets.BillingSummary(r.Context())
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": summary})
}

// createBudgetRequest carries its target tenant so the guard can validate or
// stamp it before the service runs.
type createBudgetRequest struct {
	TenantID        id.TenantID     `json:"tenant_id,omitempty"`
	ClientID        id.ClientID     `json:"client_id"`
	Category        string          `json:"category"`
	TotalAllocation decimal.Decimal `json:"total_allocation"`
}

func (r *createBudgetRequest) PayloadTenant() id.TenantID { return r.TenantID }
func (r *createBudgetRequest) StampTenant(t id.TenantID)  { r.TenantID = t }

type ledgerEntryRequest struct {
	TenantID      id.TenantID     `json:"tenant_id,omitempty"`
	ClientID      id.ClientID     `json:"client_id"`
	Category      string          `json:"category"`
	SourceEventID string          `json:"source_event_id"`
	Hours         decimal.Decimal `json:"hours"`
	Rate          decimal.Decimal `json:"rate"`
	RateCode      string          `json:"rate_code,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

func (r *ledgerEntryRequest) PayloadTenant() id.TenantID { return r.TenantID }
func (r *ledgerEntryRequest) StampTenant(t id.TenantID)  { r.TenantID = t }

func (h *Handler) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, h.logger, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if err := h.guard.Enforce(ctx, &req); err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	b, err := h.budgets.CreateBudget(ctx, service.CreateBudgetInput{
		TenantID:        req.TenantID,
		ClientID:        req.ClientID,
		Category:        req.Category,
		TotalAllocation: req.TotalAllocation,
	})
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		writeError(ctx, w, h.logger, dErrors.New(dErrors.CodeNoTenantContext, "no tenant context on request"))
		return
	}
	clientID, err := id.ParseClientID(r.URL.Query().Get("client_id"))
	if err != nil {
		writeError(ctx, w, h.logger, dErrors.New(dErrors.CodeValidation, "client_id query parameter is required"))
		return
	}
	budgets, err := h.budgets.ListBudgets(ctx, ident.TenantID, clientID)
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": budgets})
}

func (h *Handler) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		writeError(ctx, w, h.logger, dErrors.New(dErrors.CodeNoTenantContext, "no tenant context on request"))
		return
	}
	budgetID, err := id.ParseBudgetID(chi.URLParam(r, "budgetID"))
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	b, err := h.budgets.GetBudget(ctx, ident.TenantID, budgetID)
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		writeError(ctx, w, h.logger, dErrors.New(dErrors.CodeNoTenantContext, "no tenant context on request"))
		return
	}
	budgetID, err := id.ParseBudgetID(chi.URLParam(r, "budgetID"))
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	txns, err := h.budgets.ListTransactions(ctx, ident.TenantID, budgetID)
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

func (h *Handler) handleRecordDeduction(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLedgerRequest(w, r)
	if !ok {
		return
	}
	txn, err := h.budgets.RecordDeduction(r.Context(), service.DeductionInput{
		TenantID:      req.TenantID,
		ClientID:      req.ClientID,
		Category:      req.Category,
		SourceEventID: req.SourceEventID,
		Hours:         req.Hours,
		Rate:          req.Rate,
		RateCode:      req.RateCode,
	})
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (h *Handler) handleRecordAdjustment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLedgerRequest(w, r)
	if !ok {
		return
	}
	txn, err := h.budgets.RecordAdjustment(r.Context(), adjustmentInput(req))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (h *Handler) handleRecordRefund(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLedgerRequest(w, r)
	if !ok {
		return
	}
	txn, err := h.budgets.RecordRefund(r.Context(), adjustmentInput(req))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// decodeLedgerRequest decodes a ledger mutation body and runs it through the
// boundary guard.
func (h *Handler) decodeLedgerRequest(w http.ResponseWriter, r *http.Request) (*ledgerEntryRequest, bool) {
	ctx := r.Context()
	var req ledgerEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, h.logger, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return nil, false
	}
	if err := h.guard.Enforce(ctx, &req); err != nil {
		writeError(ctx, w, h.logger, err)
		return nil, false
	}
	return &req, true
}

func adjustmentInput(req *ledgerEntryRequest) service.AdjustmentInput {
	return service.AdjustmentInput{
		TenantID:      req.TenantID,
		ClientID:      req.ClientID,
		Category:      req.Category,
		SourceEventID: req.SourceEventID,
		Amount:        req.Amount,
	}
}
