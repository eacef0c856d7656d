package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"caretrack/internal/activity"
	"caretrack/internal/budget/models"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/platform/sentinel"
	"caretrack/pkg/requestcontext"
)

// CreateBudgetInput carries the inputs for opening a budget. One budget
// exists per (tenant, client, category).
type CreateBudgetInput struct {
	TenantID        id.TenantID
	ClientID        id.ClientID
	Category        string
	TotalAllocation decimal.Decimal
}

// CreateBudget opens a budget with zero spent. The insert and its audit entry
// commit together.
func (s *Service) CreateBudget(ctx context.Context, in CreateBudgetInput) (*models.Budget, error) {
	if in.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeNoTenantContext, "budget creation requires a tenant context")
	}

	now := requestcontext.Now(ctx)
	b, err := models.NewBudget(id.NewBudgetID(), in.TenantID, in.ClientID, in.Category, in.TotalAllocation, now)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, shardKey(in.TenantID, in.ClientID, in.Category), func(ctx context.Context, stores TxStores) error {
		if err := stores.Budgets.Create(ctx, b); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "budget already exists for this client and category")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create budget")
		}
		entry := activity.Entry{
			ID:           uuid.New(),
			TenantID:     in.TenantID,
			UserID:       actorID(ctx),
			Category:     activity.ActionBudgetCreated.Category(),
			Action:       activity.ActionBudgetCreated,
			ResourceType: "budget",
			ResourceID:   b.ID.String(),
			Detail:       b.Category + " allocation " + b.TotalAllocation.StringFixed(models.CurrencyPlaces),
			At:           now,
		}
		if err := stores.Activity.Append(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append activity entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "budget created",
		"tenant_id", in.TenantID.String(),
		"budget_id", b.ID.String(),
		"category", b.Category,
	)
	return b, nil
}

// ListBudgets returns the budgets for one client within the tenant.
func (s *Service) ListBudgets(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) ([]*models.Budget, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeNoTenantContext, "budget listing requires a tenant context")
	}
	out, err := s.stores.Budgets.ListByTenantAndClient(ctx, tenantID, clientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list budgets")
	}
	return out, nil
}

// GetBudget returns a single budget. Absence and tenant mismatch are
// indistinguishable.
func (s *Service) GetBudget(ctx context.Context, tenantID id.TenantID, budgetID id.BudgetID) (*models.Budget, error) {
	b, err := s.stores.Budgets.FindByTenantAndID(ctx, tenantID, budgetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "budget not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load budget")
	}
	return b, nil
}

// ListTransactions returns a budget's ledger entries in recording order.
func (s *Service) ListTransactions(ctx context.Context, tenantID id.TenantID, budgetID id.BudgetID) ([]*models.BudgetTransaction, error) {
	if _, err := s.GetBudget(ctx, tenantID, budgetID); err != nil {
		return nil, err
	}
	out, err := s.stores.Transactions.ListByBudget(ctx, tenantID, budgetID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ledger entries")
	}
	return out, nil
}

// BillingSummary returns per-tenant spend aggregates across all tenants. It
// is the only cross-tenant read in the system and requires the caller's
// identity to carry the cross-tenant capability.
func (s *Service) BillingSummary(ctx context.Context) ([]models.TenantSpend, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "billing summary requires an authenticated identity")
	}
	if !ident.CanCrossTenant() {
		return nil, dErrors.New(dErrors.CodeForbidden, "billing summary requires the cross-tenant capability")
	}
	out, err := s.stores.Budgets.ConsoleBillingSummary(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate billing summary")
	}
	return out, nil
}
