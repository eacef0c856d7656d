package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"caretrack/internal/activity"
	"caretrack/internal/budget/models"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/platform/sentinel"
	"caretrack/pkg/requestcontext"
)

var tracer = otel.Tracer("caretrack/budget")

// DeductionInput carries the client-supplied inputs for recording delivered
// service hours. The amount is never part of the input; the engine recomputes
// it from hours, rate and pay scale.
type DeductionInput struct {
	TenantID      id.TenantID
	ClientID      id.ClientID
	Category      string
	SourceEventID string
	Hours         decimal.Decimal
	Rate          decimal.Decimal
	RateCode      string
}

// AdjustmentInput carries a signed administrative correction or refund.
// Amount is always supplied positive; refunds are negated on recording.
type AdjustmentInput struct {
	TenantID      id.TenantID
	ClientID      id.ClientID
	Category      string
	SourceEventID string
	Amount        decimal.Decimal
}

// RecordDeduction atomically records one completed unit of service against a
// budget. Inside the per-budget lock it checks the (tenant, source event)
// idempotency key, recomputes the amount, inserts the ledger entry, updates
// the derived spent figure and appends the audit entry. Exceeding the
// allocation flags the budget and logs a warning; it never blocks recording.
//
// A duplicate source event returns CodeAlreadyRecorded. A missing budget
// returns CodeNotFound with nothing written. Lock-wait expiry returns
// CodeLockTimeout; the engine never retries on the caller's behalf.
func (s *Service) RecordDeduction(ctx context.Context, in DeductionInput) (*models.BudgetTransaction, error) {
	ctx, span := tracer.Start(ctx, "budget.RecordDeduction",
		trace.WithAttributes(attribute.String("tenant_id", in.TenantID.String())))
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveDeduction(start)

	if err := validateTarget(in.TenantID, in.ClientID, in.Category, in.SourceEventID); err != nil {
		return nil, err
	}
	if in.Hours.IsZero() || in.Hours.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "hours must be positive")
	}
	if in.Rate.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "rate cannot be negative")
	}

	multiplier := decimal.NewFromInt(1)
	if in.RateCode != "" {
		m, err := s.rates.MultiplierFor(ctx, in.TenantID, in.RateCode)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeValidation, "unknown pay scale code: "+in.RateCode)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve pay scale")
		}
		multiplier = m
	}

	var out *models.BudgetTransaction
	err := s.runner.RunInTx(ctx, shardKey(in.TenantID, in.ClientID, in.Category), func(ctx context.Context, stores TxStores) error {
		b, err := stores.Budgets.GetForUpdate(ctx, in.TenantID, in.ClientID, in.Category)
		if err != nil {
			return mapBudgetErr(err, s.metrics.IncrementLockTimeouts)
		}
		if err := s.checkNotRecorded(ctx, stores, in.TenantID, in.SourceEventID); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		actor := actorID(ctx)
		txn, err := models.NewDeduction(id.NewTransactionID(), b, in.SourceEventID, in.Hours, in.Rate, multiplier, actor, now)
		if err != nil {
			return err
		}
		crossedOver, err := s.applyEntry(ctx, stores, b, txn, activity.ActionDeductionRecorded, now)
		if err != nil {
			return err
		}
		if crossedOver {
			s.metrics.IncrementOverAllocated()
			s.logger.WarnContext(ctx, "budget over-allocated",
				slogBudget(b)...,
			)
		}
		out = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementDeductionsRecorded()
	s.logger.InfoContext(ctx, "deduction recorded",
		"tenant_id", in.TenantID.String(),
		"budget_id", out.BudgetID.String(),
		"source_event_id", in.SourceEventID,
		"amount", out.Amount.StringFixed(models.CurrencyPlaces),
	)
	return out, nil
}

// RecordAdjustment records a positive administrative correction against a
// budget, with the same locking and idempotency discipline as deductions.
func (s *Service) RecordAdjustment(ctx context.Context, in AdjustmentInput) (*models.BudgetTransaction, error) {
	ctx, span := tracer.Start(ctx, "budget.RecordAdjustment")
	defer span.End()

	if err := validateTarget(in.TenantID, in.ClientID, in.Category, in.SourceEventID); err != nil {
		return nil, err
	}

	var out *models.BudgetTransaction
	err := s.runner.RunInTx(ctx, shardKey(in.TenantID, in.ClientID, in.Category), func(ctx context.Context, stores TxStores) error {
		b, err := stores.Budgets.GetForUpdate(ctx, in.TenantID, in.ClientID, in.Category)
		if err != nil {
			return mapBudgetErr(err, s.metrics.IncrementLockTimeouts)
		}
		if err := s.checkNotRecorded(ctx, stores, in.TenantID, in.SourceEventID); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		txn, err := models.NewAdjustment(id.NewTransactionID(), b, in.SourceEventID, in.Amount, actorID(ctx), now)
		if err != nil {
			return err
		}
		crossedOver, err := s.applyEntry(ctx, stores, b, txn, activity.ActionAdjustmentRecorded, now)
		if err != nil {
			return err
		}
		if crossedOver {
			s.metrics.IncrementOverAllocated()
			s.logger.WarnContext(ctx, "budget over-allocated", slogBudget(b)...)
		}
		out = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementAdjustmentsRecorded()
	return out, nil
}

// RecordRefund records the explicit entry that decreases spent. A refund may
// not exceed what has been recorded as spent.
func (s *Service) RecordRefund(ctx context.Context, in AdjustmentInput) (*models.BudgetTransaction, error) {
	ctx, span := tracer.Start(ctx, "budget.RecordRefund")
	defer span.End()

	if err := validateTarget(in.TenantID, in.ClientID, in.Category, in.SourceEventID); err != nil {
		return nil, err
	}

	var out *models.BudgetTransaction
	err := s.runner.RunInTx(ctx, shardKey(in.TenantID, in.ClientID, in.Category), func(ctx context.Context, stores TxStores) error {
		b, err := stores.Budgets.GetForUpdate(ctx, in.TenantID, in.ClientID, in.Category)
		if err != nil {
			return mapBudgetErr(err, s.metrics.IncrementLockTimeouts)
		}
		if err := s.checkNotRecorded(ctx, stores, in.TenantID, in.SourceEventID); err != nil {
			return err
		}
		if models.Round(in.Amount).GreaterThan(b.CurrentSpent) {
			return dErrors.New(dErrors.CodeInvariantViolation, "refund exceeds recorded spend")
		}

		now := requestcontext.Now(ctx)
		txn, err := models.NewRefund(id.NewTransactionID(), b, in.SourceEventID, in.Amount, actorID(ctx), now)
		if err != nil {
			return err
		}
		if _, err := s.applyEntry(ctx, stores, b, txn, activity.ActionRefundRecorded, now); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementRefundsRecorded()
	return out, nil
}

// checkNotRecorded is the in-lock idempotency test. The unique index on
// (tenant_id, source_event_id) backs it up at insert time.
func (s *Service) checkNotRecorded(ctx context.Context, stores TxStores, tenantID id.TenantID, sourceEventID string) error {
	_, err := stores.Transactions.FindBySourceEvent(ctx, tenantID, sourceEventID)
	if err == nil {
		return dErrors.New(dErrors.CodeAlreadyRecorded, "source event already recorded")
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "idempotency lookup failed")
	}
	return nil
}

// applyEntry performs the shared tail of every ledger mutation: insert the
// entry, fold its amount into the derived spent figure, append the audit
// record. All three persist in the same transaction.
func (s *Service) applyEntry(ctx context.Context, stores TxStores, b *models.Budget, txn *models.BudgetTransaction, action activity.Action, now time.Time) (crossedOver bool, err error) {
	if err := stores.Transactions.Insert(ctx, txn); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return false, dErrors.New(dErrors.CodeAlreadyRecorded, "source event already recorded")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert ledger entry")
	}
	crossedOver = b.Apply(txn.Amount, now)
	if err := stores.Budgets.UpdateDerived(ctx, b.TenantID, b); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotFound, "budget not found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update budget")
	}
	entry := activity.Entry{
		ID:           uuid.New(),
		TenantID:     b.TenantID,
		UserID:       txn.CreatedBy,
		Category:     action.Category(),
		Action:       action,
		ResourceType: "budget_transaction",
		ResourceID:   txn.ID.String(),
		Detail:       string(txn.Type) + " " + txn.Amount.StringFixed(models.CurrencyPlaces) + " against " + b.Category,
		At:           now,
	}
	if err := stores.Activity.Append(ctx, entry); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append activity entry")
	}
	return crossedOver, nil
}

func validateTarget(tenantID id.TenantID, clientID id.ClientID, category, sourceEventID string) error {
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeNoTenantContext, "ledger operations require a tenant context")
	}
	if clientID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "client_id is required")
	}
	if category == "" {
		return dErrors.New(dErrors.CodeValidation, "category is required")
	}
	if sourceEventID == "" {
		return dErrors.New(dErrors.CodeValidation, "source_event_id is required")
	}
	return nil
}

// mapBudgetErr translates store sentinels from the budget lookup. Absence and
// tenant mismatch surface identically.
func mapBudgetErr(err error, onLockTimeout func()) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "budget not found")
	case errors.Is(err, sentinel.ErrLockTimeout):
		onLockTimeout()
		return dErrors.Wrap(err, dErrors.CodeLockTimeout, "timed out waiting for budget lock")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load budget")
	}
}

// actorID returns the resolved user, or the nil user ID for system-initiated
// operations that run without a request identity.
func actorID(ctx context.Context) id.UserID {
	if ident, ok := requestcontext.Identity(ctx); ok {
		return ident.UserID
	}
	return id.UserID{}
}

func slogBudget(b *models.Budget) []any {
	return []any{
		"tenant_id", b.TenantID.String(),
		"budget_id", b.ID.String(),
		"category", b.Category,
		"current_spent", b.CurrentSpent.StringFixed(models.CurrencyPlaces),
		"total_allocation", b.TotalAllocation.StringFixed(models.CurrencyPlaces),
	}
}
