package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
)

// TransactionType is the closed set of ledger entry kinds.
type TransactionType string

const (
	// TypeDeduction records delivered service hours against the allowance.
	TypeDeduction TransactionType = "deduction"
	// TypeAdjustment is a signed administrative correction.
	TypeAdjustment TransactionType = "adjustment"
	// TypeRefund is the only path by which spent decreases.
	TypeRefund TransactionType = "refund"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TypeDeduction, TypeAdjustment, TypeRefund:
		return true
	}
	return false
}

// BudgetTransaction is an immutable ledger entry. Created exactly once per
// source event: SourceEventID is the idempotency key, unique per tenant.
// TenantID is a denormalized copy of the budget's tenant and is enforced equal
// on insert.
type BudgetTransaction struct {
	ID            id.TransactionID `json:"id"`
	TenantID      id.TenantID      `json:"tenant_id"`
	BudgetID      id.BudgetID      `json:"budget_id"`
	SourceEventID string           `json:"source_event_id"`
	Type          TransactionType  `json:"type"`
	Amount        decimal.Decimal  `json:"amount"`
	Hours         decimal.Decimal  `json:"hours"`
	Rate          decimal.Decimal  `json:"rate"`
	Multiplier    decimal.Decimal  `json:"multiplier"`
	CreatedBy     id.UserID        `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ComputeDeduction recomputes a deduction amount from first principles:
// hours × rate × multiplier, banker's-rounded to 2 decimal places. The
// calculation is deterministic; the engine never trusts a client-supplied
// amount.
func ComputeDeduction(hours, rate, multiplier decimal.Decimal) decimal.Decimal {
	return Round(hours.Mul(rate).Mul(multiplier))
}

// NewDeduction builds the ledger entry for a completed unit of service.
func NewDeduction(
	txnID id.TransactionID,
	budget *Budget,
	sourceEventID string,
	hours, rate, multiplier decimal.Decimal,
	createdBy id.UserID,
	now time.Time,
) (*BudgetTransaction, error) {
	if sourceEventID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "source event id cannot be empty")
	}
	if hours.IsNegative() || hours.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "hours must be positive")
	}
	if rate.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rate cannot be negative")
	}
	if multiplier.IsNegative() || multiplier.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "multiplier must be positive")
	}
	return &BudgetTransaction{
		ID:            txnID,
		TenantID:      budget.TenantID,
		BudgetID:      budget.ID,
		SourceEventID: sourceEventID,
		Type:          TypeDeduction,
		Amount:        ComputeDeduction(hours, rate, multiplier),
		Hours:         hours,
		Rate:          rate,
		Multiplier:    multiplier,
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}, nil
}

// NewAdjustment builds a signed administrative correction. A negative amount
// is modeled as a refund instead; adjustments only increase spent.
func NewAdjustment(
	txnID id.TransactionID,
	budget *Budget,
	sourceEventID string,
	amount decimal.Decimal,
	createdBy id.UserID,
	now time.Time,
) (*BudgetTransaction, error) {
	if sourceEventID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "source event id cannot be empty")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "adjustment amount must be positive")
	}
	return &BudgetTransaction{
		ID:            txnID,
		TenantID:      budget.TenantID,
		BudgetID:      budget.ID,
		SourceEventID: sourceEventID,
		Type:          TypeAdjustment,
		Amount:        Round(amount),
		Multiplier:    decimal.NewFromInt(1),
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}, nil
}

// NewRefund builds the explicit signed entry that decreases spent. Amount is
// supplied positive and recorded negative.
func NewRefund(
	txnID id.TransactionID,
	budget *Budget,
	sourceEventID string,
	amount decimal.Decimal,
	createdBy id.UserID,
	now time.Time,
) (*BudgetTransaction, error) {
	if sourceEventID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "source event id cannot be empty")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "refund amount must be positive")
	}
	return &BudgetTransaction{
		ID:            txnID,
		TenantID:      budget.TenantID,
		BudgetID:      budget.ID,
		SourceEventID: sourceEventID,
		Type:          TypeRefund,
		Amount:        Round(amount).Neg(),
		Multiplier:    decimal.NewFromInt(1),
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}, nil
}
