package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
)

// Money precision: all amounts are decimals carried at 2 decimal places.
// Floating point is never used for currency.
const CurrencyPlaces = 2

// Round applies the ledger's single rounding rule: banker's rounding
// (round-half-to-even) at 2 decimal places. Every monetary computation in the
// ledger goes through this function so rounding stays deterministic.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(CurrencyPlaces)
}

// Budget is a funding allowance for one (tenant, client, category).
//
// Invariants:
//   - CurrentSpent equals the sum of the amounts of its transactions
//   - CurrentSpent decreases only via an explicit refund transaction
//   - exceeding TotalAllocation flags the budget as over-allocated; it is
//     never silently clamped and never hard-blocks service recording
//   - TenantID and ClientID are immutable after construction
type Budget struct {
	ID              id.BudgetID     `json:"id"`
	TenantID        id.TenantID     `json:"tenant_id"`
	ClientID        id.ClientID     `json:"client_id"`
	Category        string          `json:"category"`
	TotalAllocation decimal.Decimal `json:"total_allocation"`
	CurrentSpent    decimal.Decimal `json:"current_spent"`
	OverAllocated   bool            `json:"over_allocated"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func NewBudget(
	budgetID id.BudgetID,
	tenantID id.TenantID,
	clientID id.ClientID,
	category string,
	totalAllocation decimal.Decimal,
	now time.Time,
) (*Budget, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "budget must belong to a tenant")
	}
	if clientID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "budget must belong to a client")
	}
	if category == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "budget category cannot be empty")
	}
	if totalAllocation.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "budget allocation cannot be negative")
	}
	return &Budget{
		ID:              budgetID,
		TenantID:        tenantID,
		ClientID:        clientID,
		Category:        category,
		TotalAllocation: Round(totalAllocation),
		CurrentSpent:    decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Remaining returns the unspent allocation. Negative when over-allocated.
func (b *Budget) Remaining() decimal.Decimal {
	return b.TotalAllocation.Sub(b.CurrentSpent)
}

// Apply adds a signed transaction amount to the derived spent figure and
// re-evaluates the over-allocation flag. It returns true when this
// application pushed the budget over its allocation, so callers can surface
// the warning exactly once.
func (b *Budget) Apply(amount decimal.Decimal, now time.Time) (crossedOver bool) {
	wasOver := b.CurrentSpent.GreaterThan(b.TotalAllocation)
	b.CurrentSpent = Round(b.CurrentSpent.Add(amount))
	b.UpdatedAt = now
	isOver := b.CurrentSpent.GreaterThan(b.TotalAllocation)
	b.OverAllocated = isOver
	return isOver && !wasOver
}
