package models

import (
	"github.com/shopspring/decimal"

	id "caretrack/pkg/domain"
)

// TenantSpend is one row of the console billing summary: per-tenant budget
// aggregates across all tenants. Produced only by the reserved cross-tenant
// repository read.
type TenantSpend struct {
	TenantID        id.TenantID     `json:"tenant_id"`
	Budgets         int             `json:"budgets"`
	TotalAllocation decimal.Decimal `json:"total_allocation"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	OverAllocated   int             `json:"over_allocated"`
}
