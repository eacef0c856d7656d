// Package activity defines the append-only audit record written for every
// mutating operation on tenant-scoped entities. Entries are write-once: the
// store interface has no update or delete.
package activity

import (
	"time"

	"github.com/google/uuid"

	id "caretrack/pkg/domain"
)

// Category classifies entries. Operational entries record ordinary mutations;
// security entries record probable tampering (boundary violations) and feed
// alerting.
type Category string

const (
	CategoryOperations Category = "operations"
	CategorySecurity   Category = "security"
)

// Action names a recorded operation.
type Action string

const (
	ActionTenantCreated      Action = "tenant_created"
	ActionTenantDeactivated  Action = "tenant_deactivated"
	ActionTenantReactivated  Action = "tenant_reactivated"
	ActionTenantProvisioned  Action = "tenant_provisioned"
	ActionTenantRepaired     Action = "tenant_repaired"
	ActionClientCreated      Action = "client_created"
	ActionClientUpdated      Action = "client_updated"
	ActionBudgetCreated      Action = "budget_created"
	ActionDeductionRecorded  Action = "deduction_recorded"
	ActionAdjustmentRecorded Action = "adjustment_recorded"
	ActionRefundRecorded     Action = "refund_recorded"
	ActionBoundaryViolation  Action = "tenant_boundary_violation"
)

var actionCategories = map[Action]Category{
	ActionBoundaryViolation: CategorySecurity,
}

// Category returns the category for the action. Unknown actions default to
// operations.
func (a Action) Category() Category {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Entry is one audit record. TenantID is always set; UserID may be nil for
// system-initiated operations (startup reconciliation).
type Entry struct {
	ID           uuid.UUID   `json:"id"`
	TenantID     id.TenantID `json:"tenant_id"`
	UserID       id.UserID   `json:"user_id"`
	Category     Category    `json:"category"`
	Action       Action      `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id"`
	Detail       string      `json:"detail,omitempty"`
	At           time.Time   `json:"at"`
}
