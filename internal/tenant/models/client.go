package models

import (
	"time"

	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
)

// Client is a care recipient. Owned by exactly one tenant; its funding
// allowance lives in one or more budget rows keyed by (tenant, client,
// category).
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - TenantID is immutable after construction
//   - Status is either active or inactive; rows are never hard deleted
type Client struct {
	ID        id.ClientID  `json:"id"`
	TenantID  id.TenantID  `json:"tenant_id"`
	Name      string       `json:"name"`
	NDISRef   string       `json:"ndis_ref,omitempty"`
	Status    ClientStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func NewClient(clientID id.ClientID, tenantID id.TenantID, name, ndisRef string, now time.Time) (*Client, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name must be 128 characters or less")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client must belong to a tenant")
	}
	return &Client{
		ID:        clientID,
		TenantID:  tenantID,
		Name:      name,
		NDISRef:   ndisRef,
		Status:    ClientStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (c *Client) IsActive() bool {
	return c.Status == ClientStatusActive
}
