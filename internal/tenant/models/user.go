package models

import (
	"time"

	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
)

// User is a staff member. A user belongs to exactly one tenant: TenantID is
// set at creation and never mutated. The role is drawn from the closed set in
// pkg/domain; authorization branches on the role's capability, not its name.
type User struct {
	ID        id.UserID   `json:"id"`
	TenantID  id.TenantID `json:"tenant_id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      id.Role     `json:"role"`
	Status    UserStatus  `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func NewUser(userID id.UserID, tenantID id.TenantID, email, name string, role id.Role, now time.Time) (*User, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user must belong to a tenant")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user email cannot be empty")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role")
	}
	return &User{
		ID:        userID,
		TenantID:  tenantID,
		Email:     email,
		Name:      name,
		Role:      role,
		Status:    UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
