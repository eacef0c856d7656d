package domain

import (
	dErrors "caretrack/pkg/domain-errors"
)

// Role is the closed set of staff roles. There is no free-form role string in
// the system; anything outside this set fails validation at the boundary.
type Role string

const (
	RoleSupportWorker  Role = "support_worker"
	RoleTeamLeader     Role = "team_leader"
	RoleCoordinator    Role = "coordinator"
	RoleAdmin          Role = "admin"
	RoleConsoleManager Role = "console_manager"
)

// Capability is what the guard and repositories branch on. Role names never
// appear in authorization checks directly; a typo'd role simply has no
// capability and stays tenant-scoped.
type Capability string

const (
	// CapTenantScopedOnly binds every read and write to the session's tenant.
	CapTenantScopedOnly Capability = "tenant_scoped_only"

	// CapCrossTenantRead permits the reserved cross-tenant aggregate reads
	// (console billing summaries) and exempts the caller from payload tenant
	// checks. Held only by the console manager role.
	CapCrossTenantRead Capability = "cross_tenant_read"
)

var roleCapabilities = map[Role]Capability{
	RoleSupportWorker:  CapTenantScopedOnly,
	RoleTeamLeader:     CapTenantScopedOnly,
	RoleCoordinator:    CapTenantScopedOnly,
	RoleAdmin:          CapTenantScopedOnly,
	RoleConsoleManager: CapCrossTenantRead,
}

// Capability returns the role's capability. Unknown roles default to
// tenant-scoped, which is the safe direction to fail.
func (r Role) Capability() Capability {
	if cap, ok := roleCapabilities[r]; ok {
		return cap
	}
	return CapTenantScopedOnly
}

// CanCrossTenant reports whether the role may read or stamp data outside the
// session's own tenant.
func (r Role) CanCrossTenant() bool {
	return r.Capability() == CapCrossTenantRead
}

func (r Role) IsValid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// ParseRole validates a role string from a trust boundary.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+s)
	}
	return r, nil
}
