// Package domain holds the typed identifiers and closed enums shared across
// caretrack. IDs are distinct types over uuid.UUID so a TenantID can never be
// passed where a BudgetID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "caretrack/pkg/domain-errors"
)

type (
	// TenantID identifies an isolated customer organization. It is the unit of
	// data partitioning: every tenant-owned row carries one.
	TenantID uuid.UUID

	// UserID identifies a staff user. A user belongs to exactly one tenant.
	UserID uuid.UUID

	// ClientID identifies a care recipient within a tenant.
	ClientID uuid.UUID

	// BudgetID identifies a funding budget for a (tenant, client, category).
	BudgetID uuid.UUID

	// TransactionID identifies an immutable ledger entry.
	TransactionID uuid.UUID

	// SessionID identifies an authenticated session.
	SessionID uuid.UUID
)

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s)
	return TenantID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

func ParseClientID(s string) (ClientID, error) {
	u, err := parseUUID(s)
	return ClientID(u), err
}

func ParseBudgetID(s string) (BudgetID, error) {
	u, err := parseUUID(s)
	return BudgetID(u), err
}

func ParseTransactionID(s string) (TransactionID, error) {
	u, err := parseUUID(s)
	return TransactionID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	return SessionID(u), err
}

func (id TenantID) String() string      { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id ClientID) String() string      { return uuid.UUID(id).String() }
func (id BudgetID) String() string      { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string     { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id BudgetID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func NewTenantID() TenantID           { return TenantID(uuid.New()) }
func NewUserID() UserID               { return UserID(uuid.New()) }
func NewClientID() ClientID           { return ClientID(uuid.New()) }
func NewBudgetID() BudgetID           { return BudgetID(uuid.New()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }
func NewSessionID() SessionID         { return SessionID(uuid.New()) }

// MarshalText implementations keep the typed IDs JSON-friendly as plain UUID
// strings rather than byte arrays.
func (id TenantID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id ClientID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id BudgetID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id TransactionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id SessionID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = TenantID(u)
	return nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id *ClientID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ClientID(u)
	return nil
}

func (id *BudgetID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = BudgetID(u)
	return nil
}

func (id *TransactionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = TransactionID(u)
	return nil
}

func (id *SessionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = SessionID(u)
	return nil
}
