package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: row does not exist in the caller's tenant scope. Stores
//   deliberately return the same error for "does not exist" and "exists under
//   another tenant" so callers cannot distinguish the two.
// - ErrAlreadyUsed: a uniqueness constraint (tenant name, source event id)
//   was already consumed.
// - ErrLockTimeout: a row lock could not be acquired within the statement
//   timeout; the operation is retryable.
// - ErrInvalidState: entity in wrong state for the requested operation.
// - ErrUnavailable: backing service temporarily unavailable.
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrLockTimeout  = errors.New("lock timeout")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
