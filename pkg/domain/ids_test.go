package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "caretrack/pkg/domain-errors"
)

func TestParseUUIDInvariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseTenantID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseTenantID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseTenantID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		u := uuid.New()
		got, err := ParseTenantID(u.String())
		require.NoError(t, err)
		assert.Equal(t, TenantID(u), got)
	})
}

// Hostile inputs must fail at the boundary with a validation code, never
// reach a store.
func TestParseIDRejectsHostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE tenants;--", true},
		{"path traversal", "../../../etc/passwd", true},
		{"null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"oversized input", strings.Repeat("a", 1000), true},
		{"whitespace only", "   ", true},
		{"uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"lowercase valid UUID", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBudgetID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// All ID types share parseUUID; a divergence here would mean one boundary
// validates more loosely than the rest.
func TestAllIDTypesParseConsistently(t *testing.T) {
	valid := uuid.New().String()
	invalid := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errTenant := ParseTenantID(valid)
		_, errUser := ParseUserID(valid)
		_, errClient := ParseClientID(valid)
		_, errBudget := ParseBudgetID(valid)
		_, errTxn := ParseTransactionID(valid)
		_, errSession := ParseSessionID(valid)

		require.NoError(t, errTenant)
		require.NoError(t, errUser)
		require.NoError(t, errClient)
		require.NoError(t, errBudget)
		require.NoError(t, errTxn)
		require.NoError(t, errSession)
	})

	for _, input := range invalid {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errTenant := ParseTenantID(input)
			_, errUser := ParseUserID(input)
			_, errClient := ParseClientID(input)
			_, errBudget := ParseBudgetID(input)
			_, errTxn := ParseTransactionID(input)
			_, errSession := ParseSessionID(input)

			require.Error(t, errTenant)
			require.Error(t, errUser)
			require.Error(t, errClient)
			require.Error(t, errBudget)
			require.Error(t, errTxn)
			require.Error(t, errSession)
		})
	}
}

func TestIDMarshalTextRoundTrip(t *testing.T) {
	orig := NewClientID()
	b, err := orig.MarshalText()
	require.NoError(t, err)

	var parsed ClientID
	require.NoError(t, parsed.UnmarshalText(b))
	assert.Equal(t, orig, parsed)
}

func TestRoleCapabilities(t *testing.T) {
	assert.False(t, RoleSupportWorker.CanCrossTenant())
	assert.False(t, RoleAdmin.CanCrossTenant())
	assert.True(t, RoleConsoleManager.CanCrossTenant())

	// Unknown roles fail closed to tenant-scoped.
	assert.False(t, Role("superuser").CanCrossTenant())
	assert.Equal(t, CapTenantScopedOnly, Role("superuser").Capability())

	_, err := ParseRole("superuser")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	r, err := ParseRole("coordinator")
	require.NoError(t, err)
	assert.Equal(t, RoleCoordinator, r)
}
