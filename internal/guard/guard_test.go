package guard

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrack/internal/activity"
	activitymemory "caretrack/internal/activity/store/memory"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/testutil"
)

type testPayload struct {
	tenantID id.TenantID
}

func (p *testPayload) PayloadTenant() id.TenantID  { return p.tenantID }
func (p *testPayload) StampTenant(tid id.TenantID) { p.tenantID = tid }

func newTestGuard() (*Guard, *activitymemory.Store) {
	store := activitymemory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, logger, nil), store
}

func TestEnforceRejectsWithoutIdentity(t *testing.T) {
	g, store := newTestGuard()

	err := g.Enforce(context.Background(), &testPayload{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoTenantContext))
	assert.Equal(t, 0, store.Len())
}

func TestEnforceStampsMissingTenant(t *testing.T) {
	g, _ := newTestGuard()
	tenantID := id.NewTenantID()
	ctx := testutil.Identity(context.Background(), tenantID, id.NewUserID(), id.RoleSupportWorker)

	p := &testPayload{}
	require.NoError(t, g.Enforce(ctx, p))
	assert.Equal(t, tenantID, p.tenantID, "payload stamped with the session tenant")
}

func TestEnforceAcceptsMatchingTenant(t *testing.T) {
	g, store := newTestGuard()
	tenantID := id.NewTenantID()
	ctx := testutil.Identity(context.Background(), tenantID, id.NewUserID(), id.RoleSupportWorker)

	require.NoError(t, g.Enforce(ctx, &testPayload{tenantID: tenantID}))
	assert.Equal(t, 0, store.Len())
}

func TestEnforceRejectsForeignTenant(t *testing.T) {
	g, store := newTestGuard()
	tenantID := id.NewTenantID()
	userID := id.NewUserID()
	foreign := id.NewTenantID()
	ctx := testutil.Identity(context.Background(), tenantID, userID, id.RoleAdmin)

	p := &testPayload{tenantID: foreign}
	err := g.Enforce(ctx, p)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBoundaryViolation))
	assert.Equal(t, foreign, p.tenantID, "rejected payload is never restamped")

	// The violation lands in the attacker's own tenant audit trail.
	entries, err := store.ListByTenant(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activity.CategorySecurity, entries[0].Category)
	assert.Equal(t, activity.ActionBoundaryViolation, entries[0].Action)
	assert.Equal(t, userID, entries[0].UserID)
	assert.Equal(t, foreign.String(), entries[0].ResourceID)
}

func TestEnforceAllowsCrossTenantCapability(t *testing.T) {
	g, store := newTestGuard()
	ctx := testutil.Identity(context.Background(), id.NewTenantID(), id.NewUserID(), id.RoleConsoleManager)

	require.NoError(t, g.Enforce(ctx, &testPayload{tenantID: id.NewTenantID()}))
	assert.Equal(t, 0, store.Len())
}

type failingActivityStore struct{}

func (failingActivityStore) Append(context.Context, activity.Entry) error {
	return assert.AnError
}

func TestEnforceRejectionStandsWhenAuditWriteFails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := New(failingActivityStore{}, logger, nil)
	ctx := testutil.Identity(context.Background(), id.NewTenantID(), id.NewUserID(), id.RoleAdmin)

	err := g.Enforce(ctx, &testPayload{tenantID: id.NewTenantID()})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBoundaryViolation))
}
