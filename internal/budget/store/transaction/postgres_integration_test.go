//go:build integration

package transaction_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"caretrack/internal/budget/models"
	budgetstore "caretrack/internal/budget/store/budget"
	"caretrack/internal/budget/store/transaction"
	tenantmodels "caretrack/internal/tenant/models"
	clientstore "caretrack/internal/tenant/store/client"
	tenantstore "caretrack/internal/tenant/store/tenant"
	userstore "caretrack/internal/tenant/store/user"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
	"caretrack/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *transaction.PostgresStore
	budgets  *budgetstore.PostgresStore
	tenants  *tenantstore.PostgresStore
	users    *userstore.PostgresStore
	clients  *clientstore.PostgresStore

	tenantID id.TenantID
	userID   id.UserID
	budget   *models.Budget
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = transaction.NewPostgres(s.postgres.DB)
	s.budgets = budgetstore.NewPostgres(s.postgres.DB)
	s.tenants = tenantstore.NewPostgres(s.postgres.DB)
	s.users = userstore.NewPostgres(s.postgres.DB)
	s.clients = clientstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"budget_transactions", "budgets", "activity_log",
		"tenant_pay_scales", "tenant_tax_brackets", "tenant_hour_allocations",
		"clients", "users", "tenants",
	)
	s.Require().NoError(err)

	s.tenantID, s.userID, s.budget = s.seedBudget("Ledger Care " + uuid.NewString())
}

// seedBudget satisfies the ledger table's foreign keys: tenant, user, client
// and the budget the entries hang off.
func (s *PostgresStoreSuite) seedBudget(tenantName string) (id.TenantID, id.UserID, *models.Budget) {
	ctx := context.Background()

	t, err := tenantmodels.NewTenant(id.NewTenantID(), tenantName, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.tenants.CreateIfNameAvailable(ctx, t))

	u, err := tenantmodels.NewUser(id.NewUserID(), t.ID, "worker@"+uuid.NewString()+".example", "Worker", id.RoleSupportWorker, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(ctx, u))

	c, err := tenantmodels.NewClient(id.NewClientID(), t.ID, "Riley P", "NDIS-0001", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.clients.Create(ctx, c))

	b, err := models.NewBudget(
		id.NewBudgetID(), t.ID, c.ID, "core_supports",
		decimal.RequireFromString("1000.00"), time.Now(),
	)
	s.Require().NoError(err)
	s.Require().NoError(s.budgets.Create(ctx, b))

	return t.ID, u.ID, b
}

func (s *PostgresStoreSuite) newDeduction(budget *models.Budget, userID id.UserID, sourceEventID string) *models.BudgetTransaction {
	txn, err := models.NewDeduction(
		id.NewTransactionID(), budget, sourceEventID,
		decimal.RequireFromString("2"),
		decimal.RequireFromString("50.00"),
		decimal.NewFromInt(1),
		userID, time.Now(),
	)
	s.Require().NoError(err)
	return txn
}

// TestConcurrentSourceEventIdempotency verifies the unique index on
// (tenant_id, source_event_id): of many concurrent inserts for the same
// source event, exactly one lands.
func (s *PostgresStoreSuite) TestConcurrentSourceEventIdempotency() {
	ctx := context.Background()
	const goroutines = 30

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			txn := s.newDeduction(s.budget, s.userID, "shift-contested")
			err := s.store.Insert(ctx, txn)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one insert should land")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should hit the idempotency backstop")

	listed, err := s.store.ListByBudget(ctx, s.tenantID, s.budget.ID)
	s.Require().NoError(err)
	s.Len(listed, 1)
}

// TestSourceEventScopedByTenant verifies the idempotency keyspace is
// per-tenant: the same external event id can appear under two tenants.
func (s *PostgresStoreSuite) TestSourceEventScopedByTenant() {
	ctx := context.Background()

	s.Require().NoError(s.store.Insert(ctx, s.newDeduction(s.budget, s.userID, "shift-shared")))

	otherTenant, otherUser, otherBudget := s.seedBudget("Other Care " + uuid.NewString())
	s.Require().NoError(s.store.Insert(ctx, s.newDeduction(otherBudget, otherUser, "shift-shared")))

	mine, err := s.store.FindBySourceEvent(ctx, s.tenantID, "shift-shared")
	s.Require().NoError(err)
	s.Equal(s.budget.ID, mine.BudgetID)

	theirs, err := s.store.FindBySourceEvent(ctx, otherTenant, "shift-shared")
	s.Require().NoError(err)
	s.Equal(otherBudget.ID, theirs.BudgetID)

	_, err = s.store.FindBySourceEvent(ctx, id.NewTenantID(), "shift-shared")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRoundTripPreservesAmounts() {
	ctx := context.Background()

	refund, err := models.NewRefund(
		id.NewTransactionID(), s.budget, "refund-1",
		decimal.RequireFromString("37.50"), s.userID, time.Now(),
	)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Insert(ctx, refund))

	found, err := s.store.FindBySourceEvent(ctx, s.tenantID, "refund-1")
	s.Require().NoError(err)
	s.Equal(models.TypeRefund, found.Type)
	s.True(found.Amount.Equal(decimal.RequireFromString("-37.50")),
		"refunds are stored negative, got %s", found.Amount)
	s.Equal(s.userID, found.CreatedBy)
}
