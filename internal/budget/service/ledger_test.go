package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	activitymemory "caretrack/internal/activity/store/memory"
	"caretrack/internal/budget/models"
	budgetstore "caretrack/internal/budget/store/budget"
	transactionstore "caretrack/internal/budget/store/transaction"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/platform/sentinel"
	"caretrack/pkg/testutil"
)

// =============================================================================
// Ledger Service Test Suite
// =============================================================================
// The deduction engine's locking, idempotency and rounding behavior is
// exercised here over the memory stores; the postgres path reuses the same
// service code behind a different transaction runner.

type stubRates struct {
	multipliers map[string]decimal.Decimal
}

func (s stubRates) MultiplierFor(_ context.Context, _ id.TenantID, code string) (decimal.Decimal, error) {
	m, ok := s.multipliers[code]
	if !ok {
		return decimal.Zero, sentinel.ErrNotFound
	}
	return m, nil
}

type LedgerSuite struct {
	suite.Suite
	budgets     *budgetstore.InMemory
	txns        *transactionstore.InMemory
	activityLog *activitymemory.Store
	service     *Service

	ctx      context.Context
	tenantID id.TenantID
	clientID id.ClientID
	budget   *models.Budget
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.budgets = budgetstore.NewInMemory()
	s.txns = transactionstore.NewInMemory()
	s.activityLog = activitymemory.New()

	stores := TxStores{
		Budgets:      s.budgets,
		Transactions: s.txns,
		Activity:     s.activityLog,
	}
	rates := stubRates{multipliers: map[string]decimal.Decimal{
		"saturday": decimal.RequireFromString("1.5"),
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(NewShardedTx(stores, 0), stores, rates, logger, nil)

	s.tenantID = id.NewTenantID()
	s.clientID = id.NewClientID()
	s.ctx = testutil.Identity(context.Background(), s.tenantID, id.NewUserID(), id.RoleCoordinator)

	var err error
	s.budget, err = s.service.CreateBudget(s.ctx, CreateBudgetInput{
		TenantID:        s.tenantID,
		ClientID:        s.clientID,
		Category:        "core_supports",
		TotalAllocation: decimal.RequireFromString("1000.00"),
	})
	s.Require().NoError(err)
}

func (s *LedgerSuite) deductionInput(event string) DeductionInput {
	return DeductionInput{
		TenantID:      s.tenantID,
		ClientID:      s.clientID,
		Category:      "core_supports",
		SourceEventID: event,
		Hours:         decimal.RequireFromString("2"),
		Rate:          decimal.RequireFromString("50.00"),
	}
}

func (s *LedgerSuite) currentSpent() decimal.Decimal {
	b, err := s.budgets.FindByTenantAndID(s.ctx, s.tenantID, s.budget.ID)
	s.Require().NoError(err)
	return b.CurrentSpent
}

// =============================================================================
// Deduction Tests
// =============================================================================

func (s *LedgerSuite) TestRecordDeduction() {
	s.Run("recomputes amount from hours rate and multiplier", func() {
		txn, err := s.service.RecordDeduction(s.ctx, s.deductionInput("evt-basic"))
		s.Require().NoError(err)
		s.Equal(models.TypeDeduction, txn.Type)
		s.True(decimal.RequireFromString("100.00").Equal(txn.Amount))
		s.True(decimal.RequireFromString("100.00").Equal(s.currentSpent()))
	})

	s.Run("applies pay scale multiplier", func() {
		in := s.deductionInput("evt-saturday")
		in.RateCode = "saturday"
		txn, err := s.service.RecordDeduction(s.ctx, in)
		s.Require().NoError(err)
		// 2h x 50.00 x 1.5
		s.True(decimal.RequireFromString("150.00").Equal(txn.Amount))
	})

	s.Run("unknown pay scale code rejected", func() {
		in := s.deductionInput("evt-unknown-code")
		in.RateCode = "triple_time"
		_, err := s.service.RecordDeduction(s.ctx, in)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("duplicate source event returns already recorded", func() {
		in := s.deductionInput("evt-dup")
		_, err := s.service.RecordDeduction(s.ctx, in)
		s.Require().NoError(err)
		spentAfterFirst := s.currentSpent()

		_, err = s.service.RecordDeduction(s.ctx, in)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRecorded))
		s.True(spentAfterFirst.Equal(s.currentSpent()), "retry must not double-deduct")
	})

	s.Run("missing budget writes nothing", func() {
		entriesBefore := s.activityLog.Len()
		in := s.deductionInput("evt-no-budget")
		in.Category = "transport"
		_, err := s.service.RecordDeduction(s.ctx, in)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(entriesBefore, s.activityLog.Len())
		_, err = s.txns.FindBySourceEvent(s.ctx, s.tenantID, "evt-no-budget")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("validation failures never reach the ledger", func() {
		in := s.deductionInput("evt-zero-hours")
		in.Hours = decimal.Zero
		_, err := s.service.RecordDeduction(s.ctx, in)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		in = s.deductionInput("evt-no-tenant")
		in.TenantID = id.TenantID{}
		_, err = s.service.RecordDeduction(s.ctx, in)
		s.True(dErrors.HasCode(err, dErrors.CodeNoTenantContext))
	})

	s.Run("appends one audit entry per recording", func() {
		before := s.activityLog.Len()
		_, err := s.service.RecordDeduction(s.ctx, s.deductionInput("evt-audited"))
		s.Require().NoError(err)
		s.Equal(before+1, s.activityLog.Len())
	})
}

func (s *LedgerSuite) TestOverAllocationFlagsWithoutBlocking() {
	in := s.deductionInput("evt-over-1")
	in.Hours = decimal.RequireFromString("11") // 11h x 50.00 = 550.00
	_, err := s.service.RecordDeduction(s.ctx, in)
	s.Require().NoError(err)

	in = s.deductionInput("evt-over-2")
	in.Hours = decimal.RequireFromString("10") // pushes spent to 1050.00
	_, err = s.service.RecordDeduction(s.ctx, in)
	s.Require().NoError(err, "crossing the allocation must not block recording")

	b, err := s.budgets.FindByTenantAndID(s.ctx, s.tenantID, s.budget.ID)
	s.Require().NoError(err)
	s.True(b.OverAllocated)
	s.True(decimal.RequireFromString("1050.00").Equal(b.CurrentSpent), "spent is never clamped")

	// Recording continues while over-allocated.
	_, err = s.service.RecordDeduction(s.ctx, s.deductionInput("evt-over-3"))
	s.Require().NoError(err)
}

// Concurrent deductions against one budget must serialize on the shard lock:
// no lost updates, one ledger entry per source event.
func (s *LedgerSuite) TestConcurrentDeductionsDoNotLoseUpdates() {
	const workers = 25

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		event := "evt-concurrent-" + strconv.Itoa(i)
		g.Go(func() error {
			in := s.deductionInput(event)
			in.Hours = decimal.RequireFromString("1")
			_, err := s.service.RecordDeduction(s.ctx, in)
			return err
		})
	}
	s.Require().NoError(g.Wait())

	// 25 x 1h x 50.00
	s.True(decimal.RequireFromString("1250.00").Equal(s.currentSpent()))

	txns, err := s.txns.ListByBudget(s.ctx, s.tenantID, s.budget.ID)
	s.Require().NoError(err)
	s.Len(txns, workers)
}

// =============================================================================
// Adjustment and Refund Tests
// =============================================================================

func (s *LedgerSuite) TestRecordAdjustment() {
	s.Run("increases spent by the supplied amount", func() {
		txn, err := s.service.RecordAdjustment(s.ctx, AdjustmentInput{
			TenantID:      s.tenantID,
			ClientID:      s.clientID,
			Category:      "core_supports",
			SourceEventID: "adj-1",
			Amount:        decimal.RequireFromString("75.50"),
		})
		s.Require().NoError(err)
		s.Equal(models.TypeAdjustment, txn.Type)
		s.True(decimal.RequireFromString("75.50").Equal(s.currentSpent()))
	})

	s.Run("rejects non-positive amounts", func() {
		_, err := s.service.RecordAdjustment(s.ctx, AdjustmentInput{
			TenantID:      s.tenantID,
			ClientID:      s.clientID,
			Category:      "core_supports",
			SourceEventID: "adj-negative",
			Amount:        decimal.RequireFromString("-10"),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *LedgerSuite) TestRecordRefund() {
	_, err := s.service.RecordDeduction(s.ctx, s.deductionInput("evt-refundable"))
	s.Require().NoError(err)

	s.Run("decreases spent", func() {
		txn, err := s.service.RecordRefund(s.ctx, AdjustmentInput{
			TenantID:      s.tenantID,
			ClientID:      s.clientID,
			Category:      "core_supports",
			SourceEventID: "refund-1",
			Amount:        decimal.RequireFromString("40.00"),
		})
		s.Require().NoError(err)
		s.Equal(models.TypeRefund, txn.Type)
		s.True(decimal.RequireFromString("-40.00").Equal(txn.Amount))
		s.True(decimal.RequireFromString("60.00").Equal(s.currentSpent()))
	})

	s.Run("may not exceed recorded spend", func() {
		_, err := s.service.RecordRefund(s.ctx, AdjustmentInput{
			TenantID:      s.tenantID,
			ClientID:      s.clientID,
			Category:      "core_supports",
			SourceEventID: "refund-too-big",
			Amount:        decimal.RequireFromString("5000.00"),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("shares the idempotency key space with deductions", func() {
		_, err := s.service.RecordRefund(s.ctx, AdjustmentInput{
			TenantID:      s.tenantID,
			ClientID:      s.clientID,
			Category:      "core_supports",
			SourceEventID: "evt-refundable",
			Amount:        decimal.RequireFromString("1.00"),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRecorded))
	})
}

// =============================================================================
// Budget CRUD Tests
// =============================================================================

func (s *LedgerSuite) TestCreateBudget() {
	s.Run("duplicate category conflicts", func() {
		_, err := s.service.CreateBudget(s.ctx, CreateBudgetInput{
			TenantID:        s.tenantID,
			ClientID:        s.clientID,
			Category:        "core_supports",
			TotalAllocation: decimal.RequireFromString("500.00"),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("second category for the same client is allowed", func() {
		b, err := s.service.CreateBudget(s.ctx, CreateBudgetInput{
			TenantID:        s.tenantID,
			ClientID:        s.clientID,
			Category:        "transport",
			TotalAllocation: decimal.RequireFromString("200.00"),
		})
		s.Require().NoError(err)
		s.True(b.CurrentSpent.IsZero())
	})
}

func (s *LedgerSuite) TestListTransactions() {
	s.Run("unknown budget is not found", func() {
		_, err := s.service.ListTransactions(s.ctx, s.tenantID, id.NewBudgetID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("returns entries in recording order", func() {
		for _, evt := range []string{"list-1", "list-2", "list-3"} {
			_, err := s.service.RecordDeduction(s.ctx, s.deductionInput(evt))
			s.Require().NoError(err)
		}
		txns, err := s.service.ListTransactions(s.ctx, s.tenantID, s.budget.ID)
		s.Require().NoError(err)
		s.Require().Len(txns, 3)
		s.Equal("list-1", txns[0].SourceEventID)
		s.Equal("list-3", txns[2].SourceEventID)
	})
}

// =============================================================================
// Billing Summary Tests
// =============================================================================

func (s *LedgerSuite) TestBillingSummary() {
	s.Run("requires an identity", func() {
		_, err := s.service.BillingSummary(context.Background())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	s.Run("tenant-scoped roles are refused", func() {
		_, err := s.service.BillingSummary(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("console manager sees per-tenant aggregates", func() {
		_, err := s.service.RecordDeduction(s.ctx, s.deductionInput("evt-billing"))
		s.Require().NoError(err)

		consoleCtx := testutil.Identity(context.Background(), id.NewTenantID(), id.NewUserID(), id.RoleConsoleManager)
		summary, err := s.service.BillingSummary(consoleCtx)
		s.Require().NoError(err)
		s.Require().Len(summary, 1)
		s.Equal(s.tenantID, summary[0].TenantID)
		s.True(decimal.RequireFromString("100.00").Equal(summary[0].TotalSpent))
	})
}
