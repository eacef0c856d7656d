// Package service implements the budget ledger operations: deduction,
// adjustment and refund recording under a per-budget lock, plus the
// console billing aggregate.
package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"caretrack/internal/activity"
	"caretrack/internal/budget/metrics"
	"caretrack/internal/budget/models"
	id "caretrack/pkg/domain"
)

// BudgetStore is the tenant-scoped budget repository. GetForUpdate must only
// be called inside a ledger transaction; it serializes concurrent mutations
// of the same budget.
type BudgetStore interface {
	Create(ctx context.Context, b *models.Budget) error
	FindByTenantAndID(ctx context.Context, tenantID id.TenantID, budgetID id.BudgetID) (*models.Budget, error)
	GetForUpdate(ctx context.Context, tenantID id.TenantID, clientID id.ClientID, category string) (*models.Budget, error)
	UpdateDerived(ctx context.Context, tenantID id.TenantID, b *models.Budget) error
	ListByTenantAndClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) ([]*models.Budget, error)
	ConsoleBillingSummary(ctx context.Context) ([]models.TenantSpend, error)
}

// TransactionStore persists immutable ledger entries.
type TransactionStore interface {
	Insert(ctx context.Context, txn *models.BudgetTransaction) error
	FindBySourceEvent(ctx context.Context, tenantID id.TenantID, sourceEventID string) (*models.BudgetTransaction, error)
	ListByBudget(ctx context.Context, tenantID id.TenantID, budgetID id.BudgetID) ([]*models.BudgetTransaction, error)
}

// ActivityStore appends audit entries. Appends made inside a ledger
// transaction commit or roll back with it.
type ActivityStore interface {
	Append(ctx context.Context, entry activity.Entry) error
}

// RateMultiplier resolves a pay scale code to its rate multiplier for the
// tenant. The provisioning engine's pay-scale store implements this.
type RateMultiplier interface {
	MultiplierFor(ctx context.Context, tenantID id.TenantID, code string) (decimal.Decimal, error)
}

// TxStores bundles the stores a ledger transaction mutates. The postgres
// runner hands back the same store instances bound to an open transaction via
// the context; the memory runner hands back the plain stores under a shard
// lock.
type TxStores struct {
	Budgets      BudgetStore
	Transactions TransactionStore
	Activity     ActivityStore
}

// StoreTx provides the transactional boundary for ledger mutations. shardKey
// identifies the budget being mutated; implementations use it to serialize
// concurrent operations against the same budget.
type StoreTx interface {
	RunInTx(ctx context.Context, shardKey string, fn func(ctx context.Context, stores TxStores) error) error
}

// Service is the atomic deduction engine. It owns the recompute-from-inputs
// rule (hours times rate times multiplier, banker's rounding) and the in-lock
// idempotency check; handlers never touch amounts.
type Service struct {
	runner  StoreTx
	stores  TxStores
	rates   RateMultiplier
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(runner StoreTx, stores TxStores, rates RateMultiplier, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:  runner,
		stores:  stores,
		rates:   rates,
		logger:  logger,
		metrics: m,
	}
}

// shardKey identifies the budget a ledger mutation targets. All operations on
// the same (tenant, client, category) triple map to the same key, so the
// memory runner fully serializes them.
func shardKey(tenantID id.TenantID, clientID id.ClientID, category string) string {
	return tenantID.String() + "/" + clientID.String() + "/" + category
}
