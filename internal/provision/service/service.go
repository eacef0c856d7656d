// Package service implements the provisioning engine: the idempotent pair of
// operations that verify and repair a tenant's baseline configuration. There
// is no other way to seed baseline data.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"caretrack/internal/provision/metrics"
	"caretrack/internal/provision/models"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
)

// Store is the baseline configuration repository.
type Store interface {
	MissingCategories(ctx context.Context, tenantID id.TenantID) ([]string, error)
	InsertPayScales(ctx context.Context, scales []models.PayScale) error
	InsertTaxBrackets(ctx context.Context, brackets []models.TaxBracket) error
	InsertHourAllocations(ctx context.Context, allocations []models.HourAllocation) error
	FindPayScale(ctx context.Context, tenantID id.TenantID, code string) (*models.PayScale, error)
}

// Report is the outcome of a read-only baseline verification.
type Report struct {
	TenantID id.TenantID `json:"tenant_id"`
	Missing  []string    `json:"missing"`
	Complete bool        `json:"complete"`
}

type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(store Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, metrics: m}
}

// Verify reports which baseline categories the tenant is missing. It writes
// nothing.
func (s *Service) Verify(ctx context.Context, tenantID id.TenantID) (*Report, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	missing, err := s.store.MissingCategories(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify baseline")
	}
	return &Report{TenantID: tenantID, Missing: missing, Complete: len(missing) == 0}, nil
}

// EnsureBaseline seeds every missing baseline category for the tenant and
// returns what it seeded. Present categories are never touched, so a second
// run on a complete tenant writes nothing. Callers record the audit entry and
// run it inside their own transaction when they need atomicity with other
// writes; the stores join the ambient transaction from context.
func (s *Service) EnsureBaseline(ctx context.Context, tenantID id.TenantID) ([]string, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	missing, err := s.store.MissingCategories(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check baseline")
	}
	if len(missing) == 0 {
		return nil, nil
	}

	for _, category := range missing {
		if err := s.seed(ctx, tenantID, category); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed "+category)
		}
	}

	s.metrics.IncrementTenantsProvisioned()
	s.metrics.AddCategoriesSeeded(len(missing))
	s.logger.InfoContext(ctx, "baseline provisioned",
		"tenant_id", tenantID.String(),
		"categories", strings.Join(missing, ","),
	)
	return missing, nil
}

func (s *Service) seed(ctx context.Context, tenantID id.TenantID, category string) error {
	switch category {
	case models.CategoryPayScales:
		return s.store.InsertPayScales(ctx, models.DefaultPayScales(tenantID))
	case models.CategoryTaxBrackets:
		return s.store.InsertTaxBrackets(ctx, models.DefaultTaxBrackets(tenantID))
	case models.CategoryHourAllocations:
		return s.store.InsertHourAllocations(ctx, models.DefaultHourAllocations(tenantID))
	default:
		return dErrors.New(dErrors.CodeInternal, "unknown baseline category: "+category)
	}
}

// MultiplierFor resolves a pay scale code to its rate multiplier. The
// deduction engine calls this before entering the budget lock.
func (s *Service) MultiplierFor(ctx context.Context, tenantID id.TenantID, code string) (decimal.Decimal, error) {
	sc, err := s.store.FindPayScale(ctx, tenantID, code)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return sc.Multiplier, nil
}
