// Package postgres persists baseline configuration. Writes join an ambient
// transaction from context, which is how tenant creation and provisioning
// commit atomically.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"caretrack/internal/provision/models"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
	txcontext "caretrack/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// MissingCategories reports which baseline categories have no rows for the
// tenant, in seeding order.
func (s *Store) MissingCategories(ctx context.Context, tenantID id.TenantID) ([]string, error) {
	const query = `
		SELECT
			EXISTS (SELECT 1 FROM tenant_pay_scales WHERE tenant_id = $1),
			EXISTS (SELECT 1 FROM tenant_tax_brackets WHERE tenant_id = $1),
			EXISTS (SELECT 1 FROM tenant_hour_allocations WHERE tenant_id = $1)
	`
	var hasScales, hasBrackets, hasAllocations bool
	if err := s.q(ctx).QueryRowContext(ctx, query, tenantID.String()).Scan(&hasScales, &hasBrackets, &hasAllocations); err != nil {
		return nil, fmt.Errorf("check baseline categories: %w", err)
	}
	var missing []string
	if !hasScales {
		missing = append(missing, models.CategoryPayScales)
	}
	if !hasBrackets {
		missing = append(missing, models.CategoryTaxBrackets)
	}
	if !hasAllocations {
		missing = append(missing, models.CategoryHourAllocations)
	}
	return missing, nil
}

func (s *Store) InsertPayScales(ctx context.Context, scales []models.PayScale) error {
	const query = `
		INSERT INTO tenant_pay_scales (tenant_id, code, base_rate, multiplier)
		VALUES ($1, $2, $3, $4)
	`
	for _, sc := range scales {
		_, err := s.q(ctx).ExecContext(ctx, query,
			sc.TenantID.String(), sc.Code, sc.BaseRate.String(), sc.Multiplier.String())
		if err != nil {
			return fmt.Errorf("insert pay scale %s: %w", sc.Code, err)
		}
	}
	return nil
}

func (s *Store) InsertTaxBrackets(ctx context.Context, brackets []models.TaxBracket) error {
	const query = `
		INSERT INTO tenant_tax_brackets (tenant_id, ordinal, threshold, rate)
		VALUES ($1, $2, $3, $4)
	`
	for _, tb := range brackets {
		_, err := s.q(ctx).ExecContext(ctx, query,
			tb.TenantID.String(), tb.Ordinal, tb.Threshold.String(), tb.Rate.String())
		if err != nil {
			return fmt.Errorf("insert tax bracket %d: %w", tb.Ordinal, err)
		}
	}
	return nil
}

func (s *Store) InsertHourAllocations(ctx context.Context, allocations []models.HourAllocation) error {
	const query = `
		INSERT INTO tenant_hour_allocations (tenant_id, role, weekly_hours)
		VALUES ($1, $2, $3)
	`
	for _, ha := range allocations {
		_, err := s.q(ctx).ExecContext(ctx, query,
			ha.TenantID.String(), string(ha.Role), ha.WeeklyHours.String())
		if err != nil {
			return fmt.Errorf("insert hour allocation %s: %w", ha.Role, err)
		}
	}
	return nil
}

func (s *Store) FindPayScale(ctx context.Context, tenantID id.TenantID, code string) (*models.PayScale, error) {
	const query = `
		SELECT code, base_rate, multiplier
		FROM tenant_pay_scales WHERE tenant_id = $1 AND code = $2
	`
	var (
		sc      models.PayScale
		rawRate string
		rawMult string
	)
	err := s.q(ctx).QueryRowContext(ctx, query, tenantID.String(), code).Scan(&sc.Code, &rawRate, &rawMult)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find pay scale: %w", err)
	}
	sc.TenantID = tenantID
	if sc.BaseRate, err = decimal.NewFromString(rawRate); err != nil {
		return nil, fmt.Errorf("scan pay scale base rate: %w", err)
	}
	if sc.Multiplier, err = decimal.NewFromString(rawMult); err != nil {
		return nil, fmt.Errorf("scan pay scale multiplier: %w", err)
	}
	return &sc, nil
}
