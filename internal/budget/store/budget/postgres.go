package budget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"caretrack/internal/budget/models"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
	txcontext "caretrack/pkg/platform/tx"
)

// PostgresStore persists budgets in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const budgetColumns = `id, tenant_id, client_id, category, total_allocation, current_spent, over_allocated, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, b *models.Budget) error {
	const query = `
		INSERT INTO budgets (id, tenant_id, client_id, category, total_allocation, current_spent, over_allocated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		b.ID.String(), b.TenantID.String(), b.ClientID.String(), b.Category,
		b.TotalAllocation.StringFixed(models.CurrencyPlaces),
		b.CurrentSpent.StringFixed(models.CurrencyPlaces),
		b.OverAllocated, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByTenantAndID(ctx context.Context, tenantID id.TenantID, budgetID id.BudgetID) (*models.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1 AND tenant_id = $2`
	return scanBudget(s.q(ctx).QueryRowContext(ctx, query, budgetID.String(), tenantID.String()))
}

// GetForUpdate locks the budget row for the remainder of the ambient
// transaction, fully serializing concurrent deductions against the same
// budget. Lock-wait expiry surfaces as ErrLockTimeout, which is retryable.
func (s *PostgresStore) GetForUpdate(ctx context.Context, tenantID id.TenantID, clientID id.ClientID, category string) (*models.Budget, error) {
	query := `SELECT ` + budgetColumns + `
		FROM budgets
		WHERE tenant_id = $1 AND client_id = $2 AND category = $3
		FOR UPDATE`
	b, err := scanBudget(s.q(ctx).QueryRowContext(ctx, query, tenantID.String(), clientID.String(), category))
	if err != nil {
		return nil, mapLockErr(err)
	}
	return b, nil
}

// UpdateDerived persists the recomputed spent figure and over-allocation
// flag. The tenant predicate re-validates the stored row's owner; zero rows
// affected collapses to ErrNotFound.
func (s *PostgresStore) UpdateDerived(ctx context.Context, tenantID id.TenantID, b *models.Budget) error {
	const query = `
		UPDATE budgets SET current_spent = $3, over_allocated = $4, updated_at = $5
		WHERE id = $1 AND tenant_id = $2
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		b.ID.String(), tenantID.String(),
		b.CurrentSpent.StringFixed(models.CurrencyPlaces),
		b.OverAllocated, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update budget rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByTenantAndClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) ([]*models.Budget, error) {
	query := `SELECT ` + budgetColumns + `
		FROM budgets WHERE tenant_id = $1 AND client_id = $2
		ORDER BY category`
	rows, err := s.q(ctx).QueryContext(ctx, query, tenantID.String(), clientID.String())
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []*models.Budget
	for rows.Next() {
		b, err := scanBudgetRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ConsoleBillingSummary is the single unscoped read in the repository layer,
// reserved for console-manager billing aggregates.
func (s *PostgresStore) ConsoleBillingSummary(ctx context.Context) ([]models.TenantSpend, error) {
	const query = `
		SELECT tenant_id, count(*),
		       coalesce(sum(total_allocation), 0),
		       coalesce(sum(current_spent), 0),
		       count(*) FILTER (WHERE over_allocated)
		FROM budgets
		GROUP BY tenant_id
		ORDER BY tenant_id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("billing summary: %w", err)
	}
	defer rows.Close()

	var out []models.TenantSpend
	for rows.Next() {
		var (
			ts            models.TenantSpend
			rawTenant     string
			rawAllocation string
			rawSpent      string
		)
		if err := rows.Scan(&rawTenant, &ts.Budgets, &rawAllocation, &rawSpent, &ts.OverAllocated); err != nil {
			return nil, fmt.Errorf("scan billing summary: %w", err)
		}
		tenantID, err := id.ParseTenantID(rawTenant)
		if err != nil {
			return nil, fmt.Errorf("scan billing tenant id: %w", err)
		}
		ts.TenantID = tenantID
		if ts.TotalAllocation, err = decimal.NewFromString(rawAllocation); err != nil {
			return nil, fmt.Errorf("scan billing allocation: %w", err)
		}
		if ts.TotalSpent, err = decimal.NewFromString(rawSpent); err != nil {
			return nil, fmt.Errorf("scan billing spent: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// mapLockErr translates lock-wait expiry into the retryable sentinel.
// 55P03 is lock_not_available (statement lock_timeout); 57014 is
// query_canceled, which is what a context deadline surfaces as.
func mapLockErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "55P03" || pgErr.Code == "57014") {
		return sentinel.ErrLockTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sentinel.ErrLockTimeout
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row *sql.Row) (*models.Budget, error) {
	b, err := scanBudgetRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func scanBudgetRow(row rowScanner) (*models.Budget, error) {
	var (
		b             models.Budget
		rawID         string
		rawTenant     string
		rawClient     string
		rawAllocation string
		rawSpent      string
	)
	err := row.Scan(&rawID, &rawTenant, &rawClient, &b.Category,
		&rawAllocation, &rawSpent, &b.OverAllocated, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan budget: %w", err)
	}
	budgetID, err := id.ParseBudgetID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan budget id: %w", err)
	}
	tenantID, err := id.ParseTenantID(rawTenant)
	if err != nil {
		return nil, fmt.Errorf("scan budget tenant id: %w", err)
	}
	clientID, err := id.ParseClientID(rawClient)
	if err != nil {
		return nil, fmt.Errorf("scan budget client id: %w", err)
	}
	b.ID = budgetID
	b.TenantID = tenantID
	b.ClientID = clientID
	if b.TotalAllocation, err = decimal.NewFromString(rawAllocation); err != nil {
		return nil, fmt.Errorf("scan budget allocation: %w", err)
	}
	if b.CurrentSpent, err = decimal.NewFromString(rawSpent); err != nil {
		return nil, fmt.Errorf("scan budget spent: %w", err)
	}
	return &b, nil
}
