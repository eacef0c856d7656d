package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"caretrack/internal/tenant/models"
	id "caretrack/pkg/domain"
	txcontext "caretrack/pkg/platform/tx"
	"caretrack/pkg/platform/sentinel"
)

// PostgresStore persists tenants in PostgreSQL. Writes join an ambient
// transaction from context when one is present.
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

func (s *PostgresStore) CreateIfNameAvailable(ctx context.Context, tenant *models.Tenant) error {
	const query = `
		INSERT INTO tenants (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		tenant.ID.String(), tenant.Name, string(tenant.Status), tenant.CreatedAt, tenant.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	const query = `
		SELECT id, name, status, created_at, updated_at
		FROM tenants WHERE id = $1
	`
	return s.scanOne(s.q(ctx).QueryRowContext(ctx, query, tenantID.String()))
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Tenant, error) {
	const query = `
		SELECT id, name, status, created_at, updated_at
		FROM tenants WHERE lower(name) = lower($1)
	`
	return s.scanOne(s.q(ctx).QueryRowContext(ctx, query, name))
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Tenant, error) {
	const query = `
		SELECT id, name, status, created_at, updated_at
		FROM tenants WHERE status = 'active'
		ORDER BY created_at
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var out []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Execute locks the tenant row FOR UPDATE, runs validate, applies mutate, and
// persists the result. Outside an ambient transaction it opens its own.
func (s *PostgresStore) Execute(
	ctx context.Context,
	tenantID id.TenantID,
	validate func(*models.Tenant) error,
	mutate func(*models.Tenant),
) (*models.Tenant, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.executeIn(ctx, tx, tenantID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tenant tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tenant, err := s.executeIn(ctx, tx, tenantID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tenant tx: %w", err)
	}
	return tenant, nil
}

func (s *PostgresStore) executeIn(
	ctx context.Context,
	tx *sql.Tx,
	tenantID id.TenantID,
	validate func(*models.Tenant) error,
	mutate func(*models.Tenant),
) (*models.Tenant, error) {
	const lockQuery = `
		SELECT id, name, status, created_at, updated_at
		FROM tenants WHERE id = $1
		FOR UPDATE
	`
	tenant, err := s.scanOne(tx.QueryRowContext(ctx, lockQuery, tenantID.String()))
	if err != nil {
		return nil, err
	}
	if err := validate(tenant); err != nil {
		return nil, err
	}
	mutate(tenant)

	const updateQuery = `
		UPDATE tenants SET name = $2, status = $3, updated_at = $4 WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, updateQuery,
		tenant.ID.String(), tenant.Name, string(tenant.Status), tenant.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update tenant: %w", err)
	}
	return tenant, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row rowScanner) (*models.Tenant, error) {
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func scanTenant(row rowScanner) (*models.Tenant, error) {
	var (
		t         models.Tenant
		rawID     string
		rawStatus string
	)
	if err := row.Scan(&rawID, &t.Name, &rawStatus, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	tenantID, err := id.ParseTenantID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan tenant id: %w", err)
	}
	t.ID = tenantID
	t.Status = models.TenantStatus(rawStatus)
	return &t, nil
}
