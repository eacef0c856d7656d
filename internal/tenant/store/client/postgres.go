package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"caretrack/internal/tenant/models"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
	txcontext "caretrack/pkg/platform/tx"
)

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

const clientColumns = `id, tenant_id, name, ndis_ref, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, client *models.Client) error {
	const query = `
		INSERT INTO clients (id, tenant_id, name, ndis_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		client.ID.String(), client.TenantID.String(), client.Name, client.NDISRef,
		string(client.Status), client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByTenantAndID(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND tenant_id = $2`
	return scanClient(s.q(ctx).QueryRowContext(ctx, query, clientID.String(), tenantID.String()))
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := s.q(ctx).QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []*models.Client
	for rows.Next() {
		c, err := scanClientRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update applies the change only when the stored row belongs to the caller's
// tenant. Zero rows affected collapses to ErrNotFound, so mismatch and
// absence look identical to callers.
func (s *PostgresStore) Update(ctx context.Context, tenantID id.TenantID, client *models.Client) error {
	const query = `
		UPDATE clients SET name = $3, ndis_ref = $4, status = $5, updated_at = $6
		WHERE id = $1 AND tenant_id = $2
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		client.ID.String(), tenantID.String(), client.Name, client.NDISRef,
		string(client.Status), client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update client rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM clients WHERE tenant_id = $1`, tenantID.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row *sql.Row) (*models.Client, error) {
	c, err := scanClientRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func scanClientRow(row rowScanner) (*models.Client, error) {
	var (
		c         models.Client
		rawID     string
		rawTenant string
		rawStatus string
	)
	err := row.Scan(&rawID, &rawTenant, &c.Name, &c.NDISRef, &rawStatus, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan client: %w", err)
	}
	clientID, err := id.ParseClientID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan client id: %w", err)
	}
	tenantID, err := id.ParseTenantID(rawTenant)
	if err != nil {
		return nil, fmt.Errorf("scan client tenant id: %w", err)
	}
	c.ID = clientID
	c.TenantID = tenantID
	c.Status = models.ClientStatus(rawStatus)
	return &c, nil
}
