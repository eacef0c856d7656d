package transaction

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

const txnColumns = `id, tenant_id, budget_id, source_event_id, type, amount, hours, rate, multiplier, created_by, created_at`

// Insert writes the ledger entry. The unique index on
// (tenant_id, source_event_id) is the backstop behind the engine's in-lock
// idempotency check; a violation surfaces as ErrAlreadyUsed.
func (s *PostgresStore) Insert(ctx context.Context, txn *models.BudgetTransaction) error {
	const query = `
		INSERT INTO budget_transactions (id, tenant_id, budget_id, source_event_id, type, amount, hours, rate, multiplier, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		txn.ID.String(), txn.TenantID.String(), txn.BudgetID.String(),
		txn.SourceEventID, string(txn.Type),
		txn.Amount.StringFixed(models.CurrencyPlaces),
		txn.Hours.String(), txn.Rate.String(), txn.Multiplier.String(),
		txn.CreatedBy.String(), txn.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert budget transaction: %w", err)
	}
	return nil
}

// FindBySourceEvent is the idempotency lookup, run inside the budget row lock.
func (s *PostgresStore) FindBySourceEvent(ctx context.Context, tenantID id.TenantID, sourceEventID string) (*models.BudgetTransaction, error) {
	query := `SELECT ` + txnColumns + `
		FROM budget_transactions WHERE tenant_id = $1 AND source_event_id = $2`
	return scanTxn(s.q(ctx).QueryRowContext(ctx, query, tenantID.String(), sourceEventID))
}

func (s *PostgresStore) ListByBudget(ctx context.Context, tenantID id.TenantID, budgetID id.BudgetID) ([]*models.BudgetTransaction, error) {
	query := `SELECT ` + txnColumns + `
		FROM budget_transactions WHERE tenant_id = $1 AND budget_id = $2
		ORDER BY created_at, id`
	rows, err := s.q(ctx).QueryContext(ctx, query, tenantID.String(), budgetID.String())
	if err != nil {
		return nil, fmt.Errorf("list budget transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.BudgetTransaction
	for rows.Next() {
		txn, err := scanTxnRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTxn(row *sql.Row) (*models.BudgetTransaction, error) {
	txn, err := scanTxnRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return txn, nil
}

func scanTxnRow(row rowScanner) (*models.BudgetTransaction, error) {
	var (
		txn           models.BudgetTransaction
		rawID         string
		rawTenant     string
		rawBudget     string
		rawType       string
		rawAmount     string
		rawHours      string
		rawRate       string
		rawMultiplier string
		rawCreatedBy  string
	)
	err := row.Scan(&rawID, &rawTenant, &rawBudget, &txn.SourceEventID, &rawType,
		&rawAmount, &rawHours, &rawRate, &rawMultiplier, &rawCreatedBy, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan budget transaction: %w", err)
	}
	txnID, err := id.ParseTransactionID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan transaction id: %w", err)
	}
	tenantID, err := id.ParseTenantID(rawTenant)
	if err != nil {
		return nil, fmt.Errorf("scan transaction tenant id: %w", err)
	}
	budgetID, err := id.ParseBudgetID(rawBudget)
	if err != nil {
		return nil, fmt.Errorf("scan transaction budget id: %w", err)
	}
	createdBy, err := id.ParseUserID(rawCreatedBy)
	if err != nil {
		return nil, fmt.Errorf("scan transaction creator: %w", err)
	}
	txn.ID = txnID
	txn.TenantID = tenantID
	txn.BudgetID = budgetID
	txn.Type = models.TransactionType(rawType)
	txn.CreatedBy = createdBy
	if txn.Amount, err = decimal.NewFromString(rawAmount); err != nil {
		return nil, fmt.Errorf("scan transaction amount: %w", err)
	}
	if txn.Hours, err = decimal.NewFromString(rawHours); err != nil {
		return nil, fmt.Errorf("scan transaction hours: %w", err)
	}
	if txn.Rate, err = decimal.NewFromString(rawRate); err != nil {
		return nil, fmt.Errorf("scan transaction rate: %w", err)
	}
	if txn.Multiplier, err = decimal.NewFromString(rawMultiplier); err != nil {
		return nil, fmt.Errorf("scan transaction multiplier: %w", err)
	}
	return &txn, nil
}
