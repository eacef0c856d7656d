package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"caretrack/internal/activity"
	id "caretrack/pkg/domain"
	txcontext "caretrack/pkg/platform/tx"
)

// Store persists activity entries in PostgreSQL. Writes join an ambient
// transaction from context, so ledger mutations and their audit entries commit
// or roll back together.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, entry activity.Entry) error {
	const query = `
		INSERT INTO activity_log (id, tenant_id, user_id, category, action, resource_type, resource_id, detail, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var userID any
	if !entry.UserID.IsNil() {
		userID = entry.UserID.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.ID.String(), entry.TenantID.String(), userID,
		string(entry.Category), string(entry.Action),
		entry.ResourceType, entry.ResourceID, entry.Detail, entry.At,
	)
	if err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

// ListByTenant returns entries for one tenant in append order.
func (s *Store) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]activity.Entry, error) {
	const query = `
		SELECT id, tenant_id, user_id, category, action, resource_type, resource_id, detail, at
		FROM activity_log WHERE tenant_id = $1
		ORDER BY at, id
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list activity entries: %w", err)
	}
	defer rows.Close()

	var out []activity.Entry
	for rows.Next() {
		var (
			e           activity.Entry
			rawID       string
			rawTenant   string
			rawUser     sql.NullString
			rawCategory string
			rawAction   string
		)
		if err := rows.Scan(&rawID, &rawTenant, &rawUser, &rawCategory, &rawAction,
			&e.ResourceType, &e.ResourceID, &e.Detail, &e.At); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		entryID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("scan activity id: %w", err)
		}
		tenantID, err := id.ParseTenantID(rawTenant)
		if err != nil {
			return nil, fmt.Errorf("scan activity tenant id: %w", err)
		}
		e.ID = entryID
		e.TenantID = tenantID
		if rawUser.Valid {
			userID, err := id.ParseUserID(rawUser.String)
			if err != nil {
				return nil, fmt.Errorf("scan activity user id: %w", err)
			}
			e.UserID = userID
		}
		e.Category = activity.Category(rawCategory)
		e.Action = activity.Action(rawAction)
		out = append(out, e)
	}
	return out, rows.Err()
}
