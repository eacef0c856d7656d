package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	budgetservice "caretrack/internal/budget/service"
	dErrors "caretrack/pkg/domain-errors"
	txcontext "caretrack/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// pgTxRunner begins a database transaction and binds it to the context so the
// postgres stores join it. Once a transaction has begun, a client disconnect
// must not abort it mid-flight: the ledger would be left consistent by the
// rollback, but a committed-then-cancelled response path could double-record
// on retry. context.WithoutCancel detaches the transaction from the request's
// cancellation; the timeout still bounds it.
type pgTxRunner struct {
	db          *sql.DB
	timeout     time.Duration
	lockTimeout time.Duration
}

func newPgTxRunner(db *sql.DB, timeout, lockTimeout time.Duration) *pgTxRunner {
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	return &pgTxRunner{db: db, timeout: timeout, lockTimeout: lockTimeout}
}

func (t *pgTxRunner) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if t.lockTimeout > 0 {
		// Bound row-lock waits so a contended budget surfaces as a retryable
		// lock timeout instead of a stuck request.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ledgerPgTx adapts pgTxRunner to the budget service's transactional
// boundary. Serialization comes from the budget row lock, so the shard key is
// unused here; it matters only to the memory runner.
type ledgerPgTx struct {
	runner *pgTxRunner
	stores budgetservice.TxStores
}

func newLedgerPgTx(runner *pgTxRunner, stores budgetservice.TxStores) *ledgerPgTx {
	return &ledgerPgTx{runner: runner, stores: stores}
}

func (t *ledgerPgTx) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context, stores budgetservice.TxStores) error) error {
	return t.runner.run(ctx, func(ctx context.Context) error {
		return fn(ctx, t.stores)
	})
}

// tenantPgTx adapts pgTxRunner to the tenant service's transactional
// boundary.
type tenantPgTx struct {
	runner *pgTxRunner
}

func newTenantPgTx(runner *pgTxRunner) *tenantPgTx {
	return &tenantPgTx{runner: runner}
}

func (t *tenantPgTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.runner.run(ctx, fn)
}
