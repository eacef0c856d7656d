package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	activitymemory "caretrack/internal/activity/store/memory"
	activitypostgres "caretrack/internal/activity/store/postgres"
	budgethandler "caretrack/internal/budget/handler"
	budgetmetrics "caretrack/internal/budget/metrics"
	budgetservice "caretrack/internal/budget/service"
	budgetstore "caretrack/internal/budget/store/budget"
	transactionstore "caretrack/internal/budget/store/transaction"
	"caretrack/internal/guard"
	guardmetrics "caretrack/internal/guard/metrics"
	"caretrack/internal/platform/config"
	"caretrack/internal/platform/httpserver"
	"caretrack/internal/platform/logger"
	"caretrack/internal/platform/postgres"
	platformredis "caretrack/internal/platform/redis"
	provisionmetrics "caretrack/internal/provision/metrics"
	provisionservice "caretrack/internal/provision/service"
	provisionmemory "caretrack/internal/provision/store/memory"
	provisionpostgres "caretrack/internal/provision/store/postgres"
	"caretrack/internal/reconcile"
	reconcilehandler "caretrack/internal/reconcile/handler"
	reconcilemetrics "caretrack/internal/reconcile/metrics"
	"caretrack/internal/session"
	tenanthandler "caretrack/internal/tenant/handler"
	tenantmetrics "caretrack/internal/tenant/metrics"
	tenantservice "caretrack/internal/tenant/service"
	clientstore "caretrack/internal/tenant/store/client"
	tenantstore "caretrack/internal/tenant/store/tenant"
	userstore "caretrack/internal/tenant/store/user"
	httptransport "caretrack/internal/transport/http"
)

// main wires stores, services and the router, then runs the server with
// graceful shutdown. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err.Error())
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.RedisAddr)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		log.Warn("REDIS_ADDR not set, session revocation checks disabled")
	}

	deps := buildDependencies(cfg, db, log, redisClient)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Resolver:       deps.resolver,
		AdminTokenHash: cfg.AdminTokenHash,
		Tenants:        deps.tenantHandler,
		Budgets:        deps.budgetHandler,
		Reconcile:      deps.reconcileHandler,
		HealthCheck: func(ctx context.Context) error {
			if db != nil {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(ctx)
			}
			return nil
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ReconcileOnStart {
		summary, err := deps.reconciler.Run(ctx)
		if err != nil {
			log.Error("startup reconciliation failed", "error", err.Error())
			os.Exit(1)
		}
		log.Info("startup reconciliation complete",
			"consistent", summary.Consistent,
			"repaired", summary.Repaired,
			"failed", summary.Failed,
		)
	}

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("caretrack listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}

// dependencies bundles the wired services and handlers main hands to the
// router.
type dependencies struct {
	resolver         *tenantservice.Resolver
	reconciler       *reconcile.Reconciler
	tenantHandler    *tenanthandler.Handler
	budgetHandler    *budgethandler.Handler
	reconcileHandler *reconcilehandler.Handler
}

// buildDependencies picks postgres or memory stores and wires every service
// the same way on either backend.
func buildDependencies(cfg config.Server, db *sql.DB, log *slog.Logger, redisClient *platformredis.Client) dependencies {
	var (
		tenants      tenantservice.TenantStore
		tenantFinder tenantservice.TenantFinder
		tenantLister reconcile.TenantStore
		users        interface {
			tenantservice.UserStore
			tenantservice.UserFinder
		}
		clients      tenantservice.ClientStore
		budgets      budgetservice.BudgetStore
		transactions budgetservice.TransactionStore
		activityLog  budgetservice.ActivityStore
		baseline     provisionservice.Store
	)

	if db != nil {
		pgTenants := tenantstore.NewPostgres(db)
		tenants, tenantFinder, tenantLister = pgTenants, pgTenants, pgTenants
		users = userstore.NewPostgres(db)
		clients = clientstore.NewPostgres(db)
		budgets = budgetstore.NewPostgres(db)
		transactions = transactionstore.NewPostgres(db)
		activityLog = activitypostgres.New(db)
		baseline = provisionpostgres.New(db)
	} else {
		memTenants := tenantstore.NewInMemory()
		tenants, tenantFinder, tenantLister = memTenants, memTenants, memTenants
		users = userstore.NewInMemory()
		clients = clientstore.NewInMemory()
		budgets = budgetstore.NewInMemory()
		transactions = transactionstore.NewInMemory()
		activityLog = activitymemory.New()
		baseline = provisionmemory.New()
	}

	ledgerStores := budgetservice.TxStores{
		Budgets:      budgets,
		Transactions: transactions,
		Activity:     activityLog,
	}
	var ledgerTx budgetservice.StoreTx
	var tenantTx tenantservice.TxRunner
	if db != nil {
		runner := newPgTxRunner(db, 2*cfg.LockTimeout, cfg.LockTimeout)
		ledgerTx = newLedgerPgTx(runner, ledgerStores)
		tenantTx = newTenantPgTx(runner)
	} else {
		ledgerTx = budgetservice.NewShardedTx(ledgerStores, cfg.LockTimeout)
		tenantTx = tenantservice.PassthroughTx{}
	}

	provisionSvc := provisionservice.NewService(baseline, log, provisionmetrics.New())

	budgetSvc := budgetservice.NewService(ledgerTx, ledgerStores, provisionSvc, log, budgetmetrics.New())

	tm := tenantmetrics.New()
	tenantSvc := tenantservice.New(tenants, users, clients, provisionSvc, activityLog, tenantTx,
		tenantservice.WithLogger(log),
		tenantservice.WithMetrics(tm),
	)

	var revocation session.RevocationChecker
	if redisClient != nil {
		revocation = session.NewRedisRevocationChecker(redisClient)
	}
	resolver := tenantservice.NewResolver(
		session.NewJWTValidator(cfg.JWTSigningKey),
		revocation,
		users,
		tenantFinder,
		log,
		tm,
	)

	reconciler := reconcile.New(tenantLister, provisionSvc, activityLog, log, reconcilemetrics.New())

	boundaryGuard := guard.New(activityLog, log, guardmetrics.New())

	return dependencies{
		resolver:         resolver,
		reconciler:       reconciler,
		tenantHandler:    tenanthandler.New(tenantSvc, boundaryGuard, log),
		budgetHandler:    budgethandler.New(budgetSvc, boundaryGuard, log),
		reconcileHandler: reconcilehandler.New(reconciler, log),
	}
}
