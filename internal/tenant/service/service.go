// Package service orchestrates tenant onboarding, lifecycle transitions and
// care recipient management.
package service

import (
	"context"
	"log/slog"

	"caretrack/internal/activity"
	"caretrack/internal/tenant/metrics"
	"caretrack/internal/tenant/models"
	"caretrack/pkg/attrs"
	id "caretrack/pkg/domain"
	"caretrack/pkg/requestcontext"
)

type TenantStore interface {
	CreateIfNameAvailable(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindByName(ctx context.Context, name string) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]*models.Tenant, error)
	Execute(ctx context.Context, tenantID id.TenantID, validate func(*models.Tenant) error, mutate func(*models.Tenant)) (*models.Tenant, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByTenantAndID(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*models.User, error)
	CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error)
}

type ClientStore interface {
	Create(ctx context.Context, client *models.Client) error
	FindByTenantAndID(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Client, error)
	Update(ctx context.Context, tenantID id.TenantID, client *models.Client) error
	CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error)
}

// Provisioner seeds baseline configuration during onboarding. It must be
// idempotent; CreateTenant calls it inside the onboarding transaction.
type Provisioner interface {
	EnsureBaseline(ctx context.Context, tenantID id.TenantID) ([]string, error)
}

type ActivityStore interface {
	Append(ctx context.Context, entry activity.Entry) error
}

// TxRunner provides the transactional boundary for multi-write operations.
// The postgres runner begins a transaction and binds it to the context so the
// stores join it; PassthroughTx serves memory mode.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PassthroughTx runs the function directly. Memory stores take their own
// locks, so there is no transaction to coordinate.
type PassthroughTx struct{}

func (PassthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service orchestrates tenant and client management.
type Service struct {
	tenants   TenantStore
	users     UserStore
	clients   ClientStore
	provision Provisioner
	activity  ActivityStore
	runner    TxRunner
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(
	tenants TenantStore,
	users UserStore,
	clients ClientStore,
	provision Provisioner,
	activityStore ActivityStore,
	runner TxRunner,
	opts ...Option,
) *Service {
	s := &Service{
		tenants:   tenants,
		users:     users,
		clients:   clients,
		provision: provision,
		activity:  activityStore,
		runner:    runner,
		logger:    slog.Default(),
	}
	if runner == nil {
		s.runner = PassthroughTx{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// logAudit emits a structured audit log line. The tenant_id attribute, when
// present, is promoted so log pipelines can partition by tenant.
func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if tenantID := attrs.ExtractString(attributes, "tenant_id"); tenantID != "" {
		attributes = append(attributes, "partition", tenantID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func actorID(ctx context.Context) id.UserID {
	if ident, ok := requestcontext.Identity(ctx); ok {
		return ident.UserID
	}
	return id.UserID{}
}
