// Package app builds the process-wide dependencies shared by cmd/server and
// cmd/reconcile from configuration.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"

	"roster/internal/identity"
	"roster/internal/membership"
	membershipmetrics "roster/internal/membership/metrics"
	"roster/internal/membership/service"
	"roster/internal/membership/store"
	"roster/internal/ops"
	"roster/internal/platform/config"
	"roster/internal/platform/kafka"
	platformmetrics "roster/internal/platform/metrics"
	"roster/internal/platform/postgres"
	platformredis "roster/internal/platform/redis"
	"roster/internal/reconcile"
	"roster/pkg/platform/audit/publisher"
	kafkastore "roster/pkg/platform/audit/store/kafka"
)

// IdentityProvider is satisfied by both identity.HTTPClient and identity.InMemory.
type IdentityProvider interface {
	membership.Identity
	identity.AccountLister
}

// MembershipStore is satisfied by both store.PostgresStore and store.InMemory.
type MembershipStore interface {
	membership.Store
	reconcile.MembershipLister
}

// App holds the wired dependencies. Close releases them in reverse order.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Registry    *prometheus.Registry
	Identity    IdentityProvider
	Memberships MembershipStore
	Publisher   *publisher.Publisher
	Redis       *platformredis.Client

	checks  map[string]ops.HealthCheck
	closers []func()
}

// Build connects every configured backend. Optional backends (Redis, Kafka) are
// skipped when unconfigured.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		checks:   make(map[string]ops.HealthCheck),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	platform := platformmetrics.New(a.Registry)

	if err := a.buildMemberships(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.buildIdentity(platform)
	if err := a.buildRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildAudit(ctx); err != nil {
		a.Close()
		return nil, err
	}
	platform.Up.Set(1)
	return a, nil
}

func (a *App) buildMemberships(ctx context.Context) error {
	cfg := a.Config.Database
	if cfg.Driver == "memory" {
		a.Logger.Warn("using in-memory membership store; data is lost on exit")
		a.Memberships = store.NewInMemory()
		return nil
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	pg := store.NewPostgres(db, cfg.MembershipTable, store.WithQueryTimeout(cfg.QueryTimeout))
	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx, cfg.MembershipTable); err != nil {
			return err
		}
	}
	a.Memberships = pg
	a.checks["membership_store"] = pg.Health
	return nil
}

func (a *App) buildIdentity(platform *platformmetrics.Metrics) {
	cfg := a.Config.Identity
	if cfg.Driver == "memory" {
		a.Logger.Warn("using in-memory identity provider")
		a.Identity = identity.NewInMemory(identity.WithPageSize(cfg.PageSize))
		return
	}
	client := identity.NewHTTPClient(cfg,
		identity.WithLogger(a.Logger),
		identity.WithSecretLength(a.Config.Membership.SecretLength),
		identity.WithStateObserver(platform.BreakerObserver("identity_provider")),
	)
	a.Identity = client
	a.checks["identity_provider"] = func(context.Context) error {
		if client.Breaker().IsOpen() {
			return errors.New("circuit breaker open")
		}
		return nil
	}
}

func (a *App) buildRedis(ctx context.Context) error {
	client, err := platformredis.Open(ctx, a.Config.Redis)
	if errors.Is(err, platformredis.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return err
	}
	a.Redis = client
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.checks["redis"] = client.Health
	return nil
}

func (a *App) buildAudit(ctx context.Context) error {
	cfg := a.Config.Kafka
	client, err := kafka.New(cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	a.closers = append(a.closers, client.Close)
	if cfg.EnsureTopic {
		if err := kafka.EnsureTopic(ctx, client, cfg); err != nil {
			return err
		}
	}
	a.Publisher = publisher.NewPublisher(
		kafkastore.New(client, cfg.AuditTopic),
		publisher.WithAsyncBuffer(cfg.AuditBuffer),
		publisher.WithLogger(a.Logger),
	)
	a.closers = append(a.closers, a.Publisher.Close)
	a.checks["kafka"] = func(ctx context.Context) error { return kafka.Health(ctx, client) }
	return nil
}

// Membership wires the lifecycle service and ban coordinator.
func (a *App) Membership() (*membership.Service, *membership.Coordinator) {
	m := membershipmetrics.New(a.Registry)
	var pub service.AuditPublisher
	if a.Publisher != nil {
		pub = a.Publisher
	}
	return membership.NewService(a.Identity, a.Memberships, a.Config.Membership, a.Logger, m, pub)
}

// Runner wires the auditor, remediator and scheduled runner. Without Redis the lease
// and report cache are process-local.
func (a *App) Runner(coordinator *membership.Coordinator, remediate bool) *reconcile.Runner {
	metrics := reconcile.NewMetrics(a.Registry)
	auditor := reconcile.NewAuditor(a.Memberships, a.Identity,
		reconcile.WithLogger(a.Logger),
		reconcile.WithMetrics(metrics),
	)
	remOpts := []reconcile.RemediatorOption{
		reconcile.WithRemediationLogger(a.Logger),
		reconcile.WithRemediationMetrics(metrics),
	}
	runOpts := []reconcile.RunnerOption{
		reconcile.WithRunnerLogger(a.Logger),
		reconcile.WithRunnerMetrics(metrics),
	}
	if a.Publisher != nil {
		remOpts = append(remOpts, reconcile.WithRemediationPublisher(a.Publisher))
		runOpts = append(runOpts, reconcile.WithRunnerPublisher(a.Publisher))
	}
	if a.Redis != nil {
		runOpts = append(runOpts,
			reconcile.WithLease(reconcile.NewRedisLease(a.Redis.Client, a.Redis.Prefix())),
			reconcile.WithReportCache(reconcile.NewRedisReportCache(a.Redis.Client, a.Redis.Prefix(), a.Config.Reconcile.ReportTTL)),
		)
	}
	runOpts = append(runOpts, reconcile.WithRemediator(reconcile.NewRemediator(coordinator, a.Memberships, remOpts...)))

	cfg := a.Config.Reconcile
	cfg.Remediate = cfg.Remediate || remediate
	return reconcile.NewRunner(auditor, cfg, runOpts...)
}

// HealthOptions returns one ops option per configured backend check.
func (a *App) HealthOptions() []ops.Option {
	opts := make([]ops.Option, 0, len(a.checks))
	for name, check := range a.checks {
		opts = append(opts, ops.WithHealthCheck(name, check))
	}
	return opts
}

// Close releases every backend in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Compile-time check that the Kafka client satisfies the audit producer.
var _ kafkastore.Producer = (*kgo.Client)(nil)
