package membership

import (
	"log/slog"

	"roster/internal/membership/ban"
	"roster/internal/membership/handler"
	"roster/internal/membership/metrics"
	"roster/internal/membership/models"
	"roster/internal/membership/service"
	"roster/internal/platform/config"
)

// Service exposes the team-membership lifecycle.
type Service = service.Service

// Coordinator keeps membership status and identity disabled flags in step.
type Coordinator = ban.Coordinator

// Store is everything the lifecycle and the ban coordinator need from persistence.
type Store interface {
	service.MembershipStore
	ban.Store
}

// Identity is everything the lifecycle and the ban coordinator need from the provider.
type Identity interface {
	service.IdentityProvider
	ban.IdentityDisabler
}

// NewCoordinator constructs the ban coordinator.
func NewCoordinator(identity ban.IdentityDisabler, store ban.Store, logger *slog.Logger) *Coordinator {
	return ban.New(identity, store, ban.WithLogger(logger))
}

// NewService wires a lifecycle service and its ban coordinator from configuration.
func NewService(
	identity Identity,
	store Store,
	cfg config.Membership,
	logger *slog.Logger,
	m *metrics.Metrics,
	publisher service.AuditPublisher,
) (*Service, *Coordinator) {
	coordinator := NewCoordinator(identity, store, logger)
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithCompensationTimeout(cfg.CompensationTimeout),
	}
	if len(cfg.Roles) > 0 {
		opts = append(opts, service.WithRoles(models.NewRoleSet(cfg.Roles)))
	}
	if publisher != nil {
		opts = append(opts, service.WithAuditPublisher(publisher))
	}
	return service.New(identity, store, coordinator, opts...), coordinator
}

// Handler wires HTTP endpoints to the lifecycle service.
type Handler = handler.Handler

// NewHandler constructs the admin-facing membership handler.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
