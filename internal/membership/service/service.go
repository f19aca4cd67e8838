package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"roster/internal/identity"
	"roster/internal/membership/metrics"
	"roster/internal/membership/models"
	"roster/pkg/attrs"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/audit"
	"roster/pkg/platform/sentinel"
	"roster/pkg/requestcontext"
)

const tracerName = "roster/internal/membership/service"

type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, displayName, role string) (*identity.CreatedAccount, error)
	DeleteAccount(ctx context.Context, accountID id.AccountID) error
	ListAccounts(ctx context.Context, pageToken string) (*identity.Page, error)
}

type MembershipStore interface {
	Insert(ctx context.Context, m *models.Membership) error
	FindByID(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error)
	FindTenantForAccount(ctx context.Context, accountID id.AccountID) (id.TenantID, error)
	UpdateStatus(ctx context.Context, membershipID id.MembershipID, from []models.Status, to models.Status, meta models.Metadata) (*models.Membership, error)
}

// BanCoordinator owns the remove and restore transitions, which touch both the
// membership record and the identity account.
type BanCoordinator interface {
	Remove(ctx context.Context, membershipID id.MembershipID, meta models.Metadata) (*models.Membership, error)
	Restore(ctx context.Context, membershipID id.MembershipID, meta models.Metadata) (*models.Membership, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service runs the team-membership lifecycle: invite, blacklist, remove and restore.
type Service struct {
	identity            IdentityProvider
	memberships         MembershipStore
	bans                BanCoordinator
	roles               models.RoleSet
	compensationTimeout time.Duration
	newID               func() id.MembershipID
	logger              *slog.Logger
	auditPublisher      AuditPublisher
	metrics             *metrics.Metrics
	tracer              trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRoles restricts invite to the given roles.
func WithRoles(roles models.RoleSet) Option {
	return func(s *Service) {
		s.roles = roles
	}
}

// WithCompensationTimeout bounds each invite rollback step.
func WithCompensationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.compensationTimeout = d
		}
	}
}

// WithIDGenerator overrides membership ID generation.
func WithIDGenerator(fn func() id.MembershipID) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(identity IdentityProvider, memberships MembershipStore, bans BanCoordinator, opts ...Option) *Service {
	s := &Service{
		identity:            identity,
		memberships:         memberships,
		bans:                bans,
		roles:               models.DefaultRoleSet(),
		compensationTimeout: 10 * time.Second,
		newID:               func() id.MembershipID { return id.MembershipID(uuid.NewString()) },
		tracer:              otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, op string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "membership."+op, trace.WithAttributes(attributes...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	}
	span.End()
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, tenantID id.TenantID, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "tenant_id", tenantID, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	subject := attrs.ExtractString(attributes, "membership_id")
	err := s.auditPublisher.Emit(ctx, audit.Event{
		TenantID:   tenantID,
		Subject:    subject,
		Action:     string(event),
		Reason:     attrs.ExtractString(attributes, "reason"),
		RequestID:  requestcontext.RequestID(ctx),
		ActorID:    attrs.ExtractString(attributes, "requester_id"),
		Attributes: attrs.ToMap(attributes,
			"membership_id", "reason", "requester_id", "request_id"),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

func (s *Service) observe(op string, err error, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, err, start)
	}
}

func (s *Service) warnMissingIdentity(ctx context.Context, m *models.Membership, op models.Operation) {
	if m == nil || m.HasIdentity() {
		return
	}
	if s.metrics != nil {
		s.metrics.IdentitySkipped.Inc()
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "lifecycle operation on membership without identity account",
			"operation", string(op),
			"membership_id", m.ID,
			"tenant_id", m.TenantID,
		)
	}
}

// storeError translates store sentinels into domain errors.
func storeError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "membership not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "team member already exists in this tenant")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, "membership changed concurrently")
	case errors.Is(err, sentinel.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// identityError keeps coded provider errors and wraps anything else.
func identityError(err error, msg string) error {
	if dErrors.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeIdentityProvider, msg)
}
