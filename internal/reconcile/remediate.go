package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"roster/internal/membership/models"
	id "roster/pkg/domain"
	"roster/pkg/platform/audit"
)

// IdentitySyncer re-applies the identity flag a membership's status implies.
type IdentitySyncer interface {
	SyncIdentity(ctx context.Context, m *models.Membership) error
}

type MembershipFinder interface {
	FindByID(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// SystemActor is recorded as the actor of repairs made by the reconciler.
const SystemActor = "system:reconciler"

// Remediator repairs removed memberships whose identity account is still enabled.
//
// Disabled accounts behind non-removed memberships are left alone: from the two
// records alone a half-finished remove cannot be told apart from a half-finished
// restore, so an operator has to decide which way to converge.
type Remediator struct {
	syncer      IdentitySyncer
	memberships MembershipFinder
	publisher   AuditPublisher
	metrics     *Metrics
	logger      *slog.Logger
}

type RemediatorOption func(*Remediator)

func WithRemediationPublisher(p AuditPublisher) RemediatorOption {
	return func(r *Remediator) {
		r.publisher = p
	}
}

func WithRemediationMetrics(m *Metrics) RemediatorOption {
	return func(r *Remediator) {
		r.metrics = m
	}
}

func WithRemediationLogger(logger *slog.Logger) RemediatorOption {
	return func(r *Remediator) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRemediator(syncer IdentitySyncer, memberships MembershipFinder, opts ...RemediatorOption) *Remediator {
	r := &Remediator{
		syncer:      syncer,
		memberships: memberships,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Remediate disables the identity account of every removed-without-disable entry
// whose account still exists, recording each attempt on the report. Each membership
// is re-read first so a restore that landed after the audit is not undone.
func (r *Remediator) Remediate(ctx context.Context, report *Report) error {
	var errs []error
	for _, entry := range report.RemovedWithoutDisable {
		if entry.Reason != ReasonIdentityEnabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		m, err := r.memberships.FindByID(ctx, entry.MembershipID)
		if err != nil {
			errs = append(errs, err)
			r.record(ctx, report, entry, err)
			continue
		}
		if m.Status != models.StatusRemoved || m.IdentityAccountID != entry.IdentityAccountID {
			r.logger.InfoContext(ctx, "membership changed since audit; skipping remediation",
				"membership_id", m.ID,
				"status", m.Status,
			)
			continue
		}

		err = r.syncer.SyncIdentity(ctx, m)
		if err != nil {
			errs = append(errs, err)
		}
		r.record(ctx, report, entry, err)
	}
	return errors.Join(errs...)
}

func (r *Remediator) record(ctx context.Context, report *Report, entry RemovedWithoutDisable, err error) {
	rem := Remediation{MembershipID: entry.MembershipID, IdentityAccountID: entry.IdentityAccountID}
	if err != nil {
		rem.Error = err.Error()
		r.logger.WarnContext(ctx, "remediation failed",
			"membership_id", entry.MembershipID,
			"identity_account_id", entry.IdentityAccountID,
			"error", err,
		)
	} else {
		r.logger.InfoContext(ctx, "identity account disabled by remediation",
			"membership_id", entry.MembershipID,
			"identity_account_id", entry.IdentityAccountID,
			"event", string(audit.EventRemediationApplied),
			"log_type", "audit",
		)
	}
	report.Remediations = append(report.Remediations, rem)
	if r.metrics != nil {
		r.metrics.IncrementRemediation(err)
	}
	if err != nil || r.publisher == nil {
		return
	}
	if perr := r.publisher.Emit(ctx, audit.Event{
		TenantID: entry.TenantID,
		Subject:  entry.MembershipID.String(),
		Action:   string(audit.EventRemediationApplied),
		Reason:   string(entry.Reason),
		ActorID:  SystemActor,
		Attributes: map[string]string{
			"identity_account_id": entry.IdentityAccountID.String(),
			"run_id":              report.RunID,
		},
	}); perr != nil {
		r.logger.WarnContext(ctx, "failed to emit remediation event", "error", perr)
	}
}
