// Package reconcile compares membership status with identity account state and
// reports where they disagree. Audits only read; repairs are a separate, opt-in step.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"roster/internal/identity"
	"roster/internal/membership/models"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
)

// Category names a report section.
type Category string

const (
	CategoryRemovedWithoutDisable  Category = "removed_without_disable"
	CategoryDisabledWithoutRemoved Category = "disabled_without_removed"
	CategoryNoIdentity             Category = "no_identity_to_verify"
)

type MembershipLister interface {
	ListByStatus(ctx context.Context, tenantID id.TenantID, statuses ...models.Status) ([]*models.Membership, error)
}

// Auditor runs read-only comparisons between the membership store and the identity
// provider.
type Auditor struct {
	memberships MembershipLister
	accounts    identity.AccountLister
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

type AuditorOption func(*Auditor)

func WithLogger(logger *slog.Logger) AuditorOption {
	return func(a *Auditor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) AuditorOption {
	return func(a *Auditor) {
		a.metrics = m
	}
}

func WithClock(now func() time.Time) AuditorOption {
	return func(a *Auditor) {
		a.now = now
	}
}

func NewAuditor(memberships MembershipLister, accounts identity.AccountLister, opts ...AuditorOption) *Auditor {
	a := &Auditor{
		memberships: memberships,
		accounts:    accounts,
		logger:      slog.Default(),
		tracer:      otel.Tracer("roster/internal/reconcile"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run fetches both sides concurrently and computes the divergence sets. Divergence
// is returned as data; an error means a store or the provider could not be read.
func (a *Auditor) Run(ctx context.Context, scope Scope) (report *Report, err error) {
	start := a.now()
	ctx, span := a.tracer.Start(ctx, "reconcile.Run", trace.WithAttributes(attribute.String("scope", scope.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if a.metrics != nil {
				a.metrics.IncrementRun("error")
				a.metrics.observeSince(start)
			}
		}
		span.End()
	}()

	var (
		removed  []*models.Membership
		live     []*models.Membership
		accounts []identity.Account
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		removed, err = a.memberships.ListByStatus(gctx, scope.TenantID, models.StatusRemoved)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list removed memberships")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		live, err = a.memberships.ListByStatus(gctx, scope.TenantID, models.NonRemoved()...)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list memberships")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		accounts, err = identity.DrainAccounts(gctx, a.accounts)
		if err != nil {
			if dErrors.CodeOf(err) != "" {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list identity accounts")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.ErrorContext(ctx, "reconciliation run failed", "scope", scope.String(), "error", err)
		return nil, err
	}

	report = Compare(scope, removed, live, accounts)
	report.RunID = uuid.NewString()
	report.StartedAt = start
	report.FinishedAt = a.now()

	span.SetAttributes(
		attribute.Int("removed_without_disable", len(report.RemovedWithoutDisable)),
		attribute.Int("disabled_without_removed", len(report.DisabledWithoutRemoved)),
		attribute.Bool("clean", report.Clean()),
	)
	if a.metrics != nil {
		a.metrics.ObserveReport(report)
	}
	level := slog.LevelInfo
	if !report.Clean() {
		level = slog.LevelWarn
	}
	a.logger.Log(ctx, level, "reconciliation run completed",
		"run_id", report.RunID,
		"scope", scope.String(),
		"clean", report.Clean(),
		"removed_without_disable", len(report.RemovedWithoutDisable),
		"disabled_without_removed", len(report.DisabledWithoutRemoved),
		"no_identity_to_verify", len(report.NoIdentityToVerify),
		"duration_ms", report.Duration().Milliseconds(),
	)
	return report, nil
}

// Compare computes a report from already-fetched data.
//
// Accounts with no referencing membership are only reported for global scope; a
// tenant-scoped run cannot tell them apart from another tenant's members.
func Compare(scope Scope, removed, live []*models.Membership, accounts []identity.Account) *Report {
	report := &Report{
		Scope:                  scope,
		MembershipsChecked:     len(removed) + len(live),
		AccountsChecked:        len(accounts),
		RemovedWithoutDisable:  []RemovedWithoutDisable{},
		DisabledWithoutRemoved: []DisabledWithoutRemoved{},
		NoIdentityToVerify:     []NoIdentity{},
	}

	byID := make(map[id.AccountID]identity.Account, len(accounts))
	for _, acct := range accounts {
		byID[acct.ID] = acct
	}

	referenced := make(map[id.AccountID]struct{}, len(removed)+len(live))
	for _, m := range removed {
		if !m.HasIdentity() {
			report.NoIdentityToVerify = append(report.NoIdentityToVerify, NoIdentity{
				MembershipID: m.ID, TenantID: m.TenantID, Email: m.Email,
			})
			continue
		}
		referenced[m.IdentityAccountID] = struct{}{}
		acct, ok := byID[m.IdentityAccountID]
		switch {
		case !ok:
			report.RemovedWithoutDisable = append(report.RemovedWithoutDisable, removedEntry(m, ReasonIdentityMissing))
		case !acct.Disabled:
			report.RemovedWithoutDisable = append(report.RemovedWithoutDisable, removedEntry(m, ReasonIdentityEnabled))
		}
	}

	liveByAccount := make(map[id.AccountID][]*models.Membership, len(live))
	for _, m := range live {
		if !m.HasIdentity() {
			continue
		}
		referenced[m.IdentityAccountID] = struct{}{}
		liveByAccount[m.IdentityAccountID] = append(liveByAccount[m.IdentityAccountID], m)
	}

	for _, acct := range accounts {
		if !acct.Disabled {
			continue
		}
		for _, m := range liveByAccount[acct.ID] {
			report.DisabledWithoutRemoved = append(report.DisabledWithoutRemoved, DisabledWithoutRemoved{
				IdentityAccountID: acct.ID,
				Email:             acct.Email,
				MembershipID:      m.ID,
				TenantID:          m.TenantID,
				Status:            m.Status,
			})
		}
		if _, ok := referenced[acct.ID]; !ok && scope.Global() {
			report.DisabledWithoutRemoved = append(report.DisabledWithoutRemoved, DisabledWithoutRemoved{
				IdentityAccountID: acct.ID,
				Email:             acct.Email,
			})
		}
	}

	sort.Slice(report.RemovedWithoutDisable, func(i, j int) bool {
		return report.RemovedWithoutDisable[i].MembershipID < report.RemovedWithoutDisable[j].MembershipID
	})
	sort.Slice(report.DisabledWithoutRemoved, func(i, j int) bool {
		a, b := report.DisabledWithoutRemoved[i], report.DisabledWithoutRemoved[j]
		if a.IdentityAccountID != b.IdentityAccountID {
			return a.IdentityAccountID < b.IdentityAccountID
		}
		return a.MembershipID < b.MembershipID
	})
	sort.Slice(report.NoIdentityToVerify, func(i, j int) bool {
		return report.NoIdentityToVerify[i].MembershipID < report.NoIdentityToVerify[j].MembershipID
	})
	return report
}

func removedEntry(m *models.Membership, reason Reason) RemovedWithoutDisable {
	return RemovedWithoutDisable{
		MembershipID:      m.ID,
		TenantID:          m.TenantID,
		IdentityAccountID: m.IdentityAccountID,
		Email:             m.Email,
		Reason:            reason,
	}
}
