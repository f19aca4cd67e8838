package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"roster/internal/platform/config"
	"roster/pkg/platform/audit"
)

// Runner schedules audit runs, optionally remediates, and keeps the last report.
type Runner struct {
	auditor    *Auditor
	remediator *Remediator
	lease      Lease
	cache      ReportCache
	publisher  AuditPublisher
	metrics    *Metrics
	logger     *slog.Logger

	interval   time.Duration
	runTimeout time.Duration
	leaseTTL   time.Duration
	remediate  bool
}

type RunnerOption func(*Runner)

func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithRunnerMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithRunnerPublisher(p AuditPublisher) RunnerOption {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithRemediator enables repairs after each divergent run when cfg.Remediate is set.
func WithRemediator(rem *Remediator) RunnerOption {
	return func(r *Runner) {
		r.remediator = rem
	}
}

func WithLease(l Lease) RunnerOption {
	return func(r *Runner) {
		r.lease = l
	}
}

func WithReportCache(c ReportCache) RunnerOption {
	return func(r *Runner) {
		r.cache = c
	}
}

func NewRunner(auditor *Auditor, cfg config.Reconcile, opts ...RunnerOption) *Runner {
	r := &Runner{
		auditor:    auditor,
		lease:      NewLocalLease(),
		cache:      NewMemoryReportCache(),
		logger:     slog.Default(),
		interval:   cfg.Interval,
		runTimeout: cfg.RunTimeout,
		leaseTTL:   cfg.LeaseTTL,
		remediate:  cfg.Remediate,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.leaseTTL <= 0 {
		r.leaseTTL = r.runTimeout
	}
	return r
}

// RunOnce performs a single leased audit. It returns ErrLeaseHeld when another
// runner owns the lease.
func (r *Runner) RunOnce(ctx context.Context, scope Scope) (*Report, error) {
	release, err := r.lease.Acquire(ctx, r.leaseTTL)
	if err != nil {
		if errors.Is(err, ErrLeaseHeld) {
			r.logger.InfoContext(ctx, "reconciliation skipped; lease held elsewhere", "scope", scope.String())
			if r.metrics != nil {
				r.metrics.IncrementRun("skipped")
			}
		}
		return nil, err
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(relCtx); err != nil {
			r.logger.WarnContext(ctx, "failed to release reconciliation lease", "error", err)
		}
	}()

	if r.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.runTimeout)
		defer cancel()
	}

	report, err := r.auditor.Run(ctx, scope)
	if err != nil {
		return nil, err
	}

	if r.remediate && r.remediator != nil && len(report.RemovedWithoutDisable) > 0 {
		if err := r.remediator.Remediate(ctx, report); err != nil {
			r.logger.WarnContext(ctx, "remediation incomplete", "run_id", report.RunID, "error", err)
		}
	}

	if err := r.cache.Save(ctx, report); err != nil {
		r.logger.WarnContext(ctx, "failed to cache reconciliation report", "run_id", report.RunID, "error", err)
	}
	r.publish(ctx, report)
	return report, nil
}

// Last returns the most recent cached report for the scope.
func (r *Runner) Last(ctx context.Context, scope Scope) (*Report, error) {
	return r.cache.Last(ctx, scope)
}

// Start runs global audits every interval until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return errors.New("reconcile interval must be positive")
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(ctx, Scope{}); err != nil && !errors.Is(err, ErrLeaseHeld) {
				r.logger.ErrorContext(ctx, "scheduled reconciliation failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Runner) publish(ctx context.Context, report *Report) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.Emit(ctx, audit.Event{
		TenantID: report.Scope.TenantID,
		Subject:  report.RunID,
		Action:   string(audit.EventReconciliationCompleted),
		ActorID:  SystemActor,
		Attributes: map[string]string{
			"scope":                    report.Scope.String(),
			"clean":                    strconv.FormatBool(report.Clean()),
			"removed_without_disable":  strconv.Itoa(len(report.RemovedWithoutDisable)),
			"disabled_without_removed": strconv.Itoa(len(report.DisabledWithoutRemoved)),
			"remediations":             strconv.Itoa(len(report.Remediations)),
		},
	})
	if err != nil {
		r.logger.WarnContext(ctx, "failed to emit reconciliation event", "run_id", report.RunID, "error", err)
	}
}
