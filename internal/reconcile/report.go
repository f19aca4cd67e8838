package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"roster/internal/membership/models"
	id "roster/pkg/domain"
)

// Scope limits an audit run to one tenant. The zero Scope audits every tenant.
type Scope struct {
	TenantID id.TenantID `json:"tenant_id,omitempty"`
}

// Global reports whether the scope covers every tenant.
func (s Scope) Global() bool {
	return s.TenantID.IsZero()
}

func (s Scope) String() string {
	if s.Global() {
		return "global"
	}
	return "tenant " + s.TenantID.String()
}

// Reason explains why a removed membership is not backed by a disabled account.
type Reason string

const (
	ReasonIdentityEnabled Reason = "identity_enabled"
	ReasonIdentityMissing Reason = "identity_missing"
)

// RemovedWithoutDisable is a removed membership whose identity account can still log in
// or could not be found.
type RemovedWithoutDisable struct {
	MembershipID      id.MembershipID `json:"membership_id"`
	TenantID          id.TenantID     `json:"tenant_id"`
	IdentityAccountID id.AccountID    `json:"identity_account_id"`
	Email             string          `json:"email"`
	Reason            Reason          `json:"reason"`
}

// DisabledWithoutRemoved is a disabled identity account whose membership is not removed.
// MembershipID is empty when no membership references the account at all.
type DisabledWithoutRemoved struct {
	IdentityAccountID id.AccountID    `json:"identity_account_id"`
	Email             string          `json:"email"`
	MembershipID      id.MembershipID `json:"membership_id,omitempty"`
	TenantID          id.TenantID     `json:"tenant_id,omitempty"`
	Status            models.Status   `json:"status,omitempty"`
}

// Orphan reports whether no membership references the account.
func (d DisabledWithoutRemoved) Orphan() bool {
	return d.MembershipID.IsZero()
}

// NoIdentity is a removed membership with no linked identity account. There is
// nothing to verify, so it does not make a report unclean.
type NoIdentity struct {
	MembershipID id.MembershipID `json:"membership_id"`
	TenantID     id.TenantID     `json:"tenant_id"`
	Email        string          `json:"email"`
}

// Remediation records one repair attempt.
type Remediation struct {
	MembershipID      id.MembershipID `json:"membership_id"`
	IdentityAccountID id.AccountID    `json:"identity_account_id"`
	Error             string          `json:"error,omitempty"`
}

// Report is the outcome of one audit run.
type Report struct {
	RunID                  string                   `json:"run_id"`
	Scope                  Scope                    `json:"scope"`
	StartedAt              time.Time                `json:"started_at"`
	FinishedAt             time.Time                `json:"finished_at"`
	MembershipsChecked     int                      `json:"memberships_checked"`
	AccountsChecked        int                      `json:"accounts_checked"`
	RemovedWithoutDisable  []RemovedWithoutDisable  `json:"removed_without_disable"`
	DisabledWithoutRemoved []DisabledWithoutRemoved `json:"disabled_without_removed"`
	NoIdentityToVerify     []NoIdentity             `json:"no_identity_to_verify"`
	Remediations           []Remediation            `json:"remediations,omitempty"`
}

// Clean is true when neither divergence set has entries.
func (r *Report) Clean() bool {
	return len(r.RemovedWithoutDisable) == 0 && len(r.DisabledWithoutRemoved) == 0
}

// Duration is how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) MarshalJSON() ([]byte, error) {
	type plain Report
	return json.Marshal(struct {
		*plain
		Clean bool `json:"clean"`
	}{plain: (*plain)(r), Clean: r.Clean()})
}

// WriteText renders the report for operators.
func (r *Report) WriteText(w io.Writer) error {
	status := "CLEAN"
	if !r.Clean() {
		status = "DIVERGENT"
	}
	p := &errWriter{w: w}
	p.printf("reconciliation %s (%s): %s\n", r.RunID, r.Scope, status)
	p.printf("checked %d memberships and %d identity accounts in %s\n",
		r.MembershipsChecked, r.AccountsChecked, r.Duration().Round(time.Millisecond))

	p.printf("\nremoved without disable: %d\n", len(r.RemovedWithoutDisable))
	if len(r.RemovedWithoutDisable) > 0 {
		tw := tabwriter.NewWriter(p, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  MEMBERSHIP\tTENANT\tIDENTITY\tEMAIL\tREASON")
		for _, d := range r.RemovedWithoutDisable {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", d.MembershipID, d.TenantID, d.IdentityAccountID, d.Email, d.Reason)
		}
		_ = tw.Flush()
	}

	p.printf("\ndisabled without removed: %d\n", len(r.DisabledWithoutRemoved))
	if len(r.DisabledWithoutRemoved) > 0 {
		tw := tabwriter.NewWriter(p, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  IDENTITY\tEMAIL\tMEMBERSHIP\tTENANT\tSTATUS")
		for _, d := range r.DisabledWithoutRemoved {
			membership, tenant, status := d.MembershipID.String(), d.TenantID.String(), string(d.Status)
			if d.Orphan() {
				membership, tenant, status = "-", "-", "no membership"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", d.IdentityAccountID, d.Email, membership, tenant, status)
		}
		_ = tw.Flush()
	}

	if len(r.NoIdentityToVerify) > 0 {
		p.printf("\nremoved with no identity to verify: %d\n", len(r.NoIdentityToVerify))
		for _, n := range r.NoIdentityToVerify {
			p.printf("  %s\t%s\t%s\n", n.MembershipID, n.TenantID, n.Email)
		}
	}

	if len(r.Remediations) > 0 {
		p.printf("\nremediations: %d\n", len(r.Remediations))
		for _, rem := range r.Remediations {
			outcome := "ok"
			if rem.Error != "" {
				outcome = rem.Error
			}
			p.printf("  %s\t%s\t%s\n", rem.MembershipID, rem.IdentityAccountID, outcome)
		}
	}
	return p.err
}

// errWriter keeps the first write error so rendering code can stay linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(b []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(b)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e, format, args...)
}
