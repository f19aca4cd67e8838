package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"roster/internal/identity"
	"roster/internal/membership/models"
	"roster/internal/membership/store"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
)

type AuditorSuite struct {
	suite.Suite
	ctx      context.Context
	provider *identity.InMemory
	store    *store.InMemory
	metrics  *Metrics
	auditor  *Auditor
}

func TestAuditorSuite(t *testing.T) {
	suite.Run(t, new(AuditorSuite))
}

func (s *AuditorSuite) SetupTest() {
	s.ctx = context.Background()
	s.provider = identity.NewInMemory(identity.WithPageSize(2))
	s.store = store.NewInMemory()
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.auditor = NewAuditor(s.store, s.provider, WithMetrics(s.metrics))
}

// member seeds membership mid in tenant with the given status. A non-empty account
// is created in the provider with the given disabled flag.
func (s *AuditorSuite) member(mid id.MembershipID, tenant id.TenantID, account id.AccountID, status models.Status, disabled bool) {
	email := string(mid) + "@example.com"
	if !account.IsZero() {
		s.provider.Put(identity.Account{ID: account, Email: email, Disabled: disabled})
	}
	m, err := models.NewMembership(mid, tenant, account, string(mid), email, models.RoleMember, "owner", time.Now())
	s.Require().NoError(err)
	m.Status = status
	s.Require().NoError(s.store.Insert(s.ctx, m))
}

func (s *AuditorSuite) TestRun() {
	s.Run("consistent state is clean", func() {
		s.SetupTest()
		s.member("M1", "T1", "I1", models.StatusRemoved, true)
		s.member("M2", "T1", "I2", models.StatusActive, false)
		s.member("M3", "T1", "I3", models.StatusBlacklisted, false)

		report, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)
		s.True(report.Clean())
		s.Equal(3, report.MembershipsChecked)
		s.Equal(3, report.AccountsChecked)
		s.NotEmpty(report.RunID)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Runs.WithLabelValues("clean")))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.LastClean))
	})

	s.Run("removed membership with enabled identity is reported", func() {
		s.SetupTest()
		s.member("M1", "T1", "I1", models.StatusRemoved, false)

		report, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)
		s.False(report.Clean())
		s.Require().Len(report.RemovedWithoutDisable, 1)
		entry := report.RemovedWithoutDisable[0]
		s.Equal(id.MembershipID("M1"), entry.MembershipID)
		s.Equal(id.AccountID("I1"), entry.IdentityAccountID)
		s.Equal(ReasonIdentityEnabled, entry.Reason)
		s.Empty(report.DisabledWithoutRemoved)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Divergences.WithLabelValues(string(CategoryRemovedWithoutDisable))))
		s.Equal(0.0, testutil.ToFloat64(s.metrics.LastClean))
	})

	s.Run("removed membership whose account is gone is reported as missing", func() {
		s.SetupTest()
		m, err := models.NewMembership("M1", "T1", "ghost", "Ghost", "ghost@example.com", models.RoleMember, "owner", time.Now())
		s.Require().NoError(err)
		m.Status = models.StatusRemoved
		s.Require().NoError(s.store.Insert(s.ctx, m))

		report, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)
		s.Require().Len(report.RemovedWithoutDisable, 1)
		s.Equal(ReasonIdentityMissing, report.RemovedWithoutDisable[0].Reason)
	})

	s.Run("disabled identity behind an active membership is reported", func() {
		s.SetupTest()
		s.member("M1", "T1", "I1", models.StatusActive, true)

		report, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)
		s.False(report.Clean())
		s.Require().Len(report.DisabledWithoutRemoved, 1)
		entry := report.DisabledWithoutRemoved[0]
		s.Equal(id.MembershipID("M1"), entry.MembershipID)
		s.Equal(models.StatusActive, entry.Status)
		s.False(entry.Orphan())
	})

	s.Run("removed membership without identity is informational", func() {
		s.SetupTest()
		s.member("M1", "T1", "", models.StatusRemoved, false)

		report, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)
		s.True(report.Clean())
		s.Require().Len(report.NoIdentityToVerify, 1)
		s.Equal(id.MembershipID("M1"), report.NoIdentityToVerify[0].MembershipID)
	})

	s.Run("orphan disabled accounts only count in global scope", func() {
		s.SetupTest()
		s.member("M1", "T1", "I1", models.StatusActive, false)
		s.provider.Put(identity.Account{ID: "I9", Email: "orphan@example.com", Disabled: true})

		global, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)
		s.Require().Len(global.DisabledWithoutRemoved, 1)
		s.True(global.DisabledWithoutRemoved[0].Orphan())

		scoped, err := s.auditor.Run(s.ctx, Scope{TenantID: "T1"})
		s.Require().NoError(err)
		s.True(scoped.Clean())
	})

	s.Run("tenant scope ignores other tenants", func() {
		s.SetupTest()
		s.member("M1", "T1", "I1", models.StatusActive, false)
		s.member("M2", "T2", "I2", models.StatusRemoved, false)

		report, err := s.auditor.Run(s.ctx, Scope{TenantID: "T1"})
		s.Require().NoError(err)
		s.True(report.Clean())
		s.Equal(1, report.MembershipsChecked)

		report, err = s.auditor.Run(s.ctx, Scope{TenantID: "T2"})
		s.Require().NoError(err)
		s.Len(report.RemovedWithoutDisable, 1)
	})

	s.Run("provider failure fails the run", func() {
		s.SetupTest()
		s.member("M1", "T1", "I1", models.StatusActive, false)
		s.provider.Fail(identity.OpList, dErrors.New(dErrors.CodeUnavailable, "identity provider unavailable"))

		report, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().Error(err)
		s.Nil(report)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Runs.WithLabelValues("error")))
	})

	s.Run("store failure fails the run", func() {
		s.SetupTest()
		auditor := NewAuditor(failingLister{err: errors.New("connection refused")}, s.provider)

		_, err := auditor.Run(s.ctx, Scope{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *AuditorSuite) TestCompare_OneEntryPerLiveMembership() {
	accounts := []identity.Account{{ID: "I1", Email: "shared@example.com", Disabled: true}}
	live := []*models.Membership{
		{ID: "M2", TenantID: "T2", IdentityAccountID: "I1", Status: models.StatusActive},
		{ID: "M1", TenantID: "T1", IdentityAccountID: "I1", Status: models.StatusBlacklisted},
	}

	report := Compare(Scope{}, nil, live, accounts)
	s.Require().Len(report.DisabledWithoutRemoved, 2)
	s.Equal(id.MembershipID("M1"), report.DisabledWithoutRemoved[0].MembershipID)
	s.Equal(id.MembershipID("M2"), report.DisabledWithoutRemoved[1].MembershipID)
}

type failingLister struct {
	err error
}

func (f failingLister) ListByStatus(context.Context, id.TenantID, ...models.Status) ([]*models.Membership, error) {
	return nil, f.err
}
