package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"roster/internal/identity"
	"roster/internal/membership/ban"
	"roster/internal/membership/models"
	"roster/internal/membership/store"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/audit"
	"roster/pkg/platform/audit/publisher"
	auditmemory "roster/pkg/platform/audit/store/memory"
)

type RemediatorSuite struct {
	suite.Suite
	ctx        context.Context
	provider   *identity.InMemory
	store      *store.InMemory
	events     *auditmemory.InMemoryStore
	metrics    *Metrics
	auditor    *Auditor
	remediator *Remediator
}

func TestRemediatorSuite(t *testing.T) {
	suite.Run(t, new(RemediatorSuite))
}

func (s *RemediatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.provider = identity.NewInMemory()
	s.store = store.NewInMemory()
	s.events = auditmemory.NewInMemoryStore()
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.auditor = NewAuditor(s.store, s.provider)
	s.remediator = NewRemediator(
		ban.New(s.provider, s.store),
		s.store,
		WithRemediationPublisher(publisher.NewPublisher(s.events)),
		WithRemediationMetrics(s.metrics),
	)
}

func (s *RemediatorSuite) seed(mid id.MembershipID, account id.AccountID, status models.Status, disabled bool) {
	email := string(mid) + "@example.com"
	s.provider.Put(identity.Account{ID: account, Email: email, Disabled: disabled})
	m, err := models.NewMembership(mid, "T1", account, string(mid), email, models.RoleMember, "owner", time.Now())
	s.Require().NoError(err)
	m.Status = status
	s.Require().NoError(s.store.Insert(s.ctx, m))
}

func (s *RemediatorSuite) TestRemediate() {
	s.Run("disables enabled identities of removed memberships", func() {
		s.SetupTest()
		s.seed("M1", "I1", models.StatusRemoved, false)

		report, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)
		s.Require().False(report.Clean())

		s.Require().NoError(s.remediator.Remediate(s.ctx, report))
		s.Require().Len(report.Remediations, 1)
		s.Empty(report.Remediations[0].Error)

		account, err := s.provider.GetAccount(s.ctx, "I1")
		s.Require().NoError(err)
		s.True(account.Disabled)

		after, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)
		s.True(after.Clean())

		events := s.events.ListByAction(s.ctx, audit.EventRemediationApplied)
		s.Require().Len(events, 1)
		s.Equal(SystemActor, events[0].ActorID)
		s.Equal(audit.CategorySecurity, events[0].Category)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Remediations.WithLabelValues("success")))
	})

	s.Run("skips memberships restored since the audit", func() {
		s.SetupTest()
		s.seed("M1", "I1", models.StatusRemoved, false)
		report, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)

		_, err = s.store.UpdateStatus(s.ctx, "M1", []models.Status{models.StatusRemoved}, models.StatusActive, nil)
		s.Require().NoError(err)

		s.Require().NoError(s.remediator.Remediate(s.ctx, report))
		s.Empty(report.Remediations)
		account, err := s.provider.GetAccount(s.ctx, "I1")
		s.Require().NoError(err)
		s.False(account.Disabled)
	})

	s.Run("leaves disabled-without-removed entries alone", func() {
		s.SetupTest()
		s.seed("M1", "I1", models.StatusActive, true)
		report, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)
		s.Require().Len(report.DisabledWithoutRemoved, 1)

		s.Require().NoError(s.remediator.Remediate(s.ctx, report))
		s.Empty(report.Remediations)
		s.Equal(0, s.provider.Calls(identity.OpSetDisabled))
	})

	s.Run("records failures and keeps going", func() {
		s.SetupTest()
		s.seed("M1", "I1", models.StatusRemoved, false)
		s.seed("M2", "I2", models.StatusRemoved, false)
		report, err := s.auditor.Run(s.ctx, Scope{})
		s.Require().NoError(err)

		s.provider.Fail(identity.OpSetDisabled, dErrors.New(dErrors.CodeUnavailable, "identity provider unavailable"))
		err = s.remediator.Remediate(s.ctx, report)
		s.Require().Error(err)
		s.Require().Len(report.Remediations, 2)
		for _, rem := range report.Remediations {
			s.NotEmpty(rem.Error)
		}
		s.Empty(s.events.ListByAction(s.ctx, audit.EventRemediationApplied))
		s.Equal(2.0, testutil.ToFloat64(s.metrics.Remediations.WithLabelValues("error")))
	})
}
