package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"roster/internal/identity"
	"roster/internal/membership/models"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/audit"
	"roster/pkg/platform/saga"
	"roster/pkg/platform/sentinel"
)

func (s *ServiceSuite) inviteRequest() models.InviteRequest {
	return models.InviteRequest{Email: "  A@X.com ", DisplayName: " Ana ", Role: "closer"}
}

func (s *ServiceSuite) TestInvite() {
	s.Run("creates identity and active membership in the requester's tenant", func() {
		s.mockStore.EXPECT().FindTenantForAccount(gomock.Any(), id.AccountID("requester-1")).Return(id.TenantID("T1"), nil)
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), "a@x.com", "Ana", "closer").
			Return(&identity.CreatedAccount{AccountID: "I1", Secret: "Abcdef1!ghij"}, nil)
		s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *models.Membership) error {
			s.Equal(id.TenantID("T1"), m.TenantID)
			s.Equal(id.AccountID("I1"), m.IdentityAccountID)
			s.Equal(models.StatusActive, m.Status)
			s.Equal("a@x.com", m.Email)
			s.Equal("Ana", m.DisplayName)
			s.Equal("requester-1", m.Metadata[models.MetaCreatedBy])
			s.Equal("closer", m.Metadata[models.MetaInvitedRole])
			return nil
		})
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(string(audit.EventMemberInvited), e.Action)
			s.Equal("M1", e.Subject)
			s.Equal("requester-1", e.ActorID)
			s.Equal("I1", e.Attributes["identity_account_id"])
			s.Equal("closer", e.Attributes["role"])
			return nil
		})

		result, err := s.service.Invite(s.ctx, "requester-1", s.inviteRequest())
		s.Require().NoError(err)
		s.Equal(id.TenantID("T1"), result.Membership.TenantID)
		s.Equal(models.StatusActive, result.Membership.Status)
		s.Len(result.Secret, 12)
	})

	s.Run("explicit tenant skips resolution", func() {
		req := s.inviteRequest()
		req.TenantID = "T9"
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&identity.CreatedAccount{AccountID: "I1", Secret: "Abcdef1!ghij"}, nil)
		s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.service.Invite(s.ctx, "requester-1", req)
		s.Require().NoError(err)
		s.Equal(id.TenantID("T9"), result.Membership.TenantID)
	})

	s.Run("unresolvable tenant fails before any external call", func() {
		s.mockStore.EXPECT().FindTenantForAccount(gomock.Any(), id.AccountID("stranger")).Return(id.TenantID(""), sentinel.ErrNotFound)

		_, err := s.service.Invite(s.ctx, "stranger", s.inviteRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeTenantResolution))
	})

	s.Run("disallowed role is a validation error", func() {
		req := s.inviteRequest()
		req.Role = "emperor"
		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing email is a validation error", func() {
		req := s.inviteRequest()
		req.Email = "   "
		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("duplicate email at the provider is a conflict and nothing is inserted", func() {
		req := s.inviteRequest()
		req.TenantID = "T1"
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "exists"))

		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("provider rejection passes through", func() {
		req := s.inviteRequest()
		req.TenantID = "T1"
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeIdentityProvider, "password policy"))

		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeIdentityProvider))
		s.Contains(err.Error(), "password policy")
	})
}

func (s *ServiceSuite) TestInviteCompensation() {
	req := s.inviteRequest()
	req.TenantID = "T1"

	s.Run("insert conflict deletes the new identity account", func() {
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&identity.CreatedAccount{AccountID: "I2", Secret: "Abcdef1!ghij"}, nil)
		s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		s.mockIdentity.EXPECT().DeleteAccount(gomock.Any(), id.AccountID("I2")).Return(nil)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(string(audit.EventInviteCompensated), e.Action)
			return nil
		})

		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Empty(saga.CompensationFailures(err))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Compensations.WithLabelValues(stepCreateIdentity, "success")))
	})

	s.Run("failed compensation never masks the insert error", func() {
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&identity.CreatedAccount{AccountID: "I3", Secret: "Abcdef1!ghij"}, nil)
		s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
		s.mockIdentity.EXPECT().DeleteAccount(gomock.Any(), id.AccountID("I3")).Return(dErrors.New(dErrors.CodeTimeout, "slow"))

		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		failures := saga.CompensationFailures(err)
		s.Require().Len(failures, 1)
		s.True(dErrors.HasCode(failures[0], dErrors.CodeCompensationFailed))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Compensations.WithLabelValues(stepCreateIdentity, "error")))
	})

	s.Run("compensation runs even when the caller's context is cancelled", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&identity.CreatedAccount{AccountID: "I4", Secret: "Abcdef1!ghij"}, nil)
		s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, *models.Membership) error {
			cancel()
			return context.Canceled
		})
		s.mockIdentity.EXPECT().DeleteAccount(gomock.Any(), id.AccountID("I4")).DoAndReturn(func(ctx context.Context, _ id.AccountID) error {
			return ctx.Err()
		})
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.Invite(ctx, "requester-1", req)
		s.Require().Error(err)
		s.Empty(saga.CompensationFailures(err))
	})
}

func (s *ServiceSuite) TestInviteCreateTimeout() {
	req := s.inviteRequest()
	req.TenantID = "T1"
	timedOut := dErrors.New(dErrors.CodeTimeout, "identity provider create_account timed out")

	s.Run("account created behind the timeout is found by email and deleted", func() {
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, timedOut)
		s.mockIdentity.EXPECT().ListAccounts(gomock.Any(), "").Return(&identity.Page{
			Accounts: []identity.Account{{ID: "I0", Email: "other@x.com"}, {ID: "I5", Email: "A@X.com"}},
		}, nil)
		s.mockStore.EXPECT().FindTenantForAccount(gomock.Any(), id.AccountID("I5")).Return(id.TenantID(""), sentinel.ErrNotFound)
		s.mockIdentity.EXPECT().DeleteAccount(gomock.Any(), id.AccountID("I5")).Return(nil)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(string(audit.EventInviteCompensated), e.Action)
			s.Equal("identity create outcome unknown", e.Reason)
			return nil
		})

		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		s.Empty(saga.CompensationFailures(err))
	})

	s.Run("nothing to delete when the create never landed", func() {
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, timedOut)
		s.mockIdentity.EXPECT().ListAccounts(gomock.Any(), "").Return(&identity.Page{}, nil)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		s.Empty(saga.CompensationFailures(err))
	})

	s.Run("account claimed by a membership is kept", func() {
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, timedOut)
		s.mockIdentity.EXPECT().ListAccounts(gomock.Any(), "").Return(&identity.Page{
			Accounts: []identity.Account{{ID: "I6", Email: "a@x.com"}},
		}, nil)
		s.mockStore.EXPECT().FindTenantForAccount(gomock.Any(), id.AccountID("I6")).Return(id.TenantID("T1"), nil)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	s.Run("failed lookup is reported as a compensation failure", func() {
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, timedOut)
		s.mockIdentity.EXPECT().ListAccounts(gomock.Any(), "").Return(nil, dErrors.New(dErrors.CodeUnavailable, "circuit open"))

		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout), "the create error stays the primary error")
		s.Len(saga.CompensationFailures(err), 1)
	})

	s.Run("definite provider rejection skips the lookup", func() {
		s.mockIdentity.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeIdentityProvider, "password policy"))

		_, err := s.service.Invite(s.ctx, "requester-1", req)
		s.True(dErrors.HasCode(err, dErrors.CodeIdentityProvider))
	})
}
