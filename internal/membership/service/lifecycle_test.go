package service

import (
	"context"

	"go.uber.org/mock/gomock"

	"roster/internal/membership/models"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/audit"
	"roster/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestBlacklist() {
	s.Run("active membership becomes blacklisted with audit trail", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.MembershipID("M1")).Return(s.membership(models.StatusActive), nil)
		s.mockStore.EXPECT().UpdateStatus(gomock.Any(), id.MembershipID("M1"),
			[]models.Status{models.StatusActive, models.StatusBlacklisted}, models.StatusBlacklisted, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.MembershipID, _ []models.Status, to models.Status, meta models.Metadata) (*models.Membership, error) {
				s.Equal("owner-1", meta[models.MetaBlacklistedBy])
				s.Equal(models.Timestamp(s.now), meta[models.MetaBlacklistedAt])
				m := s.membership(to)
				m.Metadata = m.Metadata.Merge(meta)
				return m, nil
			})
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(string(audit.EventMemberBlacklisted), e.Action)
			s.Equal(audit.CategoryCompliance, audit.AuditEvent(e.Action).Category())
			return nil
		})

		m, err := s.service.Blacklist(s.ctx, "owner-1", "M1")
		s.Require().NoError(err)
		s.Equal(models.StatusBlacklisted, m.Status)
	})

	s.Run("already blacklisted is a no-op", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.MembershipID("M1")).Return(s.membership(models.StatusBlacklisted), nil)

		m, err := s.service.Blacklist(s.ctx, "owner-1", "M1")
		s.Require().NoError(err)
		s.Equal(models.StatusBlacklisted, m.Status)
	})

	s.Run("removed membership cannot be blacklisted", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.MembershipID("M1")).Return(s.membership(models.StatusRemoved), nil)

		_, err := s.service.Blacklist(s.ctx, "owner-1", "M1")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown membership is not found", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.MembershipID("M404")).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Blacklist(s.ctx, "owner-1", "M404")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("concurrent status change surfaces as conflict", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.MembershipID("M1")).Return(s.membership(models.StatusActive), nil)
		s.mockStore.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, sentinel.ErrInvalidState)

		_, err := s.service.Blacklist(s.ctx, "owner-1", "M1")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestRemove() {
	s.Run("delegates to the coordinator with ban metadata", func() {
		s.mockBans.EXPECT().Remove(gomock.Any(), id.MembershipID("M1"), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.MembershipID, meta models.Metadata) (*models.Membership, error) {
				s.Equal("owner-1", meta[models.MetaBannedBy])
				s.Equal(models.Timestamp(s.now), meta[models.MetaBannedAt])
				s.Equal(models.BanReasonMemberRemoved, meta[models.MetaBanReason])
				return s.membership(models.StatusRemoved), nil
			})
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(string(audit.EventMemberRemoved), e.Action)
			s.Equal(models.BanReasonMemberRemoved, e.Reason)
			s.Equal(id.TenantID("T1"), e.TenantID)
			return nil
		})

		m, err := s.service.Remove(s.ctx, "owner-1", "M1")
		s.Require().NoError(err)
		s.Equal(models.StatusRemoved, m.Status)
	})

	s.Run("coordinator errors pass through unchanged", func() {
		s.mockBans.EXPECT().Remove(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeTimeout, "identity provider timed out"))

		_, err := s.service.Remove(s.ctx, "owner-1", "M1")
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	s.Run("membership without identity is counted", func() {
		m := s.membership(models.StatusRemoved)
		m.IdentityAccountID = ""
		s.mockBans.EXPECT().Remove(gomock.Any(), gomock.Any(), gomock.Any()).Return(m, nil)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.Remove(s.ctx, "owner-1", "M1")
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestRestore() {
	s.Run("delegates to the coordinator with restore metadata", func() {
		s.mockBans.EXPECT().Restore(gomock.Any(), id.MembershipID("M1"), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.MembershipID, meta models.Metadata) (*models.Membership, error) {
				s.Equal("owner-1", meta[models.MetaRestoredBy])
				s.Equal(models.Timestamp(s.now), meta[models.MetaRestoredAt])
				return s.membership(models.StatusActive), nil
			})
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		m, err := s.service.Restore(s.ctx, "owner-1", "M1")
		s.Require().NoError(err)
		s.Equal(models.StatusActive, m.Status)
	})

	s.Run("conflict from the coordinator passes through", func() {
		s.mockBans.EXPECT().Restore(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "blacklisted"))

		_, err := s.service.Restore(s.ctx, "owner-1", "M1")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
