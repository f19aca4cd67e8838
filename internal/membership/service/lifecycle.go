package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"roster/internal/membership/models"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/audit"
	"roster/pkg/requestcontext"
)

// Blacklist excludes a member from tenant operations. The identity account is left
// enabled. Blacklisting an already blacklisted member succeeds without a write.
func (s *Service) Blacklist(ctx context.Context, requesterID id.AccountID, membershipID id.MembershipID) (m *models.Membership, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, string(models.OpBlacklist), membershipAttrs(requesterID, membershipID)...)
	defer func() {
		endSpan(span, err)
		s.observe(string(models.OpBlacklist), err, start)
	}()

	current, err := s.memberships.FindByID(ctx, membershipID)
	if err != nil {
		return nil, storeError(err, "failed to load membership")
	}
	transition, err := models.CheckTransition(models.OpBlacklist, current.Status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "membership is "+string(current.Status)+" and cannot be blacklisted")
	}
	if current.Status == transition.Target {
		return current, nil
	}

	now := requestcontext.Now(ctx)
	m, err = s.memberships.UpdateStatus(ctx, membershipID, transition.Sources, transition.Target, models.Metadata{
		models.MetaBlacklistedBy: requesterID.String(),
		models.MetaBlacklistedAt: models.Timestamp(now),
	})
	if err != nil {
		return nil, storeError(err, "failed to blacklist membership")
	}

	s.logAudit(ctx, audit.EventMemberBlacklisted, m.TenantID,
		"membership_id", m.ID.String(),
		"requester_id", requesterID.String(),
	)
	return m, nil
}

// Remove revokes a member's access: the identity account is disabled and the
// membership is marked removed. Removing twice is a no-op.
func (s *Service) Remove(ctx context.Context, requesterID id.AccountID, membershipID id.MembershipID) (m *models.Membership, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, string(models.OpRemove), membershipAttrs(requesterID, membershipID)...)
	defer func() {
		endSpan(span, err)
		s.observe(string(models.OpRemove), err, start)
	}()

	now := requestcontext.Now(ctx)
	m, err = s.bans.Remove(ctx, membershipID, models.Metadata{
		models.MetaBannedBy:  requesterID.String(),
		models.MetaBannedAt:  models.Timestamp(now),
		models.MetaBanReason: models.BanReasonMemberRemoved,
	})
	if err != nil {
		return nil, err
	}
	s.warnMissingIdentity(ctx, m, models.OpRemove)

	s.logAudit(ctx, audit.EventMemberRemoved, m.TenantID,
		"membership_id", m.ID.String(),
		"identity_account_id", m.IdentityAccountID.String(),
		"requester_id", requesterID.String(),
		"reason", models.BanReasonMemberRemoved,
	)
	return m, nil
}

// Restore re-admits a removed member: the membership is marked active and the
// identity account is re-enabled.
func (s *Service) Restore(ctx context.Context, requesterID id.AccountID, membershipID id.MembershipID) (m *models.Membership, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, string(models.OpRestore), membershipAttrs(requesterID, membershipID)...)
	defer func() {
		endSpan(span, err)
		s.observe(string(models.OpRestore), err, start)
	}()

	now := requestcontext.Now(ctx)
	m, err = s.bans.Restore(ctx, membershipID, models.Metadata{
		models.MetaRestoredBy: requesterID.String(),
		models.MetaRestoredAt: models.Timestamp(now),
	})
	if err != nil {
		return nil, err
	}
	s.warnMissingIdentity(ctx, m, models.OpRestore)

	s.logAudit(ctx, audit.EventMemberRestored, m.TenantID,
		"membership_id", m.ID.String(),
		"identity_account_id", m.IdentityAccountID.String(),
		"requester_id", requesterID.String(),
	)
	return m, nil
}

func membershipAttrs(requesterID id.AccountID, membershipID id.MembershipID) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("requester_id", requesterID.String()),
		attribute.String("membership_id", membershipID.String()),
	}
}
