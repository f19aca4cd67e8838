package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"roster/internal/identity"
	"roster/internal/membership/models"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/audit"
	"roster/pkg/platform/saga"
	"roster/pkg/platform/sentinel"
	"roster/pkg/requestcontext"
)

const (
	stepCreateIdentity   = "create_identity_account"
	stepInsertMembership = "insert_membership"
)

// Invite creates an identity account and the membership that references it.
//
// If the membership insert fails the identity account is deleted before the error is
// returned. A create that timed out may still have produced an account, so the
// account is then looked up by email and deleted unless a membership claims it. A failed deletion is logged and attached to the returned error (see
// saga.CompensationFailures) without replacing it. The generated secret is returned
// only here and is never persisted.
func (s *Service) Invite(ctx context.Context, requesterID id.AccountID, req models.InviteRequest) (result *models.InviteResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "invite", attribute.String("requester_id", requesterID.String()))
	defer func() {
		endSpan(span, err)
		s.observe("invite", err, start)
	}()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	role, err := s.roles.Parse(req.Role)
	if err != nil {
		return nil, err
	}
	tenantID, err := s.resolveTenant(ctx, requesterID, req.TenantID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant_id", tenantID.String()))

	var (
		created    *identity.CreatedAccount
		membership *models.Membership
	)
	flow := saga.New(
		saga.WithCompensationTimeout(s.compensationTimeout),
		saga.WithCompensationHook(s.onCompensation(tenantID, req.Email, func() bool { return created == nil })),
	)
	flow.Add(saga.Step{
		Name: stepCreateIdentity,
		Action: func(ctx context.Context) error {
			var err error
			created, err = s.identity.CreateAccount(ctx, req.Email, req.DisplayName, string(role))
			if err != nil {
				return identityError(err, "failed to create identity account")
			}
			return nil
		},
		Compensate: func(ctx context.Context) error {
			if created != nil {
				return s.identity.DeleteAccount(ctx, created.AccountID)
			}
			return s.deleteUnclaimedAccount(ctx, req.Email)
		},
		Indeterminate: func(err error) bool {
			return dErrors.HasCode(err, dErrors.CodeTimeout)
		},
	})
	flow.Add(saga.Step{
		Name: stepInsertMembership,
		Action: func(ctx context.Context) error {
			now := requestcontext.Now(ctx)
			m, err := models.NewMembership(s.newID(), tenantID, created.AccountID, req.DisplayName, req.Email, role, requesterID, now)
			if err != nil {
				return err
			}
			m.Metadata[models.MetaInvitedRole] = string(role)
			if err := s.memberships.Insert(ctx, m); err != nil {
				return storeError(err, "failed to insert membership")
			}
			membership = m
			return nil
		},
	})

	if err := flow.Run(ctx); err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventMemberInvited, tenantID,
		"membership_id", membership.ID.String(),
		"identity_account_id", membership.IdentityAccountID.String(),
		"requester_id", requesterID.String(),
		"role", string(role),
	)
	return &models.InviteResult{Membership: membership, Secret: created.Secret}, nil
}

// resolveTenant uses the explicit tenant when given, otherwise the tenant of the
// requester's own membership.
func (s *Service) resolveTenant(ctx context.Context, requesterID id.AccountID, explicit id.TenantID) (id.TenantID, error) {
	if !explicit.IsZero() {
		return explicit, nil
	}
	if requesterID.IsZero() {
		return "", dErrors.New(dErrors.CodeTenantResolution, "no tenant given and no requester to resolve one from")
	}
	tenantID, err := s.memberships.FindTenantForAccount(ctx, requesterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeTenantResolution, "requester has no membership to resolve a tenant from")
		}
		return "", storeError(err, "failed to resolve tenant")
	}
	return tenantID, nil
}

// deleteUnclaimedAccount removes the account registered under email when no
// membership references it. An account that a membership claims belongs to a
// concurrent invite that won the email and is left alone.
func (s *Service) deleteUnclaimedAccount(ctx context.Context, email string) error {
	account, err := identity.FindAccountByEmail(ctx, s.identity, email)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil
		}
		return err
	}
	_, err = s.memberships.FindTenantForAccount(ctx, account.ID)
	switch {
	case err == nil:
		if s.logger != nil {
			s.logger.WarnContext(ctx, "identity account for timed out invite is claimed by a membership; keeping it",
				"identity_account_id", account.ID,
			)
		}
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return s.identity.DeleteAccount(ctx, account.ID)
	default:
		return err
	}
}

func (s *Service) onCompensation(tenantID id.TenantID, email string, createUnknown func() bool) saga.Hook {
	return func(ctx context.Context, step string, err error) {
		if s.metrics != nil {
			s.metrics.IncrementCompensation(step, err)
		}
		if err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "invite compensation failed; identity account may be orphaned",
					"step", step,
					"tenant_id", tenantID,
					"email", email,
					"error", err,
				)
			}
			return
		}
		reason := "membership insert failed"
		if createUnknown() {
			reason = "identity create outcome unknown"
		}
		s.logAudit(ctx, audit.EventInviteCompensated, tenantID,
			"step", step,
			"reason", reason,
		)
	}
}
