// Package ban keeps a membership's status and its identity account's disabled flag
// moving together. Neither side is transactional with the other, so the order of the
// two writes is chosen per direction:
//
//   - remove disables the identity account before marking the membership removed, so a
//     failure between the two leaves a member who cannot log in but still looks active;
//   - restore marks the membership active before re-enabling the identity account, so a
//     failure leaves a member who looks active but cannot log in yet.
//
// Both directions are idempotent and can be retried until they converge. The
// reconciliation auditor reports whatever a crash leaves behind.
package ban

import (
	"context"
	"errors"
	"log/slog"

	"roster/internal/identity"
	"roster/internal/membership/models"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/sentinel"
)

// IdentityDisabler flips the disabled flag on an identity account.
type IdentityDisabler interface {
	SetDisabled(ctx context.Context, accountID id.AccountID, disabled bool, reason string) error
}

// Store is the slice of the membership store the coordinator writes through.
type Store interface {
	FindByID(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error)
	UpdateStatus(ctx context.Context, membershipID id.MembershipID, from []models.Status, to models.Status, meta models.Metadata) (*models.Membership, error)
}

type Coordinator struct {
	identity IdentityDisabler
	store    Store
	logger   *slog.Logger
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(identity IdentityDisabler, store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		identity: identity,
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Remove disables the linked identity account and then marks the membership removed.
// Removing an already removed membership re-applies the disable and leaves the record
// unchanged.
func (c *Coordinator) Remove(ctx context.Context, membershipID id.MembershipID, meta models.Metadata) (*models.Membership, error) {
	m, transition, err := c.load(ctx, models.OpRemove, membershipID)
	if err != nil {
		return nil, err
	}

	if err := c.applyIdentity(ctx, m, transition.Identity); err != nil {
		return nil, err
	}
	if m.Status == transition.Target {
		return m, nil
	}
	return c.writeStatus(ctx, m, transition, meta)
}

// Restore marks the membership active and then re-enables the linked identity account.
// Restoring an active membership only re-applies the enable, which lets a restore that
// failed halfway be retried.
func (c *Coordinator) Restore(ctx context.Context, membershipID id.MembershipID, meta models.Metadata) (*models.Membership, error) {
	m, transition, err := c.load(ctx, models.OpRestore, membershipID)
	if err != nil {
		return nil, err
	}

	updated := m
	if m.Status != transition.Target {
		updated, err = c.writeStatus(ctx, m, transition, meta)
		if err != nil {
			return nil, err
		}
	}
	if err := c.applyIdentity(ctx, updated, transition.Identity); err != nil {
		return nil, err
	}
	return updated, nil
}

// SyncIdentity sets the identity account's disabled flag to match the membership's
// current status. It never touches the membership record.
func (c *Coordinator) SyncIdentity(ctx context.Context, m *models.Membership) error {
	effect := models.IdentityEnable
	if m.Status.WantsIdentityDisabled() {
		effect = models.IdentityDisable
	}
	return c.applyIdentity(ctx, m, effect)
}

func (c *Coordinator) load(ctx context.Context, op models.Operation, membershipID id.MembershipID) (*models.Membership, models.Transition, error) {
	m, err := c.store.FindByID(ctx, membershipID)
	if err != nil {
		return nil, models.Transition{}, storeError(err, "failed to load membership")
	}
	transition, err := models.CheckTransition(op, m.Status)
	if err != nil {
		return nil, models.Transition{}, dErrors.Wrap(err, dErrors.CodeConflict,
			"membership is "+string(m.Status)+" and cannot be "+pastTense(op))
	}
	return m, transition, nil
}

func (c *Coordinator) writeStatus(ctx context.Context, m *models.Membership, t models.Transition, meta models.Metadata) (*models.Membership, error) {
	updated, err := c.store.UpdateStatus(ctx, m.ID, t.Sources, t.Target, meta)
	if err != nil {
		return nil, storeError(err, "failed to update membership status")
	}
	return updated, nil
}

func (c *Coordinator) applyIdentity(ctx context.Context, m *models.Membership, effect models.IdentityEffect) error {
	if effect == models.IdentityUntouched {
		return nil
	}
	if !m.HasIdentity() {
		c.logger.WarnContext(ctx, "membership has no identity account; skipping identity update",
			"membership_id", m.ID,
			"tenant_id", m.TenantID,
			"status", m.Status,
		)
		return nil
	}

	disabled := effect == models.IdentityDisable
	reason := identity.ReasonMemberRestored
	if disabled {
		reason = identity.ReasonMemberRemoved
	}
	err := c.identity.SetDisabled(ctx, m.IdentityAccountID, disabled, reason)
	if err == nil {
		return nil
	}
	// An account that no longer exists cannot log in, which is what disable wants.
	if disabled && dErrors.HasCode(err, dErrors.CodeNotFound) {
		c.logger.WarnContext(ctx, "identity account missing while disabling",
			"membership_id", m.ID,
			"identity_account_id", m.IdentityAccountID,
		)
		return nil
	}
	if dErrors.CodeOf(err) != "" {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeIdentityProvider, "failed to update identity account")
}

// storeError translates store sentinels into domain errors.
func storeError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "membership not found")
	case errors.Is(err, sentinel.ErrInvalidState), errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "membership changed concurrently")
	case errors.Is(err, sentinel.ErrTimeout):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func pastTense(op models.Operation) string {
	switch op {
	case models.OpBlacklist:
		return "blacklisted"
	case models.OpRemove:
		return "removed"
	case models.OpRestore:
		return "restored"
	default:
		return string(op)
	}
}
