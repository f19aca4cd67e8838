package models

import (
	"maps"
	"strings"
	"time"

	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
)

// Metadata is the free-form audit trail kept on a membership row.
type Metadata map[string]any

// Audit-trail keys written by the lifecycle operations. Timestamps are stored as
// RFC 3339 strings so they round-trip through JSONB unchanged.
const (
	MetaCreatedBy     = "createdBy"
	MetaCreatedAt     = "createdAt"
	MetaInvitedRole   = "invitedRole"
	MetaBlacklistedBy = "blacklistedBy"
	MetaBlacklistedAt = "blacklistedAt"
	MetaBannedBy      = "bannedBy"
	MetaBannedAt      = "bannedAt"
	MetaBanReason     = "banReason"
	MetaRestoredBy    = "restoredBy"
	MetaRestoredAt    = "restoredAt"
)

// BanReasonMemberRemoved is the fixed reason code recorded by remove.
const BanReasonMemberRemoved = "team_member_removed"

// Membership is a tenant's record of a team member.
//
// Invariants:
//   - TenantID, Email and Status are always set
//   - IdentityAccountID is assigned once at creation and never reassigned;
//     the zero value means no linked identity account
//   - at most one membership per tenant references a given identity account
//   - Status = removed implies the linked identity account is disabled once no
//     operation is in flight (checked by the reconciliation auditor)
type Membership struct {
	ID                id.MembershipID `json:"id"`
	TenantID          id.TenantID     `json:"tenant_id"`
	IdentityAccountID id.AccountID    `json:"identity_account_id,omitempty"`
	DisplayName       string          `json:"display_name"`
	Email             string          `json:"email"`
	Role              Role            `json:"role"`
	Status            Status          `json:"status"`
	Metadata          Metadata        `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewMembership builds an active membership and stamps the creation audit trail.
func NewMembership(
	membershipID id.MembershipID,
	tenantID id.TenantID,
	accountID id.AccountID,
	displayName string,
	email string,
	role Role,
	createdBy id.AccountID,
	now time.Time,
) (*Membership, error) {
	if membershipID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "membership ID cannot be empty")
	}
	if tenantID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant ID cannot be empty")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email cannot be empty")
	}
	if role == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role cannot be empty")
	}
	return &Membership{
		ID:                membershipID,
		TenantID:          tenantID,
		IdentityAccountID: accountID,
		DisplayName:       displayName,
		Email:             email,
		Role:              role,
		Status:            StatusActive,
		Metadata: Metadata{
			MetaCreatedBy: createdBy.String(),
			MetaCreatedAt: Timestamp(now),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasIdentity reports whether the membership links an identity account.
func (m *Membership) HasIdentity() bool {
	return !m.IdentityAccountID.IsZero()
}

// Clone returns a deep-enough copy for stores that hand out values.
func (m *Membership) Clone() *Membership {
	if m == nil {
		return nil
	}
	c := *m
	c.Metadata = maps.Clone(m.Metadata)
	return &c
}

// Merge returns m with patch applied over it.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := make(Metadata, len(m)+len(patch))
	maps.Copy(out, m)
	maps.Copy(out, patch)
	return out
}

// Timestamp formats a metadata timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
