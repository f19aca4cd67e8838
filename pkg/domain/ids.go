package domain

import (
	"strings"

	dErrors "roster/pkg/domain-errors"
)

// TenantID identifies a CRM tenant. Tenants are provisioned outside this module,
// so the value is opaque.
type TenantID string

// MembershipID identifies a membership row. Assigned by the membership store.
type MembershipID string

// AccountID identifies an identity-provider account. Assigned by the provider and
// immutable; requesters are identified by their account ID.
type AccountID string

func (t TenantID) String() string     { return string(t) }
func (m MembershipID) String() string { return string(m) }
func (a AccountID) String() string    { return string(a) }

func (t TenantID) IsZero() bool     { return t == "" }
func (m MembershipID) IsZero() bool { return m == "" }
func (a AccountID) IsZero() bool    { return a == "" }

// ParseTenantID trims and validates a tenant identifier.
func ParseTenantID(s string) (TenantID, error) {
	v, err := parseOpaque(s, "tenant ID")
	return TenantID(v), err
}

// ParseMembershipID trims and validates a membership identifier.
func ParseMembershipID(s string) (MembershipID, error) {
	v, err := parseOpaque(s, "membership ID")
	return MembershipID(v), err
}

// ParseAccountID trims and validates an identity account identifier.
func ParseAccountID(s string) (AccountID, error) {
	v, err := parseOpaque(s, "account ID")
	return AccountID(v), err
}

func parseOpaque(s, name string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, name+" cannot be empty")
	}
	if len(s) > 255 {
		return "", dErrors.New(dErrors.CodeInvalidInput, name+" is too long")
	}
	return s, nil
}
