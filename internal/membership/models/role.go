package models

import (
	"sort"
	"strings"

	dErrors "roster/pkg/domain-errors"
)

// Role is a tenant-facing role name. The set of accepted roles comes from
// configuration and is closed at startup.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCloser  Role = "closer"
	RoleSDR     Role = "sdr"
	RoleMember  Role = "member"
)

// RoleSet is the closed set of roles accepted by invite.
type RoleSet struct {
	roles map[Role]struct{}
}

// NewRoleSet builds a RoleSet from configured names (trimmed, lowercased).
func NewRoleSet(names []string) RoleSet {
	rs := RoleSet{roles: make(map[Role]struct{}, len(names))}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			rs.roles[Role(n)] = struct{}{}
		}
	}
	return rs
}

// DefaultRoleSet accepts the built-in roles.
func DefaultRoleSet() RoleSet {
	return NewRoleSet([]string{
		string(RoleOwner), string(RoleAdmin), string(RoleManager),
		string(RoleCloser), string(RoleSDR), string(RoleMember),
	})
}

// Parse normalizes and validates a role name.
func (rs RoleSet) Parse(v string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(v)))
	if r == "" {
		return "", dErrors.New(dErrors.CodeValidation, "role is required")
	}
	if _, ok := rs.roles[r]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "role "+string(r)+" is not allowed")
	}
	return r, nil
}

// Names returns the roles in sorted order.
func (rs RoleSet) Names() []string {
	out := make([]string, 0, len(rs.roles))
	for r := range rs.roles {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}
