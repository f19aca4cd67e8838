package models

import (
	"strings"

	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
)

// InviteRequest carries the caller's invite input. TenantID is optional; when empty
// the tenant is resolved from the requester's own membership.
type InviteRequest struct {
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Role        string      `json:"role"`
	TenantID    id.TenantID `json:"tenant_id,omitempty"`
}

// Normalize trims whitespace and lowercases the email.
func (r *InviteRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Role = strings.TrimSpace(r.Role)
	r.TenantID = id.TenantID(strings.TrimSpace(string(r.TenantID)))
}

// Validate checks presence of required fields after Normalize.
func (r *InviteRequest) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !strings.Contains(r.Email, "@") {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if r.DisplayName == "" {
		return dErrors.New(dErrors.CodeValidation, "display name is required")
	}
	return nil
}

// InviteResult is returned once by invite. Secret is never stored.
type InviteResult struct {
	Membership *Membership `json:"membership"`
	Secret     string      `json:"secret"`
}
