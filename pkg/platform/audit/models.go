package audit

import (
	"context"
	"time"

	id "roster/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers membership changes with contractual significance
	// (who was given or lost access to a tenant, and who decided it).
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to access revocation and drift.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine batch activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory     `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	TenantID  id.TenantID       `json:"tenant_id,omitempty"`
	Subject   string            `json:"subject"`
	Action    string            `json:"action"`
	Reason    string            `json:"reason,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	// ActorID is the identity account of whoever triggered the action.
	// Batch jobs use a fixed system actor.
	ActorID    string            `json:"actor_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type AuditEvent string

const (
	// Membership lifecycle
	EventMemberInvited     AuditEvent = "member_invited"
	EventInviteCompensated AuditEvent = "invite_compensated"
	EventMemberBlacklisted AuditEvent = "member_blacklisted"
	EventMemberRemoved     AuditEvent = "member_removed"
	EventMemberRestored    AuditEvent = "member_restored"

	// Reconciliation
	EventReconciliationCompleted AuditEvent = "reconciliation_completed"
	EventRemediationApplied      AuditEvent = "remediation_applied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventMemberInvited:     CategoryCompliance,
	EventMemberBlacklisted: CategoryCompliance,
	EventMemberRemoved:     CategoryCompliance,
	EventMemberRestored:    CategoryCompliance,

	EventInviteCompensated:  CategorySecurity,
	EventRemediationApplied: CategorySecurity,

	EventReconciliationCompleted: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
