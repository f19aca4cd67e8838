package identity

import (
	"time"

	id "roster/pkg/domain"
)

// Account is the identity provider's view of a login.
type Account struct {
	ID          id.AccountID   `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name,omitempty"`
	Disabled    bool           `json:"disabled"`
	DisabledAt  *time.Time     `json:"disabled_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CreatedAccount is returned once by CreateAccount. Secret is the generated initial
// credential; it is handed to the caller and never stored by this service.
type CreatedAccount struct {
	AccountID id.AccountID
	Secret    string
}

// Page is one page of ListAccounts. An empty NextPageToken ends the listing.
type Page struct {
	Accounts      []Account
	NextPageToken string
}

// Disable reasons recorded with the provider.
const (
	ReasonMemberRemoved  = "team_member_removed"
	ReasonMemberRestored = "team_member_restored"
	ReasonReconciled     = "reconciliation"
)
