package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roster/internal/identity"
	"roster/internal/membership/ban"
	"roster/internal/membership/models"
	"roster/internal/membership/store"
	"roster/internal/platform/config"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
)

// stallingProvider creates the account in its backend and then holds the response
// past the client's deadline, so the caller cannot tell whether the create landed.
type stallingProvider struct {
	backend *identity.InMemory
	stall   time.Duration
}

func (p *stallingProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := context.Background()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/admin/accounts":
		var body struct {
			Email       string `json:"email"`
			DisplayName string `json:"display_name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		created, err := p.backend.CreateAccount(ctx, body.Email, body.DisplayName, "")
		if err != nil {
			w.WriteHeader(http.StatusConflict)
			return
		}
		time.Sleep(p.stall)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(identity.Account{ID: created.AccountID, Email: body.Email})
	case r.Method == http.MethodGet && r.URL.Path == "/admin/accounts":
		page, _ := p.backend.ListAccounts(ctx, r.URL.Query().Get("page_token"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accounts":        page.Accounts,
			"next_page_token": page.NextPageToken,
		})
	case r.Method == http.MethodDelete:
		_ = p.backend.DeleteAccount(ctx, id.AccountID(strings.TrimPrefix(r.URL.Path, "/admin/accounts/")))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newStallingClient(t *testing.T, backend *identity.InMemory, stall time.Duration) *identity.HTTPClient {
	t.Helper()
	server := httptest.NewServer(&stallingProvider{backend: backend, stall: stall})
	t.Cleanup(server.Close)
	return identity.NewHTTPClient(config.Identity{
		BaseURL:          server.URL,
		SigningKey:       "test-signing-key-0123456789",
		Issuer:           "roster",
		Audience:         "identity-admin",
		TokenTTL:         time.Minute,
		RequestTimeout:   100 * time.Millisecond,
		PageSize:         50,
		BreakerFailures:  5,
		BreakerSuccesses: 1,
		BreakerCooldown:  time.Minute,
	})
}

func TestInviteTimedOutCreateLeavesNoAccount(t *testing.T) {
	backend := identity.NewInMemory()
	memberships := store.NewInMemory()
	req := models.InviteRequest{TenantID: "T1", Email: "Late@Example.com", DisplayName: "Late", Role: "closer"}

	slow := newStallingClient(t, backend, 300*time.Millisecond)
	svc := New(slow, memberships, ban.New(slow, memberships), WithCompensationTimeout(5*time.Second))

	_, err := svc.Invite(context.Background(), "requester-1", req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout), "got %v", err)

	accounts, err := identity.DrainAccounts(context.Background(), backend)
	require.NoError(t, err)
	assert.Empty(t, accounts, "no identity account may outlive a failed invite")
	assert.Equal(t, 0, memberships.Count())

	t.Run("retry against a responsive provider succeeds", func(t *testing.T) {
		fast := newStallingClient(t, backend, 0)
		retry := New(fast, memberships, ban.New(fast, memberships))

		result, err := retry.Invite(context.Background(), "requester-1", req)
		require.NoError(t, err)
		assert.Equal(t, "late@example.com", result.Membership.Email)
		assert.Equal(t, 1, backend.Len())
	})
}
