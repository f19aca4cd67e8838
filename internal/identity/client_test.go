package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"roster/internal/platform/config"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/circuit"
)

// fakeProvider serves the admin API on top of an InMemory provider.
type fakeProvider struct {
	backend  *InMemory
	override atomic.Pointer[http.HandlerFunc]
	requests atomic.Int32
	lastAuth   atomic.Value
	lastCreate atomic.Pointer[createAccountRequest]
	lastPatch  atomic.Pointer[setDisabledRequest]
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	f.lastAuth.Store(r.Header.Get("Authorization"))
	if h := f.override.Load(); h != nil {
		(*h)(w, r)
		return
	}
	ctx := r.Context()
	accountID := id.AccountID(strings.TrimPrefix(r.URL.Path, accountsPath+"/"))
	switch {
	case r.Method == http.MethodPost && r.URL.Path == accountsPath:
		var body createAccountRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastCreate.Store(&body)
		created, err := f.backend.CreateAccount(ctx, body.Email, body.DisplayName, "")
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: providerCodeEmailExists, Message: "email exists"})
			return
		}
		account, _ := f.backend.GetAccount(ctx, created.AccountID)
		writeJSON(w, http.StatusCreated, account)
	case r.Method == http.MethodGet && r.URL.Path == accountsPath:
		page, _ := f.backend.ListAccounts(ctx, r.URL.Query().Get("page_token"))
		writeJSON(w, http.StatusOK, listAccountsResponse{Accounts: page.Accounts, NextPageToken: page.NextPageToken})
	case r.Method == http.MethodGet:
		account, err := f.backend.GetAccount(ctx, accountID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, apiError{Code: "not_found", Message: "no such account"})
			return
		}
		writeJSON(w, http.StatusOK, account)
	case r.Method == http.MethodPatch:
		var body setDisabledRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastPatch.Store(&body)
		if err := f.backend.SetDisabled(ctx, accountID, body.Disabled, body.Reason); err != nil {
			writeJSON(w, http.StatusNotFound, apiError{Code: "not_found", Message: "no such account"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodDelete:
		if _, err := f.backend.GetAccount(ctx, accountID); err != nil {
			writeJSON(w, http.StatusNotFound, apiError{Code: "not_found", Message: "no such account"})
			return
		}
		_ = f.backend.DeleteAccount(ctx, accountID)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeProvider) respond(h http.HandlerFunc) {
	f.override.Store(&h)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type HTTPClientSuite struct {
	suite.Suite
	provider *fakeProvider
	server   *httptest.Server
	cfg      config.Identity
	client   *HTTPClient
	ctx      context.Context
}

func TestHTTPClientSuite(t *testing.T) {
	suite.Run(t, new(HTTPClientSuite))
}

func (s *HTTPClientSuite) SetupTest() {
	s.provider = &fakeProvider{backend: NewInMemory(WithPageSize(2))}
	s.server = httptest.NewServer(s.provider)
	s.cfg = config.Identity{
		BaseURL:          s.server.URL,
		SigningKey:       "test-signing-key-0123456789",
		Issuer:           "roster",
		Audience:         "identity-admin",
		TokenTTL:         time.Minute,
		RequestTimeout:   5 * time.Second,
		PageSize:         2,
		ReadRetries:      2,
		BreakerFailures:  3,
		BreakerSuccesses: 1,
		BreakerCooldown:  time.Hour,
	}
	s.client = NewHTTPClient(s.cfg)
	s.ctx = context.Background()
}

func (s *HTTPClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *HTTPClientSuite) TestCreateAccount() {
	s.Run("returns the new account and the generated secret", func() {
		created, err := s.client.CreateAccount(s.ctx, "ada@example.com", "Ada", "member")
		s.Require().NoError(err)
		s.False(created.AccountID.IsZero())
		s.GreaterOrEqual(len(created.Secret), MinSecretLength)

		sent := s.provider.lastCreate.Load()
		s.Require().NotNil(sent)
		s.Equal(created.Secret, sent.Password)
		s.True(sent.EmailConfirmed)
		s.True(strings.HasPrefix(s.provider.lastAuth.Load().(string), "Bearer "))
	})

	s.Run("duplicate email is a conflict", func() {
		_, err := s.client.CreateAccount(s.ctx, "ADA@example.com", "Ada again", "member")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
		s.Equal(1, s.provider.backend.Len())
	})

	s.Run("other rejections carry the provider message", func() {
		s.provider.respond(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusBadRequest, apiError{Code: "weak_password", Message: "password too weak"})
		})
		_, err := s.client.CreateAccount(s.ctx, "grace@example.com", "Grace", "member")
		s.True(dErrors.HasCode(err, dErrors.CodeIdentityProvider))
		s.Contains(err.Error(), "password too weak")
	})
}

func (s *HTTPClientSuite) TestWritesAreNotRetried() {
	s.provider.respond(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := s.client.CreateAccount(s.ctx, "ada@example.com", "Ada", "member")
	s.True(dErrors.HasCode(err, dErrors.CodeIdentityProvider))
	s.Equal(int32(1), s.provider.requests.Load())
}

func (s *HTTPClientSuite) TestReadsAreRetried() {
	var calls atomic.Int32
	s.provider.respond(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, Account{ID: "I1", Email: "ada@example.com"})
	})
	account, err := s.client.GetAccount(s.ctx, "I1")
	s.Require().NoError(err)
	s.Equal(id.AccountID("I1"), account.ID)
	s.Equal(int32(3), calls.Load())
}

func (s *HTTPClientSuite) TestDeleteAccount() {
	created, err := s.client.CreateAccount(s.ctx, "ada@example.com", "Ada", "member")
	s.Require().NoError(err)

	s.Require().NoError(s.client.DeleteAccount(s.ctx, created.AccountID))
	s.Equal(0, s.provider.backend.Len())

	s.Run("missing account counts as deleted", func() {
		s.NoError(s.client.DeleteAccount(s.ctx, created.AccountID))
	})
}

func (s *HTTPClientSuite) TestSetDisabled() {
	created, err := s.client.CreateAccount(s.ctx, "ada@example.com", "Ada", "member")
	s.Require().NoError(err)

	s.Require().NoError(s.client.SetDisabled(s.ctx, created.AccountID, true, ReasonMemberRemoved))
	account, err := s.client.GetAccount(s.ctx, created.AccountID)
	s.Require().NoError(err)
	s.True(account.Disabled)
	sent := s.provider.lastPatch.Load()
	s.Require().NotNil(sent)
	s.True(sent.Disabled)
	s.Equal(ReasonMemberRemoved, sent.Reason)
	s.Require().NotNil(s.provider.lastCreate.Load(), "create and patch bodies are recorded separately")

	s.Run("matching state skips the write", func() {
		before := s.provider.requests.Load()
		s.Require().NoError(s.client.SetDisabled(s.ctx, created.AccountID, true, ReasonMemberRemoved))
		s.Equal(before+1, s.provider.requests.Load(), "only the read should reach the provider")
	})

	s.Run("re-enable clears the flag", func() {
		s.Require().NoError(s.client.SetDisabled(s.ctx, created.AccountID, false, ReasonMemberRestored))
		account, err := s.client.GetAccount(s.ctx, created.AccountID)
		s.Require().NoError(err)
		s.False(account.Disabled)
	})

	s.Run("unknown account is not found", func() {
		err := s.client.SetDisabled(s.ctx, "missing", true, ReasonMemberRemoved)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *HTTPClientSuite) TestTimeout() {
	s.cfg.RequestTimeout = 100 * time.Millisecond
	s.client = NewHTTPClient(s.cfg)
	s.provider.respond(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})
	err := s.client.DeleteAccount(s.ctx, "I1")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout), "got %v", err)
}

func (s *HTTPClientSuite) TestBreakerOpensAfterRepeatedFailures() {
	var opened atomic.Bool
	s.client = NewHTTPClient(s.cfg, WithStateObserver(func(st circuit.State) {
		opened.Store(st == circuit.StateOpen)
	}))
	s.provider.respond(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	for i := 0; i < s.cfg.BreakerFailures; i++ {
		err := s.client.DeleteAccount(s.ctx, "I1")
		s.True(dErrors.HasCode(err, dErrors.CodeIdentityProvider))
	}
	s.True(opened.Load())

	before := s.provider.requests.Load()
	err := s.client.DeleteAccount(s.ctx, "I1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(before, s.provider.requests.Load())
}

func (s *HTTPClientSuite) TestListAndDrain() {
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := s.client.CreateAccount(s.ctx, email, "x", "member")
		s.Require().NoError(err)
	}

	first, err := s.client.ListAccounts(s.ctx, "")
	s.Require().NoError(err)
	s.Len(first.Accounts, 2)
	s.NotEmpty(first.NextPageToken)

	all, err := DrainAccounts(s.ctx, s.client)
	s.Require().NoError(err)
	s.Len(all, 3)
}
