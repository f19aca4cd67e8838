package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"roster/internal/platform/config"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/circuit"
)

const (
	accountsPath = "/admin/accounts"
	accountPath  = "/admin/accounts/{id}"

	providerCodeEmailExists = "email_exists"
)

// HTTPClient talks to the identity provider's admin REST API.
//
// Reads go through a client that retries transport errors and 5xx responses.
// Writes use a separate client with retries disabled: a create that timed out may
// have succeeded, and repeating it would mint a second account.
type HTTPClient struct {
	reads        *resty.Client
	writes       *resty.Client
	tokens       TokenSource
	breaker      *circuit.Breaker
	timeout      time.Duration
	pageSize     int
	secretLength int
	logger       *slog.Logger
	onState      func(circuit.State)
}

type Option func(*HTTPClient)

func WithLogger(logger *slog.Logger) Option {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTokenSource(tokens TokenSource) Option {
	return func(c *HTTPClient) {
		c.tokens = tokens
	}
}

func WithSecretLength(n int) Option {
	return func(c *HTTPClient) {
		if n >= MinSecretLength {
			c.secretLength = n
		}
	}
}

// WithStateObserver is called whenever the breaker opens or closes.
func WithStateObserver(fn func(circuit.State)) Option {
	return func(c *HTTPClient) {
		c.onState = fn
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *HTTPClient) {
		if b != nil {
			c.breaker = b
		}
	}
}

func NewHTTPClient(cfg config.Identity, opts ...Option) *HTTPClient {
	reads := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.ReadRetries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
			}
			return r.StatusCode() >= http.StatusInternalServerError
		})
	writes := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	c := &HTTPClient{
		reads:  reads,
		writes: writes,
		tokens: NewServiceTokenSource(cfg.SigningKey, cfg.Issuer, cfg.Audience, cfg.TokenTTL),
		breaker: circuit.New("identity_provider",
			circuit.WithFailureThreshold(cfg.BreakerFailures),
			circuit.WithSuccessThreshold(cfg.BreakerSuccesses),
			circuit.WithCooldown(cfg.BreakerCooldown),
		),
		timeout:      cfg.RequestTimeout,
		pageSize:     cfg.PageSize,
		secretLength: MinSecretLength,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breaker exposes the client's circuit breaker for health reporting.
func (c *HTTPClient) Breaker() *circuit.Breaker {
	return c.breaker
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createAccountRequest struct {
	Email          string         `json:"email"`
	Password       string         `json:"password"`
	DisplayName    string         `json:"display_name"`
	EmailConfirmed bool           `json:"email_confirmed"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type setDisabledRequest struct {
	Disabled bool   `json:"disabled"`
	Reason   string `json:"disabled_reason,omitempty"`
}

type listAccountsResponse struct {
	Accounts      []Account `json:"accounts"`
	NextPageToken string    `json:"next_page_token"`
}

// CreateAccount creates a login with a freshly generated secret. A duplicate email
// surfaces as CodeConflict.
func (c *HTTPClient) CreateAccount(ctx context.Context, email, displayName, role string) (*CreatedAccount, error) {
	secret, err := GenerateSecret(c.secretLength)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate secret")
	}

	var created Account
	var apiErr apiError
	resp, err := c.do(ctx, "create_account", func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetBody(createAccountRequest{
				Email:          email,
				Password:       secret,
				DisplayName:    displayName,
				EmailConfirmed: true,
				Metadata:       map[string]any{"role": role},
			}).
			SetResult(&created).
			SetError(&apiErr).
			Post(accountsPath)
	}, c.writes)
	if err != nil {
		return nil, err
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusOK || status == http.StatusCreated:
	case status == http.StatusConflict,
		status == http.StatusUnprocessableEntity && apiErr.Code == providerCodeEmailExists:
		return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
	default:
		return nil, providerError("create account", resp, apiErr)
	}
	if created.ID.IsZero() {
		return nil, dErrors.New(dErrors.CodeIdentityProvider, "identity provider returned no account id")
	}
	return &CreatedAccount{AccountID: created.ID, Secret: secret}, nil
}

// DeleteAccount removes a login. An account that is already gone counts as deleted.
func (c *HTTPClient) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	var apiErr apiError
	resp, err := c.do(ctx, "delete_account", func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", accountID.String()).SetError(&apiErr).Delete(accountPath)
	}, c.writes)
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return providerError("delete account", resp, apiErr)
	}
}

// GetAccount fetches a login by ID.
func (c *HTTPClient) GetAccount(ctx context.Context, accountID id.AccountID) (*Account, error) {
	var account Account
	var apiErr apiError
	resp, err := c.do(ctx, "get_account", func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", accountID.String()).SetResult(&account).SetError(&apiErr).Get(accountPath)
	}, c.reads)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return &account, nil
	case http.StatusNotFound:
		return nil, dErrors.New(dErrors.CodeNotFound, "identity account not found")
	default:
		return nil, providerError("get account", resp, apiErr)
	}
}

// SetDisabled sets the account's disabled flag. An account already in the requested
// state is left alone.
func (c *HTTPClient) SetDisabled(ctx context.Context, accountID id.AccountID, disabled bool, reason string) error {
	current, err := c.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if current.Disabled == disabled {
		return nil
	}

	var apiErr apiError
	resp, err := c.do(ctx, "set_disabled", func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParam("id", accountID.String()).
			SetBody(setDisabledRequest{Disabled: disabled, Reason: reason}).
			SetError(&apiErr).
			Patch(accountPath)
	}, c.writes)
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return dErrors.New(dErrors.CodeNotFound, "identity account not found")
	default:
		return providerError("set disabled", resp, apiErr)
	}
}

// ListAccounts returns one page of accounts. Pass an empty token for the first page.
func (c *HTTPClient) ListAccounts(ctx context.Context, pageToken string) (*Page, error) {
	var body listAccountsResponse
	var apiErr apiError
	resp, err := c.do(ctx, "list_accounts", func(req *resty.Request) (*resty.Response, error) {
		req = req.SetResult(&body).SetError(&apiErr)
		if c.pageSize > 0 {
			req = req.SetQueryParam("per_page", strconv.Itoa(c.pageSize))
		}
		if pageToken != "" {
			req = req.SetQueryParam("page_token", pageToken)
		}
		return req.Get(accountsPath)
	}, c.reads)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, providerError("list accounts", resp, apiErr)
	}
	return &Page{Accounts: body.Accounts, NextPageToken: body.NextPageToken}, nil
}

// do runs one bounded call through the breaker with a fresh service token.
func (c *HTTPClient) do(ctx context.Context, op string, call func(*resty.Request) (*resty.Response, error), client *resty.Client) (*resty.Response, error) {
	if !c.breaker.Allow() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "identity provider circuit is open")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to obtain service token")
	}

	start := time.Now()
	resp, err := call(client.R().SetContext(ctx).SetAuthToken(token))
	if err != nil {
		c.recordFailure()
		c.logger.WarnContext(ctx, "identity provider call failed",
			"op", op,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, transportError(op, err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		c.recordFailure()
	} else {
		c.recordSuccess()
	}
	c.logger.DebugContext(ctx, "identity provider call",
		"op", op,
		"status", resp.StatusCode(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (c *HTTPClient) recordFailure() {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("identity provider circuit opened", "breaker", c.breaker.Name())
		if c.onState != nil {
			c.onState(circuit.StateOpen)
		}
	}
}

func (c *HTTPClient) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("identity provider circuit closed", "breaker", c.breaker.Name())
		if c.onState != nil {
			c.onState(circuit.StateClosed)
		}
	}
}

func transportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, fmt.Sprintf("identity provider %s timed out", op))
	}
	return dErrors.Wrap(err, dErrors.CodeIdentityProvider, fmt.Sprintf("identity provider %s failed", op))
}

func providerError(op string, resp *resty.Response, apiErr apiError) error {
	msg := apiErr.Message
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	if msg == "" {
		msg = resp.Status()
	}
	return dErrors.New(dErrors.CodeIdentityProvider, fmt.Sprintf("identity provider rejected %s: %s", op, msg))
}
