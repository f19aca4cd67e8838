package identity

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
)

// Op names an InMemory provider operation for failure injection.
type Op string

const (
	OpCreate      Op = "create"
	OpDelete      Op = "delete"
	OpGet         Op = "get"
	OpSetDisabled Op = "set_disabled"
	OpList        Op = "list"
)

// InMemory is an in-process identity provider with the same contract as HTTPClient.
// Emails are unique case-insensitively. Failures can be injected per operation.
type InMemory struct {
	mu           sync.Mutex
	accounts     map[id.AccountID]*Account
	byEmail      map[string]id.AccountID
	order        []id.AccountID
	failures     map[Op]error
	calls        map[Op]int
	pageSize     int
	secretLength int
	now          func() time.Time
}

type InMemoryOption func(*InMemory)

func WithPageSize(n int) InMemoryOption {
	return func(p *InMemory) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

func WithClock(now func() time.Time) InMemoryOption {
	return func(p *InMemory) {
		p.now = now
	}
}

func NewInMemory(opts ...InMemoryOption) *InMemory {
	p := &InMemory{
		accounts:     make(map[id.AccountID]*Account),
		byEmail:      make(map[string]id.AccountID),
		failures:     make(map[Op]error),
		calls:        make(map[Op]int),
		pageSize:     100,
		secretLength: MinSecretLength,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fail makes every subsequent call to op return err. A nil err clears the failure.
func (p *InMemory) Fail(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Calls reports how many times op was invoked.
func (p *InMemory) Calls(op Op) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Put seeds an account directly.
func (p *InMemory) Put(account Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.accounts[account.ID]; !exists {
		p.order = append(p.order, account.ID)
	}
	a := account
	p.accounts[a.ID] = &a
	p.byEmail[normalizeEmail(a.Email)] = a.ID
}

// Len returns the number of stored accounts.
func (p *InMemory) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}

func (p *InMemory) enter(op Op) error {
	p.calls[op]++
	return p.failures[op]
}

func (p *InMemory) CreateAccount(ctx context.Context, email, displayName, role string) (*CreatedAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "identity provider create_account timed out")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCreate); err != nil {
		return nil, err
	}
	key := normalizeEmail(email)
	if _, exists := p.byEmail[key]; exists {
		return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
	}
	secret, err := GenerateSecret(p.secretLength)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate secret")
	}
	accountID := id.AccountID(uuid.NewString())
	p.accounts[accountID] = &Account{
		ID:          accountID,
		Email:       email,
		DisplayName: displayName,
		Metadata:    map[string]any{"role": role},
	}
	p.byEmail[key] = accountID
	p.order = append(p.order, accountID)
	return &CreatedAccount{AccountID: accountID, Secret: secret}, nil
}

func (p *InMemory) DeleteAccount(_ context.Context, accountID id.AccountID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpDelete); err != nil {
		return err
	}
	account, ok := p.accounts[accountID]
	if !ok {
		return nil
	}
	delete(p.byEmail, normalizeEmail(account.Email))
	delete(p.accounts, accountID)
	p.order = slices.DeleteFunc(p.order, func(v id.AccountID) bool { return v == accountID })
	return nil
}

func (p *InMemory) GetAccount(_ context.Context, accountID id.AccountID) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpGet); err != nil {
		return nil, err
	}
	account, ok := p.accounts[accountID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity account not found")
	}
	out := *account
	out.Metadata = maps.Clone(account.Metadata)
	return &out, nil
}

func (p *InMemory) SetDisabled(_ context.Context, accountID id.AccountID, disabled bool, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpSetDisabled); err != nil {
		return err
	}
	account, ok := p.accounts[accountID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "identity account not found")
	}
	if account.Disabled == disabled {
		return nil
	}
	account.Disabled = disabled
	if disabled {
		at := p.now()
		account.DisabledAt = &at
		if account.Metadata == nil {
			account.Metadata = map[string]any{}
		}
		account.Metadata["disabled_reason"] = reason
	} else {
		account.DisabledAt = nil
		delete(account.Metadata, "disabled_reason")
	}
	return nil
}

// ListAccounts pages in insertion order. Page tokens are opaque offsets.
func (p *InMemory) ListAccounts(_ context.Context, pageToken string) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpList); err != nil {
		return nil, err
	}
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return nil, dErrors.New(dErrors.CodeIdentityProvider, "invalid page token")
		}
		offset = n
	}
	if offset > len(p.order) {
		offset = len(p.order)
	}
	end := min(offset+p.pageSize, len(p.order))
	page := &Page{Accounts: make([]Account, 0, end-offset)}
	for _, accountID := range p.order[offset:end] {
		a := *p.accounts[accountID]
		a.Metadata = maps.Clone(a.Metadata)
		page.Accounts = append(page.Accounts, a)
	}
	if end < len(p.order) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
