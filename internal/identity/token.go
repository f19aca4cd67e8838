package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenSource yields bearer tokens for the provider's admin API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ServiceClaims identifies this service to the identity provider.
type ServiceClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// ServiceTokenSource mints short-lived HS256 service tokens and reuses each one until
// it is close to expiry.
type ServiceTokenSource struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

const (
	adminScope  = "accounts:admin"
	refreshSkew = 30 * time.Second
)

func NewServiceTokenSource(signingKey, issuer, audience string, ttl time.Duration) *ServiceTokenSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ServiceTokenSource{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (s *ServiceTokenSource) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(refreshSkew).Before(s.expiresAt) {
		return s.token, nil
	}

	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ServiceClaims{
		Scope: adminScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.issuer,
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	s.token = signed
	s.expiresAt = expiresAt
	return signed, nil
}

// StaticToken is a TokenSource that always returns the same value.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}
