package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-otp-gate/internal/config"
	"github.com/go-otp-gate/internal/domain"
	"github.com/go-otp-gate/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// roleAuthenticated matches the role claim the identity provider puts on its own tokens.
const roleAuthenticated = "authenticated"

// Claims holds the JWT payload fields shared by provider-issued and locally issued tokens.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Provider issues and verifies HS256 access tokens with the same secret the
// identity provider signs its sessions with, so both origins verify alike.
type Provider struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if len(cfg.TokenSigningSecret) == 0 {
		return nil, errors.New("token signing secret is empty")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &Provider{
		secret:   []byte(cfg.TokenSigningSecret),
		issuer:   cfg.TokenIssuer,
		audience: cfg.TokenAudience,
		ttl:      cfg.TokenTTL,
		now:      time.Now,
	}, nil
}

// Issue signs an access token for a freshly verified identity.
func (p *Provider) Issue(identityID, email string) (string, time.Time, error) {
	now := p.now()
	exp := now.Add(p.ttl)
	claims := Claims{
		Email: email,
		Role:  roleAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        id.New(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses tokenStr and returns its claims. The issuer is not pinned,
// so provider tokens and locally issued ones are both accepted.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

// Identity projects verified claims onto the principal seen by handlers.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{ID: c.Subject, Email: c.Email}
}
