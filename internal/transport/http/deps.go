package http

import (
	"context"
	"time"

	"github.com/go-otp-gate/internal/domain"
	jwtinfra "github.com/go-otp-gate/internal/infrastructure/jwt"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Store    VerificationRepository
	Limiter  AttemptLimiter // nil disables OTP lockout
	Provider IdentityProvider
	Tokens   TokenProvider
	Mailer   Mailer
}

// VerificationRepository is the minimal interface the router requires from a verification store.
type VerificationRepository interface {
	Get(ctx context.Context, identityID string) (*domain.VerificationRecord, error)
	GetByEmail(ctx context.Context, email string) (*domain.VerificationRecord, error)
	IssueOTP(ctx context.Context, identityID, email, otp string, expiry time.Time) (*domain.VerificationRecord, error)
	// MarkVerified reports false, without error, when the record was no longer
	// unverified with that otp.
	MarkVerified(ctx context.Context, identityID, otp string) (bool, error)
}

// AttemptLimiter is the minimal interface the router requires from an OTP failure counter.
type AttemptLimiter interface {
	Check(ctx context.Context, email string) error
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

// IdentityProvider is the minimal interface the router requires from the external identity provider.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password string) (string, error)
	VerifyCredentials(ctx context.Context, email, password string) (*domain.Session, error)
	ExchangeAuthorizationCode(ctx context.Context, code, verifier string) (*domain.Session, error)
	ValidateToken(ctx context.Context, accessToken string) (domain.Identity, error)
	AuthorizeURL(oauthProvider, redirectTo, challenge string) string
}

// TokenProvider is the minimal interface the router requires from the access token signer.
type TokenProvider interface {
	Issue(identityID, email string) (string, time.Time, error)
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Mailer is the minimal interface the router requires from email delivery.
type Mailer interface {
	SendEmail(to, subject, htmlBody string) error
}
