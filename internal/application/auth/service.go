package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-otp-gate/internal/domain"
	jwtinfra "github.com/go-otp-gate/internal/infrastructure/jwt"
	"github.com/go-otp-gate/internal/pkg/otp"
)

// Response messages returned to clients.
const (
	MsgRegistered      = "User created. Please verify your email with the OTP sent."
	MsgVerified        = "Email verified successfully"
	MsgAlreadyVerified = "User already verified"
	MsgResent          = "If the email is registered and not yet verified, a new OTP has been sent."
)

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// LoginRequest only requires both fields. Password rules belong to the
// provider, so any password it rejects is reported as invalid credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RegisterResult reports the outcome of a registration. EmailSent is false
// when delivery failed; the registration itself still stands.
type RegisterResult struct {
	Message   string `json:"message"`
	EmailSent bool   `json:"email_sent"`
}

// VerifyResult carries an access token only when this call performed the
// transition to verified.
type VerifyResult struct {
	AlreadyVerified bool   `json:"-"`
	AccessToken     string `json:"access_token,omitempty"`
	TokenType       string `json:"token_type,omitempty"`
	Message         string `json:"message"`
}

// OAuthRedirect is the first leg of an OAuth login: where to send the browser,
// and the PKCE verifier to keep until the callback.
type OAuthRedirect struct {
	URL      string
	Verifier string
}

type Service interface {
	Register(ctx context.Context, req domain.Credentials) (*RegisterResult, error)
	ResendOTP(ctx context.Context, req ResendOTPRequest) error
	VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyResult, error)
	Login(ctx context.Context, req LoginRequest) (*domain.Session, error)
	Authenticate(ctx context.Context, accessToken string) (domain.Identity, error)
	OAuthStart(oauthProvider string) (*OAuthRedirect, error)
	OAuthCallback(ctx context.Context, oauthProvider, code, verifier string) (string, error)
}

type verificationStore interface {
	Get(ctx context.Context, identityID string) (*domain.VerificationRecord, error)
	GetByEmail(ctx context.Context, email string) (*domain.VerificationRecord, error)
	IssueOTP(ctx context.Context, identityID, email, otp string, expiry time.Time) (*domain.VerificationRecord, error)
	MarkVerified(ctx context.Context, identityID, otp string) (bool, error)
}

type attemptLimiter interface {
	Check(ctx context.Context, email string) error
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

type identityProvider interface {
	CreateIdentity(ctx context.Context, email, password string) (string, error)
	VerifyCredentials(ctx context.Context, email, password string) (*domain.Session, error)
	ExchangeAuthorizationCode(ctx context.Context, code, verifier string) (*domain.Session, error)
	ValidateToken(ctx context.Context, accessToken string) (domain.Identity, error)
	AuthorizeURL(oauthProvider, redirectTo, challenge string) string
}

type tokenProvider interface {
	Issue(identityID, email string) (string, time.Time, error)
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

type service struct {
	store            verificationStore
	limiter          attemptLimiter
	provider         identityProvider
	tokens           tokenProvider
	mailer           mailer
	generateOTP      func() (string, error)
	now              func() time.Time
	otpTTL           time.Duration
	appName          string
	frontendURL      string
	publicBaseURL    string
	remoteValidation bool
}

// ServiceDeps wires the auth service. Limiter may be nil, which disables
// OTP lockout. GenerateOTP and Now default to otp.Generate and time.Now.
type ServiceDeps struct {
	Store            verificationStore
	Limiter          attemptLimiter
	Provider         identityProvider
	Tokens           tokenProvider
	Mailer           mailer
	GenerateOTP      func() (string, error)
	Now              func() time.Time
	OTPTTL           time.Duration
	AppName          string
	FrontendURL      string
	PublicBaseURL    string
	RemoteValidation bool
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:            deps.Store,
		limiter:          deps.Limiter,
		provider:         deps.Provider,
		tokens:           deps.Tokens,
		mailer:           deps.Mailer,
		generateOTP:      deps.GenerateOTP,
		now:              deps.Now,
		otpTTL:           deps.OTPTTL,
		appName:          deps.AppName,
		frontendURL:      deps.FrontendURL,
		publicBaseURL:    deps.PublicBaseURL,
		remoteValidation: deps.RemoteValidation,
	}
	if s.generateOTP == nil {
		s.generateOTP = otp.Generate
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// normalizeEmail is applied to every email entering the service so lookups,
// records and limiter keys agree.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
