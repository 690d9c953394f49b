package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-otp-gate/internal/config"
	"github.com/go-otp-gate/internal/domain"
	jwtinfra "github.com/go-otp-gate/internal/infrastructure/jwt"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) Get(ctx context.Context, identityID string) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, identityID)
	if r, _ := args.Get(0).(*domain.VerificationRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) GetByEmail(ctx context.Context, email string) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, email)
	if r, _ := args.Get(0).(*domain.VerificationRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) IssueOTP(ctx context.Context, identityID, email, otp string, expiry time.Time) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, identityID, email, otp, expiry)
	if r, _ := args.Get(0).(*domain.VerificationRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) MarkVerified(ctx context.Context, identityID, otp string) (bool, error) {
	args := m.Called(ctx, identityID, otp)
	return args.Bool(0), args.Error(1)
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Check(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockLimiter) RecordFailure(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockLimiter) Reset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type mockProvider struct{ mock.Mock }

func (m *mockProvider) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}
func (m *mockProvider) VerifyCredentials(ctx context.Context, email, password string) (*domain.Session, error) {
	args := m.Called(ctx, email, password)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProvider) ExchangeAuthorizationCode(ctx context.Context, code, verifier string) (*domain.Session, error) {
	args := m.Called(ctx, code, verifier)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProvider) ValidateToken(ctx context.Context, accessToken string) (domain.Identity, error) {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(domain.Identity), args.Error(1)
}
func (m *mockProvider) AuthorizeURL(oauthProvider, redirectTo, challenge string) string {
	return m.Called(oauthProvider, redirectTo, challenge).String(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

// --- in-memory store ---

// memStore keeps records in memory with the same conditional semantics as the
// DynamoDB repository.
type memStore struct {
	mu   sync.Mutex
	recs map[string]domain.VerificationRecord
	now  func() time.Time
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{recs: make(map[string]domain.VerificationRecord), now: now}
}

func (s *memStore) Get(_ context.Context, identityID string) (*domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[identityID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recs {
		if r.Email == email {
			r := r
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) IssueOTP(_ context.Context, identityID, email, otp string, expiry time.Time) (*domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[identityID]
	if ok && r.IsVerified {
		return &r, nil
	}
	now := s.now()
	if !ok {
		r = domain.VerificationRecord{IdentityID: identityID, CreatedAt: now}
	}
	r.Email = email
	r.OTP = &otp
	r.OTPExpiry = &expiry
	r.UpdatedAt = now
	s.recs[identityID] = r
	return &r, nil
}

func (s *memStore) MarkVerified(_ context.Context, identityID, otp string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[identityID]
	if !ok || r.IsVerified || r.OTP == nil || *r.OTP != otp {
		return false, nil
	}
	now := s.now()
	r.IsVerified = true
	r.VerifiedAt = &now
	r.OTP = nil
	r.OTPExpiry = nil
	r.UpdatedAt = now
	s.recs[identityID] = r
	return true, nil
}

// --- helpers ---

const (
	testIdentityID = "6f3a8c1e-2b4d-4e5f-8a9b-0c1d2e3f4a5b"
	testSecret     = "0123456789abcdef0123456789abcdef"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTokens(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	p, err := jwtinfra.NewProvider(&config.Config{
		TokenSigningSecret: testSecret,
		TokenIssuer:        "otp-gate",
		TokenAudience:      "authenticated",
		TokenTTL:           time.Hour,
	})
	require.NoError(t, err)
	return p
}

// codes returns a generator yielding the given codes in order.
func codes(list ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := list[i%len(list)]
		i++
		return c, nil
	}
}

type testDeps struct {
	store    verificationStore
	limiter  attemptLimiter
	provider *mockProvider
	mailer   *mockMailer
	now      *time.Time
	gen      func() (string, error)
	remote   bool
}

func newTestService(t *testing.T, d testDeps) Service {
	t.Helper()
	now := testNow
	if d.now == nil {
		d.now = &now
	}
	if d.gen == nil {
		d.gen = codes("123456")
	}
	clock := d.now
	deps := ServiceDeps{
		Store:            d.store,
		Provider:         d.provider,
		Tokens:           newTokens(t),
		Mailer:           d.mailer,
		GenerateOTP:      d.gen,
		Now:              func() time.Time { return *clock },
		OTPTTL:           10 * time.Minute,
		AppName:          "CareerAutomate",
		FrontendURL:      "http://localhost:3000",
		PublicBaseURL:    "http://127.0.0.1:8000",
		RemoteValidation: d.remote,
	}
	if d.limiter != nil {
		deps.Limiter = d.limiter
	}
	return NewService(deps)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func isOTPSubject(s string) bool { return strings.HasPrefix(s, "Your Verification Code") }
