package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-otp-gate/internal/domain"
)

// VerifyOTP runs the verification state machine for one submitted code:
// lookup, already-verified short circuit, lockout, code match, expiry, then a
// single conditional write. Only the caller whose write lands gets a token.
func (s *service) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyResult, error) {
	email := normalizeEmail(req.Email)

	rec, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	if rec.IsVerified {
		return alreadyVerified(), nil
	}

	if err := s.checkLockout(ctx, email); err != nil {
		return nil, err
	}

	if !otpMatches(rec, req.OTP) {
		// The email index may still show a replaced code; the primary record
		// is authoritative.
		cur, err := s.store.Get(ctx, rec.IdentityID)
		if err != nil {
			return nil, err
		}
		if cur.IsVerified {
			return alreadyVerified(), nil
		}
		if !otpMatches(cur, req.OTP) {
			s.recordFailure(ctx, email)
			return nil, fmt.Errorf("otp mismatch: %w", domain.ErrInvalidOTP)
		}
		rec = cur
	}
	if rec.ExpiredAt(s.now()) {
		return nil, fmt.Errorf("otp expired: %w", domain.ErrExpired)
	}

	transitioned, err := s.store.MarkVerified(ctx, rec.IdentityID, *rec.OTP)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return s.afterLostRace(ctx, rec.IdentityID)
	}

	s.resetFailures(ctx, email)
	slog.Info("email verified", "identity_id", rec.IdentityID)

	token, _, err := s.tokens.Issue(rec.IdentityID, rec.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &VerifyResult{
		AccessToken: token,
		TokenType:   domain.TokenTypeBearer,
		Message:     MsgVerified,
	}, nil
}

// afterLostRace re-reads a record whose conditional write failed. Another
// request either verified it first or replaced the code being checked.
func (s *service) afterLostRace(ctx context.Context, identityID string) (*VerifyResult, error) {
	cur, err := s.store.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if cur.IsVerified {
		return alreadyVerified(), nil
	}
	return nil, fmt.Errorf("otp superseded: %w", domain.ErrInvalidOTP)
}

func otpMatches(rec *domain.VerificationRecord, code string) bool {
	return rec.Pending() && subtle.ConstantTimeCompare([]byte(*rec.OTP), []byte(code)) == 1
}

func alreadyVerified() *VerifyResult {
	return &VerifyResult{AlreadyVerified: true, Message: MsgAlreadyVerified}
}

// checkLockout fails open: with Redis unreachable verification still works,
// only without lockout.
func (s *service) checkLockout(ctx context.Context, email string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Check(ctx, email)
	if errors.Is(err, domain.ErrLimiterUnavailable) {
		slog.Warn("otp limiter unavailable, skipping lockout check", "err", err)
		return nil
	}
	return err
}

func (s *service) recordFailure(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, email); err != nil {
		slog.Warn("failed to record otp failure", "err", err)
	}
}

func (s *service) resetFailures(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, email); err != nil {
		slog.Warn("failed to reset otp failures", "err", err)
	}
}
