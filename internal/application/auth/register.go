package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-otp-gate/internal/domain"
	"github.com/go-otp-gate/internal/infrastructure/smtp"
)

// Register creates the identity at the provider and reconciles its local
// verification record. A verified identity is left untouched and gets a
// notice email instead of a code; the caller sees the same response either way.
func (s *service) Register(ctx context.Context, req domain.Credentials) (*RegisterResult, error) {
	email := normalizeEmail(req.Email)

	identityID, err := s.provider.CreateIdentity(ctx, email, req.Password)
	if errors.Is(err, domain.ErrIdentityExists) {
		identityID, err = s.resolveExisting(ctx, email, req.Password)
	}
	if err != nil {
		return nil, err
	}

	rec, code, err := s.issueOTP(ctx, identityID, email)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{Message: MsgRegistered, EmailSent: s.deliver(rec, code)}, nil
}

// resolveExisting finds the identity behind an email the provider already
// knows. Only the password owner may re-register, so the credentials are checked.
func (s *service) resolveExisting(ctx context.Context, email, password string) (string, error) {
	sess, err := s.provider.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return "", fmt.Errorf("registration failed: %w", domain.ErrBadRequest)
		}
		return "", err
	}
	return sess.Identity.ID, nil
}

// ResendOTP replaces the pending code for an unverified email and mails it.
// Unknown and verified emails are silently ignored.
func (s *service) ResendOTP(ctx context.Context, req ResendOTPRequest) error {
	email := normalizeEmail(req.Email)

	rec, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if rec.IsVerified {
		return nil
	}

	rec, code, err := s.issueOTP(ctx, rec.IdentityID, email)
	if err != nil {
		return err
	}
	if !rec.IsVerified {
		s.deliver(rec, code)
	}
	return nil
}

// issueOTP generates a code and stores it unless the identity is already
// verified. The returned record is what the store holds afterwards.
func (s *service) issueOTP(ctx context.Context, identityID, email string) (*domain.VerificationRecord, string, error) {
	code, err := s.generateOTP()
	if err != nil {
		return nil, "", err
	}
	rec, err := s.store.IssueOTP(ctx, identityID, email, code, s.now().Add(s.otpTTL))
	if err != nil {
		return nil, "", err
	}
	if rec.IsVerified {
		slog.Info("registration for verified identity left unchanged", "identity_id", identityID)
		return rec, "", nil
	}
	slog.Info("otp issued", "identity_id", identityID)
	return rec, code, nil
}

// deliver mails the code, or the already-verified notice, and reports whether
// the message went out. Failures are logged and never undo the stored state.
func (s *service) deliver(rec *domain.VerificationRecord, code string) bool {
	var subject, body string
	var err error
	if rec.IsVerified {
		subject, body, err = smtp.AlreadyVerifiedMessage(s.appName)
	} else {
		subject, body, err = smtp.OTPMessage(s.appName, code, s.otpTTL)
	}
	if err == nil {
		err = s.mailer.SendEmail(rec.Email, subject, body)
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
		slog.Error("verification email not sent", "identity_id", rec.IdentityID, "err", err)
		return false
	}
	return true
}
