package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-otp-gate/internal/domain"
)

// Login checks credentials with the provider first and only then consults the
// local record, so a rejected password never reveals verification state.
// The provider's session is returned unchanged.
func (s *service) Login(ctx context.Context, req LoginRequest) (*domain.Session, error) {
	sess, err := s.provider.VerifyCredentials(ctx, normalizeEmail(req.Email), req.Password)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, sess.Identity.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no verification record: %w", domain.ErrNotVerified)
		}
		return nil, err
	}
	if !rec.IsVerified {
		return nil, domain.ErrNotVerified
	}
	return sess, nil
}

// Authenticate resolves a bearer token to an identity. Tokens are verified
// locally; with remote validation enabled a token that fails locally is
// offered to the provider as well.
func (s *service) Authenticate(ctx context.Context, accessToken string) (domain.Identity, error) {
	claims, err := s.tokens.Verify(accessToken)
	if err == nil {
		return claims.Identity(), nil
	}
	if !s.remoteValidation {
		return domain.Identity{}, err
	}

	ident, rerr := s.provider.ValidateToken(ctx, accessToken)
	if rerr != nil {
		if errors.Is(rerr, domain.ErrProviderUnavailable) {
			return domain.Identity{}, rerr
		}
		return domain.Identity{}, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	return ident, nil
}
