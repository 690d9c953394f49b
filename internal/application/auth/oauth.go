package auth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-otp-gate/internal/domain"
	"github.com/go-otp-gate/internal/pkg/pkce"
)

var oauthProviders = map[string]bool{
	"google": true,
	"github": true,
}

// OAuthStart builds the provider authorize URL for a PKCE login.
func (s *service) OAuthStart(oauthProvider string) (*OAuthRedirect, error) {
	if !oauthProviders[oauthProvider] {
		return nil, fmt.Errorf("unsupported oauth provider %q: %w", oauthProvider, domain.ErrNotFound)
	}
	verifier, err := pkce.NewVerifier()
	if err != nil {
		return nil, err
	}
	redirectTo := s.publicBaseURL + "/auth/" + oauthProvider + "/callback"
	return &OAuthRedirect{
		URL:      s.provider.AuthorizeURL(oauthProvider, redirectTo, pkce.Challenge(verifier)),
		Verifier: verifier,
	}, nil
}

// OAuthCallback exchanges the authorization code and returns the frontend URL
// to redirect to, carrying the session in the fragment.
func (s *service) OAuthCallback(ctx context.Context, oauthProvider, code, verifier string) (string, error) {
	if !oauthProviders[oauthProvider] {
		return "", fmt.Errorf("unsupported oauth provider %q: %w", oauthProvider, domain.ErrNotFound)
	}
	if code == "" {
		return "", fmt.Errorf("authorization code not found: %w", domain.ErrBadRequest)
	}
	if verifier == "" {
		return "", fmt.Errorf("oauth login was not started from this browser: %w", domain.ErrBadRequest)
	}

	sess, err := s.provider.ExchangeAuthorizationCode(ctx, code, verifier)
	if err != nil {
		return "", err
	}

	frag := url.Values{}
	frag.Set("access_token", sess.AccessToken)
	frag.Set("token_type", sess.TokenType)
	if sess.RefreshToken != "" {
		frag.Set("refresh_token", sess.RefreshToken)
	}
	if !sess.ExpiresAt.IsZero() {
		frag.Set("expires_at", strconv.FormatInt(sess.ExpiresAt.Unix(), 10))
	}
	return s.frontendURL + "/dashboard#" + frag.Encode(), nil
}
