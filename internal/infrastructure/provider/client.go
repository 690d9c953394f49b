package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-otp-gate/internal/config"
	"github.com/go-otp-gate/internal/domain"
	"github.com/google/uuid"
)

// maxErrorBody caps how much of an error response is read for its message.
const maxErrorBody = 4 << 10

// Client talks to a GoTrue-compatible identity provider over its REST API.
// Passwords are forwarded as-is and never kept.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.ProviderTimeout},
		baseURL:    cfg.ProviderURL,
		apiKey:     cfg.ProviderAPIKey,
	}
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type pkceBody struct {
	AuthCode     string `json:"auth_code"`
	CodeVerifier string `json:"code_verifier"`
}

type userBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// signupBody covers both sign-up response shapes: a bare user when email
// confirmation is on, a session wrapping the user when it is off.
type signupBody struct {
	userBody
	User *userBody `json:"user"`
}

type sessionBody struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *userBody `json:"user"`
}

type errorBody struct {
	Code             string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e errorBody) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// CreateIdentity signs a new identity up and returns its id.
// An email the provider already knows yields domain.ErrIdentityExists.
func (c *Client) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	var out signupBody
	status, eb, err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", credentialsBody{email, password}, &out)
	if err != nil {
		return "", err
	}
	switch {
	case status >= 500:
		return "", fmt.Errorf("%w: signup returned %d", domain.ErrProviderUnavailable, status)
	case status >= 400:
		if alreadyRegistered(eb) {
			return "", domain.ErrIdentityExists
		}
		return "", fmt.Errorf("%s: %w", fallback(eb.text(), "registration failed"), domain.ErrBadRequest)
	}

	u := out.User
	if u == nil {
		u = &out.userBody
	}
	return parseID(u.ID)
}

// VerifyCredentials runs the password grant. A rejected pair is always
// domain.ErrInvalidCredentials whatever the provider's reason.
func (c *Client) VerifyCredentials(ctx context.Context, email, password string) (*domain.Session, error) {
	return c.token(ctx, "password", credentialsBody{email, password})
}

// ExchangeAuthorizationCode trades an OAuth authorization code and its PKCE
// verifier for a session.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, code, verifier string) (*domain.Session, error) {
	return c.token(ctx, "pkce", pkceBody{AuthCode: code, CodeVerifier: verifier})
}

// ValidateToken asks the provider who owns accessToken.
func (c *Client) ValidateToken(ctx context.Context, accessToken string) (domain.Identity, error) {
	var out userBody
	status, _, err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &out)
	if err != nil {
		return domain.Identity{}, err
	}
	switch {
	case status >= 500:
		return domain.Identity{}, fmt.Errorf("%w: user returned %d", domain.ErrProviderUnavailable, status)
	case status >= 400:
		return domain.Identity{}, fmt.Errorf("provider rejected token: %w", domain.ErrUnauthorized)
	}
	id, err := parseID(out.ID)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{ID: id, Email: out.Email}, nil
}

// AuthorizeURL builds the provider URL that starts an OAuth login with a
// PKCE S256 challenge.
func (c *Client) AuthorizeURL(oauthProvider, redirectTo, challenge string) string {
	q := url.Values{}
	q.Set("provider", oauthProvider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "s256")
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

func (c *Client) token(ctx context.Context, grant string, body interface{}) (*domain.Session, error) {
	var out sessionBody
	status, _, err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type="+grant, "", body, &out)
	if err != nil {
		return nil, err
	}
	switch {
	case status >= 500:
		return nil, fmt.Errorf("%w: %s grant returned %d", domain.ErrProviderUnavailable, grant, status)
	case status >= 400:
		return nil, domain.ErrInvalidCredentials
	}
	if out.AccessToken == "" || out.User == nil {
		return nil, fmt.Errorf("%w: %s grant returned no session", domain.ErrProviderUnavailable, grant)
	}

	id, err := parseID(out.User.ID)
	if err != nil {
		return nil, err
	}
	s := &domain.Session{
		AccessToken:  out.AccessToken,
		TokenType:    strings.ToLower(fallback(out.TokenType, domain.TokenTypeBearer)),
		RefreshToken: out.RefreshToken,
		Identity:     domain.Identity{ID: id, Email: out.User.Email},
	}
	switch {
	case out.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(out.ExpiresAt, 0).UTC()
	case out.ExpiresIn > 0:
		s.ExpiresAt = time.Now().UTC().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return s, nil
}

// do sends one request. It returns a non-nil error only for transport and
// decoding failures; HTTP status handling is left to the caller.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out interface{}) (int, errorBody, error) {
	var eb errorBody

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, eb, fmt.Errorf("encode provider request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, eb, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	switch {
	case bearer != "":
		req.Header.Set("Authorization", "Bearer "+bearer)
	case c.apiKey != "":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, eb, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&eb)
		return resp.StatusCode, eb, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, eb, fmt.Errorf("%w: decode %s response: %v", domain.ErrProviderUnavailable, path, err)
	}
	return resp.StatusCode, eb, nil
}

func alreadyRegistered(eb errorBody) bool {
	if eb.Code == "user_already_exists" || eb.Code == "email_exists" {
		return true
	}
	return strings.Contains(strings.ToLower(eb.text()), "already registered")
}

func parseID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed identity id %q", domain.ErrProviderUnavailable, raw)
	}
	return id.String(), nil
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
