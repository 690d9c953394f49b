package domain

import "time"

// TokenTypeBearer is the token_type reported with every access token.
const TokenTypeBearer = "bearer"

// Identity is an authenticated principal as seen by protected resources,
// whichever side issued its token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is what the identity provider returns after a successful credential
// check or authorization code exchange.
type Session struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"user"`
}

// Credentials is an email/password pair passed straight through to the provider.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}
