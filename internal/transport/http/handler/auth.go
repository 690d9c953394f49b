package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-otp-gate/internal/application/auth"
	"github.com/go-otp-gate/internal/domain"
	"github.com/go-otp-gate/internal/pkg/validate"
	"github.com/go-otp-gate/internal/transport/http/middleware"
)

const (
	pkceCookie       = "otpgate_pkce"
	pkceCookieMaxAge = 600
)

// AuthHandler serves registration, OTP verification, login, the current
// identity and OAuth redirects.
type AuthHandler struct {
	svc           auth.Service
	secureCookies bool
}

func NewAuthHandler(svc auth.Service, secureCookies bool) *AuthHandler {
	return &AuthHandler{svc: svc, secureCookies: secureCookies}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.Credentials
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.ResendOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.svc.ResendOTP(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: auth.MsgResent})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	sess, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{AccessToken: sess.AccessToken, TokenType: sess.TokenType})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// OAuthLogin redirects to the provider's consent page. The PKCE verifier is
// kept in an HttpOnly cookie scoped to the callback path.
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	start, err := h.svc.OAuthStart(provider)
	if err != nil {
		oauthError(w, err)
		return
	}
	http.SetCookie(w, h.pkceCookie(provider, start.Verifier, pkceCookieMaxAge))
	http.Redirect(w, r, start.URL, http.StatusFound)
}

func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	var verifier string
	if c, err := r.Cookie(pkceCookie); err == nil {
		verifier = c.Value
	}
	dest, err := h.svc.OAuthCallback(r.Context(), provider, r.URL.Query().Get("code"), verifier)
	if err != nil {
		oauthError(w, err)
		return
	}
	http.SetCookie(w, h.pkceCookie(provider, "", -1))
	http.Redirect(w, r, dest, http.StatusFound)
}

func (h *AuthHandler) pkceCookie(provider, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     pkceCookie,
		Value:    value,
		Path:     "/auth/" + provider + "/callback",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func oauthError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unsupported oauth provider")
		return
	}
	httpError(w, err)
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags,
// writing a 400 or 422 and returning false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}
