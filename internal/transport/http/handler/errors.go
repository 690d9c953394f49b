package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-otp-gate/internal/domain"
)

var errorStatuses = []struct {
	kind   error
	status int
	msg    string
}{
	{domain.ErrNotFound, http.StatusNotFound, "User not found"},
	{domain.ErrInvalidOTP, http.StatusBadRequest, "Invalid OTP"},
	{domain.ErrExpired, http.StatusBadRequest, "OTP expired"},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests, "Too many attempts. Please try again later."},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "Invalid or expired token"},
	{domain.ErrNotVerified, http.StatusForbidden, "Email not verified. Please verify your OTP."},
	{domain.ErrProviderUnavailable, http.StatusServiceUnavailable, "Identity provider unavailable"},
}

// httpError maps a service error to its status code and a fixed client message.
// Bad requests keep their own description; anything unrecognised is a 500.
func httpError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrBadRequest) {
		writeError(w, http.StatusBadRequest, strings.TrimSuffix(err.Error(), ": "+domain.ErrBadRequest.Error()))
		return
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.kind) {
			if e.status >= http.StatusInternalServerError {
				slog.Error("upstream failure", "err", err)
			}
			writeError(w, e.status, e.msg)
			return
		}
	}
	slog.Error("unhandled service error", "err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
