package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unifiro-api/internal/domain"
)

var statusTable = []struct {
	err    error
	status int
}{
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrAlreadyVerified, http.StatusBadRequest},
	{domain.ErrNoPendingOTP, http.StatusBadRequest},
	{domain.ErrExpired, http.StatusGone},
	{domain.ErrInvalidOTP, http.StatusUnauthorized},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrInvalidToken, http.StatusUnauthorized},
	{domain.ErrNotVerified, http.StatusBadRequest},
	{domain.ErrInvalidOrExpiredToken, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
}

// statusFor maps a domain error to its HTTP status; anything unknown is a 500.
func statusFor(err error) int {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// httpError replies with the status for err and msg as the message. Server
// errors are logged and answered with a generic message.
func httpError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "Server error"
	}
	writeMessage(w, status, msg)
}
