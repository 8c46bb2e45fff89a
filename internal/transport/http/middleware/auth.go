package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/unifiro-api/internal/domain"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// CookieName is the session cookie carrying the credential for kind.
func CookieName(kind domain.AccountKind) string {
	if kind == domain.KindOrganizer {
		return "unifiro_organizer_token"
	}
	return "unifiro_token"
}

// Authenticator validates a presented session credential.
type Authenticator interface {
	Kind() domain.AccountKind
	Authenticate(token string) (*domain.SessionClaims, error)
}

// Auth returns middleware that validates the session cookie of auth's kind
// and injects the claims into the request context.
func Auth(auth Authenticator) func(http.Handler) http.Handler {
	name := CookieName(auth.Kind())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if c, err := r.Cookie(name); err == nil {
				token = c.Value
			}
			claims, err := auth.Authenticate(token)
			if err != nil {
				msg := "Invalid or expired session"
				if errors.Is(err, domain.ErrUnauthorized) {
					msg = "Not authenticated"
				}
				writeJSONMessage(w, http.StatusUnauthorized, msg)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts session claims from the request context.
func ClaimsFromContext(ctx context.Context) (*domain.SessionClaims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*domain.SessionClaims)
	return c, ok
}
