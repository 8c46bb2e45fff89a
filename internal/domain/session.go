package domain

import "time"

// SessionClaims is what a session credential asserts once its signature and
// expiry have been checked.
type SessionClaims struct {
	AccountID string
	Kind      AccountKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}
