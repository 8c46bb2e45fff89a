package secret

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/unifiro-api/internal/domain"
)

// MaxLength is the longest secret bcrypt accepts, in bytes.
const MaxLength = 72

// Hasher is the one-way transform for passwords and OTP codes. bcrypt salts
// every digest and its cost factor is tunable from config.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash digests plaintext. Input longer than MaxLength is a validation error.
func (h *Hasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("secret longer than %d bytes: %w", MaxLength, domain.ErrValidation)
	}
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches digest. A malformed digest is a
// mismatch, not an error.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
