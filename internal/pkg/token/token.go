package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// rawBytes is the entropy of a reset token (256 bits).
const rawBytes = 32

// Mint returns a fresh random token for the user-facing link and the digest
// that is persisted in its place. The raw value is never stored.
func Mint() (raw, digest string, err error) {
	b := make([]byte, rawBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, Digest(raw), nil
}

// Digest is the lookup key for a raw token: hex-encoded SHA-256. Tokens are
// high-entropy, so an unsalted fast digest is enough to make the stored value
// useless without the raw token.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
