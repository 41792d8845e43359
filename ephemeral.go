package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
)

const ephemeralSecretSize = 32

// EphemeralToken is a single-use, time-boxed secret for out-of-band flows
// (email verification, password reset). Plaintext is handed to the user
// exactly once; only Hashed and ExpiresAt are persisted.
type EphemeralToken struct {
	Plaintext string
	Hashed    string
	ExpiresAt time.Time
}

// NewEphemeralToken generates a fresh ephemeral token with the given
// lifetime. The plaintext carries 256 bits of entropy; the stored value is a
// sha256 digest, fast on purpose: these secrets are random and short-lived,
// so the slow password hash buys nothing here.
func NewEphemeralToken(clock Clock, ttl time.Duration) (*EphemeralToken, error) {
	var secret [ephemeralSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate ephemeral token")
	}

	plaintext := base64.RawURLEncoding.EncodeToString(secret[:])

	return &EphemeralToken{
		Plaintext: plaintext,
		Hashed:    HashEphemeralToken(plaintext),
		ExpiresAt: normalizeClock(clock).Now().Add(ttl),
	}, nil
}

// HashEphemeralToken returns the persisted form of an ephemeral token.
func HashEphemeralToken(plaintext string) string {
	digest := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(digest[:])
}

// EphemeralTokenMatches recomputes the digest of plaintext and compares it to
// the stored value in constant time.
func EphemeralTokenMatches(plaintext, hashed string) bool {
	if plaintext == "" || hashed == "" {
		return false
	}
	computed := HashEphemeralToken(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hashed)) == 1
}
