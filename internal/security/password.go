package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// ErrHashing is returned when a digest cannot be produced.
var ErrHashing = errors.New("hashing failed")

// BcryptHasher hashes passwords and refresh tokens with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. Costs outside bcrypt's range fall
// back to DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a salted bcrypt digest of plain.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(digest), nil
}

// Verify reports whether plain matches digest. A malformed digest is a mismatch.
func (h *BcryptHasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// HashToken hashes a refresh token. bcrypt only reads the first 72 bytes, and
// JWTs sharing a header and subject agree far beyond that, so the token is
// reduced with SHA-256 first.
func (h *BcryptHasher) HashToken(token string) (string, error) {
	return h.Hash(fingerprint(token))
}

// VerifyToken is the HashToken counterpart of Verify.
func (h *BcryptHasher) VerifyToken(token, digest string) bool {
	return h.Verify(fingerprint(token), digest)
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
