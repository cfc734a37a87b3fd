package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/sha3"
)

// SaltSize is the number of random bytes mixed into every credential hash.
const SaltSize = 32

// ErrMalformedHash is returned when a stored hash does not have the
// salt:hash form produced by SaltedHasher.
var ErrMalformedHash = errors.New("malformed credential hash")

// Hasher turns raw credentials into opaque strings that can be stored and
// later checked against a candidate credential.
type Hasher interface {
	Hash(raw string) (string, error)
	Verify(raw, stored string) bool
}

// SaltedHasher hashes credentials with sha3-256 and a per-credential random
// salt. The stored form is hex(salt):hex(sha3(raw || salt)).
type SaltedHasher struct {
	rand io.Reader
}

// NewSaltedHasher ...
func NewSaltedHasher() *SaltedHasher {
	return &SaltedHasher{rand: rand.Reader}
}

// Hash implements Hasher.
func (h *SaltedHasher) Hash(raw string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}

	sum := saltedSum(raw, salt)

	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(sum), nil
}

// Verify implements Hasher. The comparison runs in constant time.
func (h *SaltedHasher) Verify(raw, stored string) bool {
	salt, sum, err := splitStored(stored)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(saltedSum(raw, salt), sum) == 1
}

// Digest returns the unsalted sha3-256 digest of raw, hex-encoded. Equal
// credentials always produce equal digests, which makes it usable as an index
// key where the salted hash is not.
func Digest(raw string) string {
	sum := sha3.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func saltedSum(raw string, salt []byte) []byte {
	hasher := sha3.New256()
	hasher.Write([]byte(raw))
	hasher.Write(salt)
	return hasher.Sum(nil)
}

func splitStored(stored string) (salt, sum []byte, err error) {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return nil, nil, ErrMalformedHash
	}

	if salt, err = hex.DecodeString(parts[0]); err != nil {
		return nil, nil, ErrMalformedHash
	}

	if sum, err = hex.DecodeString(parts[1]); err != nil {
		return nil, nil, ErrMalformedHash
	}

	return salt, sum, nil
}
