package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"

	"github.com/mahalanet/mahala/src/common"
)

// ErrInvalidPublicKey is returned when bytes do not encode a point on Curve().
var ErrInvalidPublicKey = errors.New("invalid public key")

// FromPublicKey returns the uncompressed encoding of pub.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// ToPublicKey parses the uncompressed encoding produced by FromPublicKey.
func ToPublicKey(pub []byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.Unmarshal(Curve(), pub)
	if x == nil {
		return nil, ErrInvalidPublicKey
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}, nil
}

// PublicKeyHex returns the 0X-prefixed hex form of the public key. This is the
// string a node declares as its validator key.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}

// ParsePublicKeyHex is the inverse of PublicKeyHex.
func ParsePublicKeyHex(s string) (*ecdsa.PublicKey, error) {
	raw, err := common.DecodeFromString(s)
	if err != nil {
		return nil, err
	}
	return ToPublicKey(raw)
}
