package node

import (
	"crypto/ecdsa"

	"github.com/mahalanet/mahala/src/crypto/keys"
)

// Validator holds the identity of the local node: its id, key and friendly
// name.
type Validator struct {
	Key     *ecdsa.PrivateKey
	Moniker string

	id     string
	pubHex string
}

// NewValidator is a factory method for a Validator
func NewValidator(id string, key *ecdsa.PrivateKey, moniker string) *Validator {
	return &Validator{
		Key:     key,
		Moniker: moniker,
		id:      id,
		pubHex:  keys.PublicKeyHex(&key.PublicKey),
	}
}

// ID returns the id the node announces in its envelopes.
func (v *Validator) ID() string {
	return v.id
}

// PublicKeyHex returns the validator's public key as a hex string
func (v *Validator) PublicKeyHex() string {
	return v.pubHex
}
