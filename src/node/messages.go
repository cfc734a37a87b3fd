package node

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// TxStatus is the lifecycle state of a relayed transaction.
type TxStatus uint32

const (
	// Pending transactions were relayed but not yet validated.
	Pending TxStatus = iota
	// Confirmed ...
	Confirmed
	// Rejected ...
	Rejected
)

// String ...
func (s TxStatus) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Confirmed:
		return "CONFIRMED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Transaction is the payload of a TRANSACTION envelope. Amount is a decimal
// string.
type Transaction struct {
	ID        string   `codec:"id" json:"id"`
	From      string   `codec:"from" json:"from"`
	To        string   `codec:"to" json:"to"`
	Amount    string   `codec:"amount" json:"amount"`
	Timestamp int64    `codec:"timestamp" json:"timestamp"`
	Status    TxStatus `codec:"status" json:"status"`
}

// Proposal is the payload of a CONSENSUS envelope.
type Proposal struct {
	BlockID string   `codec:"blockId" json:"blockId"`
	TxIDs   []string `codec:"txIds" json:"txIds"`
}

// Hello is the payload of HANDSHAKE and HANDSHAKE_ACK envelopes.
type Hello struct {
	Greeting  string `codec:"greeting" json:"greeting"`
	PublicKey string `codec:"publicKey" json:"publicKey"`
	Moniker   string `codec:"moniker,omitempty" json:"moniker,omitempty"`
}

func marshalPayload(v interface{}) (string, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(v); err != nil {
		return "", err
	}

	return b.String(), nil
}

func unmarshalPayload(payload string, v interface{}) error {
	jh := new(codec.JsonHandle)
	dec := codec.NewDecoder(bytes.NewBufferString(payload), jh)

	return dec.Decode(v)
}
