package net

import (
	"bytes"
	"time"

	"github.com/ugorji/go/codec"
)

// MessageType is the tag carried by every Envelope.
type MessageType string

const (
	// Handshake opens every outbound connection.
	Handshake MessageType = "HANDSHAKE"
	// HandshakeAck answers a Handshake.
	HandshakeAck MessageType = "HANDSHAKE_ACK"
	// TransactionMsg relays a transaction.
	TransactionMsg MessageType = "TRANSACTION"
	// ConsensusMsg carries a consensus proposal.
	ConsensusMsg MessageType = "CONSENSUS"
)

// Known reports whether t is one of the recognised message types.
func (t MessageType) Known() bool {
	switch t {
	case Handshake, HandshakeAck, TransactionMsg, ConsensusMsg:
		return true
	default:
		return false
	}
}

// String ...
func (t MessageType) String() string {
	return string(t)
}

// Envelope is the unit of exchange between overlay nodes.
type Envelope struct {
	Type      MessageType `codec:"type" json:"type"`
	SenderID  string      `codec:"senderId" json:"senderId"`
	Payload   string      `codec:"payload" json:"payload"`
	Timestamp int64       `codec:"timestamp" json:"timestamp"`
}

// NewEnvelope creates an Envelope stamped with the current time in
// milliseconds since epoch.
func NewEnvelope(msgType MessageType, senderID string, payload string) *Envelope {
	return &Envelope{
		Type:      msgType,
		SenderID:  senderID,
		Payload:   payload,
		Timestamp: time.Now().UnixNano() / int64(time.Millisecond),
	}
}

// Time returns the envelope timestamp as a time.Time.
func (e *Envelope) Time() time.Time {
	return time.Unix(0, e.Timestamp*int64(time.Millisecond))
}

// Marshal - compact canonical json encoding of the Envelope. The output never
// contains a newline character.
func (e *Envelope) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(e); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal populates every field of the Envelope from its json encoding.
func (e *Envelope) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	*e = Envelope{}

	return dec.Decode(e)
}

// DecodeEnvelope is a convenience wrapper around Unmarshal.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	env := new(Envelope)
	if err := env.Unmarshal(data); err != nil {
		return nil, err
	}
	return env, nil
}
