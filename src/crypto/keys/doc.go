// Package keys manages the key-pair that identifies a node.
//
// Every node owns a secp256k1 ECDSA key. The public half, hex-encoded, is what
// the node declares when it registers itself as a validator and what it sends
// in its handshakes. The private half is kept in an unencrypted keyfile that
// only the owner can read.
package keys
