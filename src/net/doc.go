// Package net implements the peer-to-peer overlay that connects mahala nodes.
//
// Nodes exchange Envelopes: small typed records (HANDSHAKE, HANDSHAKE_ACK,
// TRANSACTION, CONSENSUS) carrying the sender's node id, an opaque payload and
// a millisecond timestamp. Envelopes are encoded as compact canonical JSON and
// written one per line over plain TCP streams.
//
// The Overlay owns a StreamLayer (the listening socket and the dialer), the
// PeerRegistry of live connections, and the list of registered Listeners. Upon
// Start, it accepts inbound connections and dials the configured seed
// addresses, skipping any seed that points back at its own listening address.
// Every outbound connection opens with a HANDSHAKE envelope.
//
// Each connection has a read loop and a dispatcher. The read loop decodes lines
// into envelopes and pushes them onto a bounded inbox; the dispatcher drains the
// inbox and calls the listeners in registration order. Envelopes from one peer
// are therefore delivered in the order they were received, while slow listeners
// only stall the connection they are serving. There is no ordering across
// peers.
//
// TCP
//
// To use a TCP stream layer, set the following configuration options in the
// Config object (cf config package):
//
// - BindAddr: the IP:PORT of the TCP socket that the node binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes.
// If BindAddr is a local address not reachable by other peers, it is usefull
// to set AdvertiseAddr to the reachable public address.
package net
