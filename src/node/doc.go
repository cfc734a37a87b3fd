// Package node implements the reactive component of a mahala node.
//
// A Node joins the overlay network, registers itself as a validator and
// answers the envelopes it receives from its peers:
//
//	HANDSHAKE       answered with a HANDSHAKE_ACK. With RegisterPeers, the
//	                sender is registered as a validator until it disconnects.
//	TRANSACTION     validated by a random draw of validators.
//	CONSENSUS       a block proposal, evaluated by a random leader and draw of
//	                validators.
//
// The node also runs the daily distribution of the ledger. Transactions are not
// applied to the ledger: without signatures, a relayed transaction cannot be
// attributed to the owner of the account it spends from.
package node
