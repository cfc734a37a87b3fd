// Package peers reads and writes the list of known peers of a node.
//
// On startup, a node looks for a peers.json file in its data directory. Each
// entry gives the address where another node accepts connections and,
// optionally, its public key and a friendly name. The addresses are used as
// seeds by the overlay. Operators may edit the file by hand.
package peers
