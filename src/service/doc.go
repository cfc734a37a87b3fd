// Package service exposes a read-only HTTP/JSON view of a running node: its
// stats, peers, validator set, distribution status and account balances.
package service
