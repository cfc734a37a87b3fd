// Package crypto contains the hashing primitives used to protect account
// credentials. Node keys live in the keys subpackage.
package crypto
