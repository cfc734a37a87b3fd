package consensus

import (
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"io"
	"sort"

	"golang.org/x/crypto/sha3"
)

// Commit returns the hex-encoded sha3-256 commitment of a secret nonce. Nodes
// publish commitments first and reveal the nonces once every commitment is in,
// so no node can choose its nonce after seeing the others.
func Commit(nonce []byte) string {
	h := sha3.Sum256(nonce)
	return hex.EncodeToString(h[:])
}

// VerifyReveal checks that nonce opens commitment.
func VerifyReveal(commitment string, nonce []byte) bool {
	expected := Commit(nonce)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(commitment)) == 1
}

// CombineReveals hashes the revealed nonces, ordered by node id, into a single
// seed. The result does not depend on map iteration order.
func CombineReveals(reveals map[string][]byte) []byte {
	ids := make([]string, 0, len(reveals))
	for id := range reveals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha3.New256()
	var l [8]byte
	for _, id := range ids {
		nonce := reveals[id]

		binary.BigEndian.PutUint64(l[:], uint64(len(id)))
		h.Write(l[:])
		h.Write([]byte(id))

		binary.BigEndian.PutUint64(l[:], uint64(len(nonce)))
		h.Write(l[:])
		h.Write(nonce)
	}

	return h.Sum(nil)
}

// SharedDraw returns min(count, len(ids)) distinct ids. The result is a
// function of seed and the set of ids only: the input order does not matter.
func SharedDraw(seed []byte, ids []string, count int) []string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	stream := sha3.NewShake256()
	stream.Write(seed)

	for i := len(sorted) - 1; i > 0; i-- {
		k := uniform(stream, uint64(i+1))
		sorted[i], sorted[k] = sorted[k], sorted[i]
	}

	return sorted[:clamp(count, len(sorted))]
}

// uniform reads a value in [0, n) from r, rejecting samples from the biased
// tail of the uint64 range.
func uniform(r io.Reader, n uint64) uint64 {
	limit := ^uint64(0) - (^uint64(0) % n)

	var buf [8]byte
	for {
		// A ShakeHash never returns an error on Read
		r.Read(buf[:])
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return v % n
		}
	}
}
