package net

import (
	"sort"
	"sync"
)

// PeerRegistry tracks the live connections of an Overlay, keyed by peer id.
// It is safe for concurrent use. Iteration works on copies, so it never sees a
// half-updated map, but it is not a point-in-time snapshot with respect to
// peers joining or leaving concurrently.
type PeerRegistry struct {
	l     sync.RWMutex
	peers map[string]*Peer
}

// NewPeerRegistry ...
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{
		peers: make(map[string]*Peer),
	}
}

// Add registers a peer. An existing entry with the same id is overwritten and
// returned so the caller can decide what to do with it.
func (r *PeerRegistry) Add(p *Peer) *Peer {
	r.l.Lock()
	defer r.l.Unlock()

	prev := r.peers[p.ID]
	r.peers[p.ID] = p
	return prev
}

// Remove deletes the entry for id and returns it, or nil.
func (r *PeerRegistry) Remove(id string) *Peer {
	r.l.Lock()
	defer r.l.Unlock()

	p, ok := r.peers[id]
	if !ok {
		return nil
	}
	delete(r.peers, id)
	return p
}

// RemoveIf deletes the entry for p.ID only if it still points to p. A peer
// whose handle was overwritten by a newer connection does not evict the newer
// one when it closes.
func (r *PeerRegistry) RemoveIf(p *Peer) bool {
	r.l.Lock()
	defer r.l.Unlock()

	if cur, ok := r.peers[p.ID]; ok && cur == p {
		delete(r.peers, p.ID)
		return true
	}
	return false
}

// Get returns the peer registered under id.
func (r *PeerRegistry) Get(id string) (*Peer, bool) {
	r.l.RLock()
	defer r.l.RUnlock()

	p, ok := r.peers[id]
	return p, ok
}

// Len returns the number of registered peers.
func (r *PeerRegistry) Len() int {
	r.l.RLock()
	defer r.l.RUnlock()

	return len(r.peers)
}

// IDs returns the sorted ids of the registered peers.
func (r *PeerRegistry) IDs() []string {
	r.l.RLock()
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	r.l.RUnlock()

	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of the registered peers.
func (r *PeerRegistry) Snapshot() []*Peer {
	r.l.RLock()
	defer r.l.RUnlock()

	res := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		res = append(res, p)
	}
	return res
}
