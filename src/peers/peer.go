package peers

// Peer is an entry of peers.json.
type Peer struct {
	NetAddr   string
	PubKeyHex string `json:",omitempty"`
	Moniker   string `json:",omitempty"`
}

// NewPeer ...
func NewPeer(pubKeyHex, netAddr, moniker string) *Peer {
	return &Peer{
		NetAddr:   netAddr,
		PubKeyHex: pubKeyHex,
		Moniker:   moniker,
	}
}

// ExcludePeer is used to exclude a single peer, by address, from a list of
// peers.
func ExcludePeer(peers []*Peer, netAddr string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.NetAddr != netAddr {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}

// Addresses returns the unique, non-empty addresses of peers, in order.
func Addresses(peers []*Peer) []string {
	seen := make(map[string]bool)
	res := []string{}
	for _, p := range peers {
		if p.NetAddr == "" || seen[p.NetAddr] {
			continue
		}
		seen[p.NetAddr] = true
		res = append(res, p.NetAddr)
	}
	return res
}
