package node

import (
	"fmt"
	gonet "net"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mahalanet/mahala/src/consensus"
	"github.com/mahalanet/mahala/src/crypto/keys"
	"github.com/mahalanet/mahala/src/distribution"
	"github.com/mahalanet/mahala/src/ledger"
	"github.com/mahalanet/mahala/src/net"
)

func newTestNode(t *testing.T, id string, seeds []string, registerPeers bool) *Node {
	return newTestNodeWithListener(t, id, seeds, registerPeers, nil)
}

// newTestNodeWithListener builds a node whose overlay invokes first before the
// node itself.
func newTestNodeWithListener(t *testing.T, id string, seeds []string, registerPeers bool, first net.Listener) *Node {
	conf := TestConfig(t)
	conf.RegisterPeers = registerPeers

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	entry := conf.Logger.WithField("node", id)

	stream, err := net.NewTCPStreamLayer("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	overlay := net.NewOverlay(id, stream, seeds, net.DefaultOverlayConfig(), entry)
	if first != nil {
		overlay.AddListener(first)
	}
	selector := consensus.NewSelector(consensus.DefaultMinQuorum, entry)

	l, err := ledger.NewLedger(nil, nil, nil, entry)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	scheduler := distribution.NewScheduler(l, decimal.RequireFromString("10"), time.Hour, entry)

	return NewNode(conf, NewValidator(id, key, "moniker-"+id), overlay, selector, l, scheduler)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestNodeStartStop(t *testing.T) {
	node := newTestNode(t, "node0", nil, false)

	if node.GetState() != Created {
		t.Fatalf("expected Created, got %s", node.GetState())
	}

	if err := node.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	if node.GetState() != Running {
		t.Fatalf("expected Running, got %s", node.GetState())
	}
	if err := node.Start(); err == nil {
		t.Fatalf("second Start should fail")
	}

	// The node is its own first validator
	if !node.selector.IsRegistered("node0") {
		t.Fatalf("node should register itself as a validator")
	}

	// The first distribution ran on start
	if !node.GetDistributionStatus().DistributedToday {
		t.Fatalf("distribution should have run on start")
	}

	node.Stop()
	node.Stop()

	if node.GetState() != Stopped {
		t.Fatalf("expected Stopped, got %s", node.GetState())
	}
	if node.selector.IsRegistered("node0") {
		t.Fatalf("node should unregister itself on stop")
	}
}

func TestNodeHandshakeRegistersPeers(t *testing.T) {
	a := newTestNode(t, "nodeA", nil, true)
	if err := a.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer a.Stop()

	addr := a.overlay.LocalAddr()

	b := newTestNode(t, "nodeB", []string{addr}, true)
	if err := b.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer b.Stop()

	c := newTestNode(t, "nodeC", []string{addr}, true)
	if err := c.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}

	waitFor(t, "A to register B and C", func() bool {
		return a.selector.ActiveNodeCount() == 3
	})

	// B learns about A from the handshake reply
	waitFor(t, "B to register A", func() bool {
		return b.selector.IsRegistered("nodeA")
	})

	v, ok := a.selector.Validator("nodeB")
	if !ok || v.PublicKey != b.validator.PublicKeyHex() {
		t.Fatalf("nodeB should be registered with its public key")
	}

	c.Stop()

	waitFor(t, "A to unregister C", func() bool {
		return !a.selector.IsRegistered("nodeC")
	})
}

func TestNodeShortLivedPeerNotRegistered(t *testing.T) {
	slow := net.ListenerFunc(func(string, *net.Envelope) {
		time.Sleep(200 * time.Millisecond)
	})

	a := newTestNodeWithListener(t, "nodeA", nil, true, slow)
	if err := a.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer a.Stop()

	hello, err := marshalPayload(&Hello{
		Greeting:  "Hello from ghost",
		PublicKey: "0XABCDEF",
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	line, err := net.NewEnvelope(net.Handshake, "ghost", hello).Marshal()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	conn, err := gonet.Dial("tcp", a.overlay.LocalAddr())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	fmt.Fprintf(conn, "%s\n", line)
	conn.Close()

	waitFor(t, "peer to be removed", func() bool { return a.overlay.PeerCount() == 0 })
	time.Sleep(time.Second)

	if a.selector.IsRegistered("ghost") {
		t.Fatalf("validator of a closed connection should not stay registered")
	}
	if a.selector.ActiveNodeCount() != 1 {
		t.Fatalf("expected only the local validator, got %d", a.selector.ActiveNodeCount())
	}
}

func TestNodeHandshakeWithoutRegistration(t *testing.T) {
	a := newTestNode(t, "nodeA", nil, false)
	if err := a.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer a.Stop()

	b := newTestNode(t, "nodeB", []string{a.overlay.LocalAddr()}, false)
	if err := b.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer b.Stop()

	waitFor(t, "connection", func() bool { return a.overlay.PeerCount() == 1 })
	time.Sleep(50 * time.Millisecond)

	if a.selector.ActiveNodeCount() != 1 {
		t.Fatalf("peers should not be registered, got %d validators", a.selector.ActiveNodeCount())
	}
}

func TestNodeTransactionAndProposal(t *testing.T) {
	a := newTestNode(t, "nodeA", nil, true)
	if err := a.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer a.Stop()

	addr := a.overlay.LocalAddr()

	b := newTestNode(t, "nodeB", []string{addr}, true)
	if err := b.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer b.Stop()

	c := newTestNode(t, "nodeC", []string{addr}, true)
	if err := c.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer c.Stop()

	waitFor(t, "quorum on A", func() bool {
		return a.selector.ActiveNodeCount() == 3
	})

	tx, err := b.RelayTransaction("acc1", "acc2", decimal.RequireFromString("2.5"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if tx.Status != Pending || tx.Amount != "2.5" {
		t.Fatalf("unexpected transaction %#v", tx)
	}

	waitFor(t, "transaction validated", func() bool {
		return a.GetStats()["transactions_valid"] == "1"
	})
	if r := a.GetStats()["transactions_rejected"]; r != "0" {
		t.Fatalf("a transaction from a registered peer should not be rejected, got %s", r)
	}

	if err := b.ProposeBlock("block-1", []string{tx.ID}); err != nil {
		t.Fatalf("err: %v", err)
	}

	waitFor(t, "proposal accepted", func() bool {
		return a.GetStats()["proposals_accepted"] == "1"
	})

	if _, err := b.RelayTransaction("acc1", "acc2", decimal.Zero); err != ledger.ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestNodeTransactionFromUnknownSender(t *testing.T) {
	a := newTestNode(t, "nodeA", nil, false)
	for _, id := range []string{"x", "y"} {
		a.selector.RegisterNode(id, "key")
	}
	if err := a.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer a.Stop()

	payload, _ := marshalPayload(&Transaction{ID: "tx1", Amount: "1"})

	a.OnMessage("peer", net.NewEnvelope(net.TransactionMsg, "stranger", payload))

	stats := a.GetStats()
	if stats["transactions_received"] != "1" ||
		stats["transactions_valid"] != "0" ||
		stats["transactions_rejected"] != "1" {
		t.Fatalf("unexpected stats %v", stats)
	}

	// Garbage payloads are dropped without counting
	a.OnMessage("peer", net.NewEnvelope(net.TransactionMsg, "x", "not json"))
	if a.GetStats()["transactions_received"] != "1" {
		t.Fatalf("garbage transaction should not be counted")
	}
}

func TestPayloadsHaveNoNewline(t *testing.T) {
	payload, err := marshalPayload(&Proposal{
		BlockID: "block\nwith newline",
		TxIDs:   []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if strings.Contains(payload, "\n") {
		t.Fatalf("payload contains a raw newline: %q", payload)
	}

	var p Proposal
	if err := unmarshalPayload(payload, &p); err != nil {
		t.Fatalf("err: %v", err)
	}
	if p.BlockID != "block\nwith newline" || len(p.TxIDs) != 2 {
		t.Fatalf("unexpected proposal %#v", p)
	}
}

func TestGetStats(t *testing.T) {
	node := newTestNode(t, "node0", nil, false)
	node.ledger.OpenPersonalAccount("someone", "dev")

	stats := node.GetStats()

	expected := map[string]string{
		"id":                    "node0",
		"moniker":               "moniker-node0",
		"state":                 "Created",
		"accounts":              "1",
		"personal_accounts":     "1",
		"business_accounts":     "0",
		"daily_amount":          "10",
		"num_peers":             "0",
		"transactions_rejected": "0",
	}
	for k, v := range expected {
		if stats[k] != v {
			t.Fatalf("stats[%s] should be %s, got %s", k, v, stats[k])
		}
	}
}
