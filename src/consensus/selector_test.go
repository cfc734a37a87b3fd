package consensus

import (
	"fmt"
	"testing"

	"github.com/mahalanet/mahala/src/common"
)

func newTestSelector(t *testing.T, n int) *Selector {
	s := NewSelector(DefaultMinQuorum, common.NewTestEntry(t))
	for i := 0; i < n; i++ {
		s.RegisterNode(fmt.Sprintf("node%d", i), fmt.Sprintf("key%d", i))
	}
	return s
}

func TestSelectValidatorsInsufficient(t *testing.T) {
	s := newTestSelector(t, 2)

	_, err := s.SelectValidators(1)
	if !IsInsufficientNodes(err) {
		t.Fatalf("expected InsufficientNodesError, got %v", err)
	}

	ine := err.(*InsufficientNodesError)
	if ine.Required != 3 || ine.Available != 2 {
		t.Fatalf("unexpected error fields %#v", ine)
	}

	if _, _, err := s.SelectLeader(); !IsInsufficientNodes(err) {
		t.Fatalf("expected InsufficientNodesError, got %v", err)
	}
}

func TestSelectValidatorsNoRepetition(t *testing.T) {
	s := newTestSelector(t, 10)

	for i := 0; i < 100; i++ {
		draw, err := s.SelectValidators(7)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if len(draw) != 7 {
			t.Fatalf("expected 7 validators, got %d", len(draw))
		}

		seen := make(map[string]bool)
		for _, id := range draw {
			if seen[id] {
				t.Fatalf("duplicate validator %s", id)
			}
			if !s.IsRegistered(id) {
				t.Fatalf("drawn validator %s is not registered", id)
			}
			seen[id] = true
		}
	}
}

func TestSelectValidatorsBounds(t *testing.T) {
	s := newTestSelector(t, 4)

	cases := map[int]int{10: 4, 0: 0, -3: 0}
	for count, expected := range cases {
		draw, err := s.SelectValidators(count)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if len(draw) != expected {
			t.Fatalf("SelectValidators(%d) should return %d ids, got %d", count, expected, len(draw))
		}
	}
}

func TestSelectValidatorsCoversAll(t *testing.T) {
	s := newTestSelector(t, 5)

	// Every validator should eventually be drawn as leader
	seen := make(map[string]bool)
	for i := 0; i < 500 && len(seen) < 5; i++ {
		leader, ok, err := s.SelectLeader()
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if !ok {
			t.Fatalf("a leader should be drawn")
		}
		seen[leader] = true
	}
	if len(seen) != 5 {
		t.Fatalf("expected every validator to lead at least once, got %v", seen)
	}
}

func TestSelectorValidatorsCopy(t *testing.T) {
	s := newTestSelector(t, 3)

	vs := s.Validators()
	if len(vs) != 3 || vs[0].NodeID != "node0" {
		t.Fatalf("unexpected validators %v", vs)
	}

	vs[0] = Validator{NodeID: "intruder"}

	if s.IsRegistered("intruder") || !s.IsRegistered("node0") {
		t.Fatalf("changes to the returned slice should not reach the selector")
	}

	v, ok := s.Validator("node1")
	if !ok || v.PublicKey != "key1" {
		t.Fatalf("unexpected validator %#v", v)
	}
}

func TestValidateTransaction(t *testing.T) {
	s := newTestSelector(t, 3)

	valid, err := s.ValidateTransaction("tx1", "node0")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !valid {
		t.Fatalf("tx1 should be valid")
	}

	valid, err = s.ValidateTransaction("tx2", "stranger")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if valid {
		t.Fatalf("transactions from unknown proposers should be invalid")
	}

	s.UnregisterNode("node2")
	if _, err := s.ValidateTransaction("tx3", "node0"); !IsInsufficientNodes(err) {
		t.Fatalf("expected InsufficientNodesError, got %v", err)
	}
}

func TestReachConsensus(t *testing.T) {
	s := newTestSelector(t, 10)

	res, err := s.ReachConsensus("block1", []string{"tx1", "tx2"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !res.Success || res.Verdict != Accepted {
		t.Fatalf("block1 should be accepted, got %#v", res)
	}
	if res.BlockID != "block1" {
		t.Fatalf("expected block1, got %s", res.BlockID)
	}
	if !s.IsRegistered(res.Leader) {
		t.Fatalf("leader %s is not registered", res.Leader)
	}
	if len(res.Validators) != BlockValidators {
		t.Fatalf("expected %d validators, got %d", BlockValidators, len(res.Validators))
	}
}

func TestReachConsensusSmallNetwork(t *testing.T) {
	s := newTestSelector(t, 3)

	res, err := s.ReachConsensus("block1", nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !res.Success || len(res.Validators) != 3 {
		t.Fatalf("unexpected result %#v", res)
	}

	s.UnregisterNode("node0")
	if _, err := s.ReachConsensus("block2", nil); !IsInsufficientNodes(err) {
		t.Fatalf("expected InsufficientNodesError, got %v", err)
	}
}

func TestVerdictBelowQuorum(t *testing.T) {
	s := newTestSelector(t, 0)

	res := s.verdict("block1", "node0", []string{"node0", "node1"})
	if res.Success || res.Verdict != Rejected {
		t.Fatalf("two validators should not reach a quorum of three")
	}
	if res.Reason == "" {
		t.Fatalf("a rejected verdict should carry a reason")
	}
}

func TestMinQuorumDefault(t *testing.T) {
	s := NewSelector(0, nil)

	if s.MinQuorum() != DefaultMinQuorum {
		t.Fatalf("expected default quorum %d, got %d", DefaultMinQuorum, s.MinQuorum())
	}
	if s.ActiveNodeCount() != 0 {
		t.Fatalf("a new selector should have no validators")
	}
}
