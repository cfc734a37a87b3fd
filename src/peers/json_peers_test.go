package peers

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mahalanet/mahala/src/crypto/keys"
)

func TestJSONPeers(t *testing.T) {
	dir := t.TempDir()

	store := NewJSONPeers(dir)

	// Try a read, should get nothing
	if _, err := store.Peers(); err == nil {
		t.Fatalf("Peers() should generate an error")
	}

	seeds, err := store.Seeds()
	if err != nil {
		t.Fatalf("a missing file should not be an error: %v", err)
	}
	if len(seeds) != 0 {
		t.Fatalf("expected no seeds, got %v", seeds)
	}

	peers := []*Peer{}
	for i := 0; i < 3; i++ {
		key, _ := keys.GenerateECDSAKey()
		peers = append(peers, NewPeer(
			keys.PublicKeyHex(&key.PublicKey),
			fmt.Sprintf("127.0.0.1:%d", 8330+i),
			fmt.Sprintf("peer%d", i),
		))
	}

	if err := store.Write(peers); err != nil {
		t.Fatalf("err: %v", err)
	}

	read, err := store.Peers()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !reflect.DeepEqual(peers, read) {
		t.Fatalf("peers do not match")
	}

	seeds, err = store.Seeds()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	expected := []string{"127.0.0.1:8330", "127.0.0.1:8331", "127.0.0.1:8332"}
	if !reflect.DeepEqual(expected, seeds) {
		t.Fatalf("expected %v, got %v", expected, seeds)
	}
}

func TestJSONPeersHandWritten(t *testing.T) {
	dir := t.TempDir()

	content := `[
	{"NetAddr": "10.0.0.1:8333"},
	{"NetAddr": "10.0.0.2:8333", "Moniker": "bob"},
	{"NetAddr": "10.0.0.1:8333"},
	{"Moniker": "no address"}
]`
	if err := os.WriteFile(filepath.Join(dir, jsonPeerPath), []byte(content), 0644); err != nil {
		t.Fatalf("err: %v", err)
	}

	seeds, err := NewJSONPeers(dir).Seeds()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	expected := []string{"10.0.0.1:8333", "10.0.0.2:8333"}
	if !reflect.DeepEqual(expected, seeds) {
		t.Fatalf("expected %v, got %v", expected, seeds)
	}
}

func TestExcludePeer(t *testing.T) {
	peers := []*Peer{
		NewPeer("", "a", ""),
		NewPeer("", "b", ""),
		NewPeer("", "c", ""),
	}

	index, others := ExcludePeer(peers, "b")
	if index != 1 {
		t.Fatalf("expected index 1, got %d", index)
	}
	if len(others) != 2 || others[0].NetAddr != "a" || others[1].NetAddr != "c" {
		t.Fatalf("unexpected remaining peers")
	}
}
