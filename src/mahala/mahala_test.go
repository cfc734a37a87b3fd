package mahala

import (
	"context"
	gonet "net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mahalanet/mahala/src/common"
	"github.com/mahalanet/mahala/src/config"
	"github.com/mahalanet/mahala/src/crypto/keys"
	"github.com/mahalanet/mahala/src/node"
	"github.com/mahalanet/mahala/src/peers"
)

func newTestConfig(t *testing.T, dataDir string) *config.Config {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.SetDataDir(dataDir)
	return conf
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

func TestInitStore(t *testing.T) {
	dir := t.TempDir()

	conf := newTestConfig(t, dir)
	conf.Store = true

	engine := NewMahala(conf)
	if err := engine.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}

	account, err := engine.Ledger.OpenPersonalAccount("alice-credential", "device-1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	pub := keys.PublicKeyHex(&engine.Key.PublicKey)
	nodeID := engine.Config.NodeID

	if nodeID != DefaultNodeID(&engine.Key.PublicKey) {
		t.Fatalf("an empty node id should be derived from the key, got %s", nodeID)
	}

	engine.Shutdown()
	engine.Shutdown()

	conf2 := newTestConfig(t, dir)
	conf2.Store = true

	engine2 := NewMahala(conf2)
	if err := engine2.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer engine2.Shutdown()

	if keys.PublicKeyHex(&engine2.Key.PublicKey) != pub {
		t.Fatalf("the key should be reloaded from the keyfile")
	}
	if engine2.Config.NodeID != nodeID {
		t.Fatalf("node id should be stable, got %s and %s", nodeID, engine2.Config.NodeID)
	}
	if _, err := engine2.Ledger.Lookup(account.ID); err != nil {
		t.Fatalf("account should survive a restart: %v", err)
	}
}

func TestInitKeepsConfiguredNodeID(t *testing.T) {
	conf := newTestConfig(t, t.TempDir())
	conf.NodeID = "custom"

	engine := NewMahala(conf)
	if err := engine.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer engine.Shutdown()

	if engine.Config.NodeID != "custom" {
		t.Fatalf("expected custom, got %s", engine.Config.NodeID)
	}
	if id := engine.Node.GetStats()["id"]; id != "custom" {
		t.Fatalf("the node should announce custom, got %s", id)
	}
}

func TestAbortInitReleasesResources(t *testing.T) {
	engine := NewMahala(newTestConfig(t, t.TempDir()))

	for _, step := range []func() error{
		engine.initKey,
		engine.initSeeds,
		engine.initStore,
		engine.initLedger,
		engine.initOverlay,
	} {
		if err := step(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}

	addr := engine.Overlay.LocalAddr()

	engine.abortInit()

	// The address of the overlay is free again
	l, err := gonet.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("the overlay listener should be closed: %v", err)
	}
	l.Close()

	if err := engine.Store.SetLastDistributionDay("2024-03-01"); !common.IsStore(err, common.Closed) {
		t.Fatalf("the store should be closed, got %v", err)
	}
}

func TestInitInvalidConfig(t *testing.T) {
	cases := map[string]func(*config.Config){
		"amount":   func(c *config.Config) { c.DailyAmount = "ten" },
		"negative": func(c *config.Config) { c.DailyAmount = "-1" },
		"quorum":   func(c *config.Config) { c.MinQuorum = 0 },
		"interval": func(c *config.Config) { c.DistributionInterval = 0 },
	}

	for name, mutate := range cases {
		conf := newTestConfig(t, t.TempDir())
		mutate(conf)

		if err := NewMahala(conf).Init(); err == nil {
			t.Fatalf("%s: Init should fail", name)
		}
	}
}

func TestInitSeeds(t *testing.T) {
	dir := t.TempDir()

	jsonPeers := peers.NewJSONPeers(dir)
	if err := jsonPeers.Write([]*peers.Peer{
		peers.NewPeer("", "127.0.0.1:9001", "a"),
		peers.NewPeer("", "127.0.0.1:9002", "b"),
		peers.NewPeer("", "127.0.0.1:7000", "self"),
	}); err != nil {
		t.Fatalf("err: %v", err)
	}

	conf := newTestConfig(t, dir)
	conf.BindAddr = "127.0.0.1:7000"
	conf.Seeds = []string{"127.0.0.1:9002", "127.0.0.1:9003"}

	engine := NewMahala(conf)
	if err := engine.initSeeds(); err != nil {
		t.Fatalf("err: %v", err)
	}

	expected := []string{"127.0.0.1:9002", "127.0.0.1:9003", "127.0.0.1:9001"}
	if len(engine.Seeds) != len(expected) {
		t.Fatalf("expected seeds %v, got %v", expected, engine.Seeds)
	}
	for i, s := range expected {
		if engine.Seeds[i] != s {
			t.Fatalf("expected seeds %v, got %v", expected, engine.Seeds)
		}
	}
}

func TestRun(t *testing.T) {
	engine := NewMahala(newTestConfig(t, t.TempDir()))
	if err := engine.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx)
	}()

	waitFor(t, "node to run", func() bool {
		return engine.Node.GetState() == node.Running
	})

	if !engine.Scheduler.HasDistributedToday() {
		t.Fatalf("the first distribution should run on start")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("err: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for Run to return")
	}

	if engine.Node.GetState() != node.Stopped {
		t.Fatalf("node should be stopped, got %s", engine.Node.GetState())
	}
}

func TestRunServiceFailure(t *testing.T) {
	conf := newTestConfig(t, t.TempDir())
	conf.NoService = false
	conf.ServiceAddr = "127.0.0.1:-1"

	engine := NewMahala(conf)
	if err := engine.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := engine.Run(context.Background()); err == nil {
		t.Fatalf("Run should fail when the service cannot listen")
	}

	if engine.Node.GetState() != node.Stopped {
		t.Fatalf("node should be stopped, got %s", engine.Node.GetState())
	}
}

func TestTwoEngines(t *testing.T) {
	confA := newTestConfig(t, t.TempDir())
	confA.RegisterPeers = true

	a := NewMahala(confA)
	if err := a.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.Run(ctx)
	waitFor(t, "A to run", func() bool { return a.Node.GetState() == node.Running })

	confB := newTestConfig(t, t.TempDir())
	confB.RegisterPeers = true
	confB.Seeds = []string{a.Overlay.LocalAddr()}

	b := NewMahala(confB)
	if err := b.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}

	go b.Run(ctx)

	waitFor(t, "A to register B", func() bool {
		return a.Selector.IsRegistered(confB.NodeID)
	})
	waitFor(t, "B to register A", func() bool {
		return b.Selector.IsRegistered(confA.NodeID)
	})

	if confA.NodeID == confB.NodeID {
		t.Fatalf("distinct keys should give distinct node ids")
	}
}
