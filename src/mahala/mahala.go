package mahala

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mahalanet/mahala/src/config"
	"github.com/mahalanet/mahala/src/consensus"
	"github.com/mahalanet/mahala/src/crypto"
	"github.com/mahalanet/mahala/src/crypto/keys"
	"github.com/mahalanet/mahala/src/distribution"
	"github.com/mahalanet/mahala/src/ledger"
	"github.com/mahalanet/mahala/src/net"
	"github.com/mahalanet/mahala/src/node"
	"github.com/mahalanet/mahala/src/peers"
	"github.com/mahalanet/mahala/src/service"
)

// Mahala is a struct containing the key parts of a mahala node
type Mahala struct {
	Config    *config.Config
	Key       *ecdsa.PrivateKey
	Seeds     []string
	Store     ledger.Store
	Ledger    *ledger.Ledger
	Overlay   *net.Overlay
	Selector  *consensus.Selector
	Scheduler *distribution.Scheduler
	Node      *node.Node
	Service   *service.Service

	logger       *logrus.Entry
	shutdownOnce sync.Once
}

// NewMahala is a factory method to produce a Mahala instance.
func NewMahala(c *config.Config) *Mahala {
	engine := &Mahala{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

// Init initialises the engine based on its configuration. It loads or creates
// the key and the ledger store, and builds every component without starting
// any of them.
func (m *Mahala) Init() error {
	m.logger.Debug("validateConfig")
	if err := m.validateConfig(); err != nil {
		m.logger.WithError(err).Error("mahala.go:Init() validateConfig")
		return err
	}

	m.logger.Debug("initKey")
	if err := m.initKey(); err != nil {
		m.logger.WithError(err).Error("mahala.go:Init() initKey")
		return err
	}

	m.logger.Debug("initSeeds")
	if err := m.initSeeds(); err != nil {
		m.logger.WithError(err).Error("mahala.go:Init() initSeeds")
		return err
	}

	m.logger.Debug("initStore")
	if err := m.initStore(); err != nil {
		m.logger.WithError(err).Error("mahala.go:Init() initStore")
		return err
	}

	m.logger.Debug("initLedger")
	if err := m.initLedger(); err != nil {
		m.logger.WithError(err).Error("mahala.go:Init() initLedger")
		m.abortInit()
		return err
	}

	m.logger.Debug("initOverlay")
	if err := m.initOverlay(); err != nil {
		m.logger.WithError(err).Error("mahala.go:Init() initOverlay")
		m.abortInit()
		return err
	}

	m.logger.Debug("initNode")
	if err := m.initNode(); err != nil {
		m.logger.WithError(err).Error("mahala.go:Init() initNode")
		m.abortInit()
		return err
	}

	m.logger.Debug("initService")
	m.initService()

	return nil
}

// abortInit releases what a failed Init acquired: the listener of the overlay
// and the store.
func (m *Mahala) abortInit() {
	if m.Overlay != nil {
		if err := m.Overlay.Stop(); err != nil {
			m.logger.WithError(err).Warn("Error stopping overlay")
		}
	}

	if m.Store != nil {
		if err := m.Store.Close(); err != nil {
			m.logger.WithError(err).Warn("Error closing store")
		}
	}
}

func (m *Mahala) validateConfig() error {
	if m.Config.MinQuorum < 1 {
		return fmt.Errorf("min-quorum must be at least 1, got %d", m.Config.MinQuorum)
	}

	amount, err := decimal.NewFromString(m.Config.DailyAmount)
	if err != nil {
		return fmt.Errorf("invalid daily-amount %q: %w", m.Config.DailyAmount, err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("daily-amount must be positive, got %s", amount)
	}

	if m.Config.DistributionInterval <= 0 {
		return fmt.Errorf("distribution-interval must be positive, got %s", m.Config.DistributionInterval)
	}

	return nil
}

func (m *Mahala) initKey() error {
	if m.Key != nil {
		return nil
	}

	keyfile := keys.NewSimpleKeyfile(m.Config.Keyfile())

	key, created, err := keyfile.LoadOrGenerate()
	if err != nil {
		return fmt.Errorf("loading key from %s: %w", keyfile.Path(), err)
	}

	if created {
		m.logger.WithField("public_key", keys.PublicKeyHex(&key.PublicKey)).Info("Created a new key")
	}

	m.Key = key

	if m.Config.NodeID == "" {
		m.Config.NodeID = DefaultNodeID(&key.PublicKey)
	}

	return nil
}

// DefaultNodeID derives a stable node id from a public key.
func DefaultNodeID(pub *ecdsa.PublicKey) string {
	return "node-" + crypto.Digest(keys.PublicKeyHex(pub))[:16]
}

// initSeeds merges the seeds of the configuration with the addresses found in
// [datadir]/peers.json, excluding our own address.
func (m *Mahala) initSeeds() error {
	fromFile, err := peers.NewJSONPeers(m.Config.DataDir).Seeds()
	if err != nil {
		return err
	}

	all := make([]*peers.Peer, 0, len(m.Config.Seeds)+len(fromFile))
	for _, s := range m.Config.Seeds {
		all = append(all, peers.NewPeer("", s, ""))
	}
	for _, s := range fromFile {
		all = append(all, peers.NewPeer("", s, ""))
	}

	_, others := peers.ExcludePeer(all, m.Config.BindAddr)
	if m.Config.AdvertiseAddr != "" {
		_, others = peers.ExcludePeer(others, m.Config.AdvertiseAddr)
	}

	m.Seeds = peers.Addresses(others)

	return nil
}

func (m *Mahala) initStore() error {
	if !m.Config.Store {
		m.Store = ledger.NewInmemStore()

		m.logger.Debug("created new in-mem store")

		return nil
	}

	m.logger.WithField("path", m.Config.DatabaseDir).Debug("Attempting to load or create database")

	store, err := ledger.LoadOrCreateBadgerStore(m.Config.DatabaseDir, m.logger)
	if err != nil {
		return err
	}

	if store.NeedBootstrap() {
		m.logger.Debug("loaded badger store from existing database")
	} else {
		m.logger.Debug("created new badger store from fresh database")
	}

	m.Store = store

	return nil
}

func (m *Mahala) initLedger() error {
	l, err := ledger.NewLedger(m.Store, crypto.NewSaltedHasher(), ledger.OpenPolicy{}, m.logger)
	if err != nil {
		return err
	}

	m.Ledger = l

	return nil
}

func (m *Mahala) initOverlay() error {
	stream, err := net.NewTCPStreamLayer(m.Config.BindAddr, m.Config.AdvertiseAddr)
	if err != nil {
		return err
	}

	conf := net.DefaultOverlayConfig()
	conf.Timeout = m.Config.TCPTimeout
	conf.DialAttempts = m.Config.DialAttempts
	if m.Config.InboxSize > 0 {
		conf.InboxSize = m.Config.InboxSize
	}

	m.Overlay = net.NewOverlay(m.Config.NodeID, stream, m.Seeds, conf, m.logger)

	return nil
}

func (m *Mahala) initNode() error {
	m.Selector = consensus.NewSelector(m.Config.MinQuorum, m.logger)

	amount, err := decimal.NewFromString(m.Config.DailyAmount)
	if err != nil {
		return err
	}

	m.Scheduler = distribution.NewScheduler(
		m.Ledger,
		amount,
		m.Config.DistributionInterval,
		m.logger,
		distribution.WithStore(m.Store),
	)

	nodeConf := &node.Config{
		RegisterPeers: m.Config.RegisterPeers,
		Logger:        m.logger.Logger,
	}

	m.Node = node.NewNode(
		nodeConf,
		node.NewValidator(m.Config.NodeID, m.Key, m.Config.Moniker),
		m.Overlay,
		m.Selector,
		m.Ledger,
		m.Scheduler,
	)

	return nil
}

func (m *Mahala) initService() {
	if !m.Config.NoService {
		m.Service = service.NewService(m.Config.ServiceAddr, m.Node, m.logger)
	}
}

// Run starts the node and the status service, and blocks until ctx is done or
// the service fails. Either way the engine is shut down before Run returns.
func (m *Mahala) Run(ctx context.Context) error {
	if err := m.Node.Start(); err != nil {
		m.Shutdown()
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if m.Service != nil {
		g.Go(m.Service.Serve)
	}

	g.Go(func() error {
		<-ctx.Done()
		m.Shutdown()
		return nil
	})

	return g.Wait()
}

// Shutdown stops the node and the service and closes the store. It is
// idempotent.
func (m *Mahala) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.logger.Info("Shutdown")

		if m.Node != nil {
			m.Node.Stop()
		}

		if m.Service != nil {
			if err := m.Service.Shutdown(); err != nil {
				m.logger.WithError(err).Warn("Error stopping service")
			}
		}

		if m.Store != nil {
			if err := m.Store.Close(); err != nil {
				m.logger.WithError(err).Warn("Error closing store")
			}
		}
	})
}
