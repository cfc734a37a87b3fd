package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrOverlayShutdown is returned when operations on an overlay are
	// invoked after it's been stopped.
	ErrOverlayShutdown = errors.New("overlay shutdown")

	// ErrAlreadyStarted is returned by Start when the overlay is running.
	ErrAlreadyStarted = errors.New("overlay already started")

	// ErrSelfConnection is returned by Connect for addresses that point back
	// at this node.
	ErrSelfConnection = errors.New("refusing to connect to self")
)

// Default values of OverlayConfig.
const (
	DefaultTimeout      = 1000 * time.Millisecond
	DefaultDialAttempts = 1
	DefaultInboxSize    = 64
	DefaultRetryDelay   = 500 * time.Millisecond
)

// OverlayConfig tunes the connection handling of an Overlay.
type OverlayConfig struct {
	// Timeout bounds outbound dials and every write.
	Timeout time.Duration

	// DialAttempts is the number of times a seed is dialled before giving up.
	// 1 means no retry.
	DialAttempts uint

	// RetryDelay is the pause between dial attempts.
	RetryDelay time.Duration

	// InboxSize is the number of decoded envelopes buffered per connection
	// while waiting for the listeners.
	InboxSize int
}

// DefaultOverlayConfig ...
func DefaultOverlayConfig() OverlayConfig {
	return OverlayConfig{
		Timeout:      DefaultTimeout,
		DialAttempts: DefaultDialAttempts,
		RetryDelay:   DefaultRetryDelay,
		InboxSize:    DefaultInboxSize,
	}
}

/*
Overlay maintains this node's presence in the network. It accepts inbound
connections, dials the seed addresses, and moves envelopes between the wire and
the registered listeners.

Envelopes are framed by a newline: the codec never emits one, so each line on
the stream is exactly one encoded envelope.
*/
type Overlay struct {
	nodeID string
	logger *logrus.Entry
	conf   OverlayConfig

	stream StreamLayer
	seeds  []string
	peers  *PeerRegistry

	handshakePayload string

	listenersLock      sync.RWMutex
	listeners          []Listener
	disconnectHandlers []func(peerID string)

	lock     sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOverlay creates an Overlay on top of a bound StreamLayer. Nothing happens
// on the network until Start is called.
func NewOverlay(
	nodeID string,
	stream StreamLayer,
	seeds []string,
	conf OverlayConfig,
	logger *logrus.Entry,
) *Overlay {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if conf.InboxSize <= 0 {
		conf.InboxSize = DefaultInboxSize
	}
	if conf.DialAttempts == 0 {
		conf.DialAttempts = DefaultDialAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Overlay{
		nodeID:           nodeID,
		logger:           logger.WithField("prefix", "overlay"),
		conf:             conf,
		stream:           stream,
		seeds:            append([]string(nil), seeds...),
		peers:            NewPeerRegistry(),
		handshakePayload: fmt.Sprintf("Hello from %s", nodeID),
		ctx:              ctx,
		cancel:           cancel,
	}
}

// NodeID returns the id this overlay announces in its envelopes.
func (o *Overlay) NodeID() string {
	return o.nodeID
}

// SetHandshakePayload replaces the payload of the HANDSHAKE envelope sent on
// every outbound connection. It must be called before Start.
func (o *Overlay) SetHandshakePayload(payload string) {
	o.lock.Lock()
	defer o.lock.Unlock()

	o.handshakePayload = payload
}

// AddListener registers a Listener. Listeners are invoked in registration
// order.
func (o *Overlay) AddListener(l Listener) {
	o.listenersLock.Lock()
	defer o.listenersLock.Unlock()

	o.listeners = append(o.listeners, l)
}

// AddDisconnectHandler registers a function called with the id of every peer
// whose connection closes.
func (o *Overlay) AddDisconnectHandler(f func(peerID string)) {
	o.listenersLock.Lock()
	defer o.listenersLock.Unlock()

	o.disconnectHandlers = append(o.disconnectHandlers, f)
}

// LocalAddr returns the address of the listening socket.
func (o *Overlay) LocalAddr() string {
	addr := o.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr returns the address where other peers can reach us.
func (o *Overlay) AdvertiseAddr() string {
	return o.stream.AdvertiseAddr()
}

// PeerIDs returns the ids of the connected peers.
func (o *Overlay) PeerIDs() []string {
	return o.peers.IDs()
}

// PeerCount returns the number of connected peers.
func (o *Overlay) PeerCount() int {
	return o.peers.Len()
}

// IsShutdown is used to check if the overlay is stopped.
func (o *Overlay) IsShutdown() bool {
	select {
	case <-o.ctx.Done():
		return true
	default:
		return false
	}
}

// Start launches the accept loop and dials every seed. Seeds that cannot be
// reached are logged and skipped.
func (o *Overlay) Start() error {
	o.lock.Lock()
	if o.shutdown {
		o.lock.Unlock()
		return ErrOverlayShutdown
	}
	if o.started {
		o.lock.Unlock()
		return ErrAlreadyStarted
	}
	o.started = true
	o.lock.Unlock()

	o.logger.WithFields(logrus.Fields{
		"node_id": o.nodeID,
		"listen":  o.LocalAddr(),
	}).Info("Overlay started")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.listen()
	}()

	o.connectToSeeds()

	return nil
}

// Stop closes the listener and every connection, and waits for the connection
// routines to exit. It is idempotent.
func (o *Overlay) Stop() error {
	o.lock.Lock()
	if o.shutdown {
		o.lock.Unlock()
		return nil
	}
	o.shutdown = true
	o.cancel()
	o.lock.Unlock()

	err := o.stream.Close()

	for _, p := range o.peers.Snapshot() {
		p.Close()
	}

	o.wg.Wait()

	o.logger.WithField("node_id", o.nodeID).Info("Overlay stopped")

	return err
}

func (o *Overlay) connectToSeeds() {
	for _, seed := range o.seeds {
		if o.isSelf(seed) {
			o.logger.WithField("seed", seed).Debug("Skipping seed pointing at self")
			continue
		}

		if err := o.Connect(seed); err != nil {
			o.logger.WithFields(logrus.Fields{
				"seed":  seed,
				"error": err,
			}).Warn("Failed to connect to seed")
		}
	}
}

// Connect dials addr, registers the connection and sends a HANDSHAKE.
func (o *Overlay) Connect(addr string) error {
	if o.IsShutdown() {
		return ErrOverlayShutdown
	}
	if o.isSelf(addr) {
		return ErrSelfConnection
	}

	var conn net.Conn
	err := retry.Do(
		func() error {
			c, err := o.stream.Dial(addr, o.conf.Timeout)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Attempts(o.conf.DialAttempts),
		retry.Delay(o.conf.RetryDelay),
		retry.LastErrorOnly(true),
		retry.Context(o.ctx),
		retry.OnRetry(func(n uint, err error) {
			o.logger.WithFields(logrus.Fields{
				"addr":    addr,
				"attempt": n + 1,
				"error":   err,
			}).Debug("Dial retry")
		}),
	)
	if err != nil {
		return err
	}

	peer, err := o.register(addr, conn, true)
	if err != nil {
		conn.Close()
		return err
	}

	o.lock.Lock()
	payload := o.handshakePayload
	o.lock.Unlock()

	if err := o.sendTo(peer, NewEnvelope(Handshake, o.nodeID, payload)); err != nil {
		return err
	}

	o.logger.WithField("peer", peer.ID).Info("Connected to peer")

	return nil
}

// Send writes env to the peer registered under peerID. Envelopes for unknown or
// closed peers are dropped silently.
func (o *Overlay) Send(peerID string, env *Envelope) error {
	peer, ok := o.peers.Get(peerID)
	if !ok {
		o.logger.WithField("peer", peerID).Debug("Dropping envelope for unknown peer")
		return nil
	}
	return o.sendTo(peer, env)
}

// Broadcast sends env to every peer connected when the call starts. Writes to
// different peers proceed concurrently; the first write error is returned.
func (o *Overlay) Broadcast(env *Envelope) error {
	line, err := env.Marshal()
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, p := range o.peers.Snapshot() {
		p := p
		g.Go(func() error {
			return o.writeTo(p, line)
		})
	}

	return g.Wait()
}

func (o *Overlay) sendTo(peer *Peer, env *Envelope) error {
	line, err := env.Marshal()
	if err != nil {
		return err
	}
	return o.writeTo(peer, line)
}

func (o *Overlay) writeTo(peer *Peer, line []byte) error {
	if !peer.IsOpen() {
		return nil
	}

	if err := peer.writeLine(line); err != nil {
		o.logger.WithFields(logrus.Fields{
			"peer":  peer.ID,
			"error": err,
		}).Warn("Failed to write envelope")
		peer.Close()
		return err
	}
	return nil
}

// listen handles incoming connections until the stream is closed.
func (o *Overlay) listen() {
	for {
		// Accept incoming connections
		conn, err := o.stream.Accept()
		if err != nil {
			if o.IsShutdown() {
				return
			}
			o.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		o.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		if _, err := o.register(conn.RemoteAddr().String(), conn, false); err != nil {
			conn.Close()
		}
	}
}

// register adds the connection to the registry and starts its read loop and
// dispatcher.
func (o *Overlay) register(id string, conn net.Conn, outbound bool) (*Peer, error) {
	peer := newPeer(id, conn, outbound, o.conf.Timeout, o.conf.InboxSize)

	o.lock.Lock()
	defer o.lock.Unlock()

	if o.shutdown {
		return nil, ErrOverlayShutdown
	}

	if prev := o.peers.Add(peer); prev != nil {
		o.logger.WithField("peer", id).Debug("Replacing existing connection")
	}

	o.wg.Add(2)
	go func() {
		defer o.wg.Done()
		o.readLoop(peer)
	}()
	go func() {
		defer o.wg.Done()
		o.dispatchLoop(peer)
	}()

	o.logger.WithFields(logrus.Fields{
		"peer":     id,
		"outbound": outbound,
		"peers":    o.peers.Len(),
	}).Info("Added peer")

	return peer, nil
}

// readLoop decodes envelopes from the connection until it closes. Decoding
// errors are logged and do not tear the connection down.
func (o *Overlay) readLoop(peer *Peer) {
	defer close(peer.inbox)
	defer o.detach(peer)

	for {
		line, err := peer.r.ReadBytes('\n')

		if len(line) > 0 && err == nil {
			o.onInbound(peer, line[:len(line)-1])
		}

		if err != nil {
			if err != io.EOF && peer.IsOpen() && !o.IsShutdown() {
				o.logger.WithFields(logrus.Fields{
					"peer":  peer.ID,
					"error": err,
				}).Debug("Read failed")
			}
			return
		}
	}
}

func (o *Overlay) onInbound(peer *Peer, raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		o.logger.WithFields(logrus.Fields{
			"peer":  peer.ID,
			"error": err,
		}).Error("Failed to decode envelope")
		return
	}

	select {
	case peer.inbox <- env:
	case <-peer.closedCh:
	}
}

// dispatchLoop delivers the envelopes of one peer in receipt order. The
// disconnect handlers run only once the inbox is drained, so they always
// observe every envelope the peer sent before closing.
func (o *Overlay) dispatchLoop(peer *Peer) {
	for env := range peer.inbox {
		o.dispatch(peer.ID, env)
	}

	if peer.removed {
		o.onDisconnect(peer.ID)
	}
}

// dispatch hands env to every listener, in registration order. A panicking
// listener is logged and does not prevent the others from running.
func (o *Overlay) dispatch(peerID string, env *Envelope) {
	if !env.Type.Known() {
		o.logger.WithFields(logrus.Fields{
			"peer": peerID,
			"type": env.Type,
		}).Warn("Unknown message type")
		return
	}

	o.listenersLock.RLock()
	listeners := make([]Listener, len(o.listeners))
	copy(listeners, o.listeners)
	o.listenersLock.RUnlock()

	for _, l := range listeners {
		o.invoke(l, peerID, env)
	}
}

func (o *Overlay) invoke(l Listener, peerID string, env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithFields(logrus.Fields{
				"peer":  peerID,
				"type":  env.Type,
				"panic": r,
			}).Error("Listener panicked")
		}
	}()

	l.OnMessage(peerID, env)
}

// detach removes the peer from the registry and closes its connection if
// still open. It runs on the read loop before the inbox is closed.
func (o *Overlay) detach(peer *Peer) {
	peer.removed = o.peers.RemoveIf(peer)
	peer.Close()

	if peer.removed {
		o.logger.WithField("peer", peer.ID).Info("Removed peer")
	}
}

func (o *Overlay) onDisconnect(peerID string) {
	o.listenersLock.RLock()
	handlers := make([]func(string), len(o.disconnectHandlers))
	copy(handlers, o.disconnectHandlers)
	o.listenersLock.RUnlock()

	for _, h := range handlers {
		h(peerID)
	}
}

// isSelf reports whether addr resolves to this node's own listening address.
func (o *Overlay) isSelf(addr string) bool {
	if addr == o.stream.AdvertiseAddr() {
		return true
	}

	local, ok := o.stream.Addr().(*net.TCPAddr)
	if !ok {
		return addr == o.LocalAddr()
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port != local.Port {
		return false
	}

	if host == "localhost" {
		return local.IP.IsLoopback() || local.IP.IsUnspecified()
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return false
		}
		ip = ips[0]
	}

	if ip.Equal(local.IP) {
		return true
	}

	return ip.IsLoopback() && (local.IP.IsLoopback() || local.IP.IsUnspecified())
}
