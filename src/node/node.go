package node

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mahalanet/mahala/src/consensus"
	"github.com/mahalanet/mahala/src/distribution"
	"github.com/mahalanet/mahala/src/ledger"
	"github.com/mahalanet/mahala/src/net"
)

// Node defines a mahala node
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	validator *Validator

	overlay   *net.Overlay
	selector  *consensus.Selector
	ledger    *ledger.Ledger
	scheduler *distribution.Scheduler

	// peer id (remote address) -> node id announced in its handshake
	peerNodesLock sync.Mutex
	peerNodes     map[string]string

	lifecycleLock sync.Mutex
	start         time.Time

	txReceived        uint64
	txValid           uint64
	txRejected        uint64
	proposalsReceived uint64
	proposalsAccepted uint64
}

// NewNode is a factory method that returns a Node instance. The node registers
// itself as a listener of the overlay.
func NewNode(
	conf *Config,
	validator *Validator,
	overlay *net.Overlay,
	selector *consensus.Selector,
	ledger *ledger.Ledger,
	scheduler *distribution.Scheduler,
) *Node {

	if conf.Logger == nil {
		conf.Logger = DefaultConfig().Logger
	}

	node := &Node{
		conf: conf,
		logger: conf.Logger.WithFields(logrus.Fields{
			"prefix":  "node",
			"node_id": validator.ID(),
		}),
		validator: validator,
		overlay:   overlay,
		selector:  selector,
		ledger:    ledger,
		scheduler: scheduler,
		peerNodes: make(map[string]string),
	}

	overlay.AddListener(node)
	overlay.AddDisconnectHandler(node.onDisconnect)

	return node
}

// Start registers the node as a validator, joins the overlay and starts the
// daily distribution.
func (n *Node) Start() error {
	n.lifecycleLock.Lock()
	defer n.lifecycleLock.Unlock()

	if !n.transition(Created, Starting) {
		return fmt.Errorf("cannot start node in state %s", n.getState())
	}

	n.selector.RegisterNode(n.validator.ID(), n.validator.PublicKeyHex())

	hello, err := n.hello()
	if err != nil {
		return err
	}
	n.overlay.SetHandshakePayload(hello)

	if err := n.overlay.Start(); err != nil {
		n.selector.UnregisterNode(n.validator.ID())
		n.setState(Stopped)
		return err
	}

	n.scheduler.Start()

	n.start = time.Now()
	n.setState(Running)

	n.logger.WithFields(logrus.Fields{
		"listen":  n.overlay.LocalAddr(),
		"peers":   n.overlay.PeerCount(),
		"moniker": n.validator.Moniker,
	}).Info("Node started")

	return nil
}

// Stop halts the distribution, leaves the overlay and unregisters the node. It
// is idempotent.
func (n *Node) Stop() {
	n.lifecycleLock.Lock()
	defer n.lifecycleLock.Unlock()

	if n.getState() == Stopped {
		return
	}

	n.logger.Debug("Stop")

	n.setState(Stopped)

	n.scheduler.Stop()

	if err := n.overlay.Stop(); err != nil {
		n.logger.WithError(err).Warn("Error stopping overlay")
	}

	n.selector.UnregisterNode(n.validator.ID())
}

// OnMessage implements net.Listener.
func (n *Node) OnMessage(peerID string, env *net.Envelope) {
	switch env.Type {
	case net.Handshake:
		n.handleHandshake(peerID, env)
	case net.HandshakeAck:
		n.handleHandshakeAck(peerID, env)
	case net.TransactionMsg:
		n.handleTransaction(peerID, env)
	case net.ConsensusMsg:
		n.handleProposal(peerID, env)
	default:
		n.logger.WithFields(logrus.Fields{
			"peer": peerID,
			"type": env.Type,
		}).Warn("Unknown message type")
	}
}

func (n *Node) handleHandshake(peerID string, env *net.Envelope) {
	n.logger.WithFields(logrus.Fields{
		"peer":   peerID,
		"sender": env.SenderID,
	}).Debug("Received handshake")

	n.registerPeer(peerID, env)

	hello, err := n.hello()
	if err != nil {
		n.logger.WithError(err).Error("Failed to encode handshake reply")
		return
	}

	if err := n.overlay.Send(peerID, net.NewEnvelope(net.HandshakeAck, n.validator.ID(), hello)); err != nil {
		n.logger.WithFields(logrus.Fields{
			"peer":  peerID,
			"error": err,
		}).Warn("Failed to send handshake reply")
	}
}

func (n *Node) handleHandshakeAck(peerID string, env *net.Envelope) {
	n.logger.WithFields(logrus.Fields{
		"peer":   peerID,
		"sender": env.SenderID,
	}).Debug("Received handshake ack")

	n.registerPeer(peerID, env)
}

// registerPeer registers the sender of a handshake as a validator when
// RegisterPeers is set and the payload carries a public key.
func (n *Node) registerPeer(peerID string, env *net.Envelope) {
	if !n.conf.RegisterPeers || env.SenderID == "" || env.SenderID == n.validator.ID() {
		return
	}

	var hello Hello
	if err := unmarshalPayload(env.Payload, &hello); err != nil || hello.PublicKey == "" {
		n.logger.WithField("peer", peerID).Debug("Handshake without public key, peer not registered")
		return
	}

	n.peerNodesLock.Lock()
	n.peerNodes[peerID] = env.SenderID
	n.peerNodesLock.Unlock()

	n.selector.RegisterNode(env.SenderID, hello.PublicKey)
}

func (n *Node) onDisconnect(peerID string) {
	n.peerNodesLock.Lock()
	nodeID, ok := n.peerNodes[peerID]
	delete(n.peerNodes, peerID)
	stillConnected := false
	for _, id := range n.peerNodes {
		if id == nodeID {
			stillConnected = true
			break
		}
	}
	n.peerNodesLock.Unlock()

	if ok && !stillConnected {
		n.selector.UnregisterNode(nodeID)
	}

	n.logger.WithField("peer", peerID).Debug("Peer disconnected")
}

func (n *Node) handleTransaction(peerID string, env *net.Envelope) {
	var tx Transaction
	if err := unmarshalPayload(env.Payload, &tx); err != nil {
		n.logger.WithFields(logrus.Fields{
			"peer":  peerID,
			"error": err,
		}).Error("Failed to decode transaction")
		return
	}

	atomic.AddUint64(&n.txReceived, 1)

	valid, err := n.selector.ValidateTransaction(tx.ID, env.SenderID)
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"tx_id": tx.ID,
			"error": err,
		}).Warn("Cannot validate transaction")
		return
	}

	if valid {
		tx.Status = Confirmed
		atomic.AddUint64(&n.txValid, 1)
	} else {
		tx.Status = Rejected
		atomic.AddUint64(&n.txRejected, 1)
	}

	n.logger.WithFields(logrus.Fields{
		"tx_id":  tx.ID,
		"from":   tx.From,
		"to":     tx.To,
		"amount": tx.Amount,
		"status": tx.Status,
	}).Info("Transaction validated")
}

func (n *Node) handleProposal(peerID string, env *net.Envelope) {
	var p Proposal
	if err := unmarshalPayload(env.Payload, &p); err != nil {
		n.logger.WithFields(logrus.Fields{
			"peer":  peerID,
			"error": err,
		}).Error("Failed to decode block proposal")
		return
	}

	atomic.AddUint64(&n.proposalsReceived, 1)

	res, err := n.selector.ReachConsensus(p.BlockID, p.TxIDs)
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"block_id": p.BlockID,
			"error":    err,
		}).Warn("Cannot evaluate block proposal")
		return
	}

	if res.Success {
		atomic.AddUint64(&n.proposalsAccepted, 1)
	}

	n.logger.WithFields(logrus.Fields{
		"block_id": p.BlockID,
		"txs":      len(p.TxIDs),
		"leader":   res.Leader,
		"verdict":  res.Verdict,
		"reason":   res.Reason,
	}).Info("Block proposal evaluated")
}

// RelayTransaction broadcasts a new transaction to every peer.
func (n *Node) RelayTransaction(from, to string, amount decimal.Decimal) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	tx := &Transaction{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Amount:    amount.String(),
		Timestamp: time.Now().UnixNano() / int64(time.Millisecond),
		Status:    Pending,
	}

	payload, err := marshalPayload(tx)
	if err != nil {
		return nil, err
	}

	if err := n.overlay.Broadcast(net.NewEnvelope(net.TransactionMsg, n.validator.ID(), payload)); err != nil {
		return tx, err
	}

	return tx, nil
}

// ProposeBlock broadcasts a block proposal to every peer.
func (n *Node) ProposeBlock(blockID string, txIDs []string) error {
	payload, err := marshalPayload(&Proposal{
		BlockID: blockID,
		TxIDs:   txIDs,
	})
	if err != nil {
		return err
	}

	return n.overlay.Broadcast(net.NewEnvelope(net.ConsensusMsg, n.validator.ID(), payload))
}

func (n *Node) hello() (string, error) {
	return marshalPayload(&Hello{
		Greeting:  fmt.Sprintf("Hello from %s", n.validator.ID()),
		PublicKey: n.validator.PublicKeyHex(),
		Moniker:   n.validator.Moniker,
	})
}

// ID returns the id of the node.
func (n *Node) ID() string {
	return n.validator.ID()
}

// GetState ...
func (n *Node) GetState() State {
	return n.getState()
}

// GetPeers returns the ids of the connected peers.
func (n *Node) GetPeers() []string {
	return n.overlay.PeerIDs()
}

// GetValidators returns the registered validators, sorted by id.
func (n *Node) GetValidators() []consensus.Validator {
	return n.selector.Validators()
}

// GetConsensusStatus ...
func (n *Node) GetConsensusStatus() ConsensusStatus {
	return ConsensusStatus{
		ActiveNodes: n.selector.ActiveNodeCount(),
		MinQuorum:   n.selector.MinQuorum(),
		Validators:  n.GetValidators(),
	}
}

// GetDistributionStatus ...
func (n *Node) GetDistributionStatus() DistributionStatus {
	return DistributionStatus{
		LastDistribution: n.scheduler.LastDistributionDay().String(),
		DailyAmount:      n.scheduler.DailyAmount().String(),
		DistributedToday: n.scheduler.HasDistributedToday(),
	}
}

// GetAccount returns a snapshot of an account of the ledger.
func (n *Node) GetAccount(accountID string) (ledger.Account, error) {
	return n.ledger.Lookup(accountID)
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	var uptime time.Duration
	if n.getState() == Running {
		uptime = time.Since(n.start)
	}

	s := map[string]string{
		"id":                    n.validator.ID(),
		"moniker":               n.validator.Moniker,
		"state":                 n.getState().String(),
		"uptime":                uptime.Truncate(time.Second).String(),
		"num_peers":             strconv.Itoa(n.overlay.PeerCount()),
		"active_nodes":          strconv.Itoa(n.selector.ActiveNodeCount()),
		"min_quorum":            strconv.Itoa(n.selector.MinQuorum()),
		"accounts":              strconv.Itoa(n.ledger.Count()),
		"personal_accounts":     strconv.Itoa(len(n.ledger.ListPersonalAccounts())),
		"business_accounts":     strconv.Itoa(len(n.ledger.ListBusinessAccounts())),
		"total_supply":          n.ledger.TotalBalance().String(),
		"daily_amount":          n.scheduler.DailyAmount().String(),
		"last_distribution":     n.scheduler.LastDistributionDay().String(),
		"transactions_received": strconv.FormatUint(atomic.LoadUint64(&n.txReceived), 10),
		"transactions_valid":    strconv.FormatUint(atomic.LoadUint64(&n.txValid), 10),
		"transactions_rejected": strconv.FormatUint(atomic.LoadUint64(&n.txRejected), 10),
		"proposals_received":    strconv.FormatUint(atomic.LoadUint64(&n.proposalsReceived), 10),
		"proposals_accepted":    strconv.FormatUint(atomic.LoadUint64(&n.proposalsAccepted), 10),
	}
	return s
}

// ConsensusStatus describes the validator set seen by this node.
type ConsensusStatus struct {
	ActiveNodes int                   `json:"activeNodes"`
	MinQuorum   int                   `json:"minQuorum"`
	Validators  []consensus.Validator `json:"validators"`
}

// DistributionStatus describes the state of the daily distribution.
type DistributionStatus struct {
	LastDistribution string `json:"lastDistribution"`
	DailyAmount      string `json:"dailyAmount"`
	DistributedToday bool   `json:"distributedToday"`
}
