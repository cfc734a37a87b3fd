package consensus

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultMinQuorum is the minimum number of validators required by any
	// selection.
	DefaultMinQuorum = 3

	// TransactionValidators is the number of validators drawn to validate a
	// single transaction.
	TransactionValidators = 5

	// BlockValidators is the number of validators drawn to evaluate a block
	// proposal.
	BlockValidators = 7
)

// Selector draws validators from a ValidatorRegistry.
type Selector struct {
	registry  *ValidatorRegistry
	minQuorum int
	rand      io.Reader
	logger    *logrus.Entry
}

// NewSelector creates a Selector with an empty registry. A minQuorum below 1
// is replaced by DefaultMinQuorum.
func NewSelector(minQuorum int, logger *logrus.Entry) *Selector {
	if minQuorum < 1 {
		minQuorum = DefaultMinQuorum
	}

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Selector{
		registry:  NewValidatorRegistry(),
		minQuorum: minQuorum,
		rand:      rand.Reader,
		logger:    logger.WithField("prefix", "consensus"),
	}
}

// IsRegistered reports whether nodeID is a registered validator.
func (s *Selector) IsRegistered(nodeID string) bool {
	return s.registry.Contains(nodeID)
}

// Validator returns the validator registered for nodeID.
func (s *Selector) Validator(nodeID string) (Validator, bool) {
	return s.registry.Get(nodeID)
}

// Validators returns a copy of the registered validators sorted by id.
func (s *Selector) Validators() []Validator {
	return s.registry.Validators()
}

// RegisterNode adds or replaces a validator.
func (s *Selector) RegisterNode(nodeID, publicKey string) {
	s.registry.Register(nodeID, publicKey)

	s.logger.WithFields(logrus.Fields{
		"node_id":    nodeID,
		"validators": s.registry.Len(),
	}).Debug("Registered validator")
}

// UnregisterNode removes a validator. Unknown ids are ignored.
func (s *Selector) UnregisterNode(nodeID string) {
	s.registry.Unregister(nodeID)

	s.logger.WithFields(logrus.Fields{
		"node_id":    nodeID,
		"validators": s.registry.Len(),
	}).Debug("Unregistered validator")
}

// ActiveNodeCount returns the number of registered validators.
func (s *Selector) ActiveNodeCount() int {
	return s.registry.Len()
}

// MinQuorum ...
func (s *Selector) MinQuorum() int {
	return s.minQuorum
}

// SelectValidators returns min(count, size) distinct validator ids drawn
// uniformly at random. It fails with an InsufficientNodesError when fewer than
// MinQuorum validators are registered.
func (s *Selector) SelectValidators(count int) ([]string, error) {
	ids := s.registry.IDs()

	if len(ids) < s.minQuorum {
		return nil, &InsufficientNodesError{
			Required:  s.minQuorum,
			Available: len(ids),
		}
	}

	if err := shuffle(s.rand, ids); err != nil {
		return nil, fmt.Errorf("shuffling validators: %w", err)
	}

	return ids[:clamp(count, len(ids))], nil
}

// SelectLeader draws a single validator. The boolean is false when the draw is
// empty.
func (s *Selector) SelectLeader() (string, bool, error) {
	draw, err := s.SelectValidators(1)
	if err != nil {
		return "", false, err
	}

	if len(draw) == 0 {
		return "", false, nil
	}

	return draw[0], true, nil
}

// ValidateTransaction reports whether a transaction proposed by proposerID
// gathers a quorum of validators. Transactions from unregistered proposers are
// invalid.
func (s *Selector) ValidateTransaction(txID, proposerID string) (bool, error) {
	if !s.registry.Contains(proposerID) {
		s.logger.WithFields(logrus.Fields{
			"tx_id":    txID,
			"proposer": proposerID,
		}).Debug("Unknown proposer")
		return false, nil
	}

	draw, err := s.SelectValidators(TransactionValidators)
	if err != nil {
		return false, err
	}

	valid := len(draw) >= s.minQuorum

	s.logger.WithFields(logrus.Fields{
		"tx_id":      txID,
		"proposer":   proposerID,
		"validators": draw,
		"valid":      valid,
	}).Debug("ValidateTransaction")

	return valid, nil
}

// ReachConsensus elects a leader and draws the validators that evaluate a
// block proposal.
func (s *Selector) ReachConsensus(blockID string, txIDs []string) (*RoundResult, error) {
	leader, ok, err := s.SelectLeader()
	if err != nil {
		return nil, err
	}

	if !ok {
		return &RoundResult{
			BlockID: blockID,
			Success: false,
			Verdict: Rejected,
			Reason:  "no leader available",
		}, nil
	}

	draw, err := s.SelectValidators(BlockValidators)
	if err != nil {
		return nil, err
	}

	res := s.verdict(blockID, leader, draw)

	s.logger.WithFields(logrus.Fields{
		"block_id":   blockID,
		"txs":        len(txIDs),
		"leader":     leader,
		"validators": draw,
		"verdict":    res.Verdict,
	}).Debug("ReachConsensus")

	return res, nil
}

// SelectValidatorsFromSeed is the deterministic counterpart of
// SelectValidators: every node holding the same seed and validator set
// returns the same ids.
func (s *Selector) SelectValidatorsFromSeed(seed []byte, count int) ([]string, error) {
	ids := s.registry.IDs()

	if len(ids) < s.minQuorum {
		return nil, &InsufficientNodesError{
			Required:  s.minQuorum,
			Available: len(ids),
		}
	}

	return SharedDraw(seed, ids, count), nil
}

func (s *Selector) verdict(blockID, leader string, draw []string) *RoundResult {
	res := &RoundResult{
		BlockID:    blockID,
		Leader:     leader,
		Validators: draw,
	}

	if len(draw) >= s.minQuorum {
		res.Success = true
		res.Verdict = Accepted
	} else {
		res.Verdict = Rejected
		res.Reason = fmt.Sprintf("%d validators, quorum is %d", len(draw), s.minQuorum)
	}

	return res
}

// shuffle permutes ids in place (Fisher-Yates) with indexes read from r.
func shuffle(r io.Reader, ids []string) error {
	for i := len(ids) - 1; i > 0; i-- {
		j, err := rand.Int(r, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		k := int(j.Int64())
		ids[i], ids[k] = ids[k], ids[i]
	}
	return nil
}

func clamp(count, size int) int {
	if count < 0 {
		return 0
	}
	if count > size {
		return size
	}
	return count
}
