package consensus

// Verdict is the outcome of a consensus round.
type Verdict uint32

const (
	// Rejected means the proposal did not gather enough validators.
	Rejected Verdict = iota
	// Accepted means the proposal gathered at least a quorum of validators.
	Accepted
)

// String ...
func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "Accepted"
	default:
		return "Rejected"
	}
}

// RoundResult reports the outcome of ReachConsensus on a block proposal.
type RoundResult struct {
	BlockID    string
	Success    bool
	Verdict    Verdict
	Reason     string
	Leader     string
	Validators []string
}
