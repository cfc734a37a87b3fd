package node

import (
	"sync/atomic"
)

// State captures the state of a node: Starting, Running or Stopped
type State uint32

const (
	// Created is the state of a node that was never started.
	Created State = iota
	// Starting is the state while the overlay and scheduler start.
	Starting
	// Running ...
	Running
	// Stopped ...
	Stopped
)

// String ...
func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// transition moves from one state to another and reports whether the node was
// in the from state.
func (b *state) transition(from, to State) bool {
	stateAddr := (*uint32)(&b.state)
	return atomic.CompareAndSwapUint32(stateAddr, uint32(from), uint32(to))
}
