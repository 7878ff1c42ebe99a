package mongodb

import (
	"sync/atomic"

	"github.com/redbco/redb-connector/pkg/connector"
)

const (
	stateIdle int32 = iota
	stateBusy
	stateBorrowed
	stateClosed
)

// guard enforces exclusive use of a session. Callers never wait: a call
// that finds the owner in use fails immediately.
type guard struct {
	state     atomic.Int32
	closedErr error
}

func newGuard(closedErr error) *guard {
	return &guard{closedErr: closedErr}
}

// acquire moves the guard from idle to busy.
func (g *guard) acquire() error {
	if g.state.CompareAndSwap(stateIdle, stateBusy) {
		return nil
	}
	return g.stateErr(g.state.Load())
}

func (g *guard) release() {
	g.state.CompareAndSwap(stateBusy, stateIdle)
}

// transition moves the guard from idle to state, or reports why it cannot.
func (g *guard) transition(to int32) error {
	if g.state.CompareAndSwap(stateIdle, to) {
		return nil
	}
	return g.stateErr(g.state.Load())
}

// restore moves the guard back to idle from state.
func (g *guard) restore(from int32) bool {
	return g.move(from, stateIdle)
}

func (g *guard) move(from, to int32) bool {
	return g.state.CompareAndSwap(from, to)
}

func (g *guard) is(state int32) bool {
	return g.state.Load() == state
}

func (g *guard) stateErr(state int32) error {
	switch state {
	case stateBorrowed:
		return connector.ErrConnectionBorrowed
	case stateClosed:
		return g.closedErr
	default:
		// Busy, or a call finished between the swap and the load.
		return connector.ErrConcurrentUse
	}
}
