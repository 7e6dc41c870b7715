// Package lazy provides the once-only gate guarding each load stage.
package lazy

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle of a Gate.
type State uint32

const (
	// Unstarted means the stage body has not completed successfully yet.
	Unstarted State = iota
	// Running means a caller is executing the stage body.
	Running
	// Done means the stage body completed and its result is published.
	Done
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Gate runs a stage body at most once to success.
//
// Callers arriving while the body runs block until it finishes. Once the gate
// is Done every call returns immediately without taking the lock. A failed
// body leaves the gate Unstarted so that a later call can retry.
//
// The zero value is ready to use.
type Gate struct {
	state atomic.Uint32
	mu    sync.Mutex
}

// Do runs fn unless the gate is already Done.
func (g *Gate) Do(fn func() error) error {
	if State(g.state.Load()) == Done {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if State(g.state.Load()) == Done {
		return nil
	}

	g.state.Store(uint32(Running))
	if err := fn(); err != nil {
		g.state.Store(uint32(Unstarted))
		return err
	}
	g.state.Store(uint32(Done))
	return nil
}

// State returns the current state.
func (g *Gate) State() State {
	return State(g.state.Load())
}

// Done reports whether the stage completed.
func (g *Gate) Done() bool {
	return g.State() == Done
}
