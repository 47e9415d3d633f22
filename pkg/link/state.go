// Package link supervises the network association the datagram transports
// depend on.
package link

import (
	"context"
	"sync"
)

// State is the link lifecycle state.
type State int32

// Link states.
const (
	Down State = iota
	Connecting
	// Associated means associated with the access point, no address yet.
	Associated
	AddressAcquired
	Disassociating
)

var stateNames = [...]string{
	Down:            "down",
	Connecting:      "connecting",
	Associated:      "associated",
	AddressAcquired: "address-acquired",
	Disassociating:  "disassociating",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Reader is the read-only view of the link state.
type Reader interface {
	// Load returns the current state.
	Load() State
	// Changed returns a channel closed at the next state change.
	Changed() <-chan struct{}
}

// Cell holds the process-wide link state. Only the owner of the *Cell
// writes it; everyone else gets the Reader view.
type Cell struct {
	lock    sync.Mutex
	state   State
	changed chan struct{}
}

// NewCell creates a Cell in state Down.
func NewCell() *Cell {
	return &Cell{changed: make(chan struct{})}
}

// Load implements Reader.
func (c *Cell) Load() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Changed implements Reader.
func (c *Cell) Changed() <-chan struct{} {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.changed
}

// Store sets the state and wakes up waiting readers. It returns false if the
// state didn't change.
func (c *Cell) Store(s State) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.state == s {
		return false
	}
	c.state = s
	close(c.changed)
	c.changed = make(chan struct{})
	return true
}

// Reader returns the read-only view.
func (c *Cell) Reader() Reader {
	return c
}

// WaitFor blocks until r reports state s.
func WaitFor(ctx context.Context, r Reader, s State) error {
	for {
		changed := r.Changed()
		if r.Load() == s {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
