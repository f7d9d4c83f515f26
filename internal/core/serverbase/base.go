// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"sync"
	"sync/atomic"
)

// Base holds the lifecycle state of a single server instance.
// Concrete server implementations embed this struct.
//
// The normal path is Created -> Starting -> Started -> Shutdown. The only
// backward edge is Starting -> Created, taken when binding fails so that the
// same instance can be started again.
type Base struct {
	// State management (atomic for lock-free reads)
	state atomic.Int32

	// Guards lastErr.
	mu      sync.Mutex
	lastErr error

	startedCh chan struct{}
	startOnce sync.Once
	closedCh  chan struct{}
	closeOnce sync.Once
	observers []func(from, to State)
}

// NewBase creates a new Base in StateCreated.
func NewBase(opts ...Option) *Base {
	b := &Base{
		startedCh: make(chan struct{}),
		closedCh:  make(chan struct{}),
	}
	b.state.Store(int32(StateCreated))

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// State returns the current server state (atomic, lock-free read).
func (b *Base) State() State {
	return State(b.state.Load())
}

// IsStarted returns true if the server is in the Started state.
func (b *Base) IsStarted() bool {
	return b.State() == StateStarted
}

// LastError returns the error recorded by the most recent AbortStart, or nil.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// --- Transitions ---

// TryStart attempts Created -> Starting.
// Returns false if another caller already started the server or it is past Created.
func (b *Base) TryStart() bool {
	return b.transition(StateCreated, StateStarting)
}

// MarkStarted attempts Starting -> Started and closes the started channel.
func (b *Base) MarkStarted() bool {
	if !b.transition(StateStarting, StateStarted) {
		return false
	}
	b.startOnce.Do(func() { close(b.startedCh) })
	return true
}

// AbortStart attempts Starting -> Created, recording err as the last error.
func (b *Base) AbortStart(err error) bool {
	if !b.transition(StateStarting, StateCreated) {
		return false
	}
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
	return true
}

// TryShutdown attempts Started -> Shutdown.
// Returns false if the server was never started or is already shut down.
func (b *Base) TryShutdown() bool {
	return b.transition(StateStarted, StateShutdown)
}

// MarkClosed closes the channel returned by Closed. It is safe to call more
// than once and does not change the state: a socket may close on its own
// while the server is still Started.
func (b *Base) MarkClosed() {
	b.closeOnce.Do(func() { close(b.closedCh) })
}

// StartedChannel returns a channel that is closed once the server reaches Started.
func (b *Base) StartedChannel() <-chan struct{} {
	return b.startedCh
}

// Closed returns a channel that is closed once the listening socket has closed.
func (b *Base) Closed() <-chan struct{} {
	return b.closedCh
}

func (b *Base) transition(from, to State) bool {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	for _, fn := range b.observers {
		fn(from, to)
	}
	return true
}
