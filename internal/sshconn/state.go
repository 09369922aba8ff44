// state.go tracks per-host connection state for the sshconn package.
//
// Each host has a State (disconnected, connecting, connected, closed) that
// the Manager lifecycle methods update. Transitions are recorded in a
// per-host ring buffer for the status API and for debugging.

package sshconn

import (
	"sync"
	"time"
)

// State represents the lifecycle state of a host's connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// stateTransitionBufferSize caps the per-host transition history.
const stateTransitionBufferSize = 50

// StateTransition records a single state change.
type StateTransition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// stateEntry tracks the current state and transition history for one host.
type stateEntry struct {
	current     State
	transitions [stateTransitionBufferSize]StateTransition // fixed-size ring buffer
	head        int                                        // next write position
	count       int                                        // entries written, capped at buffer size
}

func (e *stateEntry) record(from, to State, reason string) {
	e.transitions[e.head] = StateTransition{
		From:      from,
		To:        to,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	e.head = (e.head + 1) % stateTransitionBufferSize
	if e.count < stateTransitionBufferSize {
		e.count++
	}
}

// history returns the transitions in chronological order.
func (e *stateEntry) history() []StateTransition {
	if e.count == 0 {
		return nil
	}

	result := make([]StateTransition, e.count)
	if e.count < stateTransitionBufferSize {
		copy(result, e.transitions[:e.count])
	} else {
		// Buffer is full, so head is the oldest entry.
		n := copy(result, e.transitions[e.head:])
		copy(result[n:], e.transitions[:e.head])
	}
	return result
}

// stateTracker manages per-host connection state and transition history.
type stateTracker struct {
	mu     sync.RWMutex
	states map[string]*stateEntry
}

func newStateTracker() *stateTracker {
	return &stateTracker{
		states: make(map[string]*stateEntry),
	}
}

// setState updates the state for a host and records the transition.
// Unchanged states are a no-op.
func (st *stateTracker) setState(host string, state State, reason string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	entry, ok := st.states[host]
	if !ok {
		entry = &stateEntry{current: StateDisconnected}
		st.states[host] = entry
	}
	if entry.current == state {
		return
	}
	from := entry.current
	entry.current = state
	entry.record(from, state, reason)
}

// getState returns the current state for a host, StateDisconnected when the
// host has never been seen.
func (st *stateTracker) getState(host string) State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	entry, ok := st.states[host]
	if !ok {
		return StateDisconnected
	}
	return entry.current
}

// getTransitions returns the transition history for a host, oldest first.
func (st *stateTracker) getTransitions(host string) []StateTransition {
	st.mu.RLock()
	defer st.mu.RUnlock()
	entry, ok := st.states[host]
	if !ok {
		return nil
	}
	return entry.history()
}

// snapshot returns the current state name for every tracked host.
func (st *stateTracker) snapshot() map[string]string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	result := make(map[string]string, len(st.states))
	for host, entry := range st.states {
		result[host] = entry.current.String()
	}
	return result
}
