// events.go records connection lifecycle events for the sshconn package.
//
// Events (connect, reuse, liveness failure, timeouts, close) are kept in a
// per-host ring buffer for the status API and fanned out to registered
// sinks (the audit store) and subscribers (live websocket feeds).
// Complements state.go, which tracks state changes; events track individual
// actions and their outcomes.

package sshconn

import (
	"sync"
	"time"
)

// EventType names a connection lifecycle action.
type EventType string

const (
	EventConnected      EventType = "connected"
	EventReused         EventType = "reused"
	EventConnectFailed  EventType = "connect_failed"
	EventAuthFailed     EventType = "auth_failed"
	EventLivenessFailed EventType = "liveness_failed"
	EventCommandTimeout EventType = "command_timeout"
	EventCommandFailed  EventType = "command_failed"
	EventClosed         EventType = "closed"
)

// Event is one connection lifecycle occurrence for a host.
type Event struct {
	Host      string    `json:"host"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// eventBufferSize caps the per-host event history.
const eventBufferSize = 100

// subscriberBufferSize is the channel capacity for live subscribers.
// Slow subscribers drop events instead of blocking the manager.
const subscriberBufferSize = 64

type eventBuffer struct {
	events [eventBufferSize]Event
	head   int
	count  int
}

func (b *eventBuffer) record(event Event) {
	b.events[b.head] = event
	b.head = (b.head + 1) % eventBufferSize
	if b.count < eventBufferSize {
		b.count++
	}
}

// history returns events in chronological order, oldest first.
func (b *eventBuffer) history() []Event {
	if b.count == 0 {
		return nil
	}

	result := make([]Event, b.count)
	if b.count < eventBufferSize {
		copy(result, b.events[:b.count])
	} else {
		n := copy(result, b.events[b.head:])
		copy(result[n:], b.events[:b.head])
	}
	return result
}

// eventLog manages per-host event buffers, synchronous sinks, and live
// subscribers.
type eventLog struct {
	mu          sync.RWMutex
	buffers     map[string]*eventBuffer
	sinks       []func(Event)
	subscribers map[int]chan Event
	nextSubID   int
}

func newEventLog() *eventLog {
	return &eventLog{
		buffers:     make(map[string]*eventBuffer),
		subscribers: make(map[int]chan Event),
	}
}

// emit records the event, invokes sinks synchronously, and offers the event
// to each live subscriber without blocking.
func (el *eventLog) emit(event Event) {
	el.mu.Lock()
	buf, ok := el.buffers[event.Host]
	if !ok {
		buf = &eventBuffer{}
		el.buffers[event.Host] = buf
	}
	buf.record(event)

	sinks := make([]func(Event), len(el.sinks))
	copy(sinks, el.sinks)
	subs := make([]chan Event, 0, len(el.subscribers))
	for _, ch := range el.subscribers {
		subs = append(subs, ch)
	}
	el.mu.Unlock()

	for _, sink := range sinks {
		sink(event)
	}
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (el *eventLog) history(host string) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()
	buf, ok := el.buffers[host]
	if !ok {
		return nil
	}
	return buf.history()
}

func (el *eventLog) addSink(sink func(Event)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.sinks = append(el.sinks, sink)
}

func (el *eventLog) subscribe() (<-chan Event, func()) {
	el.mu.Lock()
	defer el.mu.Unlock()
	id := el.nextSubID
	el.nextSubID++
	ch := make(chan Event, subscriberBufferSize)
	el.subscribers[id] = ch

	cancel := func() {
		el.mu.Lock()
		defer el.mu.Unlock()
		if _, ok := el.subscribers[id]; ok {
			delete(el.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

// EventHistory returns the connection event history for a host in
// chronological order. Up to 100 events are retained per host.
func (m *Manager) EventHistory(host string) []Event {
	return m.events.history(host)
}

// AddEventSink registers a callback invoked synchronously for every
// connection event. Long-running sinks should hand off to a goroutine.
func (m *Manager) AddEventSink(sink func(Event)) {
	m.events.addSink(sink)
}

// SubscribeEvents returns a channel of live connection events and a cancel
// function. Events are dropped rather than delivered late when the
// subscriber falls behind.
func (m *Manager) SubscribeEvents() (<-chan Event, func()) {
	return m.events.subscribe()
}
