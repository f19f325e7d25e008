// Package streaming fans investigation progress events out to live
// subscribers and keeps a short per-investigation history for replay.
package streaming

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types besides audit step names.
const (
	TypeResult = "result"
	TypeError  = "error"
)

// Event is one progress message for an investigation. Type is an audit step
// name, TypeResult or TypeError.
type Event struct {
	InvestigationID string          `json:"investigation_id"`
	Type            string          `json:"type"`
	Timestamp       time.Time       `json:"timestamp"`
	Seq             uint64          `json:"seq"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// Marshal returns JSON for SSE frames and websocket messages.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Manager is an in-memory pub/sub keyed by investigation id.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	closed      map[string]bool
	capacity    int
}

const DefaultCapacity = 256

func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		closed:      make(map[string]bool),
		capacity:    capacity,
	}
}

// Subscribe adds a subscriber channel; the caller must drain it and call
// Unsubscribe.
func (m *Manager) Subscribe(id string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[id]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[id] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes the channel and closes it.
func (m *Manager) Unsubscribe(id string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscribers[id]; ok {
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(m.subscribers, id)
		}
	}
}

// Publish assigns the next sequence number (starting at 1), stores the event
// for replay and offers it to every subscriber. Slow subscribers miss
// events rather than block the publisher.
func (m *Manager) Publish(id string, evt Event) Event {
	m.mu.Lock()
	rg := m.history[id]
	if rg == nil {
		rg = newRing(m.capacity)
		m.history[id] = rg
	}
	rg.nextSeq++
	evt.InvestigationID = id
	evt.Seq = rg.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	rg.push(evt)
	if evt.Type == TypeResult || evt.Type == TypeError {
		m.closed[id] = true
	}
	subs := make([]chan Event, 0, len(m.subscribers[id]))
	for ch := range m.subscribers[id] {
		subs = append(subs, ch)
	}
	// Sends happen under the read side of the lock so Unsubscribe cannot
	// close a channel mid-send.
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range subs {
		if _, ok := m.subscribers[id][ch]; !ok {
			continue
		}
		select {
		case ch <- evt:
		default:
		}
	}
	return evt
}

// Done reports whether a terminal event was published for id.
func (m *Manager) Done(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed[id]
}

// Known reports whether anything was published for id.
func (m *Manager) Known(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.history[id]
	return ok
}

// ReplaySince returns retained events with Seq > since.
func (m *Manager) ReplaySince(id string, since uint64) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rg := m.history[id]
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// Forget drops the history for id.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	delete(m.history, id)
	delete(m.closed, id)
	m.mu.Unlock()
}

// ring is a fixed-capacity ring buffer of events.
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity)} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	// overwrite oldest
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
