// Package observer implements the bounded trace buffer (C2): an
// append-only ring of at most DefaultCapacity events with non-blocking
// live subscribers. A slow subscriber drops events; it never slows the
// producer.
package observer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sidepanelai/agentcore/pkg/models"
)

// DefaultCapacity is the ring buffer's size: at most 500 events retained.
const DefaultCapacity = 500

// DefaultListLimit is ListRecent's default when limit <= 0.
const DefaultListLimit = 100

// subscriberBuffer bounds the per-subscriber channel; beyond this a
// subscriber is considered slow and further events are dropped for it.
const subscriberBuffer = 64

// Observer is the C2 event observer / trace buffer.
type Observer struct {
	capacity int

	mu   sync.Mutex
	buf  []models.TraceEvent
	head int // index of the oldest retained event within buf

	seq atomic.Uint64

	subMu     sync.Mutex
	subs      map[int]chan models.TraceEvent
	nextSubID int

	dropped atomic.Uint64
}

// New creates an Observer with the given ring capacity (DefaultCapacity if
// capacity <= 0).
func New(capacity int) *Observer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Observer{
		capacity: capacity,
		buf:      make([]models.TraceEvent, 0, capacity),
		subs:     make(map[int]chan models.TraceEvent),
	}
}

// Emit appends an event and broadcasts it to live subscribers. It never
// blocks the caller and never fails: persistence and fan-out are always
// best-effort.
func (o *Observer) Emit(kind models.TraceEventKind, data map[string]any) models.TraceEvent {
	ev := models.TraceEvent{
		Sequence:  o.seq.Add(1),
		Timestamp: time.Now(),
		Kind:      kind,
		Data:      data,
	}

	o.mu.Lock()
	if len(o.buf) < o.capacity {
		o.buf = append(o.buf, ev)
	} else {
		o.buf[o.head] = ev
		o.head = (o.head + 1) % o.capacity
	}
	o.mu.Unlock()

	o.broadcast(ev)
	return ev
}

// broadcast fans ev out to every live subscriber without blocking.
func (o *Observer) broadcast(ev models.TraceEvent) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- ev:
		default:
			o.dropped.Add(1)
		}
	}
}

// ListRecent returns the last limit events (DefaultListLimit if limit <= 0)
// in insertion (oldest-first) order.
func (o *Observer) ListRecent(limit int) []models.TraceEvent {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.buf)
	if n == 0 {
		return nil
	}

	ordered := make([]models.TraceEvent, n)
	if n < o.capacity {
		copy(ordered, o.buf)
	} else {
		copy(ordered, o.buf[o.head:])
		copy(ordered[o.capacity-o.head:], o.buf[:o.head])
	}

	if limit >= n {
		return ordered
	}
	return ordered[n-limit:]
}

// Len returns the current number of retained events.
func (o *Observer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buf)
}

// DroppedCount returns how many broadcast deliveries have been dropped
// because a subscriber's channel was full.
func (o *Observer) DroppedCount() uint64 {
	return o.dropped.Load()
}

// Subscribe registers a live subscriber and returns its id plus a
// receive-only channel of future events (past events are not replayed;
// call ListRecent first for history).
func (o *Observer) Subscribe() (int, <-chan models.TraceEvent) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	id := o.nextSubID
	o.nextSubID++
	ch := make(chan models.TraceEvent, subscriberBuffer)
	o.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber's channel. Safe to call more
// than once.
func (o *Observer) Unsubscribe(id int) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	if ch, ok := o.subs[id]; ok {
		delete(o.subs, id)
		close(ch)
	}
}
