// Package events fans election events out to callback handlers and channel
// subscribers.
package events

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/torghul/redlock-leader/types"
)

// DefaultSubscriberBuffer is the channel capacity used when Subscribe is
// called with a non-positive buffer.
const DefaultSubscriberBuffer = 8

type handlerEntry struct {
	id      uint64
	kind    types.EventKind
	handler types.EventHandler
}

// Broadcaster delivers events to registered handlers and channel subscribers.
//
// Handlers run synchronously on the publishing goroutine in registration
// order. Channel subscribers receive events through a non-blocking send; an
// event that does not fit in a subscriber's buffer is dropped for that
// subscriber and counted through ElectionMetrics.RecordEventDropped.
type Broadcaster struct {
	logger  types.Logger
	metrics types.ElectionMetrics

	nextID      atomic.Uint64
	handlers    *xsync.Map[uint64, handlerEntry]
	subscribers *xsync.Map[uint64, *subscriber]
}

// NewBroadcaster creates a broadcaster.
//
// Parameters:
//   - logger: Logger for recovered handler panics
//   - metrics: Metrics collector for dropped events
//
// Returns:
//   - *Broadcaster: Broadcaster with no handlers or subscribers
func NewBroadcaster(logger types.Logger, metrics types.ElectionMetrics) *Broadcaster {
	return &Broadcaster{
		logger:      logger,
		metrics:     metrics,
		handlers:    xsync.NewMap[uint64, handlerEntry](),
		subscribers: xsync.NewMap[uint64, *subscriber](),
	}
}

// On registers handler for events of the given kind.
//
// Parameters:
//   - kind: Event kind to listen for
//   - handler: Callback invoked for each matching event
//
// Returns:
//   - func(): Removes the handler; safe to call more than once
func (b *Broadcaster) On(kind types.EventKind, handler types.EventHandler) func() {
	id := b.nextID.Add(1)
	b.handlers.Store(id, handlerEntry{id: id, kind: kind, handler: handler})

	return func() {
		b.handlers.Delete(id)
	}
}

// Subscribe returns a channel that receives every published event.
//
// Parameters:
//   - buffer: Channel capacity (DefaultSubscriberBuffer if <= 0)
//
// Returns:
//   - <-chan types.Event: Receive-only event channel, closed on unsubscribe
//   - func(): Unsubscribe function; safe to call more than once
//
// Example:
//
//	ch, unsubscribe := b.Subscribe(16)
//	defer unsubscribe()
//	for ev := range ch {
//	    log.Println(ev.Kind)
//	}
func (b *Broadcaster) Subscribe(buffer int) (<-chan types.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	id := b.nextID.Add(1)
	sub := &subscriber{ch: make(chan types.Event, buffer)}
	b.subscribers.Store(id, sub)

	return sub.ch, func() {
		if s, ok := b.subscribers.LoadAndDelete(id); ok {
			s.close()
		}
	}
}

// Publish delivers ev to matching handlers and all channel subscribers.
//
// live is consulted before every handler call and before the subscriber
// sends; once it reports false the rest of the delivery is skipped. A nil
// live delivers unconditionally. Publish holds no lock while a handler runs,
// so handlers may call back into the publisher's owner.
func (b *Broadcaster) Publish(ev types.Event, live func() bool) {
	if live == nil {
		live = func() bool { return true }
	}

	var matched []handlerEntry
	b.handlers.Range(func(_ uint64, e handlerEntry) bool {
		if e.kind == ev.Kind {
			matched = append(matched, e)
		}

		return true
	})
	slices.SortFunc(matched, func(a, c handlerEntry) int {
		switch {
		case a.id < c.id:
			return -1
		case a.id > c.id:
			return 1
		default:
			return 0
		}
	})

	for _, e := range matched {
		if !live() {
			return
		}
		b.invoke(e, ev)
	}

	if !live() {
		return
	}
	b.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		if !sub.trySend(ev) {
			b.metrics.RecordEventDropped(ev.Kind)
		}

		return true
	})
}

func (b *Broadcaster) invoke(e handlerEntry, ev types.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "kind", ev.Kind.String(), "panic", r)
		}
	}()

	e.handler(ev)
}

// subscriber guards its channel so that a concurrent unsubscribe never closes
// it during a send.
type subscriber struct {
	ch     chan types.Event
	mu     sync.Mutex
	closed bool
}

// trySend reports false when the event was dropped because the buffer is full.
func (s *subscriber) trySend(ev types.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}

	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
