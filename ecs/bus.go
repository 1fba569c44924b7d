package ecs

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// MessageTypeID names a registered message type for subscription bookkeeping
// and metrics labels.
type MessageTypeID string

var (
	msgRegistryMu sync.Mutex
	msgRegistered = map[MessageTypeID]bool{}
)

// MessageType is a compile-time-typed handle for publishing and subscribing
// to one message type, mirroring Component's typed-handle pattern so the
// bus never needs reflection to route a payload to its handlers.
type MessageType[T any] struct {
	id MessageTypeID
}

// RegisterMessage declares a message type under a process-wide stable id.
// Registering the same id twice panics, matching Register's duplicate
// handling for component types.
func RegisterMessage[T any](id MessageTypeID) MessageType[T] {
	msgRegistryMu.Lock()
	defer msgRegistryMu.Unlock()
	if msgRegistered[id] {
		panic("ecs: message type already registered: " + string(id))
	}
	msgRegistered[id] = true
	return MessageType[T]{id: id}
}

func (m MessageType[T]) ID() MessageTypeID { return m.id }

type subscriberEntry struct {
	subID uint64
	fn    func(any)
}

type queuedMessage struct {
	typeID MessageTypeID
	value  any
}

// messageBus is one world's FIFO message queue and subscriber table.
// Publish enqueues; delivery happens only at pumpMessages (BeginFrame, or
// an explicit PumpMessages call), so handlers never run inside Publish's
// call stack.
type messageBus struct {
	subs      map[MessageTypeID][]subscriberEntry
	nextSubID uint64
	queue     []queuedMessage
}

func newMessageBus() *messageBus {
	return &messageBus{subs: make(map[MessageTypeID][]subscriberEntry)}
}

// Subscription identifies one Subscribe call for later Unsubscribe.
type Subscription struct {
	typeID MessageTypeID
	subID  uint64
}

// Subscribe registers handler to run for every message of mt's type,
// delivered in publish order at the next pump. Returns a Subscription that
// Unsubscribe removes deterministically (existing order of the remaining
// subscribers is preserved).
func Subscribe[T any](w *World, mt MessageType[T], handler func(T)) Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.bus.nextSubID
	w.bus.nextSubID++
	w.bus.subs[mt.id] = append(w.bus.subs[mt.id], subscriberEntry{
		subID: id,
		fn:    func(v any) { handler(v.(T)) },
	})
	return Subscription{typeID: mt.id, subID: id}
}

// Unsubscribe removes sub's handler. A no-op if already removed.
func (w *World) Unsubscribe(sub Subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := w.bus.subs[sub.typeID]
	for i, e := range list {
		if e.subID == sub.subID {
			w.bus.subs[sub.typeID] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish enqueues msg for FIFO delivery at the next pump. Publish never
// invokes a handler directly, so it is safe to call from inside another
// handler or from a system mid-phase. Publishing on a paused world still
// enqueues; delivery simply waits for the world to resume and pump again.
func Publish[T any](w *World, mt MessageType[T], msg T) {
	w.mu.Lock()
	w.bus.queue = append(w.bus.queue, queuedMessage{typeID: mt.id, value: msg})
	w.mu.Unlock()
	w.metrics.IncMessagesPublished(w.id.String(), string(mt.id))
}

// PumpMessages delivers every currently-queued message to its subscribers
// in FIFO order, then clears the queue. BeginFrame calls this once per
// frame; hosts that need delivery outside the normal frame drive (e.g.
// between RunScheduledJobs calls) may call it directly.
func (w *World) PumpMessages() {
	w.pumpMessages()
}

func (w *World) pumpMessages() {
	w.mu.Lock()
	queue := w.bus.queue
	w.bus.queue = nil
	w.mu.Unlock()

	for _, qm := range queue {
		w.mu.RLock()
		handlers := append([]subscriberEntry(nil), w.bus.subs[qm.typeID]...)
		w.mu.RUnlock()
		for _, h := range handlers {
			w.dispatchMessage(qm, h)
		}
		w.metrics.IncMessagesDelivered(w.id.String(), string(qm.typeID))
	}
}

// dispatchMessage invokes one handler for one queued message. A handler
// panic is logged and then re-raised: it propagates out through
// PumpMessages/BeginFrame to whichever caller triggered the pump, rather
// than being swallowed here.
func (w *World) dispatchMessage(qm queuedMessage, h subscriberEntry) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.WithFields(logrus.Fields{
				"world":   w.id.String(),
				"message": string(qm.typeID),
			}).Errorf("message handler panic: %v", r)
			panic(r)
		}
	}()
	h.fn(qm.value)
}
