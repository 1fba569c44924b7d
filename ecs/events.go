package ecs

// Delta describes a single component change, delivered to binders in the
// order the owning structural operation was applied.
type Delta struct {
	Kind     DeltaKind
	Entity   Entity
	Type     TypeID
	OldValue any
	NewValue any
}

// LifecycleEvent is one of the process-diagnostic events a world emits:
// EntityCreated/DestroyRequested/Destroyed and ComponentAdded/Removed.
// Handlers must not re-enter the emitting world (the kernel does not
// enforce this; it is a documented contract violation if broken).
type LifecycleEvent struct {
	Kind      LifecycleKind
	World     WorldID
	Entity    Entity
	Component TypeID
	Value     any
}

// LifecycleKind enumerates the process-scoped event hub's event kinds.
type LifecycleKind int

const (
	LifecycleEntityCreated LifecycleKind = iota
	LifecycleEntityDestroyRequested
	LifecycleEntityDestroyed
	LifecycleComponentAdded
	LifecycleComponentRemoved
)

// EventHub is a per-world observer list: each World owns one, and any
// process-level fan-out a host wants is a thin layer built atop multiple
// worlds' hubs, not a kernel responsibility.
type EventHub struct {
	handlers []func(LifecycleEvent)
}

func newEventHub() *EventHub {
	return &EventHub{}
}

// Subscribe registers a handler, invoked for every future emitted event in
// subscription order.
func (h *EventHub) Subscribe(handler func(LifecycleEvent)) {
	h.handlers = append(h.handlers, handler)
}

func (h *EventHub) emit(ev LifecycleEvent) {
	for _, handler := range h.handlers {
		handler(ev)
	}
}

func (h *EventHub) clear() {
	h.handlers = nil
}
