package ecs

import "github.com/zecs-dev/zecs/ecs/query"

// Context is a per-entity, view-side handle registered with a world (an
// external adapter's scene node, render proxy, or similar). The kernel
// never interprets a Context's payload; it only tracks attachment.
type Context interface {
	// ContextType identifies the kind of context for HasContext(e, type)
	// lookups.
	ContextType() TypeID
}

// Reinitializer is an optional Context capability: contexts that need to
// re-run setup (e.g. after a snapshot load) implement it.
type Reinitializer interface {
	Reinitialize()
}

// Binder is an external, read-only consumer of component deltas. Binders
// never write to the world; they are modeled as a
// capability set ({OnDelta for T in Observes()}) rather than a type
// switch, and are routed through a dispatch table built once at attach
// time.
type Binder interface {
	// Observes lists the component types this binder wants deltas for. An
	// empty slice means "every type".
	Observes() []TypeID
	OnDelta(world *World, d Delta)
}

type boundBinder struct {
	binder   Binder
	observe  query.Mask
	allTypes bool
}

// bindingRouter is the per-world binder/context registry. It is embedded in
// World rather than exposed standalone because it needs the world's
// descriptor index to turn a binder's declared TypeIDs into a dispatch
// mask.
type bindingRouter struct {
	contexts map[Entity][]Context
	binders  map[Entity][]*boundBinder
}

func newBindingRouter() *bindingRouter {
	return &bindingRouter{
		contexts: make(map[Entity][]Context),
		binders:  make(map[Entity][]*boundBinder),
	}
}

// RegisterContext attaches ctx to e.
func (w *World) RegisterContext(e Entity, ctx Context) {
	w.binding.contexts[e] = append(w.binding.contexts[e], ctx)
}

// HasContext reports whether e carries any context, or specifically one of
// contextType if non-empty.
func (w *World) HasContext(e Entity, contextType TypeID) bool {
	for _, c := range w.binding.contexts[e] {
		if contextType == "" || c.ContextType() == contextType {
			return true
		}
	}
	return false
}

// GetAllContexts returns every context attached to e.
func (w *World) GetAllContexts(e Entity) []Context {
	cs := w.binding.contexts[e]
	out := make([]Context, len(cs))
	copy(out, cs)
	return out
}

// RemoveContext detaches ctx from e.
func (w *World) RemoveContext(e Entity, ctx Context) {
	list := w.binding.contexts[e]
	for i, c := range list {
		if c == ctx {
			w.binding.contexts[e] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// ReinitializeContext re-runs setup on ctx if it implements Reinitializer
// (used after a snapshot load restores view-side state). Other contexts
// attached to e are not touched, and ctx need not be attached to e.
func (w *World) ReinitializeContext(e Entity, ctx Context) {
	if r, ok := ctx.(Reinitializer); ok {
		r.Reinitialize()
	}
}

// AttachBinder attaches binder to e and builds its dispatch mask once.
func (w *World) AttachBinder(e Entity, binder Binder) {
	types := binder.Observes()
	bb := &boundBinder{binder: binder, allTypes: len(types) == 0}
	if !bb.allTypes {
		for _, t := range types {
			if d, ok := lookupDescriptor(t); ok {
				bb.observe = bb.observe.Set(d.index)
			}
		}
	}
	w.binding.binders[e] = append(w.binding.binders[e], bb)
}

// HasBinder reports whether e has a binder observing the given type
// registered via its TypeID.
func (w *World) HasBinder(e Entity, t TypeID) bool {
	d, ok := lookupDescriptor(t)
	if !ok {
		return false
	}
	for _, bb := range w.binding.binders[e] {
		if bb.allTypes || bb.observe.Test(d.index) {
			return true
		}
	}
	return false
}

// DetachBinder removes a specific binder instance from e.
func (w *World) DetachBinder(e Entity, binder Binder) {
	list := w.binding.binders[e]
	for i, bb := range list {
		if bb.binder == binder {
			w.binding.binders[e] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// DetachBindersByType removes every binder attached to e that observes t —
// including all-types binders, since they observe every type by
// definition — rather than a single instance. Go has no overloading, so
// this is the type-keyed sibling to DetachBinder's instance-keyed form.
func (w *World) DetachBindersByType(e Entity, t TypeID) {
	d, ok := lookupDescriptor(t)
	if !ok {
		return
	}
	list := w.binding.binders[e]
	kept := list[:0]
	for _, bb := range list {
		if bb.allTypes || bb.observe.Test(d.index) {
			continue
		}
		kept = append(kept, bb)
	}
	if len(kept) == 0 {
		delete(w.binding.binders, e)
		return
	}
	w.binding.binders[e] = kept
}

// DetachAllBinders removes every binder attached to e (called when e is
// destroyed).
func (w *World) DetachAllBinders(e Entity) {
	delete(w.binding.binders, e)
	delete(w.binding.contexts, e)
}

// GetAllBinders returns every binder attached to e.
func (w *World) GetAllBinders(e Entity) []Binder {
	list := w.binding.binders[e]
	out := make([]Binder, len(list))
	for i, bb := range list {
		out[i] = bb.binder
	}
	return out
}

// dispatchDelta routes d to every binder attached to d.Entity that observes
// d.Type, in attachment order.
func (w *World) dispatchDelta(d Delta) {
	desc, ok := lookupDescriptor(d.Type)
	for _, bb := range w.binding.binders[d.Entity] {
		if bb.allTypes || (ok && bb.observe.Test(desc.index)) {
			bb.binder.OnDelta(w, d)
		}
	}
}
