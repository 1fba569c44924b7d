package ecs

import "fmt"

// HasComponent reports whether e currently carries c's type. Permission
// hooks are not consulted here (only the read-permission hooks installed
// via AddReadPermissionHook gate ReadComponent/TryReadComponent); presence
// itself is never hidden.
func HasComponent[T any](w *World, e Entity, c Component[T]) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p := pool(w, c)
	return p.has(e)
}

// HasComponentBoxed is HasComponent's type-erased form, for callers that
// only have a TypeID (introspection, snapshot readers).
func HasComponentBoxed(w *World, e Entity, t TypeID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.pools[t]
	if !ok {
		return false
	}
	return p.has(e)
}

// ReadComponent returns e's value for c. It panics if e does not carry the
// type; callers that can't guarantee presence should use TryReadComponent.
func ReadComponent[T any](w *World, e Entity, c Component[T]) T {
	v, ok := TryReadComponent(w, e, c)
	if !ok {
		panic(fmt.Sprintf("ecs: ReadComponent: entity %s has no %s", e, c.TypeID()))
	}
	return v
}

// TryReadComponent returns e's value for c and whether it was present. A
// registered ReadPermissionHook that rejects the (entity, type) pair makes
// this report not-found even if the value exists in storage.
func TryReadComponent[T any](w *World, e Entity, c Component[T]) (T, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var zero T
	if !w.checkReadPermission(e, c.TypeID()) {
		return zero, false
	}
	p := pool(w, c)
	v, ok := p.get(e)
	if !ok {
		return zero, false
	}
	return *v, true
}

// BoxedComponent pairs a component type with its introspection-time value,
// returned by GetAllComponents.
type BoxedComponent struct {
	Type  TypeID
	Value any
}

// GetAllComponents enumerates every component e currently carries, in the
// world's type-registration order, for introspection and snapshot-writer
// use. Types a read-permission hook rejects for e are omitted.
func GetAllComponents(w *World, e Entity) []BoxedComponent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []BoxedComponent
	for _, t := range w.poolOrder {
		p := w.pools[t]
		if !p.has(e) {
			continue
		}
		if !w.checkReadPermission(e, t) {
			continue
		}
		v, _ := p.getBoxed(e)
		out = append(out, BoxedComponent{Type: t, Value: v})
	}
	return out
}

// SnapshotComponent dispatches a Snapshot-kind delta for e's current value
// of c to every attached binder, without touching storage or emitting a
// lifecycle event. Hosts use this to push current state to a binder that
// attached after the value was last written (late-join resync).
func SnapshotComponent[T any](w *World, e Entity, c Component[T]) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := pool(w, c)
	v, ok := p.get(e)
	if !ok {
		return newErr(ErrMissingComponent, "SnapshotComponent: component not present").withEntity(e).withComponent(c.TypeID())
	}
	w.dispatchDelta(Delta{Kind: DeltaSnapshot, Entity: e, Type: c.TypeID(), NewValue: *v})
	return nil
}
