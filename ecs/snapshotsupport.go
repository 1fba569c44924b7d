package ecs

// The methods in this file are the load-bearing API the sibling
// ecs/snapshot package uses to rebuild a World's state from a stream.
// They bypass the command buffer and permission/validator chain entirely:
// a snapshot is trusted data already accepted once, not a fresh write that
// needs re-validating.

// ClearForLoad empties every pool, the singleton-owner map and the entity
// table, keeping registered types and hooks/binders untouched, in
// preparation for RestoreEntityTable and RestoreComponentValue calls.
func (w *World) ClearForLoad() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.pools {
		p.clear()
	}
	w.singletonOwner = make(map[TypeID]Entity)
	w.entities.reset(false)
	w.presence = nil
}

// RestoreComponentValue inserts v as e's c directly into storage and marks
// e's presence bit, without running permission hooks, validators, or
// singleton-conflict checks, and without emitting a delta or lifecycle
// event. The caller (snapshot.Load) is responsible for having already
// restored e via RestoreEntityTable.
func RestoreComponentValue[T any](w *World, e Entity, c Component[T], v T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := pool(w, c)
	p.replace(e, v)
	w.setPresence(e, c.index())
}

// RestoreComponentBoxed is RestoreComponentValue's type-erased form, for the
// snapshot reader, which only has an any decoded by a boxedFormatter. It
// reports false (and writes nothing) if t isn't registered on w or v's
// dynamic type doesn't match the pool's.
func RestoreComponentBoxed(w *World, e Entity, t TypeID, v any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pools[t]
	if !ok {
		return false
	}
	if !p.setBoxed(e, v) {
		return false
	}
	w.setPresence(e, p.index())
	return true
}

// EntityFromParts packs a slot id and generation into an Entity handle, for
// the snapshot reader which only has the two numbers decoded off the wire.
func EntityFromParts(id, generation uint32) Entity {
	return newEntity(id, generation)
}

// Config returns a copy of w's WorldConfig, for the snapshot writer to read
// IgnoreUnknownComponents off of when building the header flags byte.
func (w *World) Config() WorldConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// ComponentTypeOrder returns w's registered component types in the stable
// registration order ExportEntityTable's caller (snapshot.Save) iterates in.
func ComponentTypeOrder(w *World) []TypeID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]TypeID, len(w.poolOrder))
	copy(out, w.poolOrder)
	return out
}

// PoolEntry pairs an entity with its boxed value for one component type,
// returned by PoolEntries in dense-array order.
type PoolEntry struct {
	Entity Entity
	Value  any
}

// PoolEntries returns every (entity, value) pair currently stored for type
// t, for the snapshot writer to serialize. Returns nil if t isn't
// registered on w.
func PoolEntries(w *World, t TypeID) []PoolEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.pools[t]
	if !ok {
		return nil
	}
	n := p.count()
	out := make([]PoolEntry, n)
	for i := 0; i < n; i++ {
		e := p.denseEntityAt(i)
		v, _ := p.getBoxed(e)
		out[i] = PoolEntry{Entity: e, Value: v}
	}
	return out
}

// RebuildSingletonOwners scans every registered singleton type's pool and
// records whichever entity currently holds it as that type's owner. Called
// once after all chunks have been restored; a singleton type with more
// than one holder after a restore (which a well-formed snapshot should
// never produce) keeps whichever holder the pool iterates last.
func (w *World) RebuildSingletonOwners() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.poolOrder {
		desc, ok := lookupDescriptor(t)
		if !ok || !desc.singleton {
			continue
		}
		p := w.pools[t]
		for i := 0; i < p.count(); i++ {
			w.singletonOwner[t] = p.denseEntityAt(i)
		}
	}
}
