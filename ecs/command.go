package ecs

// provisionalGeneration marks an Entity handle returned by
// CommandBuffer.CreateEntity before its buffer has been applied. Such a
// handle is only meaningful to ops recorded on the same buffer, which
// resolve it to the real allocated Entity in insertion order; it must never
// be stored or compared outside that buffer's lifetime.
const provisionalGeneration = ^uint32(0)

// CommandBuffer is the only write capability in the kernel: every
// structural or value mutation is recorded here and executed later, at a
// scheduler barrier or at CommandBuffer.End, never inline. See World.
// BeginWrite.
type CommandBuffer struct {
	world            *World
	ops              []bufferedOp
	resolved         map[uint32]Entity
	provisionalCount uint32
	ended            bool
}

type bufferedOp struct {
	kind string
	run  func(w *World) error
}

// BeginWrite acquires a new command buffer for deferred mutation of w. The
// buffer is tracked on w until End is called, so a scheduler barrier can
// auto-apply it if its owner never calls End explicitly.
func (w *World) BeginWrite() *CommandBuffer {
	b := &CommandBuffer{world: w, resolved: make(map[uint32]Entity)}
	w.mu.Lock()
	w.openBuffers = append(w.openBuffers, b)
	w.mu.Unlock()
	return b
}

// Write is scoped acquisition sugar: it opens a buffer, lets fn record ops
// against it, and applies it when fn returns, giving callers a "scoped
// acquisition of the buffer ends" apply trigger.
func (w *World) Write(fn func(*CommandBuffer)) []error {
	b := w.BeginWrite()
	fn(b)
	return b.End()
}

func (b *CommandBuffer) resolve(e Entity) Entity {
	if e.Generation() == provisionalGeneration {
		if real, ok := b.resolved[e.ID()]; ok {
			return real
		}
	}
	return e
}

// Resolved returns the real entity a provisional handle (from this same
// buffer's CreateEntity) resolved to once End has applied it. Calling it
// before End, or with a handle e did not originate from this buffer, returns
// e unchanged.
func (b *CommandBuffer) Resolved(e Entity) Entity {
	return b.resolve(e)
}

// CreateEntity records an entity-creation op and returns a provisional
// handle that later ops in this same buffer may reference; it resolves to
// the real entity once this op applies.
func (b *CommandBuffer) CreateEntity() Entity {
	idx := b.provisionalCount
	b.provisionalCount++
	b.ops = append(b.ops, bufferedOp{kind: "CreateEntity", run: func(w *World) error {
		real := w.createEntityNow()
		b.resolved[idx] = real
		return nil
	}})
	return newEntity(idx, provisionalGeneration)
}

// DestroyEntity records a destroy op.
func (b *CommandBuffer) DestroyEntity(e Entity) {
	b.ops = append(b.ops, bufferedOp{kind: "DestroyEntity", run: func(w *World) error {
		return w.destroyEntityNow(b.resolve(e))
	}})
}

// DestroyAllEntities records a destroy-everything op, applied in ascending
// id order for determinism.
func (b *CommandBuffer) DestroyAllEntities() {
	b.ops = append(b.ops, bufferedOp{kind: "DestroyAllEntities", run: func(w *World) error {
		return w.destroyAllNow()
	}})
}

// AddComponent records an add op for entity e. Fails at apply time with
// AlreadyPresent if e already carries c's type.
func AddComponent[T any](b *CommandBuffer, e Entity, c Component[T], v T) {
	b.ops = append(b.ops, bufferedOp{kind: "AddComponent", run: func(w *World) error {
		return w.addComponentNow(b.resolve(e), c, v)
	}})
}

// ReplaceComponent records an add-or-update op for entity e.
func ReplaceComponent[T any](b *CommandBuffer, e Entity, c Component[T], v T) {
	b.ops = append(b.ops, bufferedOp{kind: "ReplaceComponent", run: func(w *World) error {
		return w.replaceComponentNow(b.resolve(e), c, v)
	}})
}

// RemoveComponent records a remove op for entity e. No-op at apply time if
// e does not carry c's type.
func RemoveComponent[T any](b *CommandBuffer, e Entity, c Component[T]) {
	b.ops = append(b.ops, bufferedOp{kind: "RemoveComponent", run: func(w *World) error {
		return w.removeComponentNow(b.resolve(e), c)
	}})
}

// SetSingleton records a set-singleton op: replace the current owner's
// value, or allocate a hidden owner entity if none exists yet.
func SetSingleton[T any](b *CommandBuffer, c Component[T], v T) {
	b.ops = append(b.ops, bufferedOp{kind: "SetSingleton", run: func(w *World) error {
		return w.setSingletonNow(c, v)
	}})
}

// RemoveSingleton records a remove-singleton op: removes the component and,
// if its owner then carries no other components, destroys the owner.
func RemoveSingleton[T any](b *CommandBuffer, c Component[T]) {
	b.ops = append(b.ops, bufferedOp{kind: "RemoveSingleton", run: func(w *World) error {
		return w.removeSingletonNow(c)
	}})
}

// End applies every recorded op in insertion order against the world and
// returns the per-op errors encountered. A failing op is reported and
// logged but does not stop later ops from applying; no op failure aborts
// the remainder of the buffer or marks the world disposing. Calling End
// twice on the same buffer is a no-op after the first call.
func (b *CommandBuffer) End() []error {
	if b.ended {
		return nil
	}
	b.ended = true
	b.world.untrackBuffer(b)
	return b.world.applyBuffer(b)
}

// untrackBuffer removes b from w's list of buffers still awaiting End, so
// the next scheduler barrier doesn't try to apply it again.
func (w *World) untrackBuffer(b *CommandBuffer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, ob := range w.openBuffers {
		if ob == b {
			w.openBuffers = append(w.openBuffers[:i], w.openBuffers[i+1:]...)
			return
		}
	}
}

// flushOpenBuffers applies, in acquisition order, every command buffer still
// open when a scheduler barrier is reached. This is the third documented
// apply trigger alongside an explicit End and a Write closure returning: a
// system that calls BeginWrite without ever calling End has its ops applied
// here instead of lost.
func (w *World) flushOpenBuffers() {
	w.mu.Lock()
	pending := w.openBuffers
	w.openBuffers = nil
	w.mu.Unlock()

	for _, b := range pending {
		for _, err := range b.End() {
			if err != nil {
				w.logger.WithField("world", w.id.String()).Warnf("barrier-applied command buffer: %v", err)
			}
		}
	}
}

func (w *World) applyBuffer(b *CommandBuffer) []error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for _, op := range b.ops {
		if err := op.run(w); err != nil {
			errs = append(errs, err)
			w.metrics.IncCommandOp(w.id.String(), op.kind, "rejected")
			w.logger.WithFields(map[string]interface{}{
				"world": w.id.String(),
				"op":    op.kind,
			}).Warn(err.Error())
			continue
		}
		w.metrics.IncCommandOp(w.id.String(), op.kind, "applied")
	}
	return errs
}

// createEntityNow is the immediate, lock-held entity allocation used by both
// buffered CreateEntity ops and the External command drain.
func (w *World) createEntityNow() Entity {
	e := w.entities.create()
	w.ensurePresenceCap(e.ID())
	w.events.emit(LifecycleEvent{Kind: LifecycleEntityCreated, World: w.id, Entity: e})
	return e
}

// destroyEntityNow implements the full lifecycle: request event, binder
// detach, component clear (each emitting Removed + dispatch), destroy
// event, generation bump, free-list push.
func (w *World) destroyEntityNow(e Entity) error {
	if !w.entities.isAlive(e) {
		return newErr(ErrNoSuchEntity, "destroy: entity not alive").withEntity(e)
	}
	w.events.emit(LifecycleEvent{Kind: LifecycleEntityDestroyRequested, World: w.id, Entity: e})

	for _, t := range w.poolOrder {
		p := w.pools[t]
		if !p.has(e) {
			continue
		}
		old, _ := p.getBoxed(e)
		p.remove(e)
		w.clearPresence(e, p.index())
		if p.isSingleton() {
			if owner, ok := w.singletonOwner[t]; ok && owner == e {
				delete(w.singletonOwner, t)
			}
		}
		d := Delta{Kind: DeltaRemoved, Entity: e, Type: t, OldValue: old}
		w.dispatchDelta(d)
		w.events.emit(LifecycleEvent{Kind: LifecycleComponentRemoved, World: w.id, Entity: e, Component: t})
	}
	w.DetachAllBinders(e)

	w.entities.destroy(e)
	w.events.emit(LifecycleEvent{Kind: LifecycleEntityDestroyed, World: w.id, Entity: e})
	return nil
}

// destroyAllNow iterates the alive set in ascending id order and destroys
// each, for determinism.
func (w *World) destroyAllNow() error {
	for _, e := range w.entities.allAscending() {
		_ = w.destroyEntityNow(e)
	}
	return nil
}

func (w *World) addComponentNow(e Entity, c any, v any) error {
	return w.writeComponent(e, c, v, false)
}

func (w *World) replaceComponentNow(e Entity, c any, v any) error {
	return w.writeComponent(e, c, v, true)
}

// writeComponent is the shared apply path for AddComponent/ReplaceComponent,
// parameterized over "allow update" so both can share permission, phase,
// validation and singleton checks plus delta emission.
func (w *World) writeComponent(e Entity, cAny any, vAny any, allowUpdate bool) error {
	if w.sched.currentPhase.IsReadOnly() {
		return newErr(ErrInvalidPhase, "write attempted during read-only phase").withEntity(e)
	}
	if !w.entities.isAlive(e) {
		return newErr(ErrNoSuchEntity, "component write: entity not alive").withEntity(e)
	}
	td, tid, p, err := w.resolveGenericOp(cAny)
	if err != nil {
		return err
	}
	if !w.checkWritePermission(e, tid) {
		return newErr(ErrPermissionDenied, "write permission hook rejected op").withEntity(e).withComponent(tid)
	}
	if !w.checkValidators(tid, vAny) {
		return newErr(ErrValidationFailed, "validator rejected value").withEntity(e).withComponent(tid)
	}

	exists := p.has(e)
	if exists && !allowUpdate {
		return newErr(ErrAlreadyPresent, "component already present").withEntity(e).withComponent(tid)
	}

	if td.singleton {
		if owner, conflict := w.singletonConflict(tid, e); conflict {
			w.metrics.IncSingletonViolations(w.id.String())
			return newErr(ErrSingletonViolation, "singleton already owned by another entity").
				withEntity(e).withComponent(tid).withWrapped(&Error{Kind: ErrSingletonViolation, Entity: owner})
		}
	}

	old, existed := p.getBoxed(e)
	p.setBoxed(e, vAny)
	if !existed {
		w.setPresence(e, td.index)
	}
	if td.singleton {
		w.singletonOwner[tid] = e
	}

	kind := DeltaAdded
	if existed {
		kind = DeltaChanged
	}
	d := Delta{Kind: kind, Entity: e, Type: tid, NewValue: vAny}
	if existed {
		d.OldValue = old
	}
	w.dispatchDelta(d)
	w.events.emit(LifecycleEvent{Kind: LifecycleComponentAdded, World: w.id, Entity: e, Component: tid, Value: vAny})
	return nil
}

func (w *World) removeComponentNow(e Entity, cAny any) error {
	if w.sched.currentPhase.IsReadOnly() {
		return newErr(ErrInvalidPhase, "write attempted during read-only phase").withEntity(e)
	}
	if !w.entities.isAlive(e) {
		return newErr(ErrNoSuchEntity, "component remove: entity not alive").withEntity(e)
	}
	td, tid, p, err := w.resolveGenericOp(cAny)
	if err != nil {
		return err
	}
	if !w.checkWritePermission(e, tid) {
		return newErr(ErrPermissionDenied, "write permission hook rejected op").withEntity(e).withComponent(tid)
	}
	if !p.has(e) {
		return nil // no-op if absent
	}
	old, _ := p.getBoxed(e)
	p.remove(e)
	w.clearPresence(e, td.index)
	if td.singleton {
		if owner, ok := w.singletonOwner[tid]; ok && owner == e {
			delete(w.singletonOwner, tid)
		}
	}
	d := Delta{Kind: DeltaRemoved, Entity: e, Type: tid, OldValue: old}
	w.dispatchDelta(d)
	w.events.emit(LifecycleEvent{Kind: LifecycleComponentRemoved, World: w.id, Entity: e, Component: tid})
	return nil
}

func (w *World) setSingletonNow(cAny any, vAny any) error {
	td, tid, p, err := w.resolveGenericOp(cAny)
	if err != nil {
		return err
	}
	if owner, ok := w.singletonOwner[tid]; ok {
		return w.writeComponent(owner, cAny, vAny, true)
	}
	e := w.createEntityNow()
	_ = td
	_ = p
	return w.writeComponent(e, cAny, vAny, false)
}

func (w *World) removeSingletonNow(cAny any) error {
	_, tid, _, err := w.resolveGenericOp(cAny)
	if err != nil {
		return err
	}
	owner, ok := w.singletonOwner[tid]
	if !ok {
		return nil
	}
	if err := w.removeComponentNow(owner, cAny); err != nil {
		return err
	}
	if w.entities.isAlive(owner) && w.entityComponentCount(owner) == 0 {
		return w.destroyEntityNow(owner)
	}
	return nil
}

func (w *World) entityComponentCount(e Entity) int {
	n := 0
	for _, t := range w.poolOrder {
		if w.pools[t].has(e) {
			n++
		}
	}
	return n
}

// resolveGenericOp resolves the type descriptor, stable id, and pool for a
// Component[T] handle passed as `any` by the generic free functions above.
// It is the one place reflection-adjacent type dispatch happens, and it
// only ever consults the compile-time-registered descriptor, never a
// runtime type scan.
func (w *World) resolveGenericOp(cAny any) (*typeDescriptor, TypeID, anyPool, error) {
	td, ok := cAny.(interface{ TypeID() TypeID })
	if !ok {
		return nil, "", nil, newErr(ErrMissingComponent, "malformed component handle")
	}
	tid := td.TypeID()
	desc, ok := lookupDescriptor(tid)
	if !ok {
		return nil, "", nil, newErr(ErrMissingComponent, "component type not registered").withComponent(tid)
	}
	p, ok := w.pools[tid]
	if !ok {
		return nil, "", nil, newErr(ErrMissingComponent, "component type not present on this world").withComponent(tid)
	}
	return desc, tid, p, nil
}
