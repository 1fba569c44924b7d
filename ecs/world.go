package ecs

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zecs-dev/zecs/ecs/query"
)

// WorldConfig configures a World at creation time.
type WorldConfig struct {
	// InitialEntityCapacity preallocates the entity table and the presence
	// masks; component pools are not preallocated.
	InitialEntityCapacity int
	// FixedDeltaSeconds is stored (defaulted to 1/60 by NewWorld) but not
	// read by the scheduler: FixedStep and PumpAndLateFrame take the fixed
	// timestep as an argument.
	FixedDeltaSeconds float64
	// MaxSubSteps is stored (defaulted to 8 by NewWorld) but not read by the
	// scheduler: PumpAndLateFrame takes its sub-step cap as an argument.
	MaxSubSteps int
	// IgnoreUnknownComponents sets the flags.ignore_unknown bit in
	// snapshots this world saves. snapshot.Load reads that bit from the
	// stream; the loading world's own setting is not consulted.
	IgnoreUnknownComponents bool
	Tags                    []string
	Logger                  *logrus.Logger
}

// DefaultWorldConfig returns the zero-value-sane defaults used when a World
// is created without an explicit config.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		FixedDeltaSeconds: 1.0 / 60.0,
		MaxSubSteps:       8,
	}
}

// World is a single self-contained simulation space: entity table,
// component pools, systems, command buffers, message bus, hooks and
// binding registries. See Kernel for multi-world orchestration.
type World struct {
	mu sync.RWMutex

	id   WorldID
	name string
	tags map[string]struct{}

	entities  *entityTable
	presence  []query.Mask
	pools     map[TypeID]anyPool
	poolOrder []TypeID // registration order, for deterministic snapshot iteration

	singletonOwner map[TypeID]Entity // singleton type -> owner entity

	hooks   *hookRegistry
	binding *bindingRouter
	bus     *messageBus
	sched   *scheduler
	events  *EventHub

	pendingExternal []ExternalCommand
	openBuffers     []*CommandBuffer // BeginWrite'd buffers not yet End'd

	tick        Tick
	frameCount  uint64
	accumulator float64

	paused     bool
	disposing  bool

	config WorldConfig
	logger *logrus.Logger

	metrics WorldMetricsSink
}

// WorldMetricsSink is the narrow interface World pushes observations
// through; metrics.Collector (Prometheus-backed) and metrics.NoopCollector both
// satisfy it. Kept in package ecs (rather than importing package metrics)
// to avoid a dependency from the kernel into its own instrumentation.
type WorldMetricsSink interface {
	SetEntitiesAlive(world string, n int)
	IncTicks(world string)
	ObserveSystemDuration(world, system, phase string, seconds float64)
	ObserveQueryDuration(world, query string, seconds float64)
	IncCommandOp(world, op, outcome string)
	IncMessagesPublished(world, msgType string)
	IncMessagesDelivered(world, msgType string)
	IncSingletonViolations(world string)
}

type noopMetrics struct{}

func (noopMetrics) SetEntitiesAlive(string, int)                  {}
func (noopMetrics) IncTicks(string)                               {}
func (noopMetrics) ObserveSystemDuration(string, string, string, float64) {}
func (noopMetrics) ObserveQueryDuration(string, string, float64)  {}
func (noopMetrics) IncCommandOp(string, string, string)           {}
func (noopMetrics) IncMessagesPublished(string, string)           {}
func (noopMetrics) IncMessagesDelivered(string, string)           {}
func (noopMetrics) IncSingletonViolations(string)                 {}

// NewWorld constructs a standalone World. Kernel.CreateWorld is the usual
// entry point; NewWorld is exposed directly for tests and for hosts that
// don't need multi-world orchestration.
func NewWorld(cfg WorldConfig) *World {
	if cfg.FixedDeltaSeconds <= 0 {
		cfg.FixedDeltaSeconds = 1.0 / 60.0
	}
	if cfg.MaxSubSteps <= 0 {
		cfg.MaxSubSteps = 8
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	w := &World{
		id:             NewWorldID(),
		tags:           make(map[string]struct{}, len(cfg.Tags)),
		entities:       newEntityTable(),
		pools:          make(map[TypeID]anyPool),
		singletonOwner: make(map[TypeID]Entity),
		hooks:          newHookRegistry(),
		binding:        newBindingRouter(),
		bus:            newMessageBus(),
		sched:          newScheduler(),
		events:         newEventHub(),
		config:         cfg,
		logger:         logger,
		metrics:        noopMetrics{},
	}
	for _, t := range cfg.Tags {
		w.tags[t] = struct{}{}
	}
	for _, desc := range registeredDescriptors() {
		w.pools[desc.id] = desc.newPool()
		w.poolOrder = append(w.poolOrder, desc.id)
	}
	if cfg.InitialEntityCapacity > 0 {
		w.entities.slots = make([]entitySlot, 0, cfg.InitialEntityCapacity)
		w.presence = make([]query.Mask, 0, cfg.InitialEntityCapacity)
	}
	return w
}

// SetMetricsSink installs the metrics backend (nil restores the no-op
// default). Kernel does not call it; hosts call it on each world they want
// instrumented.
func (w *World) SetMetricsSink(sink WorldMetricsSink) {
	if sink == nil {
		sink = noopMetrics{}
	}
	w.metrics = sink
}

func (w *World) Id() WorldID    { return w.id }
func (w *World) Name() string   { return w.name }
func (w *World) Tags() []string {
	out := make([]string, 0, len(w.tags))
	for t := range w.tags {
		out = append(out, t)
	}
	return out
}
// SetName sets the world's display name. Kernel calls this once at creation
// time; hosts are free to call it again later (e.g. after loading a named
// save).
func (w *World) SetName(name string) { w.name = name }

func (w *World) FrameCount() uint64 { return w.frameCount }

// AccumulatorSeconds returns the fixed-step accumulator's current residual,
// for Kernel.SimulationAccumulatorSeconds to surface.
func (w *World) AccumulatorSeconds() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.accumulator
}
func (w *World) Tick() Tick         { return w.tick }
func (w *World) IsPaused() bool     { return w.paused }
func (w *World) IsDisposing() bool  { return w.disposing }
func (w *World) Events() *EventHub  { return w.events }

// IsAlive reports whether e currently refers to a live entity.
func (w *World) IsAlive(e Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.entities.isAlive(e)
}

// AliveCount returns the number of currently live entities.
func (w *World) AliveCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.entities.aliveCount()
}

// GenerationOf returns the current generation stored for id (0 if id was
// never allocated).
func (w *World) GenerationOf(id uint32) uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.entities.generationOf(id)
}

// GetAllEntities returns a snapshot copy of every live entity in ascending
// id order.
func (w *World) GetAllEntities() []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.entities.allAscending()
}

func (w *World) ensurePresenceCap(id uint32) {
	for int(id) >= len(w.presence) {
		w.presence = append(w.presence, query.Mask{})
	}
}

func (w *World) presenceOf(e Entity) query.Mask {
	id := e.ID()
	if int(id) >= len(w.presence) {
		return query.Mask{}
	}
	return w.presence[id]
}

func (w *World) setPresence(e Entity, bit int) {
	w.ensurePresenceCap(e.ID())
	w.presence[e.ID()] = w.presence[e.ID()].Set(bit)
}

func (w *World) clearPresence(e Entity, bit int) {
	if int(e.ID()) >= len(w.presence) {
		return
	}
	w.presence[e.ID()] = w.presence[e.ID()].Clear(bit)
}

// Reset clears all entities, pools, singleton owners, binders and contexts,
// hooks, pending external commands and open buffers, and re-initializes
// systems. The message bus (queued messages and subscriptions) is not
// cleared. If keepCapacity is true, the entity table and presence arrays
// keep their allocated capacity; component pools release their backing
// arrays either way. Tick and FrameCount are unaffected.
func (w *World) Reset(keepCapacity bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entities.reset(keepCapacity)
	if keepCapacity {
		w.presence = w.presence[:0]
	} else {
		w.presence = nil
	}
	for _, p := range w.pools {
		p.clear()
	}
	w.singletonOwner = make(map[TypeID]Entity)
	w.binding = newBindingRouter()
	w.hooks.clear()
	w.pendingExternal = nil
	w.openBuffers = nil
	w.sched.reinitialize(w)
}

// EntityTableState is the exported, serializable form of one World's entity
// table: per-slot generation and alive flag (in ascending id order) plus
// the free list in LIFO recycling order. snapshot.Save/Load are the only
// intended callers.
type EntityTableState struct {
	Generations []uint32
	Alive       []bool
	FreeList    []uint32
}

// ExportEntityTable captures w's entity table for snapshot writing.
func (w *World) ExportEntityTable() EntityTableState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	st := EntityTableState{
		Generations: make([]uint32, len(w.entities.slots)),
		Alive:       make([]bool, len(w.entities.slots)),
		FreeList:    append([]uint32(nil), w.entities.freeList...),
	}
	for i, s := range w.entities.slots {
		st.Generations[i] = s.generation
		st.Alive[i] = s.alive
	}
	return st
}

// RestoreEntityTable replaces w's entity table wholesale from a previously
// exported state. Callers must clear pools and singleton ownership first;
// RestoreEntityTable only rebuilds slot/free-list/presence bookkeeping.
func (w *World) RestoreEntityTable(st EntityTableState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(st.Generations)
	slots := make([]entitySlot, n)
	alive := 0
	for i := 0; i < n; i++ {
		slots[i] = entitySlot{generation: st.Generations[i], alive: st.Alive[i]}
		if st.Alive[i] {
			alive++
		}
	}
	w.entities.slots = slots
	w.entities.freeList = append([]uint32(nil), st.FreeList...)
	w.entities.alive = alive
	w.presence = make([]query.Mask, n)
}

func pool[T any](w *World, c Component[T]) *Pool[T] {
	p, ok := w.pools[c.TypeID()]
	if !ok {
		panic("ecs: component type not registered on this world: " + string(c.TypeID()))
	}
	tp, ok := p.(*Pool[T])
	if !ok {
		panic("ecs: pool type assertion failed for " + string(c.TypeID()))
	}
	return tp
}
