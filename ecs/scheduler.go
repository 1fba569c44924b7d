package ecs

import (
	"fmt"
	"sort"
	"time"
)

// System is a scheduler-managed logic processor. Run is invoked once per
// occurrence of its Group's phase, in the deterministic order computed from
// OrderBefore/OrderAfter constraints (see SystemOrdering) with a stable
// (priority, name) tiebreak.
type System interface {
	Name() string
	Group() Phase
	Priority() Priority
	Run(w *World, dt float64)
}

// SystemOrdering is an optional System capability declaring ordering
// constraints relative to other systems in the same group, by name.
type SystemOrdering interface {
	OrderBefore() []string
	OrderAfter() []string
}

// SystemLifecycle is an optional System capability: Initialize fires on
// effective add (the next BeginFrame boundary after AddSystem), Shutdown on
// effective remove or world dispose.
type SystemLifecycle interface {
	Initialize(w *World)
	Shutdown(w *World)
}

// SystemEnabledFlag is an optional System capability letting the runner
// skip Run without removing the instance from the schedule.
type SystemEnabledFlag interface {
	Enabled() bool
	SetEnabled(bool)
}

type systemEntry struct {
	sys         System
	initialized bool
}

type pendingChange struct {
	kind   string // "add", "remove", "enable", "disable"
	sys    System
	name   string
}

// scheduler owns one world's system list, phase ordering cache, pending
// add/remove queue, and the fixed-step accumulator.
type scheduler struct {
	systems      map[string]*systemEntry
	orderCache   map[Phase][]string
	pending      []pendingChange
	currentPhase Phase
}

func newScheduler() *scheduler {
	return &scheduler{
		systems:    make(map[string]*systemEntry),
		orderCache: make(map[Phase][]string),
	}
}

// AddSystem queues sys for addition, effective at the next BeginFrame
// boundary. Ordering is validated eagerly (against the group's current
// membership plus anything else already pending) so that an unresolvable
// OrderBefore/OrderAfter cycle is a hard error at registration rather than
// a silent later failure.
func (w *World) AddSystem(sys System) error {
	name := sys.Name()
	if _, err := w.sched.tentativeOrder(sys.Group(), name, sys); err != nil {
		return err
	}
	w.sched.pending = append(w.sched.pending, pendingChange{kind: "add", sys: sys, name: name})
	return nil
}

// RemoveSystem queues sys for removal by name, effective at the next
// BeginFrame boundary.
func (w *World) RemoveSystem(name string) {
	w.sched.pending = append(w.sched.pending, pendingChange{kind: "remove", name: name})
}

// SetEnabledSystem queues an enable/disable flip for the named system,
// effective at the next BeginFrame boundary.
func (w *World) SetEnabledSystem(name string, enabled bool) {
	kind := "disable"
	if enabled {
		kind = "enable"
	}
	w.sched.pending = append(w.sched.pending, pendingChange{kind: kind, name: name})
}

// applyPendingSystemChanges processes the queued Add/Remove/Enable changes,
// firing Initialize/Shutdown lifecycle hooks and invalidating the affected
// groups' order cache.
func (w *World) applyPendingSystemChanges() {
	if len(w.sched.pending) == 0 {
		return
	}
	touched := map[Phase]bool{}
	for _, ch := range w.sched.pending {
		switch ch.kind {
		case "add":
			w.sched.systems[ch.name] = &systemEntry{sys: ch.sys}
			if lc, ok := ch.sys.(SystemLifecycle); ok {
				lc.Initialize(w)
			}
			touched[ch.sys.Group()] = true
		case "remove":
			if e, ok := w.sched.systems[ch.name]; ok {
				if lc, ok := e.sys.(SystemLifecycle); ok {
					lc.Shutdown(w)
				}
				touched[e.sys.Group()] = true
				delete(w.sched.systems, ch.name)
			}
		case "enable", "disable":
			if e, ok := w.sched.systems[ch.name]; ok {
				if flag, ok := e.sys.(SystemEnabledFlag); ok {
					flag.SetEnabled(ch.kind == "enable")
				}
			}
		}
	}
	w.sched.pending = w.sched.pending[:0]
	for phase := range touched {
		delete(w.sched.orderCache, phase)
	}
}

// IsSystemEnabled reports whether the named system would run (it is
// present and, if it implements SystemEnabledFlag, reports enabled).
func (w *World) IsSystemEnabled(name string) bool {
	e, ok := w.sched.systems[name]
	if !ok {
		return false
	}
	if flag, ok := e.sys.(SystemEnabledFlag); ok {
		return flag.Enabled()
	}
	return true
}

// GetSystem returns the named system, if registered (pending additions are
// not visible until their BeginFrame boundary).
func (w *World) GetSystem(name string) (System, bool) {
	e, ok := w.sched.systems[name]
	if !ok {
		return nil, false
	}
	return e.sys, true
}

// GetAllSystems returns every currently-registered system across all
// groups.
func (w *World) GetAllSystems() []System {
	out := make([]System, 0, len(w.sched.systems))
	for _, e := range w.sched.systems {
		out = append(out, e.sys)
	}
	return out
}

// orderedGroup returns the deterministic run order for phase, computing and
// caching it on first use after invalidation.
func (s *scheduler) orderedGroup(phase Phase) ([]string, error) {
	if order, ok := s.orderCache[phase]; ok {
		return order, nil
	}
	members := map[string]System{}
	for name, e := range s.systems {
		if e.sys.Group() == phase {
			members[name] = e.sys
		}
	}
	order, err := topoSort(members)
	if err != nil {
		return nil, err
	}
	s.orderCache[phase] = order
	return order, nil
}

// tentativeOrder recomputes order for phase as if candidate (named
// candidateName) and every still-pending addition to phase were also
// members, without mutating scheduler state. Used by AddSystem to fail fast
// on an unresolvable ordering cycle.
func (s *scheduler) tentativeOrder(phase Phase, candidateName string, candidate System) ([]string, error) {
	members := map[string]System{candidateName: candidate}
	for name, e := range s.systems {
		if e.sys.Group() == phase {
			members[name] = e.sys
		}
	}
	for _, ch := range s.pending {
		if ch.kind == "add" && ch.name != candidateName && ch.sys.Group() == phase {
			members[ch.name] = ch.sys
		}
	}
	return topoSort(members)
}

// topoSort computes a deterministic Kahn's-algorithm topological order over
// members using OrderBefore/OrderAfter edges, tie-broken by
// (descending priority, ascending name) among ready nodes. Returns
// OrderingCycle if the constraints are unsatisfiable.
func topoSort(members map[string]System) ([]string, error) {
	indegree := make(map[string]int, len(members))
	edges := make(map[string][]string, len(members)) // from -> to (from must run before to)
	for name := range members {
		indegree[name] = 0
	}
	addEdge := func(before, after string) {
		if _, ok := members[before]; !ok {
			return
		}
		if _, ok := members[after]; !ok {
			return
		}
		edges[before] = append(edges[before], after)
		indegree[after]++
	}
	for name, sys := range members {
		if ord, ok := sys.(SystemOrdering); ok {
			for _, before := range ord.OrderAfter() {
				addEdge(before, name)
			}
			for _, after := range ord.OrderBefore() {
				addEdge(name, after)
			}
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	priorityOf := func(name string) Priority { return members[name].Priority() }
	sortReady := func() {
		sort.Slice(ready, func(i, j int) bool {
			pi, pj := priorityOf(ready[i]), priorityOf(ready[j])
			if pi != pj {
				return pi > pj
			}
			return ready[i] < ready[j]
		})
	}

	var order []string
	sortReady()
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		var newlyReady []string
		for _, to := range edges[n] {
			indegree[to]--
			if indegree[to] == 0 {
				newlyReady = append(newlyReady, to)
			}
		}
		if len(newlyReady) > 0 {
			ready = append(ready, newlyReady...)
			sortReady()
		}
	}

	if len(order) != len(members) {
		return nil, newErr(ErrOrderingCycle, fmt.Sprintf("unresolvable ordering among %d system(s)", len(members)-len(order)))
	}
	return order, nil
}

// runPhase executes every enabled system in phase's deterministic order
// with the given delta time, recording per-system duration via the world's
// metrics sink, then applies the phase's apply barrier: any command buffer
// a system opened via BeginWrite and never itself closed is auto-applied
// here before the next phase starts.
func (w *World) runPhase(phase Phase, dt float64) {
	w.sched.currentPhase = phase
	order, err := w.sched.orderedGroup(phase)
	if err != nil {
		w.logger.WithField("world", w.id.String()).Error(err.Error())
		return
	}
	for _, name := range order {
		e := w.sched.systems[name]
		if flag, ok := e.sys.(SystemEnabledFlag); ok && !flag.Enabled() {
			continue
		}
		start := time.Now()
		e.sys.Run(w, dt)
		w.metrics.ObserveSystemDuration(w.id.String(), name, phase.String(), time.Since(start).Seconds())
	}
	w.flushOpenBuffers()
}

// BeginFrame drains the external command queue, applies pending system
// add/remove, runs FrameInput through FrameSync, and delivers queued
// messages (FIFO). Paused worlds skip all of this.
func (w *World) BeginFrame(dt float64) {
	if w.paused {
		return
	}
	w.mu.Lock()
	w.drainExternalLocked()
	w.applyPendingSystemChanges()
	w.mu.Unlock()

	for _, phase := range frameBeginOrder {
		w.runPhase(phase, dt)
	}
	w.sched.currentPhase = PhaseUnknown
	w.pumpMessages()
	w.accumulator += dt
	w.frameCount++
}

// FixedStep runs one fixed-step iteration (all Fixed-* phases, in order)
// if the accumulator holds at least fixedDt seconds, applying the phase
// barrier after each phase and advancing Tick. Returns false (and does
// nothing) if the accumulator is insufficient or the world is paused.
func (w *World) FixedStep(fixedDt float64) bool {
	if w.paused || fixedDt <= 0 || w.accumulator < fixedDt {
		return false
	}
	for _, phase := range fixedPhaseOrder {
		w.runPhase(phase, fixedDt)
	}
	w.sched.currentPhase = PhaseUnknown
	w.accumulator -= fixedDt
	w.tick++
	w.metrics.IncTicks(w.id.String())
	return true
}

// LateFrame runs FrameView then FrameUI (read-only presentation phases)
// with the given interpolation alpha.
func (w *World) LateFrame(alpha float64) {
	if w.paused {
		return
	}
	for _, phase := range frameLateOrder {
		w.runPhase(phase, alpha)
	}
	w.sched.currentPhase = PhaseUnknown
}

// PumpAndLateFrame is the composed entry point: BeginFrame, up to
// maxSubSteps FixedStep calls bounded by the accumulator (the
// spiral-of-death guard), then LateFrame with alpha = remaining
// accumulator / fixedDt. It returns the number of fixed ticks actually run.
func (w *World) PumpAndLateFrame(dt, fixedDt float64, maxSubSteps int) int {
	w.BeginFrame(dt)
	ticksRun := 0
	for ticksRun < maxSubSteps && w.FixedStep(fixedDt) {
		ticksRun++
	}
	alpha := 0.0
	if fixedDt > 0 {
		alpha = w.accumulator / fixedDt
	}
	w.LateFrame(alpha)
	return ticksRun
}

// RunScheduledJobs is an explicit barrier point outside the normal frame
// drive: it drains the external queue and applies pending system changes,
// without running any phase.
func (w *World) RunScheduledJobs() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drainExternalLocked()
	w.applyPendingSystemChanges()
}

// Pause/Resume/TogglePause gate BeginFrame/FixedStep/LateFrame. Queries and
// external-command enqueuing remain available while paused.

func (w *World) Pause()  { w.paused = true }
func (w *World) Resume() { w.paused = false }
func (w *World) TogglePause() {
	w.paused = !w.paused
}

// reinitialize is called by Reset: every currently-registered system is
// shut down and re-initialized, matching "reinitializes systems".
func (s *scheduler) reinitialize(w *World) {
	for _, e := range s.systems {
		if lc, ok := e.sys.(SystemLifecycle); ok {
			lc.Shutdown(w)
			lc.Initialize(w)
		}
	}
	s.orderCache = make(map[Phase][]string)
}
