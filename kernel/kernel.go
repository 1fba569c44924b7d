// Package kernel owns and coordinates the one or more *ecs.World instances
// a host process runs, exposing world lookup, a "current world" pointer for
// hosts that mostly deal with one world at a time, and the top-level
// stepping entry points that fan out to each world's scheduler.
package kernel

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zecs-dev/zecs/ecs"
)

// WorldEvent identifies a lifecycle notification Kernel broadcasts.
type WorldEvent int

const (
	WorldEventCurrentChanged WorldEvent = iota
	WorldEventDisposed
)

// WorldEventHandler receives Kernel lifecycle notifications. Handlers must
// not re-enter the Kernel synchronously (no CreateWorld/DestroyWorld calls
// from inside a handler); queue work instead.
type WorldEventHandler func(evt WorldEvent, w *ecs.World)

// CreateWorldOptions configures CreateWorld beyond ecs.WorldConfig.
type CreateWorldOptions struct {
	Config     ecs.WorldConfig
	Name       string
	Tags       []string
	SetCurrent bool
}

// Kernel is the process-wide registry of live worlds. The registry, current
// world, logger and event-handler methods are safe for concurrent use; the
// pause flag, the frame/time counters and PumpAndLateFrame's updates to them
// are not synchronized. Per spec §5 a single world itself must still only be
// touched by one goroutine at a time.
type Kernel struct {
	mu     sync.RWMutex
	worlds map[ecs.WorldID]*ecs.World
	order  []ecs.WorldID // registration order, for deterministic GetAllWorlds

	current *ecs.World

	paused bool

	frameCount              uint64
	fixedFrameCount         uint64
	totalSimulatedSeconds   float64
	simAccumulatorSeconds   float64

	handlers []WorldEventHandler

	logger *logrus.Logger
}

// New constructs an empty Kernel.
func New() *Kernel {
	return &Kernel{
		worlds: make(map[ecs.WorldID]*ecs.World),
		logger: logrus.StandardLogger(),
	}
}

// SetLogger overrides the logrus logger used for kernel-level diagnostics
// (world creation/destruction, panics during event dispatch).
func (k *Kernel) SetLogger(l *logrus.Logger) {
	if l == nil {
		return
	}
	k.mu.Lock()
	k.logger = l
	k.mu.Unlock()
}

// Subscribe registers h to receive future WorldEvent notifications.
func (k *Kernel) Subscribe(h WorldEventHandler) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.handlers = append(k.handlers, h)
}

func (k *Kernel) emit(evt WorldEvent, w *ecs.World) {
	k.mu.RLock()
	handlers := make([]WorldEventHandler, len(k.handlers))
	copy(handlers, k.handlers)
	k.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					k.logger.WithField("event", evt).Errorf("kernel: event handler panicked: %v", r)
				}
			}()
			h(evt, w)
		}()
	}
}

// CreateWorld allocates a new world, registers it, and optionally makes it
// current.
func (k *Kernel) CreateWorld(opts CreateWorldOptions) *ecs.World {
	cfg := opts.Config
	cfg.Tags = opts.Tags
	w := ecs.NewWorld(cfg)
	w.SetName(opts.Name)

	k.mu.Lock()
	k.worlds[w.Id()] = w
	k.order = append(k.order, w.Id())
	if opts.SetCurrent || k.current == nil {
		k.current = w
	}
	k.mu.Unlock()

	k.logger.WithFields(logrus.Fields{"world": w.Id().String(), "name": opts.Name}).Info("kernel: world created")
	if opts.SetCurrent {
		k.emit(WorldEventCurrentChanged, w)
	}
	return w
}

// DestroyWorld unregisters w, clearing it as current if it was current, and
// broadcasts Disposed.
func (k *Kernel) DestroyWorld(w *ecs.World) {
	if w == nil {
		return
	}
	k.mu.Lock()
	delete(k.worlds, w.Id())
	for i, id := range k.order {
		if id == w.Id() {
			k.order = append(k.order[:i], k.order[i+1:]...)
			break
		}
	}
	wasCurrent := k.current == w
	if wasCurrent {
		k.current = nil
	}
	k.mu.Unlock()

	w.Reset(false)
	k.logger.WithField("world", w.Id().String()).Info("kernel: world destroyed")
	k.emit(WorldEventDisposed, w)
	if wasCurrent {
		k.emit(WorldEventCurrentChanged, nil)
	}
}

// TryGet resolves id to its World, if still registered.
func (k *Kernel) TryGet(id ecs.WorldID) (*ecs.World, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	w, ok := k.worlds[id]
	return w, ok
}

// FindByName returns every registered world with the given name (names are
// not required to be unique).
func (k *Kernel) FindByName(name string) []*ecs.World {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var out []*ecs.World
	for _, id := range k.order {
		w := k.worlds[id]
		if w.Name() == name {
			out = append(out, w)
		}
	}
	return out
}

// FindByTag returns every registered world carrying tag.
func (k *Kernel) FindByTag(tag string) []*ecs.World {
	return k.FindByAnyTag(tag)
}

// FindByAnyTag returns every registered world carrying at least one of tags.
func (k *Kernel) FindByAnyTag(tags ...string) []*ecs.World {
	k.mu.RLock()
	defer k.mu.RUnlock()
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}
	var out []*ecs.World
	for _, id := range k.order {
		w := k.worlds[id]
		for _, t := range w.Tags() {
			if _, ok := want[t]; ok {
				out = append(out, w)
				break
			}
		}
	}
	return out
}

// GetAllWorlds returns a snapshot of every registered world, in
// registration order.
func (k *Kernel) GetAllWorlds() []*ecs.World {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]*ecs.World, len(k.order))
	for i, id := range k.order {
		out[i] = k.worlds[id]
	}
	return out
}

// CurrentWorld returns the kernel's current world, or nil if none is set.
func (k *Kernel) CurrentWorld() *ecs.World {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

// SetCurrentWorld makes w the current world and broadcasts
// WorldEventCurrentChanged. w must already be registered (via CreateWorld);
// calling this with an unregistered world is a programming error and panics.
func (k *Kernel) SetCurrentWorld(w *ecs.World) {
	k.mu.Lock()
	if _, ok := k.worlds[w.Id()]; !ok {
		k.mu.Unlock()
		panic(fmt.Sprintf("kernel: SetCurrentWorld: world %s is not registered", w.Id()))
	}
	k.current = w
	k.mu.Unlock()
	k.emit(WorldEventCurrentChanged, w)
}

// ClearCurrentWorld unsets the current world.
func (k *Kernel) ClearCurrentWorld() {
	k.mu.Lock()
	k.current = nil
	k.mu.Unlock()
	k.emit(WorldEventCurrentChanged, nil)
}

func (k *Kernel) IsPaused() bool { return k.paused }
func (k *Kernel) Pause()         { k.paused = true }
func (k *Kernel) Resume()        { k.paused = false }
func (k *Kernel) TogglePause()   { k.paused = !k.paused }

func (k *Kernel) FrameCount() uint64            { return k.frameCount }
func (k *Kernel) FixedFrameCount() uint64       { return k.fixedFrameCount }
func (k *Kernel) TotalSimulatedSeconds() float64 { return k.totalSimulatedSeconds }
func (k *Kernel) SimulationAccumulatorSeconds() float64 {
	return k.simAccumulatorSeconds
}

// PumpAndLateFrame steps every registered world once: BeginFrame(dt),
// FixedStep(fixedDt) up to maxSubSteps times, then LateFrame(alpha). Worlds
// run in registration order on the calling goroutine; a host that wants
// worlds stepped concurrently should call ecs.World's own entry points
// directly instead of going through Kernel. Returns the total ticks run
// across all worlds. No-ops (returns 0) while the kernel is paused.
func (k *Kernel) PumpAndLateFrame(dt, fixedDt float64, maxSubSteps int) int {
	if k.paused {
		return 0
	}
	worlds := k.GetAllWorlds()
	total := 0
	for _, w := range worlds {
		total += w.PumpAndLateFrame(dt, fixedDt, maxSubSteps)
	}
	k.frameCount++
	k.fixedFrameCount += uint64(total)
	k.totalSimulatedSeconds += dt
	if len(worlds) > 0 {
		k.simAccumulatorSeconds = worlds[0].AccumulatorSeconds()
	}
	return total
}

// RunScheduledJobs drains the external command queue and applies pending
// system add/remove on every registered world, without running any phase.
func (k *Kernel) RunScheduledJobs() {
	for _, w := range k.GetAllWorlds() {
		w.RunScheduledJobs()
	}
}
