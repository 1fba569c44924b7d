// Command zecsdemo drives a single world through the handful of scenarios
// that exercise zecs's structural edges: fixed-step movement, message-bus
// delivery, command-buffer deferral, singleton ownership, validator
// rejection, and snapshot save/load with a post-load migration.
package main

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zecs-dev/zecs/ecs"
	"github.com/zecs-dev/zecs/ecs/snapshot"
	"github.com/zecs-dev/zecs/internal/logging"
	"github.com/zecs-dev/zecs/kernel"
	"github.com/zecs-dev/zecs/metrics"
)

func main() {
	logger := logging.New(logging.Options{Level: "info"})

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	registerFormatters()
	snapshot.RegisterMigration(assignDefaultLayerMigration{})

	k := kernel.New()
	k.SetLogger(logger)

	w := k.CreateWorld(kernel.CreateWorldOptions{
		Name:       "demo",
		Tags:       []string{"primary"},
		SetCurrent: true,
		Config:     ecs.DefaultWorldConfig(),
	})
	w.SetMetricsSink(collector)

	installHealthValidator(w)
	installDamageHandler(w)
	if err := w.AddSystem(MoveSystem{}); err != nil {
		panic(err)
	}
	if err := w.AddSystem(StunSystem{}); err != nil {
		panic(err)
	}
	w.RunScheduledJobs()

	movement(w, k)
	damage(w)
	deferral(w)
	singleton(w)
	validation(w)
	snapshotRoundTrip(w)
}

// movement: an entity carrying Position and Velocity advances under
// MoveSystem at 60 fixed ticks per second. Running one 8-tick frame moves it
// by 8/60 units along X.
func movement(w *ecs.World, k *kernel.Kernel) {
	b := w.BeginWrite()
	e := b.CreateEntity()
	ecs.AddComponent(b, e, PositionComponent, Position{})
	ecs.AddComponent(b, e, VelocityComponent, Velocity{X: 1})
	for _, err := range b.End() {
		if err != nil {
			panic(err)
		}
	}
	e = b.Resolved(e)

	const fixedDt = 1.0 / 60.0
	ticks := k.PumpAndLateFrame(8*fixedDt, fixedDt, 8)

	pos := ecs.ReadComponent(w, e, PositionComponent)
	fmt.Printf("movement: ticks=%d tick=%d position=(%.4f, %.4f)\n", ticks, w.Tick(), pos.X, pos.Y)
}

// damage: publishing a DamageRequestMessage reduces the target's Health once
// the bus is pumped at the next BeginFrame.
func damage(w *ecs.World) {
	b := w.BeginWrite()
	target := b.CreateEntity()
	ecs.AddComponent(b, target, HealthComponent, Health{Value: 100})
	for _, err := range b.End() {
		if err != nil {
			panic(err)
		}
	}
	target = b.Resolved(target)

	ecs.Publish(w, DamageRequestMessage, DamageRequest{Target: target, Amount: 19})
	w.BeginFrame(1.0 / 60.0)

	h := ecs.ReadComponent(w, target, HealthComponent)
	fmt.Printf("damage: health=%.1f\n", h.Value)
}

// deferral: StunSystem records an AddComponent op against a command buffer;
// the addition is only visible after the buffer applies, never within the
// same Run call that recorded it.
func deferral(w *ecs.World) {
	b := w.BeginWrite()
	dying := b.CreateEntity()
	ecs.AddComponent(b, dying, HealthComponent, Health{Value: 0})
	for _, err := range b.End() {
		if err != nil {
			panic(err)
		}
	}
	dying = b.Resolved(dying)

	w.FixedStep(1.0 / 60.0)
	fmt.Printf("deferral: stunned_after_tick=%v\n", ecs.HasComponent(w, dying, StunnedComponent))
}

// singleton: the second attempt to own GameSettingsComponent via a fresh
// entity is rejected; SetSingleton against the existing owner always
// succeeds instead of conflicting.
func singleton(w *ecs.World) {
	errs := w.Write(func(b *ecs.CommandBuffer) {
		ecs.SetSingleton(b, GameSettingsComponent, GameSettings{MaxPlayers: 4, Mode: "coop"})
	})
	for _, err := range errs {
		if err != nil {
			panic(err)
		}
	}

	var rogue ecs.Entity
	errs = w.Write(func(b *ecs.CommandBuffer) {
		rogue = b.CreateEntity()
		ecs.AddComponent(b, rogue, GameSettingsComponent, GameSettings{MaxPlayers: 99, Mode: "rogue"})
	})
	var conflict error
	for _, err := range errs {
		if err != nil {
			conflict = err
		}
	}
	fmt.Printf("singleton: conflict_rejected=%v\n", conflict != nil)
}

// validation: a Health validator installed up front rejects any write with a
// negative Value outright; the command buffer reports the rejection without
// aborting the rest of its ops.
func validation(w *ecs.World) {
	b := w.BeginWrite()
	e := b.CreateEntity()
	ecs.AddComponent(b, e, HealthComponent, Health{Value: -5})
	var rejected error
	for _, err := range b.End() {
		if err != nil {
			rejected = err
		}
	}
	e = b.Resolved(e)
	fmt.Printf("validation: rejected=%v present=%v\n", rejected != nil, ecs.HasComponent(w, e, HealthComponent))
}

// snapshotRoundTrip saves the world, loads it into a fresh one, and shows
// assignDefaultLayerMigration fixing up a Position left at its legacy
// zero-value Layer. A hand-authored V1-format byte stream would exercise
// positionFormatterV1 directly; zeroing Layer here reaches the migration's
// trigger condition the same way a decoded V1 payload would.
func snapshotRoundTrip(w *ecs.World) {
	errs := w.Write(func(b *ecs.CommandBuffer) {
		e := b.CreateEntity()
		ecs.AddComponent(b, e, PositionComponent, Position{X: 3, Y: 4, Layer: 0})
		ecs.AddComponent(b, e, VelocityComponent, Velocity{})
	})
	for _, err := range errs {
		if err != nil {
			panic(err)
		}
	}

	var buf bytes.Buffer
	if err := snapshot.Save(w, &buf); err != nil {
		panic(err)
	}

	loaded := ecs.NewWorld(ecs.DefaultWorldConfig())
	if err := snapshot.Load(loaded, &buf); err != nil {
		panic(err)
	}

	for _, pos := range ecs.PoolEntries(loaded, PositionComponent.TypeID()) {
		p := pos.Value.(Position)
		fmt.Printf("snapshot: position=(%.1f, %.1f) layer=%d\n", p.X, p.Y, p.Layer)
	}
}
