package main

import (
	"fmt"

	"github.com/zecs-dev/zecs/ecs"
)

// MoveSystem integrates Position by Velocity every fixed tick.
type MoveSystem struct{}

func (MoveSystem) Name() string       { return "move" }
func (MoveSystem) Group() ecs.Phase   { return ecs.PhaseFixedSimulation }
func (MoveSystem) Priority() ecs.Priority { return ecs.PriorityNormal }

func (MoveSystem) Run(w *ecs.World, dt float64) {
	ecs.Query2(w, PositionComponent, VelocityComponent)(func(e ecs.Entity, pos *Position, vel *Velocity) bool {
		pos.X += vel.X * dt
		pos.Y += vel.Y * dt
		return true
	})
}

// StunSystem demonstrates command-buffer deferral: AddComponent only
// records the op against the buffer, so HasComponent still reports false
// right up until the buffer's End() applies it, even from within the same
// Run call that recorded the op.
type StunSystem struct{}

func (StunSystem) Name() string       { return "stun" }
func (StunSystem) Group() ecs.Phase   { return ecs.PhaseFixedDecision }
func (StunSystem) Priority() ecs.Priority { return ecs.PriorityNormal }

func (StunSystem) Run(w *ecs.World, dt float64) {
	b := w.BeginWrite()
	var stunnedTarget ecs.Entity
	for e, h := range ecs.Query1(w, HealthComponent) {
		if h.Value <= 0 && !ecs.HasComponent(w, e, StunnedComponent) {
			ecs.AddComponent(b, e, StunnedComponent, Stunned{})
			stunnedTarget = e
		}
	}
	if !stunnedTarget.IsNone() {
		fmt.Printf("stun system: recorded but not applied, still_absent=%v\n",
			!ecs.HasComponent(w, stunnedTarget, StunnedComponent))
	}
	for _, err := range b.End() {
		if err != nil {
			fmt.Println("stun system:", err)
		}
	}
}

// installDamageHandler subscribes DamageRequestMessage against w and applies
// it to the target's Health through a command buffer. Message handlers run
// at pump time (BeginFrame), outside any phase's read-only restriction, so
// this needs no System of its own.
func installDamageHandler(w *ecs.World) ecs.Subscription {
	return ecs.Subscribe(w, DamageRequestMessage, func(msg DamageRequest) {
		errs := w.Write(func(b *ecs.CommandBuffer) {
			h, ok := ecs.TryReadComponent(w, msg.Target, HealthComponent)
			if !ok {
				return
			}
			h.Value -= msg.Amount
			ecs.ReplaceComponent(b, msg.Target, HealthComponent, h)
		})
		for _, err := range errs {
			if err != nil {
				fmt.Println("damage handler:", err)
			}
		}
	})
}

// installHealthValidator rejects negative Health.Value writes outright,
// demonstrating validator-driven write rejection.
func installHealthValidator(w *ecs.World) {
	w.AddValidator(HealthComponent.TypeID(), func(v any) bool {
		h, ok := v.(Health)
		return ok && h.Value >= 0
	})
}
