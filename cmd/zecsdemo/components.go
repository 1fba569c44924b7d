package main

import "github.com/zecs-dev/zecs/ecs"

// Position is the current on-disk shape: a Layer field was added after
// the first release. Movement only ever touches X and Y; Layer exists so
// the snapshot migration scenario has something concrete to demonstrate.
type Position struct {
	X, Y  float64
	Layer int32
}

// legacyPositionV1 is never registered as an ecs.Component — it has no pool
// of its own. It is only the intermediate decode shape a legacy Formatter
// uses for "position" chunks written before Layer existed.
type legacyPositionV1 struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

type Health struct {
	Value float64
}

type GameSettings struct {
	MaxPlayers int
	Mode       string
}

// Stunned is a marker component: present or absent, no payload worth
// persisting.
type Stunned struct{}

// DamageRequest is published on the message bus; handling it mutates the
// target's Health.
type DamageRequest struct {
	Target ecs.Entity
	Amount float64
}

var (
	PositionComponent     = ecs.Register[Position]("zecsdemo.position")
	VelocityComponent     = ecs.Register[Velocity]("zecsdemo.velocity")
	HealthComponent       = ecs.Register[Health]("zecsdemo.health")
	GameSettingsComponent = ecs.Register[GameSettings]("zecsdemo.gamesettings", ecs.AsSingleton())
	StunnedComponent      = ecs.Register[Stunned]("zecsdemo.stunned")
)

var DamageRequestMessage = ecs.RegisterMessage[DamageRequest]("zecsdemo.damagerequest")
