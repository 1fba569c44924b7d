package ecs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zecs-dev/zecs/ecs"
)

type testPosition struct {
	X, Y float64
}

type testHealth struct {
	Value float64
}

type testTag struct{}

var (
	testPositionComponent = ecs.Register[testPosition]("ecs_test.position")
	testHealthComponent    = ecs.Register[testHealth]("ecs_test.health")
	testTagComponent       = ecs.Register[testTag]("ecs_test.tag")
	testSingletonComponent = ecs.Register[testHealth]("ecs_test.singleton", ecs.AsSingleton())
)

func Test_World_CreateAndDestroyEntity(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	b := w.BeginWrite()
	provisional := b.CreateEntity()
	ecs.AddComponent(b, provisional, testPositionComponent, testPosition{X: 1, Y: 2})
	errs := b.End()
	assert.Empty(t, errs)
	e := b.Resolved(provisional)

	// Act & Assert
	assert.True(t, w.IsAlive(e))
	pos := ecs.ReadComponent(w, e, testPositionComponent)
	assert.Equal(t, testPosition{X: 1, Y: 2}, pos)

	errs = w.Write(func(b *ecs.CommandBuffer) {
		b.DestroyEntity(e)
	})
	assert.Empty(t, errs)
	assert.False(t, w.IsAlive(e))
}

func Test_World_AddComponentRejectsDuplicate(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	b := w.BeginWrite()
	provisional := b.CreateEntity()
	ecs.AddComponent(b, provisional, testHealthComponent, testHealth{Value: 10})
	assert.Empty(t, b.End())
	e := b.Resolved(provisional)

	// Act
	errs := w.Write(func(b *ecs.CommandBuffer) {
		ecs.AddComponent(b, e, testHealthComponent, testHealth{Value: 20})
	})

	// Assert
	assert.Len(t, errs, 1)
	var kerr *ecs.Error
	assert.ErrorAs(t, errs[0], &kerr)
	assert.Equal(t, ecs.ErrAlreadyPresent, kerr.Kind)
	assert.Equal(t, testHealth{Value: 10}, ecs.ReadComponent(w, e, testHealthComponent))
}

func Test_World_ReplaceComponentUpdatesInPlace(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	b := w.BeginWrite()
	provisional := b.CreateEntity()
	ecs.AddComponent(b, provisional, testHealthComponent, testHealth{Value: 10})
	assert.Empty(t, b.End())
	e := b.Resolved(provisional)

	// Act
	errs := w.Write(func(b *ecs.CommandBuffer) {
		ecs.ReplaceComponent(b, e, testHealthComponent, testHealth{Value: 42})
	})

	// Assert
	assert.Empty(t, errs)
	assert.Equal(t, testHealth{Value: 42}, ecs.ReadComponent(w, e, testHealthComponent))
}

func Test_World_SingletonSecondOwnerRejected(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	errs := w.Write(func(b *ecs.CommandBuffer) {
		ecs.SetSingleton(b, testSingletonComponent, testHealth{Value: 1})
	})
	assert.Empty(t, errs)

	// Act
	errs = w.Write(func(b *ecs.CommandBuffer) {
		rogue := b.CreateEntity()
		ecs.AddComponent(b, rogue, testSingletonComponent, testHealth{Value: 2})
	})

	// Assert
	assert.Len(t, errs, 1)
	var kerr *ecs.Error
	assert.ErrorAs(t, errs[0], &kerr)
	assert.Equal(t, ecs.ErrSingletonViolation, kerr.Kind)
}

func Test_World_SetSingletonAgainstExistingOwnerSucceeds(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	errs := w.Write(func(b *ecs.CommandBuffer) {
		ecs.SetSingleton(b, testSingletonComponent, testHealth{Value: 1})
	})
	assert.Empty(t, errs)

	// Act
	errs = w.Write(func(b *ecs.CommandBuffer) {
		ecs.SetSingleton(b, testSingletonComponent, testHealth{Value: 7})
	})

	// Assert
	assert.Empty(t, errs)
}

func Test_World_ValidatorRejectsWrite(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	w.AddValidator(testHealthComponent.TypeID(), func(v any) bool {
		h, ok := v.(testHealth)
		return ok && h.Value >= 0
	})

	// Act
	var e ecs.Entity
	errs := w.Write(func(b *ecs.CommandBuffer) {
		e = b.CreateEntity()
		ecs.AddComponent(b, e, testHealthComponent, testHealth{Value: -1})
	})

	// Assert
	assert.Len(t, errs, 1)
	var kerr *ecs.Error
	assert.ErrorAs(t, errs[0], &kerr)
	assert.Equal(t, ecs.ErrValidationFailed, kerr.Kind)
}

func Test_Query2_YieldsOnlyEntitiesWithBothComponents(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	var both, posOnly ecs.Entity
	var wb *ecs.CommandBuffer
	errs := w.Write(func(b *ecs.CommandBuffer) {
		wb = b
		bothProv := b.CreateEntity()
		ecs.AddComponent(b, bothProv, testPositionComponent, testPosition{X: 1})
		ecs.AddComponent(b, bothProv, testHealthComponent, testHealth{Value: 1})

		posOnlyProv := b.CreateEntity()
		ecs.AddComponent(b, posOnlyProv, testPositionComponent, testPosition{X: 2})

		both = bothProv
		posOnly = posOnlyProv
	})
	assert.Empty(t, errs)
	both, posOnly = wb.Resolved(both), wb.Resolved(posOnly)

	// Act
	var seen []ecs.Entity
	ecs.Query2(w, testPositionComponent, testHealthComponent)(func(e ecs.Entity, pos *testPosition, h *testHealth) bool {
		seen = append(seen, e)
		return true
	})

	// Assert
	assert.ElementsMatch(t, []ecs.Entity{both}, seen)
	assert.NotContains(t, seen, posOnly)
}

func Test_World_FixedStepConsumesAccumulator(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	const fixedDt = 1.0 / 60.0

	// Act
	w.BeginFrame(fixedDt)
	ran := w.FixedStep(fixedDt)

	// Assert
	assert.True(t, ran)
	assert.Equal(t, ecs.Tick(1), w.Tick())
	assert.False(t, w.FixedStep(fixedDt))
}

func Test_World_Reset_ClearsEntitiesAndPools(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	b := w.BeginWrite()
	provisional := b.CreateEntity()
	ecs.AddComponent(b, provisional, testTagComponent, testTag{})
	assert.Empty(t, b.End())

	// Act
	w.Reset(false)

	// Assert
	assert.Equal(t, 0, w.AliveCount())
}
