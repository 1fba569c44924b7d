package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zecs-dev/zecs/ecs"
	"github.com/zecs-dev/zecs/kernel"
)

func Test_Kernel_CreateWorldRegistersAndSetsCurrent(t *testing.T) {
	// Arrange
	k := kernel.New()

	// Act
	w := k.CreateWorld(kernel.CreateWorldOptions{
		Name:       "alpha",
		Tags:       []string{"primary"},
		SetCurrent: true,
		Config:     ecs.DefaultWorldConfig(),
	})

	// Assert
	assert.Same(t, w, k.CurrentWorld())
	got, ok := k.TryGet(w.Id())
	assert.True(t, ok)
	assert.Same(t, w, got)
}

func Test_Kernel_FirstWorldBecomesCurrentEvenWithoutSetCurrent(t *testing.T) {
	// Arrange
	k := kernel.New()

	// Act
	w := k.CreateWorld(kernel.CreateWorldOptions{Name: "only", Config: ecs.DefaultWorldConfig()})

	// Assert
	assert.Same(t, w, k.CurrentWorld())
}

func Test_Kernel_DestroyWorldClearsCurrent(t *testing.T) {
	// Arrange
	k := kernel.New()
	w := k.CreateWorld(kernel.CreateWorldOptions{Name: "alpha", SetCurrent: true, Config: ecs.DefaultWorldConfig()})

	// Act
	k.DestroyWorld(w)

	// Assert
	assert.Nil(t, k.CurrentWorld())
	_, ok := k.TryGet(w.Id())
	assert.False(t, ok)
}

func Test_Kernel_FindByNameAndTag(t *testing.T) {
	// Arrange
	k := kernel.New()
	a := k.CreateWorld(kernel.CreateWorldOptions{Name: "alpha", Tags: []string{"combat"}, Config: ecs.DefaultWorldConfig()})
	b := k.CreateWorld(kernel.CreateWorldOptions{Name: "alpha", Tags: []string{"ui"}, Config: ecs.DefaultWorldConfig()})

	// Act
	byName := k.FindByName("alpha")
	byTag := k.FindByAnyTag("ui")

	// Assert
	assert.ElementsMatch(t, []*ecs.World{a, b}, byName)
	assert.ElementsMatch(t, []*ecs.World{b}, byTag)
}

func Test_Kernel_SetCurrentWorldPanicsOnUnregistered(t *testing.T) {
	// Arrange
	k := kernel.New()
	other := kernel.New()
	stray := other.CreateWorld(kernel.CreateWorldOptions{Name: "stray", Config: ecs.DefaultWorldConfig()})

	// Act & Assert
	assert.Panics(t, func() {
		k.SetCurrentWorld(stray)
	})
}

func Test_Kernel_PumpAndLateFrameStepsEveryWorld(t *testing.T) {
	// Arrange
	k := kernel.New()
	a := k.CreateWorld(kernel.CreateWorldOptions{Name: "a", Config: ecs.DefaultWorldConfig()})
	b := k.CreateWorld(kernel.CreateWorldOptions{Name: "b", Config: ecs.DefaultWorldConfig()})
	const fixedDt = 1.0 / 60.0

	// Act
	ticks := k.PumpAndLateFrame(4*fixedDt, fixedDt, 4)

	// Assert
	assert.Equal(t, 8, ticks)
	assert.Equal(t, ecs.Tick(4), a.Tick())
	assert.Equal(t, ecs.Tick(4), b.Tick())
	assert.Equal(t, uint64(1), k.FrameCount())
	assert.Equal(t, uint64(8), k.FixedFrameCount())
}

func Test_Kernel_PumpAndLateFrameNoOpsWhilePaused(t *testing.T) {
	// Arrange
	k := kernel.New()
	w := k.CreateWorld(kernel.CreateWorldOptions{Name: "a", Config: ecs.DefaultWorldConfig()})
	k.Pause()
	const fixedDt = 1.0 / 60.0

	// Act
	ticks := k.PumpAndLateFrame(fixedDt, fixedDt, 4)

	// Assert
	assert.Equal(t, 0, ticks)
	assert.Equal(t, ecs.Tick(0), w.Tick())
}

func Test_Kernel_SubscribeReceivesCurrentChanged(t *testing.T) {
	// Arrange
	k := kernel.New()
	var events []kernel.WorldEvent
	k.Subscribe(func(evt kernel.WorldEvent, w *ecs.World) {
		events = append(events, evt)
	})

	// Act
	k.CreateWorld(kernel.CreateWorldOptions{Name: "a", SetCurrent: true, Config: ecs.DefaultWorldConfig()})

	// Assert
	assert.Equal(t, []kernel.WorldEvent{kernel.WorldEventCurrentChanged}, events)
}
