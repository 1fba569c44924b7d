package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/zecs-dev/zecs/metrics"
)

func Test_Collector_SetEntitiesAliveReportsGaugeValue(t *testing.T) {
	// Arrange
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	// Act
	c.SetEntitiesAlive("demo", 7)

	// Assert
	expected := `
# HELP zecs_entities_alive Currently alive entities per world.
# TYPE zecs_entities_alive gauge
zecs_entities_alive{world="demo"} 7
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "zecs_entities_alive"))
}

func Test_Collector_IncTicksAccumulatesPerWorld(t *testing.T) {
	// Arrange
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	// Act
	c.IncTicks("a")
	c.IncTicks("a")
	c.IncTicks("b")

	// Assert
	expected := `
# HELP zecs_fixed_ticks_total Fixed-step ticks run per world.
# TYPE zecs_fixed_ticks_total counter
zecs_fixed_ticks_total{world="a"} 2
zecs_fixed_ticks_total{world="b"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "zecs_fixed_ticks_total"))
}

func Test_Collector_IncSingletonViolations(t *testing.T) {
	// Arrange
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	// Act
	c.IncSingletonViolations("demo")
	c.IncSingletonViolations("demo")

	// Assert
	expected := `
# HELP zecs_singleton_violations_total Rejected singleton-owner conflicts per world.
# TYPE zecs_singleton_violations_total counter
zecs_singleton_violations_total{world="demo"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "zecs_singleton_violations_total"))
}

func Test_NoopCollector_SatisfiesSinkWithoutPanicking(t *testing.T) {
	// Arrange
	c := metrics.NoopCollector{}

	// Act & Assert
	assert.NotPanics(t, func() {
		c.SetEntitiesAlive("demo", 1)
		c.IncTicks("demo")
		c.ObserveSystemDuration("demo", "move", "fixed_simulation", 0.001)
		c.ObserveQueryDuration("demo", "Query2", 0.0001)
		c.IncCommandOp("demo", "add_component", "ok")
		c.IncMessagesPublished("demo", "DamageRequest")
		c.IncMessagesDelivered("demo", "DamageRequest")
		c.IncSingletonViolations("demo")
	})
}
