// Package metrics provides the Prometheus-backed implementation of
// ecs.WorldMetricsSink, and a no-op stand-in for hosts that don't want a
// registry wired up.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and updates one family of metrics per World
// observation point, labeled by the world string the caller passes (World
// passes its hex id) so one process hosting several worlds gets per-world
// series.
type Collector struct {
	entitiesAlive       *prometheus.GaugeVec
	ticksTotal          *prometheus.CounterVec
	systemDuration      *prometheus.HistogramVec
	queryDuration       *prometheus.HistogramVec
	commandOpsTotal     *prometheus.CounterVec
	messagesPublished   *prometheus.CounterVec
	messagesDelivered   *prometheus.CounterVec
	singletonViolations *prometheus.CounterVec
}

// NewCollector builds a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		entitiesAlive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zecs_entities_alive",
			Help: "Currently alive entities per world.",
		}, []string{"world"}),
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zecs_fixed_ticks_total",
			Help: "Fixed-step ticks run per world.",
		}, []string{"world"}),
		systemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zecs_system_duration_seconds",
			Help:    "System Run duration per world, system and phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"world", "system", "phase"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zecs_query_duration_seconds",
			Help:    "Typed query iteration duration per world and queried component types.",
			Buckets: prometheus.DefBuckets,
		}, []string{"world", "query"}),
		commandOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zecs_command_ops_total",
			Help: "Command buffer operations per world, op kind and outcome.",
		}, []string{"world", "op", "outcome"}),
		messagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zecs_messages_published_total",
			Help: "Messages enqueued per world and message type.",
		}, []string{"world", "msg_type"}),
		messagesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zecs_messages_delivered_total",
			Help: "Messages delivered to a handler per world and message type.",
		}, []string{"world", "msg_type"}),
		singletonViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zecs_singleton_violations_total",
			Help: "Rejected singleton-owner conflicts per world.",
		}, []string{"world"}),
	}
	reg.MustRegister(
		c.entitiesAlive,
		c.ticksTotal,
		c.systemDuration,
		c.queryDuration,
		c.commandOpsTotal,
		c.messagesPublished,
		c.messagesDelivered,
		c.singletonViolations,
	)
	return c
}

func (c *Collector) SetEntitiesAlive(world string, n int) {
	c.entitiesAlive.WithLabelValues(world).Set(float64(n))
}

func (c *Collector) IncTicks(world string) {
	c.ticksTotal.WithLabelValues(world).Inc()
}

func (c *Collector) ObserveSystemDuration(world, system, phase string, seconds float64) {
	c.systemDuration.WithLabelValues(world, system, phase).Observe(seconds)
}

func (c *Collector) ObserveQueryDuration(world, query string, seconds float64) {
	c.queryDuration.WithLabelValues(world, query).Observe(seconds)
}

func (c *Collector) IncCommandOp(world, op, outcome string) {
	c.commandOpsTotal.WithLabelValues(world, op, outcome).Inc()
}

func (c *Collector) IncMessagesPublished(world, msgType string) {
	c.messagesPublished.WithLabelValues(world, msgType).Inc()
}

func (c *Collector) IncMessagesDelivered(world, msgType string) {
	c.messagesDelivered.WithLabelValues(world, msgType).Inc()
}

func (c *Collector) IncSingletonViolations(world string) {
	c.singletonViolations.WithLabelValues(world).Inc()
}

// NoopCollector satisfies ecs.WorldMetricsSink with no-op methods, for
// hosts that don't want to wire up a Prometheus registry at all. World's
// own default (its unexported noopMetrics) already covers this; NoopCollector
// exists so callers outside package ecs have a named type to reference
// explicitly, e.g. to satisfy a function signature expecting a
// metrics.Collector-shaped value in tests.
type NoopCollector struct{}

func (NoopCollector) SetEntitiesAlive(string, int)                       {}
func (NoopCollector) IncTicks(string)                                    {}
func (NoopCollector) ObserveSystemDuration(string, string, string, float64) {}
func (NoopCollector) ObserveQueryDuration(string, string, float64)       {}
func (NoopCollector) IncCommandOp(string, string, string)                {}
func (NoopCollector) IncMessagesPublished(string, string)                {}
func (NoopCollector) IncMessagesDelivered(string, string)                {}
func (NoopCollector) IncSingletonViolations(string)                      {}
