// Package metrics exposes the time server's roster and tick counters as
// Prometheus metrics, following a standard Describe/Collect collector
// shape.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerCollector reports the time server's live state: expected and
// registered participant counts, the current virtual time, and how many
// ticks have completed their barrier.
type ServerCollector struct {
	expected uint32

	registered int64 // atomic
	virtualNS  int64 // atomic
	ticks      int64 // atomic

	expectedDesc   *prometheus.Desc
	registeredDesc *prometheus.Desc
	virtualDesc    *prometheus.Desc
	ticksDesc      *prometheus.Desc
}

// NewServerCollector builds a collector for a server expecting `expected`
// participants. constLabels is meant for labels constant for the whole
// process, e.g. a simulation run identifier.
func NewServerCollector(expected int, constLabels prometheus.Labels) *ServerCollector {
	c := &ServerCollector{expected: uint32(expected)}
	c.expectedDesc = prometheus.NewDesc("simulith_expected_participants", "Configured participant count for this simulation run.", nil, constLabels)
	c.registeredDesc = prometheus.NewDesc("simulith_registered_participants", "Number of participants currently registered in the roster.", nil, constLabels)
	c.virtualDesc = prometheus.NewDesc("simulith_virtual_time_nanoseconds", "Current virtual simulation time.", nil, constLabels)
	c.ticksDesc = prometheus.NewDesc("simulith_ticks_completed_total", "Number of ticks whose barrier has fully closed.", nil, constLabels)
	return c
}

// Describe implements prometheus.Collector.
func (c *ServerCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.expectedDesc
	descs <- c.registeredDesc
	descs <- c.virtualDesc
	descs <- c.ticksDesc
}

// Collect implements prometheus.Collector.
func (c *ServerCollector) Collect(out chan<- prometheus.Metric) {
	out <- prometheus.MustNewConstMetric(c.expectedDesc, prometheus.GaugeValue, float64(c.expected))
	out <- prometheus.MustNewConstMetric(c.registeredDesc, prometheus.GaugeValue, float64(atomic.LoadInt64(&c.registered)))
	out <- prometheus.MustNewConstMetric(c.virtualDesc, prometheus.GaugeValue, float64(atomic.LoadInt64(&c.virtualNS)))
	out <- prometheus.MustNewConstMetric(c.ticksDesc, prometheus.CounterValue, float64(atomic.LoadInt64(&c.ticks)))
}

// SetRegistered records the current roster occupancy.
func (c *ServerCollector) SetRegistered(n int) {
	atomic.StoreInt64(&c.registered, int64(n))
}

// SetVirtualTime records the current virtual clock value.
func (c *ServerCollector) SetVirtualTime(ns uint64) {
	atomic.StoreInt64(&c.virtualNS, int64(ns))
}

// IncTicks records that one more tick has completed its barrier.
func (c *ServerCollector) IncTicks() {
	atomic.AddInt64(&c.ticks, 1)
}

var _ prometheus.Collector = (*ServerCollector)(nil)
