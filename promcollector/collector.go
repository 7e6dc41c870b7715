// Package promcollector exports synapse loading metrics to Prometheus.
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "synapgo"

// Collector implements synapgo.MetricsCollector.
type Collector struct {
	stageLatency *prometheus.HistogramVec
	stageSize    *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	allocBytes   prometheus.Counter
	allocs       *prometheus.CounterVec
}

// New creates a Collector and registers its metrics with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of load stage runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "status"}),
		stageSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_synapses",
			Help:      "Synapses per load stage run",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}, []string{"stage"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "position_cache_lookups_total",
			Help:      "Position cache lookups by result",
		}, []string{"result"}),
		allocBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "allocated_bytes_total",
			Help:      "Bytes allocated for columns",
		}),
		allocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "allocations_total",
			Help:      "Column allocations by alignment",
		}, []string{"aligned"}),
	}

	for _, m := range []prometheus.Collector{c.stageLatency, c.stageSize, c.cacheLookups, c.allocBytes, c.allocs} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer) *Collector {
	c, err := New(reg)
	if err != nil {
		panic(err)
	}
	return c
}

// RecordStage implements synapgo.MetricsCollector.
func (c *Collector) RecordStage(stage string, size int, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.stageLatency.WithLabelValues(stage, status).Observe(d.Seconds())
	if err == nil {
		c.stageSize.WithLabelValues(stage).Observe(float64(size))
	}
}

// RecordCache implements synapgo.MetricsCollector.
func (c *Collector) RecordCache(hits, misses int) {
	c.cacheLookups.WithLabelValues("hit").Add(float64(hits))
	c.cacheLookups.WithLabelValues("miss").Add(float64(misses))
}

// RecordAllocation implements synapgo.MetricsCollector.
func (c *Collector) RecordAllocation(bytes int64, aligned bool) {
	c.allocBytes.Add(float64(bytes))
	label := "true"
	if !aligned {
		label = "false"
	}
	c.allocs.WithLabelValues(label).Inc()
}
