// Package promstats exports [rescache.Stats] as Prometheus metrics.
package promstats

import (
	"github.com/djdv/go-rescache"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	// Collector reads a cache's stats on every scrape.
	// Constructed by [New].
	Collector struct {
		source  rescache.StatsSource
		metrics []statMetric
	}
	statMetric struct {
		desc      *prometheus.Desc
		value     func(rescache.Stats) int64
		valueType prometheus.ValueType
	}
)

// New creates a [Collector] for source.
// domain names the kind of resource the cache holds
// (e.g. "textures") and is attached as a constant label.
func New(namespace, domain string, source rescache.StatsSource) *Collector {
	var (
		labels = prometheus.Labels{"domain": domain}
		metric = func(
			name, help string, valueType prometheus.ValueType,
			value func(rescache.Stats) int64,
		) statMetric {
			return statMetric{
				desc: prometheus.NewDesc(
					prometheus.BuildFQName(namespace, "resource_cache", name),
					help, nil, labels,
				),
				value:     value,
				valueType: valueType,
			}
		}
		gauge   = prometheus.GaugeValue
		counter = prometheus.CounterValue
	)
	return &Collector{
		source: source,
		metrics: []statMetric{
			metric("items", "Number of cached items.", gauge,
				func(s rescache.Stats) int64 { return s.Items }),
			metric("handles", "Number of outstanding handles.", gauge,
				func(s rescache.Stats) int64 { return s.Handles }),
			metric("hits_total", "Acquires satisfied by a cached item.", counter,
				func(s rescache.Stats) int64 { return s.Hits }),
			metric("misses_total", "Acquires that found no cached item.", counter,
				func(s rescache.Stats) int64 { return s.Misses }),
			metric("created_total", "Items created by factories.", counter,
				func(s rescache.Stats) int64 { return s.Created }),
			metric("create_failures_total", "Factory failures.", counter,
				func(s rescache.Stats) int64 { return s.CreateFailures }),
			metric("dropped_total", "Items that granted eviction.", counter,
				func(s rescache.Stats) int64 { return s.Dropped }),
			metric("vetoed_total", "Items that vetoed eviction.", counter,
				func(s rescache.Stats) int64 { return s.Vetoed }),
			metric("admission_denied_total", "Creations refused by admission control.", counter,
				func(s rescache.Stats) int64 { return s.AdmissionDenied }),
		},
	}
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements [prometheus.Collector].
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(
			m.desc, m.valueType, float64(m.value(stats)),
		)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
