// Package otelstats exports [rescache.Stats] through
// OpenTelemetry observable instruments.
package otelstats

import (
	"context"
	"errors"

	"github.com/djdv/go-rescache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the recommended meter name.
const InstrumentationName = "github.com/djdv/go-rescache"

type observation struct {
	instrument metric.Int64Observable
	value      func(rescache.Stats) int64
}

// Register creates the cache instruments on meter and a callback
// that reads source each collection cycle.
// Unregister the returned registration when the cache is discarded.
func Register(meter metric.Meter, domain string, source rescache.StatsSource) (metric.Registration, error) {
	var (
		errs         []error
		observations []observation
		gauge        = func(name, unit, description string, value func(rescache.Stats) int64) {
			instrument, err := meter.Int64ObservableGauge(name,
				metric.WithDescription(description), metric.WithUnit(unit))
			errs = append(errs, err)
			observations = append(observations, observation{instrument, value})
		}
		counter = func(name, unit, description string, value func(rescache.Stats) int64) {
			instrument, err := meter.Int64ObservableCounter(name,
				metric.WithDescription(description), metric.WithUnit(unit))
			errs = append(errs, err)
			observations = append(observations, observation{instrument, value})
		}
	)
	gauge("rescache.items", "{item}", "Number of cached items",
		func(s rescache.Stats) int64 { return s.Items })
	gauge("rescache.handles", "{handle}", "Number of outstanding handles",
		func(s rescache.Stats) int64 { return s.Handles })
	counter("rescache.hits", "{acquire}", "Acquires satisfied by a cached item",
		func(s rescache.Stats) int64 { return s.Hits })
	counter("rescache.misses", "{acquire}", "Acquires that found no cached item",
		func(s rescache.Stats) int64 { return s.Misses })
	counter("rescache.created", "{item}", "Items created by factories",
		func(s rescache.Stats) int64 { return s.Created })
	counter("rescache.create_failures", "{item}", "Factory failures",
		func(s rescache.Stats) int64 { return s.CreateFailures })
	counter("rescache.dropped", "{item}", "Items that granted eviction",
		func(s rescache.Stats) int64 { return s.Dropped })
	counter("rescache.vetoed", "{item}", "Items that vetoed eviction",
		func(s rescache.Stats) int64 { return s.Vetoed })
	counter("rescache.admission_denied", "{item}", "Creations refused by admission control",
		func(s rescache.Stats) int64 { return s.AdmissionDenied })
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	var (
		attrs       = metric.WithAttributes(attribute.String("domain", domain))
		instruments = make([]metric.Observable, len(observations))
	)
	for i, o := range observations {
		instruments[i] = o.instrument
	}
	return meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		stats := source.Stats()
		for _, o := range observations {
			observer.ObserveInt64(o.instrument, o.value(stats), attrs)
		}
		return nil
	}, instruments...)
}
