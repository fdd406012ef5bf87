// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics is a thin prometheus.Registerer wrapper for the driver's
// counters and histograms, modeled on the teacher's api/metrics.NewMetrics
// (Registerer-or-nil-is-fine pattern), adapted here so a nil registerer
// simply skips registration instead of erroring, since metrics are
// optional per spec §1 non-goals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the driver-level counters and histograms (spec §2 "FULL"
// additions). All fields are safe to use even when New was called with a
// nil registerer: the prometheus collectors still exist, they're just
// not exposed to anything.
type Metrics struct {
	EventsCreated     prometheus.Counter
	EventsReceived    prometheus.Counter
	BlocksEmitted     prometheus.Counter
	AccusationsRaised prometheus.Counter
	RoundDuration     prometheus.Histogram
}

// New builds a Metrics instance under namespace, registering every
// collector with registerer if non-nil.
func New(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_created_total",
			Help:      "Number of events this peer has created.",
		}),
		EventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Number of foreign events accepted into the graph.",
		}),
		BlocksEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_emitted_total",
			Help:      "Number of blocks consensus has decided.",
		}),
		AccusationsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accusations_raised_total",
			Help:      "Number of malice accusations this peer has raised.",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "meta_election_round_duration_seconds",
			Help:      "Wall-clock duration of a meta-election round, in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if registerer == nil {
		return m
	}
	for _, c := range []prometheus.Collector{
		m.EventsCreated, m.EventsReceived, m.BlocksEmitted,
		m.AccusationsRaised, m.RoundDuration,
	} {
		_ = registerer.Register(c)
	}
	return m
}

// CounterValue reads c's current value directly off the collector,
// without a registry scrape.
func CounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
