// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus implements the Parsec driver (spec §2, §4.3, §4.7):
// the public API surface wiring graph, peers, metaelection, agreement and
// malice together into one running instance of the protocol. Config /
// FromGenesis / FromExisting follow the Config/Parameters split in
// _examples/luxfi-consensus/snow/consensus/snowman/snowman.go; logging and
// metrics wiring follow protocol/prism/set.go's NewSet(factory, log, reg)
// shape.
package consensus

import (
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/parsec/internal/metrics"
	"github.com/luxfi/parsec/metaelection"
)

// Config carries everything a Parsec instance needs besides its own
// identity and starting membership (spec §2's FULL addition: "a
// consensus.Config struct passed to FromGenesis/FromExisting").
type Config struct {
	// Mode selects whether OpaquePayload needs only one vote or a
	// supermajority to become interesting content (spec §6).
	Mode metaelection.ConsensusMode

	// Log receives structured progress/diagnostic output. Defaults to a
	// no-op logger if nil, matching the teacher's log/noop.go convention.
	Log log.Logger

	// Registerer optionally exposes this instance's counters/histograms.
	// A nil Registerer is fine — metrics collectors still exist, they are
	// simply not exported (spec §1 non-goals exclude a metrics pipeline).
	Registerer prometheus.Registerer

	// MetricsNamespace prefixes every collector registered under
	// Registerer.
	MetricsNamespace string
}

func (c Config) logger() log.Logger {
	if c.Log != nil {
		return c.Log
	}
	return log.NewNoOpLogger()
}

func (c Config) buildMetrics() *metrics.Metrics {
	return metrics.New(c.MetricsNamespace, c.Registerer)
}
