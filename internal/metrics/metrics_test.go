// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewWithNilRegistererStillCounts(t *testing.T) {
	m := New("parsec", nil)

	m.EventsCreated.Inc()
	m.EventsCreated.Inc()
	m.BlocksEmitted.Inc()

	require.Equal(t, 2.0, CounterValue(m.EventsCreated))
	require.Equal(t, 1.0, CounterValue(m.BlocksEmitted))
	require.Equal(t, 0.0, CounterValue(m.AccusationsRaised))
}

func TestNewRegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("parsec", reg)
	m.EventsReceived.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["parsec_events_received_total"])
	require.True(t, names["parsec_blocks_emitted_total"])
}
