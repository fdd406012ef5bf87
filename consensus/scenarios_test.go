// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/parsec/consensus"
	"github.com/luxfi/parsec/id/idtest"
	"github.com/luxfi/parsec/metaelection"
	"github.com/luxfi/parsec/observation"
	"github.com/luxfi/parsec/parsectest"
	"github.com/luxfi/parsec/wire"
)

// pollFor drains blocks until one with the wanted payload appears,
// returning it along with the full payload sequence polled so far. Every
// section starts by consensusing its own Genesis observation, so the
// block a test cares about is rarely the first in the queue.
func pollFor(t *testing.T, m *parsectest.Member, want observation.Observation) (consensus.Block, []observation.Observation) {
	t.Helper()
	var seen []observation.Observation
	for {
		b, ok := m.P.Poll()
		if !ok {
			return consensus.Block{}, seen
		}
		seen = append(seen, b.Payload)
		if b.Payload.Equal(want) {
			return b, seen
		}
	}
}

// TestBasicAgreementRoundTrip covers the scenario of four peers
// (Alice/Bob/Carol/Dave) all voting the same OpaquePayload and every
// member eventually deciding the identical Block, with the Genesis
// observation consensused ahead of it.
func TestBasicAgreementRoundTrip(t *testing.T) {
	sec, err := parsectest.NewSection(4, metaelection.ModeSupermajority)
	require.NoError(t, err)

	payload := observation.Opaque([]byte("x"))
	for _, m := range sec.Members {
		require.NoError(t, m.P.Vote(payload))
	}

	require.NoError(t, sec.Converge(40))

	var first []observation.Observation
	for i, m := range sec.Members {
		b, seen := pollFor(t, m, payload)
		require.NotEmptyf(t, seen, "member %d never decided a block", i)
		require.Truef(t, b.Payload.Equal(payload), "member %d never decided %s", i, payload)
		require.Len(t, b.Votes, 4)
		require.Equal(t, observation.KindGenesis, seen[0].Kind)

		// Agreement: every member emits the identical block sequence.
		if first == nil {
			first = seen
			continue
		}
		require.Len(t, seen, len(first))
		for j := range seen {
			require.Truef(t, seen[j].Equal(first[j]), "member %d diverges at block %d", i, j)
		}
	}
}

// TestSingleModeRequiresOnlyOneVote covers the scenario where the section
// runs in ModeSingle and a single voter's OpaquePayload is sufficient to
// become interesting content.
func TestSingleModeRequiresOnlyOneVote(t *testing.T) {
	sec, err := parsectest.NewSection(4, metaelection.ModeSingle)
	require.NoError(t, err)

	payload := observation.Opaque([]byte("y"))
	require.NoError(t, sec.Members[2].P.Vote(payload))

	require.NoError(t, sec.Converge(40))

	for i, m := range sec.Members {
		b, _ := pollFor(t, m, payload)
		require.Truef(t, b.Payload.Equal(payload), "member %d never decided %s", i, payload)
		require.Len(t, b.Votes, 1)
	}
}

// TestPartitionThenRejoin covers a member (Dave) missing every gossip
// round while the rest of the section converges, then catching up in a
// single subsequent exchange without needing events delivered in any
// order other than the topological order eventsToGossip already
// produces.
func TestPartitionThenRejoin(t *testing.T) {
	sec, err := parsectest.NewSection(4, metaelection.ModeSupermajority)
	require.NoError(t, err)

	payload := observation.Opaque([]byte("z"))
	for i := 0; i < 3; i++ {
		require.NoError(t, sec.Members[i].P.Vote(payload))
	}

	// Dave (index 3) takes no part in these rounds: only peers 0-2 gossip.
	for round := 0; round < 40; round++ {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				if i == j {
					continue
				}
				require.NoError(t, sec.GossipOnce(i, j))
			}
		}
		if !sec.Members[0].P.HasUnconsensusedObservations() {
			break
		}
	}
	require.False(t, sec.Members[0].P.HasUnconsensusedObservations())

	// Dave rejoins: a handful of exchanges with peer 0 should catch him
	// all the way up to the same decision, in one pass, regardless of how
	// much history he missed.
	for round := 0; round < 5; round++ {
		require.NoError(t, sec.GossipOnce(3, 0))
		require.NoError(t, sec.GossipOnce(0, 3))
	}

	b, seen := pollFor(t, sec.Members[3], payload)
	require.NotEmpty(t, seen, "dave never caught up to any decision")
	require.True(t, b.Payload.Equal(payload), "dave never caught up to the payload decision")
	require.Equal(t, observation.KindGenesis, seen[0].Kind, "dave's block sequence must start at genesis, in order")
}

// TestWireRoundTripPreservesEventIdentity covers packing and unpacking an
// event across the wire boundary, confirming hash and signature survive
// intact (spec §5/§6) — the property CreateGossip/HandleRequest rely on
// for every event they ever exchange.
func TestWireRoundTripPreservesEventIdentity(t *testing.T) {
	sec, err := parsectest.NewSection(3, metaelection.ModeSupermajority)
	require.NoError(t, err)

	require.NoError(t, sec.Members[0].P.Vote(observation.Opaque([]byte("round-trip"))))

	req, err := sec.Members[0].P.CreateGossip(sec.Members[1].Secret.PublicID())
	require.NoError(t, err)
	require.NotEmpty(t, req.Events)

	for _, pe := range req.Events {
		ev, err := wire.Unpack(idtest.Codec{}, pe)
		require.NoError(t, err)
		require.True(t, ev.VerifySignature())

		repacked := wire.Pack(ev)
		require.Equal(t, pe.Content, repacked.Content)
		require.Equal(t, pe.Signature, repacked.Signature)
	}
}
