// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/graph/eventhash"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/id/idtest"
	"github.com/luxfi/parsec/observation"
	"github.com/luxfi/parsec/wire"
)

// TestForkAccusation covers the scenario of a creator (Bob) equivocating:
// two events sharing the same self-parent, delivered to an honest peer
// (Alice) as two separate branches. The second branch arriving trips
// checkForkRule even though neither event is individually malformed.
func TestForkAccusation(t *testing.T) {
	aliceSecret, bobSecret, carolSecret := idtest.New(0), idtest.New(1), idtest.New(2)
	group := []id.PublicID{aliceSecret.PublicID(), bobSecret.PublicID(), carolSecret.PublicID()}

	alice, err := FromGenesis(aliceSecret, idtest.Codec{}, group, Config{})
	require.NoError(t, err)

	bobInitial, err := graph.NewInitial(bobSecret)
	require.NoError(t, err)
	bobGenesisVote, err := observation.NewVote(bobSecret, observation.Genesis(group))
	require.NoError(t, err)
	bobGenesisEv, err := graph.NewObservation(bobSecret, bobInitial, bobGenesisVote)
	require.NoError(t, err)

	voteA, err := observation.NewVote(bobSecret, observation.Opaque([]byte("a")))
	require.NoError(t, err)
	bobBranchA, err := graph.NewObservation(bobSecret, bobGenesisEv, voteA)
	require.NoError(t, err)

	voteB, err := observation.NewVote(bobSecret, observation.Opaque([]byte("b")))
	require.NoError(t, err)
	bobBranchB, err := graph.NewObservation(bobSecret, bobGenesisEv, voteB)
	require.NoError(t, err)

	require.NoError(t, alice.addEvent(bobInitial, true))
	require.NoError(t, alice.addEvent(bobGenesisEv, true))
	require.NoError(t, alice.addEvent(bobBranchA, true))
	require.Empty(t, alice.pending, "honest chain so far must not raise any accusation")

	// The second branch shares bobGenesisEv as its self-parent instead of
	// extending bobBranchA: a genuine fork, still accepted into the graph
	// (spec §4.5: Fork is accuse-only, not reject-and-accuse).
	require.NoError(t, alice.addEvent(bobBranchB, true))
	require.Len(t, alice.pending, 1)

	acc := alice.pending[0]
	require.True(t, acc.Offender.Equal(bobSecret.PublicID()))
	require.Equal(t, observation.MaliceFork, acc.Malice.Kind)
	require.Equal(t, bobGenesisEv.Hash, acc.Malice.Event)

	require.NoError(t, alice.voteOnPendingAccusations())
	require.True(t, alice.HaveVotedFor(observation.AccusationOf(bobSecret.PublicID(), acc.Malice)))
}

// TestInvalidGossipCreatorAccusation covers the scenario of a Request/
// Response-cause event whose other-parent was authored by a peer absent
// from the creator's own (replayed) membership list: Dave's first
// sync-event introduces him to Alice/Bob/Carol via Alice's membership
// list, but his second sync-event references Eve, a peer his own
// membership list never heard of.
func TestInvalidGossipCreatorAccusation(t *testing.T) {
	aliceSecret, bobSecret, carolSecret := idtest.New(0), idtest.New(1), idtest.New(2)
	group := []id.PublicID{aliceSecret.PublicID(), bobSecret.PublicID(), carolSecret.PublicID()}

	alice, err := FromGenesis(aliceSecret, idtest.Codec{}, group, Config{})
	require.NoError(t, err)
	aliceFirst := alice.g.Events()[0]

	daveSecret := idtest.New(3)
	daveInitial, err := graph.NewInitial(daveSecret)
	require.NoError(t, err)
	require.NoError(t, alice.addEvent(daveInitial, true))

	daveSync1, err := graph.NewRequest(daveSecret, daveInitial, aliceFirst)
	require.NoError(t, err)
	require.NoError(t, alice.addEvent(daveSync1, true))
	require.Empty(t, alice.pending, "syncing with a known genesis peer must not raise an accusation")

	eveSecret := idtest.New(4)
	eveInitial, err := graph.NewInitial(eveSecret)
	require.NoError(t, err)
	require.NoError(t, alice.addEvent(eveInitial, true))

	daveSync2, err := graph.NewRequest(daveSecret, daveSync1, eveInitial)
	require.NoError(t, err)
	require.NoError(t, alice.addEvent(daveSync2, true))

	require.Len(t, alice.pending, 1)
	acc := alice.pending[0]
	require.True(t, acc.Offender.Equal(daveSecret.PublicID()))
	require.Equal(t, observation.MaliceInvalidGossipCreator, acc.Malice.Kind)
	require.Equal(t, daveSync2.Hash, acc.Malice.Event)
}

// TestSpamAccusationOnRepeatedEvent covers ingestGossip's Spam wiring: Bob
// re-sends an event Alice had already forwarded to him in an earlier
// gossip message, so he provably knows she holds it and is re-gossiping
// stale ground instead of making progress. Merely repeating an event
// Alice happens to hold is not spam — an honest sender can't know what
// she has — so the predicate keys off what she actually sent him.
func TestSpamAccusationOnRepeatedEvent(t *testing.T) {
	aliceSecret, bobSecret, carolSecret := idtest.New(0), idtest.New(1), idtest.New(2)
	group := []id.PublicID{aliceSecret.PublicID(), bobSecret.PublicID(), carolSecret.PublicID()}

	alice, err := FromGenesis(aliceSecret, idtest.Codec{}, group, Config{})
	require.NoError(t, err)

	carolInitial, err := graph.NewInitial(carolSecret)
	require.NoError(t, err)
	require.NoError(t, alice.addEvent(carolInitial, true))
	require.Empty(t, alice.pending, "an honest first contact must not raise any accusation")

	// Alice gossips to Bob; the request carries Carol's event among hers.
	req, err := alice.CreateGossip(bobSecret.PublicID())
	require.NoError(t, err)
	sentCarols := false
	for _, pe := range req.Events {
		ev, err := wire.Unpack(idtest.Codec{}, pe)
		require.NoError(t, err)
		if ev.Hash == carolInitial.Hash {
			sentCarols = true
		}
	}
	require.True(t, sentCarols, "the request must have forwarded carol's event to bob")

	// Bob "replies" with the very event Alice just sent him.
	lastForeign, err := alice.ingestGossip(bobSecret.PublicID(), []wire.PackedEvent{wire.Pack(carolInitial)})
	require.NoError(t, err)
	require.Nil(t, lastForeign, "a chunk of only repeated events advances nothing new")

	require.Len(t, alice.pending, 1)
	acc := alice.pending[0]
	require.True(t, acc.Offender.Equal(bobSecret.PublicID()))
	require.Equal(t, observation.MaliceSpam, acc.Malice.Kind)
	require.Equal(t, carolInitial.Hash, acc.Malice.Event)
}

// TestDecidedAccusationRemovesOffender covers the §4.6 transition on a
// consensused Accusation: a provable finding strips the offender of all
// capabilities (it stops being a gossip recipient), while an unprovable
// one (local suspicion only) leaves membership untouched.
func TestDecidedAccusationRemovesOffender(t *testing.T) {
	aliceSecret, bobSecret, carolSecret := idtest.New(0), idtest.New(1), idtest.New(2)
	group := []id.PublicID{aliceSecret.PublicID(), bobSecret.PublicID(), carolSecret.PublicID()}

	alice, err := FromGenesis(aliceSecret, idtest.Codec{}, group, Config{})
	require.NoError(t, err)

	soft := observation.Malice{Kind: observation.MaliceSpam, Event: eventhash.FromBytes([]byte("resent"))}
	alice.applyMembershipDecision(observation.AccusationOf(carolSecret.PublicID(), soft), 0)
	require.True(t, containsPeer(alice.GossipRecipients(), carolSecret.PublicID()),
		"an unprovable accusation must not change membership")

	forked := observation.Malice{Kind: observation.MaliceFork, Event: eventhash.FromBytes([]byte("fork-point"))}
	alice.applyMembershipDecision(observation.AccusationOf(bobSecret.PublicID(), forked), 0)
	require.False(t, containsPeer(alice.GossipRecipients(), bobSecret.PublicID()),
		"a decided provable accusation must remove the offender")
	require.True(t, containsPeer(alice.GossipRecipients(), carolSecret.PublicID()))
}

func containsPeer(peers []id.PublicID, want id.PublicID) bool {
	for _, p := range peers {
		if p.Equal(want) {
			return true
		}
	}
	return false
}
