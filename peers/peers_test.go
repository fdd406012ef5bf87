// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package peers_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/id/idtest"
	"github.com/luxfi/parsec/peers"
)

func genesisIDs(n int) []id.PublicID {
	out := make([]id.PublicID, n)
	for i := 0; i < n; i++ {
		out[i] = idtest.New(i).PublicID()
	}
	return out
}

func TestGenesisAllVoters(t *testing.T) {
	require := require.New(t)

	group := genesisIDs(4)
	l := peers.NewGenesis(group)

	require.Equal(4, l.VoterCount())
	require.Len(l.Voters(), 4)
	for _, p := range group {
		require.True(l.Has(p, peers.Full))
	}
}

func TestAddIsImmutable(t *testing.T) {
	require := require.New(t)

	group := genesisIDs(2)
	base := peers.NewGenesis(group)
	newPeer := idtest.New(9).PublicID()

	added := base.Add(newPeer)

	require.Equal(2, base.VoterCount(), "Add must not mutate the receiver")
	require.Equal(3, added.VoterCount())
	require.True(added.Has(newPeer, peers.CapVote))
}

func TestAddGrantsVoteSendNotRecv(t *testing.T) {
	require := require.New(t)

	group := genesisIDs(2)
	base := peers.NewGenesis(group)
	newPeer := idtest.New(9).PublicID()

	added := base.Add(newPeer)

	require.True(added.Has(newPeer, peers.CapVote|peers.CapSend))
	require.False(added.Has(newPeer, peers.CapRecv))
}

func TestGrantRecvIsImmutableAndIdempotent(t *testing.T) {
	require := require.New(t)

	group := genesisIDs(2)
	base := peers.NewGenesis(group)
	newPeer := idtest.New(9).PublicID()
	joined := base.Add(newPeer)

	granted := joined.GrantRecv(newPeer)
	require.False(joined.Has(newPeer, peers.CapRecv), "GrantRecv must not mutate the receiver")
	require.True(granted.Has(newPeer, peers.Full))

	again := granted.GrantRecv(newPeer)
	require.True(again.Has(newPeer, peers.Full))
}

func TestGrantRecvUnknownPeerIsNoop(t *testing.T) {
	require := require.New(t)

	base := peers.NewGenesis(genesisIDs(2))
	stranger := idtest.New(9).PublicID()

	out := base.GrantRecv(stranger)
	_, ok := out.Get(stranger)
	require.False(ok)
}

func TestRemoveClearsCapabilitiesNotHistory(t *testing.T) {
	require := require.New(t)

	group := genesisIDs(3)
	base := peers.NewGenesis(group)

	removed := base.Remove(group[0])

	require.Equal(2, removed.VoterCount())
	peer, ok := removed.Get(group[0])
	require.True(ok, "removed peer record must still be retrievable")
	require.Equal(peers.Capability(0), peer.Capabilities)
	require.False(removed.Has(group[0], peers.CapVote))
}

func TestSortedVoterKeysDeterministic(t *testing.T) {
	require := require.New(t)

	group := genesisIDs(5)
	l1 := peers.NewGenesis(group)

	reversed := make([]id.PublicID, len(group))
	for i, p := range group {
		reversed[len(group)-1-i] = p
	}
	l2 := peers.NewGenesis(reversed)

	require.Equal(l1.SortedVoterKeys(), l2.SortedVoterKeys())
}
