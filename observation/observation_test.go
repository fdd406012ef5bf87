// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package observation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/id/idtest"
	"github.com/luxfi/parsec/observation"
)

func TestGenesisCanonicalOrdering(t *testing.T) {
	require := require.New(t)

	a := idtest.New(0).PublicID()
	b := idtest.New(1).PublicID()
	c := idtest.New(2).PublicID()

	o1 := observation.Genesis([]id.PublicID{c, a, b})
	o2 := observation.Genesis([]id.PublicID{b, c, a})

	require.True(o1.Equal(o2), "genesis group must canonicalize regardless of input order")
	require.Equal(observation.HashOf(o1), observation.HashOf(o2))
}

func TestHashOfIsDeterministic(t *testing.T) {
	require := require.New(t)

	peer := idtest.New(3).PublicID()
	o1 := observation.Add(peer, []byte("aux"))
	o2 := observation.Add(peer, []byte("aux"))

	require.Equal(observation.HashOf(o1), observation.HashOf(o2))
}

func TestHashOfDistinguishesKinds(t *testing.T) {
	require := require.New(t)

	peer := idtest.New(4).PublicID()
	add := observation.Add(peer, nil)
	remove := observation.Remove(peer, nil)

	require.NotEqual(observation.HashOf(add), observation.HashOf(remove))
}

func TestVoteSignAndVerify(t *testing.T) {
	require := require.New(t)

	secret := idtest.New(5)
	o := observation.Opaque([]byte("hello"))

	vote, err := observation.NewVote(secret, o)
	require.NoError(err)
	require.True(vote.Verify())

	tampered := vote
	tampered.Observation = observation.Opaque([]byte("goodbye"))
	require.False(tampered.Verify())
}

func TestBagCounts(t *testing.T) {
	require := require.New(t)

	peer := idtest.New(6).PublicID()
	o := observation.Add(peer, nil)
	h := observation.HashOf(o)

	bag := observation.NewBag()
	bag.Add(h)
	bag.Add(h)

	require.Equal(2, bag.Count(h))
	require.Equal(2, bag.Len())
}

func TestMaliceProvability(t *testing.T) {
	require := require.New(t)

	require.True(observation.MaliceFork.Provable())
	require.False(observation.MaliceAccomplice.Provable())
	require.False(observation.MaliceSpam.Provable())
}
