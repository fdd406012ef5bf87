// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/id/idtest"
	"github.com/luxfi/parsec/observation"
)

func TestNewInitialAndVerify(t *testing.T) {
	require := require.New(t)

	alice := idtest.New(0)
	e, err := graph.NewInitial(alice)
	require.NoError(err)
	require.True(e.VerifySignature())
	require.Equal(graph.CauseInitial, e.Cause.Kind)
}

func TestInsertRejectsDuplicateAndUnknownParent(t *testing.T) {
	require := require.New(t)

	alice := idtest.New(0)
	g := graph.New()

	aInit, err := graph.NewInitial(alice)
	require.NoError(err)

	idx, err := g.Insert(aInit)
	require.NoError(err)
	require.Equal(0, idx)

	_, err = g.Insert(aInit)
	require.Error(err, "duplicate insert must be rejected")

	bob := idtest.New(1)
	bInit, err := graph.NewInitial(bob)
	require.NoError(err)

	// A Request event whose other-parent has never been inserted must fail.
	orphanReq, err := graph.NewRequest(alice, aInit, bInit)
	require.NoError(err)
	_, err = g.Insert(orphanReq)
	require.Error(err, "unknown other-parent must be rejected")
}

func TestGossipChainSeesAndStronglySees(t *testing.T) {
	require := require.New(t)

	alice := idtest.New(0)
	bob := idtest.New(1)
	carol := idtest.New(2)
	dave := idtest.New(3)
	peers := []idtest.SecretID{alice, bob, carol, dave}

	g := graph.New()
	initials := make([]*graphEventRef, 0, len(peers))
	for _, p := range peers {
		e, err := graph.NewInitial(p)
		require.NoError(err)
		_, err = g.Insert(e)
		require.NoError(err)
		initials = append(initials, &graphEventRef{e})
	}

	// Bob syncs with Alice: Bob creates a Request event with self-parent
	// his own initial event and other-parent Alice's initial event.
	bobSync, err := graph.NewRequest(bob, initials[1].e, initials[0].e)
	require.NoError(err)
	_, err = g.Insert(bobSync)
	require.NoError(err)

	require.True(g.Sees(bobSync, initials[0].e))
	require.True(g.Sees(bobSync, initials[1].e))
	require.False(g.Sees(initials[0].e, bobSync), "earlier event cannot see a later one")

	// With only 2 of 4 peers represented, strongly-sees (>2/3 of 4 == >2.66)
	// should not yet hold.
	require.False(g.StronglySees(bobSync, initials[0].e, len(peers)))

	// Carol and Dave sync transitively through Bob so that 4/4 peers are
	// represented in bobSync's descendants' ancestry; strongly-sees should
	// then hold from a higher-up event.
	carolSync, err := graph.NewRequest(carol, initials[2].e, bobSync)
	require.NoError(err)
	_, err = g.Insert(carolSync)
	require.NoError(err)

	daveSync, err := graph.NewRequest(dave, initials[3].e, carolSync)
	require.NoError(err)
	_, err = g.Insert(daveSync)
	require.NoError(err)

	require.True(g.StronglySees(daveSync, initials[0].e, len(peers)))
}

func TestForkDetection(t *testing.T) {
	require := require.New(t)

	alice := idtest.New(0)
	g := graph.New()

	aInit, err := graph.NewInitial(alice)
	require.NoError(err)
	_, err = g.Insert(aInit)
	require.NoError(err)

	vote := mustVote(t, alice, observation.Opaque([]byte("one")))
	branch1, err := graph.NewObservation(alice, aInit, vote)
	require.NoError(err)
	_, err = g.Insert(branch1)
	require.NoError(err)

	vote2 := mustVote(t, alice, observation.Opaque([]byte("two")))
	branch2, err := graph.NewObservation(alice, aInit, vote2)
	require.NoError(err)
	_, err = g.Insert(branch2)
	require.NoError(err)

	branches := g.ForkBranches(graph.KeyOf(alice.PublicID()), branch1.IndexByCreator)
	require.Equal(2, branches.Len(), "alice forked at index_by_creator 1")
}

func mustVote(t *testing.T, secret idtest.SecretID, o observation.Observation) observation.Vote {
	t.Helper()
	v, err := observation.NewVote(secret, o)
	if err != nil {
		t.Fatalf("NewVote: %v", err)
	}
	return v
}

// graphEventRef is a tiny wrapper so the ancestor fixtures can be kept in a
// slice without repeating *graph.Event everywhere above.
type graphEventRef struct {
	e *graph.Event
}
