// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package malice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/graph/eventhash"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/id/idtest"
	"github.com/luxfi/parsec/observation"
)

// fakeMembership is a minimal Membership for tests that only exercises
// the one lookup each test needs.
type fakeMembership struct {
	last     map[graph.PeerKey]eventhash.Hash
	snapshot map[string]bool
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{last: map[graph.PeerKey]eventhash.Hash{}, snapshot: map[string]bool{}}
}

func (f *fakeMembership) LastKnownEvent(creator graph.PeerKey) (eventhash.Hash, bool) {
	h, ok := f.last[creator]
	return h, ok
}

func (f *fakeMembership) HadMember(creator graph.PeerKey, atTopoIndex int, member graph.PeerKey) (bool, bool) {
	v, ok := f.snapshot[string(creator)]
	return v, ok
}

func mustInsert(t *testing.T, g *graph.Graph, e *graph.Event) *graph.Event {
	t.Helper()
	_, err := g.Insert(e)
	require.NoError(t, err)
	return e
}

func TestCheckForkRuleFlagsDivergentSelfParent(t *testing.T) {
	g := graph.New()
	alice := idtest.New(0)

	a0, err := graph.NewInitial(alice)
	require.NoError(t, err)
	mustInsert(t, g, a0)

	vote, err := observation.NewVote(alice, observation.Opaque([]byte("x")))
	require.NoError(t, err)
	aRight, err := graph.NewObservation(alice, a0, vote)
	require.NoError(t, err)
	mustInsert(t, g, aRight)

	d := NewDetector([]id.PublicID{alice.PublicID()})
	m := newFakeMembership()
	// We last heard a *different* event from alice than aRight's self-parent
	// claims, so the fork rule should fire.
	m.last[graph.KeyOf(alice.PublicID())] = eventhash.FromBytes([]byte("some-other-event"))

	acc, ok := checkForkRule(d, g, nil, m, aRight)
	require.True(t, ok)
	require.Equal(t, observation.MaliceFork, acc.Malice.Kind)
	require.True(t, acc.Offender.Equal(alice.PublicID()))
}

func TestCheckForkRuleSilentWhenSelfParentMatchesLastKnown(t *testing.T) {
	g := graph.New()
	alice := idtest.New(0)

	a0, err := graph.NewInitial(alice)
	require.NoError(t, err)
	mustInsert(t, g, a0)

	vote, err := observation.NewVote(alice, observation.Opaque([]byte("x")))
	require.NoError(t, err)
	a1, err := graph.NewObservation(alice, a0, vote)
	require.NoError(t, err)
	mustInsert(t, g, a1)

	d := NewDetector([]id.PublicID{alice.PublicID()})
	m := newFakeMembership()
	m.last[graph.KeyOf(alice.PublicID())] = a0.Hash

	_, ok := checkForkRule(d, g, nil, m, a1)
	require.False(t, ok)
}

func TestCheckOtherParentBySameCreator(t *testing.T) {
	g := graph.New()
	alice := idtest.New(0)

	a0, err := graph.NewInitial(alice)
	require.NoError(t, err)
	mustInsert(t, g, a0)

	vote, err := observation.NewVote(alice, observation.Opaque([]byte("x")))
	require.NoError(t, err)
	a1, err := graph.NewObservation(alice, a0, vote)
	require.NoError(t, err)
	mustInsert(t, g, a1)

	// An (illegal) "response" event claiming both parents are alice's own.
	bad, err := graph.NewResponse(alice, a1, a0)
	require.NoError(t, err)
	mustInsert(t, g, bad)

	d := NewDetector([]id.PublicID{alice.PublicID()})
	acc, ok := checkOtherParentBySameCreator(d, g, nil, nil, bad)
	require.True(t, ok)
	require.Equal(t, observation.MaliceOtherParentBySameCreator, acc.Malice.Kind)
}

func TestCheckSelfParentByDifferentCreator(t *testing.T) {
	g := graph.New()
	alice := idtest.New(0)
	bob := idtest.New(1)

	a0, err := graph.NewInitial(alice)
	require.NoError(t, err)
	mustInsert(t, g, a0)
	b0, err := graph.NewInitial(bob)
	require.NoError(t, err)
	mustInsert(t, g, b0)

	vote, err := observation.NewVote(bob, observation.Opaque([]byte("x")))
	require.NoError(t, err)
	// Bob signs an event but claims Alice's event as its self-parent.
	forged, err := graph.NewObservation(bob, a0, vote)
	require.NoError(t, err)
	mustInsert(t, g, forged)

	d := NewDetector([]id.PublicID{alice.PublicID(), bob.PublicID()})
	acc, ok := checkSelfParentByDifferentCreator(d, g, nil, nil, forged)
	require.True(t, ok)
	require.Equal(t, observation.MaliceSelfParentByDifferentCreator, acc.Malice.Kind)
	require.True(t, acc.Offender.Equal(bob.PublicID()))
}

func TestCheckIncorrectGenesis(t *testing.T) {
	g := graph.New()
	alice := idtest.New(0)
	bob := idtest.New(1)
	mallory := idtest.New(2)

	a0, err := graph.NewInitial(alice)
	require.NoError(t, err)
	mustInsert(t, g, a0)

	vote, err := observation.NewVote(alice, observation.Genesis([]id.PublicID{alice.PublicID(), mallory.PublicID()}))
	require.NoError(t, err)
	bad, err := graph.NewObservation(alice, a0, vote)
	require.NoError(t, err)
	mustInsert(t, g, bad)

	d := NewDetector([]id.PublicID{alice.PublicID(), bob.PublicID()})
	acc, ok := checkIncorrectGenesis(d, g, nil, nil, bad)
	require.True(t, ok)
	require.Equal(t, observation.MaliceIncorrectGenesis, acc.Malice.Kind)
}

func TestCheckDuplicateVoteRuleFlagsSecondOccurrence(t *testing.T) {
	g := graph.New()
	alice := idtest.New(0)

	a0, err := graph.NewInitial(alice)
	require.NoError(t, err)
	mustInsert(t, g, a0)

	payload := observation.Opaque([]byte("x"))
	vote, err := observation.NewVote(alice, payload)
	require.NoError(t, err)
	a1, err := graph.NewObservation(alice, a0, vote)
	require.NoError(t, err)
	mustInsert(t, g, a1)

	vote2, err := observation.NewVote(alice, payload)
	require.NoError(t, err)
	a2, err := graph.NewObservation(alice, a1, vote2)
	require.NoError(t, err)
	mustInsert(t, g, a2)

	d := NewDetector([]id.PublicID{alice.PublicID()})
	acc, ok := d.checkDuplicateVoteRule(g, nil, nil, a2)
	require.True(t, ok)
	require.Equal(t, observation.MaliceDuplicateVote, acc.Malice.Kind)

	// A third repeat of the same vote is not re-accused (already recorded).
	vote3, err := observation.NewVote(alice, payload)
	require.NoError(t, err)
	a3, err := graph.NewObservation(alice, a2, vote3)
	require.NoError(t, err)
	mustInsert(t, g, a3)
	_, ok = d.checkDuplicateVoteRule(g, nil, nil, a3)
	require.False(t, ok)
}

func TestAccompliceFlagsUnreportedProvableEvent(t *testing.T) {
	g := graph.New()
	alice := idtest.New(0)
	bob := idtest.New(1)

	a0, err := graph.NewInitial(alice)
	require.NoError(t, err)
	mustInsert(t, g, a0)

	vote, err := observation.NewVote(alice, observation.Opaque([]byte("x")))
	require.NoError(t, err)
	a1, err := graph.NewObservation(alice, a0, vote)
	require.NoError(t, err)
	mustInsert(t, g, a1)

	bad, err := graph.NewResponse(alice, a1, a0)
	require.NoError(t, err)
	mustInsert(t, g, bad)

	d := NewDetector([]id.PublicID{alice.PublicID()})
	accs := d.Accomplice(g, bob.PublicID(), []*graph.Event{a0, a1, bad})
	require.Len(t, accs, 1)
	require.Equal(t, observation.MaliceAccomplice, accs[0].Malice.Kind)
	require.True(t, accs[0].Offender.Equal(bob.PublicID()))
}

func TestSpamFlagsRepeatedEvent(t *testing.T) {
	g := graph.New()
	alice := idtest.New(0)
	bob := idtest.New(1)

	a0, err := graph.NewInitial(alice)
	require.NoError(t, err)
	mustInsert(t, g, a0)

	d := NewDetector([]id.PublicID{alice.PublicID()})
	accs := d.Spam(bob.PublicID(), []*graph.Event{a0}, func(h eventhash.Hash) bool { return h == a0.Hash })
	require.Len(t, accs, 1)
	require.Equal(t, observation.MaliceSpam, accs[0].Malice.Kind)
}
