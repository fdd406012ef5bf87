// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package agreement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func auxVotes(n int, v bool, round int, step Step) []MetaVote {
	out := make([]MetaVote, n)
	for i := range out {
		val := v
		out[i] = MetaVote{Round: round, Step: step, AuxValue: &val}
		out[i].Estimates.Add(v)
		out[i].BinValues.Add(v)
	}
	return out
}

func TestNextDecidesOnForcedTrueSupermajority(t *testing.T) {
	parent := New(true) // round 0, step ForcedTrue, estimates={true}
	// Promote parent's own bin_values/aux so it participates like its peers.
	parent.BinValues.Add(true)
	v := true
	parent.AuxValue = &v

	others := auxVotes(7, true, 0, StepForcedTrue) // 7/7 > 2/3
	next := Next(parent, others, nil, 7)

	require.NotNil(t, next.Decision)
	require.True(t, *next.Decision)
}

func TestNextCarriesDecisionForever(t *testing.T) {
	d := true
	decided := MetaVote{Round: 3, Step: StepGenuineFlip, Decision: &d}
	next := Next(decided, nil, nil, 7)
	require.Equal(t, decided, next)
}

func TestNextMovesForcedFalseToGenuineFlipOnSplit(t *testing.T) {
	parent := MetaVote{Round: 0, Step: StepForcedFalse}
	parent.Estimates.Add(true)
	parent.BinValues.Add(true)
	av := true
	parent.AuxValue = &av

	// No supermajority either way at ForcedFalse -> advance to GenuineFlip,
	// keeping the current estimates (they are only replaced by a one-sided
	// aux tally, or cleared while waiting on a coin toss).
	others := append(auxVotes(3, true, 0, StepForcedFalse), auxVotes(3, false, 0, StepForcedFalse)...)
	next := Next(parent, others, nil, 7)

	require.Nil(t, next.Decision)
	require.Equal(t, StepGenuineFlip, next.Step)
	require.True(t, next.Estimates.Contains(true))
	require.Nil(t, next.AuxValue)
}

func TestNextStartsNextRoundWithCoinOnNoAgreement(t *testing.T) {
	parent := MetaVote{Round: 1, Step: StepGenuineFlip}
	parent.Estimates.Add(true)
	parent.BinValues.Add(true)
	parent.BinValues.Add(false)
	av := true
	parent.AuxValue = &av

	others := append(auxVotes(3, true, 1, StepGenuineFlip), auxVotes(3, false, 1, StepGenuineFlip)...)
	coin := true
	next := Next(parent, others, &coin, 7)

	require.Nil(t, next.Decision)
	require.Equal(t, 2, next.Round)
	require.Equal(t, StepForcedTrue, next.Step)
	require.True(t, next.Estimates.Contains(true))
	require.False(t, next.Estimates.Contains(false))
}

func TestNextWaitsWithEmptyEstimatesUntilCoinVisible(t *testing.T) {
	parent := MetaVote{Round: 1, Step: StepGenuineFlip}
	parent.Estimates.Add(false)
	parent.BinValues.Add(true)
	parent.BinValues.Add(false)
	av := false
	parent.AuxValue = &av

	// Split aux tally and no coin visible: the round increments with an
	// empty estimate set, meaning "waiting for the flip result".
	others := append(auxVotes(3, true, 1, StepGenuineFlip), auxVotes(3, false, 1, StepGenuineFlip)...)
	next := Next(parent, others, nil, 7)

	require.Equal(t, 2, next.Round)
	require.Equal(t, StepForcedTrue, next.Step)
	require.Equal(t, 0, next.Estimates.Len())

	// A later event that finally sees the coin adopts it as its estimate.
	coin := true
	after := Next(next, nil, &coin, 7)
	require.True(t, after.Estimates.Contains(true))
	require.Equal(t, 1, after.Estimates.Len())
}

func TestBoolSet(t *testing.T) {
	var b BoolSet
	require.Equal(t, 0, b.Len())
	b.Add(true)
	require.True(t, b.Contains(true))
	require.False(t, b.Contains(false))
	require.Equal(t, 1, b.Len())
	b.Add(false)
	require.Equal(t, 2, b.Len())
}
