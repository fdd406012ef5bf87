// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package agreement implements the per-round binary-agreement step machine
// that drives one meta-election's decision (spec §4.4): estimate /
// binary-value / aux / genuine-flip steps, cross-event vote gathering, and
// common-coin tossing. Generalized from the round/step/confidence
// bookkeeping in _examples/luxfi-consensus/confidence/threshold.go
// (Round, count, promotion at a configurable quorum fraction) to the
// five-step ForcedTrue/ForcedFalse/GenuineFlip/decide machine spec §4.4
// describes.
package agreement

// Step names one of the three steps a round of binary agreement cycles
// through before either deciding or starting the next round (spec §4.4).
type Step uint8

const (
	StepForcedTrue Step = iota
	StepForcedFalse
	StepGenuineFlip
)

func (s Step) String() string {
	switch s {
	case StepForcedTrue:
		return "ForcedTrue"
	case StepForcedFalse:
		return "ForcedFalse"
	case StepGenuineFlip:
		return "GenuineFlip"
	default:
		return "Invalid"
	}
}

// BoolSet is a set over {true, false}. A pair of flags is cheaper and
// clearer here than a generic set, since bool has exactly two values.
type BoolSet struct {
	hasTrue, hasFalse bool
}

// Add inserts v into the set.
func (b *BoolSet) Add(v bool) {
	if v {
		b.hasTrue = true
	} else {
		b.hasFalse = true
	}
}

// Contains reports whether v is in the set.
func (b BoolSet) Contains(v bool) bool {
	if v {
		return b.hasTrue
	}
	return b.hasFalse
}

// Len returns the number of distinct values in the set (0, 1, or 2).
func (b BoolSet) Len() int {
	n := 0
	if b.hasTrue {
		n++
	}
	if b.hasFalse {
		n++
	}
	return n
}

// MetaVote is one voter's binary-agreement state as carried by a single
// event (spec §4.4): round, step, the estimate/bin-value sets accumulated
// this step, the fixed aux value for the step, and the decision once
// reached.
type MetaVote struct {
	Round     int
	Step      Step
	Estimates BoolSet
	BinValues BoolSet
	AuxValue  *bool
	Decision  *bool
}

// New starts round 0, step ForcedTrue for a freshly-observing event (spec
// §4.4 "Else if E is an observer ... start round 0 for each voter P").
func New(initialEstimate bool) MetaVote {
	mv := MetaVote{}
	mv.Estimates.Add(initialEstimate)
	return mv
}

func supermajority(count, total int) bool { return total > 0 && 3*count > 2*total }
func moreThanThird(count, total int) bool { return total > 0 && 3*count > total }

func sameStep(votes []MetaVote, round int, step Step) []MetaVote {
	out := make([]MetaVote, 0, len(votes))
	for _, v := range votes {
		if v.Round == round && v.Step == step {
			out = append(out, v)
		}
	}
	return out
}

func countEstimate(votes []MetaVote, v bool) int {
	n := 0
	for _, mv := range votes {
		if mv.Estimates.Contains(v) {
			n++
		}
	}
	return n
}

// countAux returns how many votes carry a fixed aux value, split by
// value, and the total number that carry one at all.
func countAux(votes []MetaVote) (trueCount, falseCount, known int) {
	for _, v := range votes {
		if v.AuxValue == nil {
			continue
		}
		known++
		if *v.AuxValue {
			trueCount++
		} else {
			falseCount++
		}
	}
	return
}

// Next computes voter P's next MetaVote given its own previous state
// (parent), the currently-known MetaVotes other peers hold for P at the
// parent's (round, step) (spec §4.4's "cross-event vote gathering" —
// gathered by the meta-event builder by walking ancestry, see
// metaelection.advance), and the common-coin bit for this state (nil if
// the coin is not yet visible through the event's ancestry). voterCount
// is the election's voter count, the denominator for every threshold
// below.
//
// Estimates carry over across the ForcedTrue/ForcedFalse/GenuineFlip
// transitions within a round; they are replaced when the step's aux
// tally was one-sided, and cleared only when a round increments without
// a visible coin — an empty estimate set means "waiting for the coin",
// filled in by a later event once the flip result becomes visible.
func Next(parent MetaVote, others []MetaVote, coin *bool, voterCount int) MetaVote {
	if parent.Decision != nil {
		return parent
	}

	next := parent
	// The creator's own previous state counts towards every threshold,
	// alongside the votes gathered from other peers.
	peers := append(sameStep(others, parent.Round, parent.Step), parent)

	// Step 2: merge in estimates held by > 1/3 of peers at this (round,
	// step) — or, if we are waiting on a coin, adopt the toss once seen.
	if next.Estimates.Len() == 0 {
		if coin != nil {
			next.Estimates.Add(*coin)
		}
	} else {
		for _, v := range [2]bool{true, false} {
			if next.Estimates.Contains(v) {
				continue
			}
			if moreThanThird(countEstimate(peers, v), voterCount) {
				next.Estimates.Add(v)
			}
		}
	}

	// Step 3: promote to bin_values once a value appears in > 2/3 of votes.
	if next.Estimates.Len() > 0 {
		for _, v := range [2]bool{true, false} {
			if next.BinValues.Contains(v) {
				continue
			}
			if supermajority(countEstimate(peers, v), voterCount) {
				next.BinValues.Add(v)
			}
		}
	}

	// Step 4: aux_value fixes the first time bin_values is non-empty.
	if next.AuxValue == nil && next.BinValues.Len() > 0 {
		v := next.BinValues.Contains(true)
		next.AuxValue = &v
	}

	// Step 5: step/round advance. Each branch requires a quorum of peers
	// to have reported an aux value at this (round, step) before acting;
	// otherwise this voter simply waits at its current state.
	trueCount, falseCount, known := countAux(peers)
	if !supermajority(known, voterCount) {
		return next
	}

	switch next.Step {
	case StepForcedTrue:
		if supermajority(trueCount, voterCount) {
			d := true
			next.Decision = &d
			return next
		}
		next.BinValues = BoolSet{}
		next.AuxValue = nil
		if supermajority(falseCount, voterCount) {
			next.Estimates = BoolSet{}
			next.Estimates.Add(false)
		}
		next.Step = StepForcedFalse
		return next
	case StepForcedFalse:
		if supermajority(falseCount, voterCount) {
			d := false
			next.Decision = &d
			return next
		}
		next.BinValues = BoolSet{}
		next.AuxValue = nil
		if supermajority(trueCount, voterCount) {
			next.Estimates = BoolSet{}
			next.Estimates.Add(true)
		}
		next.Step = StepGenuineFlip
		return next
	case StepGenuineFlip:
		next.BinValues = BoolSet{}
		next.AuxValue = nil
		next.Estimates = BoolSet{}
		switch {
		case supermajority(trueCount, voterCount):
			next.Estimates.Add(true)
		case supermajority(falseCount, voterCount):
			next.Estimates.Add(false)
		case coin != nil:
			next.Estimates.Add(*coin)
		}
		next.Round++
		next.Step = StepForcedTrue
		return next
	default:
		return next
	}
}
