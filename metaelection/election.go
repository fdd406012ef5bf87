// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metaelection

import (
	"math/bits"

	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/internal/xset"
	"github.com/luxfi/parsec/observation"
)

// Handle is a monotonically increasing election identifier (spec §3).
type Handle uint64

// Election is one instance of binary agreement, aimed at deciding the
// next consensused payload (spec §3 "Meta-election"). VoterKeys is a
// fixed snapshot of the voter set as of election start; it never changes
// for the life of the election (a membership change starts a new one).
type Election struct {
	Handle     Handle
	VoterKeys  []graph.PeerKey
	StartIndex int
	Mode       ConsensusMode

	MetaEvents map[int]*MetaEvent

	// FirstInteresting[P] is the topological index of the earliest event
	// by voter P whose meta-event has non-empty interesting content —
	// the "earliest interesting event" spec §4.4's Observees rule needs.
	FirstInteresting map[graph.PeerKey]int

	DecidedBy      xset.Set[graph.PeerKey]
	DecidedPayload observation.Hash

	// Responsiveness is ceil(log2(len(VoterKeys))), cached once at
	// election start (spec §4.4 common coin, DESIGN.md Open Question 3).
	Responsiveness int
}

// Registry holds every election ever started, keyed by Handle, in
// creation order (spec §3: "old ones are retained"). Modeled on the
// round-keyed maps in quorum/dynamic.go.
type Registry struct {
	elections []*Election
	mode      ConsensusMode
}

// NewRegistry returns an empty Registry using mode for every election it
// starts.
func NewRegistry(mode ConsensusMode) *Registry {
	return &Registry{mode: mode}
}

// Start appends and returns a new Election over voters, beginning its
// observation window at startIndex (spec §4.3: "a new election starts at
// the topological index of the oldest unconsensused payload").
func (r *Registry) Start(voters []graph.PeerKey, startIndex int) *Election {
	el := &Election{
		Handle:           Handle(len(r.elections)),
		VoterKeys:        append([]graph.PeerKey(nil), voters...),
		StartIndex:       startIndex,
		Mode:             r.mode,
		MetaEvents:       make(map[int]*MetaEvent),
		FirstInteresting: make(map[graph.PeerKey]int),
		DecidedBy:        xset.New[graph.PeerKey](len(voters)),
		Responsiveness:   responsivenessThreshold(len(voters)),
	}
	r.elections = append(r.elections, el)
	return el
}

// Current returns the most recently started election.
func (r *Registry) Current() *Election {
	if len(r.elections) == 0 {
		return nil
	}
	return r.elections[len(r.elections)-1]
}

// Previous returns the election started immediately before Current, or
// nil if Current is the first.
func (r *Registry) Previous() *Election {
	if len(r.elections) < 2 {
		return nil
	}
	return r.elections[len(r.elections)-2]
}

// All returns every election the registry has ever started, oldest
// first.
func (r *Registry) All() []*Election {
	return r.elections
}

// SameVoters reports whether two elections share an identical voter set
// (spec §4.4's interesting-content reuse condition).
func SameVoters(a, b *Election) bool {
	if a == nil || b == nil || len(a.VoterKeys) != len(b.VoterKeys) {
		return false
	}
	for i, k := range a.VoterKeys {
		if b.VoterKeys[i] != k {
			return false
		}
	}
	return true
}

// VoterSet returns el's voters as a set, for membership tests.
func (el *Election) VoterSet() xset.Set[graph.PeerKey] {
	return xset.Of(el.VoterKeys...)
}

// responsivenessThreshold is ceil(log2(voterCount)) (spec §4.4, DESIGN.md
// Open Question 3): the number of Response sync-events that must elapse
// on a creator's chain before the common-coin walk may try a secondary
// leader.
func responsivenessThreshold(voterCount int) int {
	if voterCount <= 1 {
		return 1
	}
	return bits.Len(uint(voterCount - 1))
}
