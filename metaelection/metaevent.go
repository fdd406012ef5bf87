// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metaelection

import (
	"sort"

	"github.com/luxfi/parsec/agreement"
	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/internal/xset"
	"github.com/luxfi/parsec/observation"
)

// MetaEvent is the derived per-event state that drives agreement (spec
// §3): which payloads the event finds interesting, which voters it
// observes, and each voter's binary-agreement progress as of this event.
type MetaEvent struct {
	InterestingContent []observation.Hash
	Observees          xset.Set[graph.PeerKey]
	MetaVotes          map[graph.PeerKey][]agreement.MetaVote
}

// Consensused reports whether h is already consensused, as seen by the
// caller's observation store — the predicate create-meta-event's
// interesting-content computation needs to decide which payloads are
// still candidates (spec §4.4).
type Consensused func(observation.Hash) bool

// CreateMetaEvent computes the meta-event for event e (at topological
// index topoIdx) within election el (spec §4.4). prevEl is the election
// immediately preceding el in the registry, used for the
// interesting-content reuse shortcut; it may be nil.
func CreateMetaEvent(g *graph.Graph, el, prevEl *Election, e *graph.Event, topoIdx int, consensused Consensused) *MetaEvent {
	if topoIdx < el.StartIndex {
		return nil
	}
	// Meta-events are derived exactly once per (election, event); a replay
	// pass crossing an already-processed index reuses the existing one.
	if existing, ok := el.MetaEvents[topoIdx]; ok {
		return existing
	}

	me := &MetaEvent{}
	me.InterestingContent = interestingContent(g, el, prevEl, e, topoIdx, consensused)
	me.Observees = observees(g, el, e)
	me.MetaVotes = metaVotes(g, el, e, topoIdx, me.Observees)

	el.MetaEvents[topoIdx] = me
	if len(me.InterestingContent) > 0 {
		ck := graph.KeyOf(e.Creator)
		if _, ok := el.FirstInteresting[ck]; !ok {
			el.FirstInteresting[ck] = topoIdx
		}
	}
	return me
}

// interestingContent implements spec §4.4's "Interesting content" rule.
func interestingContent(g *graph.Graph, el, prevEl *Election, e *graph.Event, topoIdx int, consensused Consensused) []observation.Hash {
	if prevEl != nil && SameVoters(prevEl, el) {
		if pme, ok := prevEl.MetaEvents[topoIdx]; ok {
			return filterStillCandidate(pme.InterestingContent, consensused)
		}
	}
	return freshInterestingContent(g, el, e, topoIdx, consensused)
}

func filterStillCandidate(hashes []observation.Hash, consensused Consensused) []observation.Hash {
	out := make([]observation.Hash, 0, len(hashes))
	for _, h := range hashes {
		if consensused == nil || !consensused(h) {
			out = append(out, h)
		}
	}
	return out
}

func freshInterestingContent(g *graph.Graph, el *Election, e *graph.Event, topoIdx int, consensused Consensused) []observation.Hash {
	voters := el.VoterSet()
	voterCount := len(el.VoterKeys)
	already := creatorAlreadyInteresting(g, el, e)

	votesByHash := map[observation.Hash][]*graph.Event{}
	for idx := el.StartIndex; idx <= topoIdx; idx++ {
		ev, ok := g.Get(idx)
		if !ok || ev.Cause.Kind != graph.CauseObservation {
			continue
		}
		if !voters.Contains(graph.KeyOf(ev.Cause.Vote.Creator)) {
			continue
		}
		h := ev.Cause.Vote.Hash()
		votesByHash[h] = append(votesByHash[h], ev)
	}

	seesFork := hasSeenFork(e)
	var result []observation.Hash
	for h, events := range votesByHash {
		if already.Contains(h) {
			continue
		}
		if consensused != nil && consensused(h) {
			continue
		}
		seenCount := 0
		for _, ve := range events {
			if g.Sees(e, ve) {
				seenCount++
			}
		}
		kind := events[0].Cause.Vote.Observation.Kind
		if quorumMet(el.Mode, kind, seenCount, voterCount) {
			result = append(result, h)
			continue
		}
		if seesFork && ancestorHasInteresting(g, el, e, h) {
			result = append(result, h)
		}
	}

	return orderByCreatorVotes(result, voteOrderOf(g, e.Creator, el.StartIndex, topoIdx))
}

// creatorAlreadyInteresting collects every payload hash that has already
// appeared in an earlier meta-event (within this election) created by
// e.Creator — spec §4.4 condition (a): "no prior meta-event by this
// creator already contained p".
func creatorAlreadyInteresting(g *graph.Graph, el *Election, e *graph.Event) xset.Set[observation.Hash] {
	out := xset.New[observation.Hash](4)
	creator := graph.KeyOf(e.Creator)
	for idx, me := range el.MetaEvents {
		ev, ok := g.Get(idx)
		if !ok || graph.KeyOf(ev.Creator) != creator {
			continue
		}
		out.Add(me.InterestingContent...)
	}
	return out
}

func hasSeenFork(e *graph.Event) bool {
	for _, info := range e.AncestorInfo {
		if info.HasProvenFork() {
			return true
		}
	}
	return false
}

// ancestorHasInteresting reports whether e has an ancestor created by a
// different peer whose interesting_content (in this election) already
// contains h — spec §4.4 condition (b)'s fork-seen fallback.
func ancestorHasInteresting(g *graph.Graph, el *Election, e *graph.Event, h observation.Hash) bool {
	for _, anc := range g.Ancestors(e) {
		if anc == e {
			continue
		}
		idx, ok := g.IndexOf(anc.Hash)
		if !ok {
			continue
		}
		me, ok := el.MetaEvents[idx]
		if !ok {
			continue
		}
		for _, ih := range me.InterestingContent {
			if ih == h {
				return true
			}
		}
	}
	return false
}

// voteOrderOf returns the distinct payload hashes creator voted for, in
// the order the votes were cast, restricted to events at or after
// startIndex and at or before topoIdx.
func voteOrderOf(g *graph.Graph, creator id.PublicID, startIndex, topoIdx int) []observation.Hash {
	var order []observation.Hash
	seen := xset.New[observation.Hash](4)
	for idx := startIndex; idx <= topoIdx; idx++ {
		ev, ok := g.Get(idx)
		if !ok || ev.Cause.Kind != graph.CauseObservation {
			continue
		}
		if string(ev.Creator.Bytes()) != string(creator.Bytes()) {
			continue
		}
		h := ev.Cause.Vote.Hash()
		if seen.Contains(h) {
			continue
		}
		seen.Add(h)
		order = append(order, h)
	}
	return order
}

// orderByCreatorVotes orders candidates by the creator's own vote order,
// appending any residual (payloads the creator never voted for) in
// ascending hash-byte order — a deterministic, state-only tiebreak (spec
// §9 Open Question 1, DESIGN.md decision 1).
func orderByCreatorVotes(candidates []observation.Hash, voteOrder []observation.Hash) []observation.Hash {
	inCandidates := xset.Of(candidates...)
	var ordered, residual []observation.Hash
	placed := xset.New[observation.Hash](len(candidates))
	for _, h := range voteOrder {
		if inCandidates.Contains(h) && !placed.Contains(h) {
			ordered = append(ordered, h)
			placed.Add(h)
		}
	}
	for _, h := range candidates {
		if !placed.Contains(h) {
			residual = append(residual, h)
		}
	}
	sort.Slice(residual, func(i, j int) bool { return residual[i].Less(residual[j]) })
	return append(ordered, residual...)
}

// observees implements spec §4.4's "Observees" rule: for each voter with
// an earliest interesting event in this election, add it if e
// strongly-sees that event.
func observees(g *graph.Graph, el *Election, e *graph.Event) xset.Set[graph.PeerKey] {
	out := xset.New[graph.PeerKey](len(el.VoterKeys))
	voterCount := len(el.VoterKeys)
	for _, vk := range el.VoterKeys {
		idx, ok := el.FirstInteresting[vk]
		if !ok {
			continue
		}
		earliest, ok := g.Get(idx)
		if !ok {
			continue
		}
		if g.StronglySees(e, earliest, voterCount) {
			out.Add(vk)
		}
	}
	return out
}
