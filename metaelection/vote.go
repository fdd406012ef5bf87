// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metaelection

import (
	"github.com/luxfi/parsec/agreement"
	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/internal/xset"
)

// metaVotes implements spec §4.4's "Meta-votes" rule: inherit and advance
// if the self-parent already carries meta-votes, else start round 0 if e
// is an observer, else carry none.
func metaVotes(g *graph.Graph, el *Election, e *graph.Event, topoIdx int, observees xset.Set[graph.PeerKey]) map[graph.PeerKey][]agreement.MetaVote {
	selfParent, hasParent := g.SelfParent(e)
	var parentME *MetaEvent
	if hasParent {
		if spIdx, ok := g.IndexOf(selfParent.Hash); ok {
			parentME = el.MetaEvents[spIdx]
		}
	}

	if parentME != nil && len(parentME.MetaVotes) > 0 {
		return advance(g, el, e, parentME, len(el.VoterKeys))
	}

	if isObserver(el, observees.Len()) {
		out := make(map[graph.PeerKey][]agreement.MetaVote, len(el.VoterKeys))
		for _, vk := range el.VoterKeys {
			initial := observees.Contains(vk)
			out[vk] = []agreement.MetaVote{agreement.New(initial)}
		}
		return out
	}
	return nil
}

// isObserver reports whether an event with observeeCount observees
// qualifies as a round-0 observer: supermajority observees (spec §4.4,
// GLOSSARY "Observer"). Whether the self-parent was already an observer
// is checked by the caller via parentME == nil (no prior meta-votes at
// all implies the self-parent's own observee count, if any, did not
// clear the threshold; see metaVotes above).
func isObserver(el *Election, observeeCount int) bool {
	return supermajority(observeeCount, len(el.VoterKeys))
}

// advance computes the next round/step for every voter P the self-parent
// already had meta-votes for, gathering "others" via cross-event
// ancestry (spec §4.4). Each voter's list carries one MetaVote per
// (round, step) reached so far: a transition appends a new entry, while
// progress within the same step replaces the last one.
func advance(g *graph.Graph, el *Election, e *graph.Event, parentME *MetaEvent, voterCount int) map[graph.PeerKey][]agreement.MetaVote {
	out := make(map[graph.PeerKey][]agreement.MetaVote, len(parentME.MetaVotes))
	for _, vk := range el.VoterKeys {
		parentList, ok := parentME.MetaVotes[vk]
		if !ok || len(parentList) == 0 {
			continue
		}
		parent := parentList[len(parentList)-1]
		others := gatherOthers(g, el, e, vk, parent.Round, parent.Step)
		coin := tossCoin(g, el, e, vk, parent)
		next := agreement.Next(parent, others, coin, voterCount)

		list := make([]agreement.MetaVote, len(parentList), len(parentList)+1)
		copy(list, parentList)
		if next.Round == parent.Round && next.Step == parent.Step {
			list[len(list)-1] = next
		} else {
			list = append(list, next)
		}
		out[vk] = list
	}
	return out
}

// gatherOthers collects, for every voter Q other than e's own creator,
// Q's MetaVote for vk at (round, step), as seen through e's ancestry
// (spec §4.4 "cross-event vote gathering"). At most one vote per peer is
// returned, so each peer counts once towards the thresholds in
// agreement.Next.
func gatherOthers(g *graph.Graph, el *Election, e *graph.Event, vk graph.PeerKey, round int, step agreement.Step) []agreement.MetaVote {
	creatorKey := graph.KeyOf(e.Creator)
	var out []agreement.MetaVote
	for _, qk := range el.VoterKeys {
		if qk == creatorKey {
			continue
		}
		anc, ok := latestAncestorByCreator(g, e, qk)
		if !ok {
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
		list := me.MetaVotes[vk]
		for i := len(list) - 1; i >= 0; i-- {
			if list[i].Round == round && list[i].Step == step {
				out = append(out, list[i])
				break
			}
		}
	}
	return out
}

// latestAncestorByCreator returns the most recent ancestor of e created
// by peer (by index_by_creator), resolved via e's cached AncestorInfo
// (spec §3) and the graph's fork index. Ties (forks) resolve to the
// lowest topological index, a fixed, deterministic choice.
func latestAncestorByCreator(g *graph.Graph, e *graph.Event, peer graph.PeerKey) (*graph.Event, bool) {
	info, ok := e.AncestorInfo[peer]
	if !ok {
		return nil, false
	}
	branches := g.ForkBranches(peer, info.Last)
	if branches.Len() == 0 {
		return nil, false
	}
	indices := branches.List()
	best := indices[0]
	for _, idx := range indices[1:] {
		if idx < best {
			best = idx
		}
	}
	return g.Get(best)
}
