// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metaelection

import (
	"encoding/binary"
	"sort"

	"github.com/luxfi/parsec/agreement"
	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/id"
)

// roundHash returns the deterministic per-voter, per-round hash the
// leader schedule is ordered against (spec §3 "round_hashes"). It is a
// pure function of already-agreed data (election handle, voter, round),
// so every peer computes the same value without needing to store it —
// the map spec describes is a memo, not independent state.
func roundHash(el *Election, voter graph.PeerKey, round int) id.Hash {
	buf := make([]byte, 8+len(voter)+8)
	binary.BigEndian.PutUint64(buf[0:8], uint64(el.Handle))
	copy(buf[8:8+len(voter)], voter)
	binary.BigEndian.PutUint64(buf[8+len(voter):], uint64(round))
	return id.HashBytes(buf)
}

// leaderOrder ranks el's voters by XOR distance of their id hash to
// roundHash(el, voter, round), ascending (spec §4.4 common coin).
func leaderOrder(el *Election, voter graph.PeerKey, round int) []graph.PeerKey {
	target := roundHash(el, voter, round)
	keys := append([]graph.PeerKey(nil), el.VoterKeys...)
	dist := func(k graph.PeerKey) id.Hash {
		h := id.HashBytes([]byte(k))
		var out id.Hash
		for i := range out {
			out[i] = h[i] ^ target[i]
		}
		return out
	}
	sort.Slice(keys, func(i, j int) bool {
		return dist(keys[i]).Less(dist(keys[j]))
	})
	return keys
}

// leaderAux looks up leader's aux value at (round, GenuineFlip) for
// voter, as seen through e's ancestry, returning ok=false if e does not
// yet see it.
func leaderAux(g *graph.Graph, el *Election, e *graph.Event, leader, voter graph.PeerKey, round int) (bool, bool) {
	anc, ok := latestAncestorByCreator(g, e, leader)
	if !ok {
		return false, false
	}
	idx, ok := g.IndexOf(anc.Hash)
	if !ok {
		return false, false
	}
	me, ok := el.MetaEvents[idx]
	if !ok {
		return false, false
	}
	for _, mv := range me.MetaVotes[voter] {
		if mv.Round == round && mv.Step == agreement.StepGenuineFlip && mv.AuxValue != nil {
			return *mv.AuxValue, true
		}
	}
	return false, false
}

// stopWaiting reports whether e's creator has already been waiting on
// the coin for at least the election's responsiveness threshold: skip
// back through the creator's chain until that many Response sync-events
// have passed, and check whether the creator's votes for voter already
// had an aux value at this round back then (spec §4.4 "use a secondary
// leader only after a responsiveness-threshold number of sync-events
// have elapsed on the creator's chain since the step began").
func stopWaiting(g *graph.Graph, el *Election, e *graph.Event, voter graph.PeerKey, round int) bool {
	cur := e
	count := 0
	for count < el.Responsiveness {
		if cur.Cause.Kind == graph.CauseResponse {
			count++
			if count == el.Responsiveness {
				break
			}
		}
		sp, ok := g.SelfParent(cur)
		if !ok {
			return false
		}
		cur = sp
	}
	idx, ok := g.IndexOf(cur.Hash)
	if !ok {
		return false
	}
	me, ok := el.MetaEvents[idx]
	if !ok {
		return false
	}
	for _, mv := range me.MetaVotes[voter] {
		if mv.Round == round && mv.AuxValue != nil {
			return true
		}
	}
	return false
}

// tossCoin computes the common-coin bit (if visible) for advancing
// voter's meta-vote past parent (spec §4.4). A coin is only relevant in
// two states: parent is at GenuineFlip (the flip that may start the next
// round), or parent's estimates are empty (a previous flip already
// incremented the round and we are still waiting on its result — the
// flip round is the one before parent's). The coin bit itself is the aux
// value the "most-leader" peer fixed at (flip round, GenuineFlip); later
// leaders in the XOR-distance order are consulted only once the creator
// has waited past the responsiveness threshold. Returns nil while no
// leader's aux is visible through e's ancestry.
func tossCoin(g *graph.Graph, el *Election, e *graph.Event, voter graph.PeerKey, parent agreement.MetaVote) *bool {
	var round int
	switch {
	case parent.Estimates.Len() == 0:
		if parent.Round == 0 {
			return nil
		}
		round = parent.Round - 1
	case parent.Step == agreement.StepGenuineFlip:
		round = parent.Round
	default:
		return nil
	}

	leaders := leaderOrder(el, voter, round)
	if len(leaders) == 0 {
		return nil
	}
	if aux, ok := leaderAux(g, el, e, leaders[0], voter, round); ok {
		return &aux
	}
	if stopWaiting(g, el, e, voter, round) {
		for _, leader := range leaders[1:] {
			if aux, ok := leaderAux(g, el, e, leader, voter, round); ok {
				return &aux
			}
		}
	}
	return nil
}
