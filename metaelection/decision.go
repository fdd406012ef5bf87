// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metaelection

import "github.com/luxfi/parsec/observation"

// Decided reports whether every voter has a last MetaVote carrying a
// decision, as of meta-event me (spec §4.4 "Decision").
func Decided(el *Election, me *MetaEvent) bool {
	if me == nil || len(me.MetaVotes) == 0 {
		return false
	}
	for _, vk := range el.VoterKeys {
		list, ok := me.MetaVotes[vk]
		if !ok || len(list) == 0 {
			return false
		}
		if list[len(list)-1].Decision == nil {
			return false
		}
	}
	return true
}

// WinningPayload computes the decided payload hash for a decided
// meta-event (spec §4.4): each voter whose last MetaVote decided true
// carries the leading interesting-content entry of its own earliest
// interesting event in this election; the payload carried most often
// wins, ties broken by first occurrence in voter order. Once computed
// for an election it is cached on el.DecidedPayload and reused verbatim.
func WinningPayload(el *Election, me *MetaEvent) (observation.Hash, bool) {
	if !el.DecidedPayload.IsZero() {
		return el.DecidedPayload, true
	}

	var carried []observation.Hash
	for _, vk := range el.VoterKeys {
		list := me.MetaVotes[vk]
		if len(list) == 0 {
			continue
		}
		if last := list[len(list)-1]; last.Decision == nil || !*last.Decision {
			continue
		}
		idx, ok := el.FirstInteresting[vk]
		if !ok {
			continue
		}
		fme, ok := el.MetaEvents[idx]
		if !ok || len(fme.InterestingContent) == 0 {
			continue
		}
		carried = append(carried, fme.InterestingContent[0])
	}
	if len(carried) == 0 {
		return observation.Hash{}, false
	}

	tally := observation.NewBag()
	for _, h := range carried {
		tally.Add(h)
	}
	best, bestCount := carried[0], 0
	for _, h := range carried {
		if c := tally.Count(h); c > bestCount {
			best, bestCount = h, c
		}
	}
	el.DecidedPayload = best
	return best, true
}
