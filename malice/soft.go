// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package malice

import (
	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/graph/eventhash"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/internal/xset"
	"github.com/luxfi/parsec/observation"
)

// Accomplice implements spec §4.5's unprovable "Accomplice" heuristic: src
// gossiped us chunk (one request or response worth of events) containing
// an event that independently trips one of the structural rules checkable
// from the chunk alone, without src's own Accusation of it riding along.
// An attentive, honest gossip partner would have caught and reported that
// event itself before relaying it, so this is local suspicion, not
// broadcastable evidence (observation.MaliceAccomplice.Provable() is
// false).
func (d *Detector) Accomplice(g *graph.Graph, src id.PublicID, chunk []*graph.Event) []Accusation {
	accusedInChunk := xset.New[eventhash.Hash](4)
	for _, e := range chunk {
		if e.Cause.Kind == graph.CauseObservation && e.Cause.Vote.Observation.Kind == observation.KindAccusation {
			accusedInChunk.Add(e.Cause.Vote.Observation.Malice.Event)
		}
	}

	var out []Accusation
	for _, e := range chunk {
		if accusedInChunk.Contains(e.Hash) {
			continue
		}
		if !tripsChunkLocalRule(d, g, e) {
			continue
		}
		out = append(out, Accusation{Offender: src, Malice: newMalice(observation.MaliceAccomplice, e.Hash)})
	}
	return out
}

// tripsChunkLocalRule reruns the structural rules that need nothing but
// the event and its already-inserted ancestry to evaluate (every rule
// except Fork, InvalidGossipCreator, DuplicateVote and InvalidAccusation,
// which need gossip history or detector state a chunk does not carry on
// its own).
func tripsChunkLocalRule(d *Detector, g *graph.Graph, e *graph.Event) bool {
	checks := []rule{
		checkOtherParentBySameCreator,
		checkSelfParentByDifferentCreator,
		checkIncorrectGenesis,
		checkUnexpectedGenesis,
		checkMissingGenesis,
		checkStaleOtherParent,
	}
	for _, c := range checks {
		if _, ok := c(d, g, nil, nil, e); ok {
			return true
		}
	}
	return false
}

// Spam implements spec §4.5's unprovable "Spam" heuristic: src's chunk
// re-sends an event alreadyShared reports we had already given src in an
// earlier exchange, meaning src is re-gossiping stale ground rather than
// making progress.
func (d *Detector) Spam(src id.PublicID, chunk []*graph.Event, alreadyShared func(eventhash.Hash) bool) []Accusation {
	if alreadyShared == nil {
		return nil
	}
	var out []Accusation
	for _, e := range chunk {
		if alreadyShared(e.Hash) {
			out = append(out, Accusation{Offender: src, Malice: newMalice(observation.MaliceSpam, e.Hash)})
		}
	}
	return out
}
