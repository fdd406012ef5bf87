// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package malice implements the structural checks of spec §4.5: rules
// over a gossip graph and peer list that produce accusations, which the
// consensus driver turns into Observation{Accusation} events and feeds
// back through the same consensus pipeline. Rule-table style modeled on
// _examples/luxfi-consensus/quorum/static.go (a slice of named check
// functions run in order); rule semantics from spec §4.5 and
// _examples/original_source/src/observation.rs's Malice enum.
package malice

import (
	"fmt"

	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/graph/eventhash"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/internal/xset"
	"github.com/luxfi/parsec/observation"
	"github.com/luxfi/parsec/peers"
)

// Membership supplies the gossip-history bookkeeping that a Capability
// snapshot (*peers.List) does not carry on its own: the last event hash
// received from each creator (fork detection) and the membership view a
// creator had as of one of its own events (InvalidGossipCreator). The
// consensus driver is the only component that accumulates this history,
// so it implements Membership; peers.List stays the immutable,
// capability-only snapshot it already is.
type Membership interface {
	// LastKnownEvent returns the hash of the newest event we had
	// previously accepted from creator, if any.
	LastKnownEvent(creator graph.PeerKey) (eventhash.Hash, bool)
	// HadMember reports whether creator's own membership snapshot, as of
	// the event at topological index atTopoIndex, included member. ok is
	// false while creator's membership list is uninitialized.
	HadMember(creator graph.PeerKey, atTopoIndex int, member graph.PeerKey) (has, ok bool)
}

// Accusation is one rule's finding: offender committed the recorded
// Malice.
type Accusation struct {
	Offender id.PublicID
	Malice   observation.Malice
}

func (a Accusation) String() string {
	return fmt.Sprintf("%s by %s", a.Malice, a.Offender)
}

// Detector runs the rules of spec §4.5 and tracks the small amount of
// local state two of them need: which (creator, payload) duplicate votes
// have already been accused once, and which accusations this peer has
// itself made or is currently holding pending (for InvalidAccusation).
type Detector struct {
	genesis xset.Set[graph.PeerKey]

	duplicateAccused xset.Set[string]
	ownAccusations   xset.Set[string]
}

// NewDetector returns a Detector expecting genesisGroup as the section's
// founding membership (spec §4.5 IncorrectGenesis/UnexpectedGenesis).
func NewDetector(genesisGroup []id.PublicID) *Detector {
	keys := make([]graph.PeerKey, len(genesisGroup))
	for i, p := range genesisGroup {
		keys[i] = graph.KeyOf(p)
	}
	return &Detector{
		genesis: xset.Of(keys...),
	}
}

// NoteOwnAccusation records that we ourselves raised or are holding acc,
// so a later InvalidAccusation check on a matching foreign Accusation
// vote does not misfire.
func (d *Detector) NoteOwnAccusation(acc Accusation) {
	d.ownAccusations.Add(accusationKey(acc.Offender, acc.Malice))
}

func accusationKey(offender id.PublicID, m observation.Malice) string {
	return fmt.Sprintf("%s|%d|%s", graph.KeyOf(offender), m.Kind, m.Event)
}

// rule is a single structural check over a candidate event.
type rule func(d *Detector, g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool)

// rejectRules are spec §4.5's "Pre-process (reject-and-accuse)" checks:
// finding one means e is both accused AND not inserted into the graph.
var rejectRules = []rule{
	checkIncorrectGenesis,
	checkOtherParentBySameCreator,
	checkSelfParentByDifferentCreator,
}

// accuseOnlyRules are spec §4.5's "Pre-process (accuse-only)" checks:
// e is still accepted into the graph.
var accuseOnlyRules = []rule{
	checkUnexpectedGenesis,
	checkMissingGenesis,
	(*Detector).checkDuplicateVoteRule,
	checkStaleOtherParent,
	checkForkRule,
	(*Detector).checkInvalidAccusationRule,
}

// PreProcessReject runs the reject-and-accuse rules, returning the first
// violation found.
func (d *Detector) PreProcessReject(g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	for _, r := range rejectRules {
		if acc, ok := r(d, g, pl, m, e); ok {
			return acc, true
		}
	}
	return nil, false
}

// PreProcessAccuseOnly runs every accuse-only rule, returning every
// violation found (an event can trip more than one).
func (d *Detector) PreProcessAccuseOnly(g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) []Accusation {
	var out []Accusation
	for _, r := range accuseOnlyRules {
		if acc, ok := r(d, g, pl, m, e); ok {
			out = append(out, *acc)
		}
	}
	return out
}

// PostProcess runs spec §4.5's post-process rule (InvalidGossipCreator),
// which needs the event already inserted so its other-parent's creator's
// membership snapshot can be resolved.
func (d *Detector) PostProcess(g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	return checkInvalidGossipCreator(d, g, pl, m, e)
}

func newMalice(kind observation.MaliceKind, ev eventhash.Hash) observation.Malice {
	return observation.Malice{Kind: kind, Event: ev}
}

// --- Pre-process (reject-and-accuse) ---

func checkOtherParentBySameCreator(d *Detector, g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	if !e.Cause.HasOtherParent() {
		return nil, false
	}
	op, ok := g.OtherParent(e)
	if !ok {
		return nil, false
	}
	if op.Creator.Equal(e.Creator) {
		return &Accusation{Offender: e.Creator, Malice: newMalice(observation.MaliceOtherParentBySameCreator, e.Hash)}, true
	}
	return nil, false
}

func checkSelfParentByDifferentCreator(d *Detector, g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	sp, ok := g.SelfParent(e)
	if !ok {
		return nil, false
	}
	if !sp.Creator.Equal(e.Creator) {
		return &Accusation{Offender: e.Creator, Malice: newMalice(observation.MaliceSelfParentByDifferentCreator, e.Hash)}, true
	}
	return nil, false
}

func checkIncorrectGenesis(d *Detector, g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	if e.Cause.Kind != graph.CauseObservation {
		return nil, false
	}
	v := e.Cause.Vote.Observation
	if v.Kind != observation.KindGenesis {
		return nil, false
	}
	got := xset.New[graph.PeerKey](len(v.GenesisGroup))
	for _, p := range v.GenesisGroup {
		got.Add(graph.KeyOf(p))
	}
	if !sameSet(got, d.genesis) {
		return &Accusation{Offender: e.Creator, Malice: newMalice(observation.MaliceIncorrectGenesis, e.Hash)}, true
	}
	return nil, false
}

func sameSet(a, b xset.Set[graph.PeerKey]) bool {
	if a.Len() != b.Len() {
		return false
	}
	for k := range a {
		if !b.Contains(k) {
			return false
		}
	}
	return true
}

// --- Pre-process (accuse-only) ---

func checkUnexpectedGenesis(d *Detector, g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	if e.Cause.Kind != graph.CauseObservation {
		return nil, false
	}
	v := e.Cause.Vote.Observation
	if v.Kind != observation.KindGenesis {
		return nil, false
	}
	creatorOK := d.genesis.Contains(graph.KeyOf(e.Creator))
	sp, hasParent := g.SelfParent(e)
	selfParentIsInitial := hasParent && sp.Cause.Kind == graph.CauseInitial
	if !creatorOK || !selfParentIsInitial {
		return &Accusation{Offender: e.Creator, Malice: newMalice(observation.MaliceUnexpectedGenesis, e.Hash)}, true
	}
	return nil, false
}

func checkMissingGenesis(d *Detector, g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	if e.IndexByCreator != 1 {
		return nil, false
	}
	if !d.genesis.Contains(graph.KeyOf(e.Creator)) {
		return nil, false
	}
	if e.Cause.Kind == graph.CauseObservation && e.Cause.Vote.Observation.Kind == observation.KindGenesis {
		return nil, false
	}
	return &Accusation{Offender: e.Creator, Malice: newMalice(observation.MaliceMissingGenesis, e.Hash)}, true
}

func (d *Detector) checkDuplicateVoteRule(g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	if e.Cause.Kind != graph.CauseObservation {
		return nil, false
	}
	h := e.Cause.Vote.Hash()
	var prior *graph.Event
	idx := e.SelfParentIndex
	for idx >= 0 {
		ev, ok := g.Get(idx)
		if !ok {
			break
		}
		if ev.Cause.Kind == graph.CauseObservation && ev.Cause.Vote.Hash() == h {
			prior = ev
			break
		}
		idx = ev.SelfParentIndex
	}
	if prior == nil {
		return nil, false
	}
	key := fmt.Sprintf("%s|%s", graph.KeyOf(e.Creator), h)
	if d.duplicateAccused.Contains(key) {
		return nil, false
	}
	d.duplicateAccused.Add(key)
	mal := newMalice(observation.MaliceDuplicateVote, prior.Hash)
	mal.Event2 = e.Hash
	return &Accusation{Offender: e.Creator, Malice: mal}, true
}

func checkStaleOtherParent(d *Detector, g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	if !e.Cause.HasOtherParent() {
		return nil, false
	}
	op, ok := g.OtherParent(e)
	if !ok {
		return nil, false
	}
	sp, ok := g.SelfParent(e)
	if !ok {
		return nil, false
	}
	info, ok := sp.AncestorInfo[graph.KeyOf(op.Creator)]
	if !ok {
		return nil, false
	}
	if op.IndexByCreator < info.Last {
		return &Accusation{Offender: e.Creator, Malice: newMalice(observation.MaliceStaleOtherParent, e.Hash)}, true
	}
	return nil, false
}

func checkForkRule(d *Detector, g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	sp, ok := g.SelfParent(e)
	if !ok {
		return nil, false
	}
	last, ok := m.LastKnownEvent(graph.KeyOf(e.Creator))
	if !ok {
		return nil, false
	}
	if last != sp.Hash {
		return &Accusation{Offender: e.Creator, Malice: newMalice(observation.MaliceFork, sp.Hash)}, true
	}
	return nil, false
}

func (d *Detector) checkInvalidAccusationRule(g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	if e.Cause.Kind != graph.CauseObservation {
		return nil, false
	}
	v := e.Cause.Vote.Observation
	if v.Kind != observation.KindAccusation {
		return nil, false
	}
	key := accusationKey(v.Offender, v.Malice)
	if d.ownAccusations.Contains(key) {
		return nil, false
	}
	return &Accusation{Offender: e.Creator, Malice: newMalice(observation.MaliceInvalidAccusation, e.Hash)}, true
}

// --- Post-process ---

func checkInvalidGossipCreator(d *Detector, g *graph.Graph, pl *peers.List, m Membership, e *graph.Event) (*Accusation, bool) {
	if !e.Cause.HasOtherParent() {
		return nil, false
	}
	op, ok := g.OtherParent(e)
	if !ok {
		return nil, false
	}
	topoIdx, ok := g.IndexOf(e.Hash)
	if !ok {
		return nil, false
	}
	had, known := m.HadMember(graph.KeyOf(e.Creator), topoIdx, graph.KeyOf(op.Creator))
	if !known {
		return nil, false
	}
	if !had {
		return &Accusation{Offender: e.Creator, Malice: newMalice(observation.MaliceInvalidGossipCreator, e.Hash)}, true
	}
	return nil, false
}
