// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/graph/eventhash"
)

// change is one entry of a peer's membership list (spec §3 "Peer list",
// §4.6): an Add or Remove of member observed at a specific topological
// index, replayed in order to reconstruct that peer's view of membership
// as of any later point in its own chain.
type change struct {
	add     bool
	peer    graph.PeerKey
	atIndex int
}

// peerRecord is the driver-owned gossip-history bookkeeping for one known
// peer: the hash of the newest event we have accepted from it (fork
// detection) and its membership-list replay log (InvalidGossipCreator).
type peerRecord struct {
	lastEvent eventhash.Hash

	// initialized distinguishes a peer whose membership list has been
	// seeded (genesis, or lazily copied on first gossip contact) from one
	// we merely hold events for; HadMember answers "unknown" until then.
	initialized bool
	changes     []change
}

// membership implements malice.Membership over this driver's per-peer
// bookkeeping. It is deliberately separate from peers.List (an immutable
// capability snapshot, spec §2) — see DESIGN.md decision 5.
type membership struct {
	peers map[graph.PeerKey]*peerRecord
}

func newMembership() *membership {
	return &membership{peers: make(map[graph.PeerKey]*peerRecord)}
}

func (m *membership) record(key graph.PeerKey) *peerRecord {
	rec, ok := m.peers[key]
	if !ok {
		rec = &peerRecord{}
		m.peers[key] = rec
	}
	return rec
}

// recordEvent updates the last-known-event entry for e's creator (spec
// §4.3 "register in peer list").
func (m *membership) recordEvent(e *graph.Event) {
	m.record(graph.KeyOf(e.Creator)).lastEvent = e.Hash
}

// seedGenesis gives every genesis member a membership list in which every
// other genesis member is already present as of index 0, matching spec
// §4.6 "Genesis members start at {VOTE, SEND, RECV}".
func (m *membership) seedGenesis(group []graph.PeerKey) {
	for _, p := range group {
		rec := m.record(p)
		rec.initialized = true
		for _, other := range group {
			rec.changes = append(rec.changes, change{add: true, peer: other, atIndex: 0})
		}
	}
}

// initFrom implements spec §4.6's lazy membership-list initialization:
// "initialized lazily from the other-parent's creator's list on the
// first gossip from a new peer", restricted to changes recorded at or
// before visibleUpTo (the change's own recording event must be seen by
// the event triggering this copy).
func (m *membership) initFrom(peer, source graph.PeerKey, visibleUpTo int) {
	rec := m.record(peer)
	if rec.initialized {
		return
	}
	rec.initialized = true
	if src, ok := m.peers[source]; ok {
		for _, c := range src.changes {
			if c.atIndex <= visibleUpTo {
				rec.changes = append(rec.changes, c)
			}
		}
	}
}

// recordChange appends a membership change to peer's list, as observed at
// topoIdx (spec §4.3: Add/Remove/Accusation decisions update membership).
func (m *membership) recordChange(peer graph.PeerKey, member graph.PeerKey, add bool, topoIdx int) {
	rec := m.record(peer)
	rec.initialized = true
	rec.changes = append(rec.changes, change{add: add, peer: member, atIndex: topoIdx})
}

// LastKnownEvent implements malice.Membership.
func (m *membership) LastKnownEvent(creator graph.PeerKey) (eventhash.Hash, bool) {
	rec, ok := m.peers[creator]
	if !ok || rec.lastEvent.IsZero() {
		return eventhash.Zero, false
	}
	return rec.lastEvent, true
}

// HadMember implements malice.Membership: replays creator's own
// membership-change log up to the event at atTopoIndex and reports
// whether member was present. known is false while creator's membership
// list has not been initialized (in which case the InvalidGossipCreator
// rule should not fire for lack of information, not a provable
// violation). changes is appended in ascending atIndex order, so the
// replay may stop at the first entry past the cutoff.
func (m *membership) HadMember(creator graph.PeerKey, atTopoIndex int, member graph.PeerKey) (has, known bool) {
	rec, ok := m.peers[creator]
	if !ok || !rec.initialized {
		return false, false
	}
	for _, c := range rec.changes {
		if c.atIndex > atTopoIndex {
			break
		}
		if c.peer == member {
			has = c.add
		}
	}
	return has, true
}
