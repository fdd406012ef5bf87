// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package peers tracks section membership and per-peer capabilities
// (spec §2, §4.3: vote/send/recv rights for peers added or removed via
// consensus). Grounded on the teacher's validators.Set/Manager shape
// (_examples/luxfi-consensus/validators/validators.go), generalized from
// a weight/subnet model to a capability-bitset model since this spec has
// no concept of validator weight.
package peers

import (
	"sort"

	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/internal/xset"
)

// Capability is a bitset of rights a peer holds in the section.
type Capability uint8

const (
	// CapVote means the peer's votes count towards Observation consensus
	// and its events count towards strongly-sees thresholds.
	CapVote Capability = 1 << iota
	// CapSend means the peer may be gossiped to.
	CapSend
	// CapRecv means the peer may gossip to us (its requests are serviced).
	CapRecv
)

// Full is the capability set held by every peer in good standing.
const Full = CapVote | CapSend | CapRecv

// Has reports whether c includes all bits of want.
func (c Capability) Has(want Capability) bool { return c&want == want }

// Peer is a single section member.
type Peer struct {
	ID           id.PublicID
	Capabilities Capability
}

// List is an ordered, queryable section membership snapshot (spec §2's
// "peer_list"). It is immutable: adding or removing members produces a
// new List via Add/Remove, so a MetaElection can safely hold a reference
// to the membership that was live when it started (spec §4.3).
type List struct {
	order []graph.PeerKey
	byKey map[graph.PeerKey]*Peer
}

// NewGenesis builds the initial List from a genesis group, every member
// holding Full capabilities.
func NewGenesis(group []id.PublicID) *List {
	l := &List{byKey: make(map[graph.PeerKey]*Peer, len(group))}
	for _, p := range group {
		l.insert(p, Full)
	}
	return l
}

func (l *List) insert(p id.PublicID, cap Capability) {
	key := graph.KeyOf(p)
	if _, ok := l.byKey[key]; !ok {
		l.order = append(l.order, key)
	}
	l.byKey[key] = &Peer{ID: p, Capabilities: cap}
}

// Clone returns a deep-enough copy safe to mutate independently.
func (l *List) Clone() *List {
	out := &List{
		order: append([]graph.PeerKey(nil), l.order...),
		byKey: make(map[graph.PeerKey]*Peer, len(l.byKey)),
	}
	for k, v := range l.byKey {
		cp := *v
		out.byKey[k] = &cp
	}
	return out
}

// Add returns a new List with peer inserted holding VOTE|SEND only. A
// joining peer gains RECV from each existing member individually, once
// that member has processed a gossip request from it (spec §4.6: "A
// joining peer sees the section as {VOTE, SEND} until each member has
// granted it RECV"); see GrantRecv.
func (l *List) Add(p id.PublicID) *List {
	out := l.Clone()
	out.insert(p, CapVote|CapSend)
	return out
}

// GrantRecv returns a new List with p's RECV bit set, leaving its other
// capabilities untouched. Called by the driver when it has processed a
// gossip request from p, granting it our trust to gossip to us in turn
// (spec §4.6, §4.3 handle_request: "set src's state bit RECV"). A no-op
// if p is unknown or already holds RECV.
func (l *List) GrantRecv(p id.PublicID) *List {
	key := graph.KeyOf(p)
	peer, ok := l.byKey[key]
	if !ok || peer.Capabilities.Has(CapRecv) {
		return l
	}
	out := l.Clone()
	out.byKey[key].Capabilities |= CapRecv
	return out
}

// Remove returns a new List with peer's capabilities cleared. The peer's
// historical events remain in the Graph (spec §4.1 says ancestry is
// never rewritten), but it no longer counts towards vote/send/recv
// quorums (spec §4.3 membership_changes, Remove).
func (l *List) Remove(p id.PublicID) *List {
	out := l.Clone()
	key := graph.KeyOf(p)
	if peer, ok := out.byKey[key]; ok {
		peer.Capabilities = 0
	}
	return out
}

// Get returns the Peer record for p, if known to this List (even with
// zero capabilities, if it was later removed).
func (l *List) Get(p id.PublicID) (*Peer, bool) {
	peer, ok := l.byKey[graph.KeyOf(p)]
	return peer, ok
}

// Has reports whether p currently holds all of want.
func (l *List) Has(p id.PublicID, want Capability) bool {
	peer, ok := l.Get(p)
	return ok && peer.Capabilities.Has(want)
}

// Voters returns the PublicIDs holding CapVote, in stable insertion
// order (spec §4.1's voterCount and §4.4's meta-election voter set both
// derive from this).
func (l *List) Voters() []id.PublicID {
	return l.withCapability(CapVote)
}

// Senders returns the PublicIDs eligible as gossip recipients.
func (l *List) Senders() []id.PublicID {
	return l.withCapability(CapSend)
}

func (l *List) withCapability(want Capability) []id.PublicID {
	out := make([]id.PublicID, 0, len(l.order))
	for _, k := range l.order {
		p := l.byKey[k]
		if p.Capabilities.Has(want) {
			out = append(out, p.ID)
		}
	}
	return out
}

// VoterCount is the number of peers currently holding CapVote, the
// denominator for every strongly-sees / supermajority threshold in
// spec §4.1 and §4.4.
func (l *List) VoterCount() int {
	n := 0
	for _, k := range l.order {
		if l.byKey[k].Capabilities.Has(CapVote) {
			n++
		}
	}
	return n
}

// Set returns the full membership as an internal/xset.Set of PeerKeys,
// for callers that only need membership testing.
func (l *List) Set() xset.Set[graph.PeerKey] {
	s := xset.New[graph.PeerKey](len(l.order))
	for _, k := range l.order {
		s.Add(k)
	}
	return s
}

// SortedVoterKeys returns the voter set's PeerKeys in ascending
// lexicographic order, the canonical ordering the common-coin leader
// schedule (spec §4.4/§4.5) and the Genesis Observation both rely on.
func (l *List) SortedVoterKeys() []graph.PeerKey {
	voters := l.Voters()
	keys := make([]graph.PeerKey, len(voters))
	for i, v := range voters {
		keys[i] = graph.KeyOf(v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
