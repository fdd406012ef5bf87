// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package graph

import (
	"github.com/luxfi/parsec/graph/eventhash"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/internal/canon"
	"github.com/luxfi/parsec/internal/xset"
	"github.com/luxfi/parsec/observation"
)

// PeerKey is a comparable stand-in for id.PublicID, used as a map key
// throughout the core (PublicID implementations need not be `comparable`
// — only their Bytes() form is).
type PeerKey string

// KeyOf derives a PeerKey from a PublicID.
func KeyOf(p id.PublicID) PeerKey {
	return PeerKey(p.Bytes())
}

// AncestorInfo is the per-ancestor-peer summary an Event caches (spec §3):
// the highest index_by_creator of any ancestor created by that peer, and,
// if a fork by that peer has been observed through this event's ancestry,
// the set of topological indices of the conflicting branch events at each
// forked index_by_creator.
type AncestorInfo struct {
	Last  uint64
	Forks map[uint64]xset.Set[int]
}

func newAncestorInfo() *AncestorInfo {
	return &AncestorInfo{Forks: make(map[uint64]xset.Set[int])}
}

func (a *AncestorInfo) clone() *AncestorInfo {
	out := &AncestorInfo{Last: a.Last, Forks: make(map[uint64]xset.Set[int], len(a.Forks))}
	for idx, set := range a.Forks {
		out.Forks[idx] = set.Clone()
	}
	return out
}

// HasProvenFork reports whether any index for this peer has two or more
// distinct branch events recorded (spec §4.1 "Sees").
func (a *AncestorInfo) HasProvenFork() bool {
	for _, set := range a.Forks {
		if set.Len() >= 2 {
			return true
		}
	}
	return false
}

// Event is the in-memory, cached form of a gossip-graph node (spec §3).
// Parent edges are resolved to topological indices by the Graph at
// insertion time (design note §9: "parent pointers are indexes, never
// owning handles"); Cause still carries the parent hashes needed to
// reproduce the signed content.
type Event struct {
	Creator   id.PublicID
	Cause     Cause
	Signature id.Signature

	// Cached at construction.
	Hash eventhash.Hash

	// Cached at Graph.Insert time. -1 means "no such parent".
	SelfParentIndex  int
	OtherParentIndex int
	IndexByCreator   uint64
	AncestorInfo     map[PeerKey]*AncestorInfo
}

// CanonicalBytes returns the deterministic encoding of (creator, cause)
// that is both hashed (to produce Hash) and signed (spec §3, §6).
func CanonicalBytes(creator id.PublicID, cause Cause) []byte {
	p := canon.NewPacker(128)
	p.PackBytes(creator.Bytes())
	p.PackByte(byte(cause.Kind))
	switch cause.Kind {
	case CauseInitial:
		// no further fields
	case CauseRequesting:
		p.PackFixedBytes(cause.SelfParent[:])
		p.PackBytes(cause.Recipient.Bytes())
	case CauseRequest, CauseResponse:
		p.PackFixedBytes(cause.SelfParent[:])
		p.PackFixedBytes(cause.OtherParent[:])
	case CauseObservation:
		p.PackFixedBytes(cause.SelfParent[:])
		p.PackBytes(cause.Vote.Creator.Bytes())
		p.PackBytes(observation.Canonicalize(cause.Vote.Observation))
		p.PackBytes(cause.Vote.Signature.Bytes())
	}
	return p.Bytes
}

// ComputeHash returns the canonical hash of (creator, cause).
func ComputeHash(creator id.PublicID, cause Cause) eventhash.Hash {
	return eventhash.FromBytes(CanonicalBytes(creator, cause))
}

// VerifySignature reports whether e.Signature verifies over e's canonical
// (creator, cause) encoding (spec invariant I3).
func (e *Event) VerifySignature() bool {
	return e.Signature.Verify(e.Creator, CanonicalBytes(e.Creator, e.Cause))
}
