// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package id provides the identity and signing abstraction the consensus
// core is parametric over. The core never depends on a concrete key type;
// it only ever holds a PublicID, a SecretID, or a Signature.
package id

// PublicID identifies a peer. Implementations must be safe to use as a
// map key once rendered through Bytes/String; PublicID itself is not
// required to be comparable (see graph.PeerKey).
type PublicID interface {
	// Bytes returns the canonical byte encoding of the public id.
	Bytes() []byte
	// String returns a human-readable (hex) rendering of Bytes.
	String() string
	// Equal reports whether two public ids refer to the same peer.
	Equal(other PublicID) bool
}

// Signature is a detached signature over an arbitrary message, verifiable
// against a PublicID.
type Signature interface {
	Bytes() []byte
	Verify(pub PublicID, msg []byte) bool
}

// SecretID is a peer's private signing key. It never leaves the holding
// peer's process; the core only ever calls Sign on the local SecretID.
type SecretID interface {
	PublicID() PublicID
	Sign(msg []byte) (Signature, error)
}

// Hash is a 32-byte content hash, shared by both hash domains (events and
// observations) at the representation level; the domains themselves are
// kept apart by distinct named types (eventhash.Hash, observation.Hash)
// that wrap this one so the two can never be assigned to each other by
// mistake.
type Hash [32]byte

// Less gives Hash a fixed total order, used to break ties deterministically
// (see DESIGN.md, Open Question 1) without depending on map iteration order.
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}
