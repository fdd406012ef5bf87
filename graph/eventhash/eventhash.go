// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package eventhash holds the event-hash domain type on its own so that
// both graph (which produces it) and observation (whose Malice payload
// references it as evidence) can depend on it without a package cycle.
package eventhash

import "github.com/luxfi/parsec/id"

// Hash identifies an Event by the hash of its canonical (creator, cause)
// encoding. Distinct from observation.Hash even though both wrap the same
// underlying 32-byte digest, so the two domains can't be confused at
// compile time (spec §3).
type Hash id.Hash

// Zero is the hash of no event.
var Zero Hash

func (h Hash) String() string { return id.Hash(h).String() }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Zero }

// Less gives Hash a fixed total order (see id.Hash.Less).
func (h Hash) Less(other Hash) bool { return id.Hash(h).Less(id.Hash(other)) }

// FromBytes computes the canonical hash of data.
func FromBytes(data []byte) Hash {
	return Hash(id.HashBytes(data))
}
