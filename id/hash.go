// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package id

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashBytes computes the canonical content hash used throughout the core
// for both event and observation hashing.
func HashBytes(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// String renders a Hash as hex, matching the teacher's id/hash String()
// conventions (e.g. crypto/bls.PublicKey.String()).
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}
