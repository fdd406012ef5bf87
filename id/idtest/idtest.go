// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package idtest provides a fast, deterministic id.SecretID fake for unit
// tests that don't need real BLS math, mirroring the teacher's convention
// of hand-written test doubles for small interfaces (e.g.
// validators/validatorstest, consensustest) rather than a generated mock.
package idtest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/luxfi/parsec/id"
)

// PublicID is a fake public id derived from a small integer label, so
// tests can construct readable fixtures like idtest.New(0), idtest.New(1).
type PublicID struct {
	label byte
}

var _ id.PublicID = PublicID{}

func (p PublicID) Bytes() []byte { return []byte{p.label} }
func (p PublicID) String() string {
	return fmt.Sprintf("peer-%d", p.label)
}
func (p PublicID) Equal(other id.PublicID) bool {
	o, ok := other.(PublicID)
	return ok && o.label == p.label
}

// Signature is a fake deterministic "signature": a hash of (pubkey || msg).
type Signature struct {
	digest [32]byte
}

var _ id.Signature = Signature{}

func (s Signature) Bytes() []byte { return s.digest[:] }
func (s Signature) Verify(pub id.PublicID, msg []byte) bool {
	return bytes.Equal(s.digest[:], computeDigest(pub, msg))
}

func computeDigest(pub id.PublicID, msg []byte) []byte {
	h := sha256.New()
	h.Write(pub.Bytes())
	h.Write(msg)
	sum := h.Sum(nil)
	return sum
}

// SecretID is a fake id.SecretID keyed by a small integer label.
type SecretID struct {
	pub PublicID
}

var _ id.SecretID = SecretID{}

// New returns the SecretID for peer label n (0, 1, 2, ...).
func New(n int) SecretID {
	return SecretID{pub: PublicID{label: byte(n)}}
}

func (s SecretID) PublicID() id.PublicID { return s.pub }

func (s SecretID) Sign(msg []byte) (id.Signature, error) {
	var sig Signature
	copy(sig.digest[:], computeDigest(s.pub, msg))
	return sig, nil
}

// HexLabel is a convenience for log assertions.
func HexLabel(p id.PublicID) string {
	return hex.EncodeToString(p.Bytes())
}

// Codec implements id.Codec for this fake identity scheme, so wire
// encode/decode round-trips can be tested without real BLS keys.
type Codec struct{}

var _ id.Codec = Codec{}

func (Codec) ParsePublicID(b []byte) (id.PublicID, error) {
	if len(b) != 1 {
		return nil, fmt.Errorf("idtest: want 1 byte public id, got %d", len(b))
	}
	return PublicID{label: b[0]}, nil
}

func (Codec) ParseSignature(b []byte) (id.Signature, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("idtest: want 32 byte signature, got %d", len(b))
	}
	var sig Signature
	copy(sig.digest[:], b)
	return sig, nil
}
