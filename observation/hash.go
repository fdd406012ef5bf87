// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package observation

import (
	"fmt"

	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/internal/canon"
)

// Hash identifies an Observation by the hash of its canonical encoding
// (spec §3's ObservationHash). Distinct type from graph/eventhash.Hash.
type Hash id.Hash

// Zero is the hash of no observation.
var Zero Hash

func (h Hash) String() string { return id.Hash(h).String() }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Zero }

// Less gives Hash a fixed total order (see id.Hash.Less), used to break
// interesting-content ties deterministically (DESIGN.md Open Question 1).
func (h Hash) Less(other Hash) bool { return id.Hash(h).Less(id.Hash(other)) }

// HashOf returns the ObservationHash of o.
func HashOf(o Observation) Hash {
	return Hash(id.HashBytes(Canonicalize(o)))
}

// Canonicalize returns the deterministic, length-prefixed byte encoding of
// o (spec §6: "fixed field order, length-prefixed variable data, no
// floats"), used both to compute Hash and as the payload signed by Vote.
func Canonicalize(o Observation) []byte {
	p := canon.NewPacker(64)
	p.PackByte(byte(o.Kind))
	switch o.Kind {
	case KindGenesis:
		p.PackLong(uint64(len(o.GenesisGroup)))
		for _, m := range o.GenesisGroup {
			p.PackBytes(m.Bytes())
		}
	case KindAdd, KindRemove:
		p.PackBytes(o.Peer.Bytes())
		p.PackBytes(o.AuxInfo)
	case KindAccusation:
		p.PackBytes(o.Offender.Bytes())
		p.PackByte(byte(o.Malice.Kind))
		p.PackFixedBytes(o.Malice.Event[:])
		p.PackFixedBytes(o.Malice.Event2[:])
	case KindOpaquePayload:
		p.PackBytes(o.Payload)
	}
	return p.Bytes
}

// Uncanonicalize parses the encoding produced by Canonicalize back into an
// Observation, resolving any embedded public ids via codec (spec §5: wire
// decode needs the same identity seam as event parsing).
func Uncanonicalize(codec id.Codec, b []byte) (Observation, error) {
	u := canon.NewUnpacker(b)
	kind := Kind(u.UnpackByte())
	o := Observation{Kind: kind}
	switch kind {
	case KindGenesis:
		n := u.UnpackLong()
		group := make([]id.PublicID, 0, n)
		for i := uint64(0); i < n; i++ {
			pub, err := codec.ParsePublicID(u.UnpackBytes())
			if err != nil {
				return o, err
			}
			group = append(group, pub)
		}
		o.GenesisGroup = group
	case KindAdd, KindRemove:
		pub, err := codec.ParsePublicID(u.UnpackBytes())
		if err != nil {
			return o, err
		}
		o.Peer = pub
		o.AuxInfo = u.UnpackBytes()
	case KindAccusation:
		offender, err := codec.ParsePublicID(u.UnpackBytes())
		if err != nil {
			return o, err
		}
		o.Offender = offender
		o.Malice.Kind = MaliceKind(u.UnpackByte())
		copy(o.Malice.Event[:], u.UnpackFixedBytes(32))
		copy(o.Malice.Event2[:], u.UnpackFixedBytes(32))
	case KindOpaquePayload:
		o.Payload = u.UnpackBytes()
	default:
		return o, fmt.Errorf("observation: unknown kind %d", kind)
	}
	if u.Err != nil {
		return o, u.Err
	}
	return o, nil
}

// Vote is an Observation plus the creator's signature over its canonical
// encoding (spec §3).
type Vote struct {
	Observation Observation
	Creator     id.PublicID
	Signature   id.Signature
}

// NewVote signs observation with secret, producing a Vote.
func NewVote(secret id.SecretID, o Observation) (Vote, error) {
	sig, err := secret.Sign(Canonicalize(o))
	if err != nil {
		return Vote{}, err
	}
	return Vote{Observation: o, Creator: secret.PublicID(), Signature: sig}, nil
}

// Verify checks the vote's signature against its own Creator field.
func (v Vote) Verify() bool {
	return v.Signature.Verify(v.Creator, Canonicalize(v.Observation))
}

// Hash returns the ObservationHash of the voted-for observation.
func (v Vote) Hash() Hash {
	return HashOf(v.Observation)
}
