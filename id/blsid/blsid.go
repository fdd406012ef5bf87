// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blsid is a concrete id.PublicID/id.SecretID/id.Signature adapter
// backed by BLS12-381, replacing the teacher's crypto/bls stub (which XORs
// bytes together and always verifies) with real signature math from
// github.com/supranational/blst. It exists so tests and example callers
// have a real key type to plug into the consensus core; the core itself
// never imports this package, only the id interfaces.
package blsid

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"

	"github.com/luxfi/parsec/id"
)

// domainSeparationTag is fixed per section instance; all peers in a
// section must agree on it or signatures won't cross-verify.
var domainSeparationTag = []byte("LUX-PARSEC-BLS-SIG-BLS12381G2-SHA256-SSWU-RO-AUG_")

// PublicID wraps a compressed BLS12-381 G1 public key.
type PublicID struct {
	pk *blst.P1Affine
}

var _ id.PublicID = (*PublicID)(nil)

// Bytes returns the 48-byte compressed public key.
func (p *PublicID) Bytes() []byte {
	return p.pk.Compress()
}

// String renders the public key as hex.
func (p *PublicID) String() string {
	return hex.EncodeToString(p.Bytes())
}

// Equal compares two public ids by their compressed bytes.
func (p *PublicID) Equal(other id.PublicID) bool {
	o, ok := other.(*PublicID)
	if !ok {
		return false
	}
	return string(p.Bytes()) == string(o.Bytes())
}

// ParsePublicID decodes a compressed public key previously produced by Bytes.
func ParsePublicID(b []byte) (*PublicID, error) {
	pk := new(blst.P1Affine).Uncompress(b)
	if pk == nil {
		return nil, errors.New("blsid: invalid compressed public key")
	}
	if !pk.KeyValidate() {
		return nil, errors.New("blsid: public key fails subgroup check")
	}
	return &PublicID{pk: pk}, nil
}

// Signature wraps a compressed BLS12-381 G2 signature.
type Signature struct {
	sig *blst.P2Affine
}

var _ id.Signature = (*Signature)(nil)

// Bytes returns the 96-byte compressed signature.
func (s *Signature) Bytes() []byte {
	return s.sig.Compress()
}

// Verify checks the signature against pub over msg.
func (s *Signature) Verify(pub id.PublicID, msg []byte) bool {
	p, ok := pub.(*PublicID)
	if !ok {
		return false
	}
	return s.sig.Verify(true, p.pk, true, msg, domainSeparationTag)
}

// ParseSignature decodes a compressed signature previously produced by Bytes.
func ParseSignature(b []byte) (*Signature, error) {
	sig := new(blst.P2Affine).Uncompress(b)
	if sig == nil {
		return nil, errors.New("blsid: invalid compressed signature")
	}
	return &Signature{sig: sig}, nil
}

// Codec implements id.Codec for the BLS12-381 key scheme.
type Codec struct{}

var _ id.Codec = Codec{}

func (Codec) ParsePublicID(b []byte) (id.PublicID, error) { return ParsePublicID(b) }
func (Codec) ParseSignature(b []byte) (id.Signature, error) { return ParseSignature(b) }

// SecretID wraps a BLS12-381 secret scalar.
type SecretID struct {
	sk *blst.SecretKey
	pk *PublicID
}

var _ id.SecretID = (*SecretID)(nil)

// Generate produces a fresh, randomly keyed SecretID.
func Generate() (*SecretID, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("blsid: reading entropy: %w", err)
	}
	sk := blst.KeyGen(ikm[:])
	return &SecretID{
		sk: sk,
		pk: &PublicID{pk: new(blst.P1Affine).From(sk)},
	}, nil
}

// PublicID returns the holder's public id.
func (s *SecretID) PublicID() id.PublicID {
	return s.pk
}

// Sign signs msg, returning a detached Signature.
func (s *SecretID) Sign(msg []byte) (id.Signature, error) {
	sig := new(blst.P2Affine).Sign(s.sk, msg, domainSeparationTag)
	return &Signature{sig: sig}, nil
}
