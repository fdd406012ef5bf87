// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package observation defines the payloads peers vote on (spec §3), their
// content hash, and the malice payload raised by the detector. Shape is
// grounded on _examples/original_source/src/observation.rs; the enum's
// method set (String, etc.) follows the teacher's choices/status.go style.
package observation

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/luxfi/parsec/id"
)

// Kind tags which variant an Observation holds.
type Kind uint8

const (
	KindGenesis Kind = iota
	KindAdd
	KindRemove
	KindAccusation
	KindOpaquePayload
)

func (k Kind) String() string {
	switch k {
	case KindGenesis:
		return "Genesis"
	case KindAdd:
		return "Add"
	case KindRemove:
		return "Remove"
	case KindAccusation:
		return "Accusation"
	case KindOpaquePayload:
		return "OpaquePayload"
	default:
		return "Invalid"
	}
}

// Observation is the tagged union of payloads a peer can vote for
// (spec §3). Only the fields relevant to Kind are populated.
type Observation struct {
	Kind Kind

	// KindGenesis
	GenesisGroup []id.PublicID

	// KindAdd, KindRemove
	Peer    id.PublicID
	AuxInfo []byte

	// KindAccusation
	Offender id.PublicID
	Malice   Malice

	// KindOpaquePayload
	Payload []byte
}

// Genesis constructs a Genesis observation. The group is stored in a
// canonical (sorted-by-bytes) order so two peers voting "the same"
// genesis set always hash identically regardless of construction order.
func Genesis(group []id.PublicID) Observation {
	sorted := make([]id.PublicID, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Bytes(), sorted[j].Bytes()) < 0
	})
	return Observation{Kind: KindGenesis, GenesisGroup: sorted}
}

// Add constructs an Add observation.
func Add(peer id.PublicID, auxInfo []byte) Observation {
	return Observation{Kind: KindAdd, Peer: peer, AuxInfo: auxInfo}
}

// Remove constructs a Remove observation.
func Remove(peer id.PublicID, auxInfo []byte) Observation {
	return Observation{Kind: KindRemove, Peer: peer, AuxInfo: auxInfo}
}

// AccusationOf constructs an Accusation observation.
func AccusationOf(offender id.PublicID, malice Malice) Observation {
	return Observation{Kind: KindAccusation, Offender: offender, Malice: malice}
}

// Opaque constructs an OpaquePayload observation wrapping application bytes.
func Opaque(payload []byte) Observation {
	return Observation{Kind: KindOpaquePayload, Payload: append([]byte(nil), payload...)}
}

// String renders the observation for logs, matching the original's Debug
// impl shape (named fields by kind, not the full struct dump).
func (o Observation) String() string {
	switch o.Kind {
	case KindGenesis:
		return fmt.Sprintf("Genesis(%d peers)", len(o.GenesisGroup))
	case KindAdd:
		return fmt.Sprintf("Add(%s)", o.Peer)
	case KindRemove:
		return fmt.Sprintf("Remove(%s)", o.Peer)
	case KindAccusation:
		return fmt.Sprintf("Accusation{%s, %s}", o.Offender, o.Malice.Kind)
	case KindOpaquePayload:
		return fmt.Sprintf("OpaquePayload(%d bytes)", len(o.Payload))
	default:
		return "Invalid"
	}
}

// Equal reports structural equality, as spec §3 requires for Observation
// comparison (used for duplicate-vote detection).
func (o Observation) Equal(other Observation) bool {
	return bytes.Equal(Canonicalize(o), Canonicalize(other))
}
