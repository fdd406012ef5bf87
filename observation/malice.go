// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package observation

import (
	"fmt"

	"github.com/luxfi/parsec/graph/eventhash"
)

// MaliceKind enumerates the provable and unprovable rule violations spec
// §4.5 names, matching _examples/original_source/src/observation.rs's
// Malice enum one-for-one.
type MaliceKind uint8

const (
	MaliceUnexpectedGenesis MaliceKind = iota
	MaliceDuplicateVote
	MaliceMissingGenesis
	MaliceIncorrectGenesis
	MaliceStaleOtherParent
	MaliceFork
	MaliceInvalidAccusation
	MaliceInvalidGossipCreator
	MaliceOtherParentBySameCreator
	MaliceSelfParentByDifferentCreator
	MaliceAccomplice
	MaliceSpam
)

func (k MaliceKind) String() string {
	switch k {
	case MaliceUnexpectedGenesis:
		return "UnexpectedGenesis"
	case MaliceDuplicateVote:
		return "DuplicateVote"
	case MaliceMissingGenesis:
		return "MissingGenesis"
	case MaliceIncorrectGenesis:
		return "IncorrectGenesis"
	case MaliceStaleOtherParent:
		return "StaleOtherParent"
	case MaliceFork:
		return "Fork"
	case MaliceInvalidAccusation:
		return "InvalidAccusation"
	case MaliceInvalidGossipCreator:
		return "InvalidGossipCreator"
	case MaliceOtherParentBySameCreator:
		return "OtherParentBySameCreator"
	case MaliceSelfParentByDifferentCreator:
		return "SelfParentByDifferentCreator"
	case MaliceAccomplice:
		return "Accomplice"
	case MaliceSpam:
		return "Spam"
	default:
		return "Invalid"
	}
}

// Provable reports whether the kind carries hard evidence (an event hash
// chain any honest peer can re-verify) as opposed to being a purely local
// suspicion (Accomplice, Spam — spec §4.5 "Unprovable (soft)").
func (k MaliceKind) Provable() bool {
	switch k {
	case MaliceAccomplice, MaliceSpam:
		return false
	default:
		return true
	}
}

// Malice is the evidence payload carried by an Accusation observation.
// At most the fields relevant to Kind are populated; most kinds carry a
// single event hash, DuplicateVote carries two.
type Malice struct {
	Kind   MaliceKind
	Event  eventhash.Hash
	Event2 eventhash.Hash // only for MaliceDuplicateVote
}

func (m Malice) String() string {
	if m.Kind == MaliceDuplicateVote {
		return fmt.Sprintf("DuplicateVote(%s, %s)", m.Event, m.Event2)
	}
	return fmt.Sprintf("%s(%s)", m.Kind, m.Event)
}
