// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package graph implements the per-peer gossip DAG (spec §3, §4.1, §4.2):
// the in-memory Event model and the topologically-ordered Graph that
// stores it, with ancestry and strongly-sees queries. Grounded on
// _examples/original_source/src/gossip/event.rs for the Cause/ancestor_info
// shape, and on the teacher's index-addressed, iterative-walk style in
// core/dag/horizon.go.
package graph

import (
	"github.com/luxfi/parsec/graph/eventhash"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/observation"
)

// CauseKind tags an Event's cause (spec §3), matching the original's
// CauseInput enum (Initial/Requesting/Request/Response) plus the vote
// carrying Observation cause.
type CauseKind uint8

const (
	CauseInitial CauseKind = iota
	CauseRequesting
	CauseRequest
	CauseResponse
	CauseObservation
)

func (k CauseKind) String() string {
	switch k {
	case CauseInitial:
		return "Initial"
	case CauseRequesting:
		return "Requesting"
	case CauseRequest:
		return "Request"
	case CauseResponse:
		return "Response"
	case CauseObservation:
		return "Observation"
	default:
		return "Invalid"
	}
}

// Cause is the signed content of an Event (spec §3). SelfParent/OtherParent
// are event hashes (the signed, parent-identifying form); the Graph
// additionally caches the resolved topological index of each parent once
// the event is inserted (see Event.SelfParentIndex/OtherParentIndex).
type Cause struct {
	Kind CauseKind

	// Requesting, Request, Response, Observation
	SelfParent eventhash.Hash

	// Request, Response
	OtherParent eventhash.Hash

	// Requesting
	Recipient id.PublicID

	// Observation
	Vote observation.Vote
}

// HasOtherParent reports whether this cause carries an other-parent edge
// (Request/Response), the chunk-boundary heuristic spec §4.3/§4.5 use to
// split an inbound packed-event list into malice-detectable chunks.
func (c Cause) HasOtherParent() bool {
	return c.Kind == CauseRequest || c.Kind == CauseResponse
}
