// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package graph

import (
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/observation"
)

// sign computes the hash and signature of (creator, cause) and returns the
// assembled, not-yet-inserted Event (spec §4.2).
func sign(secret id.SecretID, cause Cause) (*Event, error) {
	creator := secret.PublicID()
	h := ComputeHash(creator, cause)
	sig, err := secret.Sign(CanonicalBytes(creator, cause))
	if err != nil {
		return nil, err
	}
	return &Event{Creator: creator, Cause: cause, Signature: sig, Hash: h}, nil
}

// NewInitial creates a peer's first event (invariant I1: no parents,
// index_by_creator 0).
func NewInitial(secret id.SecretID) (*Event, error) {
	return sign(secret, Cause{Kind: CauseInitial})
}

// NewRequesting creates the event recording that the local peer is about
// to send a gossip request to recipient.
func NewRequesting(secret id.SecretID, selfParent *Event, recipient id.PublicID) (*Event, error) {
	return sign(secret, Cause{
		Kind:       CauseRequesting,
		SelfParent: selfParent.Hash,
		Recipient:  recipient,
	})
}

// NewRequest creates the sync-event synthesized on receipt of a gossip
// request (spec §4.3).
func NewRequest(secret id.SecretID, selfParent, otherParent *Event) (*Event, error) {
	return sign(secret, Cause{
		Kind:        CauseRequest,
		SelfParent:  selfParent.Hash,
		OtherParent: otherParent.Hash,
	})
}

// NewResponse creates the sync-event synthesized on receipt of a gossip
// response.
func NewResponse(secret id.SecretID, selfParent, otherParent *Event) (*Event, error) {
	return sign(secret, Cause{
		Kind:        CauseResponse,
		SelfParent:  selfParent.Hash,
		OtherParent: otherParent.Hash,
	})
}

// NewObservation creates an event carrying a vote for an Observation
// (spec §4.3 vote()). selfParent must be non-nil: a peer's first event is
// always Initial (invariant I1), never a vote.
func NewObservation(secret id.SecretID, selfParent *Event, vote observation.Vote) (*Event, error) {
	return sign(secret, Cause{
		Kind:       CauseObservation,
		SelfParent: selfParent.Hash,
		Vote:       vote,
	})
}
