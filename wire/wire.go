// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire implements the gossip-request/response packed-event
// framing (spec §5): the subset of an Event's fields that actually cross
// the wire, and their canonical, length-prefixed encoding. Grounded on
// the teacher's utils/wrappers.Packer usage patterns and generalized via
// internal/canon; the PackedEvent/Request/Response shape follows
// _examples/original_source/src/gossip/packed_event.rs.
package wire

import (
	"fmt"

	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/graph/eventhash"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/internal/canon"
	"github.com/luxfi/parsec/internal/errs"
	"github.com/luxfi/parsec/observation"
)

// PackedEvent is the wire form of a graph.Event: creator, cause, and
// signature, canonically encoded. It carries no cached/derived fields
// (index_by_creator, ancestor_info) since those are recomputed by the
// receiving Graph on insertion (spec §5).
type PackedEvent struct {
	// Content is the canonical (creator, cause) encoding — the exact
	// bytes that were signed.
	Content   []byte
	Signature []byte
}

// Pack converts an in-memory Event to its wire form.
func Pack(e *graph.Event) PackedEvent {
	return PackedEvent{
		Content:   graph.CanonicalBytes(e.Creator, e.Cause),
		Signature: e.Signature.Bytes(),
	}
}

// Unpack reconstructs an Event from its wire form, verifying the
// signature and resolving creator/cause fields via codec. It does not
// touch any graph storage: the caller inserts separately via
// graph.Graph.Insert, which is where parent-resolution errors surface.
func Unpack(codec id.Codec, pe PackedEvent) (*graph.Event, error) {
	u := canon.NewUnpacker(pe.Content)
	creatorBytes := u.UnpackBytes()
	causeKindByte := u.UnpackByte()

	creator, err := codec.ParsePublicID(creatorBytes)
	if err != nil {
		return nil, fmt.Errorf("wire: parsing creator: %w", err)
	}

	cause, err := unpackCause(codec, u, graph.CauseKind(causeKindByte))
	if err != nil {
		return nil, err
	}
	if err := u.Done(); err != nil {
		return nil, fmt.Errorf("wire: trailing content bytes: %w", err)
	}

	sig, err := codec.ParseSignature(pe.Signature)
	if err != nil {
		return nil, fmt.Errorf("wire: parsing signature: %w", err)
	}

	e := &graph.Event{
		Creator:          creator,
		Cause:            cause,
		Signature:        sig,
		Hash:             graph.ComputeHash(creator, cause),
		SelfParentIndex:  -1,
		OtherParentIndex: -1,
	}
	if !e.VerifySignature() {
		return nil, fmt.Errorf("wire: %w: event %s", errs.ErrSignatureFailure, e.Hash)
	}
	return e, nil
}

// unpackHash32 reads a fixed 32-byte hash, never panicking on short
// input: a malformed unpacker already has u.Err set, and the caller
// checks that before trusting the returned (zero) hash.
func unpackHash32(u *canon.Unpacker) eventhash.Hash {
	b := u.UnpackFixedBytes(32)
	if len(b) != 32 {
		return eventhash.Zero
	}
	return eventhash.Hash(b)
}

func unpackCause(codec id.Codec, u *canon.Unpacker, kind graph.CauseKind) (graph.Cause, error) {
	cause := graph.Cause{Kind: kind}
	switch kind {
	case graph.CauseInitial:
		// no further fields
	case graph.CauseRequesting:
		cause.SelfParent = unpackHash32(u)
		recipientBytes := u.UnpackBytes()
		recipient, err := codec.ParsePublicID(recipientBytes)
		if err != nil {
			return cause, fmt.Errorf("wire: parsing recipient: %w", err)
		}
		cause.Recipient = recipient
	case graph.CauseRequest, graph.CauseResponse:
		cause.SelfParent = unpackHash32(u)
		cause.OtherParent = unpackHash32(u)
	case graph.CauseObservation:
		cause.SelfParent = unpackHash32(u)
		voteCreatorBytes := u.UnpackBytes()
		voteCreator, err := codec.ParsePublicID(voteCreatorBytes)
		if err != nil {
			return cause, fmt.Errorf("wire: parsing vote creator: %w", err)
		}
		obsBytes := u.UnpackBytes()
		ob, err := observation.Uncanonicalize(codec, obsBytes)
		if err != nil {
			return cause, fmt.Errorf("wire: parsing observation: %w", err)
		}
		voteSigBytes := u.UnpackBytes()
		voteSig, err := codec.ParseSignature(voteSigBytes)
		if err != nil {
			return cause, fmt.Errorf("wire: parsing vote signature: %w", err)
		}
		cause.Vote = observation.Vote{Observation: ob, Creator: voteCreator, Signature: voteSig}
	default:
		return cause, fmt.Errorf("wire: unknown cause kind %d", kind)
	}
	if u.Err != nil {
		return cause, fmt.Errorf("wire: %w", u.Err)
	}
	return cause, nil
}

// Request is a gossip request: the sender's view of which events the
// recipient might be missing, ordered to satisfy parent-before-child
// (spec §5, so the receiver can Graph.Insert them in order without
// buffering out-of-order events).
type Request struct {
	Events []PackedEvent
}

// Response is the gossip reply: further events the original recipient
// had that the requester may be missing.
type Response struct {
	Events []PackedEvent
}
