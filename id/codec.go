// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package id

// Codec parses the wire form of a PublicID/Signature back into their
// interface types. The consensus core never constructs concrete key
// types directly (package id/blsid, id/idtest); decoding a PackedEvent
// off the wire needs exactly this one seam, supplied by whichever
// concrete identity scheme the caller wires in (spec §9 design note).
type Codec interface {
	ParsePublicID(b []byte) (PublicID, error)
	ParseSignature(b []byte) (Signature, error)
}
