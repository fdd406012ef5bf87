// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/observation"
)

// Block is the output of one decided meta-election (spec §6): the
// consensused payload, plus every Vote found in the graph for it, keyed
// by the voting peer.
type Block struct {
	Payload observation.Observation
	Votes   map[graph.PeerKey]observation.Vote
}
