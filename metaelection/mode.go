// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metaelection implements the per-election derived state that
// drives binary agreement (spec §4.4): the registry of concurrent
// elections, the meta-event builder (interesting content, observees,
// meta-votes), and the common-coin leader schedule. Round/step
// bookkeeping is generalized from
// _examples/luxfi-consensus/confidence/threshold.go; the registry shape
// from quorum/dynamic.go's round-keyed maps.
package metaelection

import "github.com/luxfi/parsec/observation"

// ConsensusMode is the flag-visible quorum switch spec §6 names: whether
// an OpaquePayload needs only one vote or a supermajority to become
// candidate interesting content. All other observation kinds always
// require a supermajority (spec §4.4).
type ConsensusMode uint8

const (
	// ModeSupermajority is the default: every observation kind, including
	// OpaquePayload, needs > 2/3 of voters.
	ModeSupermajority ConsensusMode = iota
	// ModeSingle lets a single vote suffice for OpaquePayload only.
	ModeSingle
)

func (m ConsensusMode) String() string {
	if m == ModeSingle {
		return "Single"
	}
	return "Supermajority"
}

func quorumMet(mode ConsensusMode, kind observation.Kind, seenCount, voterCount int) bool {
	if mode == ModeSingle && kind == observation.KindOpaquePayload {
		return seenCount >= 1
	}
	return supermajority(seenCount, voterCount)
}

func supermajority(count, total int) bool { return total > 0 && 3*count > 2*total }
