// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errs provides the core's typed sentinel errors (spec §7) and a
// thread-safe multi-error accumulator, generalized from the teacher's
// utils/wrappers.Errs.
package errs

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Sentinel errors from spec §7. Wrap with fmt.Errorf("...: %w", ErrX) at
// call sites that need to attach context; test with errors.Is.
var (
	ErrDuplicateVote    = errors.New("duplicate vote")
	ErrInvalidPeerState = errors.New("invalid peer state")
	ErrInvalidSelfState = errors.New("invalid self state")
	ErrSignatureFailure = errors.New("signature verification failed")
	ErrUnknownParent    = errors.New("unknown parent")
	ErrInvalidEvent     = errors.New("invalid event")
	ErrPrematureGossip  = errors.New("premature gossip")
	ErrLogic            = errors.New("internal consensus invariant violated")
)

// InvalidPeerState reports a capability-bit mismatch for a peer.
type InvalidPeerState struct {
	Required string
	Actual   string
}

func (e *InvalidPeerState) Error() string {
	return fmt.Sprintf("%v: required %s, have %s", ErrInvalidPeerState, e.Required, e.Actual)
}

func (e *InvalidPeerState) Unwrap() error { return ErrInvalidPeerState }

// InvalidSelfState reports a capability-bit mismatch for the local peer.
type InvalidSelfState struct {
	Required string
	Actual   string
}

func (e *InvalidSelfState) Error() string {
	return fmt.Sprintf("%v: required %s, have %s", ErrInvalidSelfState, e.Required, e.Actual)
}

func (e *InvalidSelfState) Unwrap() error { return ErrInvalidSelfState }

// Errs accumulates multiple errors raised during one logical operation
// (e.g. draining the pending accusations from one handle_request call).
type Errs struct {
	mu   sync.Mutex
	errs []error
}

// Add appends err to the collection, ignoring nil.
func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

// Errored reports whether any error has been added.
func (e *Errs) Errored() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs) > 0
}

// Len returns the number of accumulated errors.
func (e *Errs) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

// Err collapses the collection into a single error, or nil if empty.
func (e *Errs) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch len(e.errs) {
	case 0:
		return nil
	case 1:
		return e.errs[0]
	default:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d errors occurred:", len(e.errs))
		for _, err := range e.errs {
			sb.WriteString("\n\t* ")
			sb.WriteString(err.Error())
		}
		return errors.New(sb.String())
	}
}
