// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package parsectest builds small in-memory sections of Parsec instances
// for scenario tests, modeled on the teacher's consensustest/snowtest
// helper-package convention (fixture builders a test calls directly,
// rather than a generated mock).
package parsectest

import (
	"fmt"

	"github.com/luxfi/parsec/consensus"
	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/id/idtest"
	"github.com/luxfi/parsec/metaelection"
)

// Member is one peer's identity and running Parsec instance within a
// Section.
type Member struct {
	Secret id.SecretID
	P      *consensus.Parsec
}

// Section is a small in-memory group of peers gossiping directly with
// each other's Parsec instances (no network; events still travel as
// packed wire.Request/wire.Response values) — the harness scenario tests
// drive.
type Section struct {
	Members []*Member
	byKey   map[graph.PeerKey]*Member
}

// NewSection builds a Section of n founding members, every one started
// via consensus.FromGenesis with the same genesis group and mode.
func NewSection(n int, mode metaelection.ConsensusMode) (*Section, error) {
	group := make([]id.PublicID, n)
	secrets := make([]id.SecretID, n)
	for i := 0; i < n; i++ {
		secrets[i] = idtest.New(i)
		group[i] = secrets[i].PublicID()
	}

	sec := &Section{byKey: make(map[graph.PeerKey]*Member, n)}
	for i := 0; i < n; i++ {
		p, err := consensus.FromGenesis(secrets[i], idtest.Codec{}, group, consensus.Config{Mode: mode})
		if err != nil {
			return nil, fmt.Errorf("parsectest: starting member %d: %w", i, err)
		}
		m := &Member{Secret: secrets[i], P: p}
		sec.Members = append(sec.Members, m)
		sec.byKey[graph.KeyOf(secrets[i].PublicID())] = m
	}
	return sec, nil
}

// Member returns the Member owning key, if present.
func (s *Section) Member(key graph.PeerKey) (*Member, bool) {
	m, ok := s.byKey[key]
	return m, ok
}

// GossipOnce drives one request/response exchange from Members[from] to
// Members[to]: from creates a gossip request, to handles it and replies,
// from handles the reply (spec §4.7's request/response cycle, run
// in-process instead of over a transport).
func (s *Section) GossipOnce(from, to int) error {
	fromM, toM := s.Members[from], s.Members[to]
	req, err := fromM.P.CreateGossip(toM.Secret.PublicID())
	if err != nil {
		return fmt.Errorf("parsectest: create_gossip %d->%d: %w", from, to, err)
	}
	resp, err := toM.P.HandleRequest(fromM.Secret.PublicID(), req)
	if err != nil {
		return fmt.Errorf("parsectest: handle_request %d->%d: %w", from, to, err)
	}
	if err := fromM.P.HandleResponse(toM.Secret.PublicID(), resp); err != nil {
		return fmt.Errorf("parsectest: handle_response %d->%d: %w", from, to, err)
	}
	return nil
}

// GossipRound runs one GossipOnce for every ordered pair of members (a
// full mesh round), skipping pairs whose recipient isn't currently
// reachable (e.g. already removed from the section).
func (s *Section) GossipRound() error {
	for i := range s.Members {
		for j := range s.Members {
			if i == j {
				continue
			}
			reachable := false
			for _, r := range s.Members[i].P.GossipRecipients() {
				if r.Equal(s.Members[j].Secret.PublicID()) {
					reachable = true
					break
				}
			}
			if !reachable {
				continue
			}
			if err := s.GossipOnce(i, j); err != nil {
				return err
			}
		}
	}
	return nil
}

// Converge runs up to maxRounds GossipRounds, stopping early once every
// member reports no unconsensused observations left.
func (s *Section) Converge(maxRounds int) error {
	for r := 0; r < maxRounds; r++ {
		if err := s.GossipRound(); err != nil {
			return err
		}
		if s.allCaughtUp() {
			return nil
		}
	}
	return nil
}

func (s *Section) allCaughtUp() bool {
	for _, m := range s.Members {
		if m.P.HasUnconsensusedObservations() {
			return false
		}
	}
	return true
}
