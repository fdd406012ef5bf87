// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"fmt"

	"github.com/luxfi/log"

	"github.com/luxfi/parsec/graph"
	"github.com/luxfi/parsec/graph/eventhash"
	"github.com/luxfi/parsec/id"
	"github.com/luxfi/parsec/internal/errs"
	"github.com/luxfi/parsec/internal/metrics"
	"github.com/luxfi/parsec/internal/xset"
	"github.com/luxfi/parsec/malice"
	"github.com/luxfi/parsec/metaelection"
	"github.com/luxfi/parsec/observation"
	"github.com/luxfi/parsec/peers"
	"github.com/luxfi/parsec/wire"
)

// obsRecord is what the driver tracks per distinct Observation it has
// seen voted for (spec §4.3: "upsert the observation store entry").
type obsRecord struct {
	observation observation.Observation
	ownVote     bool
	consensused bool
}

// Parsec is one running instance of the protocol (spec §2): one peer's
// view of the gossip graph, its derived meta-elections, and the malice
// detector watching both. Exported operations are its entire public API
// (spec §2's FULL addition lists FromGenesis/FromExisting/Vote/
// GossipRecipients/CreateGossip/HandleRequest/HandleResponse/Poll/
// HaveVotedFor/HasUnconsensusedObservations/OurUnpolledObservations).
type Parsec struct {
	secret id.SecretID
	codec  id.Codec
	ourKey graph.PeerKey

	g          *graph.Graph
	peerList   *peers.List
	membership *membership
	detector   *malice.Detector
	elections  *metaelection.Registry

	observations map[observation.Hash]*obsRecord
	ourVotes     xset.Set[observation.Hash]

	// sentTo[peer] holds the hash of every event we have included in a
	// gossip message to that peer; a peer re-sending one of these back is
	// re-gossiping ground it knows we already hold (spec §4.5 Spam).
	sentTo map[graph.PeerKey]xset.Set[eventhash.Hash]

	ourLast *graph.Event

	blocks []Block

	pending []malice.Accusation

	log     log.Logger
	metrics *metrics.Metrics
}

// FromGenesis starts a brand-new section: our own Initial event, followed
// by our Genesis vote if we are a founding member (spec §4.2 invariant
// I1, spec §4.5 MissingGenesis).
func FromGenesis(secret id.SecretID, codec id.Codec, genesisGroup []id.PublicID, cfg Config) (*Parsec, error) {
	p := newParsec(secret, codec, peers.NewGenesis(genesisGroup), genesisGroup, cfg)

	initial, err := graph.NewInitial(secret)
	if err != nil {
		return nil, err
	}
	if err := p.addEvent(initial, false); err != nil {
		return nil, err
	}

	if p.peerList.Has(secret.PublicID(), peers.CapVote) {
		vote, err := observation.NewVote(secret, observation.Genesis(genesisGroup))
		if err != nil {
			return nil, err
		}
		ev, err := graph.NewObservation(secret, p.ourLast, vote)
		if err != nil {
			return nil, err
		}
		if err := p.addEvent(ev, false); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// FromExisting starts a Parsec instance joining a section already past
// genesis: currentSection is the membership as of now, genesisGroup is
// retained only so the malice detector still knows the original founding
// set (spec §4.5 IncorrectGenesis/UnexpectedGenesis keep referring to it
// forever). The instance starts with only its own Initial event in its
// graph and catches up via
// HandleRequest/HandleResponse, exactly as a section member that has been
// offline would (spec doesn't define a bulk state-transfer operation
// separate from ordinary gossip).
func FromExisting(secret id.SecretID, codec id.Codec, genesisGroup, currentSection []id.PublicID, cfg Config) (*Parsec, error) {
	p := newParsec(secret, codec, peers.NewGenesis(currentSection), genesisGroup, cfg)

	initial, err := graph.NewInitial(secret)
	if err != nil {
		return nil, err
	}
	if err := p.addEvent(initial, false); err != nil {
		return nil, err
	}
	return p, nil
}

func newParsec(secret id.SecretID, codec id.Codec, pl *peers.List, genesisGroup []id.PublicID, cfg Config) *Parsec {
	genesisKeys := make([]graph.PeerKey, len(genesisGroup))
	for i, gp := range genesisGroup {
		genesisKeys[i] = graph.KeyOf(gp)
	}
	mem := newMembership()
	mem.seedGenesis(genesisKeys)

	elections := metaelection.NewRegistry(cfg.Mode)
	elections.Start(pl.SortedVoterKeys(), 0)

	return &Parsec{
		secret:       secret,
		codec:        codec,
		ourKey:       graph.KeyOf(secret.PublicID()),
		g:            graph.New(),
		peerList:     pl,
		membership:   mem,
		detector:     malice.NewDetector(genesisGroup),
		elections:    elections,
		observations: make(map[observation.Hash]*obsRecord),
		sentTo:       make(map[graph.PeerKey]xset.Set[eventhash.Hash]),
		log:          cfg.logger(),
		metrics:      cfg.buildMetrics(),
	}
}

// Vote casts our own vote for o (spec §2 vote()). Returns
// errs.ErrInvalidSelfState if we do not currently hold CapVote, and
// errs.ErrDuplicateVote if we have already voted for an equal
// Observation.
func (p *Parsec) Vote(o observation.Observation) error {
	if !p.peerList.Has(p.secret.PublicID(), peers.CapVote) {
		return &errs.InvalidSelfState{Required: "VOTE", Actual: "none"}
	}
	h := observation.HashOf(o)
	if p.ourVotes.Contains(h) {
		return errs.ErrDuplicateVote
	}
	vote, err := observation.NewVote(p.secret, o)
	if err != nil {
		return err
	}
	ev, err := graph.NewObservation(p.secret, p.ourLast, vote)
	if err != nil {
		return err
	}
	return p.addEvent(ev, false)
}

// HaveVotedFor reports whether we have already cast a vote equal to o.
func (p *Parsec) HaveVotedFor(o observation.Observation) bool {
	return p.ourVotes.Contains(observation.HashOf(o))
}

// HasUnconsensusedObservations reports whether any observation this
// instance knows of is still awaiting a decision.
func (p *Parsec) HasUnconsensusedObservations() bool {
	for _, rec := range p.observations {
		if !rec.consensused {
			return true
		}
	}
	return false
}

// OurUnpolledObservations returns every observation we ourselves voted
// for that has not yet been decided.
func (p *Parsec) OurUnpolledObservations() []observation.Observation {
	var out []observation.Observation
	for _, rec := range p.observations {
		if rec.ownVote && !rec.consensused {
			out = append(out, rec.observation)
		}
	}
	return out
}

// Poll pops the oldest undelivered decided Block, if any (spec §2 poll()).
func (p *Parsec) Poll() (Block, bool) {
	if len(p.blocks) == 0 {
		return Block{}, false
	}
	b := p.blocks[0]
	p.blocks = p.blocks[1:]
	return b, true
}

// GossipRecipients returns every peer we may currently gossip to, other
// than ourselves (spec §4.7).
func (p *Parsec) GossipRecipients() []id.PublicID {
	var out []id.PublicID
	for _, s := range p.peerList.Senders() {
		if !s.Equal(p.secret.PublicID()) {
			out = append(out, s)
		}
	}
	return out
}

// CreateGossip records a Requesting event for target (or, if target is
// nil, the first available recipient) and returns the events target is
// believed to be missing, packed for transmission (spec §4.7).
func (p *Parsec) CreateGossip(target id.PublicID) (wire.Request, error) {
	if target == nil {
		recipients := p.GossipRecipients()
		if len(recipients) == 0 {
			return wire.Request{}, fmt.Errorf("consensus: %w: no gossip recipients available", errs.ErrInvalidPeerState)
		}
		target = recipients[0]
	}
	if !p.peerList.Has(target, peers.CapSend) {
		return wire.Request{}, &errs.InvalidPeerState{Required: "SEND", Actual: "none"}
	}

	reqEvent, err := graph.NewRequesting(p.secret, p.ourLast, target)
	if err != nil {
		return wire.Request{}, err
	}
	if err := p.addEvent(reqEvent, false); err != nil {
		return wire.Request{}, err
	}

	events := p.eventsToGossip(graph.KeyOf(target))
	p.noteSent(graph.KeyOf(target), events)
	return wire.Request{Events: packAll(events)}, nil
}

// HandleRequest processes an incoming gossip request from src, inserting
// every new event it carries (running malice detection on each), and
// returns the events src itself is missing (spec §4.3, §4.5, §4.7).
func (p *Parsec) HandleRequest(src id.PublicID, req wire.Request) (wire.Response, error) {
	if !p.peerList.Has(p.secret.PublicID(), peers.CapRecv) {
		return wire.Response{}, &errs.InvalidSelfState{Required: "RECV", Actual: "none"}
	}
	if !p.peerList.Has(src, peers.CapSend) {
		return wire.Response{}, &errs.InvalidPeerState{Required: "SEND", Actual: "none"}
	}

	lastForeign, err := p.ingestGossip(src, req.Events)
	if err != nil {
		return wire.Response{}, err
	}
	p.peerList = p.peerList.GrantRecv(src)

	if !p.peerList.Has(p.secret.PublicID(), peers.CapVote) {
		return wire.Response{}, errs.ErrPrematureGossip
	}

	if lastForeign != nil {
		syncEvent, err := graph.NewRequest(p.secret, p.ourLast, lastForeign)
		if err != nil {
			return wire.Response{}, err
		}
		if err := p.addEvent(syncEvent, false); err != nil {
			return wire.Response{}, err
		}
	}

	if err := p.voteOnPendingAccusations(); err != nil {
		return wire.Response{}, err
	}

	events := p.eventsToGossip(graph.KeyOf(src))
	p.noteSent(graph.KeyOf(src), events)
	return wire.Response{Events: packAll(events)}, nil
}

// HandleResponse processes an incoming gossip response from src (spec
// §4.3, §4.5, §4.7), symmetric to HandleRequest but synthesizing a
// Response sync-event and returning nothing.
func (p *Parsec) HandleResponse(src id.PublicID, resp wire.Response) error {
	if !p.peerList.Has(p.secret.PublicID(), peers.CapRecv) {
		return &errs.InvalidSelfState{Required: "RECV", Actual: "none"}
	}
	if !p.peerList.Has(src, peers.CapSend) {
		return &errs.InvalidPeerState{Required: "SEND", Actual: "none"}
	}

	lastForeign, err := p.ingestGossip(src, resp.Events)
	if err != nil {
		return err
	}

	if !p.peerList.Has(p.secret.PublicID(), peers.CapVote) {
		return errs.ErrPrematureGossip
	}

	if lastForeign != nil {
		syncEvent, err := graph.NewResponse(p.secret, p.ourLast, lastForeign)
		if err != nil {
			return err
		}
		if err := p.addEvent(syncEvent, false); err != nil {
			return err
		}
	}

	return p.voteOnPendingAccusations()
}

// ingestGossip unpacks and inserts every new event in packed, chunking on
// other-parent boundaries (spec §4.5) to run Accomplice detection on each
// chunk's newly-inserted events and Spam detection on any events the
// chunk re-sends that we had previously sent to src ourselves, and
// returns the last (topologically newest) event seen from src, for use as
// the sync-event's other-parent.
func (p *Parsec) ingestGossip(src id.PublicID, packed []wire.PackedEvent) (*graph.Event, error) {
	var lastForeign *graph.Event
	var chunk, repeated []*graph.Event

	srcKey := graph.KeyOf(src)
	flush := func() {
		if len(chunk) > 0 {
			p.queueAccusations(p.detector.Accomplice(p.g, src, chunk)...)
			chunk = nil
		}
		if len(repeated) > 0 {
			p.queueAccusations(p.detector.Spam(src, repeated, p.sentTo[srcKey].Contains)...)
			repeated = nil
		}
	}

	for _, pe := range packed {
		e, err := wire.Unpack(p.codec, pe)
		if err != nil {
			return nil, fmt.Errorf("consensus: unpacking gossip event: %w", err)
		}
		if p.g.Has(e.Hash) {
			repeated = append(repeated, e)
			if e.Cause.HasOtherParent() {
				flush()
			}
			continue
		}
		if err := p.addEvent(e, true); err != nil {
			// A validation failure short-circuits the containing message
			// (spec §7). Any accusation was already queued and is voted
			// at the next successfully handled message.
			p.log.Debug("rejected foreign event", "creator", e.Creator, "err", err)
			return nil, err
		}
		chunk = append(chunk, e)
		lastForeign = e
		if e.Cause.HasOtherParent() {
			flush()
		}
	}
	flush()
	return lastForeign, nil
}

// queueAccusations appends findings to the pending list and immediately
// marks each as our own in the detector, so a matching Accusation vote
// arriving from another peer later in the same message is not misread as
// InvalidAccusation (spec §4.5: "an accusation we neither pending-hold
// nor previously made ourselves").
func (p *Parsec) queueAccusations(accs ...malice.Accusation) {
	for _, acc := range accs {
		p.pending = append(p.pending, acc)
		p.detector.NoteOwnAccusation(acc)
	}
}

// voteOnPendingAccusations drains p.pending, casting our own Accusation
// vote for each finding we have not already voted for (spec §4.5: every
// detected malice becomes an Observation{Accusation} fed back through the
// normal vote pipeline).
func (p *Parsec) voteOnPendingAccusations() error {
	pending := p.pending
	p.pending = nil
	for _, acc := range pending {
		o := observation.AccusationOf(acc.Offender, acc.Malice)
		if p.HaveVotedFor(o) {
			continue
		}
		if err := p.Vote(o); err != nil {
			return err
		}
		if p.metrics != nil {
			p.metrics.AccusationsRaised.Inc()
		}
	}
	return nil
}

// noteSent records that events were included in a gossip message to
// peer, feeding ingestGossip's Spam predicate (spec §4.5: a peer keeps
// re-gossiping events it knows we already hold).
func (p *Parsec) noteSent(peer graph.PeerKey, events []*graph.Event) {
	set, ok := p.sentTo[peer]
	if !ok {
		set = xset.New[eventhash.Hash](len(events))
		p.sentTo[peer] = set
	}
	for _, e := range events {
		set.Add(e.Hash)
	}
}

// knownAncestorHashes returns the hashes of every event peer already
// holds, inferred from the ancestry of the newest event we have accepted
// from peer (anything peer created, it must already have every ancestor
// of). Used by eventsToGossip's §4.7 exclusion pass.
func (p *Parsec) knownAncestorHashes(peer graph.PeerKey) xset.Set[eventhash.Hash] {
	out := xset.New[eventhash.Hash](0)
	lastHash, ok := p.membership.LastKnownEvent(peer)
	if !ok {
		return out
	}
	idx, found := p.g.IndexOf(lastHash)
	if !found {
		return out
	}
	ev, ok := p.g.Get(idx)
	if !ok {
		return out
	}
	out.Add(lastHash)
	for _, anc := range p.g.Ancestors(ev) {
		out.Add(anc.Hash)
	}
	return out
}

// eventsToGossip implements spec §4.7: return every event recipient is
// not already known to hold, in topological order.
func (p *Parsec) eventsToGossip(recipient graph.PeerKey) []*graph.Event {
	known := p.knownAncestorHashes(recipient)
	events := p.g.Events()
	out := make([]*graph.Event, 0, len(events))
	for _, ev := range events {
		if !known.Contains(ev.Hash) {
			out = append(out, ev)
		}
	}
	return out
}

func packAll(events []*graph.Event) []wire.PackedEvent {
	out := make([]wire.PackedEvent, len(events))
	for i, e := range events {
		out[i] = wire.Pack(e)
	}
	return out
}

// resolveParentIndices resolves e's self/other-parent topological indices
// (and, from the self-parent, e.IndexByCreator) against the
// already-inserted graph without mutating it, so malice rules can walk
// e's parents and generation number (via Graph.SelfParent/OtherParent and
// Event.IndexByCreator) before e itself is inserted (spec §4.3's
// pre-process step runs before insertion). e.AncestorInfo is left unset:
// no pre-process rule needs e's own ancestor summary, only its parents'
// (already computed when those parents were inserted), and Graph.Insert
// computes it properly once the event is actually accepted.
func (p *Parsec) resolveParentIndices(e *graph.Event) error {
	e.SelfParentIndex = -1
	e.OtherParentIndex = -1
	e.IndexByCreator = 0
	if !e.Cause.SelfParent.IsZero() {
		idx, ok := p.g.IndexOf(e.Cause.SelfParent)
		if !ok {
			return fmt.Errorf("consensus: %w: self-parent %s", errs.ErrUnknownParent, e.Cause.SelfParent)
		}
		e.SelfParentIndex = idx
		e.IndexByCreator = p.g.Events()[idx].IndexByCreator + 1
	}
	if !e.Cause.OtherParent.IsZero() {
		idx, ok := p.g.IndexOf(e.Cause.OtherParent)
		if !ok {
			return fmt.Errorf("consensus: %w: other-parent %s", errs.ErrUnknownParent, e.Cause.OtherParent)
		}
		e.OtherParentIndex = idx
	}
	return nil
}

// addEvent implements the add_event pipeline of spec §4.3's seven steps.
func (p *Parsec) addEvent(e *graph.Event, foreign bool) error {
	if err := p.resolveParentIndices(e); err != nil {
		return err
	}

	if foreign {
		if acc, ok := p.detector.PreProcessReject(p.g, p.peerList, p.membership, e); ok {
			p.queueAccusations(*acc)
			return fmt.Errorf("consensus: %w: %s", errs.ErrInvalidEvent, acc)
		}
		p.queueAccusations(p.detector.PreProcessAccuseOnly(p.g, p.peerList, p.membership, e)...)
	}

	if e.Cause.Kind == graph.CauseObservation {
		h := e.Cause.Vote.Hash()
		rec, ok := p.observations[h]
		if !ok {
			rec = &obsRecord{observation: e.Cause.Vote.Observation}
			p.observations[h] = rec
		}
		if e.Creator.Equal(p.secret.PublicID()) {
			rec.ownVote = true
			p.ourVotes.Add(h)
		}
	}

	topoIdx, err := p.g.Insert(e)
	if err != nil {
		return err
	}
	p.membership.recordEvent(e)

	if e.Creator.Equal(p.secret.PublicID()) {
		p.ourLast = e
		if p.metrics != nil {
			p.metrics.EventsCreated.Inc()
		}
	} else if p.metrics != nil {
		p.metrics.EventsReceived.Inc()
	}

	if e.Cause.Kind != graph.CauseInitial {
		if op, ok := p.g.OtherParent(e); ok {
			p.membership.initFrom(graph.KeyOf(e.Creator), graph.KeyOf(op.Creator), p.indexOf(op))
		}
		p.processEvent(e, topoIdx)
	}

	if foreign {
		if acc, ok := p.detector.PostProcess(p.g, p.peerList, p.membership, e); ok {
			p.queueAccusations(*acc)
		}
	}
	return nil
}

func (p *Parsec) indexOf(e *graph.Event) int {
	idx, _ := p.g.IndexOf(e.Hash)
	return idx
}

// processEvent builds e's meta-event in the current election and tests
// for a decision (spec §4.3 step 6, §4.4).
func (p *Parsec) processEvent(e *graph.Event, topoIdx int) {
	cur := p.elections.Current()
	prev := p.elections.Previous()
	me := metaelection.CreateMetaEvent(p.g, cur, prev, e, topoIdx, p.isConsensused)
	if me == nil {
		return
	}
	if !metaelection.Decided(cur, me) {
		return
	}
	p.onDecision(cur, me, topoIdx)
}

func (p *Parsec) isConsensused(h observation.Hash) bool {
	rec, ok := p.observations[h]
	return ok && rec.consensused
}

// onDecision implements spec §4.3's decision handling: mark consensused,
// update membership, emit a Block, start the next election, and replay
// events from its new start_index through the triggering event.
func (p *Parsec) onDecision(el *metaelection.Election, me *metaelection.MetaEvent, triggerIdx int) {
	payloadHash, ok := metaelection.WinningPayload(el, me)
	if !ok {
		return
	}
	rec, ok := p.observations[payloadHash]
	if !ok {
		return
	}
	rec.consensused = true
	p.applyMembershipDecision(rec.observation, triggerIdx)

	p.blocks = append(p.blocks, p.buildBlock(payloadHash, rec.observation))
	if p.metrics != nil {
		p.metrics.BlocksEmitted.Inc()
	}
	p.log.Debug("decided payload", "handle", el.Handle, "payload", rec.observation, "triggerIdx", triggerIdx)

	newStart := p.earliestUnconsensusedIndex()
	p.elections.Start(p.peerList.SortedVoterKeys(), newStart)
	p.log.Trace("starting election", "startIndex", newStart)

	for idx := newStart; idx <= triggerIdx; idx++ {
		ev, ok := p.g.Get(idx)
		if !ok || ev.Cause.Kind == graph.CauseInitial {
			continue
		}
		p.processEvent(ev, idx)
	}
}

// applyMembershipDecision updates the live peer list and membership
// bookkeeping for a just-decided payload (spec §4.3: Add/Remove/
// Accusation decisions change the section's membership).
func (p *Parsec) applyMembershipDecision(o observation.Observation, topoIdx int) {
	switch o.Kind {
	case observation.KindAdd:
		p.peerList = p.peerList.Add(o.Peer)
		p.membership.recordChange(p.ourKey, graph.KeyOf(o.Peer), true, topoIdx)
	case observation.KindRemove:
		p.peerList = p.peerList.Remove(o.Peer)
		p.membership.recordChange(p.ourKey, graph.KeyOf(o.Peer), false, topoIdx)
	case observation.KindAccusation:
		if o.Malice.Kind.Provable() {
			p.peerList = p.peerList.Remove(o.Offender)
			p.membership.recordChange(p.ourKey, graph.KeyOf(o.Offender), false, topoIdx)
		}
	}
}

// buildBlock scans the graph for every vote matching payloadHash (spec
// §6: "Block: {payload, votes: map peer-id -> Vote}").
func (p *Parsec) buildBlock(payloadHash observation.Hash, payload observation.Observation) Block {
	votes := make(map[graph.PeerKey]observation.Vote)
	for _, ev := range p.g.Events() {
		if ev.Cause.Kind != graph.CauseObservation {
			continue
		}
		if ev.Cause.Vote.Hash() != payloadHash {
			continue
		}
		votes[graph.KeyOf(ev.Cause.Vote.Creator)] = ev.Cause.Vote
	}
	return Block{Payload: payload, Votes: votes}
}

// earliestUnconsensusedIndex returns the topological index of the
// earliest event carrying a still-unconsensused payload, or the graph's
// current length if none remain (spec §4.3: "start a new election at the
// topological index of the earliest still-unconsensused payload").
func (p *Parsec) earliestUnconsensusedIndex() int {
	for i, ev := range p.g.Events() {
		if ev.Cause.Kind != graph.CauseObservation {
			continue
		}
		h := ev.Cause.Vote.Hash()
		rec, ok := p.observations[h]
		if ok && !rec.consensused {
			return i
		}
	}
	return p.g.Len()
}

var _ malice.Membership = (*membership)(nil)
