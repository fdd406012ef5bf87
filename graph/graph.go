// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package graph

import (
	"fmt"
	"sort"

	"github.com/luxfi/parsec/graph/eventhash"
	"github.com/luxfi/parsec/internal/xset"
)

// Graph is the append-only, topologically ordered gossip DAG (spec §3,
// §4.1). Events are referenced by topological index, never by pointer,
// per design note §9.
type Graph struct {
	events    []*Event
	hashIndex map[eventhash.Hash]int
	// byCreator[peer][indexByCreator] is the set of topological indices of
	// every event ever inserted at that (peer, index) slot — size >= 2
	// means that peer has forked.
	byCreator map[PeerKey]map[uint64]xset.Set[int]
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		hashIndex: make(map[eventhash.Hash]int),
		byCreator: make(map[PeerKey]map[uint64]xset.Set[int]),
	}
}

// Len returns the number of events in the graph.
func (g *Graph) Len() int { return len(g.events) }

// Events returns every event in topological order. Callers must not
// mutate the returned slice.
func (g *Graph) Events() []*Event { return g.events }

// Get returns the event at topological index idx.
func (g *Graph) Get(idx int) (*Event, bool) {
	if idx < 0 || idx >= len(g.events) {
		return nil, false
	}
	return g.events[idx], true
}

// IndexOf returns the topological index of the event with the given hash.
func (g *Graph) IndexOf(h eventhash.Hash) (int, bool) {
	idx, ok := g.hashIndex[h]
	return idx, ok
}

// Has reports whether an event with hash h is already in the graph.
func (g *Graph) Has(h eventhash.Hash) bool {
	_, ok := g.hashIndex[h]
	return ok
}

// ForkBranches returns the set of topological indices sharing (peer, idx),
// i.e. the distinct branches created by peer at that index_by_creator.
func (g *Graph) ForkBranches(peer PeerKey, idx uint64) xset.Set[int] {
	byIdx, ok := g.byCreator[peer]
	if !ok {
		return nil
	}
	return byIdx[idx]
}

// Insert appends event to the graph, computing its cached fields. It
// rejects events whose hash is already present (spec §4.1).
func (g *Graph) Insert(e *Event) (int, error) {
	if g.Has(e.Hash) {
		return 0, fmt.Errorf("graph: event %s already present", e.Hash)
	}

	var selfParent, otherParent *Event
	e.SelfParentIndex = -1
	e.OtherParentIndex = -1
	if !e.Cause.SelfParent.IsZero() {
		idx, ok := g.IndexOf(e.Cause.SelfParent)
		if !ok {
			return 0, fmt.Errorf("graph: self-parent %s not found", e.Cause.SelfParent)
		}
		e.SelfParentIndex = idx
		selfParent = g.events[idx]
	}
	if !e.Cause.OtherParent.IsZero() {
		idx, ok := g.IndexOf(e.Cause.OtherParent)
		if !ok {
			return 0, fmt.Errorf("graph: other-parent %s not found", e.Cause.OtherParent)
		}
		e.OtherParentIndex = idx
		otherParent = g.events[idx]
	}

	if selfParent != nil {
		e.IndexByCreator = selfParent.IndexByCreator + 1
	} else {
		e.IndexByCreator = 0
	}

	creatorKey := KeyOf(e.Creator)
	e.AncestorInfo = mergeAncestorInfo(selfParent, otherParent, creatorKey, e.IndexByCreator)

	topoIdx := len(g.events)
	g.events = append(g.events, e)
	g.hashIndex[e.Hash] = topoIdx

	byIdx, ok := g.byCreator[creatorKey]
	if !ok {
		byIdx = make(map[uint64]xset.Set[int])
		g.byCreator[creatorKey] = byIdx
	}
	slot := byIdx[e.IndexByCreator]
	slot.Add(topoIdx)
	byIdx[e.IndexByCreator] = slot
	if slot.Len() >= 2 {
		info := e.AncestorInfo[creatorKey]
		info.Forks[e.IndexByCreator] = slot.Clone()
	}

	return topoIdx, nil
}

// mergeAncestorInfo implements the merge rule of spec §4.1: start from
// self-parent's map (or empty); for every peer in other-parent's map, keep
// the entry with the larger `last`, unioning fork sets on matching
// indexes; finally record the creator's own extended index.
func mergeAncestorInfo(selfParent, otherParent *Event, creator PeerKey, indexByCreator uint64) map[PeerKey]*AncestorInfo {
	result := make(map[PeerKey]*AncestorInfo)
	if selfParent != nil {
		for k, v := range selfParent.AncestorInfo {
			result[k] = v.clone()
		}
	}
	if otherParent != nil {
		for k, v := range otherParent.AncestorInfo {
			if existing, ok := result[k]; ok {
				if v.Last > existing.Last {
					existing.Last = v.Last
				}
				for idx, set := range v.Forks {
					cur, ok := existing.Forks[idx]
					if !ok {
						cur = set.Clone()
					} else {
						cur.Union(set)
					}
					existing.Forks[idx] = cur
				}
			} else {
				result[k] = v.clone()
			}
		}
	}

	self, ok := result[creator]
	if !ok {
		self = newAncestorInfo()
		result[creator] = self
	}
	if indexByCreator > self.Last {
		self.Last = indexByCreator
	}
	return result
}

// SelfParent returns e's self-parent event, if any.
func (g *Graph) SelfParent(e *Event) (*Event, bool) {
	if e.SelfParentIndex < 0 {
		return nil, false
	}
	return g.events[e.SelfParentIndex], true
}

// OtherParent returns e's other-parent event, if any.
func (g *Graph) OtherParent(e *Event) (*Event, bool) {
	if e.OtherParentIndex < 0 {
		return nil, false
	}
	return g.events[e.OtherParentIndex], true
}

// Ancestors yields e (inclusive) and every event reachable by following
// self- and other-parent edges, in reverse topological order. Implemented
// as an explicit worklist (no recursion), since event chains are unbounded.
func (g *Graph) Ancestors(e *Event) []*Event {
	visited := xset.New[int](16)
	var order []int
	stack := []int{mustIndexOf(g, e)}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Contains(idx) {
			continue
		}
		visited.Add(idx)
		order = append(order, idx)
		ev := g.events[idx]
		if ev.SelfParentIndex >= 0 {
			stack = append(stack, ev.SelfParentIndex)
		}
		if ev.OtherParentIndex >= 0 {
			stack = append(stack, ev.OtherParentIndex)
		}
	}
	// Every parent has a strictly smaller topological index than its
	// child, so descending index order is a reverse-topological order.
	sort.Sort(sort.Reverse(sort.IntSlice(order)))
	out := make([]*Event, len(order))
	for i, idx := range order {
		out[i] = g.events[idx]
	}
	return out
}

func mustIndexOf(g *Graph, e *Event) int {
	idx, ok := g.IndexOf(e.Hash)
	if !ok {
		panic(fmt.Sprintf("graph: event %s not present in graph", e.Hash))
	}
	return idx
}

// IsDescendant reports whether a is a descendant of b (inclusive: an event
// is its own descendant).
func (g *Graph) IsDescendant(a, b *Event) bool {
	aIdx := mustIndexOf(g, a)
	bIdx := mustIndexOf(g, b)
	if bIdx > aIdx {
		return false
	}
	if aIdx == bIdx {
		return true
	}
	visited := xset.New[int](16)
	stack := []int{aIdx}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if idx == bIdx {
			return true
		}
		if idx < bIdx || visited.Contains(idx) {
			continue
		}
		visited.Add(idx)
		ev := g.events[idx]
		if ev.SelfParentIndex >= 0 {
			stack = append(stack, ev.SelfParentIndex)
		}
		if ev.OtherParentIndex >= 0 {
			stack = append(stack, ev.OtherParentIndex)
		}
	}
	return false
}

// Sees reports whether x sees y: x descends from y and x does not descend
// from any provable fork by y's creator (spec §4.1).
func (g *Graph) Sees(x, y *Event) bool {
	if !g.IsDescendant(x, y) {
		return false
	}
	creatorKey := KeyOf(y.Creator)
	info, ok := x.AncestorInfo[creatorKey]
	if !ok {
		return true
	}
	return !info.HasProvenFork()
}

// StronglySees reports whether x strongly-sees y: the number of distinct
// peers P for which some event by P is both a descendant of y and an
// ancestor of x exceeds two-thirds of voterCount (spec §4.1).
func (g *Graph) StronglySees(x, y *Event, voterCount int) bool {
	if !g.IsDescendant(x, y) {
		return false
	}
	yIdx := mustIndexOf(g, y)
	seen := xset.New[PeerKey](voterCount)
	visited := xset.New[int](16)
	stack := []int{mustIndexOf(g, x)}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if idx < yIdx || visited.Contains(idx) {
			continue
		}
		visited.Add(idx)
		ev := g.events[idx]
		if idx == yIdx || g.isDescendantIdx(idx, yIdx) {
			seen.Add(KeyOf(ev.Creator))
		}
		if ev.SelfParentIndex >= 0 {
			stack = append(stack, ev.SelfParentIndex)
		}
		if ev.OtherParentIndex >= 0 {
			stack = append(stack, ev.OtherParentIndex)
		}
	}
	threshold := (2 * voterCount) / 3
	return seen.Len() > threshold
}

func (g *Graph) isDescendantIdx(aIdx, bIdx int) bool {
	if bIdx > aIdx {
		return false
	}
	if aIdx == bIdx {
		return true
	}
	return g.IsDescendant(g.events[aIdx], g.events[bIdx])
}
