// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package observation

// Bag counts votes per ObservationHash, ported from the teacher's
// utils/bag.Bag[T]. Used by metaelection.WinningPayload to tally the
// payloads carried by the voters that decided true (spec §4.4).
type Bag struct {
	counts map[Hash]int
	size   int
}

// NewBag returns an empty Bag.
func NewBag() Bag {
	return Bag{counts: make(map[Hash]int)}
}

// Add increments the count for h.
func (b *Bag) Add(h Hash) {
	if b.counts == nil {
		b.counts = make(map[Hash]int)
	}
	b.counts[h]++
	b.size++
}

// Count returns the number of votes recorded for h.
func (b Bag) Count(h Hash) int {
	return b.counts[h]
}

// Len returns the total number of votes recorded (with duplicates).
func (b Bag) Len() int {
	return b.size
}
