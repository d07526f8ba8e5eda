// Copyright (c) 2025 Erik Kassubek
//
// File: vectorclock.go
// Brief: Vector clock used for the causality_vector of an event
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package clock

// VectorClock is a vector clock keyed by ComponentID rather than a
// fixed-size routine index, since components are thread ids hashed on
// the fly (spec §3: "causality_vector: ordered list of (component_id,
// clock) pairs"). The order slice preserves the order components were
// first added (replacing a value keeps its position), giving a stable
// wire representation.
type VectorClock struct {
	values map[ComponentID]uint64
	order  []ComponentID
}

// Pair is a single (component_id, clock) entry of a vector clock.
type Pair struct {
	Component ComponentID
	Clock     uint64
}

// NewVectorClock creates an empty vector clock.
//
// Returns:
//   - *VectorClock: the new, empty vector clock
func NewVectorClock() *VectorClock {
	return &VectorClock{values: make(map[ComponentID]uint64)}
}

// GetValue returns the clock value for a component, or 0 if the
// component is not present (an absent component and an explicit 0 are
// indistinguishable, matching spec §4.A's comparison rules).
//
// Parameter:
//   - c ComponentID: the component to look up
//
// Returns:
//   - uint64: the clock value, 0 if absent
func (vc *VectorClock) GetValue(c ComponentID) uint64 {
	if vc == nil {
		return 0
	}
	return vc.values[c]
}

// Has reports whether a component has an explicit entry in the clock.
//
// Parameter:
//   - c ComponentID: the component to check
//
// Returns:
//   - bool: true if c has an entry
func (vc *VectorClock) Has(c ComponentID) bool {
	if vc == nil {
		return false
	}
	_, ok := vc.values[c]
	return ok
}

// Upsert sets a component's clock value, replacing the existing entry
// if present and appending to the order otherwise. This is the exact
// operation spec §4.C.1 step 2 describes for folding in the emitting
// thread's own clock tick.
//
// Parameter:
//   - c ComponentID: the component to set
//   - value uint64: the new clock value
func (vc *VectorClock) Upsert(c ComponentID, value uint64) {
	if _, ok := vc.values[c]; !ok {
		vc.order = append(vc.order, c)
	}
	vc.values[c] = value
}

// Inc increments a component's clock value by one, upserting it.
//
// Parameter:
//   - c ComponentID: the component to increment
//
// Returns:
//   - uint64: the new clock value
func (vc *VectorClock) Inc(c ComponentID) uint64 {
	next := vc.values[c] + 1
	vc.Upsert(c, next)
	return next
}

// Pairs returns the vector clock's entries in stable order.
//
// Returns:
//   - []Pair: the (component, clock) pairs in insertion order
func (vc *VectorClock) Pairs() []Pair {
	if vc == nil {
		return nil
	}
	out := make([]Pair, 0, len(vc.order))
	for _, c := range vc.order {
		out = append(out, Pair{Component: c, Clock: vc.values[c]})
	}
	return out
}

// Len returns the number of distinct components in the clock. Storage
// ordering (spec §4.B) sorts by len(causality_vector) as a secondary
// key, so this is used directly by storage comparators.
//
// Returns:
//   - int: the number of components
func (vc *VectorClock) Len() int {
	if vc == nil {
		return 0
	}
	return len(vc.values)
}

// Copy returns an independent copy of the vector clock. Events never
// share a clock instance (spec §3 lifecycle: "never mutated
// thereafter"), so every event gets its own copy at ingest time.
//
// Returns:
//   - *VectorClock: the copy
func (vc *VectorClock) Copy() *VectorClock {
	if vc == nil {
		return NewVectorClock()
	}
	out := &VectorClock{
		values: make(map[ComponentID]uint64, len(vc.values)),
		order:  append([]ComponentID(nil), vc.order...),
	}
	for k, v := range vc.values {
		out.values[k] = v
	}
	return out
}

// FromPairs rebuilds a vector clock from its wire-format pairs,
// preserving their order. Used when deserializing an Event that
// arrived with an already-populated causality_vector.
//
// Parameter:
//   - pairs []Pair: the pairs to load, in the desired order
//
// Returns:
//   - *VectorClock: the reconstructed vector clock
func FromPairs(pairs []Pair) *VectorClock {
	vc := NewVectorClock()
	for _, p := range pairs {
		vc.Upsert(p.Component, p.Clock)
	}
	return vc
}

// HappenedBefore implements the §4.A vector-clock happens-before
// relation: e1 ⇒ e2 iff every component of e1 has a matching,
// less-or-equal component in e2, at least one is strictly less, and
// every component of e1's vector appears in e2's. Empty vectors are
// incomparable.
//
// Parameter:
//   - other *VectorClock: the candidate successor clock
//
// Returns:
//   - bool: true if vc happened-before other
func (vc *VectorClock) HappenedBefore(other *VectorClock) bool {
	if vc == nil || other == nil {
		return false
	}
	if vc.Len() == 0 || other.Len() == 0 {
		return false
	}

	strictlyLess := false
	for c, v := range vc.values {
		ov, ok := other.values[c]
		if !ok {
			return false
		}
		if v > ov {
			return false
		}
		if v < ov {
			strictlyLess = true
		}
	}
	return strictlyLess
}

// ConcurrentWith reports whether neither clock happened-before the
// other (spec glossary: "Concurrent events").
//
// Parameter:
//   - other *VectorClock: the clock to compare against
//
// Returns:
//   - bool: true if vc and other are concurrent
func (vc *VectorClock) ConcurrentWith(other *VectorClock) bool {
	return !vc.HappenedBefore(other) && !other.HappenedBefore(vc)
}
