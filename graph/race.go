// Copyright (c) 2025 Erik Kassubek
//
// File: race.go
// Brief: Intra-trace and cross-trace race detection (spec §4.C.3/4.C.4)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package graph

import (
	"causeway/event"

	"github.com/google/uuid"
)

func lockSetsDisjoint(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return false
		}
	}
	return true
}

func severityFor(a1, a2 event.AccessType) RaceSeverity {
	switch {
	case a1.IsWrite() && a2.IsWrite():
		return SeverityCritical
	case a1.IsWrite() || a2.IsWrite():
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// qualifies applies the safe-pattern, happens-before and lock-set
// filters shared by intra-trace and global race detection (spec
// §4.C.3 steps 1, 3, 4). The different-context filter (step 2) is the
// caller's responsibility since its definition differs between the
// intra-trace and global variants (spec §4.C.4).
func qualifies(e1, e2 *event.Event, sc1, sc2 event.StateChange) bool {
	// Safe-pattern filter: skip if both are Read, both are AtomicRead.
	if sc1.AccessType == event.AccessRead && sc2.AccessType == event.AccessRead {
		return false
	}
	if sc1.AccessType == event.AccessAtomicRead && sc2.AccessType == event.AccessAtomicRead {
		return false
	}
	// Happens-before filter.
	if e1.HappenedBefore(e2) || e2.HappenedBefore(e1) {
		return false
	}
	// Lock-set filter.
	if !lockSetsDisjoint(e1.LockSet, e2.LockSet) {
		return false
	}
	return true
}

// FindConcurrentEvents returns every racing pair of StateChange events
// within one trace, memoized per trace (spec §4.C.3).
//
// Parameter:
//   - traceID uuid.UUID: the trace to analyze
//
// Returns:
//   - []RacePair: the qualifying pairs, possibly empty
func (g *CausalGraph) FindConcurrentEvents(traceID uuid.UUID) []RacePair {
	g.concurrentMu.Lock()
	if cached, ok := g.concurrentCache[traceID]; ok {
		g.concurrentMu.Unlock()
		return cached
	}
	g.concurrentMu.Unlock()

	g.mu.RLock()
	ids := append([]uuid.UUID(nil), g.traceEventIDs[traceID]...)
	events := make([]*event.Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, g.vertices[id])
	}
	g.mu.RUnlock()

	pairs := racesAmong(events, false)

	g.concurrentMu.Lock()
	g.concurrentCache[traceID] = pairs
	g.concurrentMu.Unlock()
	return pairs
}

// FindGlobalConcurrentEvents applies the same race filters across
// every trace simultaneously: a pair qualifies if it differs in thread
// or trace (spec §4.C.4).
//
// Returns:
//   - []RacePair: every qualifying cross-trace or cross-thread pair
func (g *CausalGraph) FindGlobalConcurrentEvents() []RacePair {
	g.mu.RLock()
	events := make([]*event.Event, 0, len(g.vertices))
	for _, e := range g.vertices {
		events = append(events, e)
	}
	g.mu.RUnlock()

	return racesAmong(events, true)
}

// racesAmong finds qualifying same-variable StateChange pairs. When
// crossTrace is false (intra-trace, spec §4.C.3) a pair must differ in
// thread. When true (global, spec §4.C.4) a pair must differ in thread
// OR trace.
func racesAmong(events []*event.Event, crossTrace bool) []RacePair {
	byVariable := map[string][]*event.Event{}
	for _, e := range events {
		if sc, ok := e.Payload.(event.StateChange); ok {
			byVariable[sc.Variable] = append(byVariable[sc.Variable], e)
		}
	}

	var out []RacePair
	for variable, group := range byVariable {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				e1, e2 := group[i], group[j]

				differentContext := e1.Metadata.ThreadID != e2.Metadata.ThreadID
				if crossTrace {
					differentContext = differentContext || e1.TraceID != e2.TraceID
				}
				if !differentContext {
					continue
				}

				sc1 := e1.Payload.(event.StateChange)
				sc2 := e2.Payload.(event.StateChange)
				if !qualifies(e1, e2, sc1, sc2) {
					continue
				}
				out = append(out, RacePair{
					E1:       e1,
					E2:       e2,
					Variable: variable,
					Severity: severityFor(sc1.AccessType, sc2.AccessType),
				})
			}
		}
	}
	return out
}
