// Copyright (c) 2025 Erik Kassubek
//
// File: audit.go
// Brief: Per-variable audit trail (spec §4.C.6)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package graph

import (
	"sort"

	"causeway/event"

	"github.com/google/uuid"
)

// GetAuditTrail sorts every StateChange on variable within traceID by
// timestamp and computes, for each successive pair, whether a causal
// link connects them and whether they race (spec §4.C.6).
//
// Parameter:
//   - traceID uuid.UUID: the trace to inspect
//   - variable string: the variable name to trail
//
// Returns:
//   - []AuditEntry: the ordered trail, empty if the variable was never
//     touched in this trace
func (g *CausalGraph) GetAuditTrail(traceID uuid.UUID, variable string) []AuditEntry {
	g.mu.RLock()
	ids := append([]uuid.UUID(nil), g.traceEventIDs[traceID]...)
	var changes []*event.Event
	for _, id := range ids {
		e := g.vertices[id]
		if sc, ok := e.Payload.(event.StateChange); ok && sc.Variable == variable {
			changes = append(changes, e)
		}
	}
	g.mu.RUnlock()

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Timestamp.Before(changes[j].Timestamp)
	})

	entries := make([]AuditEntry, 0, len(changes))
	for i, cur := range changes {
		if i == 0 {
			entries = append(entries, AuditEntry{Event: cur, HasCausalLinkToPrevious: true, IsRace: false})
			continue
		}
		prev := changes[i-1]
		hasCausalLink := prev.HappenedBefore(cur)

		prevSC := prev.Payload.(event.StateChange)
		curSC := cur.Payload.(event.StateChange)
		isRace := prev.Metadata.ThreadID != cur.Metadata.ThreadID &&
			!hasCausalLink &&
			lockSetsDisjoint(prev.LockSet, cur.LockSet) &&
			(prevSC.AccessType.IsWrite() || curSC.AccessType.IsWrite())

		entries = append(entries, AuditEntry{Event: cur, HasCausalLinkToPrevious: hasCausalLink, IsRace: isRace})
	}
	return entries
}
