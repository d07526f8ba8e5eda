// Copyright (c) 2025 Erik Kassubek
//
// File: criticalpath.go
// Brief: Longest-duration DAG path (spec §4.C.5)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package graph

import (
	"causeway/errs"
	"causeway/event"

	"github.com/google/uuid"
)

func durationMs(e *event.Event) float64 {
	return e.Metadata.DurationMs()
}

// GetCriticalPath returns the longest-duration path through a trace's
// DAG (spec §4.C.5).
//
// Parameter:
//   - traceID uuid.UUID: the trace to analyze
//
// Returns:
//   - CriticalPath: the critical path and its totals
//   - error: non-nil if the trace has no events
func (g *CausalGraph) GetCriticalPath(traceID uuid.UUID) (CriticalPath, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	order := g.causalOrderLocked(traceID)
	roots := g.traceRoots[traceID]
	if len(order) == 0 || len(roots) == 0 {
		return CriticalPath{}, errs.NewInvalidInput("no events")
	}

	cumulative := make(map[uuid.UUID]float64, len(order))
	predecessor := make(map[uuid.UUID]uuid.UUID, len(order))

	for _, r := range roots {
		if e, ok := g.vertices[r]; ok {
			cumulative[r] = durationMs(e)
		}
	}

	traceTotal := 0.0
	for _, e := range order {
		traceTotal += durationMs(e)
	}

	for _, e := range order {
		cur, ok := cumulative[e.ID]
		if !ok {
			continue
		}
		for _, ed := range g.edges[e.ID] {
			child, ok := g.vertices[ed.to]
			if !ok {
				continue
			}
			newCum := cur + durationMs(child)
			existing, seen := cumulative[ed.to]
			if !seen || newCum > existing {
				cumulative[ed.to] = newCum
				predecessor[ed.to] = e.ID
			}
		}
	}

	var best uuid.UUID
	bestCum := -1.0
	bestSeen := false
	for _, e := range order {
		c, ok := cumulative[e.ID]
		if !ok {
			continue
		}
		if !bestSeen || c > bestCum {
			best = e.ID
			bestCum = c
			bestSeen = true
		}
	}

	var path []*event.Event
	id := best
	for {
		e := g.vertices[id]
		path = append([]*event.Event{e}, path...)
		prev, ok := predecessor[id]
		if !ok {
			break
		}
		id = prev
	}

	percentage := 0.0
	if traceTotal > 0 {
		percentage = bestCum / traceTotal * 100
	}

	return CriticalPath{
		Path:                 path,
		TotalDurationMs:      bestCum,
		TraceTotalDurationMs: traceTotal,
		PercentageOfTotal:    percentage,
	}, nil
}
