// Copyright (c) 2025 Erik Kassubek
//
// File: dependencies.go
// Brief: Service dependency extraction (spec §4.C.7)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package graph

import "github.com/google/uuid"

// GetServiceDependencies walks a trace's causal order, counting events
// per service and incrementing a (parent_service, child_service) pair
// whenever a parent/child edge crosses a service boundary (spec
// §4.C.7).
//
// Parameter:
//   - traceID uuid.UUID: the trace to inspect
//
// Returns:
//   - ServiceDependencyResult: per-service event counts and
//     cross-service dependency counts
func (g *CausalGraph) GetServiceDependencies(traceID uuid.UUID) ServiceDependencyResult {
	g.mu.RLock()
	defer g.mu.RUnlock()

	order := g.causalOrderLocked(traceID)

	services := map[string]int{}
	deps := map[string]int{}

	parentOf := map[uuid.UUID]uuid.UUID{}
	for id, children := range g.edges {
		for _, c := range children {
			parentOf[c.to] = id
		}
	}

	for _, e := range order {
		services[e.Metadata.ServiceName]++
		if parentID, ok := parentOf[e.ID]; ok {
			if parent, ok := g.vertices[parentID]; ok && parent.Metadata.ServiceName != e.Metadata.ServiceName {
				key := parent.Metadata.ServiceName + "->" + e.Metadata.ServiceName
				deps[key]++
			}
		}
	}

	return ServiceDependencyResult{Services: services, Dependencies: deps}
}
