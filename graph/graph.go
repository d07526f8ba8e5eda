// Copyright (c) 2025 Erik Kassubek
//
// File: graph.go
// Brief: Causal graph core: add_event and causal-order traversal
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package graph

import (
	"sort"
	"sync"

	"causeway/clock"
	"causeway/errs"
	"causeway/event"

	"github.com/google/uuid"
)

type threadState struct {
	mu    sync.Mutex
	clock uint64
	locks map[string]struct{}
}

// CausalGraph is the in-memory DAG of events plus per-thread clocks,
// lock sets and baseline/anomaly state (spec §3 CausalGraph). It is
// guarded by a single-writer/many-readers policy: AddEvent takes
// exclusive access, every query method takes shared access (spec §5).
type CausalGraph struct {
	mu sync.RWMutex

	vertices      map[uuid.UUID]*event.Event
	edges         map[uuid.UUID][]graphEdge
	traceRoots    map[uuid.UUID][]uuid.UUID
	traceEventIDs map[uuid.UUID][]uuid.UUID

	// threads holds one *threadState per thread_id so that mutating one
	// thread's clock/lock-set never serializes against another's (spec
	// §5), even though AddEvent itself is globally exclusive.
	threads sync.Map

	baselineMu        sync.RWMutex
	baselineStats     map[string]*baselineStats
	baselinesUpdated  map[uuid.UUID]bool

	concurrentMu    sync.Mutex
	concurrentCache map[uuid.UUID][]RacePair

	anomalyMu    sync.Mutex
	anomalyCache map[uuid.UUID][]Anomaly
}

// New constructs an empty causal graph.
//
// Returns:
//   - *CausalGraph: the new, empty graph
func New() *CausalGraph {
	return &CausalGraph{
		vertices:         make(map[uuid.UUID]*event.Event),
		edges:            make(map[uuid.UUID][]graphEdge),
		traceRoots:       make(map[uuid.UUID][]uuid.UUID),
		traceEventIDs:    make(map[uuid.UUID][]uuid.UUID),
		baselineStats:    make(map[string]*baselineStats),
		baselinesUpdated: make(map[uuid.UUID]bool),
		concurrentCache:  make(map[uuid.UUID][]RacePair),
		anomalyCache:     make(map[uuid.UUID][]Anomaly),
	}
}

func (g *CausalGraph) threadStateFor(threadID string) *threadState {
	if v, ok := g.threads.Load(threadID); ok {
		return v.(*threadState)
	}
	ts := &threadState{locks: make(map[string]struct{})}
	actual, _ := g.threads.LoadOrStore(threadID, ts)
	return actual.(*threadState)
}

// AddEvent ingests a single event into the graph: it assigns the
// thread's next clock value, builds the event's causality vector,
// snapshots then mutates the thread's held lock set, adds a vertex and
// (if indexed) a causal edge, and invalidates any trace-scoped
// analysis caches. The whole step is serialized per graph (spec
// §4.C.1).
//
// Parameter:
//   - e *event.Event: the event to ingest; its CausalityVector and
//     LockSet fields are populated in place
//
// Returns:
//   - error: non-nil if the event would create a self-referential edge
func (g *CausalGraph) AddEvent(e *event.Event) error {
	if e.ParentID != nil && *e.ParentID == e.ID {
		return errs.NewInternal("event cannot be its own parent: " + e.ID.String())
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.threadStateFor(e.Metadata.ThreadID)
	ts.mu.Lock()

	// Step 1: increment the thread's clock.
	ts.clock++
	currentClock := ts.clock

	// Step 2: build the outgoing causality vector.
	var vc *clock.VectorClock
	if e.ParentID != nil {
		if parent, ok := g.vertices[*e.ParentID]; ok {
			vc = parent.CausalityVector.Copy()
		}
	}
	if vc == nil {
		vc = clock.NewVectorClock()
	}
	component := clock.ComponentFromThread(e.Metadata.ThreadID)
	vc.Upsert(component, currentClock)
	e.CausalityVector = vc

	// Step 3: snapshot the thread's lock set before applying this
	// event's own lock effect.
	snapshot := make([]string, 0, len(ts.locks))
	for id := range ts.locks {
		snapshot = append(snapshot, id)
	}
	sort.Strings(snapshot)
	e.LockSet = snapshot

	switch p := e.Payload.(type) {
	case event.LockAcquire:
		ts.locks[p.LockID] = struct{}{}
	case event.LockRelease:
		delete(ts.locks, p.LockID)
	}
	ts.mu.Unlock()

	// Step 4: add the vertex and, if the parent is indexed, the edge;
	// otherwise this event is a trace root.
	g.vertices[e.ID] = e
	g.traceEventIDs[e.TraceID] = append(g.traceEventIDs[e.TraceID], e.ID)

	parentIndexed := false
	if e.ParentID != nil {
		if _, ok := g.vertices[*e.ParentID]; ok {
			parentIndexed = true
			g.edges[*e.ParentID] = append(g.edges[*e.ParentID], graphEdge{to: e.ID, label: labelFor(e)})
		}
	}
	if !parentIndexed {
		g.traceRoots[e.TraceID] = append(g.traceRoots[e.TraceID], e.ID)
	}

	// Step 5: invalidate cached analyses for this trace.
	g.concurrentMu.Lock()
	delete(g.concurrentCache, e.TraceID)
	g.concurrentMu.Unlock()
	g.anomalyMu.Lock()
	delete(g.anomalyCache, e.TraceID)
	g.anomalyMu.Unlock()

	return nil
}

// GetCausalOrder returns every event of a trace in stable topological
// (DFS preorder from each root, edge insertion order) order (spec
// §4.C.2).
//
// Parameter:
//   - traceID uuid.UUID: the trace to traverse
//
// Returns:
//   - []*event.Event: the events in causal order, empty if the trace
//     has no roots
func (g *CausalGraph) GetCausalOrder(traceID uuid.UUID) []*event.Event {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.causalOrderLocked(traceID)
}

func (g *CausalGraph) causalOrderLocked(traceID uuid.UUID) []*event.Event {
	roots := g.traceRoots[traceID]
	if len(roots) == 0 {
		return nil
	}

	var out []*event.Event
	visited := make(map[uuid.UUID]bool)

	var visit func(id uuid.UUID)
	visit = func(id uuid.UUID) {
		if visited[id] {
			return
		}
		visited[id] = true
		e, ok := g.vertices[id]
		if !ok {
			return
		}
		out = append(out, e)
		for _, ed := range g.edges[id] {
			visit(ed.to)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return out
}

// GetEvent looks up a single indexed event by id.
//
// Parameter:
//   - id uuid.UUID: the event id
//
// Returns:
//   - *event.Event: the event, nil if not indexed
//   - bool: true if found
func (g *CausalGraph) GetEvent(id uuid.UUID) (*event.Event, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.vertices[id]
	return e, ok
}

// TraceIDs returns every trace id currently indexed by the graph.
//
// Returns:
//   - []uuid.UUID: the known trace ids
func (g *CausalGraph) TraceIDs() []uuid.UUID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(g.traceEventIDs))
	for id := range g.traceEventIDs {
		out = append(out, id)
	}
	return out
}
