// Copyright (c) 2025 Erik Kassubek
//
// File: memory.go
// Brief: Reference in-memory storage backend (spec §4.B)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"causeway/errs"
	"causeway/event"

	"github.com/google/uuid"
)

// traceIndex is the per-trace, lock-guarded list of event ids in
// insertion order (spec §4.B "a per-trace lock-guarded vector of
// event ids").
type traceIndex struct {
	mu  sync.RWMutex
	ids []uuid.UUID
}

// Memory is the reference in-memory Backend: a concurrent map for
// events, a per-trace lock-guarded id list, and plain maps (guarded by
// their own mutex) for baselines and distributed-span/edge state. The
// map from trace id to its id list is guarded by one mutex (tracesMu),
// which AddEvent takes briefly to look up or create the trace's list;
// appending to that list then only takes the per-trace lock.
type Memory struct {
	events sync.Map // uuid.UUID -> *event.Event

	tracesMu sync.Mutex
	traces   map[uuid.UUID]*traceIndex

	baselineMu sync.RWMutex
	baselines  map[string]DurationStats

	spanMu sync.RWMutex
	spans  map[string]*event.DistributedSpan

	edgeMu         sync.Mutex
	traceEdges     map[uuid.UUID][]*event.DistributedEdge
	materialized   map[uuid.UUID]map[string]struct{}
	pendingByFrom  map[string][]*event.DistributedEdge
	pendingByTo    map[string][]*event.DistributedEdge
}

// NewMemory constructs an empty in-memory backend.
//
// Returns:
//   - *Memory: the new backend
func NewMemory() *Memory {
	return &Memory{
		traces:        make(map[uuid.UUID]*traceIndex),
		baselines:     make(map[string]DurationStats),
		spans:         make(map[string]*event.DistributedSpan),
		traceEdges:    make(map[uuid.UUID][]*event.DistributedEdge),
		materialized:  make(map[uuid.UUID]map[string]struct{}),
		pendingByFrom: make(map[string][]*event.DistributedEdge),
		pendingByTo:   make(map[string][]*event.DistributedEdge),
	}
}

func (m *Memory) traceIdx(traceID uuid.UUID, create bool) *traceIndex {
	m.tracesMu.Lock()
	defer m.tracesMu.Unlock()
	idx, ok := m.traces[traceID]
	if !ok {
		if !create {
			return nil
		}
		idx = &traceIndex{}
		m.traces[traceID] = idx
	}
	return idx
}

// AddEvent persists an event durably before returning; re-adding the
// same id is a no-op (idempotent per spec §4.B).
func (m *Memory) AddEvent(ctx context.Context, e *event.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, loaded := m.events.LoadOrStore(e.ID, e); loaded {
		return nil
	}
	idx := m.traceIdx(e.TraceID, true)
	idx.mu.Lock()
	idx.ids = append(idx.ids, e.ID)
	idx.mu.Unlock()
	return nil
}

// GetEvent looks up a single event by id.
func (m *Memory) GetEvent(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	v, ok := m.events.Load(id)
	if !ok {
		return nil, errs.NewNotFound("event", id.String())
	}
	return v.(*event.Event), nil
}

// GetTraceEvents returns every event of a trace, ordered by
// (timestamp, |causality_vector|, id) per spec §4.B.
func (m *Memory) GetTraceEvents(ctx context.Context, traceID uuid.UUID) ([]*event.Event, error) {
	idx := m.traceIdx(traceID, false)
	if idx == nil {
		return nil, nil
	}
	idx.mu.RLock()
	ids := append([]uuid.UUID(nil), idx.ids...)
	idx.mu.RUnlock()

	events := make([]*event.Event, 0, len(ids))
	for _, id := range ids {
		if v, ok := m.events.Load(id); ok {
			events = append(events, v.(*event.Event))
		}
	}
	sortEvents(events)
	return events, nil
}

// GetAllEvents returns every event across every trace, ordered by
// (timestamp, |causality_vector|, id), used to replay the graph at
// startup.
func (m *Memory) GetAllEvents(ctx context.Context) ([]*event.Event, error) {
	var out []*event.Event
	m.events.Range(func(_, v interface{}) bool {
		out = append(out, v.(*event.Event))
		return true
	})
	sortEvents(out)
	return out, nil
}

// GetAllTraceIDs returns every trace id known to storage.
func (m *Memory) GetAllTraceIDs(ctx context.Context) ([]uuid.UUID, error) {
	m.tracesMu.Lock()
	defer m.tracesMu.Unlock()
	out := make([]uuid.UUID, 0, len(m.traces))
	for id := range m.traces {
		out = append(out, id)
	}
	return out, nil
}

func sortEvents(events []*event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.CausalityVector.Len() != b.CausalityVector.Len() {
			return a.CausalityVector.Len() < b.CausalityVector.Len()
		}
		return a.ID.String() < b.ID.String()
	})
}

// CountEvents is a cheap, possibly-approximate count (spec §4.B).
func (m *Memory) CountEvents(ctx context.Context) (int, error) {
	n := 0
	m.events.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n, nil
}

// CountTraces is a cheap, possibly-approximate count.
func (m *Memory) CountTraces(ctx context.Context) (int, error) {
	m.tracesMu.Lock()
	defer m.tracesMu.Unlock()
	return len(m.traces), nil
}

func (m *Memory) summarize(traceID uuid.UUID) (TraceSummary, bool) {
	idx := m.traceIdx(traceID, false)
	if idx == nil {
		return TraceSummary{}, false
	}
	idx.mu.RLock()
	ids := append([]uuid.UUID(nil), idx.ids...)
	idx.mu.RUnlock()
	if len(ids) == 0 {
		return TraceSummary{}, false
	}

	seenServices := map[string]struct{}{}
	var first, last time.Time
	for i, id := range ids {
		v, ok := m.events.Load(id)
		if !ok {
			continue
		}
		e := v.(*event.Event)
		seenServices[e.Metadata.ServiceName] = struct{}{}
		if i == 0 || e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if i == 0 || e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	services := make([]string, 0, len(seenServices))
	for s := range seenServices {
		services = append(services, s)
	}
	sort.Strings(services)

	return TraceSummary{
		TraceID:        traceID,
		EventCount:     len(ids),
		FirstTimestamp: first,
		LastTimestamp:  last,
		Services:       services,
		ServiceCount:   len(services),
	}, true
}

// GetTraceSummaries returns a page of trace summaries ordered by
// last_timestamp desc.
func (m *Memory) GetTraceSummaries(ctx context.Context, page, size int, minEvents int) ([]TraceSummary, int, error) {
	ids, _ := m.GetAllTraceIDs(ctx)
	var all []TraceSummary
	for _, id := range ids {
		s, ok := m.summarize(id)
		if ok && s.EventCount >= minEvents {
			all = append(all, s)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].LastTimestamp.After(all[j].LastTimestamp)
	})
	return paginate(all, page, size), len(all), nil
}

// GetTraceSummariesByService returns the page of trace summaries for
// traces that contain at least one event from the named service.
func (m *Memory) GetTraceSummariesByService(ctx context.Context, service string, page, size int) ([]TraceSummary, int, error) {
	ids, _ := m.GetAllTraceIDs(ctx)
	var all []TraceSummary
	for _, id := range ids {
		s, ok := m.summarize(id)
		if !ok {
			continue
		}
		for _, svc := range s.Services {
			if svc == service {
				all = append(all, s)
				break
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].LastTimestamp.After(all[j].LastTimestamp)
	})
	return paginate(all, page, size), len(all), nil
}

func paginate(all []TraceSummary, page, size int) []TraceSummary {
	if size <= 0 {
		return nil
	}
	start := page * size
	if start >= len(all) {
		return []TraceSummary{}
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// GetTraceRoots returns the event ids of a trace with no parent.
func (m *Memory) GetTraceRoots(ctx context.Context, traceID uuid.UUID) ([]uuid.UUID, error) {
	events, err := m.GetTraceEvents(ctx, traceID)
	if err != nil {
		return nil, err
	}
	var roots []uuid.UUID
	for _, e := range events {
		if e.ParentID == nil {
			roots = append(roots, e.ID)
		}
	}
	return roots, nil
}

// SaveBaseline upserts one kind's baseline statistics.
func (m *Memory) SaveBaseline(ctx context.Context, kindName string, stats DurationStats) error {
	m.baselineMu.Lock()
	defer m.baselineMu.Unlock()
	m.baselines[kindName] = stats
	return nil
}

// SaveBaselinesBatch upserts several kinds' baseline statistics.
func (m *Memory) SaveBaselinesBatch(ctx context.Context, snapshots []BaselineSnapshot) error {
	m.baselineMu.Lock()
	defer m.baselineMu.Unlock()
	for _, s := range snapshots {
		m.baselines[s.KindName] = s.Stats
	}
	return nil
}

// GetBaselineMetric returns one kind's baseline, if any.
func (m *Memory) GetBaselineMetric(ctx context.Context, kindName string) (DurationStats, bool, error) {
	m.baselineMu.RLock()
	defer m.baselineMu.RUnlock()
	s, ok := m.baselines[kindName]
	return s, ok, nil
}

// GetAllBaselineOperations returns every kind name with a saved
// baseline.
func (m *Memory) GetAllBaselineOperations(ctx context.Context) ([]string, error) {
	m.baselineMu.RLock()
	defer m.baselineMu.RUnlock()
	out := make([]string, 0, len(m.baselines))
	for k := range m.baselines {
		out = append(out, k)
	}
	return out, nil
}

// SaveDistributedSpan upserts a span by its id, then drains both
// orphan-edge pending tables for that span id (spec §4.B orphan-edge
// rule, step 4).
func (m *Memory) SaveDistributedSpan(ctx context.Context, span *event.DistributedSpan) error {
	event.StampLocalHost(span)

	m.spanMu.Lock()
	m.spans[span.SpanID] = span
	m.spanMu.Unlock()

	m.edgeMu.Lock()
	defer m.edgeMu.Unlock()
	for _, e := range m.pendingByFrom[span.SpanID] {
		m.materializeLocked(e)
	}
	for _, e := range m.pendingByTo[span.SpanID] {
		m.materializeLocked(e)
	}
	delete(m.pendingByFrom, span.SpanID)
	delete(m.pendingByTo, span.SpanID)
	return nil
}

// GetDistributedSpan looks up a span by id.
func (m *Memory) GetDistributedSpan(ctx context.Context, spanID string) (*event.DistributedSpan, bool, error) {
	m.spanMu.RLock()
	defer m.spanMu.RUnlock()
	s, ok := m.spans[spanID]
	return s, ok, nil
}

// GetDistributedSpans returns every span belonging to a trace.
func (m *Memory) GetDistributedSpans(ctx context.Context, traceID uuid.UUID) ([]*event.DistributedSpan, error) {
	m.spanMu.RLock()
	defer m.spanMu.RUnlock()
	var out []*event.DistributedSpan
	for _, s := range m.spans {
		if s.TraceID == traceID.String() {
			out = append(out, s)
		}
	}
	return out, nil
}

// AddDistributedEdge files the edge under the traces of its known
// endpoints immediately, and always queues it into both pending
// tables so a later SaveDistributedSpan can materialize it (spec §4.B
// orphan-edge rule).
func (m *Memory) AddDistributedEdge(ctx context.Context, edge *event.DistributedEdge) error {
	m.edgeMu.Lock()
	defer m.edgeMu.Unlock()

	m.pendingByFrom[edge.UpstreamSpanID] = append(m.pendingByFrom[edge.UpstreamSpanID], edge)
	m.pendingByTo[edge.DownstreamSpanID] = append(m.pendingByTo[edge.DownstreamSpanID], edge)
	m.materializeLocked(edge)
	return nil
}

// materializeLocked files edge under the trace(s) of its currently
// known endpoints, honoring the de-duplication key. Caller must hold
// edgeMu.
func (m *Memory) materializeLocked(edge *event.DistributedEdge) {
	m.spanMu.RLock()
	from, fromOK := m.spans[edge.UpstreamSpanID]
	to, toOK := m.spans[edge.DownstreamSpanID]
	m.spanMu.RUnlock()

	if fromOK {
		fromTrace, err := uuid.Parse(from.TraceID)
		if err == nil {
			m.fileLocked(fromTrace, edge)
		}
	}
	if toOK {
		toTrace, err := uuid.Parse(to.TraceID)
		if err == nil && (!fromOK || to.TraceID != from.TraceID) {
			m.fileLocked(toTrace, edge)
		}
	}
}

func (m *Memory) fileLocked(traceID uuid.UUID, edge *event.DistributedEdge) {
	set, ok := m.materialized[traceID]
	if !ok {
		set = make(map[string]struct{})
		m.materialized[traceID] = set
	}
	key := edge.DedupKey() + "|" + string(edge.LinkType)
	if _, dup := set[key]; dup {
		return
	}
	set[key] = struct{}{}
	m.traceEdges[traceID] = append(m.traceEdges[traceID], edge)
}

// GetDistributedEdges returns every materialized edge for a trace.
func (m *Memory) GetDistributedEdges(ctx context.Context, traceID uuid.UUID) ([]*event.DistributedEdge, error) {
	m.edgeMu.Lock()
	defer m.edgeMu.Unlock()
	return append([]*event.DistributedEdge(nil), m.traceEdges[traceID]...), nil
}

// GetAllServices aggregates event/trace counts per service.
func (m *Memory) GetAllServices(ctx context.Context) ([]ServiceSummary, error) {
	counts := map[string]*ServiceSummary{}
	traceSeen := map[string]map[uuid.UUID]struct{}{}

	m.events.Range(func(_, v interface{}) bool {
		e := v.(*event.Event)
		svc := e.Metadata.ServiceName
		s, ok := counts[svc]
		if !ok {
			s = &ServiceSummary{Name: svc}
			counts[svc] = s
			traceSeen[svc] = map[uuid.UUID]struct{}{}
		}
		s.EventCount++
		traceSeen[svc][e.TraceID] = struct{}{}
		return true
	})

	out := make([]ServiceSummary, 0, len(counts))
	for svc, s := range counts {
		s.TraceCount = len(traceSeen[svc])
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetServiceDependenciesGlobal returns the cross-service edges
// touching one named service.
func (m *Memory) GetServiceDependenciesGlobal(ctx context.Context, service string) (ServiceDependencies, error) {
	deps := ServiceDependencies{CallsTo: map[string]int{}, CalledBy: map[string]int{}}
	summaries, err := m.GetAllDistributedEdges(ctx)
	if err != nil {
		return deps, err
	}
	for _, s := range summaries {
		if s.FromService == service {
			deps.CallsTo[s.ToService] += s.Count
		}
		if s.ToService == service {
			deps.CalledBy[s.FromService] += s.Count
		}
	}
	return deps, nil
}

// GetAllDistributedEdges rolls up every distributed edge by
// (from_service, to_service, link_type), excluding self-edges.
func (m *Memory) GetAllDistributedEdges(ctx context.Context) ([]DistributedEdgeSummary, error) {
	m.edgeMu.Lock()
	all := map[uuid.UUID][]*event.DistributedEdge{}
	for trace, edges := range m.traceEdges {
		all[trace] = append(all[trace], edges...)
	}
	m.edgeMu.Unlock()

	type key struct {
		from, to string
		link     event.DistributedLinkType
	}
	rollup := map[key]int{}
	for _, edges := range all {
		for _, e := range edges {
			if e.UpstreamService == e.DownstreamService {
				continue
			}
			rollup[key{e.UpstreamService, e.DownstreamService, e.LinkType}]++
		}
	}
	out := make([]DistributedEdgeSummary, 0, len(rollup))
	for k, n := range rollup {
		out = append(out, DistributedEdgeSummary{FromService: k.from, ToService: k.to, LinkType: k.link, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromService != out[j].FromService {
			return out[i].FromService < out[j].FromService
		}
		return out[i].ToService < out[j].ToService
	})
	return out, nil
}

// GetGlobalRaceCandidates groups StateChange events by variable across
// all traces (spec §4.G "Global race candidates").
func (m *Memory) GetGlobalRaceCandidates(ctx context.Context) ([]RaceCandidate, error) {
	type accum struct {
		traces  map[uuid.UUID]struct{}
		threads map[string]struct{}
		writes  int
		reads   int
	}
	byVar := map[string]*accum{}

	m.events.Range(func(_, v interface{}) bool {
		e := v.(*event.Event)
		sc, ok := e.Payload.(event.StateChange)
		if !ok {
			return true
		}
		a, ok := byVar[sc.Variable]
		if !ok {
			a = &accum{traces: map[uuid.UUID]struct{}{}, threads: map[string]struct{}{}}
			byVar[sc.Variable] = a
		}
		a.traces[e.TraceID] = struct{}{}
		a.threads[e.Metadata.ThreadID] = struct{}{}
		if sc.AccessType.IsWrite() {
			a.writes++
		} else {
			a.reads++
		}
		return true
	})

	var out []RaceCandidate
	for variable, a := range byVar {
		if len(a.traces) <= 1 && len(a.threads) <= 1 {
			continue
		}
		hasWrites := a.writes > 0
		hasReads := a.reads > 0
		severity := "INFO"
		switch {
		case hasWrites && hasReads:
			severity = "WARNING"
		case hasWrites && a.writes > 0 && len(a.threads) > 1 && !hasReads:
			severity = "CRITICAL"
		case hasWrites:
			severity = "WARNING"
		}
		out = append(out, RaceCandidate{
			Variable:    variable,
			TraceCount:  len(a.traces),
			ThreadCount: len(a.threads),
			HasWrites:   hasWrites,
			HasReads:    hasReads,
			Severity:    severity,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variable < out[j].Variable })
	return out, nil
}

// GetSystemHotspots returns the top-10 variables by access count and
// top-10 cross-service call pairs by count.
func (m *Memory) GetSystemHotspots(ctx context.Context) (Hotspots, error) {
	varCount := map[string]int{}
	m.events.Range(func(_, v interface{}) bool {
		e := v.(*event.Event)
		if sc, ok := e.Payload.(event.StateChange); ok {
			varCount[sc.Variable]++
		}
		return true
	})
	vars := make([]VariableHotspot, 0, len(varCount))
	for k, n := range varCount {
		vars = append(vars, VariableHotspot{Variable: k, AccessCount: n})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].AccessCount > vars[j].AccessCount })
	if len(vars) > 10 {
		vars = vars[:10]
	}

	edges, err := m.GetAllDistributedEdges(ctx)
	if err != nil {
		return Hotspots{}, err
	}
	calls := make([]ServiceCallHotspot, 0, len(edges))
	for _, e := range edges {
		calls = append(calls, ServiceCallHotspot{FromService: e.FromService, ToService: e.ToService, Count: e.Count})
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].Count > calls[j].Count })
	if len(calls) > 10 {
		calls = calls[:10]
	}

	return Hotspots{TopVariables: vars, TopServiceCalls: calls}, nil
}

// GetServiceHealth computes the per-service health rollup (spec §4.G
// Health).
func (m *Memory) GetServiceHealth(ctx context.Context, windowMinutes int) ([]ServiceHealth, error) {
	window := time.Duration(windowMinutes) * time.Minute
	now := nowFunc()

	type accum struct {
		traces     map[uuid.UUID]struct{}
		eventCount int
		lastSeen   time.Time
	}
	byService := map[string]*accum{}

	m.events.Range(func(_, v interface{}) bool {
		e := v.(*event.Event)
		if now.Sub(e.Timestamp) > window {
			return true
		}
		a, ok := byService[e.Metadata.ServiceName]
		if !ok {
			a = &accum{traces: map[uuid.UUID]struct{}{}}
			byService[e.Metadata.ServiceName] = a
		}
		a.traces[e.TraceID] = struct{}{}
		a.eventCount++
		if e.Timestamp.After(a.lastSeen) {
			a.lastSeen = e.Timestamp
		}
		return true
	})

	var out []ServiceHealth
	for svc, a := range byService {
		minutesSince := now.Sub(a.lastSeen).Minutes()
		status := HealthCritical
		switch {
		case minutesSince < 5:
			status = HealthHealthy
		case minutesSince < 30:
			status = HealthWarning
		}
		avg := 0.0
		if len(a.traces) > 0 {
			avg = float64(a.eventCount) / float64(len(a.traces))
		}
		out = append(out, ServiceHealth{
			Service:              svc,
			Status:                status,
			TraceCount:            len(a.traces),
			AvgEventsPerTrace:     avg,
			MinutesSinceActivity:  minutesSince,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

// GetPerformanceMetrics computes the latency/throughput rollup (spec
// §4.G Performance).
func (m *Memory) GetPerformanceMetrics(ctx context.Context, limit int) (PerformanceMetrics, error) {
	summaries, _, err := m.GetTraceSummaries(ctx, 0, limit, 0)
	if err != nil {
		return PerformanceMetrics{}, err
	}
	if len(summaries) == 0 {
		return PerformanceMetrics{}, nil
	}

	durations := make([]float64, 0, len(summaries))
	var minTS, maxTS time.Time
	for i, s := range summaries {
		d := float64(s.LastTimestamp.Sub(s.FirstTimestamp).Microseconds()) / 1000.0
		durations = append(durations, d)
		if i == 0 || s.FirstTimestamp.Before(minTS) {
			minTS = s.FirstTimestamp
		}
		if i == 0 || s.LastTimestamp.After(maxTS) {
			maxTS = s.LastTimestamp
		}
	}
	sort.Float64s(durations)

	slowSample := summaries
	if len(slowSample) > 5 {
		slowSample = slowSample[:5]
	}
	typeDur := map[string][]float64{}
	totalEvents := 0
	for _, s := range slowSample {
		events, err := m.GetTraceEvents(ctx, s.TraceID)
		if err != nil {
			continue
		}
		for _, e := range events {
			totalEvents++
			typeDur[e.KindName()] = append(typeDur[e.KindName()], e.Metadata.DurationMs())
		}
	}
	var slow []SlowOperation
	for name, ds := range typeDur {
		avg := mean(ds)
		if avg > 100 {
			slow = append(slow, SlowOperation{Name: name, AvgMs: avg, SampleCount: len(ds)})
		}
	}
	sort.Slice(slow, func(i, j int) bool { return slow[i].AvgMs > slow[j].AvgMs })

	spanSeconds := maxTS.Sub(minTS).Seconds()
	if spanSeconds < 1 {
		spanSeconds = 1
	}
	totalEventsAll, _ := m.CountEvents(ctx)

	return PerformanceMetrics{
		AvgTraceDurationMs: mean(durations),
		P50Ms:              percentile(durations, 0.50),
		P95Ms:              percentile(durations, 0.95),
		P99Ms:              percentile(durations, 0.99),
		SlowOperations:     slow,
		EventsPerSecond:    float64(totalEventsAll) / spanSeconds,
		TracesPerSecond:    float64(len(summaries)) / spanSeconds,
	}, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// CleanupOldTraces removes traces where every event is older than the
// retention cutoff.
func (m *Memory) CleanupOldTraces(ctx context.Context, retentionHours int) (int, error) {
	cutoff := nowFunc().Add(-time.Duration(retentionHours) * time.Hour)
	ids, _ := m.GetAllTraceIDs(ctx)

	deleted := 0
	for _, traceID := range ids {
		events, err := m.GetTraceEvents(ctx, traceID)
		if err != nil || len(events) == 0 {
			continue
		}
		allOld := true
		for _, e := range events {
			if e.Timestamp.After(cutoff) {
				allOld = false
				break
			}
		}
		if !allOld {
			continue
		}

		m.tracesMu.Lock()
		delete(m.traces, traceID)
		m.tracesMu.Unlock()
		for _, e := range events {
			m.events.Delete(e.ID)
		}
		m.edgeMu.Lock()
		delete(m.traceEdges, traceID)
		delete(m.materialized, traceID)
		m.edgeMu.Unlock()
		deleted++
	}
	return deleted, nil
}

// Clear wipes all state. Test hook.
func (m *Memory) Clear(ctx context.Context) error {
	m.events.Range(func(k, _ interface{}) bool {
		m.events.Delete(k)
		return true
	})
	m.tracesMu.Lock()
	m.traces = make(map[uuid.UUID]*traceIndex)
	m.tracesMu.Unlock()

	m.baselineMu.Lock()
	m.baselines = make(map[string]DurationStats)
	m.baselineMu.Unlock()

	m.spanMu.Lock()
	m.spans = make(map[string]*event.DistributedSpan)
	m.spanMu.Unlock()

	m.edgeMu.Lock()
	m.traceEdges = make(map[uuid.UUID][]*event.DistributedEdge)
	m.materialized = make(map[uuid.UUID]map[string]struct{})
	m.pendingByFrom = make(map[string][]*event.DistributedEdge)
	m.pendingByTo = make(map[string][]*event.DistributedEdge)
	m.edgeMu.Unlock()
	return nil
}

// nowFunc is overridable by tests that need a fixed reference instant.
var nowFunc = time.Now
