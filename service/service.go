// Copyright (c) 2025 Erik Kassubek
//
// File: service.go
// Brief: Analysis service: orchestrates ingestion, owns graph + baselines + caches
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package service

import (
	"context"
	"time"

	"causeway/cache"
	"causeway/errs"
	"causeway/event"
	"causeway/graph"
	"causeway/logging"
	"causeway/storage"

	"github.com/google/uuid"
)

var log = logging.Component("service")

// AnalysisService owns exactly one causal graph and one storage
// backend (spec §4.E, §9 "The engine owns exactly one
// AnalysisService; callers hold a shared reference").
type AnalysisService struct {
	graph   *graph.CausalGraph
	storage storage.Backend

	globalRaces      *cache.Query[[]graph.RacePair]
	serviceHealth    *cache.Query[[]storage.ServiceHealth]
	performance      *cache.Query[storage.PerformanceMetrics]
	hotspots         *cache.Query[storage.Hotspots]
	raceCandidates   *cache.Query[[]storage.RaceCandidate]
}

// New constructs an analysis service over an empty graph and the
// given storage backend. Call Restore to replay prior state before
// serving traffic.
//
// Parameter:
//   - backend storage.Backend: the persistence layer
//   - cacheTTL time.Duration: TTL applied to every expensive aggregate
//
// Returns:
//   - *AnalysisService: the new service
func New(backend storage.Backend, cacheTTL time.Duration) *AnalysisService {
	return &AnalysisService{
		graph:          graph.New(),
		storage:        backend,
		globalRaces:    cache.New[[]graph.RacePair](cacheTTL),
		serviceHealth:  cache.New[[]storage.ServiceHealth](cacheTTL),
		performance:    cache.New[storage.PerformanceMetrics](cacheTTL),
		hotspots:       cache.New[storage.Hotspots](cacheTTL),
		raceCandidates: cache.New[[]storage.RaceCandidate](cacheTTL),
	}
}

// Restore replays every persisted event into the graph in storage
// order, then seeds every persisted baseline (spec §4.E startup).
//
// Parameter:
//   - ctx context.Context: cancellation for the storage reads
//
// Returns:
//   - error: non-nil if storage could not be read
func (s *AnalysisService) Restore(ctx context.Context) error {
	events, err := s.storage.GetAllEvents(ctx)
	if err != nil {
		return errs.NewStorageUnavailable(err)
	}
	for _, e := range events {
		if err := s.graph.AddEvent(e); err != nil {
			log.WithError(err).Warn("skipping event during restore")
		}
	}

	kinds, err := s.storage.GetAllBaselineOperations(ctx)
	if err != nil {
		return errs.NewStorageUnavailable(err)
	}
	for _, kindName := range kinds {
		stats, ok, err := s.storage.GetBaselineMetric(ctx, kindName)
		if err != nil {
			return errs.NewStorageUnavailable(err)
		}
		if ok {
			s.graph.SeedBaseline(kindName, stats)
		}
	}

	log.WithField("events", len(events)).WithField("baselines", len(kinds)).Info("restored analysis service state")
	return nil
}

// AddEvent persists the event first, then indexes it into the graph;
// a storage failure aborts before the graph is mutated (spec §4.E).
//
// Parameter:
//   - ctx context.Context: cancellation for the storage write
//   - e *event.Event: the event to ingest
//
// Returns:
//   - error: non-nil if storage rejected the event or the graph
//     rejected the resulting edge
func (s *AnalysisService) AddEvent(ctx context.Context, e *event.Event) error {
	if err := s.storage.AddEvent(ctx, e); err != nil {
		return errs.NewStorageUnavailable(err)
	}
	return s.graph.AddEvent(e)
}

// UpdateBaselines folds a trace's durations into their kind baselines.
//
// Parameter:
//   - traceID uuid.UUID: the trace to fold in
func (s *AnalysisService) UpdateBaselines(traceID uuid.UUID) {
	s.graph.UpdateBaselines(traceID)
}

// DetectAnomalies returns the anomalies flagged for a trace.
func (s *AnalysisService) DetectAnomalies(traceID uuid.UUID) []graph.Anomaly {
	return s.graph.DetectAnomalies(traceID)
}

// GetCriticalPath returns the longest-duration path through a trace.
func (s *AnalysisService) GetCriticalPath(traceID uuid.UUID) (graph.CriticalPath, error) {
	return s.graph.GetCriticalPath(traceID)
}

// FindConcurrentEvents returns the intra-trace race pairs for a trace.
func (s *AnalysisService) FindConcurrentEvents(traceID uuid.UUID) []graph.RacePair {
	return s.graph.FindConcurrentEvents(traceID)
}

// FindGlobalConcurrentEvents returns every cross-trace race pair,
// cached at cacheTTL granularity since it scans the whole graph.
func (s *AnalysisService) FindGlobalConcurrentEvents() ([]graph.RacePair, error) {
	return s.globalRaces.GetOrFetch(func() ([]graph.RacePair, error) {
		return s.graph.FindGlobalConcurrentEvents(), nil
	})
}

// GetCrossTraceRaces filters the cached global race pairs down to one
// variable.
//
// Parameter:
//   - variable string: the variable to filter on
func (s *AnalysisService) GetCrossTraceRaces(variable string) ([]graph.RacePair, error) {
	all, err := s.FindGlobalConcurrentEvents()
	if err != nil {
		return nil, err
	}
	out := make([]graph.RacePair, 0)
	for _, p := range all {
		if p.Variable == variable {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetServiceDependencies returns the per-trace service dependency
// rollup.
func (s *AnalysisService) GetServiceDependencies(traceID uuid.UUID) graph.ServiceDependencyResult {
	return s.graph.GetServiceDependencies(traceID)
}

// GetAuditTrail returns the audit trail for one variable of a trace.
func (s *AnalysisService) GetAuditTrail(traceID uuid.UUID, variable string) []graph.AuditEntry {
	return s.graph.GetAuditTrail(traceID, variable)
}

// GetTraceTree returns the trace's events in causal order.
func (s *AnalysisService) GetTraceTree(traceID uuid.UUID) []*event.Event {
	return s.graph.GetCausalOrder(traceID)
}

// GetCausalOrder is an alias for GetTraceTree kept for naming parity
// with spec §4.E's method list.
func (s *AnalysisService) GetCausalOrder(traceID uuid.UUID) []*event.Event {
	return s.graph.GetCausalOrder(traceID)
}

// TraceAnalysisData is the combined bundle returned by
// GetTraceAnalysisData (spec §4.E).
type TraceAnalysisData struct {
	Events       []*event.Event                  `json:"events"`
	AuditTrails  map[string][]graph.AuditEntry    `json:"audit_trails"`
	CriticalPath graph.CriticalPath               `json:"critical_path"`
	Anomalies    []graph.Anomaly                  `json:"anomalies"`
	Dependencies graph.ServiceDependencyResult     `json:"dependencies"`
	Concurrent   []graph.RacePair                  `json:"concurrent_events"`
}

// GetTraceAnalysisData assembles the combined per-trace bundle: every
// event, an audit trail per variable touched, the critical path,
// detected anomalies, service dependencies and intra-trace races
// (spec §4.E).
//
// Parameter:
//   - traceID uuid.UUID: the trace to analyze
func (s *AnalysisService) GetTraceAnalysisData(traceID uuid.UUID) TraceAnalysisData {
	events := s.graph.GetCausalOrder(traceID)

	variables := map[string]struct{}{}
	for _, e := range events {
		if sc, ok := e.Payload.(event.StateChange); ok {
			variables[sc.Variable] = struct{}{}
		}
	}
	trails := make(map[string][]graph.AuditEntry, len(variables))
	for v := range variables {
		trails[v] = s.graph.GetAuditTrail(traceID, v)
	}

	criticalPath, err := s.graph.GetCriticalPath(traceID)
	if err != nil {
		criticalPath = graph.CriticalPath{}
	}

	return TraceAnalysisData{
		Events:       events,
		AuditTrails:  trails,
		CriticalPath: criticalPath,
		Anomalies:    s.graph.DetectAnomalies(traceID),
		Dependencies: s.graph.GetServiceDependencies(traceID),
		Concurrent:   s.graph.FindConcurrentEvents(traceID),
	}
}

// Storage exposes the underlying backend for the query surface's
// storage-only aggregates (trace listings, service health, etc).
//
// Returns:
//   - storage.Backend: the backend this service persists through
func (s *AnalysisService) Storage() storage.Backend {
	return s.storage
}

// ServiceHealth returns the cached per-service health rollup (spec
// §4.G Health).
func (s *AnalysisService) ServiceHealth(ctx context.Context, windowMinutes int) ([]storage.ServiceHealth, error) {
	return s.serviceHealth.GetOrFetch(func() ([]storage.ServiceHealth, error) {
		return s.storage.GetServiceHealth(ctx, windowMinutes)
	})
}

// PerformanceMetrics returns the cached latency/throughput rollup
// (spec §4.G Performance).
func (s *AnalysisService) PerformanceMetrics(ctx context.Context, limit int) (storage.PerformanceMetrics, error) {
	return s.performance.GetOrFetch(func() (storage.PerformanceMetrics, error) {
		return s.storage.GetPerformanceMetrics(ctx, limit)
	})
}

// Hotspots returns the cached top-N variable/service-call rollup.
func (s *AnalysisService) Hotspots(ctx context.Context) (storage.Hotspots, error) {
	return s.hotspots.GetOrFetch(func() (storage.Hotspots, error) {
		return s.storage.GetSystemHotspots(ctx)
	})
}

// GlobalRaceCandidates returns the cached cross-trace race candidate
// summary.
func (s *AnalysisService) GlobalRaceCandidates(ctx context.Context) ([]storage.RaceCandidate, error) {
	return s.raceCandidates.GetOrFetch(func() ([]storage.RaceCandidate, error) {
		return s.storage.GetGlobalRaceCandidates(ctx)
	})
}

// InvalidateGlobalCaches clears every global aggregate cache. Called
// by the engine after absorbing a batch, since new events can change
// every global rollup.
func (s *AnalysisService) InvalidateGlobalCaches() {
	s.globalRaces.Invalidate()
	s.serviceHealth.Invalidate()
	s.performance.Invalidate()
	s.hotspots.Invalidate()
	s.raceCandidates.Invalidate()
}
