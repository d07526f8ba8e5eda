// Copyright (c) 2025 Erik Kassubek
//
// File: baseline.go
// Brief: Online baselines and anomaly detection (spec §4.F)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package graph

import (
	"math"

	"causeway/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	minBaselineSamples = 5
	sigmaThreshold     = 1.5
	pctDiffThreshold   = 20.0
)

// UpdateBaselines folds trace's durations into their kind baselines.
// A trace contributes at most once across the life of the process
// (spec §4.F, invariant 6 "baseline purity").
//
// Parameter:
//   - traceID uuid.UUID: the trace to fold in
func (g *CausalGraph) UpdateBaselines(traceID uuid.UUID) {
	g.baselineMu.Lock()
	if g.baselinesUpdated[traceID] {
		g.baselineMu.Unlock()
		return
	}
	g.baselinesUpdated[traceID] = true
	g.baselineMu.Unlock()

	g.mu.RLock()
	ids := append([]uuid.UUID(nil), g.traceEventIDs[traceID]...)
	events := make([]durationSample, 0, len(ids))
	for _, id := range ids {
		e := g.vertices[id]
		if e.Metadata.DurationNs != nil {
			events = append(events, durationSample{kindName: e.KindName(), ms: e.Metadata.DurationMs()})
		}
	}
	g.mu.RUnlock()

	g.baselineMu.Lock()
	for _, s := range events {
		b, ok := g.baselineStats[s.kindName]
		if !ok {
			b = &baselineStats{}
			g.baselineStats[s.kindName] = b
		}
		b.durations = append(b.durations, s.ms)
	}
	g.baselineMu.Unlock()
}

type durationSample struct {
	kindName string
	ms       float64
}

// BaselineSnapshot returns the current computed statistics for a kind
// name, used to persist baselines to storage.
//
// Parameter:
//   - kindName string: the baseline key
//
// Returns:
//   - storage.DurationStats: the stats
//   - bool: true if any samples exist for this kind
func (g *CausalGraph) BaselineSnapshot(kindName string) (storage.DurationStats, bool) {
	g.baselineMu.RLock()
	defer g.baselineMu.RUnlock()
	b, ok := g.baselineStats[kindName]
	if !ok || len(b.durations) == 0 {
		return storage.DurationStats{}, false
	}
	return b.compute(), true
}

// AllBaselineKinds returns every kind name with at least one sample.
//
// Returns:
//   - []string: the kind names
func (g *CausalGraph) AllBaselineKinds() []string {
	g.baselineMu.RLock()
	defer g.baselineMu.RUnlock()
	out := make([]string, 0, len(g.baselineStats))
	for k := range g.baselineStats {
		out = append(out, k)
	}
	return out
}

// SeedBaseline loads a persisted baseline directly (used at startup
// replay, spec §4.E).
//
// Parameter:
//   - kindName string: the baseline key
//   - stats storage.DurationStats: the persisted statistics
func (g *CausalGraph) SeedBaseline(kindName string, stats storage.DurationStats) {
	g.baselineMu.Lock()
	defer g.baselineMu.Unlock()
	b := &baselineStats{}
	if stats.Count > 0 {
		// Reconstruct a synthetic sample set with the persisted count:
		// every sample is the persisted mean except the first (set to
		// min) and the last (set to max), so with two or more samples
		// min and max match the snapshot, while the rebuilt mean and
		// std_dev match it only when min and max sit symmetrically
		// around the mean. The count is what detect_anomalies checks,
		// and fresh samples will refine the distribution as new traces
		// arrive.
		for i := 0; i < stats.Count; i++ {
			b.durations = append(b.durations, stats.Mean)
		}
		if len(b.durations) > 0 {
			b.durations[0] = stats.Min
			b.durations[len(b.durations)-1] = stats.Max
		}
	}
	g.baselineStats[kindName] = b
}

// DetectAnomalies warms the baseline from every other already-ingested
// trace, then flags events whose duration deviates from their kind's
// historical baseline (spec §4.F). Results are cached per trace
// *before* traceID's own durations are absorbed into the baseline
// (invariant 7, "anomaly decision independence").
//
// Parameter:
//   - traceID uuid.UUID: the trace to analyze
//
// Returns:
//   - []Anomaly: the flagged anomalies, possibly empty
func (g *CausalGraph) DetectAnomalies(traceID uuid.UUID) []Anomaly {
	g.anomalyMu.Lock()
	if cached, ok := g.anomalyCache[traceID]; ok {
		g.anomalyMu.Unlock()
		return cached
	}
	g.anomalyMu.Unlock()

	// Step 1: warm the baseline from every other trace.
	others := g.TraceIDs()
	var eg errgroup.Group
	for _, t := range others {
		t := t
		if t == traceID {
			continue
		}
		eg.Go(func() error {
			g.UpdateBaselines(t)
			return nil
		})
	}
	_ = eg.Wait()

	g.mu.RLock()
	ids := append([]uuid.UUID(nil), g.traceEventIDs[traceID]...)
	events := make([]durationSample, 0, len(ids))
	eventIDs := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		e := g.vertices[id]
		if e.Metadata.DurationNs != nil {
			events = append(events, durationSample{kindName: e.KindName(), ms: e.Metadata.DurationMs()})
			eventIDs = append(eventIDs, id)
		}
	}
	g.mu.RUnlock()

	// Step 2: sufficiency check.
	sufficient := false
	for _, s := range events {
		if stats, ok := g.BaselineSnapshot(s.kindName); ok && stats.Count >= minBaselineSamples {
			sufficient = true
			break
		}
	}
	if !sufficient {
		g.UpdateBaselines(traceID)
		return []Anomaly{}
	}

	// Step 3: detection.
	var anomalies []Anomaly
	for i, s := range events {
		stats, ok := g.BaselineSnapshot(s.kindName)
		if !ok || stats.Count < minBaselineSamples {
			continue
		}

		var sigma float64
		flagged := false
		if stats.StdDev > 0 {
			sigma = math.Abs(s.ms-stats.Mean) / stats.StdDev
			flagged = sigma > sigmaThreshold
		} else if stats.Mean != 0 {
			pctDiff := math.Abs(s.ms-stats.Mean) / stats.Mean * 100
			sigma = pctDiff / 10
			flagged = pctDiff > pctDiffThreshold
		}
		if !flagged {
			continue
		}

		severity := SeverityInfo
		switch {
		case sigma > 5:
			severity = SeverityCritical
		case sigma > 3:
			severity = SeverityWarning
		default:
			severity = SeverityMinor
		}

		anomalies = append(anomalies, Anomaly{
			EventID:            eventIDs[i],
			KindName:           s.kindName,
			ActualDurationMs:   s.ms,
			ExpectedDurationMs: stats.Mean,
			Sigma:              sigma,
			Severity:           severity,
		})
	}
	if anomalies == nil {
		anomalies = []Anomaly{}
	}

	// Step 4: cache first, then absorb.
	g.anomalyMu.Lock()
	g.anomalyCache[traceID] = anomalies
	g.anomalyMu.Unlock()

	g.UpdateBaselines(traceID)
	return anomalies
}
