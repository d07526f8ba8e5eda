// Copyright (c) 2025 Erik Kassubek
//
// File: types.go
// Brief: Result and edge types for the causal graph
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package graph

import (
	"math"
	"sort"

	"causeway/event"
	"causeway/storage"

	"github.com/google/uuid"
)

// EdgeLabel classifies the causal relationship between a parent and
// child event (spec §3 CausalGraph).
type EdgeLabel string

// Possible values for EdgeLabel.
const (
	EdgeDirectCall           EdgeLabel = "DirectCall"
	EdgeAsyncSpawn           EdgeLabel = "AsyncSpawn"
	EdgeAsyncAwait           EdgeLabel = "AsyncAwait"
	EdgeDataDependency       EdgeLabel = "DataDependency"
	EdgeHttpRequestResponse  EdgeLabel = "HttpRequestResponse"
	EdgeDatabaseQueryResult  EdgeLabel = "DatabaseQueryResult"
)

// labelFor infers the edge label from the child event's kind (spec
// §4.C.1 step 4).
func labelFor(child *event.Event) EdgeLabel {
	switch child.Kind() {
	case event.KindAsyncSpawn:
		return EdgeAsyncSpawn
	case event.KindAsyncAwait:
		return EdgeAsyncAwait
	case event.KindHTTPResponse:
		return EdgeHttpRequestResponse
	case event.KindDatabaseResult:
		return EdgeDatabaseQueryResult
	case event.KindStateChange:
		return EdgeDataDependency
	default:
		return EdgeDirectCall
	}
}

type graphEdge struct {
	to    uuid.UUID
	label EdgeLabel
}

// RaceSeverity classifies a reported race pair (spec §4.C.3).
type RaceSeverity string

// Possible values for RaceSeverity.
const (
	SeverityCritical RaceSeverity = "CRITICAL"
	SeverityWarning  RaceSeverity = "WARNING"
	SeverityInfo     RaceSeverity = "INFO"
	SeverityMinor    RaceSeverity = "MINOR"
)

// RacePair is one reported concurrent-access pair.
type RacePair struct {
	E1       *event.Event `json:"e1"`
	E2       *event.Event `json:"e2"`
	Variable string       `json:"variable"`
	Severity RaceSeverity `json:"severity"`
}

// CriticalPath is the result of GetCriticalPath (spec §4.C.5).
type CriticalPath struct {
	Path                []*event.Event `json:"path"`
	TotalDurationMs     float64        `json:"total_duration_ms"`
	TraceTotalDurationMs float64       `json:"trace_total_duration_ms"`
	PercentageOfTotal   float64        `json:"percentage_of_total"`
}

// AuditEntry is one step of a variable's audit trail (spec §4.C.6).
type AuditEntry struct {
	Event                    *event.Event `json:"event"`
	HasCausalLinkToPrevious  bool         `json:"has_causal_link_to_previous"`
	IsRace                   bool         `json:"is_race"`
}

// ServiceDependencyResult is the result of GetServiceDependencies
// (spec §4.C.7).
type ServiceDependencyResult struct {
	Services      map[string]int    `json:"services"`
	Dependencies  map[string]int    `json:"dependencies"`
}

// Anomaly is one flagged deviation from a kind's historical baseline
// (spec §4.F).
type Anomaly struct {
	EventID            uuid.UUID    `json:"event_id"`
	KindName           string       `json:"kind_name"`
	ActualDurationMs   float64      `json:"actual_duration_ms"`
	ExpectedDurationMs float64      `json:"expected_duration_ms"`
	Sigma              float64      `json:"sigma"`
	Severity           RaceSeverity `json:"severity"`
}

// baselineStats is the mutable working form of storage.DurationStats
// kept while samples accumulate; compute converts it for
// persistence.
type baselineStats struct {
	durations []float64
}

func (b *baselineStats) compute() storage.DurationStats {
	n := len(b.durations)
	if n == 0 {
		return storage.DurationStats{}
	}
	sorted := append([]float64(nil), b.durations...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, d := range b.durations {
		sum += d
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, d := range b.durations {
		diff := d - mean
		variance += diff * diff
	}
	variance /= float64(n)

	p95Idx := int(0.95 * float64(n-1))

	return storage.DurationStats{
		Count:    n,
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		P95:      sorted[p95Idx],
		Min:      sorted[0],
		Max:      sorted[n-1],
	}
}
