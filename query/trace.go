// Copyright (c) 2025 Erik Kassubek
//
// File: trace.go
// Brief: Formatting for the per-trace query endpoints (spec §6.2)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package query

import (
	"strconv"

	"causeway/event"
	"causeway/graph"
	"causeway/service"
)

// TraceAnalysis is the intra-trace analysis block of the trace detail
// response.
type TraceAnalysis struct {
	ConcurrentEvents int                `json:"concurrent_events"`
	PotentialRaces   int                `json:"potential_races"`
	RaceDetails      []graph.RacePair   `json:"race_details"`
	Anomalies        []graph.Anomaly    `json:"anomalies"`
}

// TraceDetail is the payload of `GET /api/traces/{id}` (spec §6.2).
type TraceDetail struct {
	Events       []*event.Event                `json:"events"`
	AuditTrails  map[string][]graph.AuditEntry `json:"audit_trails"`
	Analysis     TraceAnalysis                 `json:"analysis"`
	CriticalPath graph.CriticalPath            `json:"critical_path"`
	Anomalies    []graph.Anomaly               `json:"anomalies"`
	Dependencies graph.ServiceDependencyResult `json:"dependencies"`
}

// FormatTraceDetail builds the combined trace-detail payload from a
// service's bundled analysis data.
//
// Parameter:
//   - data service.TraceAnalysisData: the bundle returned by
//     AnalysisService.GetTraceAnalysisData
//
// Returns:
//   - TraceDetail: the wire-shaped response payload
func FormatTraceDetail(data service.TraceAnalysisData) TraceDetail {
	return TraceDetail{
		Events:      data.Events,
		AuditTrails: data.AuditTrails,
		Analysis: TraceAnalysis{
			ConcurrentEvents: len(data.Concurrent),
			PotentialRaces:   len(data.Concurrent),
			RaceDetails:      data.Concurrent,
			Anomalies:        data.Anomalies,
		},
		CriticalPath: data.CriticalPath,
		Anomalies:    data.Anomalies,
		Dependencies: data.Dependencies,
	}
}

// IngestResult is the payload of the ingestion endpoint (spec §6.1).
type IngestResult struct {
	Ingested int `json:"ingested"`
	Errors   int `json:"errors"`
}

// FormatIngestResult builds the ingestion summary message.
//
// Parameter:
//   - ingested int: the number of events successfully enqueued
//   - errs int: the number that failed (e.g. queue full)
//
// Returns:
//   - string: the human-readable summary (spec §6.1 `"Ingested N
//     events"`)
//   - IngestResult: the structured counts
func FormatIngestResult(ingested, errs int) (string, IngestResult) {
	return "Ingested " + strconv.Itoa(ingested) + " events", IngestResult{Ingested: ingested, Errors: errs}
}
