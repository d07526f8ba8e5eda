// Copyright (c) 2025 Erik Kassubek
//
// File: backend.go
// Brief: Abstract storage backend contract (spec §4.B)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package storage

import (
	"context"
	"time"

	"causeway/event"

	"github.com/google/uuid"
)

// TraceSummary is the per-trace rollup returned by the paginated trace
// listing endpoints.
type TraceSummary struct {
	TraceID        uuid.UUID `json:"trace_id"`
	EventCount     int       `json:"event_count"`
	FirstTimestamp time.Time `json:"first_timestamp"`
	LastTimestamp  time.Time `json:"last_timestamp"`
	Services       []string  `json:"services"`
	ServiceCount   int       `json:"service_count"`
}

// ServiceSummary aggregates event/trace counts for one service.
type ServiceSummary struct {
	Name       string `json:"name"`
	EventCount int    `json:"event_count"`
	TraceCount int    `json:"trace_count"`
}

// ServiceDependencies is the set of cross-service edges touching one
// named service, split by direction.
type ServiceDependencies struct {
	CallsTo  map[string]int `json:"calls_to"`
	CalledBy map[string]int `json:"called_by"`
}

// DistributedEdgeSummary rolls up distributed edges between two
// services by link type.
type DistributedEdgeSummary struct {
	FromService string `json:"from_service"`
	ToService   string `json:"to_service"`
	LinkType    event.DistributedLinkType `json:"link_type"`
	Count       int    `json:"count"`
}

// RaceCandidate is a cross-trace race summary for one variable (spec
// §4.G "Global race candidates").
type RaceCandidate struct {
	Variable    string `json:"variable"`
	TraceCount  int    `json:"trace_count"`
	ThreadCount int    `json:"thread_count"`
	HasWrites   bool   `json:"has_writes"`
	HasReads    bool   `json:"has_reads"`
	Severity    string `json:"severity"`
}

// Hotspots is the top-N variables/service-call-pairs rollup.
type Hotspots struct {
	TopVariables    []VariableHotspot    `json:"top_variables"`
	TopServiceCalls []ServiceCallHotspot `json:"top_service_calls"`
}

// VariableHotspot is one entry of Hotspots.TopVariables.
type VariableHotspot struct {
	Variable    string `json:"variable"`
	AccessCount int    `json:"access_count"`
}

// ServiceCallHotspot is one entry of Hotspots.TopServiceCalls.
type ServiceCallHotspot struct {
	FromService string `json:"from_service"`
	ToService   string `json:"to_service"`
	Count       int    `json:"count"`
}

// ServiceHealthStatus classifies a service's recent activity.
type ServiceHealthStatus string

// Possible values for ServiceHealthStatus.
const (
	HealthHealthy  ServiceHealthStatus = "healthy"
	HealthWarning  ServiceHealthStatus = "warning"
	HealthCritical ServiceHealthStatus = "critical"
)

// ServiceHealth is the per-service health rollup (spec §4.G Health).
type ServiceHealth struct {
	Service              string              `json:"service"`
	Status               ServiceHealthStatus `json:"status"`
	TraceCount           int                 `json:"trace_count"`
	AvgEventsPerTrace    float64             `json:"avg_events_per_trace"`
	MinutesSinceActivity float64             `json:"minutes_since_last_activity"`
}

// PerformanceMetrics is the latency/throughput rollup (spec §4.G
// Performance).
type PerformanceMetrics struct {
	AvgTraceDurationMs float64                    `json:"avg_trace_duration_ms"`
	P50Ms              float64                    `json:"p50_ms"`
	P95Ms              float64                    `json:"p95_ms"`
	P99Ms              float64                    `json:"p99_ms"`
	SlowOperations     []SlowOperation            `json:"slow_operations"`
	EventsPerSecond    float64                    `json:"events_per_second"`
	TracesPerSecond    float64                    `json:"traces_per_second"`
}

// SlowOperation is an event-kind-name group whose average duration
// exceeds 100 ms.
type SlowOperation struct {
	Name      string  `json:"name"`
	AvgMs     float64 `json:"avg_ms"`
	SampleCount int   `json:"sample_count"`
}

// BaselineSnapshot is a (kind name, stats) pair as persisted by the
// baseline operations.
type BaselineSnapshot struct {
	KindName string
	Stats    DurationStats
}

// DurationStats is the online summary statistics for a baseline (spec
// §3 CausalGraph.baseline_metrics).
type DurationStats struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"std_dev"`
	P95      float64 `json:"p95"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// Backend is the abstract storage contract of spec §4.B. Every method
// that may perform I/O takes a context so a cancelled caller leaves no
// partial writes (spec §5 cancellation safety).
type Backend interface {
	AddEvent(ctx context.Context, e *event.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*event.Event, error)
	GetTraceEvents(ctx context.Context, traceID uuid.UUID) ([]*event.Event, error)
	GetAllEvents(ctx context.Context) ([]*event.Event, error)
	GetAllTraceIDs(ctx context.Context) ([]uuid.UUID, error)

	CountEvents(ctx context.Context) (int, error)
	CountTraces(ctx context.Context) (int, error)

	GetTraceSummaries(ctx context.Context, page, size int, minEvents int) ([]TraceSummary, int, error)
	GetTraceSummariesByService(ctx context.Context, service string, page, size int) ([]TraceSummary, int, error)
	GetTraceRoots(ctx context.Context, traceID uuid.UUID) ([]uuid.UUID, error)

	SaveBaseline(ctx context.Context, kindName string, stats DurationStats) error
	SaveBaselinesBatch(ctx context.Context, snapshots []BaselineSnapshot) error
	GetBaselineMetric(ctx context.Context, kindName string) (DurationStats, bool, error)
	GetAllBaselineOperations(ctx context.Context) ([]string, error)

	SaveDistributedSpan(ctx context.Context, span *event.DistributedSpan) error
	GetDistributedSpan(ctx context.Context, spanID string) (*event.DistributedSpan, bool, error)
	GetDistributedSpans(ctx context.Context, traceID uuid.UUID) ([]*event.DistributedSpan, error)

	AddDistributedEdge(ctx context.Context, edge *event.DistributedEdge) error
	GetDistributedEdges(ctx context.Context, traceID uuid.UUID) ([]*event.DistributedEdge, error)

	GetAllServices(ctx context.Context) ([]ServiceSummary, error)
	GetServiceDependenciesGlobal(ctx context.Context, service string) (ServiceDependencies, error)
	GetAllDistributedEdges(ctx context.Context) ([]DistributedEdgeSummary, error)
	GetGlobalRaceCandidates(ctx context.Context) ([]RaceCandidate, error)
	GetSystemHotspots(ctx context.Context) (Hotspots, error)
	GetServiceHealth(ctx context.Context, windowMinutes int) ([]ServiceHealth, error)
	GetPerformanceMetrics(ctx context.Context, limit int) (PerformanceMetrics, error)

	CleanupOldTraces(ctx context.Context, retentionHours int) (int, error)
	Clear(ctx context.Context) error
}
