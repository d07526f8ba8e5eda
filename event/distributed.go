// Copyright (c) 2025 Erik Kassubek
//
// File: distributed.go
// Brief: Cross-service distributed span and edge types (spec §3)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package event

import "time"

// DistributedLinkType classifies how a DistributedEdge's two spans are
// causally related across a service boundary.
type DistributedLinkType string

// Possible values for DistributedLinkType (spec §3 DistributedEdge).
const (
	LinkHTTPCall      DistributedLinkType = "HttpCall"
	LinkGrpcCall      DistributedLinkType = "GrpcCall"
	LinkMessageQueue  DistributedLinkType = "MessageQueue"
	LinkDatabaseQuery DistributedLinkType = "DatabaseQuery"
	LinkCustom        DistributedLinkType = "Custom"
)

// DistributedSpan is a service-boundary-crossing unit of work, stamped
// with the instance/process metadata supplementing the base Event
// model: gopsutil-derived host and process attributes alongside the
// span's own timing and operation name.
type DistributedSpan struct {
	SpanID        string     `json:"span_id"`
	TraceID       string     `json:"trace_id"`
	ParentSpanID  *string    `json:"parent_span_id,omitempty"`
	ServiceName   string     `json:"service_name"`
	InstanceID    string     `json:"instance_id"`
	ProcessID     uint32     `json:"process_id"`
	HostName      string     `json:"host_name,omitempty"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	OperationName string     `json:"operation_name"`
}

// DurationMs returns the span's wall-clock duration, or 0 if the span
// has not yet ended.
//
// Returns:
//   - float64: the duration in milliseconds
func (s *DistributedSpan) DurationMs() float64 {
	if s.EndTime == nil {
		return 0
	}
	return float64(s.EndTime.Sub(s.StartTime).Microseconds()) / 1000.0
}

// DistributedEdge links an upstream span in one service to a
// downstream span in another, as reconstructed by orphan-edge
// resolution (spec §4.D's pending-table pattern).
type DistributedEdge struct {
	UpstreamSpanID    string              `json:"upstream_span_id"`
	DownstreamSpanID  string              `json:"downstream_span_id"`
	LinkType          DistributedLinkType `json:"link_type"`
	UpstreamService   string              `json:"upstream_service"`
	DownstreamService string              `json:"downstream_service"`
}

// DedupKey returns the key used to deduplicate an edge before it is
// recorded: the same logical edge may be reported by both the
// upstream and downstream instrumentation point.
//
// Returns:
//   - string: a stable key identifying this upstream/downstream pair
func (d *DistributedEdge) DedupKey() string {
	return d.UpstreamSpanID + "->" + d.DownstreamSpanID
}
