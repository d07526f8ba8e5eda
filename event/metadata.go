// Copyright (c) 2025 Erik Kassubek
//
// File: metadata.go
// Brief: Per-event metadata (spec §3 Event.metadata)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package event

// Metadata carries the attributes every event has regardless of kind:
// which thread/process/service emitted it, free-form tags, and the
// optional distributed-tracing fields described in spec §3.
type Metadata struct {
	ThreadID    string            `json:"thread_id"`
	ProcessID   uint32            `json:"process_id"`
	ServiceName string            `json:"service_name"`
	Environment string            `json:"environment"`
	Tags        map[string]string `json:"tags,omitempty"`
	DurationNs  *uint64           `json:"duration_ns,omitempty"`

	SpanID         *string `json:"span_id,omitempty"`
	UpstreamSpanID *string `json:"upstream_span_id,omitempty"`
	InstanceID     *string `json:"instance_id,omitempty"`
}

// DurationMs returns the event's duration in milliseconds, or 0 if
// none was recorded (spec §4.C.5 step 1: "missing → 0").
//
// Returns:
//   - float64: the duration in milliseconds
func (m Metadata) DurationMs() float64 {
	if m.DurationNs == nil {
		return 0
	}
	return float64(*m.DurationNs) / 1_000_000
}
