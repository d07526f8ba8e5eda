// Copyright (c) 2025 Erik Kassubek
//
// File: event.go
// Brief: Event record, happens-before and stable wire serialization
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package event

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"causeway/clock"
	"causeway/errs"

	"github.com/google/uuid"
)

// Event is a single captured action (spec §3). It is created once by
// a producer, enqueued once, persisted once, indexed in the causal
// graph once, and never mutated thereafter.
type Event struct {
	ID        uuid.UUID
	TraceID   uuid.UUID
	ParentID  *uuid.UUID
	Timestamp time.Time
	Payload   Payload
	Metadata  Metadata

	// CausalityVector is populated by the causal graph at ingest time
	// (spec §4.C.1); it is nil until then.
	CausalityVector *clock.VectorClock

	// LockSet is the snapshot of locks held by the emitting thread,
	// also populated by the causal graph at ingest time.
	LockSet []string

	// Extra preserves any unrecognized top-level wire fields across a
	// round trip, per spec §4.A "preserves unknown optional fields".
	Extra map[string]json.RawMessage
}

// Kind returns the event's tag.
//
// Returns:
//   - Kind: the event's kind tag
func (e *Event) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// KindName returns the stable string used to group this event into a
// baseline (spec §4.F / §9).
//
// Returns:
//   - string: the kind-name, e.g. "StateChange(balance)"
func (e *Event) KindName() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.KindName()
}

// Equal implements event equality by id only (spec §4.A).
//
// Parameter:
//   - other *Event: the event to compare against
//
// Returns:
//   - bool: true iff the ids match
func (e *Event) Equal(other *Event) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ID == other.ID
}

// HappenedBefore implements the vector-clock happens-before relation
// of spec §4.A, delegating to the underlying vector clocks.
//
// Parameter:
//   - other *Event: the candidate causal successor
//
// Returns:
//   - bool: true iff e happened-before other
func (e *Event) HappenedBefore(other *Event) bool {
	if e == nil || other == nil {
		return false
	}
	return e.CausalityVector.HappenedBefore(other.CausalityVector)
}

// ConcurrentWith reports whether neither event happened-before the
// other (spec glossary: "Concurrent events").
//
// Parameter:
//   - other *Event: the event to compare against
//
// Returns:
//   - bool: true iff e and other are concurrent
func (e *Event) ConcurrentWith(other *Event) bool {
	if e == nil || other == nil {
		return false
	}
	return e.CausalityVector.ConcurrentWith(other.CausalityVector)
}

// wireEvent is the stable JSON shape of an Event.
type wireEvent struct {
	ID              string            `json:"id"`
	TraceID         string            `json:"trace_id"`
	ParentID        *string           `json:"parent_id,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
	Kind            Kind              `json:"kind"`
	Payload         json.RawMessage   `json:"payload"`
	Metadata        Metadata          `json:"metadata"`
	CausalityVector []wireClockPair   `json:"causality_vector,omitempty"`
	LockSet         []string          `json:"lock_set,omitempty"`
}

type wireClockPair struct {
	Component string `json:"component_id"`
	Clock     uint64 `json:"clock"`
}

// MarshalJSON implements a stable wire format: kind tagged by name,
// with any previously-unknown top-level fields preserved (round
// tripped via Extra).
//
// Returns:
//   - []byte: the JSON encoding
//   - error: non-nil if the payload cannot be marshaled
func (e *Event) MarshalJSON() ([]byte, error) {
	payloadBytes, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	var parentID *string
	if e.ParentID != nil {
		s := e.ParentID.String()
		parentID = &s
	}

	var pairs []wireClockPair
	for _, p := range e.CausalityVector.Pairs() {
		pairs = append(pairs, wireClockPair{Component: p.Component.String(), Clock: p.Clock})
	}

	w := wireEvent{
		ID:              e.ID.String(),
		TraceID:         e.TraceID.String(),
		ParentID:        parentID,
		Timestamp:       e.Timestamp,
		Kind:            e.Kind(),
		Payload:         payloadBytes,
		Metadata:        e.Metadata,
		CausalityVector: pairs,
		LockSet:         e.LockSet,
	}

	base, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	if len(e.Extra) == 0 {
		return base, nil
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("remarshal event: %w", err)
	}
	for k, v := range e.Extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes an Event, dispatching Payload by its "kind"
// tag and preserving unrecognized top-level fields in Extra.
//
// Parameter:
//   - data []byte: the JSON encoding
//
// Returns:
//   - error: non-nil if the encoding is malformed or the kind is unknown
func (e *Event) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("unmarshal event fields: %w", err)
	}

	id, err := uuid.Parse(w.ID)
	if err != nil {
		return errs.NewInvalidInput("event id is not a valid uuid: " + w.ID)
	}
	traceID, err := uuid.Parse(w.TraceID)
	if err != nil {
		return errs.NewInvalidInput("trace id is not a valid uuid: " + w.TraceID)
	}
	var parentID *uuid.UUID
	if w.ParentID != nil {
		pid, err := uuid.Parse(*w.ParentID)
		if err != nil {
			return errs.NewInvalidInput("parent id is not a valid uuid: " + *w.ParentID)
		}
		parentID = &pid
	}

	payload, err := decodePayload(w.Kind, w.Payload)
	if err != nil {
		return err
	}

	vc := clock.NewVectorClock()
	for _, p := range w.CausalityVector {
		raw, err := hex.DecodeString(p.Component)
		if err != nil || len(raw) != 16 {
			return errs.NewInvalidInput("malformed causality_vector component id: " + p.Component)
		}
		var arr [16]byte
		copy(arr[:], raw)
		vc.Upsert(clock.ComponentFromRaw(arr), p.Clock)
	}

	for _, known := range []string{"id", "trace_id", "parent_id", "timestamp", "kind", "payload", "metadata", "causality_vector", "lock_set"} {
		delete(raw, known)
	}

	e.ID = id
	e.TraceID = traceID
	e.ParentID = parentID
	e.Timestamp = w.Timestamp
	e.Payload = payload
	e.Metadata = w.Metadata
	e.CausalityVector = vc
	e.LockSet = w.LockSet
	if len(raw) > 0 {
		e.Extra = raw
	}
	return nil
}

func decodePayload(kind Kind, data json.RawMessage) (Payload, error) {
	switch kind {
	case KindFunctionCall:
		var p FunctionCall
		return decodeInto(&p, data)
	case KindAsyncSpawn:
		var p AsyncSpawn
		return decodeInto(&p, data)
	case KindAsyncAwait:
		var p AsyncAwait
		return decodeInto(&p, data)
	case KindStateChange:
		var p StateChange
		return decodeInto(&p, data)
	case KindLockAcquire:
		var p LockAcquire
		return decodeInto(&p, data)
	case KindLockRelease:
		var p LockRelease
		return decodeInto(&p, data)
	case KindMemoryFence:
		var p MemoryFence
		return decodeInto(&p, data)
	case KindHTTPRequest:
		var p HTTPRequest
		return decodeInto(&p, data)
	case KindHTTPResponse:
		var p HTTPResponse
		return decodeInto(&p, data)
	case KindDatabaseQuery:
		var p DatabaseQuery
		return decodeInto(&p, data)
	case KindDatabaseResult:
		var p DatabaseResult
		return decodeInto(&p, data)
	case KindError:
		var p ErrorPayload
		return decodeInto(&p, data)
	case KindCustom:
		var p CustomPayload
		return decodeInto(&p, data)
	default:
		return nil, errs.NewInvalidInput("unknown event kind: " + string(kind))
	}
}

func decodeInto[T Payload](p *T, data json.RawMessage) (Payload, error) {
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return *p, nil
}
