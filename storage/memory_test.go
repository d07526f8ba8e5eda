// Copyright (c) 2025 Erik Kassubek
//
// File: memory_test.go
// Brief: Tests for the in-memory storage backend
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package storage

import (
	"context"
	"testing"
	"time"

	"causeway/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestEvent(traceID uuid.UUID, ts time.Time, service string) *event.Event {
	return &event.Event{
		ID:        uuid.New(),
		TraceID:   traceID,
		Timestamp: ts,
		Payload:   event.FunctionCall{FunctionName: "f"},
		Metadata:  event.Metadata{ThreadID: "t1", ServiceName: service},
	}
}

func TestAddEventIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	e := newTestEvent(uuid.New(), time.Now(), "svc")

	require.NoError(t, m.AddEvent(ctx, e))
	require.NoError(t, m.AddEvent(ctx, e))

	n, err := m.CountEvents(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestGetEventNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.GetEvent(context.Background(), uuid.New())
	require.Error(t, err)
}

// TestOrphanEdgeResolvesWhenBothSpansArrive is scenario S6.
func TestOrphanEdgeResolvesWhenBothSpansArrive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	traceID := uuid.New()

	edge := &event.DistributedEdge{
		UpstreamSpanID:   "A",
		DownstreamSpanID: "B",
		LinkType:         event.LinkHTTPCall,
		UpstreamService:  "svc-a",
		DownstreamService: "svc-b",
	}
	require.NoError(t, m.AddDistributedEdge(ctx, edge))

	edges, err := m.GetDistributedEdges(ctx, traceID)
	require.NoError(t, err)
	require.Empty(t, edges)

	require.NoError(t, m.SaveDistributedSpan(ctx, &event.DistributedSpan{SpanID: "A", TraceID: traceID.String(), ServiceName: "svc-a"}))
	require.NoError(t, m.SaveDistributedSpan(ctx, &event.DistributedSpan{SpanID: "B", TraceID: traceID.String(), ServiceName: "svc-b"}))

	edges, err = m.GetDistributedEdges(ctx, traceID)
	require.NoError(t, err)
	require.Len(t, edges, 1)

	require.NoError(t, m.AddDistributedEdge(ctx, edge))
	edges, err = m.GetDistributedEdges(ctx, traceID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestTraceSummariesOrderedByLastTimestampDesc(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	older := uuid.New()
	newer := uuid.New()
	require.NoError(t, m.AddEvent(ctx, newTestEvent(older, now.Add(-time.Hour), "svc")))
	require.NoError(t, m.AddEvent(ctx, newTestEvent(newer, now, "svc")))

	summaries, total, err := m.GetTraceSummaries(ctx, 0, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, newer, summaries[0].TraceID)
	require.Equal(t, older, summaries[1].TraceID)
}
