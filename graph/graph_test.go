// Copyright (c) 2025 Erik Kassubek
//
// File: graph_test.go
// Brief: Tests for the causal graph (spec §8 scenarios S1-S4)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package graph

import (
	"testing"
	"time"

	"causeway/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func mkEvent(traceID uuid.UUID, parent *uuid.UUID, thread string, ts time.Time, payload event.Payload) *event.Event {
	return &event.Event{
		ID:        uuid.New(),
		TraceID:   traceID,
		ParentID:  parent,
		Timestamp: ts,
		Payload:   payload,
		Metadata:  event.Metadata{ThreadID: thread, ServiceName: "svc"},
	}
}

func durationEvent(e *event.Event, ns uint64) *event.Event {
	e.Metadata.DurationNs = &ns
	return e
}

// TestWriteWriteRaceReported is scenario S1.
func TestWriteWriteRaceReported(t *testing.T) {
	g := New()
	traceID := uuid.New()
	base := time.Now()

	root := mkEvent(traceID, nil, "main", base, event.FunctionCall{FunctionName: "handle"})
	require.NoError(t, g.AddEvent(root))

	w1 := mkEvent(traceID, &root.ID, "worker-1", base.Add(time.Millisecond), event.StateChange{
		Variable: "balance", AccessType: event.AccessWrite, Location: "a:12",
	})
	require.NoError(t, g.AddEvent(w1))

	w2 := mkEvent(traceID, &root.ID, "worker-2", base.Add(2*time.Millisecond), event.StateChange{
		Variable: "balance", AccessType: event.AccessWrite, Location: "b:45",
	})
	require.NoError(t, g.AddEvent(w2))

	respond := mkEvent(traceID, &root.ID, "main", base.Add(5*time.Millisecond), event.FunctionCall{FunctionName: "respond"})
	require.NoError(t, g.AddEvent(respond))

	pairs := g.FindConcurrentEvents(traceID)
	require.Len(t, pairs, 1)
	require.Equal(t, SeverityCritical, pairs[0].Severity)
	require.Equal(t, "balance", pairs[0].Variable)
}

// TestSameLockAccessIsNotRace is scenario S2.
func TestSameLockAccessIsNotRace(t *testing.T) {
	g := New()
	traceID := uuid.New()
	base := time.Now()

	for i, thread := range []string{"worker-1", "worker-2"} {
		offset := time.Duration(i) * time.Millisecond
		acquire := mkEvent(traceID, nil, thread, base.Add(offset), event.LockAcquire{LockID: "M"})
		require.NoError(t, g.AddEvent(acquire))
		change := mkEvent(traceID, &acquire.ID, thread, base.Add(offset+time.Millisecond), event.StateChange{
			Variable: "balance", AccessType: event.AccessWrite,
		})
		require.NoError(t, g.AddEvent(change))
		release := mkEvent(traceID, &change.ID, thread, base.Add(offset+2*time.Millisecond), event.LockRelease{LockID: "M"})
		require.NoError(t, g.AddEvent(release))
	}

	require.Empty(t, g.FindConcurrentEvents(traceID))
}

// TestCriticalPathPicksLongerBranch is scenario S3.
func TestCriticalPathPicksLongerBranch(t *testing.T) {
	g := New()
	traceID := uuid.New()
	base := time.Now()

	root := durationEvent(mkEvent(traceID, nil, "main", base, event.FunctionCall{FunctionName: "R"}), 0)
	require.NoError(t, g.AddEvent(root))

	a := durationEvent(mkEvent(traceID, &root.ID, "t1", base.Add(time.Millisecond), event.FunctionCall{FunctionName: "A"}), 10_000_000)
	require.NoError(t, g.AddEvent(a))

	b := durationEvent(mkEvent(traceID, &root.ID, "t2", base.Add(2*time.Millisecond), event.FunctionCall{FunctionName: "B"}), 3_000_000)
	require.NoError(t, g.AddEvent(b))

	a1 := durationEvent(mkEvent(traceID, &a.ID, "t1", base.Add(3*time.Millisecond), event.FunctionCall{FunctionName: "A1"}), 7_000_000)
	require.NoError(t, g.AddEvent(a1))

	path, err := g.GetCriticalPath(traceID)
	require.NoError(t, err)
	require.Len(t, path.Path, 3)
	require.Equal(t, root.ID, path.Path[0].ID)
	require.Equal(t, a.ID, path.Path[1].ID)
	require.Equal(t, a1.ID, path.Path[2].ID)
	require.InDelta(t, 17.0, path.TotalDurationMs, 0.001)
	require.InDelta(t, 20.0, path.TraceTotalDurationMs, 0.001)
	require.InDelta(t, 85.0, path.PercentageOfTotal, 0.001)
}

// TestAnomalyFlaggedOnlyAfterWarmup is a variant of scenario S4: five
// traces seed the baseline (below minBaselineSamples while each is
// evaluated), then a sixth, far slower trace is flagged once the
// baseline has enough history.
func TestAnomalyFlaggedOnlyAfterWarmup(t *testing.T) {
	g := New()
	base := time.Now()

	for i := 0; i < minBaselineSamples; i++ {
		traceID := uuid.New()
		e := durationEvent(mkEvent(traceID, nil, "main", base.Add(time.Duration(i)*time.Millisecond), event.FunctionCall{FunctionName: "op"}), 1_000_000)
		require.NoError(t, g.AddEvent(e))
		require.Empty(t, g.DetectAnomalies(traceID))
	}

	stats, ok := g.BaselineSnapshot("FunctionCall(op)")
	require.True(t, ok)
	require.Equal(t, minBaselineSamples, stats.Count)

	slowTrace := uuid.New()
	slow := durationEvent(mkEvent(slowTrace, nil, "main", base.Add(10*time.Millisecond), event.FunctionCall{FunctionName: "op"}), 20_000_000)
	require.NoError(t, g.AddEvent(slow))

	anomalies := g.DetectAnomalies(slowTrace)
	require.Len(t, anomalies, 1)
	require.Equal(t, SeverityCritical, anomalies[0].Severity)
	require.InDelta(t, 20.0, anomalies[0].ActualDurationMs, 0.001)
	require.InDelta(t, 1.0, anomalies[0].ExpectedDurationMs, 0.001)

	stats, ok = g.BaselineSnapshot("FunctionCall(op)")
	require.True(t, ok)
	require.Equal(t, minBaselineSamples+1, stats.Count)
}
