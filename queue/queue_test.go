// Copyright (c) 2025 Erik Kassubek
//
// File: queue_test.go
// Brief: Tests for the capture queue
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package queue

import (
	"testing"

	"causeway/errs"
	"causeway/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCaptureFailsWhenFull(t *testing.T) {
	q := New(1)
	e1 := &event.Event{ID: uuid.New()}
	e2 := &event.Event{ID: uuid.New()}

	require.NoError(t, q.Capture(e1))
	err := q.Capture(e2)
	require.ErrorIs(t, err, errs.ErrQueueFull)
}

func TestDrainReturnsEnqueueOrder(t *testing.T) {
	q := New(4)
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, q.Capture(&event.Event{ID: ids[i]}))
	}

	drained := q.Drain()
	require.Len(t, drained, 3)
	for i, e := range drained {
		require.Equal(t, ids[i], e.ID)
	}
	require.Empty(t, q.Drain())
}
