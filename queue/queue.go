// Copyright (c) 2025 Erik Kassubek
//
// File: queue.go
// Brief: Bounded, non-blocking multi-producer single-consumer capture queue
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package queue

import (
	"causeway/errs"
	"causeway/event"
)

// Queue is a bounded MPSC queue for incoming events (spec §4.D). A
// buffered channel with a select/default send is the idiomatic Go
// realization of a non-blocking bounded queue.
type Queue struct {
	ch chan *event.Event
}

// New constructs a queue with the given capacity.
//
// Parameter:
//   - bufferSize int: the queue's capacity
//
// Returns:
//   - *Queue: the new queue
func New(bufferSize int) *Queue {
	return &Queue{ch: make(chan *event.Event, bufferSize)}
}

// Capture enqueues an event without blocking. It never suspends the
// caller (spec §5 "Queue capture is non-blocking and has no
// cancellation dimension").
//
// Parameter:
//   - e *event.Event: the event to enqueue
//
// Returns:
//   - error: errs.ErrQueueFull if the queue is at capacity
func (q *Queue) Capture(e *event.Event) error {
	select {
	case q.ch <- e:
		return nil
	default:
		return errs.ErrQueueFull
	}
}

// TryRecv attempts to dequeue one event without blocking, for use by
// the engine's drain loop.
//
// Returns:
//   - *event.Event: the dequeued event, nil if the queue was empty
//   - bool: true if an event was dequeued
func (q *Queue) TryRecv() (*event.Event, bool) {
	select {
	case e := <-q.ch:
		return e, true
	default:
		return nil, false
	}
}

// Drain dequeues every currently-buffered event without blocking, for
// use by tests.
//
// Returns:
//   - []*event.Event: every event that was buffered at the time of the
//     call
func (q *Queue) Drain() []*event.Event {
	var out []*event.Event
	for {
		e, ok := q.TryRecv()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

// Len reports the number of events currently buffered.
//
// Returns:
//   - int: the buffered count
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the queue's capacity.
//
// Returns:
//   - int: the configured buffer size
func (q *Queue) Cap() int {
	return cap(q.ch)
}
