// Copyright (c) 2025 Erik Kassubek
//
// File: engine.go
// Brief: Wires the capture queue to the analysis service (spec §4.F wiring, §2 Component F)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package engine

import (
	"context"
	"time"

	"causeway/logging"
	"causeway/queue"
	"causeway/service"
)

var log = logging.Component("engine")

// Engine runs the batched drain loop: dequeue up to batch_size events
// without blocking, hand each to the analysis service, then sleep
// flush_interval_ms whenever a pass drained nothing, bounding CPU use
// (spec §4.D, §5 "Backpressure").
type Engine struct {
	queue   *queue.Queue
	service *service.AnalysisService

	batchSize     int
	flushInterval time.Duration
}

// New constructs an engine over an existing queue and analysis
// service.
//
// Parameter:
//   - q *queue.Queue: the capture queue to drain
//   - svc *service.AnalysisService: the service to hand batches to
//   - batchSize int: the maximum events dequeued per pass
//   - flushInterval time.Duration: the pause after an empty pass
//
// Returns:
//   - *Engine: the new engine
func New(q *queue.Queue, svc *service.AnalysisService, batchSize int, flushInterval time.Duration) *Engine {
	return &Engine{queue: q, service: svc, batchSize: batchSize, flushInterval: flushInterval}
}

// Run drains the queue until ctx is cancelled. It never blocks on the
// queue itself; an empty pass sleeps flushInterval before retrying.
//
// Parameter:
//   - ctx context.Context: cancellation for the run loop
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n := e.drainOnce(ctx)
		if n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

// drainOnce dequeues up to batchSize events and hands each to the
// service, returning how many were processed.
func (e *Engine) drainOnce(ctx context.Context) int {
	processed := 0
	for i := 0; i < e.batchSize; i++ {
		ev, ok := e.queue.TryRecv()
		if !ok {
			break
		}
		if err := e.service.AddEvent(ctx, ev); err != nil {
			log.WithError(err).WithField("event_id", ev.ID).Warn("failed to ingest event")
			continue
		}
		processed++
	}
	if processed > 0 {
		e.service.InvalidateGlobalCaches()
	}
	return processed
}
