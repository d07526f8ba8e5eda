// Copyright (c) 2025 Erik Kassubek
//
// File: postgres.go
// Brief: PostgreSQL storage backend (spec §4.B, §6.4 storage.backend=postgres)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"causeway/errs"
	"causeway/event"
	"causeway/logging"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"
)

var pgLog = logging.Component("storage.postgres")

// schema is applied once at startup. Concrete migration tooling is
// out of scope (spec §1); this mirrors the column layout of
// original_source's postgres.rs closely enough to round-trip every
// Backend operation through JSONB payloads plus the few columns
// queries actually filter or sort on.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id uuid PRIMARY KEY,
	trace_id uuid NOT NULL,
	parent_id uuid,
	ts timestamptz NOT NULL,
	vector_len int NOT NULL,
	service_name text NOT NULL DEFAULT '',
	variable text,
	access_type text,
	data jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS events_trace_idx ON events (trace_id);
CREATE INDEX IF NOT EXISTS events_variable_idx ON events (variable) WHERE variable IS NOT NULL;

CREATE TABLE IF NOT EXISTS baselines (
	kind_name text PRIMARY KEY,
	data jsonb NOT NULL
);

CREATE TABLE IF NOT EXISTS distributed_spans (
	span_id text PRIMARY KEY,
	trace_id uuid NOT NULL,
	service_name text NOT NULL,
	data jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS spans_trace_idx ON distributed_spans (trace_id);

CREATE TABLE IF NOT EXISTS distributed_edges (
	trace_id uuid NOT NULL,
	dedup_key text NOT NULL,
	from_span text NOT NULL,
	to_span text NOT NULL,
	data jsonb NOT NULL,
	PRIMARY KEY (trace_id, dedup_key)
);

CREATE TABLE IF NOT EXISTS pending_edges (
	span_id text NOT NULL,
	direction text NOT NULL,
	data jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS pending_edges_span_idx ON pending_edges (span_id, direction);
`

// Postgres is a StorageBackend over a connection pool, used when
// spec §6.4's storage.backend is "postgres". Every column beyond the
// JSONB payload exists only to support the ordering/filtering the
// interface requires without deserializing every row.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn with retry/backoff and applies the
// schema.
//
// Parameter:
//   - ctx context.Context: cancellation for connect + schema apply
//   - dsn string: the PostgreSQL connection string
//
// Returns:
//   - *Postgres: the connected backend
//   - error: non-nil if the pool could not be established
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errs.NewStorageUnavailable(err)
	}

	pgLog.Info("connected to postgres backend")
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// AddEvent persists the event and its derived columns in one
// statement; re-adding the same id is a no-op (idempotent per spec
// §4.B).
func (p *Postgres) AddEvent(ctx context.Context, e *event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errs.NewInternal("marshal event: " + err.Error())
	}

	var variable, accessType *string
	if sc, ok := e.Payload.(event.StateChange); ok {
		v := sc.Variable
		a := string(sc.AccessType)
		variable, accessType = &v, &a
	}

	var parentID *uuid.UUID
	if e.ParentID != nil {
		parentID = e.ParentID
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO events (id, trace_id, parent_id, ts, vector_len, service_name, variable, access_type, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.TraceID, parentID, e.Timestamp, e.CausalityVector.Len(), e.Metadata.ServiceName, variable, accessType, data)
	if err != nil {
		return errs.NewStorageUnavailable(err)
	}
	return nil
}

func scanEvent(row pgx.Row) (*event.Event, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		return nil, err
	}
	e := &event.Event{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, err
	}
	return e, nil
}

func scanEvents(rows pgx.Rows) ([]*event.Event, error) {
	defer rows.Close()
	var out []*event.Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		e := &event.Event{}
		if err := json.Unmarshal(data, e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEvent looks up a single event by id.
func (p *Postgres) GetEvent(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	row := p.pool.QueryRow(ctx, `SELECT data FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err == pgx.ErrNoRows {
		return nil, errs.NewNotFound("event", id.String())
	}
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	return e, nil
}

// GetTraceEvents returns every event of a trace, ordered by
// (timestamp, |causality_vector|, id) per spec §4.B.
func (p *Postgres) GetTraceEvents(ctx context.Context, traceID uuid.UUID) ([]*event.Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT data FROM events WHERE trace_id = $1
		ORDER BY ts ASC, vector_len ASC, id ASC
	`, traceID)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	out, err := scanEvents(rows)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	return out, nil
}

// GetAllEvents returns every event across every trace, ordered by
// (timestamp, |causality_vector|, id), used to replay the graph at
// startup.
func (p *Postgres) GetAllEvents(ctx context.Context) ([]*event.Event, error) {
	rows, err := p.pool.Query(ctx, `SELECT data FROM events ORDER BY ts ASC, vector_len ASC, id ASC`)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	out, err := scanEvents(rows)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	return out, nil
}

// GetAllTraceIDs returns every trace id known to storage.
func (p *Postgres) GetAllTraceIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT trace_id FROM events`)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errs.NewStorageUnavailable(err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountEvents is a cheap, possibly-approximate count (spec §4.B).
func (p *Postgres) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, errs.NewStorageUnavailable(err)
	}
	return n, nil
}

// CountTraces is a cheap, possibly-approximate count.
func (p *Postgres) CountTraces(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT trace_id) FROM events`).Scan(&n); err != nil {
		return 0, errs.NewStorageUnavailable(err)
	}
	return n, nil
}

// allSummaries computes one trace summary row per distinct trace_id,
// unpaginated; GetTraceSummaries/GetTraceSummariesByService filter and
// paginate the result the same way Memory does, since the aggregate
// itself is cheap relative to one round trip per page request.
func (p *Postgres) allSummaries(ctx context.Context) ([]TraceSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT trace_id, COUNT(*), MIN(ts), MAX(ts),
			array_agg(DISTINCT service_name ORDER BY service_name)
		FROM events
		GROUP BY trace_id
		ORDER BY MAX(ts) DESC
	`)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()

	var out []TraceSummary
	for rows.Next() {
		var s TraceSummary
		if err := rows.Scan(&s.TraceID, &s.EventCount, &s.FirstTimestamp, &s.LastTimestamp, &s.Services); err != nil {
			return nil, errs.NewStorageUnavailable(err)
		}
		s.ServiceCount = len(s.Services)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetTraceSummaries returns a page of trace summaries ordered by
// last_timestamp desc, filtered to traces with at least minEvents.
func (p *Postgres) GetTraceSummaries(ctx context.Context, page, size int, minEvents int) ([]TraceSummary, int, error) {
	all, err := p.allSummaries(ctx)
	if err != nil {
		return nil, 0, err
	}
	var filtered []TraceSummary
	for _, s := range all {
		if s.EventCount >= minEvents {
			filtered = append(filtered, s)
		}
	}
	return paginate(filtered, page, size), len(filtered), nil
}

// GetTraceSummariesByService returns the page of trace summaries for
// traces that contain at least one event from the named service.
func (p *Postgres) GetTraceSummariesByService(ctx context.Context, service string, page, size int) ([]TraceSummary, int, error) {
	all, err := p.allSummaries(ctx)
	if err != nil {
		return nil, 0, err
	}
	var filtered []TraceSummary
	for _, s := range all {
		for _, svc := range s.Services {
			if svc == service {
				filtered = append(filtered, s)
				break
			}
		}
	}
	return paginate(filtered, page, size), len(filtered), nil
}

// GetTraceRoots returns the event ids of a trace with no parent.
func (p *Postgres) GetTraceRoots(ctx context.Context, traceID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM events WHERE trace_id = $1 AND parent_id IS NULL`, traceID)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errs.NewStorageUnavailable(err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SaveBaseline upserts one kind's baseline statistics.
func (p *Postgres) SaveBaseline(ctx context.Context, kindName string, stats DurationStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return errs.NewInternal("marshal baseline: " + err.Error())
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO baselines (kind_name, data) VALUES ($1, $2)
		ON CONFLICT (kind_name) DO UPDATE SET data = EXCLUDED.data
	`, kindName, data)
	if err != nil {
		return errs.NewStorageUnavailable(err)
	}
	return nil
}

// SaveBaselinesBatch upserts several kinds' baseline statistics in one
// transaction.
func (p *Postgres) SaveBaselinesBatch(ctx context.Context, snapshots []BaselineSnapshot) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errs.NewStorageUnavailable(err)
	}
	defer tx.Rollback(ctx)

	for _, s := range snapshots {
		data, err := json.Marshal(s.Stats)
		if err != nil {
			return errs.NewInternal("marshal baseline: " + err.Error())
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO baselines (kind_name, data) VALUES ($1, $2)
			ON CONFLICT (kind_name) DO UPDATE SET data = EXCLUDED.data
		`, s.KindName, data); err != nil {
			return errs.NewStorageUnavailable(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.NewStorageUnavailable(err)
	}
	return nil
}

// GetBaselineMetric returns one kind's baseline, if any.
func (p *Postgres) GetBaselineMetric(ctx context.Context, kindName string) (DurationStats, bool, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM baselines WHERE kind_name = $1`, kindName).Scan(&data)
	if err == pgx.ErrNoRows {
		return DurationStats{}, false, nil
	}
	if err != nil {
		return DurationStats{}, false, errs.NewStorageUnavailable(err)
	}
	var stats DurationStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return DurationStats{}, false, errs.NewInternal("unmarshal baseline: " + err.Error())
	}
	return stats, true, nil
}

// GetAllBaselineOperations returns every kind name with a saved
// baseline.
func (p *Postgres) GetAllBaselineOperations(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT kind_name FROM baselines`)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errs.NewStorageUnavailable(err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// SaveDistributedSpan upserts a span by its id, then materializes every
// pending edge queued under that span id in either direction (spec
// §4.B orphan-edge rule, step 4). The pending_edges rows are not
// deleted; the de-duplication key keeps a repeated materialization
// from storing the edge twice.
func (p *Postgres) SaveDistributedSpan(ctx context.Context, span *event.DistributedSpan) error {
	event.StampLocalHost(span)

	data, err := json.Marshal(span)
	if err != nil {
		return errs.NewInternal("marshal span: " + err.Error())
	}
	traceID, err := uuid.Parse(span.TraceID)
	if err != nil {
		return errs.NewInvalidInput("span trace id is not a valid uuid: " + span.TraceID)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO distributed_spans (span_id, trace_id, service_name, data) VALUES ($1, $2, $3, $4)
		ON CONFLICT (span_id) DO UPDATE SET trace_id = EXCLUDED.trace_id, service_name = EXCLUDED.service_name, data = EXCLUDED.data
	`, span.SpanID, traceID, span.ServiceName, data)
	if err != nil {
		return errs.NewStorageUnavailable(err)
	}

	return p.drainPending(ctx, span.SpanID)
}

func (p *Postgres) drainPending(ctx context.Context, spanID string) error {
	rows, err := p.pool.Query(ctx, `SELECT data FROM pending_edges WHERE span_id = $1`, spanID)
	if err != nil {
		return errs.NewStorageUnavailable(err)
	}
	var pending []*event.DistributedEdge
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return errs.NewStorageUnavailable(err)
		}
		e := &event.DistributedEdge{}
		if err := json.Unmarshal(data, e); err != nil {
			rows.Close()
			return errs.NewInternal("unmarshal pending edge: " + err.Error())
		}
		pending = append(pending, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errs.NewStorageUnavailable(err)
	}

	for _, e := range pending {
		if err := p.materialize(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// AddDistributedEdge queues the edge into both orphan-edge pending
// tables and attempts immediate materialization against whichever
// endpoints are already known (spec §4.B orphan-edge rule).
func (p *Postgres) AddDistributedEdge(ctx context.Context, edge *event.DistributedEdge) error {
	data, err := json.Marshal(edge)
	if err != nil {
		return errs.NewInternal("marshal edge: " + err.Error())
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errs.NewStorageUnavailable(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO pending_edges (span_id, direction, data) VALUES ($1, 'from', $2)`, edge.UpstreamSpanID, data); err != nil {
		return errs.NewStorageUnavailable(err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO pending_edges (span_id, direction, data) VALUES ($1, 'to', $2)`, edge.DownstreamSpanID, data); err != nil {
		return errs.NewStorageUnavailable(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.NewStorageUnavailable(err)
	}

	return p.materialize(ctx, edge)
}

// materialize files edge under the trace(s) of its currently known
// endpoints, honoring the de-duplication key.
func (p *Postgres) materialize(ctx context.Context, edge *event.DistributedEdge) error {
	var fromTrace, toTrace *uuid.UUID
	var fromRaw string
	if err := p.pool.QueryRow(ctx, `SELECT trace_id::text FROM distributed_spans WHERE span_id = $1`, edge.UpstreamSpanID).Scan(&fromRaw); err == nil {
		id, perr := uuid.Parse(fromRaw)
		if perr == nil {
			fromTrace = &id
		}
	}
	var toRaw string
	if err := p.pool.QueryRow(ctx, `SELECT trace_id::text FROM distributed_spans WHERE span_id = $1`, edge.DownstreamSpanID).Scan(&toRaw); err == nil {
		id, perr := uuid.Parse(toRaw)
		if perr == nil {
			toTrace = &id
		}
	}

	data, err := json.Marshal(edge)
	if err != nil {
		return errs.NewInternal("marshal edge: " + err.Error())
	}
	key := edge.DedupKey() + "|" + string(edge.LinkType)

	if fromTrace != nil {
		if err := p.fileEdge(ctx, *fromTrace, key, edge, data); err != nil {
			return err
		}
	}
	if toTrace != nil && (fromTrace == nil || *toTrace != *fromTrace) {
		if err := p.fileEdge(ctx, *toTrace, key, edge, data); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) fileEdge(ctx context.Context, traceID uuid.UUID, key string, edge *event.DistributedEdge, data []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO distributed_edges (trace_id, dedup_key, from_span, to_span, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (trace_id, dedup_key) DO NOTHING
	`, traceID, key, edge.UpstreamSpanID, edge.DownstreamSpanID, data)
	if err != nil {
		return errs.NewStorageUnavailable(err)
	}
	return nil
}

// GetDistributedSpan looks up a span by id.
func (p *Postgres) GetDistributedSpan(ctx context.Context, spanID string) (*event.DistributedSpan, bool, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM distributed_spans WHERE span_id = $1`, spanID).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.NewStorageUnavailable(err)
	}
	s := &event.DistributedSpan{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, false, errs.NewInternal("unmarshal span: " + err.Error())
	}
	return s, true, nil
}

// GetDistributedSpans returns every span belonging to a trace.
func (p *Postgres) GetDistributedSpans(ctx context.Context, traceID uuid.UUID) ([]*event.DistributedSpan, error) {
	rows, err := p.pool.Query(ctx, `SELECT data FROM distributed_spans WHERE trace_id = $1`, traceID)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()
	var out []*event.DistributedSpan
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errs.NewStorageUnavailable(err)
		}
		s := &event.DistributedSpan{}
		if err := json.Unmarshal(data, s); err != nil {
			return nil, errs.NewInternal("unmarshal span: " + err.Error())
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetDistributedEdges returns every materialized edge for a trace.
func (p *Postgres) GetDistributedEdges(ctx context.Context, traceID uuid.UUID) ([]*event.DistributedEdge, error) {
	rows, err := p.pool.Query(ctx, `SELECT data FROM distributed_edges WHERE trace_id = $1`, traceID)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()
	var out []*event.DistributedEdge
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errs.NewStorageUnavailable(err)
		}
		e := &event.DistributedEdge{}
		if err := json.Unmarshal(data, e); err != nil {
			return nil, errs.NewInternal("unmarshal edge: " + err.Error())
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetAllServices aggregates event/trace counts per service.
func (p *Postgres) GetAllServices(ctx context.Context) ([]ServiceSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT service_name, COUNT(*), COUNT(DISTINCT trace_id)
		FROM events GROUP BY service_name ORDER BY service_name
	`)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()
	var out []ServiceSummary
	for rows.Next() {
		var s ServiceSummary
		if err := rows.Scan(&s.Name, &s.EventCount, &s.TraceCount); err != nil {
			return nil, errs.NewStorageUnavailable(err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetServiceDependenciesGlobal returns the cross-service edges
// touching one named service.
func (p *Postgres) GetServiceDependenciesGlobal(ctx context.Context, service string) (ServiceDependencies, error) {
	deps := ServiceDependencies{CallsTo: map[string]int{}, CalledBy: map[string]int{}}
	summaries, err := p.GetAllDistributedEdges(ctx)
	if err != nil {
		return deps, err
	}
	for _, s := range summaries {
		if s.FromService == service {
			deps.CallsTo[s.ToService] += s.Count
		}
		if s.ToService == service {
			deps.CalledBy[s.FromService] += s.Count
		}
	}
	return deps, nil
}

// GetAllDistributedEdges rolls up every distributed edge by
// (from_service, to_service, link_type), excluding self-edges.
func (p *Postgres) GetAllDistributedEdges(ctx context.Context) ([]DistributedEdgeSummary, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT ON (trace_id, dedup_key) data FROM distributed_edges`)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()

	type key struct {
		from, to string
		link     event.DistributedLinkType
	}
	rollup := map[key]int{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errs.NewStorageUnavailable(err)
		}
		e := &event.DistributedEdge{}
		if err := json.Unmarshal(data, e); err != nil {
			return nil, errs.NewInternal("unmarshal edge: " + err.Error())
		}
		if e.UpstreamService == e.DownstreamService {
			continue
		}
		rollup[key{e.UpstreamService, e.DownstreamService, e.LinkType}]++
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}

	out := make([]DistributedEdgeSummary, 0, len(rollup))
	for k, n := range rollup {
		out = append(out, DistributedEdgeSummary{FromService: k.from, ToService: k.to, LinkType: k.link, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromService != out[j].FromService {
			return out[i].FromService < out[j].FromService
		}
		return out[i].ToService < out[j].ToService
	})
	return out, nil
}

// GetGlobalRaceCandidates groups StateChange events by variable across
// all traces (spec §4.G "Global race candidates").
func (p *Postgres) GetGlobalRaceCandidates(ctx context.Context) ([]RaceCandidate, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT variable, COUNT(DISTINCT trace_id), COUNT(*) FILTER (WHERE access_type IN ('Write', 'AtomicWrite', 'AtomicRMW')),
			COUNT(*) FILTER (WHERE access_type IN ('Read', 'AtomicRead')),
			array_agg(DISTINCT data->'metadata'->>'thread_id')
		FROM events WHERE variable IS NOT NULL
		GROUP BY variable
	`)
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()

	var out []RaceCandidate
	for rows.Next() {
		var variable string
		var traceCount, writes, reads int
		var threads []string
		if err := rows.Scan(&variable, &traceCount, &writes, &reads, &threads); err != nil {
			return nil, errs.NewStorageUnavailable(err)
		}
		threadCount := len(threads)
		if traceCount <= 1 && threadCount <= 1 {
			continue
		}
		hasWrites, hasReads := writes > 0, reads > 0
		severity := "INFO"
		switch {
		case hasWrites && hasReads:
			severity = "WARNING"
		case hasWrites && threadCount > 1 && !hasReads:
			severity = "CRITICAL"
		case hasWrites:
			severity = "WARNING"
		}
		out = append(out, RaceCandidate{
			Variable:    variable,
			TraceCount:  traceCount,
			ThreadCount: threadCount,
			HasWrites:   hasWrites,
			HasReads:    hasReads,
			Severity:    severity,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variable < out[j].Variable })
	return out, rows.Err()
}

// GetSystemHotspots returns the top-10 variables by access count and
// top-10 cross-service call pairs by count.
func (p *Postgres) GetSystemHotspots(ctx context.Context) (Hotspots, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT variable, COUNT(*) FROM events WHERE variable IS NOT NULL
		GROUP BY variable ORDER BY COUNT(*) DESC LIMIT 10
	`)
	if err != nil {
		return Hotspots{}, errs.NewStorageUnavailable(err)
	}
	var vars []VariableHotspot
	for rows.Next() {
		var v VariableHotspot
		if err := rows.Scan(&v.Variable, &v.AccessCount); err != nil {
			rows.Close()
			return Hotspots{}, errs.NewStorageUnavailable(err)
		}
		vars = append(vars, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Hotspots{}, errs.NewStorageUnavailable(err)
	}

	edges, err := p.GetAllDistributedEdges(ctx)
	if err != nil {
		return Hotspots{}, err
	}
	calls := make([]ServiceCallHotspot, 0, len(edges))
	for _, e := range edges {
		calls = append(calls, ServiceCallHotspot{FromService: e.FromService, ToService: e.ToService, Count: e.Count})
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].Count > calls[j].Count })
	if len(calls) > 10 {
		calls = calls[:10]
	}

	return Hotspots{TopVariables: vars, TopServiceCalls: calls}, nil
}

// GetServiceHealth computes the per-service health rollup (spec §4.G
// Health).
func (p *Postgres) GetServiceHealth(ctx context.Context, windowMinutes int) ([]ServiceHealth, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT service_name, COUNT(DISTINCT trace_id), COUNT(*), MAX(ts)
		FROM events
		WHERE ts > now() - ($1 || ' minutes')::interval
		GROUP BY service_name
	`, itoaPlain(windowMinutes))
	if err != nil {
		return nil, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()

	now := nowFunc()
	var out []ServiceHealth
	for rows.Next() {
		var svc string
		var traceCount, eventCount int
		var lastSeen time.Time
		if err := rows.Scan(&svc, &traceCount, &eventCount, &lastSeen); err != nil {
			return nil, errs.NewStorageUnavailable(err)
		}
		minutesSince := now.Sub(lastSeen).Minutes()
		status := HealthCritical
		switch {
		case minutesSince < 5:
			status = HealthHealthy
		case minutesSince < 30:
			status = HealthWarning
		}
		avg := 0.0
		if traceCount > 0 {
			avg = float64(eventCount) / float64(traceCount)
		}
		out = append(out, ServiceHealth{
			Service:              svc,
			Status:               status,
			TraceCount:           traceCount,
			AvgEventsPerTrace:    avg,
			MinutesSinceActivity: minutesSince,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, rows.Err()
}

func itoaPlain(n int) string { return strconv.Itoa(n) }

// GetPerformanceMetrics computes the latency/throughput rollup (spec
// §4.G Performance).
func (p *Postgres) GetPerformanceMetrics(ctx context.Context, limit int) (PerformanceMetrics, error) {
	summaries, _, err := p.GetTraceSummaries(ctx, 0, limit, 0)
	if err != nil {
		return PerformanceMetrics{}, err
	}
	if len(summaries) == 0 {
		return PerformanceMetrics{}, nil
	}

	durations := make([]float64, 0, len(summaries))
	var minTS, maxTS time.Time
	for i, s := range summaries {
		d := float64(s.LastTimestamp.Sub(s.FirstTimestamp).Microseconds()) / 1000.0
		durations = append(durations, d)
		if i == 0 || s.FirstTimestamp.Before(minTS) {
			minTS = s.FirstTimestamp
		}
		if i == 0 || s.LastTimestamp.After(maxTS) {
			maxTS = s.LastTimestamp
		}
	}
	sort.Float64s(durations)

	slowSample := summaries
	if len(slowSample) > 5 {
		slowSample = slowSample[:5]
	}
	typeDur := map[string][]float64{}
	for _, s := range slowSample {
		events, err := p.GetTraceEvents(ctx, s.TraceID)
		if err != nil {
			continue
		}
		for _, e := range events {
			typeDur[e.KindName()] = append(typeDur[e.KindName()], e.Metadata.DurationMs())
		}
	}
	var slow []SlowOperation
	for name, ds := range typeDur {
		avg := mean(ds)
		if avg > 100 {
			slow = append(slow, SlowOperation{Name: name, AvgMs: avg, SampleCount: len(ds)})
		}
	}
	sort.Slice(slow, func(i, j int) bool { return slow[i].AvgMs > slow[j].AvgMs })

	spanSeconds := maxTS.Sub(minTS).Seconds()
	if spanSeconds < 1 {
		spanSeconds = 1
	}
	totalEvents, _ := p.CountEvents(ctx)

	return PerformanceMetrics{
		AvgTraceDurationMs: mean(durations),
		P50Ms:              percentile(durations, 0.50),
		P95Ms:              percentile(durations, 0.95),
		P99Ms:              percentile(durations, 0.99),
		SlowOperations:     slow,
		EventsPerSecond:    float64(totalEvents) / spanSeconds,
		TracesPerSecond:    float64(len(summaries)) / spanSeconds,
	}, nil
}

// CleanupOldTraces removes traces where every event is older than the
// retention cutoff.
func (p *Postgres) CleanupOldTraces(ctx context.Context, retentionHours int) (int, error) {
	rows, err := p.pool.Query(ctx, `
		WITH old_traces AS (
			SELECT trace_id FROM events
			GROUP BY trace_id
			HAVING MAX(ts) < now() - ($1 || ' hours')::interval
		), deleted AS (
			DELETE FROM events WHERE trace_id IN (SELECT trace_id FROM old_traces)
			RETURNING trace_id
		)
		SELECT DISTINCT trace_id FROM deleted
	`, itoaPlain(retentionHours))
	if err != nil {
		return 0, errs.NewStorageUnavailable(err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return 0, errs.NewStorageUnavailable(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, errs.NewStorageUnavailable(err)
	}
	for _, id := range ids {
		if _, err := p.pool.Exec(ctx, `DELETE FROM distributed_edges WHERE trace_id = $1`, id); err != nil {
			return 0, errs.NewStorageUnavailable(err)
		}
	}
	return len(ids), nil
}

// Clear wipes all state. Test hook.
func (p *Postgres) Clear(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `TRUNCATE events, baselines, distributed_spans, distributed_edges, pending_edges`)
	if err != nil {
		return errs.NewStorageUnavailable(err)
	}
	return nil
}
