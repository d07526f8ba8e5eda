// Copyright (c) 2025 Erik Kassubek
//
// File: kinds.go
// Brief: Closed set of event kind payloads
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package event

import "encoding/json"

// Kind tags the variant of an event as a closed enum (spec §3, §9
// "Dynamic event kinds" - the variant set is closed, encoded here as
// a tagged sum type).
type Kind string

// Possible event kinds. The set is closed; adding a kind means adding
// both a Kind constant and a Payload implementation below.
const (
	KindFunctionCall   Kind = "FunctionCall"
	KindAsyncSpawn     Kind = "AsyncSpawn"
	KindAsyncAwait     Kind = "AsyncAwait"
	KindStateChange    Kind = "StateChange"
	KindLockAcquire    Kind = "LockAcquire"
	KindLockRelease    Kind = "LockRelease"
	KindMemoryFence    Kind = "MemoryFence"
	KindHTTPRequest    Kind = "HttpRequest"
	KindHTTPResponse   Kind = "HttpResponse"
	KindDatabaseQuery  Kind = "DatabaseQuery"
	KindDatabaseResult Kind = "DatabaseResult"
	KindError          Kind = "Error"
	KindCustom         Kind = "Custom"
)

// AccessType classifies a StateChange's memory access.
type AccessType string

// Possible values for AccessType.
const (
	AccessRead        AccessType = "Read"
	AccessWrite       AccessType = "Write"
	AccessAtomicRead  AccessType = "AtomicRead"
	AccessAtomicWrite AccessType = "AtomicWrite"
	AccessAtomicRMW   AccessType = "AtomicRMW"
)

// IsWrite reports whether the access type mutates the variable.
//
// Returns:
//   - bool: true for Write, AtomicWrite and AtomicRMW
func (a AccessType) IsWrite() bool {
	return a == AccessWrite || a == AccessAtomicWrite || a == AccessAtomicRMW
}

// IsAtomic reports whether the access type is one of the atomic
// variants (used by the race detector's safe-pattern filter).
//
// Returns:
//   - bool: true for AtomicRead, AtomicWrite and AtomicRMW
func (a AccessType) IsAtomic() bool {
	return a == AccessAtomicRead || a == AccessAtomicWrite || a == AccessAtomicRMW
}

// Payload is implemented by every kind-specific event body. KindName
// derives the stable string used to group durations into a baseline
// (spec §4.F, §9): the tag plus one discriminator field where the
// kind has a natural one, else just the tag.
type Payload interface {
	Kind() Kind
	KindName() string
}

// FunctionCall is emitted when an instrumented function is entered.
type FunctionCall struct {
	FunctionName string          `json:"function_name"`
	Module       string          `json:"module"`
	Args         json.RawMessage `json:"args,omitempty"`
	File         string          `json:"file"`
	Line         uint32          `json:"line"`
}

// Kind implements Payload
func (FunctionCall) Kind() Kind { return KindFunctionCall }

// KindName implements Payload
func (p FunctionCall) KindName() string { return string(KindFunctionCall) + "(" + p.FunctionName + ")" }

// AsyncSpawn is emitted when a thread spawns an asynchronous task.
type AsyncSpawn struct {
	TaskID    string `json:"task_id"`
	SpawnedBy string `json:"spawned_by"`
}

// Kind implements Payload
func (AsyncSpawn) Kind() Kind { return KindAsyncSpawn }

// KindName implements Payload
func (AsyncSpawn) KindName() string { return string(KindAsyncSpawn) }

// AsyncAwait is emitted when a thread awaits a previously spawned task.
type AsyncAwait struct {
	FutureID  string `json:"future_id"`
	AwaitedAt string `json:"awaited_at"`
}

// Kind implements Payload
func (AsyncAwait) Kind() Kind { return KindAsyncAwait }

// KindName implements Payload
func (AsyncAwait) KindName() string { return string(KindAsyncAwait) }

// StateChange records a read, write or atomic access to a variable.
type StateChange struct {
	Variable   string          `json:"variable"`
	OldValue   json.RawMessage `json:"old_value,omitempty"`
	NewValue   json.RawMessage `json:"new_value,omitempty"`
	Location   string          `json:"location"`
	AccessType AccessType      `json:"access_type"`
}

// Kind implements Payload
func (StateChange) Kind() Kind { return KindStateChange }

// KindName implements Payload
func (p StateChange) KindName() string { return string(KindStateChange) + "(" + p.Variable + ")" }

// LockAcquire records a thread taking a lock.
type LockAcquire struct {
	LockID   string `json:"lock_id"`
	LockType string `json:"lock_type"`
	Location string `json:"location"`
}

// Kind implements Payload
func (LockAcquire) Kind() Kind { return KindLockAcquire }

// KindName implements Payload
func (LockAcquire) KindName() string { return string(KindLockAcquire) }

// LockRelease records a thread releasing a lock.
type LockRelease struct {
	LockID   string `json:"lock_id"`
	LockType string `json:"lock_type"`
	Location string `json:"location"`
}

// Kind implements Payload
func (LockRelease) Kind() Kind { return KindLockRelease }

// KindName implements Payload
func (LockRelease) KindName() string { return string(KindLockRelease) }

// MemoryOrdering is the ordering used by a MemoryFence.
type MemoryOrdering string

// Possible values for MemoryOrdering.
const (
	OrderingRelaxed MemoryOrdering = "Relaxed"
	OrderingAcquire MemoryOrdering = "Acquire"
	OrderingRelease MemoryOrdering = "Release"
	OrderingAcqRel  MemoryOrdering = "AcqRel"
	OrderingSeqCst  MemoryOrdering = "SeqCst"
)

// MemoryFence records a memory barrier.
type MemoryFence struct {
	Ordering MemoryOrdering `json:"ordering"`
	Location string         `json:"location"`
}

// Kind implements Payload
func (MemoryFence) Kind() Kind { return KindMemoryFence }

// KindName implements Payload
func (MemoryFence) KindName() string { return string(KindMemoryFence) }

// HTTPRequest records an outgoing or incoming HTTP request.
type HTTPRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Kind implements Payload
func (HTTPRequest) Kind() Kind { return KindHTTPRequest }

// KindName implements Payload
func (HTTPRequest) KindName() string { return string(KindHTTPRequest) }

// HTTPResponse records the response to an HTTPRequest.
type HTTPResponse struct {
	Status     uint16            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	DurationMs uint64            `json:"duration_ms"`
}

// Kind implements Payload
func (HTTPResponse) Kind() Kind { return KindHTTPResponse }

// KindName implements Payload
func (HTTPResponse) KindName() string { return string(KindHTTPResponse) }

// DatabaseQuery records an outgoing database query.
type DatabaseQuery struct {
	Query      string `json:"query"`
	Database   string `json:"database"`
	DurationMs uint64 `json:"duration_ms"`
}

// Kind implements Payload
func (DatabaseQuery) Kind() Kind { return KindDatabaseQuery }

// KindName implements Payload
func (DatabaseQuery) KindName() string { return string(KindDatabaseQuery) }

// DatabaseResult records the result of a DatabaseQuery.
type DatabaseResult struct {
	RowsAffected uint64 `json:"rows_affected"`
}

// Kind implements Payload
func (DatabaseResult) Kind() Kind { return KindDatabaseResult }

// KindName implements Payload
func (DatabaseResult) KindName() string { return string(KindDatabaseResult) }

// ErrorPayload records an application error.
type ErrorPayload struct {
	ErrorType  string   `json:"error_type"`
	Message    string   `json:"message"`
	StackTrace []string `json:"stack_trace,omitempty"`
}

// Kind implements Payload
func (ErrorPayload) Kind() Kind { return KindError }

// KindName implements Payload
func (ErrorPayload) KindName() string { return string(KindError) }

// CustomPayload is an escape hatch for application-defined events.
// Per spec §9, two Custom events sharing the same Name share a
// baseline - this is intentional, not a bug.
type CustomPayload struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Kind implements Payload
func (CustomPayload) Kind() Kind { return KindCustom }

// KindName implements Payload
func (p CustomPayload) KindName() string { return string(KindCustom) + "(" + p.Name + ")" }
