// Copyright (c) 2025 Erik Kassubek
//
// File: errs.go
// Brief: Error taxonomy for the causal debugger
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

// Package errs implements the error taxonomy used across the analysis
// engine: NotFound, InvalidInput, QueueFull, StorageUnavailable and
// Internal, each carrying enough structure for callers to recover
// with errors.As instead of string matching.
package errs

import "fmt"

// NotFoundError is returned when a trace, event, span or baseline
// lookup finds nothing.
type NotFoundError struct {
	Kind string
	ID   string
}

// Error implements the error interface
//
// Returns:
//   - string: the error message
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound creates a NotFoundError
//
// Parameter:
//   - kind string: the kind of entity that was not found (e.g. "trace")
//   - id string: the identifier that was looked up
//
// Returns:
//   - error: the constructed error
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// InvalidInputError is returned for malformed identifiers, unparsable
// timestamps, negative pages, and other caller-side mistakes.
type InvalidInputError struct {
	Reason string
}

// Error implements the error interface
//
// Returns:
//   - string: the error message
func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// NewInvalidInput creates an InvalidInputError
//
// Parameter:
//   - reason string: why the input was rejected
//
// Returns:
//   - error: the constructed error
func NewInvalidInput(reason string) error {
	return &InvalidInputError{Reason: reason}
}

// QueueFullError is returned by the capture queue when a producer's
// enqueue would exceed the configured buffer size.
type QueueFullError struct{}

// Error implements the error interface
//
// Returns:
//   - string: the error message
func (e *QueueFullError) Error() string {
	return "queue full"
}

// ErrQueueFull is the sentinel QueueFullError value
var ErrQueueFull = &QueueFullError{}

// StorageUnavailableError wraps a backend I/O or connection failure.
type StorageUnavailableError struct {
	Cause error
}

// Error implements the error interface
//
// Returns:
//   - string: the error message
func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

// Unwrap allows errors.Is/As to see through to the underlying cause
//
// Returns:
//   - error: the wrapped cause
func (e *StorageUnavailableError) Unwrap() error {
	return e.Cause
}

// NewStorageUnavailable wraps a backend failure
//
// Parameter:
//   - cause error: the underlying I/O or connection error
//
// Returns:
//   - error: the constructed error
func NewStorageUnavailable(cause error) error {
	return &StorageUnavailableError{Cause: cause}
}

// InternalError represents an invariant violation, e.g. a cycle
// detected while adding an edge to the causal graph.
type InternalError struct {
	Msg string
}

// Error implements the error interface
//
// Returns:
//   - string: the error message
func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Msg)
}

// NewInternal creates an InternalError
//
// Parameter:
//   - msg string: description of the invariant that was violated
//
// Returns:
//   - error: the constructed error
func NewInternal(msg string) error {
	return &InternalError{Msg: msg}
}
