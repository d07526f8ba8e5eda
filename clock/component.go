// Copyright (c) 2025 Erik Kassubek
//
// File: component.go
// Brief: Deterministic 128-bit component ids for vector clocks
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

// Package clock implements the vector clocks used for happens-before
// reasoning (spec §4.A) and the deterministic hashing of thread ids
// into stable 128-bit component ids (spec §4.C.1 step 2).
package clock

import (
	"encoding/hex"

	"github.com/twmb/murmur3"
)

// ComponentID is a 128-bit identifier for a vector clock component.
// A thread_id string is hashed into one deterministically so that the
// same thread always contributes to the same clock component, without
// requiring callers to pre-register thread ids.
type ComponentID [16]byte

// String returns a hex representation of the component id, mostly
// useful for logging and test fixtures.
//
// Returns:
//   - string: hex-encoded id
func (c ComponentID) String() string {
	return hex.EncodeToString(c[:])
}

// ComponentFromThread hashes a thread_id into a deterministic 128-bit
// component id using murmur3's 128-bit variant. Two calls with the
// same thread_id always yield the same ComponentID.
//
// Parameter:
//   - threadID string: the thread identifier to hash
//
// Returns:
//   - ComponentID: the deterministic 128-bit id
func ComponentFromThread(threadID string) ComponentID {
	hi, lo := murmur3.Sum128([]byte(threadID))
	var c ComponentID
	for i := 0; i < 8; i++ {
		c[i] = byte(hi >> (8 * (7 - i)))
		c[8+i] = byte(lo >> (8 * (7 - i)))
	}
	return c
}

// ComponentFromRaw wraps a value that is already a 128-bit id (e.g.
// one carried over the wire in the event's causality_vector) without
// re-hashing it, matching spec §4.C.1's "when it is not already in
// that form" carve-out.
//
// Parameter:
//   - raw [16]byte: the already-128-bit id
//
// Returns:
//   - ComponentID: the same bytes, typed as a ComponentID
func ComponentFromRaw(raw [16]byte) ComponentID {
	return ComponentID(raw)
}
