// Copyright (c) 2025 Erik Kassubek
//
// File: vectorclock_test.go
// Brief: Tests for the vector clock happens-before relation
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package clock

import "testing"

func TestHappenedBeforeStrict(t *testing.T) {
	a := ComponentFromThread("t1")
	b := ComponentFromThread("t2")

	vc1 := NewVectorClock()
	vc1.Upsert(a, 1)
	vc1.Upsert(b, 1)

	vc2 := NewVectorClock()
	vc2.Upsert(a, 2)
	vc2.Upsert(b, 1)

	if !vc1.HappenedBefore(vc2) {
		t.Fatalf("expected vc1 to happen before vc2")
	}
	if vc2.HappenedBefore(vc1) {
		t.Fatalf("happens-before must be asymmetric")
	}
}

func TestConcurrentWhenIncomparable(t *testing.T) {
	a := ComponentFromThread("t1")
	b := ComponentFromThread("t2")

	vc1 := NewVectorClock()
	vc1.Upsert(a, 2)
	vc1.Upsert(b, 1)

	vc2 := NewVectorClock()
	vc2.Upsert(a, 1)
	vc2.Upsert(b, 2)

	if !vc1.ConcurrentWith(vc2) {
		t.Fatalf("expected vc1 and vc2 to be concurrent")
	}
}

func TestEmptyVectorsIncomparable(t *testing.T) {
	vc1 := NewVectorClock()
	vc2 := NewVectorClock()

	if vc1.HappenedBefore(vc2) || vc2.HappenedBefore(vc1) {
		t.Fatalf("empty vector clocks must be incomparable")
	}
}

func TestUpsertReplacesInPlace(t *testing.T) {
	a := ComponentFromThread("t1")
	b := ComponentFromThread("t2")

	vc := NewVectorClock()
	vc.Upsert(a, 1)
	vc.Upsert(b, 1)
	vc.Upsert(a, 5)

	if vc.Len() != 2 {
		t.Fatalf("expected 2 distinct components, got %d", vc.Len())
	}
	pairs := vc.Pairs()
	if pairs[0].Component != a || pairs[0].Clock != 5 {
		t.Fatalf("expected upsert to replace in place preserving order, got %+v", pairs)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	a := ComponentFromThread("t1")
	vc := NewVectorClock()
	vc.Upsert(a, 1)

	cp := vc.Copy()
	cp.Upsert(a, 99)

	if vc.GetValue(a) != 1 {
		t.Fatalf("mutating the copy must not affect the original")
	}
}

func TestComponentFromThreadDeterministic(t *testing.T) {
	c1 := ComponentFromThread("worker-1")
	c2 := ComponentFromThread("worker-1")
	c3 := ComponentFromThread("worker-2")

	if c1 != c2 {
		t.Fatalf("hashing the same thread id twice must be deterministic")
	}
	if c1 == c3 {
		t.Fatalf("different thread ids should (overwhelmingly likely) hash differently")
	}
}
