// Copyright (c) 2025 Erik Kassubek
//
// File: cache_test.go
// Brief: Tests for the TTL query cache (spec §8 scenario S5)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestTTLCacheReusesValueWithinWindow is scenario S5.
func TestTTLCacheReusesValueWithinWindow(t *testing.T) {
	var calls int32
	q := New[int](100 * time.Millisecond)

	fetch := func() (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}

	v, err := q.GetOrFetch(fetch)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := q.GetOrFetch(fetch)
			require.NoError(t, err)
			require.Equal(t, 42, v)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	time.Sleep(150 * time.Millisecond)
	_, err = q.GetOrFetch(fetch)
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestErrorsAreNotCached(t *testing.T) {
	q := New[int](time.Second)
	failing := errors.New("boom")

	_, err := q.GetOrFetch(func() (int, error) { return 0, failing })
	require.ErrorIs(t, err, failing)
	require.False(t, q.IsValid())

	v, err := q.GetOrFetch(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestInvalidateClearsEntry(t *testing.T) {
	q := New[int](time.Second)
	_, err := q.GetOrFetch(func() (int, error) { return 1, nil })
	require.NoError(t, err)
	require.True(t, q.IsValid())

	q.Invalidate()
	require.False(t, q.IsValid())
}
