// Lazyvol
// Copyright (c) 2026 The Lazyvol Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Lazyvol.
//
// Lazyvol is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lazyvol is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Lazyvol.  If not, see <http://www.gnu.org/licenses/>.

package taskloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_RunsTasksInOrder(t *testing.T) {
	t.Parallel()

	loop := New()
	defer loop.Stop()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		i := i
		loop.Schedule(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == 9 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 10)
	for i, got := range order {
		assert.Equal(t, i, got, "tasks must run in scheduling order")
	}
}

func TestSchedule_FromRunningTask(t *testing.T) {
	t.Parallel()

	loop := New()
	defer loop.Stop()

	done := make(chan struct{})
	loop.Schedule(func() {
		// Tasks queued by a running task still run on the loop.
		loop.Schedule(func() {
			close(done)
		})
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("nested task did not run")
	}
}

func TestSync_WaitsForCompletion(t *testing.T) {
	t.Parallel()

	loop := New()
	defer loop.Stop()

	ran := false
	err := loop.Sync(func() {
		ran = true
	})
	require.NoError(t, err)
	assert.True(t, ran, "Sync must not return before the task ran")
}

func TestSync_ObservesEarlierTasks(t *testing.T) {
	t.Parallel()

	loop := New()
	defer loop.Stop()

	var order []string
	loop.Schedule(func() { order = append(order, "scheduled") })
	err := loop.Sync(func() { order = append(order, "sync") })

	require.NoError(t, err)
	assert.Equal(t, []string{"scheduled", "sync"}, order,
		"Sync acts as a barrier behind earlier tasks")
}

func TestStop_DrainsQueuedTasks(t *testing.T) {
	t.Parallel()

	loop := New()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 50; i++ {
		loop.Schedule(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	loop.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, count, "Stop must drain tasks that were already queued")
}

func TestStop_IsIdempotent(t *testing.T) {
	t.Parallel()

	loop := New()
	loop.Stop()
	loop.Stop()
}

func TestSchedule_AfterStopIsDropped(t *testing.T) {
	t.Parallel()

	loop := New()
	loop.Stop()

	accepted := loop.Schedule(func() {
		t.Error("task ran after loop stop")
	})
	assert.False(t, accepted)
}

func TestSync_AfterStopReturnsErrStopped(t *testing.T) {
	t.Parallel()

	loop := New()
	loop.Stop()

	err := loop.Sync(func() {})
	require.ErrorIs(t, err, ErrStopped)
}
