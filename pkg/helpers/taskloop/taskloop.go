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

// Package taskloop runs deferred tasks on a single owning goroutine.
//
// Resources with goroutine affinity (like a D-Bus connection whose reply
// callbacks must be serialized) are driven through a Loop: any goroutine may
// schedule work, but every task executes on the one goroutine started by Run.
package taskloop

import (
	"errors"
	"sync"

	"github.com/lazyvol/lazyvol/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned by Sync when the loop is no longer running.
var ErrStopped = errors.New("task loop stopped")

// Task is a unit of deferred work executed on the owning goroutine.
type Task func()

// Loop executes scheduled tasks in order, exactly once each, on a single
// goroutine. Schedule never blocks the caller; the queue is unbounded.
type Loop struct {
	wake     chan struct{}
	stopChan chan struct{}
	queue    []Task
	wg       sync.WaitGroup
	mu       syncutil.Mutex
	stopOnce sync.Once
	stopped  bool
}

// New creates a Loop and starts its owning goroutine.
func New() *Loop {
	l := &Loop{
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Schedule queues fn for execution on the owning goroutine and returns
// immediately. It reports whether the task was accepted; tasks scheduled
// after Stop are dropped.
func (l *Loop) Schedule(fn Task) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		log.Debug().Msg("task scheduled after loop stop, dropping")
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync runs fn on the owning goroutine and waits for it to finish. It is the
// barrier used during teardown, so that no callback can run against state that
// the caller is about to destroy. Returns ErrStopped if the loop has shut down
// before fn could run.
func (l *Loop) Sync(fn Task) error {
	done := make(chan struct{})
	if !l.Schedule(func() {
		fn()
		close(done)
	}) {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-l.stopChan:
		// The loop drains its queue before exiting, so give fn a last
		// chance to complete rather than racing the drain.
		l.wg.Wait()
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stop shuts the loop down, draining any tasks that were already queued.
// It is idempotent and safe to call from any goroutine except the loop's own.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.stopChan)
		l.wg.Wait()
	})
}

func (l *Loop) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			l.drain()
			return
		case <-l.wake:
			l.drain()
		}
	}
}

// drain executes every task queued so far, including tasks queued by the
// tasks it runs.
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}
