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

// Package udisks exposes a removable volume managed by UDisks2 as lazily
// mounted storage.
//
// The volume is mounted on first use and released explicitly. Establishing
// the mount takes several asynchronous D-Bus round trips which all run on the
// bus's owning task loop, while any number of caller goroutines block in
// EnsureMounted until the state settles. Concurrent callers share a single
// in-flight attempt: one enumeration call and one Mount call at most, with
// the outcome broadcast to every waiter of that attempt.
package udisks

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/jonboulle/clockwork"
	"github.com/lazyvol/lazyvol/pkg/helpers"
	"github.com/lazyvol/lazyvol/pkg/helpers/syncutil"
	"github.com/lazyvol/lazyvol/pkg/helpers/taskloop"
	"github.com/lazyvol/lazyvol/pkg/storage"
	"github.com/lazyvol/lazyvol/pkg/storage/local"
	"github.com/lazyvol/lazyvol/pkg/udisks2"
	"github.com/rs/zerolog/log"
)

// Scheme is the URI scheme served by this plugin.
const Scheme = "udisks"

// State is the mount machine state, guarded by the storage mutex.
type State int

const (
	StateUnmounted State = iota
	StateResolving
	StateMounting
	StateMounted
	StateUnmounting
)

func (s State) String() string {
	switch s {
	case StateUnmounted:
		return "unmounted"
	case StateResolving:
		return "resolving"
	case StateMounting:
		return "mounting"
	case StateMounted:
		return "mounted"
	case StateUnmounting:
		return "unmounting"
	default:
		return "invalid"
	}
}

// Config carries the collaborators and knobs for a udisks volume.
type Config struct {
	// Loop is the owning task loop of Bus. Required.
	Loop *taskloop.Loop

	// Bus issues the UDisks2 calls. Required.
	Bus udisks2.Bus

	// URI is the volume identifier, udisks://deviceID[/subpath]. The
	// device ID is matched verbatim against enumerated objects; a subpath
	// scopes the volume to a subdirectory of the mount point.
	URI string

	// Clock drives the attempt timeout. Defaults to the real clock.
	Clock clockwork.Clock

	// NewBackend builds the storage backend once a mount point is known.
	// Defaults to local directory storage.
	NewBackend func(root string) storage.Storage

	// AttemptTimeout bounds each mount or unmount IPC step. Zero disables
	// the timeout.
	AttemptTimeout time.Duration
}

// Storage is a lazily mounted UDisks2 volume. It is safe for concurrent use
// from any goroutine; all IPC runs on the owning task loop.
type Storage struct {
	loop       *taskloop.Loop
	bus        udisks2.Bus
	clock      clockwork.Clock
	newBackend func(root string) storage.Storage
	cond       *sync.Cond

	baseURI string
	id      string
	subpath string
	timeout time.Duration

	mu syncutil.Mutex

	// Guarded by mu.
	state   State
	handle  dbus.ObjectPath // resolved object path, cached once known
	active  storage.Storage // non-nil only while mounted
	lastErr error
	attempt uint64 // bumped whenever a new mount or unmount attempt starts

	// Owned by the task loop; never touched from caller goroutines.
	listReq udisks2.Pending
	opReq   udisks2.Pending
	timer   clockwork.Timer
}

// New creates a Storage for a udisks:// URI. No IPC happens until first use.
func New(cfg Config) (*Storage, error) {
	scheme, rest, ok := helpers.SplitURI(cfg.URI)
	if !ok || scheme != Scheme {
		return nil, fmt.Errorf("not a %s URI: %q", Scheme, cfg.URI)
	}

	id := rest
	subpath := ""
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		id = rest[:idx]
		subpath = strings.Trim(rest[idx+1:], "/")
	}
	if id == "" {
		return nil, fmt.Errorf("missing device ID in %q", cfg.URI)
	}
	if cfg.Loop == nil || cfg.Bus == nil {
		return nil, errors.New("udisks storage requires a task loop and a bus")
	}

	s := &Storage{
		loop:       cfg.Loop,
		bus:        cfg.Bus,
		clock:      cfg.Clock,
		newBackend: cfg.NewBackend,
		baseURI:    cfg.URI,
		id:         id,
		subpath:    subpath,
		timeout:    cfg.AttemptTimeout,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.newBackend == nil {
		s.newBackend = func(root string) storage.Storage {
			return local.New(root)
		}
	}
	s.cond = syncutil.NewCond(&s.mu)
	return s, nil
}

// Plugin returns the registry entry serving udisks:// URIs through the given
// loop and bus.
func Plugin(loop *taskloop.Loop, bus udisks2.Bus, attemptTimeout time.Duration) storage.Plugin {
	return storage.Plugin{
		Name:   "udisks",
		Scheme: Scheme,
		Open: func(uri string) (storage.Storage, error) {
			return New(Config{
				Loop:           loop,
				Bus:            bus,
				URI:            uri,
				AttemptTimeout: attemptTimeout,
			})
		},
	}
}

// EnsureMounted blocks until the volume is mounted or the attempt in flight
// fails, returning that attempt's error. It is idempotent: when already
// mounted it returns immediately, and concurrent callers share one attempt.
func (s *Storage) EnsureMounted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.ensureMountedLocked()
	return err
}

// EnsureUnmounted blocks until the volume is unmounted. It is a no-op when
// already unmounted. A failed Unmount call is returned to the caller, but
// local state reverts to unmounted regardless: the remote resource is treated
// as released because no better local answer exists.
func (s *Storage) EnsureUnmounted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureUnmountedLocked()
}

// ensureMountedLocked implements the blocking mount contract and, on success,
// returns the active backend while the mutex is still held.
func (s *Storage) ensureMountedLocked() (storage.Storage, error) {
	for {
		switch s.state {
		case StateMounted:
			return s.active, nil

		case StateUnmounting:
			// Let the release settle, then start over.
			s.cond.Wait()

		case StateUnmounted:
			if s.handle == "" {
				s.state = StateResolving
			} else {
				// Cached handle: skip resolution, retry the
				// mount call directly.
				s.state = StateMounting
			}
			s.attempt++
			if !s.loop.Schedule(s.deferredMount) {
				s.state = StateUnmounted
				s.lastErr = fmt.Errorf("%w: task loop stopped", ErrTransport)
				return nil, s.lastErr
			}

		case StateResolving, StateMounting:
			for s.state == StateResolving || s.state == StateMounting {
				s.cond.Wait()
			}
			if s.state == StateMounted {
				return s.active, nil
			}
			if s.state == StateUnmounted && s.lastErr != nil {
				return nil, s.lastErr
			}
			// A mount that succeeded and was unmounted before this
			// waiter woke; go around again.
		}
	}
}

func (s *Storage) ensureUnmountedLocked() error {
	for {
		switch s.state {
		case StateUnmounted:
			return nil

		case StateResolving, StateMounting:
			// An attempt is in flight; wait for it to settle.
			s.cond.Wait()

		case StateMounted:
			s.state = StateUnmounting
			s.attempt++
			if !s.loop.Schedule(s.deferredUnmount) {
				// Loop gone; release locally.
				s.active = nil
				s.state = StateUnmounted
				s.lastErr = fmt.Errorf("%w: task loop stopped", ErrUnmountFailed)
				s.cond.Broadcast()
				return s.lastErr
			}

		case StateUnmounting:
			for s.state == StateUnmounting {
				s.cond.Wait()
			}
			return s.lastErr
		}
	}
}

// deferredMount runs on the task loop and dispatches the next IPC step of a
// mount attempt: enumeration while resolving, otherwise the Mount call.
func (s *Storage) deferredMount() {
	s.mu.Lock()
	state := s.state
	handle := s.handle
	attempt := s.attempt
	s.mu.Unlock()

	switch state {
	case StateResolving:
		log.Debug().Str("uri", s.baseURI).Msg("enumerating UDisks2 objects")
		s.listReq = s.bus.Go(udisks2.ManagerPath, udisks2.GetManagedObjectsMethod,
			func(call *dbus.Call) { s.onListReply(attempt, call) })
	case StateMounting:
		log.Debug().Str("uri", s.baseURI).Str("object", string(handle)).Msg("mounting volume")
		s.opReq = s.bus.Go(handle, udisks2.MountMethod,
			func(call *dbus.Call) { s.onMountReply(attempt, call) },
			udisks2.EmptyOptions)
	default:
		// The attempt was torn down before this task ran.
		return
	}
	s.armTimeout(attempt)
}

func (s *Storage) deferredUnmount() {
	s.mu.Lock()
	state := s.state
	handle := s.handle
	attempt := s.attempt
	s.mu.Unlock()

	if state != StateUnmounting {
		return
	}

	log.Debug().Str("uri", s.baseURI).Str("object", string(handle)).Msg("unmounting volume")
	s.opReq = s.bus.Go(handle, udisks2.UnmountMethod,
		func(call *dbus.Call) { s.onUnmountReply(attempt, call) },
		udisks2.EmptyOptions)
	s.armTimeout(attempt)
}

// onListReply runs on the task loop with the enumeration result. Resolution
// happens at most once: the matched object path is cached for the lifetime of
// this Storage and later attempts skip straight to the Mount call.
func (s *Storage) onListReply(attempt uint64, call *dbus.Call) {
	// A cancelled call can complete after a newer attempt stored its own
	// request in the slot; only this attempt's completion may clear it.
	if s.currentAttempt(attempt) {
		s.listReq = nil
	}

	if call.Err != nil {
		s.failAttempt(attempt, fmt.Errorf("%w: failed to enumerate UDisks2 objects: %w",
			ErrTransport, call.Err))
		return
	}

	objects, err := udisks2.ParseManagedObjects(call.Body)
	if err != nil {
		s.failAttempt(attempt, fmt.Errorf("%w: %w", ErrMalformedReply, err))
		return
	}

	// Prefer the matching object that exposes the Filesystem interface:
	// only that one can service the Mount call. A drive-level match is kept
	// as a fallback so resolution still reports something addressable.
	var handle dbus.ObjectPath
	for i := range objects {
		if !objects[i].MatchesID(s.id) {
			continue
		}
		if objects[i].HasFilesystem {
			handle = objects[i].Path
			break
		}
		if handle == "" {
			handle = objects[i].Path
		}
	}
	if handle == "" {
		s.failAttempt(attempt, fmt.Errorf("%w: no UDisks2 object matches %q", ErrNotFound, s.id))
		return
	}

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateResolving {
		s.mu.Unlock()
		log.Debug().Str("uri", s.baseURI).Msg("dropping enumeration reply for abandoned attempt")
		return
	}
	s.handle = handle
	s.state = StateMounting
	s.mu.Unlock()

	log.Debug().Str("uri", s.baseURI).Str("object", string(handle)).Msg("resolved device object")
	s.deferredMount()
}

func (s *Storage) onMountReply(attempt uint64, call *dbus.Call) {
	if s.currentAttempt(attempt) {
		s.opReq = nil
	}

	if call.Err != nil {
		kind := ErrTransport
		var dbusErr dbus.Error
		if errors.As(call.Err, &dbusErr) {
			// The service itself replied with an error.
			kind = ErrMountFailed
		}
		s.failAttempt(attempt, fmt.Errorf("%w: Mount call failed: %w", kind, call.Err))
		return
	}

	mountPath, ok := udisks2.MountPathFromBody(call.Body)
	if !ok {
		s.failAttempt(attempt, fmt.Errorf("%w: Mount reply carries no mount path", ErrMalformedReply))
		return
	}

	root := mountPath
	if s.subpath != "" {
		root = filepath.Join(mountPath, s.subpath)
	}
	backend := s.newBackend(root)

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateMounting {
		s.mu.Unlock()
		log.Warn().Str("uri", s.baseURI).Str("mount_path", mountPath).
			Msg("mount reply for abandoned attempt, volume may be left mounted")
		return
	}
	s.active = backend
	s.lastErr = nil
	s.state = StateMounted
	s.cond.Broadcast()
	s.mu.Unlock()

	s.stopTimeout()
	log.Info().Str("uri", s.baseURI).Str("mount_path", root).Msg("volume mounted")
}

func (s *Storage) onUnmountReply(attempt uint64, call *dbus.Call) {
	if s.currentAttempt(attempt) {
		s.opReq = nil
	}

	var err error
	if call.Err != nil {
		err = fmt.Errorf("%w: Unmount call failed: %w", ErrUnmountFailed, call.Err)
	}

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateUnmounting {
		s.mu.Unlock()
		log.Debug().Str("uri", s.baseURI).Msg("dropping unmount reply for abandoned attempt")
		return
	}
	// The backend is discarded even when the call failed: there is no
	// better local answer than treating the resource as released.
	s.active = nil
	s.lastErr = err
	s.state = StateUnmounted
	s.cond.Broadcast()
	s.mu.Unlock()

	s.stopTimeout()
	if err != nil {
		log.Warn().Err(err).Str("uri", s.baseURI).Msg("volume unmount failed")
	} else {
		log.Info().Str("uri", s.baseURI).Msg("volume unmounted")
	}
}

// currentAttempt reports whether the given attempt is still the live one. Each
// attempt issues at most one call per request slot, so a matching attempt
// number also identifies the slot's owner.
func (s *Storage) currentAttempt(attempt uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt == attempt
}

// failAttempt runs on the task loop. It moves the machine back to unmounted,
// records the error for every waiter of this attempt, and wakes them. Replies
// belonging to an attempt that already settled are dropped by the caller's
// attempt check; this guard makes the drop explicit for late failures too.
func (s *Storage) failAttempt(attempt uint64, err error) {
	s.mu.Lock()
	if s.attempt != attempt ||
		(s.state != StateResolving && s.state != StateMounting && s.state != StateUnmounting) {
		s.mu.Unlock()
		log.Debug().Err(err).Str("uri", s.baseURI).Msg("dropping failure for abandoned attempt")
		return
	}
	if s.state == StateUnmounting {
		s.active = nil
	}
	s.lastErr = err
	s.state = StateUnmounted
	s.cond.Broadcast()
	s.mu.Unlock()

	s.stopTimeout()
	log.Debug().Err(err).Str("uri", s.baseURI).Msg("mount attempt failed")
}

// armTimeout runs on the task loop and bounds the current IPC step.
func (s *Storage) armTimeout(attempt uint64) {
	if s.timeout <= 0 {
		return
	}
	s.stopTimeout()
	s.timer = s.clock.AfterFunc(s.timeout, func() {
		// Fired on the clock's goroutine; hop to the owning loop.
		s.loop.Schedule(func() { s.onTimeout(attempt) })
	})
}

func (s *Storage) stopTimeout() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// onTimeout runs on the task loop when an IPC step exceeded the deadline.
func (s *Storage) onTimeout(attempt uint64) {
	s.mu.Lock()
	stale := s.attempt != attempt ||
		(s.state != StateResolving && s.state != StateMounting && s.state != StateUnmounting)
	s.mu.Unlock()
	if stale {
		return
	}

	if s.listReq != nil {
		s.listReq.Cancel()
	}
	if s.opReq != nil {
		s.opReq.Cancel()
	}
	s.failAttempt(attempt, fmt.Errorf("%w: no reply within %s", ErrTransport, s.timeout))
}

// acquire mounts the volume if needed and borrows the active backend. The
// borrow is per-operation: callers must not retain it, since a concurrent
// EnsureUnmounted can release it at any point afterwards.
func (s *Storage) acquire() (storage.Storage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureMountedLocked()
}

func (s *Storage) GetInfo(path string, followLinks bool) (*storage.FileInfo, error) {
	backend, err := s.acquire()
	if err != nil {
		return nil, err
	}
	return backend.GetInfo(path, followLinks)
}

func (s *Storage) OpenDirectoryReader(path string) (storage.DirectoryReader, error) {
	backend, err := s.acquire()
	if err != nil {
		return nil, err
	}
	return backend.OpenDirectoryReader(path)
}

func (s *Storage) MapToLocalPath(path string) string {
	backend, err := s.acquire()
	if err != nil {
		return ""
	}
	return backend.MapToLocalPath(path)
}

func (s *Storage) MapToCanonicalForm(path string) string {
	backend, err := s.acquire()
	if err != nil {
		// Fallback: not usable as a filesystem path, but the best
		// answer an operation without an error channel can give.
		if path == "" {
			return s.baseURI
		}
		return helpers.JoinURI(s.baseURI, path)
	}
	return backend.MapToCanonicalForm(path)
}

func (s *Storage) MapToRelativeForm(uri string) string {
	// Pure string reduction against the base URI; never mounts.
	rel, ok := helpers.RelativeURI(s.baseURI, uri)
	if !ok {
		return ""
	}
	return rel
}

// Close cancels any outstanding IPC on the owning loop, waits for the
// cancellation to land, then releases the mount best-effort. Failures are
// logged, never returned: teardown must always complete.
func (s *Storage) Close() {
	if err := s.loop.Sync(func() {
		if s.listReq != nil {
			s.listReq.Cancel()
		}
		if s.opReq != nil {
			s.opReq.Cancel()
		}
		s.stopTimeout()
	}); err != nil {
		log.Debug().Err(err).Str("uri", s.baseURI).Msg("task loop gone before teardown")
	}

	if err := s.EnsureUnmounted(); err != nil {
		log.Error().Err(err).Str("uri", s.baseURI).Msg("failed to unmount volume during teardown")
	}
}
