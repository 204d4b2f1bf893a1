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

package udisks2

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/lazyvol/lazyvol/pkg/helpers/taskloop"
	"github.com/rs/zerolog/log"
)

// Pending is an in-flight asynchronous call that can be cancelled. Cancelling
// does not suppress the completion callback: the call still completes, with a
// cancellation error, on the owning loop.
type Pending interface {
	Cancel()
}

// Bus issues asynchronous method calls against UDisks2 objects. Go must be
// called from the owning task loop, and the done callback is always delivered
// there, so implementations and callers share one serialization domain.
type Bus interface {
	Go(path dbus.ObjectPath, method string, done func(*dbus.Call), args ...any) Pending
	Close() error
}

// SystemBus is the production Bus backed by a private system D-Bus
// connection. The connection is owned by the task loop passed to
// NewSystemBus and must not be touched from other goroutines.
type SystemBus struct {
	conn *dbus.Conn
	loop *taskloop.Loop
}

// NewSystemBus connects to the system bus and verifies that the UDisks2
// service is present. A private connection is used so Close cannot disturb
// any shared connection elsewhere in the process.
func NewSystemBus(loop *taskloop.Loop) (*SystemBus, error) {
	conn, err := dbus.SystemBusPrivate()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system D-Bus: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to authenticate to system D-Bus: %w", err)
	}
	if err := conn.Hello(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to complete D-Bus handshake: %w", err)
	}

	var names []string
	obj := conn.Object("org.freedesktop.DBus", "/org/freedesktop/DBus")
	if err := obj.Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to list D-Bus names: %w", err)
	}
	available := false
	for _, name := range names {
		if name == Service {
			available = true
			break
		}
	}
	if !available {
		_ = conn.Close()
		return nil, fmt.Errorf("%s service is not available on the system bus", Service)
	}

	log.Debug().Msg("connected to UDisks2 over system D-Bus")
	return &SystemBus{conn: conn, loop: loop}, nil
}

// Go implements Bus. The completed call is marshaled back onto the owning
// loop; the goroutine waiting on the reply never touches shared state.
func (b *SystemBus) Go(path dbus.ObjectPath, method string, done func(*dbus.Call), args ...any) Pending {
	ctx, cancel := context.WithCancel(context.Background())
	obj := b.conn.Object(Service, path)
	call := obj.GoWithContext(ctx, method, 0, make(chan *dbus.Call, 1), args...)

	go func() {
		<-call.Done
		cancel()
		b.loop.Schedule(func() {
			done(call)
		})
	}()

	return pendingCall{cancel: cancel}
}

// Close tears down the private connection.
func (b *SystemBus) Close() error {
	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("failed to close D-Bus connection: %w", err)
	}
	return nil
}

type pendingCall struct {
	cancel context.CancelFunc
}

func (p pendingCall) Cancel() {
	p.cancel()
}
