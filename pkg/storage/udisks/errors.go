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

package udisks

import "errors"

// Failure kinds surfaced by mount arbitration. Callers classify with
// errors.Is; the underlying cause stays on the wrap chain.
var (
	// ErrNotFound means enumeration succeeded but no managed object
	// matched the configured device ID.
	ErrNotFound = errors.New("device not found")

	// ErrTransport means an IPC call could not be completed: connection
	// failure, cancellation, or timeout.
	ErrTransport = errors.New("transport error")

	// ErrMalformedReply means a reply arrived without the expected
	// structure.
	ErrMalformedReply = errors.New("malformed reply")

	// ErrMountFailed means the UDisks2 service rejected the Mount call.
	ErrMountFailed = errors.New("mount failed")

	// ErrUnmountFailed means the Unmount call failed. Local state still
	// reverts to unmounted when this is returned.
	ErrUnmountFailed = errors.New("unmount failed")
)
