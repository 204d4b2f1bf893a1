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

package syncutil

import "sync"

// NewCond returns a condition variable bound to l. Both Mutex flavors in this
// package satisfy sync.Locker, so callers can pair a Cond with a deadlock-aware
// mutex without caring which build tag is active.
func NewCond(l sync.Locker) *sync.Cond {
	return sync.NewCond(l)
}
