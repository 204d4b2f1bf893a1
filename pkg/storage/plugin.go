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

package storage

import (
	"fmt"

	"github.com/lazyvol/lazyvol/pkg/helpers"
	"github.com/lazyvol/lazyvol/pkg/helpers/syncutil"
)

// Plugin binds a URI scheme to a Storage factory.
type Plugin struct {
	// Open creates a Storage for a URI whose scheme matched.
	Open func(uri string) (Storage, error)

	// Name identifies the plugin in logs and errors.
	Name string

	// Scheme is the URI scheme this plugin claims. The empty scheme
	// claims bare local paths.
	Scheme string
}

type registry struct {
	plugins []Plugin
	mu      syncutil.RWMutex
}

var plugins registry

// Register adds a plugin to the registry. Later registrations win over
// earlier ones with the same scheme, so callers can override defaults.
func Register(p Plugin) {
	plugins.mu.Lock()
	defer plugins.mu.Unlock()
	plugins.plugins = append([]Plugin{p}, plugins.plugins...)
}

// Open creates a Storage for the given URI by dispatching on its scheme.
func Open(uri string) (Storage, error) {
	scheme := helpers.URIScheme(uri)

	plugins.mu.RLock()
	defer plugins.mu.RUnlock()

	for _, p := range plugins.plugins {
		if p.Scheme == scheme {
			s, err := p.Open(uri)
			if err != nil {
				return nil, fmt.Errorf("failed to open %q with %s plugin: %w", uri, p.Name, err)
			}
			return s, nil
		}
	}
	return nil, fmt.Errorf("no storage plugin for %q", uri)
}
