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

// Package helpers contains small utilities shared across Lazyvol packages.
package helpers

import "strings"

// Volume URIs use the shape scheme://device[/subpath]. Device IDs are opaque
// and may contain characters net/url would mangle, so parsing is done by hand.

// SplitURI splits a URI into its scheme and the opaque remainder after "://".
// Returns ok=false if the string has no scheme separator.
func SplitURI(uri string) (scheme, rest string, ok bool) {
	idx := strings.Index(uri, "://")
	if idx <= 0 {
		return "", "", false
	}
	return uri[:idx], uri[idx+3:], true
}

// URIScheme returns the scheme of a URI, or "" if it has none.
func URIScheme(uri string) string {
	scheme, _, ok := SplitURI(uri)
	if !ok {
		return ""
	}
	return scheme
}

// JoinURI appends a relative path to a base URI with exactly one separating
// slash. An empty relative path returns the base unchanged.
func JoinURI(base, rel string) string {
	if rel == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}

// RelativeURI returns the portion of uri below base, with no leading slash.
// Returns ok=false if uri does not live under base. An exact match yields the
// empty string with ok=true.
func RelativeURI(base, uri string) (string, bool) {
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(uri, base) {
		return "", false
	}
	rest := uri[len(base):]
	if rest == "" {
		return "", true
	}
	if rest[0] != '/' {
		return "", false
	}
	return strings.TrimLeft(rest, "/"), true
}
