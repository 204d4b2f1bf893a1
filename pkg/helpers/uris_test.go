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

package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitURI(t *testing.T) {
	t.Parallel()

	scheme, rest, ok := SplitURI("udisks://drive-42/music")
	assert.True(t, ok)
	assert.Equal(t, "udisks", scheme)
	assert.Equal(t, "drive-42/music", rest)
}

func TestSplitURI_NoScheme(t *testing.T) {
	t.Parallel()

	_, _, ok := SplitURI("/media/usb")
	assert.False(t, ok, "bare paths have no scheme")

	_, _, ok = SplitURI("://empty-scheme")
	assert.False(t, ok, "an empty scheme is not a scheme")
}

func TestURIScheme(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "udisks", URIScheme("udisks://x"))
	assert.Empty(t, URIScheme("plain/path"))
}

func TestJoinURI(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "udisks://missing/x", JoinURI("udisks://missing", "/x"))
	assert.Equal(t, "udisks://d/a/b", JoinURI("udisks://d/", "a/b"))
	assert.Equal(t, "udisks://d", JoinURI("udisks://d", ""),
		"empty relative path returns the base unchanged")
}

func TestRelativeURI(t *testing.T) {
	t.Parallel()

	rel, ok := RelativeURI("udisks://drive-42", "udisks://drive-42/music/a.flac")
	assert.True(t, ok)
	assert.Equal(t, "music/a.flac", rel)
}

func TestRelativeURI_ExactMatch(t *testing.T) {
	t.Parallel()

	rel, ok := RelativeURI("udisks://drive-42", "udisks://drive-42")
	assert.True(t, ok)
	assert.Empty(t, rel)
}

func TestRelativeURI_Outside(t *testing.T) {
	t.Parallel()

	_, ok := RelativeURI("udisks://drive-42", "udisks://other/music")
	assert.False(t, ok)

	// A shared string prefix is not containment.
	_, ok = RelativeURI("udisks://drive-4", "udisks://drive-42/music")
	assert.False(t, ok)
}
