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

package local

import (
	"testing"

	"github.com/lazyvol/lazyvol/pkg/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/vol/music/albums", 0o750))
	require.NoError(t, afero.WriteFile(fs, "/vol/music/a.flac", []byte("flacdata"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/vol/readme.txt", []byte("hi"), 0o600))
	return NewWithFs(fs, "/vol")
}

func TestGetInfo_File(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	info, err := s.GetInfo("/music/a.flac", false)
	require.NoError(t, err)
	assert.Equal(t, storage.TypeFile, info.Type)
	assert.Equal(t, int64(8), info.Size)
}

func TestGetInfo_Directory(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	info, err := s.GetInfo("music", true)
	require.NoError(t, err)
	assert.Equal(t, storage.TypeDirectory, info.Type)
	assert.True(t, info.IsDir())
}

func TestGetInfo_Missing(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	_, err := s.GetInfo("/nope", false)
	require.Error(t, err)
}

func TestGetInfo_RejectsEscape(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	_, err := s.GetInfo("../etc/passwd", false)
	require.ErrorIs(t, err, ErrPathEscapes)
}

func TestOpenDirectoryReader(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	reader, err := s.OpenDirectoryReader("/music")
	require.NoError(t, err)
	defer reader.Close()

	entries := make(map[string]bool)
	for {
		name, ok := reader.Next()
		if !ok {
			break
		}
		info, err := reader.Info(false)
		require.NoError(t, err)
		entries[name] = info.IsDir()
	}

	assert.Equal(t, map[string]bool{
		"a.flac": false,
		"albums": true,
	}, entries)
}

func TestOpenDirectoryReader_Missing(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	_, err := s.OpenDirectoryReader("/nope")
	require.Error(t, err)
}

func TestDirectoryReader_InfoBeforeNext(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	reader, err := s.OpenDirectoryReader("/")
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Info(false)
	require.Error(t, err, "Info without a current entry must fail")
}

func TestMapToLocalPath(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	assert.Equal(t, "/vol/music/a.flac", s.MapToLocalPath("/music/a.flac"))
	assert.Equal(t, "/vol", s.MapToLocalPath(""))
	assert.Empty(t, s.MapToLocalPath("../outside"))
}

func TestMapToCanonicalForm(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	assert.Equal(t, "/vol/music", s.MapToCanonicalForm("music"))
	assert.Equal(t, "/vol", s.MapToCanonicalForm(""))
}

func TestMapToRelativeForm(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	assert.Equal(t, "music/a.flac", s.MapToRelativeForm("/vol/music/a.flac"))
	assert.Empty(t, s.MapToRelativeForm("/vol"))
	assert.Empty(t, s.MapToRelativeForm("/elsewhere/file"))
}

func TestPlugin_OpensBarePaths(t *testing.T) {
	t.Parallel()

	p := Plugin()
	assert.Equal(t, "local", p.Name)
	assert.Empty(t, p.Scheme)

	s, err := p.Open("/tmp/somewhere")
	require.NoError(t, err)
	require.NotNil(t, s)
	s.Close()
}
