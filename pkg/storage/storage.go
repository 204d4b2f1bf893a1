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

// Package storage defines the uniform storage interface that every volume
// backend implements, and a registry of URI-scheme plugins for opening them.
package storage

import "time"

// EntryType classifies a storage entry.
type EntryType int

const (
	TypeOther EntryType = iota
	TypeFile
	TypeDirectory
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	default:
		return "other"
	}
}

// FileInfo describes one entry inside a storage volume.
type FileInfo struct {
	ModTime time.Time
	Size    int64
	Type    EntryType
}

// IsDir reports whether the entry is a directory.
func (i *FileInfo) IsDir() bool {
	return i.Type == TypeDirectory
}

// DirectoryReader iterates the entries of one directory. The Info accessor
// applies to the entry most recently returned by Next.
type DirectoryReader interface {
	// Next advances to the next entry and returns its name, or ok=false
	// when the directory is exhausted.
	Next() (name string, ok bool)

	// Info returns metadata for the current entry. With followLinks set,
	// symlinks are resolved before stat.
	Info(followLinks bool) (*FileInfo, error)

	Close()
}

// Storage is the uniform interface over a volume's contents. Paths are
// relative to the volume root; a leading slash is tolerated.
//
// GetInfo and OpenDirectoryReader report failures. The three mapping
// operations cannot fail: when the volume is unavailable they degrade to a
// best-effort answer rather than returning an error.
type Storage interface {
	GetInfo(path string, followLinks bool) (*FileInfo, error)

	OpenDirectoryReader(path string) (DirectoryReader, error)

	// MapToLocalPath returns the path of the entry on the local
	// filesystem, or "" if the volume has no local representation.
	MapToLocalPath(path string) string

	// MapToCanonicalForm returns the entry's absolute URI.
	MapToCanonicalForm(path string) string

	// MapToRelativeForm reduces an absolute URI to a path relative to this
	// volume, or "" if the URI lives outside it.
	MapToRelativeForm(uri string) string

	// Close releases the volume. Failures during release are logged, not
	// returned; teardown always succeeds locally.
	Close()
}
