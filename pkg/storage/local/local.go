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

// Package local implements storage rooted at a local directory. It is both a
// storage plugin in its own right and the backend other plugins construct
// once they have a mount point on the local filesystem.
package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lazyvol/lazyvol/pkg/storage"
	"github.com/spf13/afero"
)

// ErrPathEscapes is returned for paths that resolve outside the volume root.
var ErrPathEscapes = errors.New("path escapes volume root")

// Storage serves a directory tree rooted at a fixed path.
type Storage struct {
	fs   afero.Fs
	root string
}

// New creates a Storage over the real filesystem.
func New(root string) *Storage {
	return NewWithFs(afero.NewOsFs(), root)
}

// NewWithFs creates a Storage over an arbitrary afero filesystem. Tests use
// this with an in-memory filesystem.
func NewWithFs(fs afero.Fs, root string) *Storage {
	return &Storage{fs: fs, root: filepath.Clean(root)}
}

// Plugin returns the registry entry serving bare local paths.
func Plugin() storage.Plugin {
	return storage.Plugin{
		Name:   "local",
		Scheme: "",
		Open: func(uri string) (storage.Storage, error) {
			return New(uri), nil
		},
	}
}

func (s *Storage) GetInfo(path string, followLinks bool) (*storage.FileInfo, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	fi, err := s.stat(full, followLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	return convertInfo(fi), nil
}

func (s *Storage) OpenDirectoryReader(path string) (storage.DirectoryReader, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	dir, err := s.fs.Open(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory %q: %w", path, err)
	}
	names, err := dir.Readdirnames(-1)
	_ = dir.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %q: %w", path, err)
	}

	return &directoryReader{storage: s, base: full, names: names}, nil
}

func (s *Storage) MapToLocalPath(path string) string {
	full, err := s.resolve(path)
	if err != nil {
		return ""
	}
	return full
}

func (s *Storage) MapToCanonicalForm(path string) string {
	// A local volume's canonical form is its filesystem path.
	full, err := s.resolve(path)
	if err != nil {
		return s.root
	}
	return full
}

func (s *Storage) MapToRelativeForm(uri string) string {
	rel, err := filepath.Rel(s.root, filepath.Clean(uri))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	if rel == "." {
		return ""
	}
	return rel
}

func (*Storage) Close() {}

// resolve joins a volume-relative path onto the root and rejects escapes.
func (s *Storage) resolve(path string) (string, error) {
	full := filepath.Clean(filepath.Join(s.root, strings.TrimLeft(path, "/")))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapes, path)
	}
	return full, nil
}

func (s *Storage) stat(full string, followLinks bool) (os.FileInfo, error) {
	if !followLinks {
		if lstater, ok := s.fs.(afero.Lstater); ok {
			fi, _, err := lstater.LstatIfPossible(full)
			return fi, err
		}
	}
	return s.fs.Stat(full)
}

func convertInfo(fi os.FileInfo) *storage.FileInfo {
	info := &storage.FileInfo{
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
	switch {
	case fi.Mode().IsRegular():
		info.Type = storage.TypeFile
	case fi.IsDir():
		info.Type = storage.TypeDirectory
	default:
		info.Type = storage.TypeOther
	}
	return info
}

type directoryReader struct {
	storage *Storage
	base    string
	names   []string
	pos     int
}

func (r *directoryReader) Next() (string, bool) {
	if r.pos >= len(r.names) {
		return "", false
	}
	name := r.names[r.pos]
	r.pos++
	return name, true
}

func (r *directoryReader) Info(followLinks bool) (*storage.FileInfo, error) {
	if r.pos == 0 || r.pos > len(r.names) {
		return nil, errors.New("no current directory entry")
	}
	name := r.names[r.pos-1]

	fi, err := r.storage.stat(filepath.Join(r.base, name), followLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to stat entry %q: %w", name, err)
	}
	return convertInfo(fi), nil
}

func (*directoryReader) Close() {}
