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

// Package udisks2 speaks the UDisks2 D-Bus dialect: enumerating managed block
// objects and invoking their Filesystem interface. It also defines the Bus
// abstraction through which all calls are issued asynchronously on an owning
// task loop.
package udisks2

import (
	"errors"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	Service     = "org.freedesktop.UDisks2"
	ManagerPath = dbus.ObjectPath("/org/freedesktop/UDisks2")

	BlockInterface      = "org.freedesktop.UDisks2.Block"
	DriveInterface      = "org.freedesktop.UDisks2.Drive"
	FilesystemInterface = "org.freedesktop.UDisks2.Filesystem"

	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"

	// Methods used by the storage plugin.
	GetManagedObjectsMethod = objectManagerInterface + ".GetManagedObjects"
	MountMethod             = FilesystemInterface + ".Mount"
	UnmountMethod           = FilesystemInterface + ".Unmount"
)

// ErrMalformedObjects is returned when a GetManagedObjects reply does not
// carry the expected object dictionary.
var ErrMalformedObjects = errors.New("malformed GetManagedObjects reply")

// EmptyOptions is the empty a{sv} options argument the Filesystem interface
// expects on Mount and Unmount.
var EmptyOptions = map[string]dbus.Variant{}

// Object is one managed object from a GetManagedObjects reply, reduced to the
// identity properties the storage plugin matches against.
type Object struct {
	Path          dbus.ObjectPath
	DriveID       string
	BlockID       string
	IDUUID        string
	HasFilesystem bool
}

// MatchesID reports whether the object's identity matches the given opaque
// device ID. The drive ID, block ID and filesystem UUID are each compared
// verbatim; UUIDs are the stablest of the three across replug cycles.
func (o *Object) MatchesID(id string) bool {
	if id == "" {
		return false
	}
	return o.DriveID == id || o.BlockID == id || o.IDUUID == id
}

// ParseManagedObjects extracts Objects from the body of a GetManagedObjects
// reply.
func ParseManagedObjects(body []any) ([]Object, error) {
	if len(body) < 1 {
		return nil, ErrMalformedObjects
	}

	managed, ok := body[0].(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)
	if !ok {
		return nil, ErrMalformedObjects
	}

	objects := make([]Object, 0, len(managed))
	for path, interfaces := range managed {
		obj := Object{Path: path}

		if driveProps, ok := interfaces[DriveInterface]; ok {
			obj.DriveID = stringProp(driveProps, "Id")
		}
		if blockProps, ok := interfaces[BlockInterface]; ok {
			obj.BlockID = stringProp(blockProps, "Id")
			obj.IDUUID = stringProp(blockProps, "IdUUID")
		}
		_, obj.HasFilesystem = interfaces[FilesystemInterface]

		objects = append(objects, obj)
	}
	return objects, nil
}

// MountPathFromBody extracts the local mount path returned by a Mount call.
// Returns ok=false if the reply does not carry a string.
func MountPathFromBody(body []any) (string, bool) {
	if len(body) < 1 {
		return "", false
	}
	path, ok := body[0].(string)
	if !ok || path == "" {
		return "", false
	}
	// UDisks2 returns the path as a NUL-padded C string.
	return strings.TrimRight(path, "\x00"), true
}

func stringProp(props map[string]dbus.Variant, key string) string {
	variant, ok := props[key]
	if !ok {
		return ""
	}
	value, ok := variant.Value().(string)
	if !ok {
		return ""
	}
	return value
}
