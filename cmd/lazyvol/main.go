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

// Command lazyvol inspects lazily mounted volumes from the command line.
// The volume is mounted on first access and released when the command exits.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/lazyvol/lazyvol/pkg/config"
	"github.com/lazyvol/lazyvol/pkg/helpers"
	"github.com/lazyvol/lazyvol/pkg/helpers/taskloop"
	"github.com/lazyvol/lazyvol/pkg/storage"
	"github.com/lazyvol/lazyvol/pkg/storage/local"
	"github.com/lazyvol/lazyvol/pkg/storage/udisks"
	"github.com/lazyvol/lazyvol/pkg/udisks2"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func usage() {
	_, _ = fmt.Fprintf(os.Stderr, `Usage: lazyvol [flags] <command> <uri> [path]

Commands:
  stat        print metadata for a path inside the volume
  ls          list a directory inside the volume
  local-path  print the local filesystem path of a volume path
  canonical   print the canonical form of a volume path
  relative    reduce an absolute URI to a volume-relative path
  release     unmount the volume if it is mounted

Flags:
`)
	flag.PrintDefaults()
}

func run() error {
	configDir := flag.String("config-dir", "", "directory for config and logs")
	debug := flag.Bool("debug", false, "enable debug logging")
	follow := flag.Bool("follow", false, "follow symlinks when printing metadata")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		usage()
		return errors.New("missing command or volume URI")
	}
	command, uri := args[0], args[1]
	path := ""
	if len(args) > 2 {
		path = args[2]
	}

	dir := *configDir
	if dir == "" {
		dir = filepath.Join(xdg.ConfigHome, config.AppName)
	}

	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	if err != nil {
		return err
	}
	if *debug {
		cfg.SetDebugLogging(true)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if err := helpers.InitLogging(dir, []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr},
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	loop := taskloop.New()
	defer loop.Stop()

	storage.Register(local.Plugin())
	if helpers.URIScheme(uri) == udisks.Scheme {
		bus, err := udisks2.NewSystemBus(loop)
		if err != nil {
			return err
		}
		defer func() {
			_ = loop.Sync(func() { _ = bus.Close() })
		}()
		storage.Register(udisks.Plugin(loop, bus, cfg.AttemptTimeout()))
	}

	vol, err := storage.Open(uri)
	if err != nil {
		return err
	}
	defer vol.Close()

	return execute(vol, command, path, *follow)
}

func execute(vol storage.Storage, command, path string, follow bool) error {
	switch command {
	case "stat":
		info, err := vol.GetInfo(path, follow)
		if err != nil {
			return err
		}
		fmt.Printf("type:     %s\nsize:     %d\nmodified: %s\n",
			info.Type, info.Size, info.ModTime.Format("2006-01-02 15:04:05"))
		return nil

	case "ls":
		reader, err := vol.OpenDirectoryReader(path)
		if err != nil {
			return err
		}
		defer reader.Close()

		for {
			name, ok := reader.Next()
			if !ok {
				return nil
			}
			if info, err := reader.Info(follow); err == nil && info.IsDir() {
				name += "/"
			}
			fmt.Println(name)
		}

	case "local-path":
		local := vol.MapToLocalPath(path)
		if local == "" {
			return errors.New("volume has no local path for this entry")
		}
		fmt.Println(local)
		return nil

	case "canonical":
		fmt.Println(vol.MapToCanonicalForm(path))
		return nil

	case "relative":
		rel := vol.MapToRelativeForm(path)
		if rel == "" && path != "" {
			return fmt.Errorf("%q is not inside this volume", path)
		}
		fmt.Println(rel)
		return nil

	case "release":
		// A fresh process starts with no mount tracked, so acquire the
		// volume first; UDisks2 hands back the existing mount point if
		// the device is already mounted, and the release then applies.
		arbitrated, ok := vol.(interface {
			EnsureMounted() error
			EnsureUnmounted() error
		})
		if !ok {
			return nil
		}
		if err := arbitrated.EnsureMounted(); err != nil {
			return err
		}
		return arbitrated.EnsureUnmounted()

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}
