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

// Package config loads and guards the Lazyvol TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lazyvol/lazyvol/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	AppName       = "lazyvol"
	SchemaVersion = 1
	CfgEnv        = "LAZYVOL_CFG"
	CfgFile       = "config.toml"
	LogFile       = "lazyvol.log"

	// DefaultAttemptTimeout bounds each mount/unmount IPC step when the
	// config does not say otherwise.
	DefaultAttemptTimeout = 30 * time.Second
)

// Volume configures one lazily mounted volume.
type Volume struct {
	// URI identifies the volume, e.g. udisks://<device-id>[/subpath].
	URI string `toml:"uri"`
}

type Values struct {
	AttemptTimeout string   `toml:"attempt_timeout,omitempty"`
	Volumes        []Volume `toml:"volumes,omitempty"`
	ConfigSchema   int      `toml:"config_schema"`
	DebugLogging   bool     `toml:"debug_logging"`
}

var BaseDefaults = Values{
	ConfigSchema:   SchemaVersion,
	AttemptTimeout: DefaultAttemptTimeout.String(),
}

// Instance is a loaded configuration, safe for concurrent reads.
type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top, so fields
	// not present in the file retain their default values.
	newVals := c.defaults
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	if newVals.AttemptTimeout != "" {
		if _, err := time.ParseDuration(newVals.AttemptTimeout); err != nil {
			return fmt.Errorf("invalid attempt_timeout: %w", err)
		}
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := toml.Marshal(c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}

// AttemptTimeout returns the configured per-step IPC timeout. Invalid or
// empty values fall back to the default.
func (c *Instance) AttemptTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.vals.AttemptTimeout == "" {
		return DefaultAttemptTimeout
	}
	d, err := time.ParseDuration(c.vals.AttemptTimeout)
	if err != nil {
		return DefaultAttemptTimeout
	}
	return d
}

func (c *Instance) Volumes() []Volume {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Volume(nil), c.vals.Volumes...)
}
