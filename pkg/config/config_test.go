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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_CreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(CfgEnv, "")

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, CfgFile))
	require.NoError(t, err, "a default config file must be written")

	assert.Equal(t, DefaultAttemptTimeout, cfg.AttemptTimeout())
	assert.False(t, cfg.DebugLogging())
	assert.Empty(t, cfg.Volumes())
}

func TestNewConfig_EnvOverridesPath(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.toml")
	t.Setenv(CfgEnv, cfgPath)

	_, err := NewConfig(filepath.Join(dir, "unused"), BaseDefaults)
	require.NoError(t, err)

	_, err = os.Stat(cfgPath)
	require.NoError(t, err, "the env var must redirect the config file")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(CfgEnv, "")

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	cfg.SetDebugLogging(true)
	require.NoError(t, cfg.Save())

	reloaded, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.True(t, reloaded.DebugLogging())
}

func TestLoad_FileValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(CfgEnv, "")

	content := `
config_schema = 1
debug_logging = true
attempt_timeout = "45s"

[[volumes]]
uri = "udisks://drive42/music"

[[volumes]]
uri = "udisks://4A1C-9F03"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), []byte(content), 0o600))

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	assert.True(t, cfg.DebugLogging())
	assert.Equal(t, 45*time.Second, cfg.AttemptTimeout())
	assert.Equal(t, []Volume{
		{URI: "udisks://drive42/music"},
		{URI: "udisks://4A1C-9F03"},
	}, cfg.Volumes())
}

func TestLoad_SchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(CfgEnv, "")

	content := "config_schema = 99\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), []byte(content), 0o600))

	_, err := NewConfig(dir, BaseDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version mismatch")
}

func TestLoad_InvalidAttemptTimeout(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(CfgEnv, "")

	content := "config_schema = 1\nattempt_timeout = \"soon\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), []byte(content), 0o600))

	_, err := NewConfig(dir, BaseDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt_timeout")
}

func TestAttemptTimeout_FallsBackWhenUnset(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(CfgEnv, "")

	cfg, err := NewConfig(dir, Values{ConfigSchema: SchemaVersion})
	require.NoError(t, err)
	assert.Equal(t, DefaultAttemptTimeout, cfg.AttemptTimeout())
}

func TestVolumes_ReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(CfgEnv, "")

	defaults := BaseDefaults
	defaults.Volumes = []Volume{{URI: "udisks://drive42"}}

	cfg, err := NewConfig(dir, defaults)
	require.NoError(t, err)

	vols := cfg.Volumes()
	vols[0].URI = "mutated"
	assert.Equal(t, "udisks://drive42", cfg.Volumes()[0].URI)
}
