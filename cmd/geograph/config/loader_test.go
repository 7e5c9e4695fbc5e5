// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "te_graph", cfg.Database.Tables.GraphTable)
	assert.Equal(t, "inverse", cfg.GPM.Weights)
	assert.Equal(t, filepath.Join(Dir(), "snapshots"), cfg.Snapshot.Path)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "geograph.yaml", `
logging:
  level: debug
  file: /var/log/geograph.log
database:
  path: /data/city.db
  tables:
    graph_table: my_graphs
snapshot:
  gc_interval: 1m
gpm:
  weights: none
  permutations: 499
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "auto", cfg.Logging.Format, "unset fields keep defaults")
	assert.Equal(t, "/data/city.db", cfg.Database.Path)
	assert.Equal(t, "my_graphs", cfg.Database.Tables.GraphTable)
	assert.Equal(t, "te_graph_attr", cfg.Database.Tables.AttrTable)
	assert.Equal(t, time.Minute, cfg.Snapshot.GCInterval)
	assert.Equal(t, "none", cfg.GPM.Weights)
	assert.Equal(t, 499, cfg.GPM.Permutations)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "geograph.toml", `
[logging]
level = "warn"
format = "json"

[database]
path = "city.db"

[database.tables]
edge_model_suffix = "_edges"

[gpm]
normalize = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "city.db", cfg.Database.Path)
	assert.Equal(t, "_edges", cfg.Database.Tables.EdgeModelSuffix)
	assert.False(t, cfg.GPM.Normalize)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.yaml", "logging: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.toml", "[logging\nlevel="))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "level.yaml", "logging:\n  level: chatty\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(writeFile(t, "weights.yaml", "gpm:\n  weights: gaussian\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(writeFile(t, "tables.yaml", "database:\n  tables:\n    vertex_to: \"\"\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(writeFile(t, "snapshot.yaml", "snapshot:\n  path: \"\"\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"geograph.yaml", "geograph.toml"} {
		path := filepath.Join(dir, "nested", name)
		require.NoError(t, WriteDefault(path))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg, name)

		assert.Error(t, WriteDefault(path), "existing files are kept")
	}

	data, err := os.ReadFile(filepath.Join(dir, "nested", "geograph.yaml"))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "gpm")
}
