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
	"time"

	"github.com/AleutianAI/AleutianGraph/services/graph/database"
	"github.com/AleutianAI/AleutianGraph/services/graph/snapshot"
	"github.com/AleutianAI/AleutianGraph/services/telemetry"
)

type GeographConfig struct {
	// Logging: level, format, and optional rotating log file
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Database: the SQLite file holding datasets and saved graphs
	Database DatabaseConfig `yaml:"database" toml:"database"`

	// Snapshot: the BadgerDB store for whole-graph snapshots
	Snapshot snapshot.Config `yaml:"snapshot" toml:"snapshot"`

	// GPM: defaults for proximity matrix builds
	GPM GPMConfig `yaml:"gpm" toml:"gpm"`

	// Telemetry: trace and metric exporters
	Telemetry telemetry.Config `yaml:"telemetry" toml:"telemetry"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=text json auto"` // auto: text on a terminal

	// File enables rotation through lumberjack; empty logs to stderr
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" validate:"gte=0"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

type DatabaseConfig struct {
	Path   string              `yaml:"path" toml:"path" validate:"required"`
	Tables database.TableNames `yaml:"tables" toml:"tables"`

	// LoaderCache is the number of vertex ids the graph loader remembers
	LoaderCache int `yaml:"loader_cache" toml:"loader_cache" validate:"gte=0"`
}

type GPMConfig struct {
	Weights   string  `yaml:"weights" toml:"weights" validate:"oneof=none inverse squared-inverse"`
	Normalize bool    `yaml:"normalize" toml:"normalize"`
	Tolerance float64 `yaml:"tolerance" toml:"tolerance" validate:"gt=0"`
	Symmetric bool    `yaml:"symmetric" toml:"symmetric"`

	// Permutations for the Moran significance test
	Permutations int `yaml:"permutations" toml:"permutations" validate:"gte=1"`
}

// Dir returns the per-user geograph directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".geograph"
	}
	return filepath.Join(home, ".geograph")
}

func DefaultConfig() GeographConfig {
	dir := Dir()
	snap := snapshot.DefaultConfig(filepath.Join(dir, "snapshots"))
	snap.GCInterval = 10 * time.Minute
	return GeographConfig{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  50,
			MaxAgeDays: 28,
			MaxBackups: 3,
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(dir, "geograph.db"),
			Tables:      database.DefaultTableNames(),
			LoaderCache: database.DefaultCacheSize,
		},
		Snapshot: snap,
		GPM: GPMConfig{
			Weights:      "inverse",
			Normalize:    true,
			Tolerance:    1e-9,
			Symmetric:    true,
			Permutations: 99,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}
