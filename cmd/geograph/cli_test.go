// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/dataaccess/sqlite"
	"github.com/AleutianAI/AleutianGraph/services/geometry"
	"github.com/AleutianAI/AleutianGraph/services/graph/database"
	"github.com/AleutianAI/AleutianGraph/services/sa"
)

// cliEnv is a temp directory with a config file, a seeded database, and a
// snapshot store path.
type cliEnv struct {
	dir    string
	config string
	db     string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := &cliEnv{
		dir:    dir,
		config: filepath.Join(dir, "geograph.yaml"),
		db:     filepath.Join(dir, "city.db"),
	}
	cfg := fmt.Sprintf(`
logging:
  level: debug
database:
  path: %s
snapshot:
  path: %s
  sync_writes: false
  gc_interval: 0s
telemetry:
  trace_exporter: none
  metric_exporter: none
`, env.db, filepath.Join(dir, "snapshots"))
	require.NoError(t, os.WriteFile(env.config, []byte(cfg), 0644))

	ctx := context.Background()
	src, err := sqlite.Open(ctx, env.db)
	require.NoError(t, err)
	defer src.Close()
	tx, err := src.Transactor(ctx)
	require.NoError(t, err)
	defer tx.Close()

	dt := dataaccess.NewDataSetType("districts").
		Add(dataaccess.Column{Name: "id", Type: dataaccess.TypeInt32, Required: true}).
		Add(dataaccess.Column{Name: "pop", Type: dataaccess.TypeDouble}).
		Add(dataaccess.Column{Name: "geom", Type: dataaccess.TypeGeometry, SRID: 4326})
	dt.PrimaryKey = []string{"id"}
	require.NoError(t, tx.DataSetTypePersistence().Create(ctx, dt))
	var rows [][]any
	for i, pop := range []float64{10, 20, 60} {
		x := float64(i)
		box := geometry.NewBox(geometry.Envelope{MinX: x, MinY: 0, MaxX: x + 1, MaxY: 1}, 4326)
		rows = append(rows, []any{i + 1, pop, box})
	}
	require.NoError(t, tx.DataSetPersistence().Add(ctx, "districts", []string{"id", "pop", "geom"}, rows))
	return env
}

// run executes one geograph invocation and returns its stdout.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := execute(context.Background(), append([]string{"--config", e.config}, args...), &out, &errOut)
	return out.String(), err
}

func (e *cliEnv) graphID(t *testing.T, name string) int {
	t.Helper()
	ctx := context.Background()
	src, err := sqlite.Open(ctx, e.db)
	require.NoError(t, err)
	defer src.Close()
	entries, err := database.List(ctx, src, database.DefaultTableNames())
	require.NoError(t, err)
	for _, entry := range entries {
		if entry.Name == name {
			return entry.ID
		}
	}
	t.Fatalf("graph %s not saved", name)
	return 0
}

func TestCLI_GPMWorkflow(t *testing.T) {
	env := newCLIEnv(t)
	gal := filepath.Join(env.dir, "row.gal")

	out, err := env.run(t, "gpm", "adjacency", "districts",
		"--id", "id", "--attr", "pop", "--name", "row",
		"--gal", gal, "--save", "--snapshot", "row")
	require.NoError(t, err)
	assert.Contains(t, out, "adjacency gpm of districts (3 vertices, 4 edges)")
	assert.Contains(t, out, "weights:  inverse")
	assert.FileExists(t, gal)

	out, err = env.run(t, "graphs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "row_edge_model")

	id := env.graphID(t, "row")
	out, err = env.run(t, "graphs", "show", strconv.Itoa(id), "--vertex", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "coords")
	assert.Contains(t, out, "[1 3]")

	out, err = env.run(t, "mst", "--graph", strconv.Itoa(id), "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "total distance: 2")
	assert.Contains(t, out, "2 of 4")
	assert.NotZero(t, env.graphID(t, "row_mst"))

	out, err = env.run(t, "mst", "--from-snapshot", "row", "--snapshot", "row_tree")
	require.NoError(t, err)
	assert.Contains(t, out, "row_mst")

	out, err = env.run(t, "snapshot", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "row_tree")

	out, err = env.run(t, "snapshot", "delete", "row", "row_tree")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted: row_tree")
	out, err = env.run(t, "snapshot", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no snapshots")

	out, err = env.run(t, "gpm", "import", gal)
	require.NoError(t, err)
	assert.Contains(t, out, "imported gpm of districts (3 vertices, 4 edges)")
	assert.Contains(t, out, "weights:  none")
}

func TestCLI_Distance(t *testing.T) {
	env := newCLIEnv(t)
	gwt := filepath.Join(env.dir, "row.gwt")

	out, err := env.run(t, "gpm", "distance", "districts", "--id", "id", "--max", "1", "--gwt", gwt, "--weights", "squared-inverse")
	require.NoError(t, err)
	assert.Contains(t, out, "(3 vertices, 6 edges)")

	data, err := os.ReadFile(gwt)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1 3 2.0000000")

	tree := filepath.Join(env.dir, "tree.gwt")
	out, err = env.run(t, "mst", "--from-file", gwt, "--gwt", tree)
	require.NoError(t, err)
	assert.Contains(t, out, "total distance: 2")
	assert.Contains(t, out, "2 of 6")
	data, err = os.ReadFile(tree)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1 2 1.0000000")
	assert.Contains(t, string(data), "2 3 1.0000000")
	assert.NotContains(t, string(data), "1 3 ")

	_, err = env.run(t, "mst", "--from-file", gwt, "--graph", "1")
	assert.Error(t, err)

	_, err = env.run(t, "gpm", "distance", "districts", "--id", "id", "--max", "-1")
	assert.Error(t, err)
}

func TestCLI_Stats(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "stats", "districts", "--id", "id", "--attr", "pop", "--permutations", "9", "--weights", "none", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "mean:")
	assert.Contains(t, out, "p-value:")
	assert.Contains(t, out, "low-high:")
	assert.Contains(t, out, "significant:")
	assert.Contains(t, out, "_vertex_attr")
}

func TestCLI_StatsOverSavedName(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "gpm", "adjacency", "districts", "--id", "id", "--name", "roads", "--save")
	require.NoError(t, err)
	id := env.graphID(t, "roads")

	out, err := env.run(t, "stats", "districts", "--id", "id", "--attr", "pop", "--name", "roads",
		"--permutations", "9", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("graph %d (roads_vertex_attr)", id))

	out, err = env.run(t, "graphs", "show", strconv.Itoa(id), "--vertex", "1")
	require.NoError(t, err)
	assert.Contains(t, out, sa.LisaMapAttr)
	assert.Contains(t, out, sa.MoranMapAttr)
}

func TestCLI_Config(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.dir, "fresh.toml")
	out, err := env.run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	out, err = env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "path: "+env.db)

	out, err = env.run(t, "--db", filepath.Join(env.dir, "other.db"), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "other.db")
}

func TestCLI_Errors(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "mst")
	assert.ErrorContains(t, err, "exactly one of")

	_, err = env.run(t, "mst", "--graph", "42")
	assert.Error(t, err)

	_, err = env.run(t, "gpm", "adjacency", "districts")
	assert.ErrorContains(t, err, "id")

	_, err = env.run(t, "--log-level", "chatty", "graphs", "list")
	assert.Error(t, err)

	out, err := env.run(t, "graphs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no graphs saved")
}
