// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/geometry"
)

func openTestDB(t *testing.T) *DataSource {
	t.Helper()
	src, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func createParcels(t *testing.T, src *DataSource) dataaccess.Transactor {
	t.Helper()
	ctx := context.Background()
	tx, err := src.Transactor(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Close() })

	dt := dataaccess.NewDataSetType("parcels").
		Add(dataaccess.Column{Name: "id", Type: dataaccess.TypeInt32, AutoNumber: true}).
		Add(dataaccess.Column{Name: "owner", Type: dataaccess.TypeString, Size: 64, Required: true}).
		Add(dataaccess.Column{Name: "value", Type: dataaccess.TypeDouble}).
		Add(dataaccess.Column{Name: "geom", Type: dataaccess.TypeGeometry, SRID: 4326})
	dt.PrimaryKey = []string{"id"}
	dt.Indexes = []dataaccess.Index{{Name: "parcels_geom_idx", Kind: dataaccess.RTree, Columns: []string{"geom"}}}
	require.NoError(t, tx.DataSetTypePersistence().Create(ctx, dt))
	return tx
}

func TestSQLite_Schema(t *testing.T) {
	ctx := context.Background()
	src := openTestDB(t)
	tx := createParcels(t, src)

	dt, err := tx.CatalogLoader().DataSetType(ctx, "PARCELS")
	require.NoError(t, err)
	assert.Equal(t, "parcels", dt.Name)
	require.Len(t, dt.Columns, 4)
	assert.Equal(t, []string{"id"}, dt.PrimaryKey)
	assert.True(t, dt.Columns[0].AutoNumber)
	assert.Equal(t, dataaccess.TypeString, dt.Columns[1].Type)
	assert.Equal(t, 64, dt.Columns[1].Size)
	assert.True(t, dt.Columns[1].Required)
	assert.Equal(t, dataaccess.TypeDouble, dt.Columns[2].Type)
	assert.Equal(t, dataaccess.TypeGeometry, dt.Columns[3].Type)
	assert.Equal(t, 4326, dt.Columns[3].SRID)
	require.Len(t, dt.Indexes, 1)
	assert.Equal(t, dataaccess.RTree, dt.Indexes[0].Kind)

	names, err := tx.CatalogLoader().DataSetNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"parcels"}, names)

	err = tx.DataSetTypePersistence().Create(ctx, dataaccess.NewDataSetType("parcels"))
	assert.ErrorIs(t, err, dataaccess.ErrDataSetExists)

	t.Run("drop indexed column", func(t *testing.T) {
		require.NoError(t, tx.DataSetTypePersistence().DropColumn(ctx, "parcels", "geom"))
		dt, err := tx.CatalogLoader().DataSetType(ctx, "parcels")
		require.NoError(t, err)
		assert.Len(t, dt.Columns, 3)
		assert.Empty(t, dt.Indexes)
	})

	t.Run("add column", func(t *testing.T) {
		schema := tx.DataSetTypePersistence()
		require.NoError(t, schema.AddColumn(ctx, "parcels", dataaccess.Column{Name: "shape", Type: dataaccess.TypeGeometry, SRID: 3857}))
		err := schema.AddColumn(ctx, "parcels", dataaccess.Column{Name: "shape", Type: dataaccess.TypeGeometry})
		assert.ErrorIs(t, err, dataaccess.ErrColumnExists)

		dt, err := tx.CatalogLoader().DataSetType(ctx, "parcels")
		require.NoError(t, err)
		c, ok := dt.Column("shape")
		require.True(t, ok)
		assert.Equal(t, 3857, c.SRID)
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := tx.CatalogLoader().DataSetType(ctx, "nothing")
		assert.ErrorIs(t, err, dataaccess.ErrDataSetNotFound)
	})
}

func TestSQLite_Rows(t *testing.T) {
	ctx := context.Background()
	src := openTestDB(t)
	tx := createParcels(t, src)
	rows := tx.DataSetPersistence()

	err := rows.Add(ctx, "parcels", []string{"owner", "value", "geom"}, [][]any{
		{"carol", 3.5, geometry.NewBox(geometry.Envelope{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, 4326)},
		{"alice", 10, "POINT (4 2)"},
		{"bob", nil, nil},
	})
	require.NoError(t, err)

	t.Run("query ordered", func(t *testing.T) {
		ds, err := tx.Query(ctx, dataaccess.Select{From: "parcels", OrderBy: []string{"owner"}})
		require.NoError(t, err)
		defer ds.Close()

		require.True(t, ds.Next())
		owner, err := ds.String("owner")
		require.NoError(t, err)
		assert.Equal(t, "alice", owner)
		id, err := ds.Int32("id")
		require.NoError(t, err)
		assert.Equal(t, int32(2), id)
		v, err := ds.Double("value")
		require.NoError(t, err)
		assert.Equal(t, 10.0, v)
		g, err := ds.Geometry("geom")
		require.NoError(t, err)
		assert.Equal(t, geometry.NewPoint(4, 2, 0), g)

		require.True(t, ds.Next())
		null, err := ds.IsNull("value")
		require.NoError(t, err)
		assert.True(t, null)

		env, err := ds.Extent("geom")
		require.NoError(t, err)
		assert.Equal(t, geometry.Envelope{MinX: 0, MinY: 0, MaxX: 4, MaxY: 2}, env)
	})

	t.Run("geometry keeps srid", func(t *testing.T) {
		ds, err := tx.Query(ctx, dataaccess.Select{
			From:   "parcels",
			Fields: []string{"geom"},
			Where:  []dataaccess.Condition{dataaccess.Eq("owner", "carol")},
		})
		require.NoError(t, err)
		require.True(t, ds.Next())
		g, err := ds.Geometry("geom")
		require.NoError(t, err)
		assert.Equal(t, 4326, g.SRID())
		assert.Equal(t, 1, ds.Len())
	})

	t.Run("update and remove", func(t *testing.T) {
		n, err := rows.Update(ctx, "parcels", map[string]any{"value": 7.25}, []dataaccess.Condition{dataaccess.Eq("owner", "bob")})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = rows.Remove(ctx, "parcels", []dataaccess.Condition{dataaccess.Eq("id", 1)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		ds, err := tx.Query(ctx, dataaccess.Select{From: "parcels"})
		require.NoError(t, err)
		assert.Equal(t, 2, ds.Len())
	})

	t.Run("constraint violations roll back the batch", func(t *testing.T) {
		err := rows.Add(ctx, "parcels", []string{"owner"}, [][]any{{"dave"}, {nil}})
		assert.ErrorIs(t, err, dataaccess.ErrConstraint)

		ds, err := tx.Query(ctx, dataaccess.Select{From: "parcels", Where: []dataaccess.Condition{dataaccess.Eq("owner", "dave")}})
		require.NoError(t, err)
		assert.Equal(t, 0, ds.Len())
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := tx.Query(ctx, dataaccess.Select{From: "parcels", Fields: []string{"nope"}})
		assert.ErrorIs(t, err, dataaccess.ErrColumnNotFound)
	})
}

func TestSQLite_Closed(t *testing.T) {
	ctx := context.Background()
	src := openTestDB(t)
	tx, err := src.Transactor(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Close())

	_, err = tx.CatalogLoader().DataSetExists(ctx, "x")
	assert.ErrorIs(t, err, dataaccess.ErrClosed)

	require.NoError(t, src.Close())
	_, err = src.Transactor(ctx)
	assert.ErrorIs(t, err, dataaccess.ErrClosed)
}
