// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/geometry"
)

func newCities(t *testing.T) (*DataSource, dataaccess.Transactor) {
	t.Helper()
	ctx := context.Background()
	src := New()
	tx, err := src.Transactor(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Close() })

	dt := dataaccess.NewDataSetType("cities").
		Add(dataaccess.Column{Name: "id", Type: dataaccess.TypeInt32, AutoNumber: true, Required: true}).
		Add(dataaccess.Column{Name: "name", Type: dataaccess.TypeString, Size: 32}).
		Add(dataaccess.Column{Name: "pop", Type: dataaccess.TypeDouble}).
		Add(dataaccess.Column{Name: "geom", Type: dataaccess.TypeGeometry})
	dt.PrimaryKey = []string{"id"}
	require.NoError(t, tx.DataSetTypePersistence().Create(ctx, dt))

	err = tx.DataSetPersistence().Add(ctx, "cities", []string{"name", "pop", "geom"}, [][]any{
		{"b", 20.0, geometry.NewPoint(1, 1, 0)},
		{"a", 10, "POINT (2 3)"},
		{"c", nil, nil},
	})
	require.NoError(t, err)
	return src, tx
}

func TestDataSource_CatalogAndSchema(t *testing.T) {
	ctx := context.Background()
	_, tx := newCities(t)

	ok, err := tx.CatalogLoader().DataSetExists(ctx, "CITIES")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tx.CatalogLoader().DataSetExists(ctx, "towns")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = tx.CatalogLoader().DataSetType(ctx, "towns")
	assert.ErrorIs(t, err, dataaccess.ErrDataSetNotFound)

	err = tx.DataSetTypePersistence().Create(ctx, dataaccess.NewDataSetType("cities"))
	assert.ErrorIs(t, err, dataaccess.ErrDataSetExists)

	t.Run("add and drop column", func(t *testing.T) {
		schema := tx.DataSetTypePersistence()
		require.NoError(t, schema.AddColumn(ctx, "cities", dataaccess.Column{Name: "area", Type: dataaccess.TypeDouble}))
		require.NoError(t, schema.AddIndex(ctx, "cities", dataaccess.Index{Name: "cities_area_idx", Columns: []string{"area"}}))

		err := schema.AddColumn(ctx, "cities", dataaccess.Column{Name: "AREA", Type: dataaccess.TypeDouble})
		assert.ErrorIs(t, err, dataaccess.ErrColumnExists)

		dt, err := tx.CatalogLoader().DataSetType(ctx, "cities")
		require.NoError(t, err)
		assert.Len(t, dt.Columns, 5)
		assert.Len(t, dt.Indexes, 1)

		require.NoError(t, schema.DropColumn(ctx, "cities", "area"))
		dt, err = tx.CatalogLoader().DataSetType(ctx, "cities")
		require.NoError(t, err)
		assert.Len(t, dt.Columns, 4)
		assert.Empty(t, dt.Indexes)

		assert.ErrorIs(t, schema.DropColumn(ctx, "cities", "id"), dataaccess.ErrConstraint)
	})

	names, err := tx.CatalogLoader().DataSetNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cities"}, names)
}

func TestDataSource_Rows(t *testing.T) {
	ctx := context.Background()
	_, tx := newCities(t)

	t.Run("auto number and order by", func(t *testing.T) {
		ds, err := tx.Query(ctx, dataaccess.Select{From: "cities", Fields: []string{"id", "name"}, OrderBy: []string{"name"}})
		require.NoError(t, err)
		defer ds.Close()

		var got []string
		var ids []int32
		for ds.Next() {
			name, err := ds.String("name")
			require.NoError(t, err)
			id, err := ds.Int32("id")
			require.NoError(t, err)
			got = append(got, name)
			ids = append(ids, id)
		}
		assert.Equal(t, []string{"a", "b", "c"}, got)
		assert.Equal(t, []int32{2, 1, 3}, ids)
	})

	t.Run("where and update", func(t *testing.T) {
		n, err := tx.DataSetPersistence().Update(ctx, "cities", map[string]any{"pop": 99.5}, []dataaccess.Condition{dataaccess.Eq("name", "c")})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		ds, err := tx.Query(ctx, dataaccess.Select{From: "cities", Where: []dataaccess.Condition{dataaccess.Eq("pop", 99.5)}})
		require.NoError(t, err)
		require.True(t, ds.Next())
		id, err := ds.Int32("id")
		require.NoError(t, err)
		assert.Equal(t, int32(3), id)
		assert.False(t, ds.Next())
	})

	t.Run("extent", func(t *testing.T) {
		ds, err := tx.Query(ctx, dataaccess.Select{From: "cities"})
		require.NoError(t, err)
		env, err := ds.Extent("geom")
		require.NoError(t, err)
		assert.Equal(t, geometry.Envelope{MinX: 1, MinY: 1, MaxX: 2, MaxY: 3}, env)
	})

	t.Run("failed batch leaves table untouched", func(t *testing.T) {
		err := tx.DataSetPersistence().Add(ctx, "cities", []string{"id", "name"}, [][]any{
			{100, "x"},
			{1, "dup"},
		})
		assert.ErrorIs(t, err, dataaccess.ErrConstraint)

		ds, err := tx.Query(ctx, dataaccess.Select{From: "cities"})
		require.NoError(t, err)
		assert.Equal(t, 3, ds.Len())
	})

	t.Run("type mismatch", func(t *testing.T) {
		err := tx.DataSetPersistence().Add(ctx, "cities", []string{"pop"}, [][]any{{"lots"}})
		assert.ErrorIs(t, err, dataaccess.ErrTypeMismatch)
	})

	t.Run("remove", func(t *testing.T) {
		n, err := tx.DataSetPersistence().Remove(ctx, "cities", []dataaccess.Condition{dataaccess.Eq("id", 1)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		ds, err := tx.Query(ctx, dataaccess.Select{From: "cities"})
		require.NoError(t, err)
		assert.Equal(t, 2, ds.Len())
	})
}

func TestDataSource_Closed(t *testing.T) {
	ctx := context.Background()
	src, tx := newCities(t)
	require.NoError(t, tx.Close())

	_, err := tx.Query(ctx, dataaccess.Select{From: "cities"})
	assert.ErrorIs(t, err, dataaccess.ErrClosed)

	require.NoError(t, src.Close())
	_, err = src.Transactor(ctx)
	assert.ErrorIs(t, err, dataaccess.ErrClosed)
}
