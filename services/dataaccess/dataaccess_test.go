// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataaccess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/geometry"
)

func TestRowSet(t *testing.T) {
	cols := []Column{
		{Name: "id", Type: TypeInt32},
		{Name: "pop", Type: TypeDouble},
		{Name: "name", Type: TypeString},
		{Name: "geom", Type: TypeGeometry},
	}
	rows := [][]any{
		{int32(1), 10.5, "a", geometry.NewBox(geometry.Envelope{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, 0)},
		{int32(2), nil, "b", geometry.NewPoint(5, -2, 0)},
	}

	t.Run("iterates every row", func(t *testing.T) {
		rs := NewRowSet(cols, rows)
		var ids []int32
		for rs.Next() {
			id, err := rs.Int32("ID")
			require.NoError(t, err)
			ids = append(ids, id)
		}
		require.NoError(t, rs.Err())
		assert.Equal(t, []int32{1, 2}, ids)
		assert.False(t, rs.Next())
	})

	t.Run("typed accessors", func(t *testing.T) {
		rs := NewRowSet(cols, rows)
		require.True(t, rs.Next())

		d, err := rs.Double("id")
		require.NoError(t, err)
		assert.Equal(t, 1.0, d)

		_, err = rs.Int32("name")
		assert.ErrorIs(t, err, ErrTypeMismatch)

		_, err = rs.Value("missing")
		assert.ErrorIs(t, err, ErrColumnNotFound)

		require.True(t, rs.Next())
		null, err := rs.IsNull("pop")
		require.NoError(t, err)
		assert.True(t, null)
	})

	t.Run("extent spans all rows", func(t *testing.T) {
		rs := NewRowSet(cols, rows)
		env, err := rs.Extent("geom")
		require.NoError(t, err)
		assert.Equal(t, geometry.Envelope{MinX: 0, MinY: -2, MaxX: 5, MaxY: 1}, env)

		_, err = rs.Extent("name")
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("closed", func(t *testing.T) {
		rs := NewRowSet(cols, rows)
		require.NoError(t, rs.Close())
		assert.False(t, rs.Next())
		assert.ErrorIs(t, rs.Err(), ErrClosed)
	})
}

func TestCoerce(t *testing.T) {
	v, err := Coerce(Column{Name: "n", Type: TypeInt32}, 7)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)

	v, err = Coerce(Column{Name: "d", Type: TypeDouble}, int32(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = Coerce(Column{Name: "g", Type: TypeGeometry}, "POINT (1 2)")
	require.NoError(t, err)
	assert.Equal(t, geometry.NewPoint(1, 2, 0), v)

	_, err = Coerce(Column{Name: "s", Type: TypeString}, 1.5)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	v, err = Coerce(Column{Name: "s", Type: TypeString}, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestParseColumnType(t *testing.T) {
	assert.Equal(t, TypeInt32, ParseColumnType("INTEGER"))
	assert.Equal(t, TypeDouble, ParseColumnType("double precision"))
	assert.Equal(t, TypeString, ParseColumnType("VARCHAR(255)"))
	assert.Equal(t, TypeGeometry, ParseColumnType("GEOMETRY"))
	assert.Equal(t, TypeUnknown, ParseColumnType("BLOB"))
}
