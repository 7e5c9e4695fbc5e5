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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/geometry"
)

// RowSet is a materialized DataSet. Both drivers return query results as
// RowSets.
type RowSet struct {
	columns []Column
	rows    [][]any
	pos     int
	closed  bool
	err     error
}

// NewRowSet wraps rows whose values are already coerced to column types.
func NewRowSet(columns []Column, rows [][]any) *RowSet {
	return &RowSet{columns: columns, rows: rows, pos: -1}
}

// Next advances to the next row.
func (r *RowSet) Next() bool {
	if r.closed {
		r.err = ErrClosed
		return false
	}
	if r.pos+1 >= len(r.rows) {
		r.pos = len(r.rows)
		return false
	}
	r.pos++
	return true
}

// Err returns the first error encountered while iterating.
func (r *RowSet) Err() error { return r.err }

// Close releases the row set.
func (r *RowSet) Close() error {
	r.closed = true
	r.rows = nil
	return nil
}

// Columns returns the projected columns.
func (r *RowSet) Columns() []Column { return r.columns }

// Len returns the number of rows.
func (r *RowSet) Len() int { return len(r.rows) }

func (r *RowSet) index(col string) (int, error) {
	for i, c := range r.columns {
		if strings.EqualFold(c.Name, col) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrColumnNotFound, col)
}

// Value returns the raw value of col in the current row.
func (r *RowSet) Value(col string) (any, error) {
	if r.closed {
		return nil, ErrClosed
	}
	i, err := r.index(col)
	if err != nil {
		return nil, err
	}
	if r.pos < 0 || r.pos >= len(r.rows) {
		return nil, fmt.Errorf("dataset is not positioned on a row")
	}
	return r.rows[r.pos][i], nil
}

// IsNull reports whether col is null in the current row.
func (r *RowSet) IsNull(col string) (bool, error) {
	v, err := r.Value(col)
	if err != nil {
		return false, err
	}
	return v == nil, nil
}

// Int32 reads an integer column.
func (r *RowSet) Int32(col string) (int32, error) {
	v, err := r.Value(col)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int32)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T, not int32", ErrTypeMismatch, col, v)
	}
	return n, nil
}

// Double reads a numeric column. Integers are widened.
func (r *RowSet) Double(col string) (float64, error) {
	v, err := r.Value(col)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int32:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: %s is %T, not float64", ErrTypeMismatch, col, v)
}

// String reads any column as text. Null reads as the empty string.
func (r *RowSet) String(col string) (string, error) {
	v, err := r.Value(col)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case geometry.Geometry:
		return s.WKT(), nil
	default:
		return fmt.Sprint(s), nil
	}
}

// Geometry reads a geometry column.
func (r *RowSet) Geometry(col string) (geometry.Geometry, error) {
	v, err := r.Value(col)
	if err != nil {
		return nil, err
	}
	g, ok := v.(geometry.Geometry)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, not geometry", ErrTypeMismatch, col, v)
	}
	return g, nil
}

// Extent returns the envelope of every non-null geometry in col.
func (r *RowSet) Extent(col string) (geometry.Envelope, error) {
	env := geometry.NewEmptyEnvelope()
	if r.closed {
		return env, ErrClosed
	}
	i, err := r.index(col)
	if err != nil {
		return env, err
	}
	if r.columns[i].Type != TypeGeometry {
		return env, fmt.Errorf("%w: %s is not a geometry column", ErrTypeMismatch, col)
	}
	for _, row := range r.rows {
		if g, ok := row[i].(geometry.Geometry); ok {
			env.Expand(g.Envelope())
		}
	}
	return env, nil
}
