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

// ColumnType is the storage type of a column.
type ColumnType int

const (
	TypeUnknown ColumnType = iota
	TypeInt32
	TypeDouble
	TypeString
	TypeGeometry
)

var columnTypeNames = map[ColumnType]string{
	TypeUnknown:  "UNKNOWN",
	TypeInt32:    "INTEGER",
	TypeDouble:   "REAL",
	TypeString:   "TEXT",
	TypeGeometry: "GEOMETRY",
}

// String returns the SQL type name.
func (t ColumnType) String() string {
	if s, ok := columnTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// ParseColumnType maps a declared SQL type to a ColumnType using SQLite
// affinity rules.
func ParseColumnType(decl string) ColumnType {
	d := strings.ToUpper(decl)
	switch {
	case strings.Contains(d, "GEOMETRY"), strings.Contains(d, "POLYGON"), strings.Contains(d, "POINT"):
		return TypeGeometry
	case strings.Contains(d, "INT"):
		return TypeInt32
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return TypeString
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return TypeDouble
	default:
		return TypeUnknown
	}
}

// Column describes one table column.
type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	Size       int        `json:"size,omitempty"`
	AutoNumber bool       `json:"auto_number,omitempty"`
	Required   bool       `json:"required,omitempty"`
	SRID       int        `json:"srid,omitempty"`
}

// IndexKind selects the index structure.
type IndexKind int

const (
	BTree IndexKind = iota
	RTree
)

// Index describes a table index.
type Index struct {
	Name    string    `json:"name"`
	Kind    IndexKind `json:"kind"`
	Columns []string  `json:"columns"`
}

// DataSetType is the schema of a table.
type DataSetType struct {
	Name       string   `json:"name"`
	Columns    []Column `json:"columns"`
	PrimaryKey []string `json:"primary_key,omitempty"`
	Indexes    []Index  `json:"indexes,omitempty"`
}

// NewDataSetType creates an empty schema for name.
func NewDataSetType(name string) *DataSetType {
	return &DataSetType{Name: name}
}

// Add appends a column and returns dt for chaining.
func (dt *DataSetType) Add(col Column) *DataSetType {
	dt.Columns = append(dt.Columns, col)
	return dt
}

// Column looks up a column by case-insensitive name.
func (dt *DataSetType) Column(name string) (Column, bool) {
	i := dt.ColumnIndex(name)
	if i < 0 {
		return Column{}, false
	}
	return dt.Columns[i], true
}

// ColumnIndex returns the position of a column, or -1.
func (dt *DataSetType) ColumnIndex(name string) int {
	for i, c := range dt.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Coerce converts v to the Go representation used for col: int32, float64,
// string, geometry.Geometry, or nil. Geometry columns also accept WKT text.
func Coerce(col Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case TypeInt32:
		switch n := v.(type) {
		case int32:
			return n, nil
		case int:
			return int32(n), nil
		case int64:
			return int32(n), nil
		}
	case TypeDouble:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeGeometry:
		switch g := v.(type) {
		case geometry.Geometry:
			return g, nil
		case string:
			parsed, err := geometry.ParseWKT(g)
			if err != nil {
				return nil, fmt.Errorf("%w: column %s: %v", ErrTypeMismatch, col.Name, err)
			}
			return parsed, nil
		}
	}
	return nil, fmt.Errorf("%w: column %s (%s) cannot hold %T", ErrTypeMismatch, col.Name, col.Type, v)
}
