// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataaccess defines the relational contracts consumed by the graph
// package: data sources, transactors, catalog lookups, schema and row
// persistence, and query result sets.
//
// Two drivers implement these contracts: memory (in-process tables) and
// sqlite (modernc.org/sqlite).
package dataaccess

import (
	"context"
	"errors"

	"github.com/AleutianAI/AleutianGraph/services/geometry"
)

var (
	// ErrDataSetNotFound is returned when a table does not exist.
	ErrDataSetNotFound = errors.New("dataset not found")

	// ErrDataSetExists is returned when creating a table that already exists.
	ErrDataSetExists = errors.New("dataset already exists")

	// ErrColumnNotFound is returned when a column does not exist.
	ErrColumnNotFound = errors.New("column not found")

	// ErrColumnExists is returned when adding a column that already exists.
	ErrColumnExists = errors.New("column already exists")

	// ErrConstraint is returned when a row violates a required or primary
	// key constraint.
	ErrConstraint = errors.New("constraint violation")

	// ErrTypeMismatch is returned when a value does not fit a column type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrClosed is returned when using a closed source, transactor, or dataset.
	ErrClosed = errors.New("closed")
)

// DataSource is a connection factory for one backend.
type DataSource interface {
	// Transactor acquires a transactor. Callers must Close it.
	Transactor(ctx context.Context) (Transactor, error)

	// Close releases the source.
	Close() error
}

// Transactor is a short-lived session against a DataSource.
//
// Thread Safety: not safe for concurrent use.
type Transactor interface {
	CatalogLoader() CatalogLoader
	DataSetTypePersistence() DataSetTypePersistence
	DataSetPersistence() DataSetPersistence

	// Query runs a selection and returns a fully materialized result set.
	Query(ctx context.Context, sel Select) (DataSet, error)

	Close() error
}

// CatalogLoader answers schema questions.
type CatalogLoader interface {
	DataSetExists(ctx context.Context, name string) (bool, error)

	// DataSetType returns the live schema of a table, or ErrDataSetNotFound.
	DataSetType(ctx context.Context, name string) (*DataSetType, error)

	// DataSetNames lists the tables in the source, sorted.
	DataSetNames(ctx context.Context) ([]string, error)
}

// DataSetTypePersistence manages table schemas.
type DataSetTypePersistence interface {
	Create(ctx context.Context, dt *DataSetType) error
	Drop(ctx context.Context, name string) error
	AddColumn(ctx context.Context, table string, col Column) error
	DropColumn(ctx context.Context, table, column string) error
	AddIndex(ctx context.Context, table string, idx Index) error
}

// DataSetPersistence manages table rows.
type DataSetPersistence interface {
	// Add inserts rows. Each row holds one value per entry in columns.
	Add(ctx context.Context, table string, columns []string, rows [][]any) error

	// Update sets values on every row matching where and returns the count.
	Update(ctx context.Context, table string, values map[string]any, where []Condition) (int64, error)

	// Remove deletes every row matching where and returns the count.
	Remove(ctx context.Context, table string, where []Condition) (int64, error)
}

// DataSet is a forward cursor over query results.
//
// Accessors read the current row. Values are int32, float64, string,
// geometry.Geometry, or nil.
type DataSet interface {
	Next() bool
	Err() error
	Close() error

	Columns() []Column
	Len() int

	Int32(col string) (int32, error)
	Double(col string) (float64, error)
	String(col string) (string, error)
	Geometry(col string) (geometry.Geometry, error)
	IsNull(col string) (bool, error)
	Value(col string) (any, error)

	// Extent returns the envelope of a geometry column over every row.
	Extent(col string) (geometry.Envelope, error)
}

// Condition is an equality predicate. Conditions in a slice are AND-ed.
type Condition struct {
	Column string
	Value  any
}

// Eq is shorthand for a single Condition.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Value: value}
}

// Select describes a query over one table.
type Select struct {
	// Fields are the projected columns; empty means all.
	Fields  []string
	From    string
	Where   []Condition
	OrderBy []string
}
