// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlite implements the dataaccess contracts over modernc.org/sqlite.
//
// Geometries are stored as EWKT text in columns declared GEOMETRY; their
// SRIDs are recorded in the geometry_columns table. SQLite has no native
// R-tree index on plain tables, so RTree indexes are created as B-tree
// indexes over the WKT column.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
)

const geometryColumnsTable = "geometry_columns"

// DataSource is a SQLite database file.
//
// The pool is limited to one connection: schema changes and rows are always
// issued on the same session, and in-memory databases (":memory:") stay
// alive for the life of the source.
type DataSource struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Option configures a DataSource.
type Option func(*DataSource)

// WithLogger sets the logger used for schema changes.
func WithLogger(l *slog.Logger) Option {
	return func(s *DataSource) {
		if l != nil {
			s.logger = l
		}
	}
}

func allPragmas() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string, opts ...Option) (*DataSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	ddl := `CREATE TABLE IF NOT EXISTS ` + geometryColumnsTable + ` (
		table_name  TEXT NOT NULL,
		column_name TEXT NOT NULL,
		srid        INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (table_name, column_name)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating %s: %w", geometryColumnsTable, err)
	}

	s := &DataSource{db: db, path: path, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the database path.
func (s *DataSource) Path() string { return s.path }

// Transactor implements dataaccess.DataSource.
func (s *DataSource) Transactor(ctx context.Context) (dataaccess.Transactor, error) {
	if err := s.db.PingContext(ctx); err != nil {
		if strings.Contains(err.Error(), "database is closed") {
			return nil, dataaccess.ErrClosed
		}
		return nil, fmt.Errorf("acquiring transactor: %w", err)
	}
	return &transactor{src: s}, nil
}

// Close implements dataaccess.DataSource.
func (s *DataSource) Close() error {
	return s.db.Close()
}

type transactor struct {
	src    *DataSource
	closed bool
}

func (tx *transactor) CatalogLoader() dataaccess.CatalogLoader                   { return catalog{tx} }
func (tx *transactor) DataSetTypePersistence() dataaccess.DataSetTypePersistence { return schemas{tx} }
func (tx *transactor) DataSetPersistence() dataaccess.DataSetPersistence         { return rows{tx} }

func (tx *transactor) Close() error {
	tx.closed = true
	return nil
}

func (tx *transactor) db() (*sql.DB, error) {
	if tx.closed {
		return nil, dataaccess.ErrClosed
	}
	return tx.src.db, nil
}

// quote returns name as a SQL identifier.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = quote(n)
	}
	return strings.Join(q, ", ")
}
