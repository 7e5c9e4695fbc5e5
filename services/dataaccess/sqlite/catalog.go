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
	"database/sql"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
)

type catalog struct{ tx *transactor }

func (c catalog) DataSetExists(ctx context.Context, name string) (bool, error) {
	db, err := c.tx.db()
	if err != nil {
		return false, err
	}
	var n int
	err = db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND lower(name) = lower(?)`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	return n > 0, nil
}

func (c catalog) DataSetNames(ctx context.Context) ([]string, error) {
	db, err := c.tx.db()
	if err != nil {
		return nil, err
	}
	rs, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> ?
		 ORDER BY name`, geometryColumnsTable)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rs.Close()
	var names []string
	for rs.Next() {
		var n string
		if err := rs.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, n)
	}
	return names, rs.Err()
}

func (c catalog) DataSetType(ctx context.Context, name string) (*dataaccess.DataSetType, error) {
	db, err := c.tx.db()
	if err != nil {
		return nil, err
	}
	return readType(ctx, db, name)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// readType reads the live schema of a table. Each statement's rows are
// drained before the next statement runs because the pool holds a single
// connection.
func readType(ctx context.Context, q querier, name string) (*dataaccess.DataSetType, error) {
	canonical, err := canonicalName(ctx, q, name)
	if err != nil {
		return nil, err
	}
	dt := dataaccess.NewDataSetType(canonical)

	type pkCol struct {
		pos  int
		name string
		typ  string
	}
	var pks []pkCol

	rs, err := q.QueryContext(ctx, `PRAGMA table_info(`+quote(canonical)+`)`)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", canonical, err)
	}
	for rs.Next() {
		var (
			cid     int
			colName string
			decl    string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rs.Scan(&cid, &colName, &decl, &notNull, &dflt, &pk); err != nil {
			rs.Close()
			return nil, fmt.Errorf("scanning column of %s: %w", canonical, err)
		}
		dt.Add(dataaccess.Column{
			Name:     colName,
			Type:     dataaccess.ParseColumnType(decl),
			Size:     declaredSize(decl),
			Required: notNull != 0,
		})
		if pk > 0 {
			pks = append(pks, pkCol{pos: pk, name: colName, typ: decl})
		}
	}
	if err := closeRows(rs); err != nil {
		return nil, err
	}

	if len(pks) > 0 {
		dt.PrimaryKey = make([]string, len(pks))
		for _, p := range pks {
			dt.PrimaryKey[p.pos-1] = p.name
		}
		// A single INTEGER PRIMARY KEY aliases the rowid.
		if len(pks) == 1 && strings.EqualFold(pks[0].typ, "INTEGER") {
			i := dt.ColumnIndex(pks[0].name)
			dt.Columns[i].AutoNumber = true
			dt.Columns[i].Required = true
		}
	}

	if err := readSRIDs(ctx, q, dt); err != nil {
		return nil, err
	}
	if err := readIndexes(ctx, q, dt); err != nil {
		return nil, err
	}
	return dt, nil
}

func canonicalName(ctx context.Context, q querier, name string) (string, error) {
	rs, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND lower(name) = lower(?)`, name)
	if err != nil {
		return "", fmt.Errorf("looking up table %s: %w", name, err)
	}
	var canonical string
	found := rs.Next()
	if found {
		if err := rs.Scan(&canonical); err != nil {
			rs.Close()
			return "", fmt.Errorf("looking up table %s: %w", name, err)
		}
	}
	if err := closeRows(rs); err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s", dataaccess.ErrDataSetNotFound, name)
	}
	return canonical, nil
}

func readSRIDs(ctx context.Context, q querier, dt *dataaccess.DataSetType) error {
	rs, err := q.QueryContext(ctx,
		`SELECT column_name, srid FROM `+geometryColumnsTable+` WHERE lower(table_name) = lower(?)`, dt.Name)
	if err != nil {
		return fmt.Errorf("reading geometry columns of %s: %w", dt.Name, err)
	}
	srids := make(map[string]int)
	for rs.Next() {
		var col string
		var srid int
		if err := rs.Scan(&col, &srid); err != nil {
			rs.Close()
			return fmt.Errorf("scanning geometry column of %s: %w", dt.Name, err)
		}
		srids[strings.ToLower(col)] = srid
	}
	if err := closeRows(rs); err != nil {
		return err
	}
	for i, c := range dt.Columns {
		if srid, ok := srids[strings.ToLower(c.Name)]; ok {
			dt.Columns[i].SRID = srid
		}
	}
	return nil
}

func readIndexes(ctx context.Context, q querier, dt *dataaccess.DataSetType) error {
	rs, err := q.QueryContext(ctx, `PRAGMA index_list(`+quote(dt.Name)+`)`)
	if err != nil {
		return fmt.Errorf("reading indexes of %s: %w", dt.Name, err)
	}
	var names []string
	cols, _ := rs.Columns()
	for rs.Next() {
		// seq, name, unique, origin, partial
		dest := make([]any, len(cols))
		vals := make([]sql.NullString, len(cols))
		for i := range dest {
			dest[i] = &vals[i]
		}
		if err := rs.Scan(dest...); err != nil {
			rs.Close()
			return fmt.Errorf("scanning index of %s: %w", dt.Name, err)
		}
		if len(vals) > 3 && vals[3].String != "c" {
			continue
		}
		names = append(names, vals[1].String)
	}
	if err := closeRows(rs); err != nil {
		return err
	}

	for _, idxName := range names {
		info, err := q.QueryContext(ctx, `PRAGMA index_info(`+quote(idxName)+`)`)
		if err != nil {
			return fmt.Errorf("reading index %s: %w", idxName, err)
		}
		idx := dataaccess.Index{Name: idxName, Kind: dataaccess.BTree}
		for info.Next() {
			var seqno, cid int
			var col sql.NullString
			if err := info.Scan(&seqno, &cid, &col); err != nil {
				info.Close()
				return fmt.Errorf("scanning index %s: %w", idxName, err)
			}
			idx.Columns = append(idx.Columns, col.String)
		}
		if err := closeRows(info); err != nil {
			return err
		}
		if len(idx.Columns) == 1 {
			if c, ok := dt.Column(idx.Columns[0]); ok && c.Type == dataaccess.TypeGeometry {
				idx.Kind = dataaccess.RTree
			}
		}
		dt.Indexes = append(dt.Indexes, idx)
	}
	return nil
}

func closeRows(rs *sql.Rows) error {
	err := rs.Err()
	if cerr := rs.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	return nil
}

// declaredSize extracts n from declarations such as VARCHAR(n).
func declaredSize(decl string) int {
	open := strings.IndexByte(decl, '(')
	end := strings.IndexByte(decl, ')')
	if open < 0 || end < open {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(decl[open+1:end], "%d", &n); err != nil {
		return 0
	}
	return n
}

func declaredType(c dataaccess.Column) string {
	switch c.Type {
	case dataaccess.TypeString:
		if c.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.Size)
		}
		return "TEXT"
	case dataaccess.TypeUnknown:
		return "BLOB"
	default:
		return c.Type.String()
	}
}
