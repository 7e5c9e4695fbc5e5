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
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/geometry"
)

type schemas struct{ tx *transactor }

func columnDDL(c dataaccess.Column, inlinePK bool) string {
	if inlinePK {
		return quote(c.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	ddl := quote(c.Name) + " " + declaredType(c)
	if c.Required {
		ddl += " NOT NULL"
	}
	return ddl
}

func (p schemas) Create(ctx context.Context, dt *dataaccess.DataSetType) error {
	db, err := p.tx.db()
	if err != nil {
		return err
	}
	if dt == nil || dt.Name == "" {
		return fmt.Errorf("create: dataset type has no name")
	}
	exists, err := catalog{p.tx}.DataSetExists(ctx, dt.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", dataaccess.ErrDataSetExists, dt.Name)
	}

	inline := ""
	if len(dt.PrimaryKey) == 1 {
		if c, ok := dt.Column(dt.PrimaryKey[0]); ok && c.AutoNumber && c.Type == dataaccess.TypeInt32 {
			inline = c.Name
		}
	}

	defs := make([]string, 0, len(dt.Columns)+1)
	for _, c := range dt.Columns {
		defs = append(defs, columnDDL(c, strings.EqualFold(c.Name, inline)))
	}
	if len(dt.PrimaryKey) > 0 && inline == "" {
		defs = append(defs, "PRIMARY KEY ("+quoteAll(dt.PrimaryKey)+")")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create %s: %w", dt.Name, err)
	}
	defer tx.Rollback()

	stmt := "CREATE TABLE " + quote(dt.Name) + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", dt.Name, err)
	}
	for _, c := range dt.Columns {
		if c.Type == dataaccess.TypeGeometry {
			if err := registerGeometry(ctx, tx, dt.Name, c); err != nil {
				return err
			}
		}
	}
	for _, idx := range dt.Indexes {
		if _, err := tx.ExecContext(ctx, indexDDL(dt.Name, idx)); err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create %s: %w", dt.Name, err)
	}
	p.tx.src.logger.Debug("sqlite: table created",
		"table", dt.Name,
		"columns", len(dt.Columns))
	return nil
}

func registerGeometry(ctx context.Context, tx *sql.Tx, table string, c dataaccess.Column) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+geometryColumnsTable+` (table_name, column_name, srid) VALUES (?, ?, ?)`,
		table, c.Name, c.SRID)
	if err != nil {
		return fmt.Errorf("registering geometry column %s.%s: %w", table, c.Name, err)
	}
	return nil
}

func indexDDL(table string, idx dataaccess.Index) string {
	return "CREATE INDEX " + quote(idx.Name) + " ON " + quote(table) + " (" + quoteAll(idx.Columns) + ")"
}

func (p schemas) Drop(ctx context.Context, name string) error {
	db, err := p.tx.db()
	if err != nil {
		return err
	}
	dt, err := readType(ctx, db, name)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+quote(dt.Name)); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM `+geometryColumnsTable+` WHERE lower(table_name) = lower(?)`, dt.Name); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	return tx.Commit()
}

func (p schemas) AddColumn(ctx context.Context, name string, col dataaccess.Column) error {
	db, err := p.tx.db()
	if err != nil {
		return err
	}
	dt, err := readType(ctx, db, name)
	if err != nil {
		return err
	}
	if dt.ColumnIndex(col.Name) >= 0 {
		return fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnExists, name, col.Name)
	}
	ddl := columnDDL(col, false)
	if col.Required {
		// ALTER TABLE ADD COLUMN NOT NULL needs a default.
		ddl += " DEFAULT " + zeroLiteral(col.Type)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add column %s.%s: %w", name, col.Name, err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "ALTER TABLE "+quote(dt.Name)+" ADD COLUMN "+ddl); err != nil {
		return fmt.Errorf("add column %s.%s: %w", name, col.Name, err)
	}
	if col.Type == dataaccess.TypeGeometry {
		if err := registerGeometry(ctx, tx, dt.Name, col); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func zeroLiteral(t dataaccess.ColumnType) string {
	switch t {
	case dataaccess.TypeInt32, dataaccess.TypeDouble:
		return "0"
	default:
		return "''"
	}
}

func (p schemas) DropColumn(ctx context.Context, name, column string) error {
	db, err := p.tx.db()
	if err != nil {
		return err
	}
	dt, err := readType(ctx, db, name)
	if err != nil {
		return err
	}
	c, ok := dt.Column(column)
	if !ok {
		return fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, name, column)
	}
	if slices.ContainsFunc(dt.PrimaryKey, func(pk string) bool { return strings.EqualFold(pk, column) }) {
		return fmt.Errorf("%w: cannot drop primary key column %s.%s", dataaccess.ErrConstraint, name, column)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("drop column %s.%s: %w", name, column, err)
	}
	defer tx.Rollback()
	// SQLite refuses to drop an indexed column.
	for _, idx := range dt.Indexes {
		if slices.ContainsFunc(idx.Columns, func(ic string) bool { return strings.EqualFold(ic, column) }) {
			if _, err := tx.ExecContext(ctx, "DROP INDEX "+quote(idx.Name)); err != nil {
				return fmt.Errorf("drop index %s: %w", idx.Name, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE "+quote(dt.Name)+" DROP COLUMN "+quote(c.Name)); err != nil {
		return fmt.Errorf("drop column %s.%s: %w", name, column, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM `+geometryColumnsTable+` WHERE lower(table_name) = lower(?) AND lower(column_name) = lower(?)`,
		dt.Name, c.Name); err != nil {
		return fmt.Errorf("drop column %s.%s: %w", name, column, err)
	}
	return tx.Commit()
}

func (p schemas) AddIndex(ctx context.Context, name string, idx dataaccess.Index) error {
	db, err := p.tx.db()
	if err != nil {
		return err
	}
	dt, err := readType(ctx, db, name)
	if err != nil {
		return err
	}
	for _, c := range idx.Columns {
		if dt.ColumnIndex(c) < 0 {
			return fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, name, c)
		}
	}
	if _, err := db.ExecContext(ctx, indexDDL(dt.Name, idx)); err != nil {
		return fmt.Errorf("create index %s: %w", idx.Name, err)
	}
	return nil
}

type rows struct{ tx *transactor }

// toDriver converts a value for col into a database/sql argument.
func toDriver(col dataaccess.Column, v any) (any, error) {
	cv, err := dataaccess.Coerce(col, v)
	if err != nil {
		return nil, err
	}
	switch x := cv.(type) {
	case int32:
		return int64(x), nil
	case geometry.Geometry:
		return geometry.FormatWKT(x), nil
	}
	return cv, nil
}

// fromDriver converts a scanned value into the representation of col.
func fromDriver(col dataaccess.Column, raw any) (any, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if raw == nil {
		return nil, nil
	}
	switch col.Type {
	case dataaccess.TypeInt32:
		switch n := raw.(type) {
		case int64:
			return int32(n), nil
		case float64:
			return int32(n), nil
		case string:
			i, err := strconv.ParseInt(n, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", dataaccess.ErrTypeMismatch, col.Name, err)
			}
			return int32(i), nil
		}
	case dataaccess.TypeDouble:
		switch n := raw.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", dataaccess.ErrTypeMismatch, col.Name, err)
			}
			return f, nil
		}
	case dataaccess.TypeString:
		return fmt.Sprint(raw), nil
	case dataaccess.TypeGeometry:
		if s, ok := raw.(string); ok {
			g, err := geometry.ParseWKT(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", dataaccess.ErrTypeMismatch, col.Name, err)
			}
			return g, nil
		}
	default:
		return raw, nil
	}
	return nil, fmt.Errorf("%w: %s (%s) read %T", dataaccess.ErrTypeMismatch, col.Name, col.Type, raw)
}

func whereClause(dt *dataaccess.DataSetType, where []dataaccess.Condition) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(where))
	args := make([]any, 0, len(where))
	for _, w := range where {
		c, ok := dt.Column(w.Column)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, dt.Name, w.Column)
		}
		v, err := toDriver(c, w.Value)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, quote(c.Name)+" = ?")
		args = append(args, v)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func (p rows) Add(ctx context.Context, name string, columns []string, values [][]any) error {
	db, err := p.tx.db()
	if err != nil {
		return err
	}
	dt, err := readType(ctx, db, name)
	if err != nil {
		return err
	}
	cols := make([]dataaccess.Column, len(columns))
	for j, c := range columns {
		col, ok := dt.Column(c)
		if !ok {
			return fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, name, c)
		}
		cols[j] = col
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt := "INSERT INTO " + quote(dt.Name) + " (" + quoteAll(columns) + ") VALUES (" + marks + ")"

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	defer tx.Rollback()
	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	defer prepared.Close()

	for r, in := range values {
		if len(in) != len(columns) {
			return fmt.Errorf("add %s: row %d has %d values, want %d", name, r, len(in), len(columns))
		}
		args := make([]any, len(in))
		for j, v := range in {
			if args[j], err = toDriver(cols[j], v); err != nil {
				return fmt.Errorf("add %s row %d: %w", name, r, err)
			}
		}
		if _, err := prepared.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("add %s row %d: %w", name, r, classify(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}

// classify maps SQLite constraint failures onto dataaccess.ErrConstraint.
func classify(err error) error {
	if strings.Contains(err.Error(), "constraint failed") {
		return fmt.Errorf("%w: %v", dataaccess.ErrConstraint, err)
	}
	return err
}

func (p rows) Update(ctx context.Context, name string, values map[string]any, where []dataaccess.Condition) (int64, error) {
	db, err := p.tx.db()
	if err != nil {
		return 0, err
	}
	dt, err := readType(ctx, db, name)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+len(where))
	for _, k := range keys {
		c, ok := dt.Column(k)
		if !ok {
			return 0, fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, name, k)
		}
		v, err := toDriver(c, values[k])
		if err != nil {
			return 0, err
		}
		sets = append(sets, quote(c.Name)+" = ?")
		args = append(args, v)
	}
	clause, wargs, err := whereClause(dt, where)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, "UPDATE "+quote(dt.Name)+" SET "+strings.Join(sets, ", ")+clause, append(args, wargs...)...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", name, classify(err))
	}
	return res.RowsAffected()
}

func (p rows) Remove(ctx context.Context, name string, where []dataaccess.Condition) (int64, error) {
	db, err := p.tx.db()
	if err != nil {
		return 0, err
	}
	dt, err := readType(ctx, db, name)
	if err != nil {
		return 0, err
	}
	clause, args, err := whereClause(dt, where)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM "+quote(dt.Name)+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", name, err)
	}
	return res.RowsAffected()
}

// Query implements dataaccess.Transactor. Results are read fully and the
// cursor closed before returning.
func (tx *transactor) Query(ctx context.Context, sel dataaccess.Select) (dataaccess.DataSet, error) {
	db, err := tx.db()
	if err != nil {
		return nil, err
	}
	dt, err := readType(ctx, db, sel.From)
	if err != nil {
		return nil, err
	}

	cols := dt.Columns
	if len(sel.Fields) > 0 {
		cols = make([]dataaccess.Column, len(sel.Fields))
		for i, f := range sel.Fields {
			c, ok := dt.Column(f)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, sel.From, f)
			}
			cols[i] = c
		}
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	clause, args, err := whereClause(dt, sel.Where)
	if err != nil {
		return nil, err
	}
	stmt := "SELECT " + quoteAll(names) + " FROM " + quote(dt.Name) + clause
	if len(sel.OrderBy) > 0 {
		for _, o := range sel.OrderBy {
			if dt.ColumnIndex(o) < 0 {
				return nil, fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, sel.From, o)
			}
		}
		stmt += " ORDER BY " + quoteAll(sel.OrderBy)
	}

	rs, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", sel.From, err)
	}
	defer rs.Close()

	var out [][]any
	for rs.Next() {
		raw := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("query %s: %w", sel.From, err)
		}
		row := make([]any, len(cols))
		for i, c := range cols {
			if row[i], err = fromDriver(c, raw[i]); err != nil {
				return nil, err
			}
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", sel.From, err)
	}
	return dataaccess.NewRowSet(cols, out), nil
}
