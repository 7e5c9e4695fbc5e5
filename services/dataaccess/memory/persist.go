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
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
)

type schemas struct{ tx *transactor }

func (p schemas) Create(ctx context.Context, dt *dataaccess.DataSetType) error {
	if err := p.tx.check(ctx); err != nil {
		return err
	}
	if dt == nil || dt.Name == "" {
		return fmt.Errorf("create: dataset type has no name")
	}
	for i, c := range dt.Columns {
		if dt.ColumnIndex(c.Name) != i {
			return fmt.Errorf("create %s: %w: %s", dt.Name, dataaccess.ErrColumnExists, c.Name)
		}
	}
	for _, pk := range dt.PrimaryKey {
		if dt.ColumnIndex(pk) < 0 {
			return fmt.Errorf("create %s: primary key: %w: %s", dt.Name, dataaccess.ErrColumnNotFound, pk)
		}
	}

	src := p.tx.src
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.closed {
		return dataaccess.ErrClosed
	}
	if _, ok := src.tables[key(dt.Name)]; ok {
		return fmt.Errorf("%w: %s", dataaccess.ErrDataSetExists, dt.Name)
	}
	src.tables[key(dt.Name)] = &table{schema: cloneType(dt), serial: make(map[int]int32)}
	src.logger.Debug("memory: table created",
		"table", dt.Name,
		"columns", len(dt.Columns))
	return nil
}

func (p schemas) Drop(ctx context.Context, name string) error {
	if err := p.tx.check(ctx); err != nil {
		return err
	}
	src := p.tx.src
	src.mu.Lock()
	defer src.mu.Unlock()
	if _, err := src.lookup(name); err != nil {
		return err
	}
	delete(src.tables, key(name))
	return nil
}

func (p schemas) AddColumn(ctx context.Context, name string, col dataaccess.Column) error {
	if err := p.tx.check(ctx); err != nil {
		return err
	}
	src := p.tx.src
	src.mu.Lock()
	defer src.mu.Unlock()
	t, err := src.lookup(name)
	if err != nil {
		return err
	}
	if t.schema.ColumnIndex(col.Name) >= 0 {
		return fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnExists, name, col.Name)
	}
	if col.Required && len(t.rows) > 0 {
		return fmt.Errorf("%w: required column %s added to non-empty table %s", dataaccess.ErrConstraint, col.Name, name)
	}
	t.schema.Columns = append(t.schema.Columns, col)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], nil)
	}
	return nil
}

func (p schemas) DropColumn(ctx context.Context, name, column string) error {
	if err := p.tx.check(ctx); err != nil {
		return err
	}
	src := p.tx.src
	src.mu.Lock()
	defer src.mu.Unlock()
	t, err := src.lookup(name)
	if err != nil {
		return err
	}
	i := t.schema.ColumnIndex(column)
	if i < 0 {
		return fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, name, column)
	}
	if slices.ContainsFunc(t.schema.PrimaryKey, func(pk string) bool { return strings.EqualFold(pk, column) }) {
		return fmt.Errorf("%w: cannot drop primary key column %s.%s", dataaccess.ErrConstraint, name, column)
	}
	t.schema.Columns = slices.Delete(t.schema.Columns, i, i+1)
	t.schema.Indexes = slices.DeleteFunc(t.schema.Indexes, func(idx dataaccess.Index) bool {
		return slices.ContainsFunc(idx.Columns, func(c string) bool { return strings.EqualFold(c, column) })
	})
	for r := range t.rows {
		t.rows[r] = slices.Delete(t.rows[r], i, i+1)
	}
	// Shift serial counters for columns after the dropped one.
	serial := make(map[int]int32, len(t.serial))
	for c, n := range t.serial {
		switch {
		case c < i:
			serial[c] = n
		case c > i:
			serial[c-1] = n
		}
	}
	t.serial = serial
	return nil
}

func (p schemas) AddIndex(ctx context.Context, name string, idx dataaccess.Index) error {
	if err := p.tx.check(ctx); err != nil {
		return err
	}
	src := p.tx.src
	src.mu.Lock()
	defer src.mu.Unlock()
	t, err := src.lookup(name)
	if err != nil {
		return err
	}
	for _, c := range idx.Columns {
		if t.schema.ColumnIndex(c) < 0 {
			return fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, name, c)
		}
	}
	for _, existing := range t.schema.Indexes {
		if strings.EqualFold(existing.Name, idx.Name) {
			return fmt.Errorf("index %s already exists on %s", idx.Name, name)
		}
	}
	t.schema.Indexes = append(t.schema.Indexes, dataaccess.Index{
		Name:    idx.Name,
		Kind:    idx.Kind,
		Columns: slices.Clone(idx.Columns),
	})
	return nil
}

type rows struct{ tx *transactor }

func (p rows) Add(ctx context.Context, name string, columns []string, values [][]any) error {
	if err := p.tx.check(ctx); err != nil {
		return err
	}
	src := p.tx.src
	src.mu.Lock()
	defer src.mu.Unlock()
	t, err := src.lookup(name)
	if err != nil {
		return err
	}

	pos := make([]int, len(columns))
	for j, c := range columns {
		i := t.schema.ColumnIndex(c)
		if i < 0 {
			return fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, name, c)
		}
		pos[j] = i
	}

	// Build every row first so a bad row leaves the table untouched.
	serial := make(map[int]int32, len(t.serial))
	for c, n := range t.serial {
		serial[c] = n
	}
	pending := make([][]any, 0, len(values))
	for r, in := range values {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(in) != len(columns) {
			return fmt.Errorf("add %s: row %d has %d values, want %d", name, r, len(in), len(columns))
		}
		row := make([]any, len(t.schema.Columns))
		for j, v := range in {
			cv, err := dataaccess.Coerce(t.schema.Columns[pos[j]], v)
			if err != nil {
				return fmt.Errorf("add %s row %d: %w", name, r, err)
			}
			row[pos[j]] = cv
		}
		for i, col := range t.schema.Columns {
			if !col.AutoNumber {
				continue
			}
			if row[i] == nil {
				serial[i]++
				row[i] = serial[i]
			} else if n, ok := row[i].(int32); ok && n > serial[i] {
				serial[i] = n
			}
		}
		for i, col := range t.schema.Columns {
			if col.Required && row[i] == nil {
				return fmt.Errorf("%w: %s.%s is required", dataaccess.ErrConstraint, name, col.Name)
			}
		}
		pending = append(pending, row)
	}

	if err := checkPrimaryKey(t, pending); err != nil {
		return err
	}
	t.rows = append(t.rows, pending...)
	t.serial = serial
	return nil
}

func checkPrimaryKey(t *table, pending [][]any) error {
	if len(t.schema.PrimaryKey) == 0 {
		return nil
	}
	idx := make([]int, len(t.schema.PrimaryKey))
	for i, pk := range t.schema.PrimaryKey {
		idx[i] = t.schema.ColumnIndex(pk)
	}
	keyOf := func(row []any) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteString(text(row[i]))
			b.WriteByte(0)
		}
		return b.String()
	}
	seen := make(map[string]struct{}, len(t.rows)+len(pending))
	for _, row := range t.rows {
		seen[keyOf(row)] = struct{}{}
	}
	for _, row := range pending {
		k := keyOf(row)
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: duplicate primary key in %s", dataaccess.ErrConstraint, t.schema.Name)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func (p rows) Update(ctx context.Context, name string, values map[string]any, where []dataaccess.Condition) (int64, error) {
	if err := p.tx.check(ctx); err != nil {
		return 0, err
	}
	src := p.tx.src
	src.mu.Lock()
	defer src.mu.Unlock()
	t, err := src.lookup(name)
	if err != nil {
		return 0, err
	}
	pred, err := compile(t.schema, where)
	if err != nil {
		return 0, err
	}
	set := make(map[int]any, len(values))
	for c, v := range values {
		i := t.schema.ColumnIndex(c)
		if i < 0 {
			return 0, fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, name, c)
		}
		cv, err := dataaccess.Coerce(t.schema.Columns[i], v)
		if err != nil {
			return 0, err
		}
		if cv == nil && t.schema.Columns[i].Required {
			return 0, fmt.Errorf("%w: %s.%s is required", dataaccess.ErrConstraint, name, c)
		}
		set[i] = cv
	}
	var n int64
	for _, row := range t.rows {
		if !pred(row) {
			continue
		}
		for i, v := range set {
			row[i] = v
		}
		n++
	}
	return n, nil
}

func (p rows) Remove(ctx context.Context, name string, where []dataaccess.Condition) (int64, error) {
	if err := p.tx.check(ctx); err != nil {
		return 0, err
	}
	src := p.tx.src
	src.mu.Lock()
	defer src.mu.Unlock()
	t, err := src.lookup(name)
	if err != nil {
		return 0, err
	}
	pred, err := compile(t.schema, where)
	if err != nil {
		return 0, err
	}
	before := len(t.rows)
	t.rows = slices.DeleteFunc(t.rows, pred)
	return int64(before - len(t.rows)), nil
}
