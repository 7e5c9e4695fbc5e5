// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memory is an in-process dataaccess driver. Tables live in maps
// guarded by a single lock; every transactor sees committed state
// immediately.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/geometry"
)

// DataSource holds a set of in-memory tables.
//
// Thread Safety: safe for concurrent use.
type DataSource struct {
	mu     sync.RWMutex
	tables map[string]*table
	closed bool
	logger *slog.Logger
}

type table struct {
	schema *dataaccess.DataSetType
	rows   [][]any
	serial map[int]int32
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

// New creates an empty DataSource.
func New(opts ...Option) *DataSource {
	s := &DataSource{
		tables: make(map[string]*table),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transactor implements dataaccess.DataSource.
func (s *DataSource) Transactor(ctx context.Context) (dataaccess.Transactor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, dataaccess.ErrClosed
	}
	return &transactor{src: s}, nil
}

// Close implements dataaccess.DataSource.
func (s *DataSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tables = nil
	return nil
}

func key(name string) string { return strings.ToLower(name) }

// lookup must be called with s.mu held.
func (s *DataSource) lookup(name string) (*table, error) {
	if s.closed {
		return nil, dataaccess.ErrClosed
	}
	t, ok := s.tables[key(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataaccess.ErrDataSetNotFound, name)
	}
	return t, nil
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

func (tx *transactor) check(ctx context.Context) error {
	if tx.closed {
		return dataaccess.ErrClosed
	}
	return ctx.Err()
}

// Query implements dataaccess.Transactor.
func (tx *transactor) Query(ctx context.Context, sel dataaccess.Select) (dataaccess.DataSet, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}
	tx.src.mu.RLock()
	defer tx.src.mu.RUnlock()

	t, err := tx.src.lookup(sel.From)
	if err != nil {
		return nil, err
	}

	proj := make([]int, 0, len(t.schema.Columns))
	if len(sel.Fields) == 0 {
		for i := range t.schema.Columns {
			proj = append(proj, i)
		}
	} else {
		for _, f := range sel.Fields {
			i := t.schema.ColumnIndex(f)
			if i < 0 {
				return nil, fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, sel.From, f)
			}
			proj = append(proj, i)
		}
	}

	pred, err := compile(t.schema, sel.Where)
	if err != nil {
		return nil, err
	}

	var matched [][]any
	for _, row := range t.rows {
		if pred(row) {
			matched = append(matched, row)
		}
	}

	if len(sel.OrderBy) > 0 {
		order := make([]int, 0, len(sel.OrderBy))
		for _, o := range sel.OrderBy {
			i := t.schema.ColumnIndex(o)
			if i < 0 {
				return nil, fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, sel.From, o)
			}
			order = append(order, i)
		}
		sort.SliceStable(matched, func(a, b int) bool {
			for _, i := range order {
				if c := compareValues(matched[a][i], matched[b][i]); c != 0 {
					return c < 0
				}
			}
			return false
		})
	}

	cols := make([]dataaccess.Column, len(proj))
	for j, i := range proj {
		cols[j] = t.schema.Columns[i]
	}
	out := make([][]any, len(matched))
	for r, row := range matched {
		vals := make([]any, len(proj))
		for j, i := range proj {
			vals[j] = row[i]
		}
		out[r] = vals
	}
	return dataaccess.NewRowSet(cols, out), nil
}

// compile turns equality conditions into a row predicate.
func compile(dt *dataaccess.DataSetType, where []dataaccess.Condition) (func([]any) bool, error) {
	type cond struct {
		idx int
		val any
	}
	conds := make([]cond, 0, len(where))
	for _, w := range where {
		i := dt.ColumnIndex(w.Column)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s.%s", dataaccess.ErrColumnNotFound, dt.Name, w.Column)
		}
		v, err := dataaccess.Coerce(dt.Columns[i], w.Value)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond{idx: i, val: v})
	}
	return func(row []any) bool {
		for _, c := range conds {
			if c.val == nil || row[c.idx] == nil {
				return false
			}
			if compareValues(row[c.idx], c.val) != 0 {
				return false
			}
		}
		return true
	}, nil
}

// compareValues orders nulls first, then numbers, then text.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, aNum := number(a)
	fb, bNum := number(b)
	if aNum && bNum {
		return cmp.Compare(fa, fb)
	}
	return strings.Compare(text(a), text(b))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func text(v any) string {
	if g, ok := v.(geometry.Geometry); ok {
		return g.WKT()
	}
	return fmt.Sprint(v)
}

type catalog struct{ tx *transactor }

func (c catalog) DataSetExists(ctx context.Context, name string) (bool, error) {
	if err := c.tx.check(ctx); err != nil {
		return false, err
	}
	c.tx.src.mu.RLock()
	defer c.tx.src.mu.RUnlock()
	if c.tx.src.closed {
		return false, dataaccess.ErrClosed
	}
	_, ok := c.tx.src.tables[key(name)]
	return ok, nil
}

func (c catalog) DataSetType(ctx context.Context, name string) (*dataaccess.DataSetType, error) {
	if err := c.tx.check(ctx); err != nil {
		return nil, err
	}
	c.tx.src.mu.RLock()
	defer c.tx.src.mu.RUnlock()
	t, err := c.tx.src.lookup(name)
	if err != nil {
		return nil, err
	}
	return cloneType(t.schema), nil
}

func (c catalog) DataSetNames(ctx context.Context) ([]string, error) {
	if err := c.tx.check(ctx); err != nil {
		return nil, err
	}
	c.tx.src.mu.RLock()
	defer c.tx.src.mu.RUnlock()
	if c.tx.src.closed {
		return nil, dataaccess.ErrClosed
	}
	names := make([]string, 0, len(c.tx.src.tables))
	for _, t := range c.tx.src.tables {
		names = append(names, t.schema.Name)
	}
	slices.Sort(names)
	return names, nil
}

func cloneType(dt *dataaccess.DataSetType) *dataaccess.DataSetType {
	out := &dataaccess.DataSetType{
		Name:       dt.Name,
		Columns:    slices.Clone(dt.Columns),
		PrimaryKey: slices.Clone(dt.PrimaryKey),
		Indexes:    make([]dataaccess.Index, len(dt.Indexes)),
	}
	for i, idx := range dt.Indexes {
		out.Indexes[i] = dataaccess.Index{Name: idx.Name, Kind: idx.Kind, Columns: slices.Clone(idx.Columns)}
	}
	return out
}
