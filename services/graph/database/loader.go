// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/graph"
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// CacheSize bounds the number of vertex neighbourhoods remembered as
	// loaded. Zero uses DefaultCacheSize.
	CacheSize int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Loader reads vertex and edge rows written by WriteGraph back into a graph.
//
// LoadVertex remembers which vertices already had their neighbourhood
// loaded; a repeated call for a cached id that is still in the graph does
// not query the backend. Call Invalidate or Purge after rewriting rows.
//
// Thread Safety: NOT safe for concurrent use with the same graph.
type Loader struct {
	md     *Metadata
	cache  *Cache[int, struct{}]
	logger *slog.Logger
}

// NewLoader creates a loader for saved edge-list metadata.
func NewLoader(md *Metadata, opts LoaderOptions) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{md: md, cache: NewCache[int, struct{}](opts.CacheSize), logger: logger}
}

// CacheStats reports neighbourhood cache activity.
func (l *Loader) CacheStats() CacheStats { return l.cache.Stats() }

// Invalidate forgets that id's neighbourhood was loaded.
func (l *Loader) Invalidate(id int) { l.cache.Remove(id) }

// Purge forgets every loaded neighbourhood.
func (l *Loader) Purge() { l.cache.Purge() }

func (l *Loader) check() error {
	if l.md == nil {
		return fmt.Errorf("loader: nil metadata")
	}
	if !l.md.Saved() {
		return fmt.Errorf("loader %s: %w", l.md.Name(), graph.ErrNotSaved)
	}
	if l.md.StorageMode() == graph.VertexList {
		return fmt.Errorf("loader %s: vertex-list table model: %w", l.md.Name(), graph.ErrNotImplemented)
	}
	return nil
}

// LoadAll inserts every stored vertex and edge into g.
//
// Description:
//
//	Vertex attribute rows are read first in vertex id order, then edge rows
//	in edge id order. Edge endpoints without a vertex row are added with
//	null attributes. Entities already in g are left untouched.
//
// Outputs:
//
//	error - graph.ErrNotSaved, graph.ErrNotImplemented, ctx.Err(), or a
//	        wrapped backend error.
func (l *Loader) LoadAll(ctx context.Context, g *graph.Graph) (err error) {
	if err := l.check(); err != nil {
		return err
	}
	ctx, span := l.md.startSpan(ctx, "LoadAll")
	defer func() { endSpan(span, err) }()

	n := l.md.names
	vertices, edges := 0, 0
	if l.md.HasVertexAttrTable() {
		err := l.scan(ctx, dataaccess.Select{From: l.md.VertexTable(), OrderBy: []string{n.VertexID}},
			func(ds dataaccess.DataSet) error {
				added, err := l.insertVertexRow(g, ds)
				if added {
					vertices++
				}
				return err
			})
		if err != nil {
			return err
		}
	}
	err = l.scan(ctx, dataaccess.Select{From: l.md.EdgeTable(), OrderBy: []string{n.EdgeID}},
		func(ds dataaccess.DataSet) error {
			added, err := l.insertEdgeRow(g, ds)
			if added {
				edges++
			}
			return err
		})
	if err != nil {
		return err
	}
	l.logger.Debug("graph rows loaded",
		slog.String("graph", l.md.Name()),
		slog.Int("vertices", vertices),
		slog.Int("edges", edges))
	return nil
}

// LoadVertex inserts vertex id, its incident edges and their far endpoints
// into g and returns the vertex.
//
// Outputs:
//
//	*graph.Vertex - The vertex as stored in g.
//	error - graph.ErrUnknownVertex if no row mentions id, ctx.Err(), or a
//	        wrapped backend error.
func (l *Loader) LoadVertex(ctx context.Context, g *graph.Graph, id int) (v *graph.Vertex, err error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	if _, ok := l.cache.Get(id); ok {
		if v := g.GetVertex(id); v != nil {
			return v, nil
		}
	}
	ctx, span := l.md.startSpan(ctx, "LoadVertex")
	defer func() { endSpan(span, err) }()

	n := l.md.names
	found := false
	if l.md.HasVertexAttrTable() {
		err := l.scan(ctx, dataaccess.Select{
			From:  l.md.VertexTable(),
			Where: []dataaccess.Condition{dataaccess.Eq(n.VertexID, id)},
		}, func(ds dataaccess.DataSet) error {
			found = true
			_, err := l.insertVertexRow(g, ds)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	for _, col := range []string{n.VertexFrom, n.VertexTo} {
		err := l.scan(ctx, dataaccess.Select{
			From:    l.md.EdgeTable(),
			Where:   []dataaccess.Condition{dataaccess.Eq(col, id)},
			OrderBy: []string{n.EdgeID},
		}, func(ds dataaccess.DataSet) error {
			found = true
			_, err := l.insertEdgeRow(g, ds)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %d not stored in %s", graph.ErrUnknownVertex, id, l.md.Name())
	}
	l.cache.Put(id, struct{}{})
	return g.GetVertex(id), nil
}

// scan runs sel and calls fn per row, checking ctx between rows.
func (l *Loader) scan(ctx context.Context, sel dataaccess.Select, fn func(dataaccess.DataSet) error) error {
	return l.md.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		ds, err := tx.Query(ctx, sel)
		if err != nil {
			return fmt.Errorf("reading %s: %w", sel.From, err)
		}
		defer ds.Close()
		for ds.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ds); err != nil {
				return err
			}
		}
		return ds.Err()
	})
}

func readAttributes(ds dataaccess.DataSet, props []graph.Property) ([]graph.Value, error) {
	out := make([]graph.Value, len(props))
	for i, p := range props {
		raw, err := ds.Value(p.Column().Name)
		if err != nil {
			return nil, err
		}
		if out[i], err = graph.ValueOf(raw); err != nil {
			return nil, fmt.Errorf("column %s: %w", p.Name, err)
		}
	}
	return out, nil
}

func fill(size int, values []graph.Value, set func(int, graph.Value) error) error {
	for i, v := range values {
		if i >= size {
			break
		}
		if err := set(i, v); err != nil {
			return err
		}
	}
	return nil
}

// ensureVertex adds a bare vertex when id is not yet in g.
func ensureVertex(g *graph.Graph, id int) error {
	if g.GetVertex(id) != nil {
		return nil
	}
	_, err := g.AddVertex(id)
	return err
}

func (l *Loader) insertVertexRow(g *graph.Graph, ds dataaccess.DataSet) (bool, error) {
	raw, err := ds.Int32(l.md.names.VertexID)
	if err != nil {
		return false, err
	}
	id := int(raw)
	if g.GetVertex(id) != nil {
		return false, nil
	}
	attrs, err := readAttributes(ds, l.md.VertexProperties())
	if err != nil {
		return false, fmt.Errorf("vertex %d: %w", id, err)
	}
	v, err := g.AddVertex(id)
	if err != nil {
		return false, err
	}
	return true, fill(v.AttributeVecSize(), attrs, v.AddAttribute)
}

func (l *Loader) insertEdgeRow(g *graph.Graph, ds dataaccess.DataSet) (bool, error) {
	n := l.md.names
	var ids [3]int32
	for i, col := range []string{n.EdgeID, n.VertexFrom, n.VertexTo} {
		v, err := ds.Int32(col)
		if err != nil {
			return false, err
		}
		ids[i] = v
	}
	id, from, to := int(ids[0]), int(ids[1]), int(ids[2])
	if g.GetEdge(id) != nil {
		return false, nil
	}
	attrs, err := readAttributes(ds, l.md.EdgeProperties())
	if err != nil {
		return false, fmt.Errorf("edge %d: %w", id, err)
	}
	if err := ensureVertex(g, from); err != nil {
		return false, err
	}
	if err := ensureVertex(g, to); err != nil {
		return false, err
	}
	e, err := g.AddEdge(id, from, to)
	if err != nil {
		return false, err
	}
	return true, fill(e.AttributeVecSize(), attrs, e.AddAttribute)
}
