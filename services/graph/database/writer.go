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
	"time"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/graph"
)

// WriteGraph replaces the rows of md's tables with the contents of g.
//
// Description:
//
//	Deletes every row of the edge model table and inserts one row per edge
//	in insertion order: edge id, source, target, then one column per edge
//	property. When the vertex attribute table exists, its rows are replaced
//	the same way with one row per vertex. Attribute slot i is written to
//	the column of property i.
//
// Inputs:
//
//	md - Saved edge-list metadata. g's attribute vectors must follow md's
//	     property lists.
//	g - The graph to write.
//
// Outputs:
//
//	error - graph.ErrNotSaved, graph.ErrNotImplemented for VertexList, or a
//	        wrapped backend error.
func WriteGraph(ctx context.Context, md *Metadata, g *graph.Graph) (err error) {
	if md == nil || g == nil {
		return fmt.Errorf("write graph: nil metadata or graph")
	}
	if !md.Saved() {
		return fmt.Errorf("write graph %s: %w", md.Name(), graph.ErrNotSaved)
	}
	if md.StorageMode() == graph.VertexList {
		return fmt.Errorf("write graph %s: vertex-list table model: %w", md.Name(), graph.ErrNotImplemented)
	}

	start := time.Now()
	ctx, span := md.startSpan(ctx, "WriteGraph")
	defer func() { endSpan(span, err) }()

	n := md.names
	edgeProps := md.EdgeProperties()
	columns := []string{n.EdgeID, n.VertexFrom, n.VertexTo}
	for _, p := range edgeProps {
		columns = append(columns, p.Column().Name)
	}
	rows := make([][]any, 0, g.EdgeCount())
	for e := range g.Edges() {
		row := make([]any, 0, len(columns))
		row = append(row, int32(e.ID()), int32(e.From()), int32(e.To()))
		row = appendAttributes(row, e.Attributes(), len(edgeProps))
		rows = append(rows, row)
	}
	if err := md.replaceRows(ctx, md.EdgeTable(), columns, rows); err != nil {
		return err
	}

	vertexRows := 0
	if md.HasVertexAttrTable() {
		vertexProps := md.VertexProperties()
		columns := []string{n.VertexID}
		for _, p := range vertexProps {
			columns = append(columns, p.Column().Name)
		}
		rows := make([][]any, 0, g.VertexCount())
		for v := range g.Vertices() {
			row := make([]any, 0, len(columns))
			row = append(row, int32(v.ID()))
			row = appendAttributes(row, v.Attributes(), len(vertexProps))
			rows = append(rows, row)
		}
		if err := md.replaceRows(ctx, md.VertexTable(), columns, rows); err != nil {
			return err
		}
		vertexRows = len(rows)
	}

	md.logger.Info("graph rows written",
		slog.String("graph", md.Name()),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("vertices", vertexRows),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// appendAttributes appends exactly n driver values, padding short vectors
// with nulls.
func appendAttributes(row []any, attrs []graph.Value, n int) []any {
	for i := range n {
		if i < len(attrs) {
			row = append(row, attrs[i].Any())
		} else {
			row = append(row, nil)
		}
	}
	return row
}

func (m *Metadata) replaceRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	return m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		p := tx.DataSetPersistence()
		if _, err := p.Remove(ctx, table, nil); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := p.Add(ctx, table, columns, rows); err != nil {
			return fmt.Errorf("writing %s: %w", table, err)
		}
		return nil
	})
}
