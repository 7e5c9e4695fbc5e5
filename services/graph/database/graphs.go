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

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/graph"
)

// SaveGraph persists an in-memory graph: it registers a new edge-list
// Metadata carrying g's name, description, SRID, envelope, and properties,
// then writes g's rows. A graph already registered under the same name is
// adopted and its rows replaced.
func SaveGraph(ctx context.Context, src dataaccess.DataSource, g *graph.Graph, opts ...Option) (*Metadata, error) {
	from := g.Metadata()
	md := New(src, graph.EdgeList, opts...)
	md.SetName(from.Name())
	md.SetDescription(from.Description())
	md.SetSRID(from.SRID())
	md.SetEnvelope(from.Envelope())
	for _, p := range from.VertexProperties() {
		if err := md.AppendVertexProperty(p); err != nil {
			return nil, fmt.Errorf("save graph %s: %w", from.Name(), err)
		}
	}
	for _, p := range from.EdgeProperties() {
		if err := md.AppendEdgeProperty(p); err != nil {
			return nil, fmt.Errorf("save graph %s: %w", from.Name(), err)
		}
	}
	if err := md.Save(ctx); err != nil {
		return nil, err
	}
	if err := WriteGraph(ctx, md, g); err != nil {
		return nil, err
	}
	return md, nil
}

// LoadGraph loads graph id and all of its rows into a new graph of kind.
func LoadGraph(ctx context.Context, src dataaccess.DataSource, id int, kind graph.Kind, opts ...Option) (*graph.Graph, error) {
	md := New(src, graph.EdgeList, opts...)
	if err := md.Load(ctx, id); err != nil {
		return nil, err
	}
	g := graph.New(kind, md, graph.WithLogger(md.logger))
	if err := NewLoader(md, LoaderOptions{Logger: md.logger}).LoadAll(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}
