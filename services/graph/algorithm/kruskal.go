// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package algorithm reduces graphs.
//
// Algorithms read a graph.Graph and return a new graph; the input is never
// modified. Like the graph itself, nothing here is safe for concurrent use
// with writers of the input graph.
package algorithm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGraph/services/graph"
)

var tracer = otel.Tracer("aleutian.graph.algorithm")

var (
	// ErrInvalidWeightIndex is returned when the weight slot is not an edge
	// property of the graph.
	ErrInvalidWeightIndex = errors.New("invalid weight property index")

	// ErrInvalidWeight is returned when an edge's weight is null, NaN or
	// not numeric.
	ErrInvalidWeight = errors.New("invalid edge weight")
)

// cancelCheckInterval is how many edges are processed between context checks.
const cancelCheckInterval = 1024

// Option configures an algorithm run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for run summaries.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// weightedEdge pairs an edge with its decoded weight.
type weightedEdge struct {
	edge   *graph.Edge
	weight float64
}

// Kruskal computes a minimum spanning forest of g.
//
// Description:
//
//	Edges are sorted by the numeric value of edge property weightIdx. Equal
//	weights keep insertion order. Each edge joining two different components
//	is selected; self-loops and edges with a missing endpoint never are. The
//	result is a new graph of g's kind with a memory copy of g's schema, every
//	vertex of g and the selected edges, attributes included. A disconnected
//	input yields one tree per component.
//
//	Edge direction is ignored when grouping components.
//
// Inputs:
//
//	ctx - Checked between batches of edges.
//	g - The input graph. Not modified.
//	weightIdx - Edge property slot holding the weight.
//	opts - WithLogger.
//
// Outputs:
//
//	*graph.Graph - The spanning forest.
//	error - ErrInvalidWeightIndex, ErrInvalidWeight or ctx.Err().
//
// Complexity: O(E log E) for the sort, near-linear union-find.
func Kruskal(ctx context.Context, g *graph.Graph, weightIdx int, opts ...Option) (out *graph.Graph, err error) {
	if g == nil {
		return nil, fmt.Errorf("kruskal: nil graph")
	}
	o := buildOptions(opts)
	start := time.Now()
	ctx, span := tracer.Start(ctx, "algorithm.Kruskal",
		trace.WithAttributes(
			attribute.Int("graph.vertices", g.VertexCount()),
			attribute.Int("graph.edges", g.EdgeCount()),
			attribute.Int("weight.index", weightIdx),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	md := g.Metadata()
	if weightIdx < 0 || weightIdx >= md.EdgePropertySize() {
		return nil, fmt.Errorf("%w: %d of %d edge properties", ErrInvalidWeightIndex, weightIdx, md.EdgePropertySize())
	}

	edges := make([]weightedEdge, 0, g.EdgeCount())
	for e := range g.Edges() {
		v, err := e.Attribute(weightIdx)
		if err != nil {
			return nil, fmt.Errorf("%w: edge %d: %v", ErrInvalidWeight, e.ID(), err)
		}
		w, err := v.AsFloat64()
		if err != nil {
			return nil, fmt.Errorf("%w: edge %d: %v", ErrInvalidWeight, e.ID(), err)
		}
		if math.IsNaN(w) {
			return nil, fmt.Errorf("%w: edge %d is NaN", ErrInvalidWeight, e.ID())
		}
		edges = append(edges, weightedEdge{edge: e, weight: w})
	}
	slices.SortStableFunc(edges, func(a, b weightedEdge) int {
		switch {
		case a.weight < b.weight:
			return -1
		case a.weight > b.weight:
			return 1
		}
		return 0
	})

	out, err = copyVertices(g)
	if err != nil {
		return nil, err
	}

	uf := newUnionFind(g.VertexCount())
	total := 0.0
	for i, we := range edges {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		e := we.edge
		if e.From() == e.To() || out.GetVertex(e.From()) == nil || out.GetVertex(e.To()) == nil {
			continue
		}
		if !uf.union(e.From(), e.To()) {
			continue
		}
		ne := graph.NewEdge(e.ID(), e.From(), e.To())
		copyAttributes(ne, e.Attributes())
		if err := out.InsertEdge(ne); err != nil {
			return nil, err
		}
		total += we.weight
	}

	span.SetAttributes(
		attribute.Int("mst.edges", out.EdgeCount()),
		attribute.Float64("mst.weight", total),
	)
	o.logger.Debug("minimum spanning forest computed",
		slog.Int("vertices", out.VertexCount()),
		slog.Int("edges", out.EdgeCount()),
		slog.Float64("weight", total),
		slog.Duration("duration", time.Since(start)))
	return out, nil
}

// TotalWeight sums edge property weightIdx over every edge of g.
func TotalWeight(g *graph.Graph, weightIdx int) (float64, error) {
	total := 0.0
	for e := range g.Edges() {
		v, err := e.Attribute(weightIdx)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidWeightIndex, err)
		}
		w, err := v.AsFloat64()
		if err != nil {
			return 0, fmt.Errorf("%w: edge %d: %v", ErrInvalidWeight, e.ID(), err)
		}
		total += w
	}
	return total, nil
}

// copyVertices returns an edgeless graph of g's kind holding g's vertices
// and a memory copy of g's schema.
func copyVertices(g *graph.Graph) (*graph.Graph, error) {
	src := g.Metadata()
	md := graph.NewMemoryMetadata(src.StorageMode())
	md.SetName(src.Name())
	md.SetDescription(src.Description())
	md.SetSRID(src.SRID())
	md.SetEnvelope(src.Envelope())
	for _, p := range src.VertexProperties() {
		if err := md.AppendVertexProperty(p); err != nil {
			return nil, err
		}
	}
	for _, p := range src.EdgeProperties() {
		if err := md.AppendEdgeProperty(p); err != nil {
			return nil, err
		}
	}

	out := graph.New(g.Kind(), md)
	for v := range g.Vertices() {
		nv := graph.NewVertex(v.ID())
		copyAttributes(nv, v.Attributes())
		if err := out.InsertVertex(nv); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type attributed interface {
	SetAttributeVecSize(n int)
	AddAttribute(idx int, v graph.Value) error
}

func copyAttributes(dst attributed, values []graph.Value) {
	dst.SetAttributeVecSize(len(values))
	for i, v := range values {
		_ = dst.AddAttribute(i, v)
	}
}
