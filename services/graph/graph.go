// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/codes"
)

// Kind selects how adjacency is maintained.
type Kind int

const (
	// Directed graphs record each edge in its source vertex's successors.
	Directed Kind = iota

	// Bidirectional graphs also record each edge in its target vertex's
	// predecessors.
	Bidirectional
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Directed:
		return "directed"
	case Bidirectional:
		return "bidirectional"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// GraphOptions configures a Graph.
type GraphOptions struct {
	// Logger receives debug records for structural changes.
	// Default: slog.Default()
	Logger *slog.Logger
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GraphOption {
	return func(o *GraphOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Graph is an id-addressed container of vertices and edges.
//
// Invariants:
//   - vertex ids are unique; edge ids are unique
//   - AddEdge and InsertEdge only accept edges whose endpoints are present
//   - RemoveVertex does not remove incident edges; see DanglingEdges
//
// Thread Safety: NOT safe for concurrent use.
type Graph struct {
	kind     Kind
	md       Metadata
	vertices map[int]*Vertex
	edges    map[int]*Edge
	nextSeq  uint64
	logger   *slog.Logger
}

// New creates an empty graph. A nil md means in-memory edge-list metadata.
func New(kind Kind, md Metadata, opts ...GraphOption) *Graph {
	options := GraphOptions{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if md == nil {
		md = NewMemoryMetadata(EdgeList)
	}
	return &Graph{
		kind:     kind,
		md:       md,
		vertices: make(map[int]*Vertex),
		edges:    make(map[int]*Edge),
		logger:   options.Logger,
	}
}

// NewDirected creates an empty directed graph.
func NewDirected(md Metadata, opts ...GraphOption) *Graph {
	return New(Directed, md, opts...)
}

// NewBidirectional creates an empty bidirectional graph.
func NewBidirectional(md Metadata, opts ...GraphOption) *Graph {
	return New(Bidirectional, md, opts...)
}

// Kind returns the adjacency kind.
func (g *Graph) Kind() Kind { return g.kind }

// Metadata returns the schema and persistence handle.
func (g *Graph) Metadata() Metadata { return g.md }

// VertexCount returns the number of vertices.
func (g *Graph) VertexCount() int { return len(g.vertices) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

func (g *Graph) seq() uint64 {
	g.nextSeq++
	return g.nextSeq
}

// AddVertex creates a vertex whose attribute vector is sized to the current
// vertex schema.
//
// Outputs:
//
//	*Vertex - The new vertex.
//	error - ErrDuplicateID if id is taken; the graph is unchanged.
func (g *Graph) AddVertex(id int) (*Vertex, error) {
	v := NewVertex(id)
	v.SetAttributeVecSize(g.md.VertexPropertySize())
	if err := g.InsertVertex(v); err != nil {
		return nil, err
	}
	return v, nil
}

// InsertVertex adds a pre-built vertex. Its adjacency sets are kept as-is.
func (g *Graph) InsertVertex(v *Vertex) error {
	if v == nil {
		return fmt.Errorf("insert vertex: nil vertex")
	}
	if _, ok := g.vertices[v.id]; ok {
		return fmt.Errorf("%w: vertex %d", ErrDuplicateID, v.id)
	}
	if v.successors == nil {
		v.successors = make(idSet)
	}
	if v.predecessors == nil {
		v.predecessors = make(idSet)
	}
	v.seq = g.seq()
	g.vertices[v.id] = v
	return nil
}

// AddEdge creates an edge from -> to whose attribute vector is sized to the
// current edge schema. The edge id is added to from's successors and, for
// bidirectional graphs, to to's predecessors.
//
// Outputs:
//
//	*Edge - The new edge.
//	error - ErrDuplicateID or ErrUnknownVertex; the graph is unchanged.
func (g *Graph) AddEdge(id, from, to int) (*Edge, error) {
	e := NewEdge(id, from, to)
	e.SetAttributeVecSize(g.md.EdgePropertySize())
	if err := g.InsertEdge(e); err != nil {
		return nil, err
	}
	return e, nil
}

// InsertEdge adds a pre-built edge with the same checks and adjacency
// updates as AddEdge.
func (g *Graph) InsertEdge(e *Edge) error {
	if e == nil {
		return fmt.Errorf("insert edge: nil edge")
	}
	if _, ok := g.edges[e.id]; ok {
		return fmt.Errorf("%w: edge %d", ErrDuplicateID, e.id)
	}
	from, ok := g.vertices[e.from]
	if !ok {
		return fmt.Errorf("%w: %d (edge %d source)", ErrUnknownVertex, e.from, e.id)
	}
	to, ok := g.vertices[e.to]
	if !ok {
		return fmt.Errorf("%w: %d (edge %d target)", ErrUnknownVertex, e.to, e.id)
	}
	e.seq = g.seq()
	g.edges[e.id] = e
	from.AddSuccessor(e.id)
	if g.kind == Bidirectional {
		to.AddPredecessor(e.id)
	}
	return nil
}

// GetVertex returns the vertex with id, or nil.
func (g *Graph) GetVertex(id int) *Vertex { return g.vertices[id] }

// GetEdge returns the edge with id, or nil.
func (g *Graph) GetEdge(id int) *Edge { return g.edges[id] }

// RemoveEdge deletes an edge and severs it from its endpoints' adjacency
// sets. It returns false if the edge is absent.
func (g *Graph) RemoveEdge(id int) bool {
	e, ok := g.edges[id]
	if !ok {
		return false
	}
	delete(g.edges, id)
	if from := g.vertices[e.from]; from != nil {
		from.RemoveSuccessor(id)
	}
	if to := g.vertices[e.to]; to != nil {
		to.RemovePredecessor(id)
	}
	return true
}

// RemoveVertex deletes a vertex and leaves its incident edges in place.
// Those edges then dangle; DanglingEdges lists them and RemoveVertexCascade
// is the cascading alternative. It returns false if the vertex is absent.
func (g *Graph) RemoveVertex(id int) bool {
	v, ok := g.vertices[id]
	if !ok {
		return false
	}
	delete(g.vertices, id)
	if n := v.SuccessorCount() + v.PredecessorCount(); n > 0 {
		g.logger.Debug("graph: vertex removed with incident edges",
			slog.Int("vertex_id", id),
			slog.Int("edge_count", n))
	}
	return true
}

// RemoveVertexCascade deletes a vertex and every edge that starts or ends
// at it.
func (g *Graph) RemoveVertexCascade(id int) bool {
	if _, ok := g.vertices[id]; !ok {
		return false
	}
	for _, e := range g.sortedEdges() {
		if e.from == id || e.to == id {
			g.RemoveEdge(e.id)
		}
	}
	delete(g.vertices, id)
	return true
}

// DanglingEdges returns the ids of edges with a missing endpoint, in
// insertion order.
func (g *Graph) DanglingEdges() []int {
	var out []int
	for _, e := range g.sortedEdges() {
		if g.vertices[e.from] == nil || g.vertices[e.to] == nil {
			out = append(out, e.id)
		}
	}
	return out
}

func (g *Graph) sortedVertices() []*Vertex {
	out := make([]*Vertex, 0, len(g.vertices))
	for _, v := range g.vertices {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b *Vertex) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

func (g *Graph) sortedEdges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *Edge) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Vertices yields every vertex in insertion order.
func (g *Graph) Vertices() iter.Seq[*Vertex] {
	return func(yield func(*Vertex) bool) {
		for _, v := range g.sortedVertices() {
			if !yield(v) {
				return
			}
		}
	}
}

// Edges yields every edge in insertion order.
func (g *Graph) Edges() iter.Seq[*Edge] {
	return func(yield func(*Edge) bool) {
		for _, e := range g.sortedEdges() {
			if !yield(e) {
				return
			}
		}
	}
}

// EdgeLess orders edges by insertion. Algorithms use it to break ties.
func EdgeLess(a, b *Edge) bool { return a.seq < b.seq }

// AddVertexProperty declares a vertex property through the metadata and
// grows every vertex's attribute vector to match.
//
// Outputs:
//
//	int - The slot index of the new property.
//	error - Validation or storage error from the metadata.
func (g *Graph) AddVertexProperty(ctx context.Context, p Property) (int, error) {
	return g.schemaOp(ctx, "AddVertexProperty", func(ctx context.Context) (int, error) {
		if err := g.md.AddVertexProperty(ctx, p); err != nil {
			return -1, err
		}
		n := g.md.VertexPropertySize()
		for _, v := range g.vertices {
			if v.AttributeVecSize() < n {
				v.SetAttributeVecSize(n)
			}
		}
		return n - 1, nil
	})
}

// AddEdgeProperty declares an edge property and grows every edge's
// attribute vector to match.
func (g *Graph) AddEdgeProperty(ctx context.Context, p Property) (int, error) {
	return g.schemaOp(ctx, "AddEdgeProperty", func(ctx context.Context) (int, error) {
		if err := g.md.AddEdgeProperty(ctx, p); err != nil {
			return -1, err
		}
		n := g.md.EdgePropertySize()
		for _, e := range g.edges {
			if e.AttributeVecSize() < n {
				e.SetAttributeVecSize(n)
			}
		}
		return n - 1, nil
	})
}

// RemoveVertexProperty removes property idx from the metadata and cuts slot
// idx from every vertex's attribute vector, so later slots keep matching
// their properties.
func (g *Graph) RemoveVertexProperty(ctx context.Context, idx int) error {
	_, err := g.schemaOp(ctx, "RemoveVertexProperty", func(ctx context.Context) (int, error) {
		if err := g.md.RemoveVertexProperty(ctx, idx); err != nil {
			return -1, err
		}
		for _, v := range g.vertices {
			v.removeAttribute(idx)
		}
		return idx, nil
	})
	return err
}

// RemoveEdgeProperty removes property idx and cuts slot idx from every
// edge's attribute vector.
func (g *Graph) RemoveEdgeProperty(ctx context.Context, idx int) error {
	_, err := g.schemaOp(ctx, "RemoveEdgeProperty", func(ctx context.Context) (int, error) {
		if err := g.md.RemoveEdgeProperty(ctx, idx); err != nil {
			return -1, err
		}
		for _, e := range g.edges {
			e.removeAttribute(idx)
		}
		return idx, nil
	})
	return err
}

func (g *Graph) schemaOp(ctx context.Context, op string, fn func(context.Context) (int, error)) (int, error) {
	start := time.Now()
	ctx, span := startSchemaSpan(ctx, op, g)
	defer span.End()

	idx, err := fn(ctx)
	recordSchemaOp(ctx, op, time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return -1, fmt.Errorf("%s: %w", op, err)
	}
	return idx, nil
}
