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

// IteratorState is the position of one cursor of an Iterator.
type IteratorState int

const (
	// BeforeBegin is the state of an iterator that was never bound to a
	// graph, such as the zero MemoryIterator.
	BeforeBegin IteratorState = iota

	// Positioned means the cursor refers to an item.
	Positioned

	// AfterEnd means the cursor has moved past the last item.
	AfterEnd
)

// Iterator is a forward-only cursor over a graph's vertices and edges.
//
// The vertex and edge cursors are independent. To restart a traversal,
// construct a new iterator; there is no reset.
type Iterator interface {
	FirstVertex() *Vertex
	NextVertex() *Vertex
	IsVertexIteratorAfterEnd() bool

	FirstEdge() *Edge
	NextEdge() *Edge
	IsEdgeIteratorAfterEnd() bool

	VertexCount() int
	EdgeCount() int
}

// MemoryIterator walks an in-memory graph in insertion order.
//
// The vertex and edge ids are captured at construction. Adding or removing
// vertices or edges while the iterator is in use is not supported; ids
// removed since construction are skipped.
type MemoryIterator struct {
	g    *Graph
	vids []int
	eids []int
	vpos int
	epos int
}

// NewMemoryIterator creates an iterator positioned at the first vertex and
// first edge, or after the end of an empty collection.
func NewMemoryIterator(g *Graph) *MemoryIterator {
	it := &MemoryIterator{g: g}
	for _, v := range g.sortedVertices() {
		it.vids = append(it.vids, v.id)
	}
	for _, e := range g.sortedEdges() {
		it.eids = append(it.eids, e.id)
	}
	return it
}

// VertexState reports the vertex cursor state.
func (it *MemoryIterator) VertexState() IteratorState {
	return cursorState(it.g, it.vpos, len(it.vids))
}

// EdgeState reports the edge cursor state.
func (it *MemoryIterator) EdgeState() IteratorState {
	return cursorState(it.g, it.epos, len(it.eids))
}

func cursorState(g *Graph, pos, n int) IteratorState {
	switch {
	case g == nil:
		return BeforeBegin
	case pos >= n:
		return AfterEnd
	default:
		return Positioned
	}
}

// FirstVertex moves the vertex cursor to the first vertex and returns it,
// or nil for an empty graph.
func (it *MemoryIterator) FirstVertex() *Vertex {
	it.vpos = 0
	return it.currentVertex()
}

// NextVertex advances the vertex cursor and returns the vertex there, or
// nil once past the last vertex.
func (it *MemoryIterator) NextVertex() *Vertex {
	if it.vpos < len(it.vids) {
		it.vpos++
	}
	return it.currentVertex()
}

func (it *MemoryIterator) currentVertex() *Vertex {
	if it.g == nil {
		return nil
	}
	for ; it.vpos < len(it.vids); it.vpos++ {
		if v := it.g.vertices[it.vids[it.vpos]]; v != nil {
			return v
		}
	}
	return nil
}

// IsVertexIteratorAfterEnd reports whether the vertex cursor is exhausted.
func (it *MemoryIterator) IsVertexIteratorAfterEnd() bool {
	return it.VertexState() != Positioned
}

// FirstEdge moves the edge cursor to the first edge and returns it.
func (it *MemoryIterator) FirstEdge() *Edge {
	it.epos = 0
	return it.currentEdge()
}

// NextEdge advances the edge cursor.
func (it *MemoryIterator) NextEdge() *Edge {
	if it.epos < len(it.eids) {
		it.epos++
	}
	return it.currentEdge()
}

func (it *MemoryIterator) currentEdge() *Edge {
	if it.g == nil {
		return nil
	}
	for ; it.epos < len(it.eids); it.epos++ {
		if e := it.g.edges[it.eids[it.epos]]; e != nil {
			return e
		}
	}
	return nil
}

// IsEdgeIteratorAfterEnd reports whether the edge cursor is exhausted.
func (it *MemoryIterator) IsEdgeIteratorAfterEnd() bool {
	return it.EdgeState() != Positioned
}

// VertexCount returns the number of vertices captured at construction.
func (it *MemoryIterator) VertexCount() int { return len(it.vids) }

// EdgeCount returns the number of edges captured at construction.
func (it *MemoryIterator) EdgeCount() int { return len(it.eids) }

var _ Iterator = (*MemoryIterator)(nil)
