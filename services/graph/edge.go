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

// Edge connects two vertices and carries an attribute vector. Self-loops
// are allowed.
type Edge struct {
	attributes
	id   int
	from int
	to   int
	seq  uint64
}

// NewEdge creates a detached edge for Graph.InsertEdge.
func NewEdge(id, from, to int) *Edge {
	return &Edge{id: id, from: from, to: to}
}

// ID returns the edge id.
func (e *Edge) ID() int { return e.id }

// From returns the source vertex id.
func (e *Edge) From() int { return e.from }

// To returns the target vertex id.
func (e *Edge) To() int { return e.to }

// Other returns the endpoint opposite vertexID. For a self-loop it returns
// vertexID.
func (e *Edge) Other(vertexID int) int {
	if e.from == vertexID {
		return e.to
	}
	return e.from
}
