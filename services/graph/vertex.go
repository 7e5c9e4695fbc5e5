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
	"fmt"
	"maps"
	"slices"
)

// attributes is the attribute vector shared by Vertex and Edge.
type attributes struct {
	values []Value
}

// Attributes returns a copy of the attribute vector.
func (a *attributes) Attributes() []Value { return slices.Clone(a.values) }

// AttributeVecSize returns the length of the attribute vector.
func (a *attributes) AttributeVecSize() int { return len(a.values) }

// Attribute returns slot idx.
func (a *attributes) Attribute(idx int) (Value, error) {
	if idx < 0 || idx >= len(a.values) {
		return Null, fmt.Errorf("%w: %d of %d", ErrAttributeIndex, idx, len(a.values))
	}
	return a.values[idx], nil
}

// SetAttributeVecSize grows the vector with nulls or truncates it to n.
// Call it before AddAttribute whenever the schema has grown since the entity
// was created.
func (a *attributes) SetAttributeVecSize(n int) {
	if n < 0 {
		n = 0
	}
	if n <= len(a.values) {
		a.values = a.values[:n:n]
		return
	}
	a.values = append(a.values, make([]Value, n-len(a.values))...)
}

// AddAttribute stores v in slot idx.
func (a *attributes) AddAttribute(idx int, v Value) error {
	if idx < 0 || idx >= len(a.values) {
		return fmt.Errorf("%w: %d of %d", ErrAttributeIndex, idx, len(a.values))
	}
	a.values[idx] = v
	return nil
}

// removeAttribute cuts slot idx, shifting later slots down.
func (a *attributes) removeAttribute(idx int) {
	if idx >= 0 && idx < len(a.values) {
		a.values = slices.Delete(a.values, idx, idx+1)
	}
}

type idSet map[int]struct{}

func (s idSet) sorted() []int {
	return slices.Sorted(maps.Keys(s))
}

// Vertex is a graph node with an attribute vector and the ids of its
// outgoing (successor) and incoming (predecessor) edges.
//
// Predecessors are only maintained by bidirectional graphs.
type Vertex struct {
	attributes
	id           int
	successors   idSet
	predecessors idSet
	seq          uint64
}

// NewVertex creates a detached vertex for Graph.InsertVertex.
func NewVertex(id int) *Vertex {
	return &Vertex{id: id, successors: make(idSet), predecessors: make(idSet)}
}

// ID returns the vertex id.
func (v *Vertex) ID() int { return v.id }

// Successors returns the outgoing edge ids in ascending order.
func (v *Vertex) Successors() []int { return v.successors.sorted() }

// Predecessors returns the incoming edge ids in ascending order.
func (v *Vertex) Predecessors() []int { return v.predecessors.sorted() }

// SuccessorCount returns the number of outgoing edges.
func (v *Vertex) SuccessorCount() int { return len(v.successors) }

// PredecessorCount returns the number of incoming edges.
func (v *Vertex) PredecessorCount() int { return len(v.predecessors) }

func (v *Vertex) AddSuccessor(edgeID int)        { v.successors[edgeID] = struct{}{} }
func (v *Vertex) AddPredecessor(edgeID int)      { v.predecessors[edgeID] = struct{}{} }
func (v *Vertex) RemoveSuccessor(edgeID int)     { delete(v.successors, edgeID) }
func (v *Vertex) RemovePredecessor(edgeID int)   { delete(v.predecessors, edgeID) }
func (v *Vertex) HasSuccessor(edgeID int) bool   { _, ok := v.successors[edgeID]; return ok }
func (v *Vertex) HasPredecessor(edgeID int) bool { _, ok := v.predecessors[edgeID]; return ok }
