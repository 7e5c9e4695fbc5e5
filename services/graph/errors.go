// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides a generic attributed graph with pluggable schema
// persistence.
//
// A Graph owns its vertices and edges and one Metadata value that describes
// the vertex and edge attribute schema. Metadata implementations decide
// where the schema lives: MemoryMetadata keeps it in process, while
// database.Metadata mirrors it into relational tables.
//
// # Thread Safety
//
// Graph, Vertex, Edge and MemoryIterator are NOT safe for concurrent use.
// All mutation must happen from one goroutine; readers must not run
// concurrently with writers.
//
// # Lifecycle
//
//  1. Create with NewDirected or NewBidirectional
//  2. Declare attributes with AddVertexProperty / AddEdgeProperty
//  3. Populate with AddVertex and AddEdge
//  4. Traverse with Vertices / Edges or a MemoryIterator
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrDuplicateID is returned when adding a vertex or edge whose id is
	// already present. The graph is left unchanged.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrUnknownVertex is returned when an edge references a vertex that is
	// not in the graph.
	ErrUnknownVertex = errors.New("unknown vertex")

	// ErrAttributeIndex is returned when an attribute slot is outside the
	// attribute vector.
	ErrAttributeIndex = errors.New("attribute index out of range")

	// ErrPropertyIndex is returned when a property index is outside the
	// schema.
	ErrPropertyIndex = errors.New("property index out of range")

	// ErrInvalidProperty is returned for properties with an empty name or an
	// unknown type.
	ErrInvalidProperty = errors.New("invalid property")

	// ErrNotImplemented is returned by storage paths that do not exist yet,
	// such as the vertex-list table model.
	ErrNotImplemented = errors.New("not implemented")

	// ErrNoDataSource is returned when persistent metadata has no backend.
	ErrNoDataSource = errors.New("no data source")

	// ErrInvalidGraphName is returned when a graph name is empty or is not a
	// usable table name prefix.
	ErrInvalidGraphName = errors.New("invalid graph name")

	// ErrGraphNotFound is returned when loading a graph id that is not
	// registered.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrNotSaved is returned by operations that need saved metadata.
	ErrNotSaved = errors.New("graph metadata not saved")

	// ErrSchemaMismatch is returned when a stored table declares a property
	// column with a different type.
	ErrSchemaMismatch = errors.New("schema mismatch")
)
