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
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/geometry"
)

// StorageMode selects which entity owns the primary relational table.
type StorageMode int

const (
	// EdgeList stores one row per edge with vertex_from / vertex_to columns.
	EdgeList StorageMode = iota

	// VertexList stores one row per vertex with encoded adjacency. Its table
	// model is not implemented.
	VertexList
)

// String returns the mode name.
func (m StorageMode) String() string {
	switch m {
	case EdgeList:
		return "edge_list"
	case VertexList:
		return "vertex_list"
	}
	return fmt.Sprintf("StorageMode(%d)", int(m))
}

// ParseStorageMode is the inverse of String.
func ParseStorageMode(s string) (StorageMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "edge_list", "edgelist", "":
		return EdgeList, nil
	case "vertex_list", "vertexlist":
		return VertexList, nil
	}
	return EdgeList, fmt.Errorf("unknown storage mode %q", s)
}

// Capability is the set of persistence operations a Metadata implementation
// backs with real storage.
type Capability uint8

const (
	CapLoad Capability = 1 << iota
	CapSave
	CapUpdate
	CapAddVertexProperty
	CapRemoveVertexProperty
	CapAddEdgeProperty
	CapRemoveEdgeProperty

	// CapAll is every capability.
	CapAll = CapLoad | CapSave | CapUpdate | CapAddVertexProperty |
		CapRemoveVertexProperty | CapAddEdgeProperty | CapRemoveEdgeProperty
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapLoad, "load"},
	{CapSave, "save"},
	{CapUpdate, "update"},
	{CapAddVertexProperty, "add_vertex_property"},
	{CapRemoveVertexProperty, "remove_vertex_property"},
	{CapAddEdgeProperty, "add_edge_property"},
	{CapRemoveEdgeProperty, "remove_edge_property"},
}

// Has reports whether every bit of c is set.
func (s Capability) Has(c Capability) bool { return s&c == c }

// String lists the capabilities joined by '|', or "none".
func (s Capability) String() string {
	var parts []string
	for _, n := range capabilityNames {
		if s.Has(n.c) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Metadata describes a graph's identity and attribute schema and decides how
// the schema is persisted.
//
// Property slot i of every vertex (edge) attribute vector corresponds to
// VertexProperty(i) (EdgeProperty(i)). Removing a property shifts later
// properties down by one; Graph.RemoveVertexProperty and
// Graph.RemoveEdgeProperty apply the same shift to attribute vectors.
type Metadata interface {
	ID() int
	SetID(id int)
	Name() string
	SetName(name string)
	Description() string
	SetDescription(desc string)
	StorageMode() StorageMode
	SRID() int
	SetSRID(srid int)
	Envelope() geometry.Envelope
	SetEnvelope(env geometry.Envelope)

	VertexProperty(i int) (Property, error)
	EdgeProperty(i int) (Property, error)
	VertexPropertySize() int
	EdgePropertySize() int
	VertexProperties() []Property
	EdgeProperties() []Property

	// FindVertexProperty returns the index of the named property, or -1.
	FindVertexProperty(name string) int

	// FindEdgeProperty returns the index of the named property, or -1.
	FindEdgeProperty(name string) int

	// Capabilities reports which operations below touch real storage.
	Capabilities() Capability

	Load(ctx context.Context, id int) error
	Save(ctx context.Context) error
	Update(ctx context.Context) error
	AddVertexProperty(ctx context.Context, p Property) error
	RemoveVertexProperty(ctx context.Context, idx int) error
	AddEdgeProperty(ctx context.Context, p Property) error
	RemoveEdgeProperty(ctx context.Context, idx int) error
}

// Schema holds the identity and property lists shared by every Metadata
// implementation. Embed it and add the persistence methods.
type Schema struct {
	id          int
	name        string
	description string
	mode        StorageMode
	srid        int
	envelope    geometry.Envelope

	vertexProps []Property
	edgeProps   []Property
}

// NewSchema creates an empty schema for mode.
func NewSchema(mode StorageMode) Schema {
	return Schema{id: -1, mode: mode, envelope: geometry.NewEmptyEnvelope()}
}

func (s *Schema) ID() int                           { return s.id }
func (s *Schema) SetID(id int)                      { s.id = id }
func (s *Schema) Name() string                      { return s.name }
func (s *Schema) SetName(name string)               { s.name = name }
func (s *Schema) Description() string               { return s.description }
func (s *Schema) SetDescription(desc string)        { s.description = desc }
func (s *Schema) StorageMode() StorageMode          { return s.mode }
func (s *Schema) SRID() int                         { return s.srid }
func (s *Schema) SetSRID(srid int)                  { s.srid = srid }
func (s *Schema) Envelope() geometry.Envelope       { return s.envelope }
func (s *Schema) SetEnvelope(env geometry.Envelope) { s.envelope = env }
func (s *Schema) VertexPropertySize() int           { return len(s.vertexProps) }
func (s *Schema) EdgePropertySize() int             { return len(s.edgeProps) }
func (s *Schema) VertexProperties() []Property      { return slices.Clone(s.vertexProps) }
func (s *Schema) EdgeProperties() []Property        { return slices.Clone(s.edgeProps) }

// VertexProperty returns the i-th vertex property.
func (s *Schema) VertexProperty(i int) (Property, error) {
	if i < 0 || i >= len(s.vertexProps) {
		return Property{}, fmt.Errorf("%w: vertex property %d of %d", ErrPropertyIndex, i, len(s.vertexProps))
	}
	return s.vertexProps[i], nil
}

// EdgeProperty returns the i-th edge property.
func (s *Schema) EdgeProperty(i int) (Property, error) {
	if i < 0 || i >= len(s.edgeProps) {
		return Property{}, fmt.Errorf("%w: edge property %d of %d", ErrPropertyIndex, i, len(s.edgeProps))
	}
	return s.edgeProps[i], nil
}

// FindVertexProperty implements Metadata. Names match case-insensitively.
func (s *Schema) FindVertexProperty(name string) int {
	return findProperty(s.vertexProps, name)
}

// FindEdgeProperty implements Metadata.
func (s *Schema) FindEdgeProperty(name string) int {
	return findProperty(s.edgeProps, name)
}

func findProperty(props []Property, name string) int {
	return slices.IndexFunc(props, func(p Property) bool { return strings.EqualFold(p.Name, name) })
}

// AppendVertexProperty validates p and appends it to the vertex list.
// Duplicate names are not rejected.
func (s *Schema) AppendVertexProperty(p Property) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.vertexProps = append(s.vertexProps, p)
	return nil
}

// AppendEdgeProperty validates p and appends it to the edge list.
func (s *Schema) AppendEdgeProperty(p Property) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.edgeProps = append(s.edgeProps, p)
	return nil
}

// DeleteVertexProperty removes and returns the idx-th vertex property.
func (s *Schema) DeleteVertexProperty(idx int) (Property, error) {
	p, err := s.VertexProperty(idx)
	if err != nil {
		return Property{}, err
	}
	s.vertexProps = slices.Delete(s.vertexProps, idx, idx+1)
	return p, nil
}

// DeleteEdgeProperty removes and returns the idx-th edge property.
func (s *Schema) DeleteEdgeProperty(idx int) (Property, error) {
	p, err := s.EdgeProperty(idx)
	if err != nil {
		return Property{}, err
	}
	s.edgeProps = slices.Delete(s.edgeProps, idx, idx+1)
	return p, nil
}

// ResetProperties clears both property lists. Loaders call it before
// hydrating.
func (s *Schema) ResetProperties() {
	s.vertexProps = nil
	s.edgeProps = nil
}

// MemoryMetadata keeps the schema in process only. Load, Save and Update
// succeed without doing anything.
type MemoryMetadata struct {
	Schema
}

// NewMemoryMetadata creates in-process metadata.
func NewMemoryMetadata(mode StorageMode) *MemoryMetadata {
	return &MemoryMetadata{Schema: NewSchema(mode)}
}

// Capabilities implements Metadata. Nothing is persisted.
func (m *MemoryMetadata) Capabilities() Capability { return 0 }

// Load implements Metadata.
func (m *MemoryMetadata) Load(ctx context.Context, id int) error { return nil }

// Save implements Metadata.
func (m *MemoryMetadata) Save(ctx context.Context) error { return nil }

// Update implements Metadata.
func (m *MemoryMetadata) Update(ctx context.Context) error { return nil }

// AddVertexProperty implements Metadata.
func (m *MemoryMetadata) AddVertexProperty(ctx context.Context, p Property) error {
	return m.AppendVertexProperty(p)
}

// RemoveVertexProperty implements Metadata.
func (m *MemoryMetadata) RemoveVertexProperty(ctx context.Context, idx int) error {
	_, err := m.DeleteVertexProperty(idx)
	return err
}

// AddEdgeProperty implements Metadata.
func (m *MemoryMetadata) AddEdgeProperty(ctx context.Context, p Property) error {
	return m.AppendEdgeProperty(p)
}

// RemoveEdgeProperty implements Metadata.
func (m *MemoryMetadata) RemoveEdgeProperty(ctx context.Context, idx int) error {
	_, err := m.DeleteEdgeProperty(idx)
	return err
}

var _ Metadata = (*MemoryMetadata)(nil)
