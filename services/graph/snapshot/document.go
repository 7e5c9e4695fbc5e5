// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"fmt"

	"github.com/AleutianAI/AleutianGraph/services/geometry"
	"github.com/AleutianAI/AleutianGraph/services/graph"
)

// Document is the serialized form of a graph.
type Document struct {
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Kind             graph.Kind        `json:"kind"`
	Mode             graph.StorageMode `json:"mode"`
	SRID             int               `json:"srid,omitempty"`
	VertexProperties []graph.Property  `json:"vertex_properties,omitempty"`
	EdgeProperties   []graph.Property  `json:"edge_properties,omitempty"`
	Vertices         []VertexRecord    `json:"vertices"`
	Edges            []EdgeRecord      `json:"edges"`
}

// VertexRecord is one serialized vertex.
type VertexRecord struct {
	ID         int           `json:"id"`
	Attributes []graph.Value `json:"attrs,omitempty"`
}

// EdgeRecord is one serialized edge.
type EdgeRecord struct {
	ID         int           `json:"id"`
	From       int           `json:"from"`
	To         int           `json:"to"`
	Attributes []graph.Value `json:"attrs,omitempty"`
}

// Encode captures g in insertion order. Dangling edges are kept.
func Encode(g *graph.Graph) Document {
	md := g.Metadata()
	doc := Document{
		Name:             md.Name(),
		Description:      md.Description(),
		Kind:             g.Kind(),
		Mode:             md.StorageMode(),
		SRID:             md.SRID(),
		VertexProperties: md.VertexProperties(),
		EdgeProperties:   md.EdgeProperties(),
		Vertices:         make([]VertexRecord, 0, g.VertexCount()),
		Edges:            make([]EdgeRecord, 0, g.EdgeCount()),
	}
	for v := range g.Vertices() {
		doc.Vertices = append(doc.Vertices, VertexRecord{ID: v.ID(), Attributes: v.Attributes()})
	}
	for e := range g.Edges() {
		doc.Edges = append(doc.Edges, EdgeRecord{ID: e.ID(), From: e.From(), To: e.To(), Attributes: e.Attributes()})
	}
	return doc
}

// Decode rebuilds a graph with memory metadata from doc. Edges whose
// endpoints are missing from doc fail with graph.ErrUnknownVertex.
func Decode(doc Document) (*graph.Graph, error) {
	md := graph.NewMemoryMetadata(doc.Mode)
	md.SetName(doc.Name)
	md.SetDescription(doc.Description)
	md.SetSRID(doc.SRID)
	for _, p := range doc.VertexProperties {
		if err := md.AppendVertexProperty(p); err != nil {
			return nil, fmt.Errorf("vertex property %s: %w", p.Name, err)
		}
	}
	for _, p := range doc.EdgeProperties {
		if err := md.AppendEdgeProperty(p); err != nil {
			return nil, fmt.Errorf("edge property %s: %w", p.Name, err)
		}
	}

	g := graph.New(doc.Kind, md)
	env := geometry.NewEmptyEnvelope()
	for _, rec := range doc.Vertices {
		v, err := g.AddVertex(rec.ID)
		if err != nil {
			return nil, err
		}
		if err := restore(v, rec.Attributes, &env); err != nil {
			return nil, fmt.Errorf("vertex %d: %w", rec.ID, err)
		}
	}
	for _, rec := range doc.Edges {
		e, err := g.AddEdge(rec.ID, rec.From, rec.To)
		if err != nil {
			return nil, err
		}
		if err := restore(e, rec.Attributes, &env); err != nil {
			return nil, fmt.Errorf("edge %d: %w", rec.ID, err)
		}
	}
	if env.IsValid() {
		md.SetEnvelope(env)
	}
	return g, nil
}

type attributed interface {
	AttributeVecSize() int
	SetAttributeVecSize(n int)
	AddAttribute(idx int, v graph.Value) error
}

// restore writes values into dst and widens env with every geometry.
func restore(dst attributed, values []graph.Value, env *geometry.Envelope) error {
	if len(values) > dst.AttributeVecSize() {
		dst.SetAttributeVecSize(len(values))
	}
	for i, v := range values {
		if err := dst.AddAttribute(i, v); err != nil {
			return err
		}
		if g, ok := v.Geometry(); ok {
			env.Expand(g.Envelope())
		}
	}
	return nil
}
