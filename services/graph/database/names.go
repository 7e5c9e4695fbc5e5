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

import "strings"

// TableNames names the relational tables and columns used to persist graph
// schemas. Generated per-graph table names are "<graph name><suffix>",
// lower-cased.
type TableNames struct {
	// Graph registry table: one row per graph.
	GraphTable       string `yaml:"graph_table" toml:"graph_table" validate:"required"`
	GraphID          string `yaml:"graph_id" toml:"graph_id" validate:"required"`
	GraphName        string `yaml:"graph_name" toml:"graph_name" validate:"required"`
	GraphType        string `yaml:"graph_type" toml:"graph_type" validate:"required"`
	GraphTableName   string `yaml:"graph_table_name" toml:"graph_table_name" validate:"required"`
	GraphDescription string `yaml:"graph_description" toml:"graph_description" validate:"required"`

	// Attribute registry table: one row per declared property.
	AttrTable      string `yaml:"attr_table" toml:"attr_table" validate:"required"`
	AttrID         string `yaml:"attr_id" toml:"attr_id" validate:"required"`
	AttrGraphID    string `yaml:"attr_graph_id" toml:"attr_graph_id" validate:"required"`
	AttrTableName  string `yaml:"attr_table_name" toml:"attr_table_name" validate:"required"`
	AttrColumn     string `yaml:"attr_column" toml:"attr_column" validate:"required"`
	AttrLinkColumn string `yaml:"attr_link_column" toml:"attr_link_column" validate:"required"`
	AttrType       string `yaml:"attr_type" toml:"attr_type" validate:"required"`

	// Per-graph table suffixes.
	EdgeModelSuffix   string `yaml:"edge_model_suffix" toml:"edge_model_suffix" validate:"required"`
	VertexModelSuffix string `yaml:"vertex_model_suffix" toml:"vertex_model_suffix" validate:"required"`
	VertexAttrSuffix  string `yaml:"vertex_attr_suffix" toml:"vertex_attr_suffix" validate:"required"`
	EdgeAttrSuffix    string `yaml:"edge_attr_suffix" toml:"edge_attr_suffix" validate:"required"`

	// Model table columns.
	EdgeID     string `yaml:"edge_id" toml:"edge_id" validate:"required"`
	VertexFrom string `yaml:"vertex_from" toml:"vertex_from" validate:"required"`
	VertexTo   string `yaml:"vertex_to" toml:"vertex_to" validate:"required"`
	VertexID   string `yaml:"vertex_id" toml:"vertex_id" validate:"required"`
}

// DefaultTableNames returns the standard layout.
func DefaultTableNames() TableNames {
	return TableNames{
		GraphTable:       "te_graph",
		GraphID:          "graph_id",
		GraphName:        "graph_name",
		GraphType:        "graph_type",
		GraphTableName:   "graph_table_name",
		GraphDescription: "graph_description",

		AttrTable:      "te_graph_attr",
		AttrID:         "attr_id",
		AttrGraphID:    "graph_id",
		AttrTableName:  "attr_table",
		AttrColumn:     "attr_column",
		AttrLinkColumn: "attr_link_column",
		AttrType:       "attribute_type",

		EdgeModelSuffix:   "_edge_model",
		VertexModelSuffix: "_vertex_model",
		VertexAttrSuffix:  "_vertex_attr",
		EdgeAttrSuffix:    "_edge_attr",

		EdgeID:     "edge_id",
		VertexFrom: "vertex_from",
		VertexTo:   "vertex_to",
		VertexID:   "vertex_id",
	}
}

// withDefaults fills empty fields from DefaultTableNames.
func (n TableNames) withDefaults() TableNames {
	d := DefaultTableNames()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&n.GraphTable, d.GraphTable)
	fill(&n.GraphID, d.GraphID)
	fill(&n.GraphName, d.GraphName)
	fill(&n.GraphType, d.GraphType)
	fill(&n.GraphTableName, d.GraphTableName)
	fill(&n.GraphDescription, d.GraphDescription)
	fill(&n.AttrTable, d.AttrTable)
	fill(&n.AttrID, d.AttrID)
	fill(&n.AttrGraphID, d.AttrGraphID)
	fill(&n.AttrTableName, d.AttrTableName)
	fill(&n.AttrColumn, d.AttrColumn)
	fill(&n.AttrLinkColumn, d.AttrLinkColumn)
	fill(&n.AttrType, d.AttrType)
	fill(&n.EdgeModelSuffix, d.EdgeModelSuffix)
	fill(&n.VertexModelSuffix, d.VertexModelSuffix)
	fill(&n.VertexAttrSuffix, d.VertexAttrSuffix)
	fill(&n.EdgeAttrSuffix, d.EdgeAttrSuffix)
	fill(&n.EdgeID, d.EdgeID)
	fill(&n.VertexFrom, d.VertexFrom)
	fill(&n.VertexTo, d.VertexTo)
	fill(&n.VertexID, d.VertexID)
	return n
}

func (n TableNames) table(prefix, suffix string) string {
	return strings.ToLower(prefix + suffix)
}

// EdgeModelTable returns the edge-list model table for a graph.
func (n TableNames) EdgeModelTable(prefix string) string {
	return n.table(prefix, n.EdgeModelSuffix)
}

// VertexModelTable returns the vertex-list model table for a graph.
func (n TableNames) VertexModelTable(prefix string) string {
	return n.table(prefix, n.VertexModelSuffix)
}

// VertexAttrTable returns the vertex attribute table of an edge-list graph.
func (n TableNames) VertexAttrTable(prefix string) string {
	return n.table(prefix, n.VertexAttrSuffix)
}

// EdgeAttrTable returns the edge attribute table of a vertex-list graph.
func (n TableNames) EdgeAttrTable(prefix string) string {
	return n.table(prefix, n.EdgeAttrSuffix)
}
