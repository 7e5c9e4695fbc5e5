// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package database persists graph schemas and rows through the dataaccess
// contracts.
//
// Metadata mirrors a graph's vertex and edge properties into four kinds of
// tables: the graph registry, the attribute registry, the per-graph model
// table (edge list) and the optional vertex attribute table. Writer and
// Loader move vertex and edge rows between a graph.Graph and those tables.
//
// Every step acquires its own transactor and releases it before returning;
// a multi-step Save is not atomic and an interrupted Save can leave a
// partial schema behind.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/graph"
)

var tracer = otel.Tracer("aleutian.graph.database")

// Attribute registry kinds.
const (
	attrVertex int32 = 0
	attrEdge   int32 = 1
)

// maxGraphNameLen keeps generated table names within the registry's
// 64-character table name column.
const maxGraphNameLen = 48

var graphNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidGraphName reports whether name can prefix relational table names.
func ValidGraphName(name string) bool {
	return len(name) <= maxGraphNameLen && graphNamePattern.MatchString(name)
}

// companionState tracks the vertex attribute table of an edge-list graph.
type companionState int

const (
	companionAbsent companionState = iota
	companionPresent
)

// Metadata is a graph.Metadata backed by relational tables.
//
// State machine:
//
//	unsaved --Save/Load--> saved
//	companionAbsent --Save (vertex properties exist)--> companionPresent
//	companionAbsent --AddVertexProperty (saved)-------> companionPresent
//	Load observes the companion state from the catalog.
//
// Before Save, property changes only touch the in-process schema. After
// Save, each property change also alters the backing tables.
//
// Thread Safety: NOT safe for concurrent use.
type Metadata struct {
	graph.Schema

	src    dataaccess.DataSource
	names  TableNames
	logger *slog.Logger

	saved     bool
	prefix    string
	companion companionState
}

// Option configures Metadata.
type Option func(*Metadata)

// WithTableNames overrides the table layout. Empty fields keep defaults.
func WithTableNames(n TableNames) Option {
	return func(m *Metadata) {
		m.names = n.withDefaults()
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Metadata) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates unsaved metadata bound to src. A nil src is accepted; every
// persistence call then fails with graph.ErrNoDataSource.
func New(src dataaccess.DataSource, mode graph.StorageMode, opts ...Option) *Metadata {
	m := &Metadata{
		Schema: graph.NewSchema(mode),
		src:    src,
		names:  DefaultTableNames(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DataSource returns the bound data source.
func (m *Metadata) DataSource() dataaccess.DataSource { return m.src }

// TableNames returns the table layout.
func (m *Metadata) TableNames() TableNames { return m.names }

// Saved reports whether the schema has been saved or loaded.
func (m *Metadata) Saved() bool { return m.saved }

// HasVertexAttrTable reports whether the vertex attribute table exists.
func (m *Metadata) HasVertexAttrTable() bool { return m.companion == companionPresent }

func (m *Metadata) tablePrefix() string {
	if m.prefix != "" {
		return m.prefix
	}
	return m.Name()
}

// ModelTable returns the primary table for the storage mode.
func (m *Metadata) ModelTable() string {
	if m.StorageMode() == graph.VertexList {
		return m.names.VertexModelTable(m.tablePrefix())
	}
	return m.names.EdgeModelTable(m.tablePrefix())
}

// EdgeTable returns the table holding edge attributes.
func (m *Metadata) EdgeTable() string {
	if m.StorageMode() == graph.VertexList {
		return m.names.EdgeAttrTable(m.tablePrefix())
	}
	return m.ModelTable()
}

// VertexTable returns the table holding vertex attributes.
func (m *Metadata) VertexTable() string {
	if m.StorageMode() == graph.VertexList {
		return m.ModelTable()
	}
	return m.names.VertexAttrTable(m.tablePrefix())
}

// Capabilities implements graph.Metadata. The vertex-list model cannot be
// saved, so it only loads and updates existing registry rows.
func (m *Metadata) Capabilities() graph.Capability {
	if m.StorageMode() == graph.VertexList {
		return graph.CapLoad | graph.CapUpdate
	}
	return graph.CapAll
}

// withTransactor runs fn with a fresh transactor and always closes it.
func (m *Metadata) withTransactor(ctx context.Context, fn func(dataaccess.Transactor) error) (err error) {
	if m.src == nil {
		return graph.ErrNoDataSource
	}
	tx, err := m.src.Transactor(ctx)
	if err != nil {
		return fmt.Errorf("acquiring transactor: %w", err)
	}
	defer func() {
		if cerr := tx.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("releasing transactor: %w", cerr)
		}
	}()
	return fn(tx)
}

func (m *Metadata) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "DatabaseMetadata."+op,
		trace.WithAttributes(
			attribute.String("graph.name", m.Name()),
			attribute.Int("graph.id", m.ID()),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Save materializes the schema.
//
// Description:
//
//	Creates the graph registry table if absent, registers the graph (a row
//	with the same name is adopted instead of duplicated), creates the
//	attribute registry table if absent, registers every property, creates
//	the edge model table and, when vertex properties exist, the vertex
//	attribute table. Calling Save on saved metadata does nothing.
//
// Outputs:
//
//	error - graph.ErrNoDataSource, graph.ErrInvalidGraphName,
//	        graph.ErrNotImplemented for VertexList, or a wrapped backend error.
func (m *Metadata) Save(ctx context.Context) (err error) {
	if m.src == nil {
		return graph.ErrNoDataSource
	}
	if m.Name() == "" {
		return fmt.Errorf("%w: name not set", graph.ErrInvalidGraphName)
	}
	if !ValidGraphName(m.Name()) {
		return fmt.Errorf("%w: %q", graph.ErrInvalidGraphName, m.Name())
	}
	if m.StorageMode() == graph.VertexList {
		return fmt.Errorf("save %s: vertex-list table model: %w", m.Name(), graph.ErrNotImplemented)
	}
	if m.saved {
		return nil
	}

	start := time.Now()
	ctx, span := m.startSpan(ctx, "Save")
	defer func() { endSpan(span, err) }()

	if err := m.createTable(ctx, m.registryType()); err != nil {
		return err
	}
	// Model tables left by an earlier save under this name are checked
	// before any row is written.
	m.prefix = m.Name()
	edges, err := m.planTable(ctx, m.edgeModelType())
	if err != nil {
		return err
	}
	vertices, err := m.planTable(ctx, m.vertexAttrType())
	if err != nil {
		return err
	}
	if err := m.addRegistryEntry(ctx); err != nil {
		return err
	}
	if err := m.applyPlan(ctx, edges); err != nil {
		return err
	}
	if vertices.exists || m.VertexPropertySize() > 0 {
		if err := m.applyPlan(ctx, vertices); err != nil {
			return err
		}
		m.companion = companionPresent
	}
	if err := m.createTable(ctx, m.attrRegistryType()); err != nil {
		return err
	}
	if err := m.registerProperties(ctx); err != nil {
		return err
	}

	m.saved = true
	m.logger.Info("graph metadata saved",
		slog.String("graph", m.Name()),
		slog.Int("graph_id", m.ID()),
		slog.String("model_table", m.ModelTable()),
		slog.Int("vertex_properties", m.VertexPropertySize()),
		slog.Int("edge_properties", m.EdgePropertySize()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// createTable creates dt unless a table with its name already exists.
func (m *Metadata) createTable(ctx context.Context, dt *dataaccess.DataSetType) error {
	return m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		exists, err := tx.CatalogLoader().DataSetExists(ctx, dt.Name)
		if err != nil {
			return fmt.Errorf("checking table %s: %w", dt.Name, err)
		}
		if exists {
			return nil
		}
		if err := tx.DataSetTypePersistence().Create(ctx, dt); err != nil {
			return fmt.Errorf("creating table %s: %w", dt.Name, err)
		}
		m.logger.Debug("graph table created", slog.String("table", dt.Name))
		return nil
	})
}

// tablePlan is the work needed to make a table match its declared schema.
type tablePlan struct {
	dt      *dataaccess.DataSetType
	exists  bool
	missing []dataaccess.Column
}

// planTable compares dt with the live table of the same name. Columns the
// table lacks are listed in the plan; a column stored with another type
// fails with graph.ErrSchemaMismatch.
func (m *Metadata) planTable(ctx context.Context, dt *dataaccess.DataSetType) (tablePlan, error) {
	plan := tablePlan{dt: dt}
	var live *dataaccess.DataSetType
	err := m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		exists, err := tx.CatalogLoader().DataSetExists(ctx, dt.Name)
		if err != nil || !exists {
			return err
		}
		live, err = tx.CatalogLoader().DataSetType(ctx, dt.Name)
		return err
	})
	if err != nil {
		return plan, fmt.Errorf("reading schema of %s: %w", dt.Name, err)
	}
	if live == nil {
		return plan, nil
	}
	plan.exists = true
	for _, c := range dt.Columns {
		have, ok := live.Column(c.Name)
		if !ok {
			plan.missing = append(plan.missing, c)
			continue
		}
		if have.Type != c.Type && have.Type != dataaccess.TypeUnknown {
			return plan, fmt.Errorf("%w: %s.%s is %s, want %s",
				graph.ErrSchemaMismatch, dt.Name, c.Name, have.Type, c.Type)
		}
	}
	return plan, nil
}

// applyPlan creates the table or adds its missing columns.
func (m *Metadata) applyPlan(ctx context.Context, plan tablePlan) error {
	if !plan.exists {
		return m.createTable(ctx, plan.dt)
	}
	for _, c := range plan.missing {
		if err := m.addColumnDef(ctx, plan.dt.Name, c); err != nil {
			return err
		}
		m.logger.Debug("graph table column added",
			slog.String("table", plan.dt.Name),
			slog.String("column", c.Name))
	}
	return nil
}

func (m *Metadata) registryType() *dataaccess.DataSetType {
	n := m.names
	dt := dataaccess.NewDataSetType(n.GraphTable).
		Add(dataaccess.Column{Name: n.GraphID, Type: dataaccess.TypeInt32, AutoNumber: true, Required: true}).
		Add(dataaccess.Column{Name: n.GraphName, Type: dataaccess.TypeString, Size: 64}).
		Add(dataaccess.Column{Name: n.GraphType, Type: dataaccess.TypeInt32}).
		Add(dataaccess.Column{Name: n.GraphTableName, Type: dataaccess.TypeString, Size: 64}).
		Add(dataaccess.Column{Name: n.GraphDescription, Type: dataaccess.TypeString, Size: 128})
	dt.PrimaryKey = []string{n.GraphID}
	dt.Indexes = []dataaccess.Index{{Name: n.GraphID + "_idx", Kind: dataaccess.BTree, Columns: []string{n.GraphID}}}
	return dt
}

func (m *Metadata) attrRegistryType() *dataaccess.DataSetType {
	n := m.names
	dt := dataaccess.NewDataSetType(n.AttrTable).
		Add(dataaccess.Column{Name: n.AttrID, Type: dataaccess.TypeInt32, AutoNumber: true, Required: true}).
		Add(dataaccess.Column{Name: n.AttrGraphID, Type: dataaccess.TypeInt32, Required: true}).
		Add(dataaccess.Column{Name: n.AttrTableName, Type: dataaccess.TypeString, Size: 64}).
		Add(dataaccess.Column{Name: n.AttrColumn, Type: dataaccess.TypeString, Size: 64}).
		Add(dataaccess.Column{Name: n.AttrLinkColumn, Type: dataaccess.TypeString, Size: 64}).
		Add(dataaccess.Column{Name: n.AttrType, Type: dataaccess.TypeInt32})
	dt.PrimaryKey = []string{n.AttrID}
	dt.Indexes = []dataaccess.Index{{Name: n.AttrID + "_attr_idx", Kind: dataaccess.BTree, Columns: []string{n.AttrID}}}
	return dt
}

func spatialIndex(table string, c dataaccess.Column) dataaccess.Index {
	return dataaccess.Index{Name: table + "_" + c.Name + "_spatial_idx", Kind: dataaccess.RTree, Columns: []string{c.Name}}
}

func (m *Metadata) edgeModelType() *dataaccess.DataSetType {
	n := m.names
	table := m.ModelTable()
	dt := dataaccess.NewDataSetType(table).
		Add(dataaccess.Column{Name: n.EdgeID, Type: dataaccess.TypeInt32, AutoNumber: true, Required: true}).
		Add(dataaccess.Column{Name: n.VertexFrom, Type: dataaccess.TypeInt32, Required: true}).
		Add(dataaccess.Column{Name: n.VertexTo, Type: dataaccess.TypeInt32, Required: true})
	dt.PrimaryKey = []string{n.EdgeID}
	dt.Indexes = []dataaccess.Index{
		{Name: table + "_edge_idx", Kind: dataaccess.BTree, Columns: []string{n.EdgeID}},
		{Name: table + "_vfrom_idx", Kind: dataaccess.BTree, Columns: []string{n.VertexFrom}},
		{Name: table + "_vto_idx", Kind: dataaccess.BTree, Columns: []string{n.VertexTo}},
	}
	for _, p := range m.EdgeProperties() {
		c := p.Column()
		dt.Add(c)
		if c.Type == dataaccess.TypeGeometry {
			dt.Indexes = append(dt.Indexes, spatialIndex(table, c))
		}
	}
	return dt
}

func (m *Metadata) vertexAttrType() *dataaccess.DataSetType {
	table := m.VertexTable()
	dt := dataaccess.NewDataSetType(table).
		Add(dataaccess.Column{Name: m.names.VertexID, Type: dataaccess.TypeInt32, AutoNumber: true, Required: true})
	dt.PrimaryKey = []string{m.names.VertexID}
	dt.Indexes = []dataaccess.Index{{Name: table + "_idx", Kind: dataaccess.BTree, Columns: []string{m.names.VertexID}}}
	for _, p := range m.VertexProperties() {
		c := p.Column()
		dt.Add(c)
		if c.Type == dataaccess.TypeGeometry {
			dt.Indexes = append(dt.Indexes, spatialIndex(table, c))
		}
	}
	return dt
}

// addRegistryEntry inserts the graph row, or adopts an existing row with the
// same name, and stores the id.
func (m *Metadata) addRegistryEntry(ctx context.Context) error {
	n := m.names
	id, found, err := m.lookupGraphID(ctx)
	if err != nil {
		return err
	}
	if found {
		m.SetID(id)
		m.logger.Debug("graph registry row adopted",
			slog.String("graph", m.Name()),
			slog.Int("graph_id", id))
		return nil
	}

	err = m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		return tx.DataSetPersistence().Add(ctx, n.GraphTable,
			[]string{n.GraphName, n.GraphType, n.GraphTableName, n.GraphDescription},
			[][]any{{m.Name(), int32(m.StorageMode()), m.ModelTable(), m.Description()}})
	})
	if err != nil {
		return fmt.Errorf("registering graph %s: %w", m.Name(), err)
	}

	id, found, err = m.lookupGraphID(ctx)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("registering graph %s: %w: row not visible after insert", m.Name(), graph.ErrGraphNotFound)
	}
	m.SetID(id)
	return nil
}

func (m *Metadata) lookupGraphID(ctx context.Context) (id int, found bool, err error) {
	n := m.names
	err = m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		ds, err := tx.Query(ctx, dataaccess.Select{
			Fields:  []string{n.GraphID},
			From:    n.GraphTable,
			Where:   []dataaccess.Condition{dataaccess.Eq(n.GraphName, m.Name())},
			OrderBy: []string{n.GraphID},
		})
		if err != nil {
			return fmt.Errorf("looking up graph %s: %w", m.Name(), err)
		}
		defer ds.Close()
		if ds.Next() {
			v, err := ds.Int32(n.GraphID)
			if err != nil {
				return fmt.Errorf("reading graph id: %w", err)
			}
			id, found = int(v), true
		}
		return ds.Err()
	})
	return id, found, err
}

type attrEntry struct {
	table  string
	column string
	kind   int32
}

// attrEntries lists the attribute registry rows of the current graph in
// attr id order.
func (m *Metadata) attrEntries(ctx context.Context) ([]attrEntry, error) {
	n := m.names
	var out []attrEntry
	err := m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		exists, err := tx.CatalogLoader().DataSetExists(ctx, n.AttrTable)
		if err != nil || !exists {
			return err
		}
		ds, err := tx.Query(ctx, dataaccess.Select{
			From:    n.AttrTable,
			Where:   []dataaccess.Condition{dataaccess.Eq(n.AttrGraphID, m.ID())},
			OrderBy: []string{n.AttrID},
		})
		if err != nil {
			return fmt.Errorf("reading attribute registry: %w", err)
		}
		defer ds.Close()
		for ds.Next() {
			var e attrEntry
			var kind int32
			if e.table, err = ds.String(n.AttrTableName); err != nil {
				return err
			}
			if e.column, err = ds.String(n.AttrColumn); err != nil {
				return err
			}
			if kind, err = ds.Int32(n.AttrType); err != nil {
				return err
			}
			e.kind = kind
			out = append(out, e)
		}
		return ds.Err()
	})
	return out, err
}

// registerProperties inserts one attribute registry row per property, edge
// properties first. Rows already registered for an adopted graph are kept.
func (m *Metadata) registerProperties(ctx context.Context) error {
	existing, err := m.attrEntries(ctx)
	if err != nil {
		return err
	}
	known := make(map[attrEntry]int, len(existing))
	for _, e := range existing {
		known[e]++
	}

	register := func(table string, p graph.Property, link string, kind int32) error {
		e := attrEntry{table: table, column: p.Column().Name, kind: kind}
		if known[e] > 0 {
			known[e]--
			return nil
		}
		return m.addAttrEntry(ctx, table, p, link, kind)
	}
	for _, p := range m.EdgeProperties() {
		if err := register(m.EdgeTable(), p, m.names.EdgeID, attrEdge); err != nil {
			return err
		}
	}
	for _, p := range m.VertexProperties() {
		if err := register(m.VertexTable(), p, m.names.VertexID, attrVertex); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metadata) addAttrEntry(ctx context.Context, table string, p graph.Property, link string, kind int32) error {
	n := m.names
	err := m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		return tx.DataSetPersistence().Add(ctx, n.AttrTable,
			[]string{n.AttrGraphID, n.AttrTableName, n.AttrColumn, n.AttrLinkColumn, n.AttrType},
			[][]any{{int32(m.ID()), table, p.Column().Name, strings.ToLower(link), kind}})
	})
	if err != nil {
		return fmt.Errorf("registering property %s: %w", p.Name, err)
	}
	return nil
}

func (m *Metadata) removeAttrEntry(ctx context.Context, table, column string) error {
	n := m.names
	return m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		_, err := tx.DataSetPersistence().Remove(ctx, n.AttrTable, []dataaccess.Condition{
			dataaccess.Eq(n.AttrGraphID, m.ID()),
			dataaccess.Eq(n.AttrTableName, table),
			dataaccess.Eq(n.AttrColumn, column),
		})
		if err != nil {
			return fmt.Errorf("unregistering property %s: %w", column, err)
		}
		return nil
	})
}

// addColumn adds a property column to table plus a spatial index for
// geometries.
func (m *Metadata) addColumn(ctx context.Context, table string, p graph.Property) error {
	return m.addColumnDef(ctx, table, p.Column())
}

func (m *Metadata) addColumnDef(ctx context.Context, table string, c dataaccess.Column) error {
	return m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		schema := tx.DataSetTypePersistence()
		if err := schema.AddColumn(ctx, table, c); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", table, c.Name, err)
		}
		if c.Type == dataaccess.TypeGeometry {
			if err := schema.AddIndex(ctx, table, spatialIndex(table, c)); err != nil {
				return fmt.Errorf("indexing column %s.%s: %w", table, c.Name, err)
			}
		}
		return nil
	})
}

func (m *Metadata) dropColumn(ctx context.Context, table string, p graph.Property) error {
	c := p.Column()
	return m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		if err := tx.DataSetTypePersistence().DropColumn(ctx, table, c.Name); err != nil {
			return fmt.Errorf("dropping column %s.%s: %w", table, c.Name, err)
		}
		return nil
	})
}

// ensureVertexAttrTable creates the companion table on first use.
func (m *Metadata) ensureVertexAttrTable(ctx context.Context) error {
	if m.companion == companionPresent {
		return nil
	}
	if err := m.createTable(ctx, m.vertexAttrType()); err != nil {
		return err
	}
	m.companion = companionPresent
	return nil
}

// AddVertexProperty implements graph.Metadata.
//
// After Save it creates the vertex attribute table if needed, registers the
// property, and adds its column. Registering the same name twice is not
// deduplicated: the second registry row is written and the column add fails.
func (m *Metadata) AddVertexProperty(ctx context.Context, p graph.Property) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !m.saved {
		return m.AppendVertexProperty(p)
	}
	if m.StorageMode() == graph.VertexList {
		return fmt.Errorf("add vertex property: vertex-list table model: %w", graph.ErrNotImplemented)
	}
	// The empty companion table is created before the column is added.
	if err := m.ensureVertexAttrTable(ctx); err != nil {
		return err
	}
	table := m.VertexTable()
	if err := m.addAttrEntry(ctx, table, p, m.names.VertexID, attrVertex); err != nil {
		return err
	}
	if err := m.addColumn(ctx, table, p); err != nil {
		return err
	}
	return m.AppendVertexProperty(p)
}

// RemoveVertexProperty implements graph.Metadata. After Save it drops the
// column and its registry row.
func (m *Metadata) RemoveVertexProperty(ctx context.Context, idx int) error {
	p, err := m.VertexProperty(idx)
	if err != nil {
		return err
	}
	if m.saved {
		table := m.VertexTable()
		if err := m.dropColumn(ctx, table, p); err != nil {
			return err
		}
		if err := m.removeAttrEntry(ctx, table, p.Column().Name); err != nil {
			return err
		}
	}
	_, err = m.DeleteVertexProperty(idx)
	return err
}

// AddEdgeProperty implements graph.Metadata.
func (m *Metadata) AddEdgeProperty(ctx context.Context, p graph.Property) error {
	if m.StorageMode() == graph.VertexList {
		return fmt.Errorf("add edge property: vertex-list table model: %w", graph.ErrNotImplemented)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if !m.saved {
		return m.AppendEdgeProperty(p)
	}
	table := m.EdgeTable()
	if err := m.addAttrEntry(ctx, table, p, m.names.EdgeID, attrEdge); err != nil {
		return err
	}
	if err := m.addColumn(ctx, table, p); err != nil {
		return err
	}
	return m.AppendEdgeProperty(p)
}

// RemoveEdgeProperty implements graph.Metadata.
func (m *Metadata) RemoveEdgeProperty(ctx context.Context, idx int) error {
	p, err := m.EdgeProperty(idx)
	if err != nil {
		return err
	}
	if m.saved {
		table := m.EdgeTable()
		if err := m.dropColumn(ctx, table, p); err != nil {
			return err
		}
		if err := m.removeAttrEntry(ctx, table, p.Column().Name); err != nil {
			return err
		}
	}
	_, err = m.DeleteEdgeProperty(idx)
	return err
}

// Load hydrates the metadata of a registered graph.
//
// Description:
//
//	Reads the graph registry row (name, description, storage mode, model
//	table), then every attribute registry row in attr id order. Each
//	property's definition is read from the live table schema and appended
//	to the vertex or edge list. The previous property lists are discarded.
//
// Outputs:
//
//	error - graph.ErrNoDataSource, graph.ErrGraphNotFound, or a wrapped
//	        backend error.
func (m *Metadata) Load(ctx context.Context, id int) (err error) {
	if m.src == nil {
		return graph.ErrNoDataSource
	}
	ctx, span := m.startSpan(ctx, "Load")
	span.SetAttributes(attribute.Int("graph.load_id", id))
	defer func() { endSpan(span, err) }()

	if err := m.loadGraphInfo(ctx, id); err != nil {
		return err
	}
	if err := m.loadGraphAttrInfo(ctx); err != nil {
		return err
	}
	m.saved = true

	exists := false
	err = m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		var err error
		exists, err = tx.CatalogLoader().DataSetExists(ctx, m.VertexTable())
		return err
	})
	if err != nil {
		return fmt.Errorf("checking vertex attribute table: %w", err)
	}
	m.companion = companionAbsent
	if exists {
		m.companion = companionPresent
	}
	m.logger.Debug("graph metadata loaded",
		slog.String("graph", m.Name()),
		slog.Int("graph_id", id),
		slog.Int("vertex_properties", m.VertexPropertySize()),
		slog.Int("edge_properties", m.EdgePropertySize()))
	return nil
}

func (m *Metadata) loadGraphInfo(ctx context.Context, id int) error {
	n := m.names
	return m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		exists, err := tx.CatalogLoader().DataSetExists(ctx, n.GraphTable)
		if err != nil {
			return fmt.Errorf("checking graph registry: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: id %d (no registry)", graph.ErrGraphNotFound, id)
		}
		ds, err := tx.Query(ctx, dataaccess.Select{
			From:  n.GraphTable,
			Where: []dataaccess.Condition{dataaccess.Eq(n.GraphID, id)},
		})
		if err != nil {
			return fmt.Errorf("loading graph %d: %w", id, err)
		}
		defer ds.Close()
		if !ds.Next() {
			if err := ds.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: id %d", graph.ErrGraphNotFound, id)
		}
		name, err := ds.String(n.GraphName)
		if err != nil {
			return err
		}
		desc, err := ds.String(n.GraphDescription)
		if err != nil {
			return err
		}
		modelTable, err := ds.String(n.GraphTableName)
		if err != nil {
			return err
		}
		mode := graph.EdgeList
		if null, _ := ds.IsNull(n.GraphType); !null {
			t, err := ds.Int32(n.GraphType)
			if err != nil {
				return err
			}
			if graph.StorageMode(t) == graph.VertexList {
				mode = graph.VertexList
			}
		}

		m.Schema = graph.NewSchema(mode)
		m.SetID(id)
		m.SetName(name)
		m.SetDescription(desc)
		suffix := n.EdgeModelSuffix
		if mode == graph.VertexList {
			suffix = n.VertexModelSuffix
		}
		m.prefix = strings.TrimSuffix(modelTable, strings.ToLower(suffix))
		if m.prefix == "" || m.prefix == modelTable {
			m.prefix = name
		}
		return nil
	})
}

func (m *Metadata) loadGraphAttrInfo(ctx context.Context) error {
	entries, err := m.attrEntries(ctx)
	if err != nil {
		return err
	}
	schemas := make(map[string]*dataaccess.DataSetType)
	for _, e := range entries {
		dt, ok := schemas[e.table]
		if !ok {
			err := m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
				var err error
				dt, err = tx.CatalogLoader().DataSetType(ctx, e.table)
				return err
			})
			if err != nil {
				return fmt.Errorf("reading schema of %s: %w", e.table, err)
			}
			schemas[e.table] = dt
		}
		col, ok := dt.Column(e.column)
		if !ok {
			return fmt.Errorf("property %s: %w in %s", e.column, dataaccess.ErrColumnNotFound, e.table)
		}
		p := graph.PropertyFromColumn(col)
		p.Name = e.column
		switch e.kind {
		case attrVertex:
			err = m.AppendVertexProperty(p)
		case attrEdge:
			err = m.AppendEdgeProperty(p)
		default:
			m.logger.Warn("unknown attribute registry type",
				slog.String("table", e.table),
				slog.String("column", e.column),
				slog.Int("type", int(e.kind)))
			continue
		}
		if err != nil {
			return fmt.Errorf("property %s: %w", e.column, err)
		}
	}
	return nil
}

// Update rewrites the registry row's name and description. Table names keep
// the prefix they were created with.
func (m *Metadata) Update(ctx context.Context) (err error) {
	if m.src == nil {
		return graph.ErrNoDataSource
	}
	if !m.saved {
		return graph.ErrNotSaved
	}
	if m.Name() == "" {
		return fmt.Errorf("%w: name not set", graph.ErrInvalidGraphName)
	}
	ctx, span := m.startSpan(ctx, "Update")
	defer func() { endSpan(span, err) }()

	n := m.names
	return m.withTransactor(ctx, func(tx dataaccess.Transactor) error {
		count, err := tx.DataSetPersistence().Update(ctx, n.GraphTable,
			map[string]any{n.GraphName: m.Name(), n.GraphDescription: m.Description()},
			[]dataaccess.Condition{dataaccess.Eq(n.GraphID, m.ID())})
		if err != nil {
			return fmt.Errorf("updating graph %d: %w", m.ID(), err)
		}
		if count == 0 {
			return fmt.Errorf("%w: id %d", graph.ErrGraphNotFound, m.ID())
		}
		return nil
	})
}

// Entry is one graph registry row.
type Entry struct {
	ID          int
	Name        string
	Mode        graph.StorageMode
	ModelTable  string
	Description string
}

// List returns every registered graph ordered by id. A missing registry
// yields an empty list.
func List(ctx context.Context, src dataaccess.DataSource, names TableNames) ([]Entry, error) {
	if src == nil {
		return nil, graph.ErrNoDataSource
	}
	n := names.withDefaults()
	tx, err := src.Transactor(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring transactor: %w", err)
	}
	defer tx.Close()

	exists, err := tx.CatalogLoader().DataSetExists(ctx, n.GraphTable)
	if err != nil || !exists {
		return nil, err
	}
	ds, err := tx.Query(ctx, dataaccess.Select{From: n.GraphTable, OrderBy: []string{n.GraphID}})
	if err != nil {
		return nil, fmt.Errorf("listing graphs: %w", err)
	}
	defer ds.Close()

	var out []Entry
	for ds.Next() {
		var e Entry
		id, err := ds.Int32(n.GraphID)
		if err != nil {
			return nil, err
		}
		e.ID = int(id)
		if e.Name, err = ds.String(n.GraphName); err != nil {
			return nil, fmt.Errorf("graph %d: %w", e.ID, err)
		}
		if e.ModelTable, err = ds.String(n.GraphTableName); err != nil {
			return nil, fmt.Errorf("graph %d: %w", e.ID, err)
		}
		if e.Description, err = ds.String(n.GraphDescription); err != nil {
			return nil, fmt.Errorf("graph %d: %w", e.ID, err)
		}
		null, err := ds.IsNull(n.GraphType)
		if err != nil {
			return nil, fmt.Errorf("graph %d: %w", e.ID, err)
		}
		if !null {
			t, err := ds.Int32(n.GraphType)
			if err != nil {
				return nil, fmt.Errorf("graph %d: %w", e.ID, err)
			}
			e.Mode = graph.StorageMode(t)
		}
		out = append(out, e)
	}
	return out, ds.Err()
}

var _ graph.Metadata = (*Metadata)(nil)
