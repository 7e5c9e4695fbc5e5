// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sa

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/geometry"
	"github.com/AleutianAI/AleutianGraph/services/graph"
)

// Strategy names the relation a GPM was built from.
type Strategy string

const (
	// Adjacency connects features whose geometries touch.
	Adjacency Strategy = "adjacency"

	// Distance connects features within a distance of each other.
	Distance Strategy = "distance"

	// Imported marks a GPM read from a GAL or GWT file.
	Imported Strategy = "imported"
)

// GPM is a generalized proximity matrix.
type GPM struct {
	// Graph holds one vertex per feature and one edge per related pair.
	Graph *graph.Graph

	// DataSet is the source dataset name. Empty for imported GPMs without
	// a header.
	DataSet string

	// IDColumn is the dataset column the vertex ids came from.
	IDColumn string

	// Strategy is the relation the edges encode.
	Strategy Strategy
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// Relater evaluates geometry predicates.
	// Default: geometry.NewPlanar()
	Relater geometry.Relater

	// GeometryColumn selects the feature geometry. Empty picks the first
	// geometry column of the dataset.
	GeometryColumn string

	// Attributes are dataset columns copied onto each vertex after coords.
	Attributes []string

	// Kind is the kind of graph built.
	// Default: graph.Directed
	Kind graph.Kind

	// GraphName names the graph. Empty generates "gpm_<random>".
	GraphName string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithRelater sets the geometry predicate implementation.
func WithRelater(r geometry.Relater) BuilderOption {
	return func(o *BuilderOptions) {
		o.Relater = r
	}
}

// WithGeometryColumn selects the geometry column.
func WithGeometryColumn(name string) BuilderOption {
	return func(o *BuilderOptions) {
		o.GeometryColumn = name
	}
}

// WithAttributes copies the named dataset columns onto vertices.
func WithAttributes(columns ...string) BuilderOption {
	return func(o *BuilderOptions) {
		o.Attributes = append(o.Attributes, columns...)
	}
}

// WithGraphKind sets the kind of graph built.
func WithGraphKind(k graph.Kind) BuilderOption {
	return func(o *BuilderOptions) {
		o.Kind = k
	}
}

// WithGraphName sets the graph name.
func WithGraphName(name string) BuilderOption {
	return func(o *BuilderOptions) {
		o.GraphName = name
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = l
	}
}

// Builder creates GPMs from datasets.
type Builder struct {
	opts BuilderOptions
}

// NewBuilder creates a builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	o := BuilderOptions{Kind: graph.Directed}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Relater == nil {
		o.Relater = geometry.NewPlanar()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Builder{opts: o}
}

// feature is one dataset row.
type feature struct {
	id    int
	geom  geometry.Geometry
	env   geometry.Envelope
	attrs []graph.Value
}

// BuildAdjacency connects every pair of touching features.
//
// Description:
//
//	Reads every row of dataset, creating one vertex per row with id from
//	idColumn, property "coords" holding the geometry and any configured
//	attribute columns. For each pair whose geometries touch, creates edge
//	u->v and, when symmetric is set, v->u. Each edge carries the centroid
//	distance in property "distance". Pairs are visited in row order.
//
// Outputs:
//
//	*GPM - The matrix.
//	error - *BuildError naming the failed stage.
func (b *Builder) BuildAdjacency(ctx context.Context, src dataaccess.DataSource, dataset, idColumn string, symmetric bool) (*GPM, error) {
	return b.build(ctx, src, dataset, idColumn, Adjacency, symmetric, 0)
}

// BuildDistance connects every pair of features whose geometries lie
// within maxDistance of each other. Edges are created in both directions.
//
// Outputs:
//
//	*GPM - The matrix.
//	error - *BuildError naming the failed stage.
func (b *Builder) BuildDistance(ctx context.Context, src dataaccess.DataSource, dataset, idColumn string, maxDistance float64) (*GPM, error) {
	if maxDistance < 0 || math.IsNaN(maxDistance) {
		gpmBuildTotal.WithLabelValues(string(Distance), "invalid").Inc()
		return nil, buildErr(StageValidate, ErrInvalidDistance, "max distance %v", maxDistance)
	}
	return b.build(ctx, src, dataset, idColumn, Distance, true, maxDistance)
}

func (b *Builder) build(ctx context.Context, src dataaccess.DataSource, dataset, idColumn string, strategy Strategy, symmetric bool, maxDistance float64) (gpm *GPM, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		gpmBuildTotal.WithLabelValues(string(strategy), result).Inc()
		gpmBuildDuration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
	}()

	if src == nil {
		return nil, buildErr(StageValidate, graph.ErrNoDataSource, "dataset %s", dataset)
	}
	if dataset == "" || idColumn == "" {
		return nil, buildErr(StageValidate, nil, "dataset and id column are required")
	}

	dt, features, err := b.readFeatures(ctx, src, dataset, idColumn)
	if err != nil {
		return nil, err
	}
	g, err := b.newGraph(dt, dataset, features)
	if err != nil {
		return nil, err
	}

	pairs, tested, err := b.relate(ctx, features, strategy, maxDistance)
	if err != nil {
		return nil, err
	}
	gpmPairsTested.WithLabelValues(string(strategy)).Add(float64(tested))

	nextID := 1
	addEdge := func(from, to *feature) error {
		e, err := g.AddEdge(nextID, from.id, to.id)
		if err != nil {
			return buildErr(StageEdges, err, "edge %d -> %d", from.id, to.id)
		}
		nextID++
		d := from.geom.Centroid().DistanceTo(to.geom.Centroid())
		return e.AddAttribute(0, graph.DoubleValue(d))
	}
	for _, p := range pairs {
		if err := addEdge(&features[p.i], &features[p.j]); err != nil {
			return nil, err
		}
		if symmetric {
			if err := addEdge(&features[p.j], &features[p.i]); err != nil {
				return nil, err
			}
		}
	}

	gpmBuildEdges.Observe(float64(g.EdgeCount()))
	b.opts.Logger.Info("gpm built",
		slog.String("strategy", string(strategy)),
		slog.String("dataset", dataset),
		slog.String("graph", g.Metadata().Name()),
		slog.Int("vertices", g.VertexCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("pairs_tested", tested),
		slog.Duration("duration", time.Since(start)))

	return &GPM{Graph: g, DataSet: dataset, IDColumn: idColumn, Strategy: strategy}, nil
}

// readFeatures loads every row of dataset, ordered by the id column.
func (b *Builder) readFeatures(ctx context.Context, src dataaccess.DataSource, dataset, idColumn string) (*dataaccess.DataSetType, []feature, error) {
	tx, err := src.Transactor(ctx)
	if err != nil {
		return nil, nil, buildErr(StageRead, err, "opening %s", dataset)
	}
	defer tx.Close()

	dt, err := tx.CatalogLoader().DataSetType(ctx, dataset)
	if err != nil {
		return nil, nil, buildErr(StageRead, err, "reading schema of %s", dataset)
	}
	idCol, ok := dt.Column(idColumn)
	if !ok {
		return nil, nil, buildErr(StageValidate, ErrColumnNotFound, "id column %s.%s", dataset, idColumn)
	}
	if idCol.Type != dataaccess.TypeInt32 {
		return nil, nil, buildErr(StageValidate, dataaccess.ErrTypeMismatch, "id column %s is %s, not INTEGER", idColumn, idCol.Type)
	}
	geomCol, err := b.geometryColumn(dt)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range b.opts.Attributes {
		if _, ok := dt.Column(name); !ok {
			return nil, nil, buildErr(StageValidate, ErrColumnNotFound, "attribute column %s.%s", dataset, name)
		}
	}

	ds, err := tx.Query(ctx, dataaccess.Select{From: dt.Name, OrderBy: []string{idCol.Name}})
	if err != nil {
		return nil, nil, buildErr(StageRead, err, "querying %s", dataset)
	}
	defer ds.Close()

	var features []feature
	for ds.Next() {
		if err := ctx.Err(); err != nil {
			return nil, nil, buildErr(StageRead, err, "reading %s", dataset)
		}
		if null, _ := ds.IsNull(idCol.Name); null {
			return nil, nil, buildErr(StageVertices, nil, "row %d has a null id", len(features)+1)
		}
		id, err := ds.Int32(idCol.Name)
		if err != nil {
			return nil, nil, buildErr(StageRead, err, "reading id")
		}
		if null, _ := ds.IsNull(geomCol.Name); null {
			return nil, nil, buildErr(StageVertices, ErrMalformedGeometry, "feature %d has no geometry", id)
		}
		geom, err := ds.Geometry(geomCol.Name)
		if err != nil {
			return nil, nil, buildErr(StageVertices, errors.Join(ErrMalformedGeometry, err), "feature %d", id)
		}
		env := geom.Envelope()
		if !env.IsValid() {
			return nil, nil, buildErr(StageVertices, ErrMalformedGeometry, "feature %d has an empty envelope", id)
		}
		f := feature{id: int(id), geom: geom, env: env, attrs: make([]graph.Value, 0, len(b.opts.Attributes))}
		for _, name := range b.opts.Attributes {
			raw, err := ds.Value(name)
			if err != nil {
				return nil, nil, buildErr(StageRead, err, "feature %d column %s", id, name)
			}
			v, err := graph.ValueOf(raw)
			if err != nil {
				return nil, nil, buildErr(StageRead, err, "feature %d column %s", id, name)
			}
			f.attrs = append(f.attrs, v)
		}
		features = append(features, f)
	}
	if err := ds.Err(); err != nil {
		return nil, nil, buildErr(StageRead, err, "reading %s", dataset)
	}
	return dt, features, nil
}

func (b *Builder) geometryColumn(dt *dataaccess.DataSetType) (dataaccess.Column, error) {
	if b.opts.GeometryColumn != "" {
		c, ok := dt.Column(b.opts.GeometryColumn)
		if !ok {
			return c, buildErr(StageValidate, ErrColumnNotFound, "geometry column %s.%s", dt.Name, b.opts.GeometryColumn)
		}
		if c.Type != dataaccess.TypeGeometry {
			return c, buildErr(StageValidate, dataaccess.ErrTypeMismatch, "column %s is %s, not GEOMETRY", c.Name, c.Type)
		}
		return c, nil
	}
	for _, c := range dt.Columns {
		if c.Type == dataaccess.TypeGeometry {
			return c, nil
		}
	}
	return dataaccess.Column{}, buildErr(StageValidate, ErrColumnNotFound, "dataset %s has no geometry column", dt.Name)
}

// GenerateGraphName returns a random name usable as a table prefix.
func GenerateGraphName() string {
	return "gpm_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// newGraph creates the graph schema and one vertex per feature.
func (b *Builder) newGraph(dt *dataaccess.DataSetType, dataset string, features []feature) (*graph.Graph, error) {
	md := graph.NewMemoryMetadata(graph.EdgeList)
	name := b.opts.GraphName
	if name == "" {
		name = GenerateGraphName()
	}
	md.SetName(name)
	md.SetDescription("proximity matrix of " + dataset)

	geomCol, _ := b.geometryColumn(dt)
	md.SetSRID(geomCol.SRID)
	if err := md.AppendVertexProperty(graph.Property{Name: CoordsAttr, Type: graph.TypeGeometry, SRID: geomCol.SRID}); err != nil {
		return nil, buildErr(StageVertices, err, "declaring %s", CoordsAttr)
	}
	for _, name := range b.opts.Attributes {
		col, _ := dt.Column(name)
		if err := md.AppendVertexProperty(graph.PropertyFromColumn(col)); err != nil {
			return nil, buildErr(StageVertices, err, "declaring %s", name)
		}
	}
	if err := md.AppendEdgeProperty(graph.Property{Name: DistanceAttr, Type: graph.TypeDouble}); err != nil {
		return nil, buildErr(StageEdges, err, "declaring %s", DistanceAttr)
	}

	g := graph.New(b.opts.Kind, md, graph.WithLogger(b.opts.Logger))
	env := geometry.NewEmptyEnvelope()
	for i := range features {
		f := &features[i]
		v, err := g.AddVertex(f.id)
		if err != nil {
			return nil, buildErr(StageVertices, err, "feature %d", f.id)
		}
		if err := v.AddAttribute(0, graph.GeometryValue(f.geom)); err != nil {
			return nil, buildErr(StageVertices, err, "feature %d", f.id)
		}
		for j, a := range f.attrs {
			if err := v.AddAttribute(j+1, a); err != nil {
				return nil, buildErr(StageVertices, err, "feature %d", f.id)
			}
		}
		env.Expand(f.env)
	}
	md.SetEnvelope(env)
	return g, nil
}

type pair struct{ i, j int }

// relate returns the related feature index pairs (i < j) in row order and
// the number of pairs handed to the relater.
//
// Candidates come from a sweep over envelopes sorted by MinX; the relater
// only sees pairs whose envelopes, widened by maxDistance, intersect.
func (b *Builder) relate(ctx context.Context, features []feature, strategy Strategy, maxDistance float64) ([]pair, int, error) {
	order := make([]int, len(features))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, c int) int {
		return cmp.Compare(features[a].env.MinX, features[c].env.MinX)
	})

	reachDist := maxDistance
	if strategy == Adjacency {
		reachDist = geometry.DefaultTolerance
	}
	var pairs []pair
	tested := 0
	for oi, a := range order {
		if err := ctx.Err(); err != nil {
			return nil, tested, buildErr(StageEdges, err, "relating features")
		}
		reach := features[a].env.Buffer(reachDist)
		for _, c := range order[oi+1:] {
			if features[c].env.MinX > reach.MaxX {
				break
			}
			if !reach.Intersects(features[c].env) {
				continue
			}
			tested++
			ok, err := b.test(features[a].geom, features[c].geom, strategy, maxDistance)
			if err != nil {
				return nil, tested, buildErr(StageEdges, err, "relating features %d and %d", features[a].id, features[c].id)
			}
			if ok {
				pairs = append(pairs, pair{i: min(a, c), j: max(a, c)})
			}
		}
	}
	slices.SortFunc(pairs, func(p, q pair) int {
		return cmp.Or(cmp.Compare(p.i, q.i), cmp.Compare(p.j, q.j))
	})
	return pairs, tested, nil
}

func (b *Builder) test(x, y geometry.Geometry, strategy Strategy, maxDistance float64) (bool, error) {
	if strategy == Adjacency {
		return b.opts.Relater.Touches(x, y)
	}
	d, err := b.opts.Relater.Distance(x, y)
	if err != nil {
		return false, err
	}
	return d <= maxDistance, nil
}

// String describes the GPM.
func (g *GPM) String() string {
	return fmt.Sprintf("%s gpm of %s (%d vertices, %d edges)", g.Strategy, g.DataSet, g.Graph.VertexCount(), g.Graph.EdgeCount())
}
