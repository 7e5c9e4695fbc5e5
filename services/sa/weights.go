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
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianGraph/services/graph"
)

// WeightStrategy writes edge property "weight" on a GPM.
type WeightStrategy interface {
	// Name identifies the strategy in logs and CLI flags.
	Name() string

	// Apply computes and stores a weight for every edge reachable as a
	// vertex successor.
	Apply(ctx context.Context, gpm *GPM) error
}

// weightFunc maps a centroid distance to a raw weight.
type weightFunc func(distance float64) (float64, error)

type weightStrategy struct {
	name      string
	normalize bool
	raw       weightFunc
}

func (s weightStrategy) Name() string { return s.name }

// NoWeights gives every edge weight 1, or 1/n when normalize is set, where
// n is the source vertex's successor count.
func NoWeights(normalize bool) WeightStrategy {
	return weightStrategy{name: "none", normalize: normalize, raw: func(float64) (float64, error) { return 1, nil }}
}

// InverseDistance weighs edges by 1/d. With normalize, each vertex's
// outgoing weights are scaled to sum to 1.
func InverseDistance(normalize bool) WeightStrategy {
	return weightStrategy{name: "inverse", normalize: normalize, raw: func(d float64) (float64, error) {
		if d <= 0 {
			return 0, fmt.Errorf("%w: inverse of %v", ErrInvalidDistance, d)
		}
		return 1 / d, nil
	}}
}

// SquaredInverseDistance weighs edges by 1/d². With normalize, each
// vertex's outgoing weights are scaled to sum to 1.
func SquaredInverseDistance(normalize bool) WeightStrategy {
	return weightStrategy{name: "squared-inverse", normalize: normalize, raw: func(d float64) (float64, error) {
		if d <= 0 {
			return 0, fmt.Errorf("%w: inverse of %v", ErrInvalidDistance, d)
		}
		return 1 / (d * d), nil
	}}
}

// ParseWeightStrategy resolves a strategy by name.
func ParseWeightStrategy(name string, normalize bool) (WeightStrategy, error) {
	switch name {
	case "none", "":
		return NoWeights(normalize), nil
	case "inverse":
		return InverseDistance(normalize), nil
	case "squared-inverse":
		return SquaredInverseDistance(normalize), nil
	}
	return nil, fmt.Errorf("unknown weight strategy %q", name)
}

// Apply implements WeightStrategy.
func (s weightStrategy) Apply(ctx context.Context, gpm *GPM) error {
	g := gpm.Graph
	md := g.Metadata()
	distIdx := md.FindEdgeProperty(DistanceAttr)
	if distIdx < 0 && s.name != "none" {
		return fmt.Errorf("%w: edge property %s", ErrMissingAttribute, DistanceAttr)
	}
	weightIdx, err := ensureEdgeProperty(ctx, g, WeightAttr, graph.TypeDouble)
	if err != nil {
		return err
	}

	for v := range g.Vertices() {
		if err := ctx.Err(); err != nil {
			return err
		}
		succ := v.Successors()
		weights := make([]float64, 0, len(succ))
		edges := make([]*graph.Edge, 0, len(succ))
		total := 0.0
		for _, eid := range succ {
			e := g.GetEdge(eid)
			if e == nil {
				continue
			}
			d := 0.0
			if distIdx >= 0 {
				if d, err = floatAttr(e.Attribute(distIdx)); err != nil {
					return fmt.Errorf("edge %d: %w", eid, err)
				}
			}
			w, err := s.raw(d)
			if err != nil {
				return fmt.Errorf("edge %d: %w", eid, err)
			}
			weights = append(weights, w)
			edges = append(edges, e)
			total += w
		}
		for i, e := range edges {
			w := weights[i]
			if s.normalize && total != 0 {
				w /= total
			}
			e.SetAttributeVecSize(md.EdgePropertySize())
			if err := e.AddAttribute(weightIdx, graph.DoubleValue(w)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureEdgeProperty returns the slot of the named edge property, declaring
// it through the graph when absent.
func ensureEdgeProperty(ctx context.Context, g *graph.Graph, name string, t graph.PropertyType) (int, error) {
	if idx := g.Metadata().FindEdgeProperty(name); idx >= 0 {
		return idx, nil
	}
	return g.AddEdgeProperty(ctx, graph.Property{Name: name, Type: t})
}

// ensureVertexProperty is ensureEdgeProperty for vertices.
func ensureVertexProperty(ctx context.Context, g *graph.Graph, name string, t graph.PropertyType) (int, error) {
	if idx := g.Metadata().FindVertexProperty(name); idx >= 0 {
		return idx, nil
	}
	return g.AddVertexProperty(ctx, graph.Property{Name: name, Type: t})
}

func floatAttr(v graph.Value, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	f, err := v.AsFloat64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMissingAttribute, err)
	}
	return f, nil
}
