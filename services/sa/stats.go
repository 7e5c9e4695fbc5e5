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
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/AleutianAI/AleutianGraph/services/graph"
)

// Statistics read vertex attribute slots by index and write their results
// as new double vertex properties. Rerunning a statistic overwrites the
// property it created the first time.

// vertexValue reads slot idx of v as a float.
func vertexValue(v *graph.Vertex, idx int) (float64, error) {
	f, err := floatAttr(v.Attribute(idx))
	if err != nil {
		return 0, fmt.Errorf("vertex %d: %w", v.ID(), err)
	}
	return f, nil
}

// neighbour is a successor reached through edge.
type neighbour struct {
	edge   *graph.Edge
	vertex *graph.Vertex
}

// neighbours lists v's successors through existing edges, in edge id order.
func neighbours(g *graph.Graph, v *graph.Vertex) []neighbour {
	succ := v.Successors()
	out := make([]neighbour, 0, len(succ))
	for _, eid := range succ {
		e := g.GetEdge(eid)
		if e == nil {
			continue
		}
		if to := g.GetVertex(e.Other(v.ID())); to != nil {
			out = append(out, neighbour{edge: e, vertex: to})
		}
	}
	return out
}

func setDouble(v *graph.Vertex, size, idx int, f float64) error {
	v.SetAttributeVecSize(size)
	return v.AddAttribute(idx, graph.DoubleValue(f))
}

// Sum adds attribute attrIdx over every vertex.
func Sum(gpm *GPM, attrIdx int) (float64, error) {
	total := 0.0
	for v := range gpm.Graph.Vertices() {
		f, err := vertexValue(v, attrIdx)
		if err != nil {
			return 0, err
		}
		total += f
	}
	return total, nil
}

// FirstMoment returns the mean of attribute attrIdx.
func FirstMoment(gpm *GPM, attrIdx int) (float64, error) {
	n := gpm.Graph.VertexCount()
	if n == 0 {
		return 0, nil
	}
	total, err := Sum(gpm, attrIdx)
	if err != nil {
		return 0, err
	}
	return total / float64(n), nil
}

// SecondMoment returns the population variance of attribute attrIdx around
// mean.
func SecondMoment(gpm *GPM, attrIdx int, mean float64) (float64, error) {
	n := gpm.Graph.VertexCount()
	if n == 0 {
		return 0, nil
	}
	total := 0.0
	for v := range gpm.Graph.Vertices() {
		f, err := vertexValue(v, attrIdx)
		if err != nil {
			return 0, err
		}
		total += (f - mean) * (f - mean)
	}
	return total / float64(n), nil
}

// weightedNeighbourSum returns sum(w_ij * x_j) over v's neighbours.
func weightedNeighbourSum(g *graph.Graph, v *graph.Vertex, attrIdx, weightIdx int) (float64, int, error) {
	ns := neighbours(g, v)
	sum := 0.0
	for _, n := range ns {
		x, err := vertexValue(n.vertex, attrIdx)
		if err != nil {
			return 0, 0, err
		}
		w, err := floatAttr(n.edge.Attribute(weightIdx))
		if err != nil {
			return 0, 0, fmt.Errorf("edge %d: %w", n.edge.ID(), err)
		}
		sum += w * x
	}
	return sum, len(ns), nil
}

func weightIndex(g *graph.Graph) (int, error) {
	idx := g.Metadata().FindEdgeProperty(WeightAttr)
	if idx < 0 {
		return -1, fmt.Errorf("%w: edge property %s (apply a weight strategy first)", ErrMissingAttribute, WeightAttr)
	}
	return idx, nil
}

// LocalMean writes the weighted mean of each vertex's neighbours into
// "local_mean" and the neighbour count into "neighbours". Weights are
// expected to be normalized.
func LocalMean(ctx context.Context, gpm *GPM, attrIdx int) error {
	g := gpm.Graph
	weightIdx, err := weightIndex(g)
	if err != nil {
		return err
	}
	meanIdx, err := ensureVertexProperty(ctx, g, LocalMeanAttr, graph.TypeDouble)
	if err != nil {
		return err
	}
	countIdx, err := ensureVertexProperty(ctx, g, NeighboursAttr, graph.TypeInt32)
	if err != nil {
		return err
	}
	size := g.Metadata().VertexPropertySize()

	for v := range g.Vertices() {
		sum, n, err := weightedNeighbourSum(g, v, attrIdx, weightIdx)
		if err != nil {
			return err
		}
		if err := setDouble(v, size, meanIdx, sum); err != nil {
			return err
		}
		if err := v.AddAttribute(countIdx, graph.Int32Value(int32(n))); err != nil {
			return err
		}
	}
	return nil
}

// ZAndWZ writes each vertex's deviation from the mean into "std_dev_z" and
// the weighted mean of its neighbours' deviations into "local_mean_wz".
func ZAndWZ(ctx context.Context, gpm *GPM, attrIdx int) error {
	g := gpm.Graph
	weightIdx, err := weightIndex(g)
	if err != nil {
		return err
	}
	mean, err := FirstMoment(gpm, attrIdx)
	if err != nil {
		return err
	}
	zIdx, err := ensureVertexProperty(ctx, g, ZAttr, graph.TypeDouble)
	if err != nil {
		return err
	}
	wzIdx, err := ensureVertexProperty(ctx, g, WZAttr, graph.TypeDouble)
	if err != nil {
		return err
	}
	size := g.Metadata().VertexPropertySize()

	for v := range g.Vertices() {
		x, err := vertexValue(v, attrIdx)
		if err != nil {
			return err
		}
		if err := setDouble(v, size, zIdx, x-mean); err != nil {
			return err
		}
	}
	for v := range g.Vertices() {
		sum, _, err := weightedNeighbourSum(g, v, zIdx, weightIdx)
		if err != nil {
			return err
		}
		if err := setDouble(v, size, wzIdx, sum); err != nil {
			return err
		}
	}
	return nil
}

// MoranIndex writes the local Moran index z*wz/var(z) of each vertex into
// "moran_index" and returns the global index, the mean of the local ones.
// ZAndWZ must have run first. A zero variance yields zero indexes.
func MoranIndex(ctx context.Context, gpm *GPM) (float64, error) {
	g := gpm.Graph
	md := g.Metadata()
	zIdx := md.FindVertexProperty(ZAttr)
	wzIdx := md.FindVertexProperty(WZAttr)
	if zIdx < 0 || wzIdx < 0 {
		return 0, fmt.Errorf("%w: vertex properties %s and %s (run ZAndWZ first)", ErrMissingAttribute, ZAttr, WZAttr)
	}
	variance, err := SecondMoment(gpm, zIdx, 0)
	if err != nil {
		return 0, err
	}
	moranIdx, err := ensureVertexProperty(ctx, g, MoranAttr, graph.TypeDouble)
	if err != nil {
		return 0, err
	}
	size := md.VertexPropertySize()

	sum, count := 0.0, 0
	for v := range g.Vertices() {
		z, err := vertexValue(v, zIdx)
		if err != nil {
			return 0, err
		}
		wz, err := vertexValue(v, wzIdx)
		if err != nil {
			return 0, err
		}
		local := 0.0
		if variance != 0 {
			local = z * wz / variance
		}
		if err := setDouble(v, size, moranIdx, local); err != nil {
			return 0, err
		}
		sum += local
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

// GlobalMoran computes Moran's I of attribute attrIdx from its mean and
// variance without writing any property. Each vertex contributes the
// weighted average of its neighbours' co-deviation.
func GlobalMoran(gpm *GPM, attrIdx int, mean, variance float64) (float64, error) {
	g := gpm.Graph
	weightIdx, err := weightIndex(g)
	if err != nil {
		return 0, err
	}
	moran := 0.0
	for v := range g.Vertices() {
		x, err := vertexValue(v, attrIdx)
		if err != nil {
			return 0, err
		}
		li, weightSum := 0.0, 0.0
		for _, n := range neighbours(g, v) {
			y, err := vertexValue(n.vertex, attrIdx)
			if err != nil {
				return 0, err
			}
			w, err := floatAttr(n.edge.Attribute(weightIdx))
			if err != nil {
				return 0, fmt.Errorf("edge %d: %w", n.edge.ID(), err)
			}
			li += w * (y - mean) * (x - mean)
			weightSum += w
		}
		if weightSum != 0 {
			li /= weightSum
		}
		moran += li
	}
	if variance == 0 {
		return 0, nil
	}
	if n := g.VertexCount(); n > 1 {
		return moran / (variance * float64(n-1)), nil
	}
	return moran / variance, nil
}

// GlobalMoranSignificance returns the pseudo p-value of moran: the share of
// random reassignments of attribute attrIdx, drawn with replacement from the
// observed values, whose GlobalMoran is at least as extreme. The observed
// values are restored before returning. seed makes runs reproducible.
func GlobalMoranSignificance(gpm *GPM, attrIdx, permutations int, moran float64, seed uint64) (p float64, err error) {
	if permutations <= 0 {
		return 0, fmt.Errorf("permutations must be positive, got %d", permutations)
	}
	g := gpm.Graph
	mean, err := FirstMoment(gpm, attrIdx)
	if err != nil {
		return 0, err
	}
	variance, err := SecondMoment(gpm, attrIdx, mean)
	if err != nil {
		return 0, err
	}

	var vertices []*graph.Vertex
	var observed []graph.Value
	for v := range g.Vertices() {
		val, err := v.Attribute(attrIdx)
		if err != nil {
			return 0, err
		}
		vertices = append(vertices, v)
		observed = append(observed, val)
	}
	if len(vertices) == 0 {
		return 0, nil
	}
	defer func() {
		if rerr := restoreValues(vertices, attrIdx, observed); rerr != nil && err == nil {
			p, err = 0, rerr
		}
	}()

	rng := newRand(seed)
	extreme := 0
	for range permutations {
		for _, v := range vertices {
			if err := v.AddAttribute(attrIdx, observed[rng.IntN(len(observed))]); err != nil {
				return 0, err
			}
		}
		perm, err := GlobalMoran(gpm, attrIdx, mean, variance)
		if err != nil {
			return 0, err
		}
		if atLeastAsExtreme(perm, moran) {
			extreme++
		}
	}
	return pseudoP(extreme, permutations), nil
}

// restoreValues writes observed[i] back into slot attrIdx of vertices[i].
func restoreValues(vertices []*graph.Vertex, attrIdx int, observed []graph.Value) error {
	var errs []error
	for i, v := range vertices {
		if err := v.AddAttribute(attrIdx, observed[i]); err != nil {
			errs = append(errs, fmt.Errorf("restoring vertex %d: %w", v.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// atLeastAsExtreme compares a permuted statistic with the observed one on
// the observed value's side of zero.
func atLeastAsExtreme(perm, observed float64) bool {
	if observed >= 0 {
		return perm >= observed
	}
	return perm <= observed
}

func pseudoP(extreme, permutations int) float64 {
	return float64(extreme+1) / float64(permutations+1)
}

// GStatistics writes the Getis-Ord G into "g" and G* into "g_star" for
// each vertex. G is the mean of the neighbours' values over the total
// excluding the vertex; G* includes the vertex in both. Vertices without
// neighbours get G = 0.
func GStatistics(ctx context.Context, gpm *GPM, attrIdx int) error {
	g := gpm.Graph
	total, err := Sum(gpm, attrIdx)
	if err != nil {
		return err
	}
	gIdx, err := ensureVertexProperty(ctx, g, GAttr, graph.TypeDouble)
	if err != nil {
		return err
	}
	gStarIdx, err := ensureVertexProperty(ctx, g, GStarAttr, graph.TypeDouble)
	if err != nil {
		return err
	}
	size := g.Metadata().VertexPropertySize()

	for v := range g.Vertices() {
		x, err := vertexValue(v, attrIdx)
		if err != nil {
			return err
		}
		ns := neighbours(g, v)
		sum := 0.0
		for _, n := range ns {
			y, err := vertexValue(n.vertex, attrIdx)
			if err != nil {
				return err
			}
			sum += y
		}
		gv, gStar := 0.0, 0.0
		if len(ns) > 0 && total-x != 0 {
			gv = sum / float64(len(ns)) / (total - x)
		}
		if total != 0 {
			gStar = (sum + x) / float64(len(ns)+1) / total
		}
		if err := setDouble(v, size, gIdx, gv); err != nil {
			return err
		}
		if err := setDouble(v, size, gStarIdx, gStar); err != nil {
			return err
		}
	}
	return nil
}

// Box map quadrants.
const (
	BoxHighHigh int32 = 1
	BoxLowLow   int32 = 2
	BoxHighLow  int32 = 3
	BoxLowHigh  int32 = 4
)

// BoxMap classifies each vertex by the signs of z and wz relative to mean
// and writes the quadrant into "box_map". ZAndWZ must have run first.
func BoxMap(ctx context.Context, gpm *GPM, mean float64) error {
	g := gpm.Graph
	md := g.Metadata()
	zIdx := md.FindVertexProperty(ZAttr)
	wzIdx := md.FindVertexProperty(WZAttr)
	if zIdx < 0 || wzIdx < 0 {
		return fmt.Errorf("%w: vertex properties %s and %s (run ZAndWZ first)", ErrMissingAttribute, ZAttr, WZAttr)
	}
	boxIdx, err := ensureVertexProperty(ctx, g, BoxMapAttr, graph.TypeInt32)
	if err != nil {
		return err
	}
	size := md.VertexPropertySize()

	for v := range g.Vertices() {
		z, err := vertexValue(v, zIdx)
		if err != nil {
			return err
		}
		wz, err := vertexValue(v, wzIdx)
		if err != nil {
			return err
		}
		var q int32
		switch {
		case z >= mean && wz >= mean:
			q = BoxHighHigh
		case z < mean && wz < mean:
			q = BoxLowLow
		case z >= mean:
			q = BoxHighLow
		default:
			q = BoxLowHigh
		}
		v.SetAttributeVecSize(size)
		if err := v.AddAttribute(boxIdx, graph.Int32Value(q)); err != nil {
			return err
		}
	}
	return nil
}

// LisaSignificance writes the pseudo p-value of each vertex's local Moran
// index into "lisa_significance". A permutation draws as many distinct other
// vertices as the vertex has neighbours and recomputes the index from the
// mean of their deviations. LocalMean, ZAndWZ and MoranIndex must have run.
func LisaSignificance(ctx context.Context, gpm *GPM, permutations int, seed uint64) error {
	if permutations <= 0 {
		return fmt.Errorf("permutations must be positive, got %d", permutations)
	}
	g := gpm.Graph
	md := g.Metadata()
	zIdx := md.FindVertexProperty(ZAttr)
	moranIdx := md.FindVertexProperty(MoranAttr)
	countIdx := md.FindVertexProperty(NeighboursAttr)
	if zIdx < 0 || moranIdx < 0 || countIdx < 0 {
		return fmt.Errorf("%w: vertex properties %s, %s and %s (run LocalMean, ZAndWZ and MoranIndex first)",
			ErrMissingAttribute, ZAttr, MoranAttr, NeighboursAttr)
	}
	variance, err := SecondMoment(gpm, zIdx, 0)
	if err != nil {
		return err
	}

	var vertices []*graph.Vertex
	var deviations []float64
	for v := range g.Vertices() {
		z, err := vertexValue(v, zIdx)
		if err != nil {
			return err
		}
		vertices = append(vertices, v)
		deviations = append(deviations, z)
	}
	sigIdx, err := ensureVertexProperty(ctx, g, LisaSignificanceAttr, graph.TypeDouble)
	if err != nil {
		return err
	}
	size := md.VertexPropertySize()

	rng := newRand(seed)
	pool := make([]int, len(deviations))
	for i, v := range vertices {
		if err := ctx.Err(); err != nil {
			return err
		}
		lisa, err := vertexValue(v, moranIdx)
		if err != nil {
			return err
		}
		count, err := vertexValue(v, countIdx)
		if err != nil {
			return err
		}
		k := min(int(count), len(vertices)-1)
		extreme := 0
		for range permutations {
			perm := 0.0
			if k > 0 && variance != 0 {
				perm = deviations[i] * drawMean(rng, deviations, pool, i, k) / variance
			}
			if atLeastAsExtreme(perm, lisa) {
				extreme++
			}
		}
		if err := setDouble(v, size, sigIdx, pseudoP(extreme, permutations)); err != nil {
			return err
		}
	}
	return nil
}

// drawMean averages the deviations at k distinct positions other than self.
// pool is scratch space as long as deviations.
func drawMean(rng *rand.Rand, deviations []float64, pool []int, self, k int) float64 {
	n := 0
	for j := range deviations {
		if j != self {
			pool[n] = j
			n++
		}
	}
	sum := 0.0
	for j := range k {
		r := j + rng.IntN(n-j)
		pool[j], pool[r] = pool[r], pool[j]
		sum += deviations[pool[j]]
	}
	return sum / float64(k)
}

// LISA map classes.
const (
	LisaNotSignificant int32 = 0
	LisaSignificant05  int32 = 1
	LisaSignificant01  int32 = 2
	LisaSignificant001 int32 = 3
)

// LisaClass maps a pseudo p-value to its LISA map class.
func LisaClass(p float64) int32 {
	switch {
	case p <= 0.001:
		return LisaSignificant001
	case p <= 0.01:
		return LisaSignificant01
	case p <= 0.05:
		return LisaSignificant05
	}
	return LisaNotSignificant
}

// LISAMap writes the significance class of "lisa_significance" into
// "lisa_map". LisaSignificance must have run first.
func LISAMap(ctx context.Context, gpm *GPM) error {
	g := gpm.Graph
	md := g.Metadata()
	sigIdx := md.FindVertexProperty(LisaSignificanceAttr)
	if sigIdx < 0 {
		return fmt.Errorf("%w: vertex property %s (run LisaSignificance first)", ErrMissingAttribute, LisaSignificanceAttr)
	}
	mapIdx, err := ensureVertexProperty(ctx, g, LisaMapAttr, graph.TypeInt32)
	if err != nil {
		return err
	}
	size := md.VertexPropertySize()
	for v := range g.Vertices() {
		p, err := vertexValue(v, sigIdx)
		if err != nil {
			return err
		}
		v.SetAttributeVecSize(size)
		if err := v.AddAttribute(mapIdx, graph.Int32Value(LisaClass(p))); err != nil {
			return err
		}
	}
	return nil
}

// MoranMap writes the box map quadrant of every significant vertex into
// "moran_map", and 0 for the rest. BoxMap and LISAMap must have run first.
func MoranMap(ctx context.Context, gpm *GPM) error {
	g := gpm.Graph
	md := g.Metadata()
	lisaIdx := md.FindVertexProperty(LisaMapAttr)
	boxIdx := md.FindVertexProperty(BoxMapAttr)
	if lisaIdx < 0 || boxIdx < 0 {
		return fmt.Errorf("%w: vertex properties %s and %s (run BoxMap and LISAMap first)", ErrMissingAttribute, LisaMapAttr, BoxMapAttr)
	}
	moranIdx, err := ensureVertexProperty(ctx, g, MoranMapAttr, graph.TypeInt32)
	if err != nil {
		return err
	}
	size := md.VertexPropertySize()
	for v := range g.Vertices() {
		class, err := vertexValue(v, lisaIdx)
		if err != nil {
			return err
		}
		quadrant := int32(0)
		if class != 0 {
			box, err := vertexValue(v, boxIdx)
			if err != nil {
				return err
			}
			quadrant = int32(box)
		}
		v.SetAttributeVecSize(size)
		if err := v.AddAttribute(moranIdx, graph.Int32Value(quadrant)); err != nil {
			return err
		}
	}
	return nil
}
