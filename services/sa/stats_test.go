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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/graph"
)

func vertexFloat(t *testing.T, g *graph.Graph, id int, prop string) float64 {
	t.Helper()
	idx := g.Metadata().FindVertexProperty(prop)
	require.GreaterOrEqual(t, idx, 0, "property %s", prop)
	f, err := floatAttr(g.GetVertex(id).Attribute(idx))
	require.NoError(t, err)
	return f
}

func edgeWeight(t *testing.T, g *graph.Graph, from, to int) float64 {
	t.Helper()
	e := edgeBetween(g, from, to)
	require.NotNil(t, e, "edge %d -> %d", from, to)
	f, err := floatAttr(e.Attribute(g.Metadata().FindEdgeProperty(WeightAttr)))
	require.NoError(t, err)
	return f
}

// weightedRow is the symmetric row GPM with row-normalized unit weights.
func weightedRow(t *testing.T) *GPM {
	t.Helper()
	gpm := buildRow(t, true)
	require.NoError(t, NoWeights(true).Apply(context.Background(), gpm))
	return gpm
}

func TestWeights(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		gpm := weightedRow(t)
		g := gpm.Graph
		assert.Equal(t, 1.0, edgeWeight(t, g, 1, 2))
		assert.Equal(t, 0.5, edgeWeight(t, g, 2, 1))
		assert.Equal(t, 0.5, edgeWeight(t, g, 2, 3))

		require.NoError(t, NoWeights(false).Apply(ctx, gpm))
		assert.Equal(t, 2, g.Metadata().EdgePropertySize(), "weight property is reused")
		assert.Equal(t, 1.0, edgeWeight(t, g, 2, 3))
	})

	gpm, err := NewBuilder().BuildDistance(ctx, districts(t), "districts", "id", 1)
	require.NoError(t, err)
	g := gpm.Graph

	t.Run("inverse distance", func(t *testing.T) {
		require.NoError(t, InverseDistance(false).Apply(ctx, gpm))
		assert.InDelta(t, 1.0, edgeWeight(t, g, 1, 2), 1e-9)
		assert.InDelta(t, 0.5, edgeWeight(t, g, 1, 3), 1e-9)

		require.NoError(t, InverseDistance(true).Apply(ctx, gpm))
		assert.InDelta(t, 2.0/3, edgeWeight(t, g, 1, 2), 1e-9)
		assert.InDelta(t, 1.0/3, edgeWeight(t, g, 1, 3), 1e-9)
	})

	t.Run("squared inverse distance", func(t *testing.T) {
		require.NoError(t, SquaredInverseDistance(true).Apply(ctx, gpm))
		assert.InDelta(t, 0.8, edgeWeight(t, g, 3, 2), 1e-9)
		assert.InDelta(t, 0.2, edgeWeight(t, g, 3, 1), 1e-9)
	})

	t.Run("zero distance", func(t *testing.T) {
		e := edgeBetween(g, 2, 3)
		require.NoError(t, e.AddAttribute(g.Metadata().FindEdgeProperty(DistanceAttr), graph.DoubleValue(0)))
		assert.ErrorIs(t, InverseDistance(false).Apply(ctx, gpm), ErrInvalidDistance)
	})

	t.Run("parse", func(t *testing.T) {
		for _, name := range []string{"none", "inverse", "squared-inverse"} {
			s, err := ParseWeightStrategy(name, true)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name())
		}
		_, err := ParseWeightStrategy("gaussian", true)
		assert.Error(t, err)
	})
}

func TestMoments(t *testing.T) {
	gpm := buildRow(t, true)

	sum, err := Sum(gpm, 1)
	require.NoError(t, err)
	assert.Equal(t, 90.0, sum)

	mean, err := FirstMoment(gpm, 1)
	require.NoError(t, err)
	assert.Equal(t, 30.0, mean)

	variance, err := SecondMoment(gpm, 1, mean)
	require.NoError(t, err)
	assert.InDelta(t, 1400.0/3, variance, 1e-9)

	_, err = Sum(gpm, 7)
	assert.ErrorIs(t, err, graph.ErrAttributeIndex)
}

func TestLocalMean(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, LocalMean(ctx, buildRow(t, true), 1), ErrMissingAttribute)

	gpm := weightedRow(t)
	require.NoError(t, LocalMean(ctx, gpm, 1))
	g := gpm.Graph
	assert.InDelta(t, 20.0, vertexFloat(t, g, 1, LocalMeanAttr), 1e-9)
	assert.InDelta(t, 35.0, vertexFloat(t, g, 2, LocalMeanAttr), 1e-9)
	assert.InDelta(t, 20.0, vertexFloat(t, g, 3, LocalMeanAttr), 1e-9)

	n, err := g.GetVertex(2).Attribute(g.Metadata().FindVertexProperty(NeighboursAttr))
	require.NoError(t, err)
	count, ok := n.Int32()
	require.True(t, ok)
	assert.Equal(t, int32(2), count)
}

func TestMoranIndex(t *testing.T) {
	ctx := context.Background()
	gpm := weightedRow(t)
	g := gpm.Graph

	_, err := MoranIndex(ctx, gpm)
	assert.ErrorIs(t, err, ErrMissingAttribute)

	require.NoError(t, ZAndWZ(ctx, gpm, 1))
	assert.InDelta(t, -20.0, vertexFloat(t, g, 1, ZAttr), 1e-9)
	assert.InDelta(t, -10.0, vertexFloat(t, g, 1, WZAttr), 1e-9)
	assert.InDelta(t, 5.0, vertexFloat(t, g, 2, WZAttr), 1e-9)

	moran, err := MoranIndex(ctx, gpm)
	require.NoError(t, err)
	assert.InDelta(t, -150.0/1400, moran, 1e-9)
	assert.InDelta(t, 600.0/1400, vertexFloat(t, g, 1, MoranAttr), 1e-9)
	assert.InDelta(t, -900.0/1400, vertexFloat(t, g, 3, MoranAttr), 1e-9)

	require.NoError(t, BoxMap(ctx, gpm, 0))
	idx := g.Metadata().FindVertexProperty(BoxMapAttr)
	want := map[int]int32{1: BoxLowLow, 2: BoxLowHigh, 3: BoxHighLow}
	for id, q := range want {
		v, err := g.GetVertex(id).Attribute(idx)
		require.NoError(t, err)
		got, _ := v.Int32()
		assert.Equal(t, q, got, "vertex %d", id)
	}
}

func TestGlobalMoran(t *testing.T) {
	gpm := weightedRow(t)
	variance := 1400.0 / 3

	moran, err := GlobalMoran(gpm, 1, 30, variance)
	require.NoError(t, err)
	assert.InDelta(t, -150/(variance*2), moran, 1e-9)

	zero, err := GlobalMoran(gpm, 1, 30, 0)
	require.NoError(t, err)
	assert.Zero(t, zero)

	p1, err := GlobalMoranSignificance(gpm, 1, 99, moran, 7)
	require.NoError(t, err)
	p2, err := GlobalMoranSignificance(gpm, 1, 99, moran, 7)
	require.NoError(t, err)
	assert.Equal(t, p1, p2, "same seed gives the same significance")
	assert.Greater(t, p1, 0.0)
	assert.LessOrEqual(t, p1, 1.0)

	sum, err := Sum(gpm, 1)
	require.NoError(t, err)
	assert.Equal(t, 90.0, sum, "observed values are restored")

	_, err = GlobalMoranSignificance(gpm, 1, 0, moran, 7)
	assert.Error(t, err)
}

func TestGStatistics(t *testing.T) {
	gpm := buildRow(t, true)
	require.NoError(t, GStatistics(context.Background(), gpm, 1))
	g := gpm.Graph

	cases := []struct {
		id      int
		g, star float64
	}{
		{1, 0.25, 30.0 / 2 / 90},
		{2, 0.5, 80.0 / 3 / 90},
		{3, 20.0 / 30, 80.0 / 2 / 90},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.g, vertexFloat(t, g, tc.id, GAttr), 1e-9, "G of %d", tc.id)
		assert.InDelta(t, tc.star, vertexFloat(t, g, tc.id, GStarAttr), 1e-9, "G* of %d", tc.id)
	}
}

func vertexInt32(t *testing.T, g *graph.Graph, id int, prop string) int32 {
	t.Helper()
	idx := g.Metadata().FindVertexProperty(prop)
	require.GreaterOrEqual(t, idx, 0, "property %s", prop)
	v, err := g.GetVertex(id).Attribute(idx)
	require.NoError(t, err)
	n, ok := v.Int32()
	require.True(t, ok, "property %s of %d", prop, id)
	return n
}

// lisaRow is the weighted row with local mean, Z/WZ and local Moran written.
func lisaRow(t *testing.T) *GPM {
	t.Helper()
	ctx := context.Background()
	gpm := weightedRow(t)
	require.NoError(t, LocalMean(ctx, gpm, 1))
	require.NoError(t, ZAndWZ(ctx, gpm, 1))
	_, err := MoranIndex(ctx, gpm)
	require.NoError(t, err)
	return gpm
}

func TestRestoreValues(t *testing.T) {
	sized := graph.NewVertex(1)
	sized.SetAttributeVecSize(1)
	require.NoError(t, sized.AddAttribute(0, graph.DoubleValue(99)))
	short := graph.NewVertex(2)

	err := restoreValues([]*graph.Vertex{sized, short}, 0,
		[]graph.Value{graph.DoubleValue(1), graph.DoubleValue(2)})
	assert.ErrorIs(t, err, graph.ErrAttributeIndex)

	got, err := floatAttr(sized.Attribute(0))
	require.NoError(t, err)
	assert.Equal(t, 1.0, got, "vertices before the failure are restored")
}

func TestLisaSignificance(t *testing.T) {
	ctx := context.Background()

	t.Run("requires local statistics", func(t *testing.T) {
		assert.ErrorIs(t, LisaSignificance(ctx, weightedRow(t), 99, 1), ErrMissingAttribute)
		assert.Error(t, LisaSignificance(ctx, lisaRow(t), 0, 1))
	})

	gpm := lisaRow(t)
	g := gpm.Graph
	require.NoError(t, LisaSignificance(ctx, gpm, 99, 7))

	// Vertex 2 neighbours both others, so every draw reproduces its index.
	assert.Equal(t, 1.0, vertexFloat(t, g, 2, LisaSignificanceAttr))
	// Every draw for vertex 3 is at least as negative as its index.
	assert.Equal(t, 1.0, vertexFloat(t, g, 3, LisaSignificanceAttr))
	p1 := vertexFloat(t, g, 1, LisaSignificanceAttr)
	assert.Greater(t, p1, 0.0)
	assert.Less(t, p1, 1.0)

	size := g.Metadata().VertexPropertySize()
	require.NoError(t, LisaSignificance(ctx, gpm, 99, 7))
	assert.Equal(t, p1, vertexFloat(t, g, 1, LisaSignificanceAttr), "same seed gives the same significance")
	assert.Equal(t, size, g.Metadata().VertexPropertySize())

	require.NoError(t, LISAMap(ctx, gpm))
	require.NoError(t, BoxMap(ctx, gpm, 0))
	require.NoError(t, MoranMap(ctx, gpm))
	for _, id := range []int{2, 3} {
		assert.Equal(t, LisaNotSignificant, vertexInt32(t, g, id, LisaMapAttr))
		assert.Equal(t, int32(0), vertexInt32(t, g, id, MoranMapAttr))
	}
}

func TestLisaClass(t *testing.T) {
	cases := []struct {
		p    float64
		want int32
	}{
		{0.0005, LisaSignificant001},
		{0.001, LisaSignificant001},
		{0.005, LisaSignificant01},
		{0.01, LisaSignificant01},
		{0.03, LisaSignificant05},
		{0.05, LisaSignificant05},
		{0.2, LisaNotSignificant},
		{1, LisaNotSignificant},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LisaClass(tc.p), "p=%v", tc.p)
	}
}

func TestLISAMapAndMoranMap(t *testing.T) {
	ctx := context.Background()
	gpm := lisaRow(t)
	g := gpm.Graph

	assert.ErrorIs(t, LISAMap(ctx, gpm), ErrMissingAttribute)
	assert.ErrorIs(t, MoranMap(ctx, gpm), ErrMissingAttribute)

	idx, err := ensureVertexProperty(ctx, g, LisaSignificanceAttr, graph.TypeDouble)
	require.NoError(t, err)
	size := g.Metadata().VertexPropertySize()
	for id, p := range map[int]float64{1: 0.001, 2: 0.5, 3: 0.04} {
		require.NoError(t, setDouble(g.GetVertex(id), size, idx, p))
	}

	require.NoError(t, LISAMap(ctx, gpm))
	assert.Equal(t, LisaSignificant001, vertexInt32(t, g, 1, LisaMapAttr))
	assert.Equal(t, LisaNotSignificant, vertexInt32(t, g, 2, LisaMapAttr))
	assert.Equal(t, LisaSignificant05, vertexInt32(t, g, 3, LisaMapAttr))

	assert.ErrorIs(t, MoranMap(ctx, gpm), ErrMissingAttribute, "box map not written yet")
	require.NoError(t, BoxMap(ctx, gpm, 0))
	require.NoError(t, MoranMap(ctx, gpm))
	assert.Equal(t, BoxLowLow, vertexInt32(t, g, 1, MoranMapAttr))
	assert.Equal(t, int32(0), vertexInt32(t, g, 2, MoranMapAttr))
	assert.Equal(t, BoxHighLow, vertexInt32(t, g, 3, MoranMapAttr))
}
