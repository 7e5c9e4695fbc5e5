// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package algorithm

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/graph"
)

type wedge struct {
	id, from, to int
	w            graph.Value
}

func weighted(t *testing.T, kind graph.Kind, vertices []int, edges []wedge) *graph.Graph {
	t.Helper()
	md := graph.NewMemoryMetadata(graph.EdgeList)
	md.SetName("net")
	require.NoError(t, md.AppendEdgeProperty(graph.Property{Name: "weight", Type: graph.TypeDouble}))
	require.NoError(t, md.AppendVertexProperty(graph.Property{Name: "label", Type: graph.TypeString}))
	g := graph.New(kind, md)
	for _, id := range vertices {
		v, err := g.AddVertex(id)
		require.NoError(t, err)
		require.NoError(t, v.AddAttribute(0, graph.StringValue("v")))
	}
	for _, e := range edges {
		ge, err := g.AddEdge(e.id, e.from, e.to)
		require.NoError(t, err)
		require.NoError(t, ge.AddAttribute(0, e.w))
	}
	return g
}

func w(f float64) graph.Value { return graph.DoubleValue(f) }

func selected(g *graph.Graph) []int {
	var ids []int
	for e := range g.Edges() {
		ids = append(ids, e.ID())
	}
	return ids
}

func TestKruskal_Square(t *testing.T) {
	g := weighted(t, graph.Directed, []int{1, 2, 3, 4}, []wedge{
		{1, 1, 2, w(1)}, {2, 2, 3, w(2)}, {3, 3, 4, w(3)}, {4, 4, 1, w(4)},
	})

	mst, err := Kruskal(context.Background(), g, 0)
	require.NoError(t, err)

	assert.Equal(t, 4, mst.VertexCount())
	assert.Equal(t, 3, mst.EdgeCount())
	assert.Nil(t, mst.GetEdge(4))
	total, err := TotalWeight(mst, 0)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, total, 1e-12)

	assert.Equal(t, 4, g.EdgeCount(), "input unchanged")
	assert.Equal(t, graph.Directed, mst.Kind())
	assert.Equal(t, "net", mst.Metadata().Name())
	assert.Equal(t, 1, mst.Metadata().VertexPropertySize())

	label, err := mst.GetVertex(3).Attribute(0)
	require.NoError(t, err)
	s, _ := label.Str()
	assert.Equal(t, "v", s)
}

func TestKruskal_TiesKeepInsertionOrder(t *testing.T) {
	g := weighted(t, graph.Directed, []int{1, 2, 3}, []wedge{
		{30, 3, 1, w(1)}, {10, 1, 2, w(1)}, {20, 2, 3, w(1)},
	})
	mst, err := Kruskal(context.Background(), g, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{30, 10}, selected(mst))
}

func TestKruskal_Forest(t *testing.T) {
	g := weighted(t, graph.Bidirectional, []int{1, 2, 3, 4, 5, 6}, []wedge{
		{1, 1, 2, w(5)}, {2, 2, 3, w(1)}, {3, 3, 1, w(2)},
		{4, 4, 5, w(7)}, {5, 5, 4, w(3)},
		{6, 6, 6, w(0)},
	})
	mst, err := Kruskal(context.Background(), g, 0)
	require.NoError(t, err)

	assert.Equal(t, 6, mst.VertexCount())
	assert.ElementsMatch(t, []int{2, 3, 5}, selected(mst))
	assert.Nil(t, mst.GetEdge(6), "self-loop")
	assert.Equal(t, []int{5}, mst.GetVertex(4).Predecessors())
}

func TestKruskal_Errors(t *testing.T) {
	ctx := context.Background()
	vs := []int{1, 2}

	_, err := Kruskal(ctx, weighted(t, graph.Directed, vs, nil), 3)
	assert.ErrorIs(t, err, ErrInvalidWeightIndex)
	_, err = Kruskal(ctx, weighted(t, graph.Directed, vs, nil), -1)
	assert.ErrorIs(t, err, ErrInvalidWeightIndex)

	for name, v := range map[string]graph.Value{
		"null":        graph.Null,
		"nan":         w(math.NaN()),
		"non-numeric": graph.StringValue("far"),
	} {
		t.Run(name, func(t *testing.T) {
			g := weighted(t, graph.Directed, vs, []wedge{{1, 1, 2, v}})
			_, err := Kruskal(ctx, g, 0)
			assert.ErrorIs(t, err, ErrInvalidWeight)
		})
	}

	t.Run("numeric string", func(t *testing.T) {
		g := weighted(t, graph.Directed, vs, []wedge{{1, 1, 2, graph.StringValue("2.5")}})
		mst, err := Kruskal(ctx, g, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, mst.EdgeCount())
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Kruskal(cctx, weighted(t, graph.Directed, vs, []wedge{{1, 1, 2, w(1)}}), 0)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestKruskal_DanglingEdgeSkipped(t *testing.T) {
	g := weighted(t, graph.Directed, []int{1, 2, 3}, []wedge{{1, 1, 2, w(1)}, {2, 2, 3, w(1)}})
	require.True(t, g.RemoveVertex(3))
	mst, err := Kruskal(context.Background(), g, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, selected(mst))
}

// bruteForceMST enumerates every (n-1)-edge subset and returns the lowest
// weight among those forming a spanning tree.
func bruteForceMST(n int, edges []wedge) float64 {
	best := math.Inf(1)
	var pick func(start int, chosen []wedge)
	pick = func(start int, chosen []wedge) {
		if len(chosen) == n-1 {
			uf := newUnionFind(n)
			total := 0.0
			for _, e := range chosen {
				if !uf.union(e.from, e.to) {
					return
				}
				f, _ := e.w.Double()
				total += f
			}
			best = min(best, total)
			return
		}
		for i := start; i < len(edges); i++ {
			pick(i+1, append(chosen, edges[i]))
		}
	}
	pick(0, nil)
	return best
}

func TestKruskal_MatchesExhaustiveSearch(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := range 25 {
		n := 3 + trial%4
		vertices := make([]int, n)
		for i := range vertices {
			vertices[i] = i + 1
		}
		var edges []wedge
		id := 1
		// Spanning path keeps the graph connected; extra edges add cycles.
		for i := 1; i < n; i++ {
			edges = append(edges, wedge{id, i, i + 1, w(float64(rng.IntN(9) + 1))})
			id++
		}
		for range n + rng.IntN(n) {
			a, b := rng.IntN(n)+1, rng.IntN(n)+1
			edges = append(edges, wedge{id, a, b, w(float64(rng.IntN(9) + 1))})
			id++
		}

		g := weighted(t, graph.Directed, vertices, edges)
		mst, err := Kruskal(context.Background(), g, 0)
		require.NoError(t, err)
		require.Equal(t, n-1, mst.EdgeCount(), "trial %d", trial)

		uf := newUnionFind(n)
		for e := range mst.Edges() {
			require.True(t, uf.union(e.From(), e.To()), "cycle in trial %d", trial)
		}
		total, err := TotalWeight(mst, 0)
		require.NoError(t, err)
		assert.InDelta(t, bruteForceMST(n, edges), total, 1e-9, "trial %d", trial)
	}
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(4)
	assert.True(t, uf.union(1, 2))
	assert.True(t, uf.union(3, 4))
	assert.False(t, uf.union(2, 1))
	assert.True(t, uf.union(2, 4))
	assert.Equal(t, uf.find(1), uf.find(3))
	assert.Equal(t, 7, uf.find(7))
}

func TestKruskal_Logger(t *testing.T) {
	g := weighted(t, graph.Directed, []int{1, 2, 3}, []wedge{
		{1, 1, 2, w(1)}, {2, 2, 3, w(2)},
	})
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Kruskal(context.Background(), g, 0, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "minimum spanning forest computed")
	assert.Contains(t, buf.String(), "edges=2")

	_, err = Kruskal(context.Background(), g, 0, WithLogger(nil))
	require.NoError(t, err, "a nil logger keeps the default")
}
