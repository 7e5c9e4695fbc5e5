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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPath(t *testing.T, kind Kind) *Graph {
	t.Helper()
	g := New(kind, nil)
	for _, id := range []int{1, 2, 3} {
		_, err := g.AddVertex(id)
		require.NoError(t, err)
	}
	_, err := g.AddEdge(10, 1, 2)
	require.NoError(t, err)
	_, err = g.AddEdge(20, 2, 3)
	require.NoError(t, err)
	return g
}

func TestGraph_Adjacency(t *testing.T) {
	t.Run("bidirectional records predecessors", func(t *testing.T) {
		g := buildPath(t, Bidirectional)

		assert.Equal(t, []int{10}, g.GetVertex(2).Predecessors())
		assert.Equal(t, []int{10}, g.GetVertex(1).Successors())
		assert.Equal(t, []int{20}, g.GetVertex(2).Successors())
		assert.Empty(t, g.GetVertex(1).Predecessors())
	})

	t.Run("directed records successors only", func(t *testing.T) {
		g := buildPath(t, Directed)

		assert.Equal(t, []int{10}, g.GetVertex(1).Successors())
		assert.Empty(t, g.GetVertex(2).Predecessors())
		assert.Empty(t, g.GetVertex(3).Predecessors())
	})

	t.Run("symmetry holds for every edge", func(t *testing.T) {
		g := New(Bidirectional, nil)
		for id := 0; id < 5; id++ {
			_, err := g.AddVertex(id)
			require.NoError(t, err)
		}
		id := 0
		for from := 0; from < 5; from++ {
			for to := 0; to < 5; to++ {
				if (from+to)%2 == 0 {
					_, err := g.AddEdge(id, from, to)
					require.NoError(t, err)
					id++
				}
			}
		}
		for e := range g.Edges() {
			assert.True(t, g.GetVertex(e.From()).HasSuccessor(e.ID()))
			assert.True(t, g.GetVertex(e.To()).HasPredecessor(e.ID()))
		}
	})

	t.Run("self loop", func(t *testing.T) {
		g := New(Bidirectional, nil)
		_, err := g.AddVertex(1)
		require.NoError(t, err)
		e, err := g.AddEdge(1, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, e.Other(1))
		assert.Equal(t, []int{1}, g.GetVertex(1).Successors())
		assert.Equal(t, []int{1}, g.GetVertex(1).Predecessors())
	})
}

func TestGraph_IDUniqueness(t *testing.T) {
	g := buildPath(t, Bidirectional)
	v2 := g.GetVertex(2)
	e10 := g.GetEdge(10)

	_, err := g.AddVertex(2)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Same(t, v2, g.GetVertex(2))
	assert.Equal(t, 3, g.VertexCount())

	_, err = g.AddEdge(10, 3, 1)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Same(t, e10, g.GetEdge(10))
	assert.Equal(t, 1, e10.From())
	assert.False(t, g.GetVertex(3).HasSuccessor(10))
}

func TestGraph_UnknownVertex(t *testing.T) {
	g := buildPath(t, Bidirectional)

	_, err := g.AddEdge(30, 99, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownVertex))
	assert.Nil(t, g.GetEdge(30))
	assert.Equal(t, 2, g.EdgeCount())
	assert.False(t, g.GetVertex(1).HasPredecessor(30))

	_, err = g.AddEdge(31, 1, 99)
	assert.ErrorIs(t, err, ErrUnknownVertex)
	assert.False(t, g.GetVertex(1).HasSuccessor(31))
}

func TestGraph_Remove(t *testing.T) {
	t.Run("remove edge severs adjacency", func(t *testing.T) {
		g := buildPath(t, Bidirectional)
		require.True(t, g.RemoveEdge(10))
		assert.False(t, g.RemoveEdge(10))
		assert.Nil(t, g.GetEdge(10))
		assert.Empty(t, g.GetVertex(1).Successors())
		assert.Empty(t, g.GetVertex(2).Predecessors())
	})

	t.Run("remove vertex leaves dangling edges", func(t *testing.T) {
		g := buildPath(t, Bidirectional)
		require.True(t, g.RemoveVertex(2))
		assert.False(t, g.RemoveVertex(2))
		assert.Equal(t, 2, g.EdgeCount())
		assert.Equal(t, []int{10, 20}, g.DanglingEdges())
	})

	t.Run("cascade removes incident edges", func(t *testing.T) {
		g := buildPath(t, Directed)
		require.True(t, g.RemoveVertexCascade(2))
		assert.Equal(t, 0, g.EdgeCount())
		assert.Empty(t, g.GetVertex(1).Successors())
		assert.Empty(t, g.DanglingEdges())
	})
}

func TestGraph_Properties(t *testing.T) {
	ctx := context.Background()
	g := New(Bidirectional, NewMemoryMetadata(EdgeList))
	_, err := g.AddVertex(1)
	require.NoError(t, err)

	nameIdx, err := g.AddVertexProperty(ctx, Property{Name: "name", Type: TypeString})
	require.NoError(t, err)
	popIdx, err := g.AddVertexProperty(ctx, Property{Name: "pop", Type: TypeDouble})
	require.NoError(t, err)
	assert.Equal(t, 0, nameIdx)
	assert.Equal(t, 1, popIdx)

	v1 := g.GetVertex(1)
	require.Equal(t, 2, v1.AttributeVecSize())
	require.NoError(t, v1.AddAttribute(nameIdx, StringValue("a")))
	require.NoError(t, v1.AddAttribute(popIdx, DoubleValue(12.5)))
	assert.ErrorIs(t, v1.AddAttribute(2, Int32Value(1)), ErrAttributeIndex)

	v2, err := g.AddVertex(2)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.AttributeVecSize())

	_, err = g.AddVertexProperty(ctx, Property{Name: "", Type: TypeString})
	assert.ErrorIs(t, err, ErrInvalidProperty)

	t.Run("removal renumbers attribute vectors", func(t *testing.T) {
		md := g.Metadata()
		before := md.VertexPropertySize()
		require.NoError(t, g.RemoveVertexProperty(ctx, nameIdx))

		assert.Equal(t, before-1, md.VertexPropertySize())
		assert.Equal(t, -1, md.FindVertexProperty("name"))
		assert.Equal(t, 0, md.FindVertexProperty("pop"))

		val, err := g.GetVertex(1).Attribute(0)
		require.NoError(t, err)
		f, ok := val.Double()
		require.True(t, ok)
		assert.Equal(t, 12.5, f)

		err = g.RemoveVertexProperty(ctx, 5)
		assert.ErrorIs(t, err, ErrPropertyIndex)
	})

	t.Run("edge properties", func(t *testing.T) {
		e, err := g.AddEdge(1, 1, 2)
		require.NoError(t, err)
		idx, err := g.AddEdgeProperty(ctx, Property{Name: "weight", Type: TypeDouble})
		require.NoError(t, err)
		require.NoError(t, e.AddAttribute(idx, DoubleValue(3)))
		require.NoError(t, g.RemoveEdgeProperty(ctx, idx))
		assert.Equal(t, 0, e.AttributeVecSize())
	})
}

func TestMemoryMetadata(t *testing.T) {
	ctx := context.Background()
	md := NewMemoryMetadata(EdgeList)

	assert.Equal(t, Capability(0), md.Capabilities())
	assert.Equal(t, "none", md.Capabilities().String())
	require.NoError(t, md.Save(ctx))
	require.NoError(t, md.Save(ctx))
	require.NoError(t, md.Load(ctx, 7))
	require.NoError(t, md.Update(ctx))

	md.SetName("roads")
	md.SetSRID(4326)
	assert.Equal(t, "roads", md.Name())
	assert.Equal(t, 4326, md.SRID())
	assert.Equal(t, -1, md.ID())

	require.NoError(t, md.AddVertexProperty(ctx, Property{Name: "a", Type: TypeInt32}))
	require.NoError(t, md.AddVertexProperty(ctx, Property{Name: "b", Type: TypeInt32}))
	require.NoError(t, md.RemoveVertexProperty(ctx, 0))
	assert.Equal(t, 1, md.VertexPropertySize())
	assert.Equal(t, -1, md.FindVertexProperty("a"))

	p, err := md.VertexProperty(0)
	require.NoError(t, err)
	assert.Equal(t, "b", p.Name)

	_, err = md.EdgeProperty(0)
	assert.ErrorIs(t, err, ErrPropertyIndex)
}

func TestCapability(t *testing.T) {
	c := CapLoad | CapSave
	assert.True(t, c.Has(CapSave))
	assert.False(t, c.Has(CapUpdate))
	assert.False(t, c.Has(CapSave|CapUpdate))
	assert.Equal(t, "load|save", c.String())
	assert.True(t, CapAll.Has(CapRemoveEdgeProperty))
}

func TestMemoryIterator(t *testing.T) {
	t.Run("visits every vertex once in a stable order", func(t *testing.T) {
		g := New(Directed, nil)
		for _, id := range []int{5, 3, 9, 1, 7} {
			_, err := g.AddVertex(id)
			require.NoError(t, err)
		}

		collect := func() []int {
			it := NewMemoryIterator(g)
			var ids []int
			for v := it.FirstVertex(); v != nil; v = it.NextVertex() {
				ids = append(ids, v.ID())
			}
			assert.True(t, it.IsVertexIteratorAfterEnd())
			assert.Nil(t, it.NextVertex())
			return ids
		}

		first := collect()
		assert.Equal(t, []int{5, 3, 9, 1, 7}, first)
		assert.Equal(t, first, collect())
	})

	t.Run("empty graph starts after end", func(t *testing.T) {
		it := NewMemoryIterator(New(Directed, nil))
		assert.True(t, it.IsVertexIteratorAfterEnd())
		assert.True(t, it.IsEdgeIteratorAfterEnd())
		assert.Equal(t, AfterEnd, it.VertexState())
		assert.Nil(t, it.FirstVertex())
		assert.Nil(t, it.FirstEdge())
	})

	t.Run("zero iterator is before begin", func(t *testing.T) {
		var it MemoryIterator
		assert.Equal(t, BeforeBegin, it.VertexState())
		assert.Nil(t, it.FirstVertex())
	})

	t.Run("edges", func(t *testing.T) {
		g := buildPath(t, Bidirectional)
		it := NewMemoryIterator(g)
		assert.Equal(t, Positioned, it.EdgeState())
		assert.Equal(t, 2, it.EdgeCount())
		var ids []int
		for e := it.FirstEdge(); !it.IsEdgeIteratorAfterEnd(); e = it.NextEdge() {
			ids = append(ids, e.ID())
		}
		assert.Equal(t, []int{10, 20}, ids)
	})
}

func TestValue(t *testing.T) {
	assert.True(t, Null.IsNull())
	assert.Equal(t, "", Null.String())
	assert.True(t, Null.Conforms(Property{Name: "x", Type: TypeInt32}))
	assert.False(t, StringValue("1").Conforms(Property{Name: "x", Type: TypeInt32}))

	f, err := StringValue(" 2.5 ").AsFloat64()
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	_, err = Null.AsFloat64()
	assert.Error(t, err)

	v, err := ValueOf(int64(4))
	require.NoError(t, err)
	assert.Equal(t, Int32Value(4), v)
	assert.Equal(t, int32(4), v.Any())

	_, err = ValueOf(struct{}{})
	assert.ErrorIs(t, err, ErrInvalidProperty)
}
