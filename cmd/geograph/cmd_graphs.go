// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/graph"
	"github.com/AleutianAI/AleutianGraph/services/graph/database"
)

func (a *app) graphsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graphs",
		Short: "Inspect graphs saved in the database",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			src, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer src.Close()

			entries, err := database.List(ctx, src, a.cfg.Database.Tables)
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			if len(entries) == 0 {
				p.muted("no graphs saved in %s", a.cfg.Database.Path)
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{strconv.Itoa(e.ID), e.Name, e.Mode.String(), e.ModelTable, e.Description})
			}
			p.table([]string{"ID", "NAME", "MODE", "TABLE", "DESCRIPTION"}, rows)
			return nil
		},
	}

	var vertices []int
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a saved graph's schema, optionally with vertex neighbourhoods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("graph id %q: %w", args[0], err)
			}
			src, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer src.Close()

			md := database.New(src, graph.EdgeList, a.tableOptions()...)
			if err := md.Load(ctx, id); err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			p.title("graph %d: %s", md.ID(), md.Name())
			p.kv(
				[2]string{"description", md.Description()},
				[2]string{"mode", md.StorageMode().String()},
				[2]string{"srid", strconv.Itoa(md.SRID())},
				[2]string{"edge table", md.EdgeTable()},
				[2]string{"vertex table", md.VertexTable()},
				[2]string{"capabilities", md.Capabilities().String()},
			)
			var rows [][]string
			for _, prop := range md.VertexProperties() {
				rows = append(rows, []string{"vertex", prop.Name, prop.Type.String()})
			}
			for _, prop := range md.EdgeProperties() {
				rows = append(rows, []string{"edge", prop.Name, prop.Type.String()})
			}
			if len(rows) > 0 {
				p.table([]string{"OWNER", "PROPERTY", "TYPE"}, rows)
			}

			if len(vertices) == 0 {
				return nil
			}
			g := graph.NewBidirectional(md, graph.WithLogger(a.logger))
			loader := database.NewLoader(md, database.LoaderOptions{CacheSize: a.cfg.Database.LoaderCache, Logger: a.logger})
			rows = rows[:0]
			for _, vid := range vertices {
				v, err := loader.LoadVertex(ctx, g, vid)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					strconv.Itoa(v.ID()),
					fmt.Sprint(neighbourIDs(g, v.ID(), v.Successors())),
					fmt.Sprint(neighbourIDs(g, v.ID(), v.Predecessors())),
				})
			}
			p.table([]string{"VERTEX", "SUCCESSORS", "PREDECESSORS"}, rows)
			stats := loader.CacheStats()
			p.muted("loaded %s vertices and %s edges (cache hits %d, misses %d)",
				humanize.Comma(int64(g.VertexCount())), humanize.Comma(int64(g.EdgeCount())), stats.Hits, stats.Misses)
			return nil
		},
	}
	show.Flags().IntSliceVar(&vertices, "vertex", nil, "load and print the neighbourhood of these vertices")

	cmd.AddCommand(list, show)
	return cmd
}

func neighbourIDs(g *graph.Graph, id int, edges []int) []int {
	out := make([]int, 0, len(edges))
	for _, eid := range edges {
		if e := g.GetEdge(eid); e != nil {
			out = append(out, e.Other(id))
		}
	}
	return out
}
