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
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/graph"
	"github.com/AleutianAI/AleutianGraph/services/graph/algorithm"
	"github.com/AleutianAI/AleutianGraph/services/graph/database"
	"github.com/AleutianAI/AleutianGraph/services/sa"
)

func (a *app) mstCmd() *cobra.Command {
	var (
		graphID      int
		fromSnapshot string
		fromFile     string
		gwtOut       string
		weight       string
		name         string
		save         bool
		toSnapshot   string
	)
	cmd := &cobra.Command{
		Use:   "mst",
		Short: "Minimum spanning tree (forest) of a saved graph",
		Long: `mst loads a graph from the database (--graph), the snapshot store
(--from-snapshot), or a GAL/GWT file (--from-file) and computes its minimum
spanning forest with Kruskal's algorithm over the numeric edge property
named by --weight.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sources := 0
			for _, set := range []bool{graphID != 0, fromSnapshot != "", fromFile != ""} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				return errors.New("exactly one of --graph, --from-snapshot, and --from-file is required")
			}

			var g *graph.Graph
			switch {
			case fromFile != "":
				gpm, err := sa.ImportFile(ctx, fromFile)
				if err != nil {
					return err
				}
				g = gpm.Graph
			case fromSnapshot != "":
				store, err := a.openStore()
				if err != nil {
					return err
				}
				g, err = store.Load(ctx, fromSnapshot)
				store.Close()
				if err != nil {
					return err
				}
			default:
				src, err := a.openSource(ctx)
				if err != nil {
					return err
				}
				defer src.Close()
				if g, err = database.LoadGraph(ctx, src, graphID, graph.Directed, a.tableOptions()...); err != nil {
					return err
				}
			}

			idx := g.Metadata().FindEdgeProperty(weight)
			if idx < 0 {
				return fmt.Errorf("graph %s has no edge property %q", g.Metadata().Name(), weight)
			}
			tree, err := algorithm.Kruskal(ctx, g, idx, algorithm.WithLogger(a.logger))
			if err != nil {
				return err
			}
			if name == "" {
				name = g.Metadata().Name() + "_mst"
			}
			tree.Metadata().SetName(name)
			total, err := algorithm.TotalWeight(tree, idx)
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			p.title("minimum spanning forest of %s", g.Metadata().Name())
			pairs := [][2]string{
				{"graph", name},
				{"vertices", humanize.Comma(int64(tree.VertexCount()))},
				{"edges", fmt.Sprintf("%s of %s", humanize.Comma(int64(tree.EdgeCount())), humanize.Comma(int64(g.EdgeCount())))},
				{"total " + weight, fmtFloat(total)},
			}
			if save {
				src, err := a.openSource(ctx)
				if err != nil {
					return err
				}
				defer src.Close()
				md, err := database.SaveGraph(ctx, src, tree, a.tableOptions()...)
				if err != nil {
					return err
				}
				pairs = append(pairs, [2]string{"saved", fmt.Sprintf("graph %d", md.ID())})
			}
			if gwtOut != "" {
				if err := sa.ExportFile(gwtOut, &sa.GPM{Graph: tree, Strategy: sa.Imported}); err != nil {
					return err
				}
				pairs = append(pairs, [2]string{"gwt", gwtOut})
			}
			if toSnapshot != "" {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				if _, err := store.Save(ctx, toSnapshot, tree); err != nil {
					return err
				}
				pairs = append(pairs, [2]string{"snapshot", toSnapshot})
			}
			p.kv(pairs...)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&graphID, "graph", 0, "id of a graph saved in the database")
	fl.StringVar(&fromSnapshot, "from-snapshot", "", "name of a stored snapshot")
	fl.StringVar(&fromFile, "from-file", "", "GAL or GWT file")
	fl.StringVar(&gwtOut, "gwt", "", "export the tree to a GWT file")
	fl.StringVar(&weight, "weight", "distance", "edge property holding the weights")
	fl.StringVar(&name, "name", "", "name of the tree (default: <graph>_mst)")
	fl.BoolVar(&save, "save", false, "save the tree to the database")
	fl.StringVar(&toSnapshot, "snapshot", "", "store the tree as a named snapshot")
	return cmd
}
