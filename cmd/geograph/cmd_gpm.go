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
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/geometry"
	"github.com/AleutianAI/AleutianGraph/services/graph/database"
	"github.com/AleutianAI/AleutianGraph/services/sa"
)

// gpmFlags are shared by the gpm subcommands.
type gpmFlags struct {
	id        string
	geom      string
	attrs     []string
	name      string
	weights   string
	normalize bool
	oneWay    bool
	gal       string
	gwt       string
	save      bool
	snapshot  string
}

// bindSource binds the flags that locate features in a dataset.
func (f *gpmFlags) bindSource(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.id, "id", "", "integer feature id column")
	fl.StringVar(&f.geom, "geom", "", "geometry column (default: the first one)")
	fl.StringVar(&f.name, "name", "", "graph name (default: generated)")
	_ = cmd.MarkFlagRequired("id")
}

func (f *gpmFlags) bindBuild(cmd *cobra.Command) {
	f.bindSource(cmd)
	cmd.Flags().StringSliceVar(&f.attrs, "attr", nil, "dataset columns to copy onto vertices")
}

func (f *gpmFlags) bindOutputs(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.weights, "weights", "", "weight strategy: none, inverse, squared-inverse (default from config)")
	fl.BoolVar(&f.normalize, "normalize", true, "row-normalize weights")
	fl.StringVar(&f.gal, "gal", "", "export neighbour lists to a GAL file")
	fl.StringVar(&f.gwt, "gwt", "", "export distances to a GWT file")
	fl.BoolVar(&f.save, "save", false, "save the graph to the database")
	fl.StringVar(&f.snapshot, "snapshot", "", "store the graph as a named snapshot")
}

type buildFunc func(ctx context.Context, b *sa.Builder, src dataaccess.DataSource, dataset, idColumn string) (*sa.GPM, error)

func (a *app) gpmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpm",
		Short: "Build generalized proximity matrices",
	}

	var adj gpmFlags
	adjacency := &cobra.Command{
		Use:   "adjacency DATASET",
		Short: "Connect features whose geometries touch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symmetric := a.cfg.GPM.Symmetric && !adj.oneWay
			return a.buildGPM(cmd, args[0], &adj, func(ctx context.Context, b *sa.Builder, src dataaccess.DataSource, dataset, idColumn string) (*sa.GPM, error) {
				return b.BuildAdjacency(ctx, src, dataset, idColumn, symmetric)
			})
		},
	}
	adj.bindBuild(adjacency)
	adj.bindOutputs(adjacency)
	adjacency.Flags().BoolVar(&adj.oneWay, "one-way", false, "only create edges from the lower to the higher feature id")

	var dist gpmFlags
	var maxDistance float64
	distance := &cobra.Command{
		Use:   "distance DATASET",
		Short: "Connect features within a distance of each other",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.buildGPM(cmd, args[0], &dist, func(ctx context.Context, b *sa.Builder, src dataaccess.DataSource, dataset, idColumn string) (*sa.GPM, error) {
				return b.BuildDistance(ctx, src, dataset, idColumn, maxDistance)
			})
		},
	}
	dist.bindBuild(distance)
	dist.bindOutputs(distance)
	distance.Flags().Float64Var(&maxDistance, "max", 0, "maximum distance between related features")
	_ = distance.MarkFlagRequired("max")

	var imp gpmFlags
	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Read a GAL or GWT weights file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gpm, err := sa.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			// GAL files carry no distances to weigh.
			if imp.weights == "" && gpm.Graph.Metadata().FindEdgeProperty(sa.DistanceAttr) < 0 {
				imp.weights = "none"
			}
			return a.finishGPM(cmd, gpm, &imp)
		},
	}
	imp.bindOutputs(importCmd)

	cmd.AddCommand(adjacency, distance, importCmd)
	return cmd
}

func (a *app) builder(f *gpmFlags) *sa.Builder {
	opts := []sa.BuilderOption{
		sa.WithRelater(geometry.Planar{Tolerance: a.cfg.GPM.Tolerance}),
		sa.WithLogger(a.logger),
	}
	if f.geom != "" {
		opts = append(opts, sa.WithGeometryColumn(f.geom))
	}
	if len(f.attrs) > 0 {
		opts = append(opts, sa.WithAttributes(f.attrs...))
	}
	if f.name != "" {
		opts = append(opts, sa.WithGraphName(f.name))
	}
	return sa.NewBuilder(opts...)
}

func (a *app) buildGPM(cmd *cobra.Command, dataset string, f *gpmFlags, build buildFunc) error {
	ctx := cmd.Context()
	src, err := a.openSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	gpm, err := build(ctx, a.builder(f), src, dataset, f.id)
	if err != nil {
		return err
	}
	return a.finishGPMWith(cmd, gpm, f, src)
}

func (a *app) finishGPM(cmd *cobra.Command, gpm *sa.GPM, f *gpmFlags) error {
	if !f.save {
		return a.finishGPMWith(cmd, gpm, f, nil)
	}
	src, err := a.openSource(cmd.Context())
	if err != nil {
		return err
	}
	defer src.Close()
	return a.finishGPMWith(cmd, gpm, f, src)
}

// finishGPMWith weighs gpm and writes every requested output. src is only
// used when saving.
func (a *app) finishGPMWith(cmd *cobra.Command, gpm *sa.GPM, f *gpmFlags, src dataaccess.DataSource) error {
	ctx := cmd.Context()
	name := f.weights
	if name == "" {
		name = a.cfg.GPM.Weights
	}
	ws, err := sa.ParseWeightStrategy(name, f.normalize)
	if err != nil {
		return err
	}
	if err := ws.Apply(ctx, gpm); err != nil {
		return fmt.Errorf("applying %s weights: %w", ws.Name(), err)
	}

	g := gpm.Graph
	p := newPrinter(cmd.OutOrStdout())
	p.title("%s", gpm)
	pairs := [][2]string{
		{"graph", g.Metadata().Name()},
		{"vertices", humanize.Comma(int64(g.VertexCount()))},
		{"edges", humanize.Comma(int64(g.EdgeCount()))},
		{"weights", ws.Name()},
	}

	if f.gal != "" {
		if err := sa.ExportFile(f.gal, gpm); err != nil {
			return err
		}
		pairs = append(pairs, [2]string{"gal", f.gal})
	}
	if f.gwt != "" {
		if err := sa.ExportFile(f.gwt, gpm); err != nil {
			return err
		}
		pairs = append(pairs, [2]string{"gwt", f.gwt})
	}
	if f.save {
		md, err := database.SaveGraph(ctx, src, g, a.tableOptions()...)
		if err != nil {
			return err
		}
		pairs = append(pairs, [2]string{"saved", fmt.Sprintf("graph %d (%s)", md.ID(), md.EdgeTable())})
	}
	if f.snapshot != "" {
		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		info, err := store.Save(ctx, f.snapshot, g)
		if err != nil {
			return err
		}
		pairs = append(pairs, [2]string{"snapshot", fmt.Sprintf("%s (%s)", info.Name, humanize.Bytes(uint64(info.Bytes)))})
	}
	p.kv(pairs...)
	a.logger.Debug("gpm written", slog.String("graph", g.Metadata().Name()), slog.Int("edges", g.EdgeCount()))
	return nil
}
