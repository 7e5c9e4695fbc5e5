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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/graph/database"
	"github.com/AleutianAI/AleutianGraph/services/sa"
)

func (a *app) statsCmd() *cobra.Command {
	var (
		f            gpmFlags
		attr         string
		maxDistance  float64
		permutations int
		seed         uint64
	)
	cmd := &cobra.Command{
		Use:   "stats DATASET",
		Short: "Local and global spatial autocorrelation of one attribute",
		Long: `stats builds a proximity matrix over DATASET (adjacency, or distance
when --max is given), weighs it, and computes the local mean, Moran
indexes with a permutation significance test, Getis-Ord G and G*, and
the Moran box map of the attribute, then tests each local Moran index
by conditional permutation and writes the LISA and Moran maps.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dataset := args[0]
			f.attrs = []string{attr}

			src, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer src.Close()

			b := a.builder(&f)
			var gpm *sa.GPM
			if cmd.Flags().Changed("max") {
				gpm, err = b.BuildDistance(ctx, src, dataset, f.id, maxDistance)
			} else {
				gpm, err = b.BuildAdjacency(ctx, src, dataset, f.id, true)
			}
			if err != nil {
				return err
			}
			weights := f.weights
			if weights == "" {
				weights = a.cfg.GPM.Weights
			}
			ws, err := sa.ParseWeightStrategy(weights, true)
			if err != nil {
				return err
			}
			if err := ws.Apply(ctx, gpm); err != nil {
				return err
			}

			idx := gpm.Graph.Metadata().FindVertexProperty(attr)
			mean, err := sa.FirstMoment(gpm, idx)
			if err != nil {
				return err
			}
			variance, err := sa.SecondMoment(gpm, idx, mean)
			if err != nil {
				return err
			}
			if err := sa.LocalMean(ctx, gpm, idx); err != nil {
				return err
			}
			if err := sa.ZAndWZ(ctx, gpm, idx); err != nil {
				return err
			}
			localMoran, err := sa.MoranIndex(ctx, gpm)
			if err != nil {
				return err
			}
			moran, err := sa.GlobalMoran(gpm, idx, mean, variance)
			if err != nil {
				return err
			}
			if permutations == 0 {
				permutations = a.cfg.GPM.Permutations
			}
			pValue, err := sa.GlobalMoranSignificance(gpm, idx, permutations, moran, seed)
			if err != nil {
				return err
			}
			if err := sa.GStatistics(ctx, gpm, idx); err != nil {
				return err
			}
			if err := sa.BoxMap(ctx, gpm, 0); err != nil {
				return err
			}
			if err := sa.LisaSignificance(ctx, gpm, permutations, seed); err != nil {
				return err
			}
			if err := sa.LISAMap(ctx, gpm); err != nil {
				return err
			}
			if err := sa.MoranMap(ctx, gpm); err != nil {
				return err
			}

			quadrants, err := classCounts(gpm, sa.BoxMapAttr)
			if err != nil {
				return err
			}
			clusters, err := classCounts(gpm, sa.MoranMapAttr)
			if err != nil {
				return err
			}
			significant := gpm.Graph.VertexCount() - clusters[0]
			p := newPrinter(cmd.OutOrStdout())
			p.title("%s: %s", gpm, attr)
			pairs := [][2]string{
				{"mean", fmtFloat(mean)},
				{"variance", fmtFloat(variance)},
				{"moran", fmtFloat(moran)},
				{"mean local moran", fmtFloat(localMoran)},
				{"p-value", fmt.Sprintf("%s (%d permutations)", fmtFloat(pValue), permutations)},
				{"high-high", strconv.Itoa(quadrants[sa.BoxHighHigh])},
				{"low-low", strconv.Itoa(quadrants[sa.BoxLowLow])},
				{"high-low", strconv.Itoa(quadrants[sa.BoxHighLow])},
				{"low-high", strconv.Itoa(quadrants[sa.BoxLowHigh])},
				{"significant", fmt.Sprintf("%d (hh %d, ll %d, hl %d, lh %d)", significant,
					clusters[sa.BoxHighHigh], clusters[sa.BoxLowLow], clusters[sa.BoxHighLow], clusters[sa.BoxLowHigh])},
			}
			if f.save {
				md, err := database.SaveGraph(ctx, src, gpm.Graph, a.tableOptions()...)
				if err != nil {
					return err
				}
				pairs = append(pairs, [2]string{"saved", fmt.Sprintf("graph %d (%s)", md.ID(), md.VertexTable())})
			}
			p.kv(pairs...)
			return nil
		},
	}
	f.bindSource(cmd)
	fl := cmd.Flags()
	fl.StringVar(&attr, "attr", "", "numeric attribute to analyse")
	fl.Float64Var(&maxDistance, "max", 0, "use a distance matrix with this limit instead of adjacency")
	fl.StringVar(&f.weights, "weights", "", "weight strategy (default from config)")
	fl.IntVar(&permutations, "permutations", 0, "permutations for the significance test (default from config)")
	fl.Uint64Var(&seed, "seed", 1, "random seed for the significance test")
	fl.BoolVar(&f.save, "save", false, "save the graph with its statistics to the database")
	_ = cmd.MarkFlagRequired("attr")
	return cmd
}

// classCounts tallies the int32 vertex property prop.
func classCounts(gpm *sa.GPM, prop string) (map[int32]int, error) {
	idx := gpm.Graph.Metadata().FindVertexProperty(prop)
	counts := make(map[int32]int)
	for v := range gpm.Graph.Vertices() {
		val, err := v.Attribute(idx)
		if err != nil {
			return nil, err
		}
		q, _ := val.Int32()
		counts[q]++
	}
	return counts, nil
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
