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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gpmBuildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geograph_gpm_build_total",
		Help: "Total GPM builds by strategy and result",
	}, []string{"strategy", "result"})

	gpmBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geograph_gpm_build_duration_seconds",
		Help:    "GPM build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"strategy"})

	gpmBuildEdges = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geograph_gpm_build_edges",
		Help:    "Edges created per GPM build",
		Buckets: []float64{0, 10, 100, 1000, 10000, 100000},
	})

	gpmPairsTested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geograph_gpm_pairs_tested_total",
		Help: "Feature pairs passed to the geometry predicate after envelope filtering",
	}, []string{"strategy"})
)
