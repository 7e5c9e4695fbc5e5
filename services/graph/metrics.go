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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("aleutian.graph")
	meter  = otel.Meter("aleutian.graph")
)

// Metrics for schema operations.
var (
	schemaOpLatency metric.Float64Histogram
	schemaOpTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		schemaOpLatency, err = meter.Float64Histogram(
			"graph_schema_op_duration_seconds",
			metric.WithDescription("Duration of graph schema operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		schemaOpTotal, err = meter.Int64Counter(
			"graph_schema_op_total",
			metric.WithDescription("Total number of graph schema operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordSchemaOp records metrics for a schema operation.
func recordSchemaOp(ctx context.Context, op string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", success),
	)
	schemaOpLatency.Record(ctx, duration.Seconds(), attrs)
	schemaOpTotal.Add(ctx, 1, attrs)
}

// startSchemaSpan creates a span for a schema operation.
func startSchemaSpan(ctx context.Context, op string, g *Graph) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Graph."+op,
		trace.WithAttributes(
			attribute.String("graph.name", g.md.Name()),
			attribute.Int("graph.vertex_count", len(g.vertices)),
			attribute.Int("graph.edge_count", len(g.edges)),
		),
	)
}
