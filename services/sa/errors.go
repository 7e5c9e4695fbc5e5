// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sa builds generalized proximity matrices (GPMs) from spatial
// datasets and computes spatial statistics over them.
//
// A GPM is a graph whose vertices are dataset features and whose edges
// connect features related by adjacency (touching geometries) or by
// distance. Edge weights and statistics are stored as graph attributes so
// the result can be exported (GAL/GWT), reduced (Kruskal) or persisted like
// any other graph.
//
// # Thread Safety
//
// Builders may be reused sequentially. A GPM and its graph are NOT safe for
// concurrent use.
package sa

import (
	"errors"
	"fmt"
)

// Property names written by builders and statistics.
const (
	CoordsAttr     = "coords"
	DistanceAttr   = "distance"
	WeightAttr     = "weight"
	LocalMeanAttr  = "local_mean"
	NeighboursAttr = "neighbours"
	ZAttr          = "std_dev_z"
	WZAttr         = "local_mean_wz"
	MoranAttr      = "moran_index"
	GAttr          = "g"
	GStarAttr      = "g_star"
	BoxMapAttr     = "box_map"

	LisaSignificanceAttr = "lisa_significance"
	LisaMapAttr          = "lisa_map"
	MoranMapAttr         = "moran_map"
)

// Build stages reported by BuildError.
const (
	StageValidate = "validate"
	StageRead     = "read"
	StageVertices = "vertices"
	StageEdges    = "edges"
)

var (
	// ErrColumnNotFound is returned when a dataset lacks a requested column.
	ErrColumnNotFound = errors.New("column not found")

	// ErrMalformedGeometry is returned for null or unusable feature geometry.
	ErrMalformedGeometry = errors.New("malformed geometry")

	// ErrInvalidDistance is returned for negative or NaN distance limits.
	ErrInvalidDistance = errors.New("invalid distance")

	// ErrMissingAttribute is returned when a statistic needs a property the
	// graph does not have.
	ErrMissingAttribute = errors.New("missing attribute")

	// ErrFormat is returned for malformed GAL/GWT input.
	ErrFormat = errors.New("malformed weights file")
)

// BuildError describes why a GPM build failed.
type BuildError struct {
	// Stage is one of the Stage constants.
	Stage string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gpm %s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("gpm %s: %s: %v", e.Stage, e.Message, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BuildError) Unwrap() error {
	return e.Err
}

func buildErr(stage string, err error, format string, args ...any) *BuildError {
	return &BuildError{Stage: stage, Message: fmt.Sprintf(format, args...), Err: err}
}
