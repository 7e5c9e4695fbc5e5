// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package geometry provides the small planar geometry model consumed by the
// graph and spatial analysis packages.
//
// Only points and single-ring polygons are modeled. Spatial predicates are
// reached through the Relater interface so that callers can substitute a
// different geometry engine without touching graph construction code.
package geometry

import (
	"fmt"
	"math"
)

// Envelope is an axis-aligned bounding box.
//
// The zero value is a degenerate box at the origin. Use NewEmptyEnvelope for
// a box that can be grown with Expand.
type Envelope struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// NewEmptyEnvelope returns an inverted envelope that any Expand call replaces.
func NewEmptyEnvelope() Envelope {
	return Envelope{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// IsValid returns true if the envelope encloses at least one point.
func (e Envelope) IsValid() bool {
	return e.MinX <= e.MaxX && e.MinY <= e.MaxY
}

// Width returns the extent along the X axis.
func (e Envelope) Width() float64 {
	return e.MaxX - e.MinX
}

// Height returns the extent along the Y axis.
func (e Envelope) Height() float64 {
	return e.MaxY - e.MinY
}

// Center returns the midpoint of the envelope.
func (e Envelope) Center() (float64, float64) {
	return (e.MinX + e.MaxX) / 2, (e.MinY + e.MaxY) / 2
}

// ExpandXY grows the envelope to include the given coordinate.
func (e *Envelope) ExpandXY(x, y float64) {
	e.MinX = math.Min(e.MinX, x)
	e.MinY = math.Min(e.MinY, y)
	e.MaxX = math.Max(e.MaxX, x)
	e.MaxY = math.Max(e.MaxY, y)
}

// Expand grows the envelope to include other.
func (e *Envelope) Expand(other Envelope) {
	if !other.IsValid() {
		return
	}
	e.ExpandXY(other.MinX, other.MinY)
	e.ExpandXY(other.MaxX, other.MaxY)
}

// Intersects returns true if the two envelopes share at least one point.
func (e Envelope) Intersects(other Envelope) bool {
	if !e.IsValid() || !other.IsValid() {
		return false
	}
	return e.MinX <= other.MaxX && other.MinX <= e.MaxX &&
		e.MinY <= other.MaxY && other.MinY <= e.MaxY
}

// Buffer returns a copy grown by d on every side.
func (e Envelope) Buffer(d float64) Envelope {
	return Envelope{MinX: e.MinX - d, MinY: e.MinY - d, MaxX: e.MaxX + d, MaxY: e.MaxY + d}
}

// Distance returns the minimum distance between two envelopes, zero when
// they intersect.
func (e Envelope) Distance(other Envelope) float64 {
	dx := math.Max(0, math.Max(other.MinX-e.MaxX, e.MinX-other.MaxX))
	dy := math.Max(0, math.Max(other.MinY-e.MaxY, e.MinY-other.MaxY))
	return math.Hypot(dx, dy)
}

// String implements fmt.Stringer.
func (e Envelope) String() string {
	return fmt.Sprintf("[%g %g, %g %g]", e.MinX, e.MinY, e.MaxX, e.MaxY)
}
