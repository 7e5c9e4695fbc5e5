// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package geometry

import (
	"errors"
	"math"
)

// ErrEmptyGeometry is returned when a geometry has no coordinates.
var ErrEmptyGeometry = errors.New("empty geometry")

// Kind identifies the concrete geometry type.
type Kind int

const (
	// KindPoint is a single coordinate.
	KindPoint Kind = iota + 1

	// KindPolygon is a closed single-ring polygon without holes.
	KindPolygon
)

// String returns the WKT tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "POINT"
	case KindPolygon:
		return "POLYGON"
	default:
		return "UNKNOWN"
	}
}

// Geometry is implemented by every supported geometry type.
type Geometry interface {
	// Kind returns the concrete geometry type.
	Kind() Kind

	// SRID returns the spatial reference id, zero when unknown.
	SRID() int

	// Envelope returns the bounding box.
	Envelope() Envelope

	// Centroid returns the center of mass.
	Centroid() Point

	// WKT renders the geometry as (E)WKT.
	WKT() string
}

// Point is a single planar coordinate.
type Point struct {
	X          float64
	Y          float64
	SpatialRef int
}

// NewPoint creates a point.
func NewPoint(x, y float64, srid int) Point {
	return Point{X: x, Y: y, SpatialRef: srid}
}

// Kind implements Geometry.
func (p Point) Kind() Kind { return KindPoint }

// SRID implements Geometry.
func (p Point) SRID() int { return p.SpatialRef }

// Envelope implements Geometry.
func (p Point) Envelope() Envelope {
	return Envelope{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
}

// Centroid implements Geometry.
func (p Point) Centroid() Point { return p }

// WKT implements Geometry.
func (p Point) WKT() string { return FormatWKT(p) }

// DistanceTo returns the euclidean distance between two points.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Polygon is a closed ring of coordinates. The first and last coordinate
// are equal; NewPolygon closes the ring when the caller did not.
type Polygon struct {
	Shell      []Point
	SpatialRef int
}

// NewPolygon creates a polygon from a ring of at least three distinct points.
func NewPolygon(shell []Point, srid int) (*Polygon, error) {
	if len(shell) < 3 {
		return nil, ErrEmptyGeometry
	}
	ring := make([]Point, len(shell), len(shell)+1)
	copy(ring, shell)
	first, last := ring[0], ring[len(ring)-1]
	if first.X != last.X || first.Y != last.Y {
		ring = append(ring, first)
	}
	for i := range ring {
		ring[i].SpatialRef = srid
	}
	return &Polygon{Shell: ring, SpatialRef: srid}, nil
}

// NewBox creates a rectangular polygon covering env.
func NewBox(env Envelope, srid int) *Polygon {
	poly, _ := NewPolygon([]Point{
		{X: env.MinX, Y: env.MinY},
		{X: env.MaxX, Y: env.MinY},
		{X: env.MaxX, Y: env.MaxY},
		{X: env.MinX, Y: env.MaxY},
	}, srid)
	return poly
}

// Kind implements Geometry.
func (p *Polygon) Kind() Kind { return KindPolygon }

// SRID implements Geometry.
func (p *Polygon) SRID() int { return p.SpatialRef }

// Envelope implements Geometry.
func (p *Polygon) Envelope() Envelope {
	env := NewEmptyEnvelope()
	for _, pt := range p.Shell {
		env.ExpandXY(pt.X, pt.Y)
	}
	return env
}

// Area returns the unsigned area of the ring.
func (p *Polygon) Area() float64 {
	return math.Abs(p.signedArea())
}

func (p *Polygon) signedArea() float64 {
	var sum float64
	for i := 0; i+1 < len(p.Shell); i++ {
		a, b := p.Shell[i], p.Shell[i+1]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// Centroid implements Geometry. Degenerate rings fall back to the
// envelope center.
func (p *Polygon) Centroid() Point {
	area := p.signedArea()
	if area == 0 {
		cx, cy := p.Envelope().Center()
		return Point{X: cx, Y: cy, SpatialRef: p.SpatialRef}
	}
	var cx, cy float64
	for i := 0; i+1 < len(p.Shell); i++ {
		a, b := p.Shell[i], p.Shell[i+1]
		cross := a.X*b.Y - b.X*a.Y
		cx += (a.X + b.X) * cross
		cy += (a.Y + b.Y) * cross
	}
	return Point{X: cx / (6 * area), Y: cy / (6 * area), SpatialRef: p.SpatialRef}
}

// WKT implements Geometry.
func (p *Polygon) WKT() string { return FormatWKT(p) }

// segments returns the ring edges as coordinate pairs.
func (p *Polygon) segments() [][2]Point {
	segs := make([][2]Point, 0, len(p.Shell))
	for i := 0; i+1 < len(p.Shell); i++ {
		segs = append(segs, [2]Point{p.Shell[i], p.Shell[i+1]})
	}
	return segs
}
