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
	"fmt"
	"math"
)

// DefaultTolerance is the coordinate tolerance used by Planar when none is set.
const DefaultTolerance = 1e-9

// Relater evaluates spatial predicates between two geometries.
//
// Graph builders depend on this interface rather than on a concrete engine.
type Relater interface {
	// Touches reports whether the boundaries of a and b meet while their
	// interiors do not overlap.
	Touches(a, b Geometry) (bool, error)

	// Distance returns the minimum planar distance between a and b.
	Distance(a, b Geometry) (float64, error)
}

// Planar is a Relater for points and single-ring polygons in a cartesian
// plane.
//
// Polygon interiors are detected by vertex and centroid containment plus
// proper segment crossings. This is exact for convex cells such as grids and
// administrative polygons that share whole edges; it is not a full DE-9IM
// implementation.
type Planar struct {
	// Tolerance is the distance under which two coordinates are equal.
	Tolerance float64
}

// NewPlanar returns a Planar relater with DefaultTolerance.
func NewPlanar() Planar {
	return Planar{Tolerance: DefaultTolerance}
}

func (r Planar) tol() float64 {
	if r.Tolerance <= 0 {
		return DefaultTolerance
	}
	return r.Tolerance
}

// Touches implements Relater.
func (r Planar) Touches(a, b Geometry) (bool, error) {
	if a == nil || b == nil {
		return false, ErrEmptyGeometry
	}
	tol := r.tol()
	if !a.Envelope().Buffer(tol).Intersects(b.Envelope()) {
		return false, nil
	}

	switch ga := a.(type) {
	case Point:
		switch gb := b.(type) {
		case Point:
			return ga.DistanceTo(gb) <= tol, nil
		case *Polygon:
			return onBoundary(ga, gb, tol), nil
		}
	case *Polygon:
		switch gb := b.(type) {
		case Point:
			return onBoundary(gb, ga, tol), nil
		case *Polygon:
			return polygonsTouch(ga, gb, tol), nil
		}
	}
	return false, fmt.Errorf("touches: unsupported geometry pair %s/%s", a.Kind(), b.Kind())
}

// Distance implements Relater.
func (r Planar) Distance(a, b Geometry) (float64, error) {
	if a == nil || b == nil {
		return 0, ErrEmptyGeometry
	}
	tol := r.tol()

	switch ga := a.(type) {
	case Point:
		switch gb := b.(type) {
		case Point:
			return ga.DistanceTo(gb), nil
		case *Polygon:
			return pointPolygonDistance(ga, gb, tol), nil
		}
	case *Polygon:
		switch gb := b.(type) {
		case Point:
			return pointPolygonDistance(gb, ga, tol), nil
		case *Polygon:
			return polygonDistance(ga, gb, tol), nil
		}
	}
	return 0, fmt.Errorf("distance: unsupported geometry pair %s/%s", a.Kind(), b.Kind())
}

func polygonsTouch(a, b *Polygon, tol float64) bool {
	meet := false
	for _, sa := range a.segments() {
		for _, sb := range b.segments() {
			if properCross(sa[0], sa[1], sb[0], sb[1], tol) {
				return false
			}
			if !meet && segmentDistance(sa[0], sa[1], sb[0], sb[1]) <= tol {
				meet = true
			}
		}
	}
	if !meet {
		return false
	}
	return !interiorsOverlap(a, b, tol)
}

func interiorsOverlap(a, b *Polygon, tol float64) bool {
	for _, pt := range a.Shell {
		if strictlyInside(pt, b, tol) {
			return true
		}
	}
	for _, pt := range b.Shell {
		if strictlyInside(pt, a, tol) {
			return true
		}
	}
	return strictlyInside(a.Centroid(), b, tol) || strictlyInside(b.Centroid(), a, tol)
}

func polygonDistance(a, b *Polygon, tol float64) float64 {
	for _, pt := range a.Shell {
		if strictlyInside(pt, b, tol) {
			return 0
		}
	}
	for _, pt := range b.Shell {
		if strictlyInside(pt, a, tol) {
			return 0
		}
	}
	best := math.Inf(1)
	for _, sa := range a.segments() {
		for _, sb := range b.segments() {
			best = math.Min(best, segmentDistance(sa[0], sa[1], sb[0], sb[1]))
		}
	}
	if best <= tol {
		return 0
	}
	return best
}

func pointPolygonDistance(p Point, poly *Polygon, tol float64) float64 {
	if strictlyInside(p, poly, tol) {
		return 0
	}
	best := math.Inf(1)
	for _, s := range poly.segments() {
		best = math.Min(best, pointSegmentDistance(p, s[0], s[1]))
	}
	if best <= tol {
		return 0
	}
	return best
}

func onBoundary(p Point, poly *Polygon, tol float64) bool {
	for _, s := range poly.segments() {
		if pointSegmentDistance(p, s[0], s[1]) <= tol {
			return true
		}
	}
	return false
}

// strictlyInside uses ray casting and treats boundary points as outside.
func strictlyInside(p Point, poly *Polygon, tol float64) bool {
	if onBoundary(p, poly, tol) {
		return false
	}
	inside := false
	ring := poly.Shell
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

func pointSegmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return p.DistanceTo(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

func segmentDistance(a, b, c, d Point) float64 {
	if properCross(a, b, c, d, 0) {
		return 0
	}
	return math.Min(
		math.Min(pointSegmentDistance(a, c, d), pointSegmentDistance(b, c, d)),
		math.Min(pointSegmentDistance(c, a, b), pointSegmentDistance(d, a, b)),
	)
}

func orientation(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// properCross reports whether segments ab and cd cross at a single point
// interior to both.
func properCross(a, b, c, d Point, tol float64) bool {
	o1 := orientation(a, b, c)
	o2 := orientation(a, b, d)
	o3 := orientation(c, d, a)
	o4 := orientation(c, d, b)
	eps := tol * tol
	if math.Abs(o1) <= eps || math.Abs(o2) <= eps || math.Abs(o3) <= eps || math.Abs(o4) <= eps {
		return false
	}
	return (o1 > 0) != (o2 > 0) && (o3 > 0) != (o4 > 0)
}
