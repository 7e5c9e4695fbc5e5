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
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidWKT is returned when a WKT string cannot be parsed.
var ErrInvalidWKT = errors.New("invalid WKT")

// FormatWKT renders g as WKT, prefixed with "SRID=n;" when the SRID is set.
func FormatWKT(g Geometry) string {
	var b strings.Builder
	if g.SRID() != 0 {
		fmt.Fprintf(&b, "SRID=%d;", g.SRID())
	}
	switch v := g.(type) {
	case Point:
		b.WriteString("POINT (")
		writeCoord(&b, v)
		b.WriteString(")")
	case *Polygon:
		b.WriteString("POLYGON ((")
		for i, pt := range v.Shell {
			if i > 0 {
				b.WriteString(", ")
			}
			writeCoord(&b, pt)
		}
		b.WriteString("))")
	}
	return b.String()
}

func writeCoord(b *strings.Builder, p Point) {
	b.WriteString(strconv.FormatFloat(p.X, 'g', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(p.Y, 'g', -1, 64))
}

// ParseWKT parses POINT and POLYGON (single ring) WKT, with an optional
// EWKT "SRID=n;" prefix.
func ParseWKT(s string) (Geometry, error) {
	s = strings.TrimSpace(s)
	srid := 0
	if strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		semi := strings.IndexByte(s, ';')
		if semi < 0 {
			return nil, fmt.Errorf("%w: missing ';' after SRID", ErrInvalidWKT)
		}
		n, err := strconv.Atoi(s[5:semi])
		if err != nil {
			return nil, fmt.Errorf("%w: srid: %v", ErrInvalidWKT, err)
		}
		srid = n
		s = strings.TrimSpace(s[semi+1:])
	}

	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWKT, s)
	}
	tag := strings.ToUpper(strings.TrimSpace(s[:open]))
	body := s[open+1 : len(s)-1]

	switch tag {
	case "POINT":
		pts, err := parseCoords(body, srid)
		if err != nil {
			return nil, err
		}
		if len(pts) != 1 {
			return nil, fmt.Errorf("%w: point needs one coordinate", ErrInvalidWKT)
		}
		return pts[0], nil
	case "POLYGON":
		body = strings.TrimSpace(body)
		if !strings.HasPrefix(body, "(") || !strings.HasSuffix(body, ")") {
			return nil, fmt.Errorf("%w: polygon ring", ErrInvalidWKT)
		}
		if strings.Count(body, "(") > 1 {
			return nil, fmt.Errorf("%w: polygon holes are not supported", ErrInvalidWKT)
		}
		pts, err := parseCoords(body[1:len(body)-1], srid)
		if err != nil {
			return nil, err
		}
		poly, err := NewPolygon(pts, srid)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWKT, err)
		}
		return poly, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidWKT, tag)
	}
}

func parseCoords(body string, srid int) ([]Point, error) {
	parts := strings.Split(body, ",")
	pts := make([]Point, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: coordinate %q", ErrInvalidWKT, part)
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWKT, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWKT, err)
		}
		pts = append(pts, Point{X: x, Y: y, SpatialRef: srid})
	}
	return pts, nil
}
