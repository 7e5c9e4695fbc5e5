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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/graph"
)

// GAL and GWT are the GeoDa neighbour list formats. Both start with a
// header line, either the bare vertex count "n" or "0 n dataset idColumn".
// GAL then lists, per vertex, "id count" followed by a line with the
// neighbour ids. GWT lists one "from to distance" line per edge.

const (
	galGraphName = "gpm_gal_graph"
	gwtGraphName = "gpm_gwt_graph"
)

// FileInfo is the parsed header of a GAL or GWT file.
type FileInfo struct {
	Vertices int
	DataSet  string
	IDColumn string
}

func writeHeader(w *bufio.Writer, gpm *GPM) {
	n := gpm.Graph.VertexCount()
	if gpm.DataSet == "" {
		fmt.Fprintf(w, "%d\n", n)
		return
	}
	fmt.Fprintf(w, "0 %d %s %s\n", n, gpm.DataSet, gpm.IDColumn)
}

func parseHeader(line string) (FileInfo, error) {
	f := strings.Fields(line)
	switch len(f) {
	case 1:
		n, err := strconv.Atoi(f[0])
		if err != nil || n < 0 {
			return FileInfo{}, fmt.Errorf("%w: header %q", ErrFormat, line)
		}
		return FileInfo{Vertices: n}, nil
	case 4:
		n, err := strconv.Atoi(f[1])
		if err != nil || n < 0 {
			return FileInfo{}, fmt.Errorf("%w: header %q", ErrFormat, line)
		}
		return FileInfo{Vertices: n, DataSet: f[2], IDColumn: f[3]}, nil
	default:
		return FileInfo{}, fmt.Errorf("%w: header %q", ErrFormat, line)
	}
}

// lineReader yields non-blank lines with their 1-based line numbers.
type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{sc: bufio.NewScanner(r)}
}

func (lr *lineReader) next() (string, bool, error) {
	for lr.sc.Scan() {
		lr.line++
		if s := strings.TrimSpace(lr.sc.Text()); s != "" {
			return s, true, nil
		}
	}
	return "", false, lr.sc.Err()
}

func (lr *lineReader) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrFormat, lr.line, fmt.Sprintf(format, args...))
}

func ints(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// ReadFileInfo parses the header of a GAL or GWT stream.
func ReadFileInfo(r io.Reader) (FileInfo, error) {
	lr := newLineReader(r)
	line, ok, err := lr.next()
	if err != nil {
		return FileInfo{}, err
	}
	if !ok {
		return FileInfo{}, fmt.Errorf("%w: empty file", ErrFormat)
	}
	return parseHeader(line)
}

// ExportGAL writes gpm's neighbour lists in GAL format, one entry per
// vertex in id order.
func ExportGAL(w io.Writer, gpm *GPM) error {
	bw := bufio.NewWriter(w)
	writeHeader(bw, gpm)
	g := gpm.Graph
	for v := range g.Vertices() {
		ns := neighbours(g, v)
		fmt.Fprintf(bw, "%d %d\n", v.ID(), len(ns))
		ids := make([]string, len(ns))
		for i, n := range ns {
			ids[i] = strconv.Itoa(n.vertex.ID())
		}
		fmt.Fprintln(bw, strings.Join(ids, " "))
	}
	return bw.Flush()
}

// ExportGWT writes gpm's edges in GWT format with their distance
// attribute.
func ExportGWT(w io.Writer, gpm *GPM) error {
	g := gpm.Graph
	distIdx := g.Metadata().FindEdgeProperty(DistanceAttr)
	if distIdx < 0 {
		return fmt.Errorf("%w: edge property %s", ErrMissingAttribute, DistanceAttr)
	}
	bw := bufio.NewWriter(w)
	writeHeader(bw, gpm)
	for v := range g.Vertices() {
		for _, n := range neighbours(g, v) {
			d, err := floatAttr(n.edge.Attribute(distIdx))
			if err != nil {
				return fmt.Errorf("edge %d: %w", n.edge.ID(), err)
			}
			fmt.Fprintf(bw, "%d %d %3.7f\n", v.ID(), n.vertex.ID(), d)
		}
	}
	return bw.Flush()
}

func newImportedGPM(name string, info FileInfo, withDistance bool) (*GPM, error) {
	md := graph.NewMemoryMetadata(graph.EdgeList)
	md.SetName(name)
	if info.DataSet != "" {
		md.SetDescription("proximity matrix of " + info.DataSet)
	}
	if withDistance {
		if err := md.AppendEdgeProperty(graph.Property{Name: DistanceAttr, Type: graph.TypeDouble}); err != nil {
			return nil, err
		}
	}
	return &GPM{
		Graph:    graph.NewDirected(md),
		DataSet:  info.DataSet,
		IDColumn: info.IDColumn,
		Strategy: Imported,
	}, nil
}

func ensureImportedVertex(g *graph.Graph, id int) error {
	if g.GetVertex(id) != nil {
		return nil
	}
	_, err := g.AddVertex(id)
	return err
}

// ImportGAL reads a GAL stream into a directed GPM. Edge ids are assigned
// sequentially from 1 in file order.
func ImportGAL(ctx context.Context, r io.Reader) (*GPM, error) {
	lr := newLineReader(r)
	line, ok, err := lr.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: empty file", ErrFormat)
	}
	info, err := parseHeader(line)
	if err != nil {
		return nil, err
	}
	gpm, err := newImportedGPM(galGraphName, info, false)
	if err != nil {
		return nil, err
	}
	g := gpm.Graph

	edgeID := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, ok, err := lr.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		head, err := ints(strings.Fields(line))
		if err != nil || len(head) != 2 || head[1] < 0 {
			return nil, lr.errorf("expected \"id count\", got %q", line)
		}
		from, count := head[0], head[1]
		if err := ensureImportedVertex(g, from); err != nil {
			return nil, err
		}
		var to []int
		if count > 0 {
			line, ok, err := lr.next()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, lr.errorf("missing neighbour list of %d", from)
			}
			if to, err = ints(strings.Fields(line)); err != nil {
				return nil, lr.errorf("bad neighbour list %q", line)
			}
		}
		if len(to) != count {
			return nil, lr.errorf("vertex %d declares %d neighbours, found %d", from, count, len(to))
		}
		for _, id := range to {
			if err := ensureImportedVertex(g, id); err != nil {
				return nil, err
			}
			if _, err := g.AddEdge(edgeID, from, id); err != nil {
				return nil, err
			}
			edgeID++
		}
	}
	if info.Vertices != g.VertexCount() {
		return nil, fmt.Errorf("%w: header declares %d vertices, found %d", ErrFormat, info.Vertices, g.VertexCount())
	}
	return gpm, nil
}

// ImportGWT reads a GWT stream into a directed GPM whose edges carry the
// "distance" attribute. Edge ids are assigned sequentially from 1 in file
// order.
func ImportGWT(ctx context.Context, r io.Reader) (*GPM, error) {
	lr := newLineReader(r)
	line, ok, err := lr.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: empty file", ErrFormat)
	}
	info, err := parseHeader(line)
	if err != nil {
		return nil, err
	}
	gpm, err := newImportedGPM(gwtGraphName, info, true)
	if err != nil {
		return nil, err
	}
	g := gpm.Graph
	size := g.Metadata().EdgePropertySize()

	edgeID := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, ok, err := lr.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		f := strings.Fields(line)
		if len(f) != 3 {
			return nil, lr.errorf("expected \"from to distance\", got %q", line)
		}
		ends, err := ints(f[:2])
		if err != nil {
			return nil, lr.errorf("bad vertex id in %q", line)
		}
		d, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return nil, lr.errorf("bad distance in %q", line)
		}
		for _, id := range ends {
			if err := ensureImportedVertex(g, id); err != nil {
				return nil, err
			}
		}
		e, err := g.AddEdge(edgeID, ends[0], ends[1])
		if err != nil {
			return nil, err
		}
		e.SetAttributeVecSize(size)
		if err := e.AddAttribute(0, graph.DoubleValue(d)); err != nil {
			return nil, err
		}
		edgeID++
	}
	return gpm, nil
}

// ExportFile writes gpm to path, choosing GAL or GWT by the file extension.
func ExportFile(path string, gpm *GPM) (err error) {
	export, err := exporterFor(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return export(f, gpm)
}

// ImportFile reads a GAL or GWT file, chosen by its extension.
func ImportFile(ctx context.Context, path string) (*GPM, error) {
	var imp func(context.Context, io.Reader) (*GPM, error)
	switch ext(path) {
	case ".gal":
		imp = ImportGAL
	case ".gwt":
		imp = ImportGWT
	default:
		return nil, fmt.Errorf("%w: unsupported extension of %s", ErrFormat, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return imp(ctx, f)
}

func exporterFor(path string) (func(io.Writer, *GPM) error, error) {
	switch ext(path) {
	case ".gal":
		return ExportGAL, nil
	case ".gwt":
		return ExportGWT, nil
	}
	return nil, fmt.Errorf("%w: unsupported extension of %s", ErrFormat, path)
}

func ext(path string) string { return strings.ToLower(filepath.Ext(path)) }
