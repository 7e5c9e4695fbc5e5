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
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette shared with the rest of the Aleutian tooling.
var (
	colorTealBright = lipgloss.Color("#2CD7C7")
	colorTealDeep   = lipgloss.Color("#16858E")
	colorSlate      = lipgloss.Color("#2C4A54")
	colorError      = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Title lipgloss.Style
	Key   lipgloss.Style
	Muted lipgloss.Style
	Error lipgloss.Style
	Box   lipgloss.Style
}{
	Title: lipgloss.NewStyle().Bold(true).Foreground(colorTealBright),
	Key:   lipgloss.NewStyle().Foreground(colorTealDeep),
	Muted: lipgloss.NewStyle().Foreground(colorSlate),
	Error: lipgloss.NewStyle().Bold(true).Foreground(colorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorTealDeep).
		Padding(0, 1),
}

// printer writes command output, styled only when w is a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, styled: isTerminal(w)}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) title(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(styles.Title, fmt.Sprintf(format, args...)))
}

// kv prints aligned key/value lines.
func (p *printer) kv(pairs ...[2]string) {
	width := 0
	for _, kv := range pairs {
		width = max(width, len(kv[0]))
	}
	for _, kv := range pairs {
		key := kv[0] + ":" + strings.Repeat(" ", width-len(kv[0]))
		fmt.Fprintf(p.w, "  %s %s\n", p.render(styles.Key, key), kv[1])
	}
}

// table prints rows under header with columns padded to their widest cell.
func (p *printer) table(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], len(c))
		}
	}
	line := func(cells []string) string {
		padded := make([]string, len(cells))
		for i, c := range cells {
			padded[i] = c + strings.Repeat(" ", widths[i]-len(c))
		}
		return strings.TrimRight(strings.Join(padded, "  "), " ")
	}
	fmt.Fprintln(p.w, p.render(styles.Key, line(header)))
	for _, r := range rows {
		fmt.Fprintln(p.w, line(r))
	}
}

func (p *printer) muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(styles.Muted, fmt.Sprintf(format, args...)))
}

func (p *printer) fail(err error) {
	msg := "error: " + err.Error()
	if p.styled {
		msg = styles.Box.BorderForeground(colorError).Render(styles.Error.Render(msg))
	}
	fmt.Fprintln(p.w, msg)
}
