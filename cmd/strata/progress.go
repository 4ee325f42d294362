// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/strata/lib/engine"
)

// progressPrinter renders engine progress. On a terminal it redraws a
// single status line; elsewhere it prints each distinct update once.
type progressPrinter struct {
	out         io.Writer
	interactive bool
	quiet       bool

	// width bounds each rendered line in cells. Zero means unbounded.
	width int

	percentStyle lipgloss.Style
	textStyle    lipgloss.Style

	last    string
	pending bool
}

func newProgressPrinter(out io.Writer, quiet bool) *progressPrinter {
	renderer := lipgloss.NewRenderer(out)
	printer := &progressPrinter{
		out:         out,
		interactive: isTerminal(out),
		quiet:       quiet,
	}
	if printer.interactive {
		printer.width = terminalWidth(out)
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}
	printer.percentStyle = renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	printer.textStyle = renderer.NewStyle().Faint(true)
	return printer
}

// Report is an engine.ProgressSink.
func (p *progressPrinter) Report(progress engine.Progress) {
	if p.quiet {
		return
	}
	line := p.render(progress)
	if line == p.last {
		return
	}
	p.last = line

	if p.interactive {
		fmt.Fprintf(p.out, "\r\x1b[2K%s", line)
		p.pending = true
		return
	}
	fmt.Fprintln(p.out, line)
}

// Finish terminates a redrawn status line.
func (p *progressPrinter) Finish() {
	if p.pending {
		fmt.Fprintln(p.out)
		p.pending = false
	}
}

func (p *progressPrinter) render(progress engine.Progress) string {
	line := p.textStyle.Render(progress.Text)
	if progress.Percent != nil {
		line = p.percentStyle.Render(fmt.Sprintf("%3.0f%%", *progress.Percent)) + " " + line
	}
	// The last cell stays empty so the cursor never wraps.
	if p.width > 1 && ansi.StringWidth(line) >= p.width {
		line = ansi.Truncate(line, p.width-1, "…")
	}
	return line
}

func terminalWidth(w io.Writer) int {
	file, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil {
		return 0
	}
	return width
}
