// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slicejob

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/bureau-foundation/strata/lib/export"
	"github.com/bureau-foundation/strata/lib/tailscan"
	"github.com/bureau-foundation/strata/lib/version"
)

// internalNames are config lines that only the engine needs.
var internalNames = map[string]bool{
	export.NativeMergeRule: true,
	export.NativeMeshArgs:  true,
}

// TrailerLines renders the comment block appended to finished G-code:
// a header carrying sentinel, a timestamp, and every config line
// except the merge rule and mesh arguments.
func TrailerLines(product, sentinel string, now time.Time, configLines []string) []string {
	lines := []string{
		fmt.Sprintf("; %s Version %s Build %s : %s", product, version.Version, version.Build(), sentinel),
		"; Date " + now.Format("2006-01-02") + " Time " + now.Format("15:04"),
	}
	for _, line := range configLines {
		if name, _, ok := export.ParseLine(line); ok && internalNames[name] {
			continue
		}
		lines = append(lines, "; "+line)
	}
	return lines
}

// appendTrailer adds the settings trailer to path unless the trailer
// sentinel is already in its tail.
func (r *Runner) appendTrailer(path string, configLines []string) error {
	present, err := tailscan.FileContains(path, r.options.TrailerSentinel, r.options.PageSize)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("opening output for trailer: %w", err)
	}
	terminated, err := endsWithNewline(file)
	if err != nil {
		file.Close()
		return err
	}

	writer := bufio.NewWriter(file)
	if !terminated {
		writer.WriteByte('\n')
	}
	lines := TrailerLines(r.options.Product, r.options.TrailerSentinel, r.options.Clock.Now(), configLines)
	for _, line := range lines {
		writer.WriteString(line)
		writer.WriteByte('\n')
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("writing trailer: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing output after trailer: %w", err)
	}
	return nil
}

func endsWithNewline(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat output: %w", err)
	}
	if info.Size() == 0 {
		return true, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("reading last byte of output: %w", err)
	}
	return last[0] == '\n', nil
}
