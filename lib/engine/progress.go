// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"regexp"
	"strconv"
	"strings"
)

// Progress is one parsed line of engine output.
type Progress struct {
	Text string
	// Percent is nil when the line carries no completion figure.
	Percent *float64
}

const (
	noiseToken      = "=>"
	savingFileLabel = "Saving intermediate file"
)

var (
	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	ofPattern      = regexp.MustCompile(`(\d+)\s+of\s+(\d+)`)
)

// ParseProgress converts an engine output line to a Progress. Lines
// that are blank after removing the engine's "=>" markers report
// false. Lines naming a .gcode file are replaced with a generic
// message so that scratch paths never reach the user.
func ParseProgress(line string) (Progress, bool) {
	text := strings.TrimSpace(strings.ReplaceAll(line, noiseToken, ""))
	if text == "" {
		return Progress{}, false
	}

	progress := Progress{Percent: parsePercent(text)}
	if strings.Contains(text, ".gcode") {
		progress.Text = savingFileLabel + "..."
	} else {
		progress.Text = text + "..."
	}
	return progress, true
}

func parsePercent(text string) *float64 {
	if match := percentPattern.FindStringSubmatch(text); match != nil {
		value, err := strconv.ParseFloat(match[1], 64)
		if err == nil {
			return &value
		}
	}
	if match := ofPattern.FindStringSubmatch(text); match != nil {
		done, doneErr := strconv.ParseFloat(match[1], 64)
		total, totalErr := strconv.ParseFloat(match[2], 64)
		if doneErr == nil && totalErr == nil && total > 0 {
			value := done / total * 100
			return &value
		}
	}
	return nil
}
