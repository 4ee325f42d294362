// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startgcode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/strata/lib/settings"
)

// Build returns the complete start G-code for a job: generated setup
// commands, the user's start_gcode verbatim, then generated commands
// that wait for temperatures and reset motion modes. extrudersUsed[i]
// reports whether extruder i prints anything in this job.
func Build(table settings.Table, extrudersUsed []bool) string {
	userGCode := table.Resolve(settings.KeyStartGCode)
	builder := newSequence(userGCode)

	bedTemperature := settings.FloatOr(table, settings.KeyBedTemperature, 0)
	heatedBed := settings.Bool(table, settings.KeyHasHeatedBed)

	builder.add("G21", "set units to millimeters")
	builder.add("M107", "fan off")
	if heatedBed && bedTemperature > 0 {
		builder.add("M140 S"+formatTemperature(bedTemperature), "start heating the bed")
	}

	used := heatedExtruders(table, extrudersUsed)
	for _, extruder := range used {
		builder.add(fmt.Sprintf("M104 T%d S%s", extruder.index, formatTemperature(extruder.temperature)),
			fmt.Sprintf("start heating T%d", extruder.index))
	}

	if settings.Bool(table, settings.KeyHeatBeforeHoming) {
		for _, extruder := range used {
			builder.add(fmt.Sprintf("M109 T%d S%s", extruder.index, formatTemperature(extruder.temperature)),
				fmt.Sprintf("wait for T%d", extruder.index))
		}
	}

	// Start code that waits on the hotend has historically also
	// implied waiting on the bed.
	bedWaited := false
	if bedTemperature > 0 && strings.Contains(userGCode, "M109") {
		builder.add("M190 S"+formatTemperature(bedTemperature), "wait for bed temperature to be reached")
		bedWaited = true
	}

	first, anyUsed := firstUsed(extrudersUsed)
	if anyUsed {
		builder.add(fmt.Sprintf("T%d", first), fmt.Sprintf("switch to extruder %d", first+1))
	}

	builder.user()

	if bedTemperature > 0 && !bedWaited && !strings.Contains(userGCode, "M190") {
		builder.add("M190 S"+formatTemperature(bedTemperature), "wait for bed temperature to be reached")
	}
	for _, extruder := range used {
		builder.add(fmt.Sprintf("M109 T%d S%s", extruder.index, formatTemperature(extruder.temperature)),
			fmt.Sprintf("wait for T%d", extruder.index))
	}
	if anyUsed {
		builder.add(fmt.Sprintf("T%d", first), fmt.Sprintf("switch to extruder %d", first+1))
	}
	builder.add("G90", "use absolute coordinates")
	builder.add("G92 E0", "reset the expected extruder position")
	builder.add("M82", "use absolute distance for extrusion")

	return EscapeNewlines(builder.String())
}

// EscapeNewlines replaces line breaks with the two-character sequence
// `\n`. Carriage returns are dropped.
func EscapeNewlines(gcode string) string {
	gcode = strings.ReplaceAll(gcode, "\r", "")
	return strings.ReplaceAll(gcode, "\n", `\n`)
}

type heatedExtruder struct {
	index       int
	temperature float64
}

// heatedExtruders lists used extruders with a non-zero target
// temperature, in index order.
func heatedExtruders(table settings.Table, extrudersUsed []bool) []heatedExtruder {
	var result []heatedExtruder
	for index, used := range extrudersUsed {
		if !used {
			continue
		}
		temperature := settings.ExtruderTemperature(table, index)
		if temperature == 0 {
			continue
		}
		result = append(result, heatedExtruder{index: index, temperature: temperature})
	}
	return result
}

func firstUsed(extrudersUsed []bool) (int, bool) {
	for index, used := range extrudersUsed {
		if used {
			return index, true
		}
	}
	return 0, false
}

func formatTemperature(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// sequence accumulates output lines, suppressing generated commands
// whose command word starts any user line. Leading indentation on user
// lines is ignored.
type sequence struct {
	userGCode string
	userLines []string
	lines     []string
}

func newSequence(userGCode string) *sequence {
	return &sequence{
		userGCode: userGCode,
		userLines: strings.Split(userGCode, "\n"),
	}
}

func (s *sequence) add(command, comment string) {
	word, _, _ := strings.Cut(command, " ")
	for _, line := range s.userLines {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), word) {
			return
		}
	}
	s.lines = append(s.lines, command+" ; "+comment)
}

func (s *sequence) user() {
	if s.userGCode != "" {
		s.lines = append(s.lines, s.userGCode)
	}
}

func (s *sequence) String() string {
	return strings.Join(s.lines, "\n")
}
