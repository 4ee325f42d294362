// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/strata/lib/config"
	"github.com/bureau-foundation/strata/lib/engine"
	"github.com/bureau-foundation/strata/lib/mesh"
	"github.com/bureau-foundation/strata/lib/process"
	"github.com/bureau-foundation/strata/lib/slicejob"
	"github.com/bureau-foundation/strata/lib/testutil"
)

// fakeEngineScript writes a minimal complete G-code file to the path
// following -o.
const fakeEngineScript = `out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift ;;
  esac
  shift
done
echo "=> Processing triangulated mesh"
echo "Slicing layer 1 of 2"
printf 'G28\nG1 X10 Y10 E1\n; Slicing completed successfully\n' > "$out"
`

type workspace struct {
	directory  string
	configPath string
	scenePath  string
	layerPath  string
}

func newWorkspace(t *testing.T, engineScript string) workspace {
	t.Helper()

	directory := t.TempDir()
	enginePath := testutil.WriteExecutable(t, directory, "fake-engine", engineScript)
	testutil.WriteFile(t, directory, "part.stl", "solid part\nendsolid part\n")

	configYAML := `paths:
  root: ` + directory + `
  cache: ` + filepath.Join(directory, "cache") + `
  scratch: ` + filepath.Join(directory, "scratch") + `
  bin: ` + filepath.Join(directory, "bin") + `
engine:
  path: ` + enginePath + `
cache:
  manifest_compression: lz4
`
	scene := `[
  // the only part
  {"mesh": "part.stl", "material": 0}
]`
	layer := `{
  "layer_height": 0.2,
  "temperature": 210,
  "extruder_count": 1,
}`

	return workspace{
		directory:  directory,
		configPath: testutil.WriteFile(t, directory, "strata.yaml", configYAML),
		scenePath:  testutil.WriteFile(t, directory, "plate.jsonc", scene),
		layerPath:  testutil.WriteFile(t, directory, "machine.jsonc", layer),
	}
}

func (w workspace) slice(t *testing.T, extra ...string) (string, error) {
	t.Helper()
	args := append([]string{
		"slice",
		"--config", w.configPath,
		"--scene", w.scenePath,
		"--settings", w.layerPath,
		"--quiet",
	}, extra...)
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return strings.TrimSpace(stdout.String()), err
}

func TestSliceEndToEnd(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, fakeEngineScript)
	metricsPath := filepath.Join(w.directory, "strata.prom")

	output, err := w.slice(t, "--set", "layer_height=0.3")
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if filepath.Dir(output) != filepath.Join(w.directory, "cache") || filepath.Ext(output) != ".gcode" {
		t.Errorf("output path = %q, want a .gcode file in the cache", output)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	for _, want := range []string{"; Slicing completed successfully", "GCode settings used", "; layerThickness = 0.3"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("output lacks %q:\n%s", want, data)
		}
	}

	again, err := w.slice(t, "--set", "layer_height=0.3", "--metrics-textfile", metricsPath)
	if err != nil {
		t.Fatalf("second slice: %v", err)
	}
	if again != output {
		t.Errorf("second slice output = %q, want %q", again, output)
	}
	metrics, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	if !strings.Contains(string(metrics), "strata_slice_cache_hits_total 1") {
		t.Errorf("metrics do not record the cache hit:\n%s", metrics)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"cache", "list", "--config", w.configPath}, &stdout, &stderr); err != nil {
		t.Fatalf("cache list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("cache list printed %d lines, want header and one job:\n%s", len(lines), stdout.String())
	}
	if !strings.Contains(lines[1], "T0") || !strings.Contains(lines[1], output) {
		t.Errorf("cache list row = %q", lines[1])
	}
}

func TestSliceExplicitOutput(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, fakeEngineScript)
	target := filepath.Join(w.directory, "out", "plate.gcode")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatal(err)
	}

	for _, layerHeight := range []string{"0.2", "0.3"} {
		output, err := w.slice(t, "--output", target, "--set", "layer_height="+layerHeight)
		if err != nil {
			t.Fatalf("slice at %s: %v", layerHeight, err)
		}
		if output != target {
			t.Errorf("output = %q, want %q", output, target)
		}
		data, err := os.ReadFile(target)
		if err != nil {
			t.Fatalf("reading output: %v", err)
		}
		if want := "; layerThickness = " + layerHeight + "\n"; !strings.Contains(string(data), want) {
			t.Errorf("output sliced at %s lacks %q:\n%s", layerHeight, want, data)
		}
	}
}

func TestSliceEngineFailure(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, "echo 'fatal: no printable geometry' >&2\nexit 3\n")
	_, err := w.slice(t)
	if err == nil {
		t.Fatal("slice succeeded with a failing engine")
	}
	if code := process.Code(err); code != 1 {
		t.Errorf("exit code = %d, want 1 (%v)", code, err)
	}
}

func TestCacheRemove(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, fakeEngineScript)
	output, err := w.slice(t)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}

	cfg, err := config.LoadFile(w.configPath)
	if err != nil {
		t.Fatal(err)
	}
	options, err := slicejob.OptionsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	manifests, errs := options.Manifests.List()
	if len(manifests) != 1 || len(errs) != 0 {
		t.Fatalf("List = %v, %v; want one manifest", manifests, errs)
	}

	var stdout, stderr bytes.Buffer
	prefix := manifests[0].Key[:10]
	if err := run([]string{"cache", "remove", prefix, "--config", w.configPath}, &stdout, &stderr); err != nil {
		t.Fatalf("cache remove: %v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("output still present after remove: %v", err)
	}
	if manifests, _ := options.Manifests.List(); len(manifests) != 0 {
		t.Errorf("manifests after remove = %v", manifests)
	}

	err = run([]string{"cache", "remove", prefix, "--config", w.configPath}, &stdout, &stderr)
	if err == nil {
		t.Error("removing an unknown key succeeded")
	}
}

func TestRunUsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"resize"}},
		{"slice without scene", []string{"slice"}},
		{"slice unknown flag", []string{"slice", "--scene", "x.jsonc", "--speed", "9"}},
		{"slice bad log level", []string{"slice", "--scene", "x.jsonc", "--log-level", "loud"}},
		{"cache without subcommand", []string{"cache"}},
		{"cache unknown subcommand", []string{"cache", "prune"}},
		{"cache remove without key", []string{"cache", "remove"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			err := run(test.args, &stdout, &stderr)
			if code := process.Code(err); code != 2 {
				t.Errorf("exit code = %d, want 2 (err %v)", code, err)
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"version"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), "strata ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestParseScene(t *testing.T) {
	t.Parallel()

	scene, err := parseScene([]byte(`[
		{"mesh": "a.stl", "material": 2, "role": "support", "generated_support": true,
		 "matrix": [1,0,0,0, 0,1,0,0, 0,0,1,0, 5,6,7,1]},
		{"mesh": "/abs/b.stl"}, // trailing comma next
	]`), "/plates")
	if err != nil {
		t.Fatalf("parseScene: %v", err)
	}
	if len(scene) != 2 {
		t.Fatalf("got %d items, want 2", len(scene))
	}

	first := scene[0]
	if first.MeshPath != "/plates/a.stl" || first.MaterialIndex != 2 || first.Role != mesh.Support || !first.GeneratedSupport {
		t.Errorf("first item = %+v", first)
	}
	if got := first.World.TransformPoint(mesh.Vector3{}); got != (mesh.Vector3{X: 5, Y: 6, Z: 7}) {
		t.Errorf("first item origin = %v, want (5,6,7)", got)
	}

	second := scene[1]
	if second.MeshPath != "/abs/b.stl" || second.MaterialIndex != -1 || second.Role != mesh.Solid {
		t.Errorf("second item = %+v", second)
	}
	if second.World != mesh.Identity() {
		t.Errorf("second item World = %v, want identity", second.World)
	}

	for name, input := range map[string]string{
		"missing mesh":  `[{"material": 1}]`,
		"short matrix":  `[{"mesh": "a.stl", "matrix": [1, 0, 0]}]`,
		"unknown role":  `[{"mesh": "a.stl", "role": "brim"}]`,
		"unknown field": `[{"mesh": "a.stl", "colour": "red"}]`,
		"not an array":  `{"mesh": "a.stl"}`,
	} {
		if _, err := parseScene([]byte(input), "/plates"); err == nil {
			t.Errorf("%s: parseScene accepted %s", name, input)
		}
	}
}

func TestLoadSettingsOverrides(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	layer := testutil.WriteFile(t, directory, "machine.jsonc", `{"temperature": 200, "layer_height": 0.2}`)

	table, err := loadSettings([]string{layer}, []string{"temperature=215", "start_gcode=G28 X0"})
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if got := table.Resolve("temperature"); got != "215" {
		t.Errorf("temperature = %q, want 215", got)
	}
	if got := table.Resolve("start_gcode"); got != "G28 X0" {
		t.Errorf("start_gcode = %q", got)
	}
	if got := table.Resolve("layer_height"); got != "0.2" {
		t.Errorf("layer_height = %q, want the layer value", got)
	}

	if _, err := loadSettings(nil, []string{"temperature"}); process.Code(err) != 2 {
		t.Errorf("malformed override error = %v, want a usage error", err)
	}
}

func TestProgressPrinterPlain(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	printer := newProgressPrinter(&buffer, false)
	half := 50.0
	printer.Report(engine.Progress{Text: "Slicing..."})
	printer.Report(engine.Progress{Text: "Slicing..."})
	printer.Report(engine.Progress{Text: "Generating toolpaths...", Percent: &half})
	printer.Finish()

	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("printed %d lines, want 2:\n%s", len(lines), buffer.String())
	}
	if !strings.Contains(lines[1], "50%") || !strings.Contains(lines[1], "Generating toolpaths...") {
		t.Errorf("percent line = %q", lines[1])
	}

	buffer.Reset()
	quiet := newProgressPrinter(&buffer, true)
	quiet.Report(engine.Progress{Text: "Slicing..."})
	if buffer.Len() != 0 {
		t.Errorf("quiet printer wrote %q", buffer.String())
	}
}

func TestProgressPrinterTruncatesToWidth(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	printer := newProgressPrinter(&buffer, false)
	printer.width = 16
	done := 100.0
	printer.Report(engine.Progress{Text: "Exporting G-code to the output file", Percent: &done})

	line := strings.TrimSuffix(buffer.String(), "\n")
	if width := ansi.StringWidth(line); width != 15 {
		t.Errorf("line %q is %d cells wide, want 15", line, width)
	}
	if !strings.HasPrefix(line, "100% Exporting") || !strings.HasSuffix(line, "…") {
		t.Errorf("truncated line = %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Errorf("plain output carries escape sequences: %q", line)
	}
}
