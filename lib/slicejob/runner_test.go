// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slicejob

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/strata/lib/clock"
	"github.com/bureau-foundation/strata/lib/config"
	"github.com/bureau-foundation/strata/lib/engine"
	"github.com/bureau-foundation/strata/lib/export"
	"github.com/bureau-foundation/strata/lib/manifest"
	"github.com/bureau-foundation/strata/lib/metrics"
	"github.com/bureau-foundation/strata/lib/partition"
	"github.com/bureau-foundation/strata/lib/settings"
	"github.com/bureau-foundation/strata/lib/testutil"
	"github.com/bureau-foundation/strata/lib/version"
)

const (
	completedSentinel = "; Slicing completed successfully"
	trailerSentinel   = "GCode settings used"
)

var sliceTime = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

type runFunc func(ctx context.Context, invocation engine.Invocation, progress engine.ProgressSink) (bool, error)

// fakeEngine counts runs and by default writes a complete output.
type fakeEngine struct {
	mu    sync.Mutex
	calls int
	run   runFunc
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Run(ctx context.Context, invocation engine.Invocation, progress engine.ProgressSink) (bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.run != nil {
		return f.run(ctx, invocation, progress)
	}
	return writeOutput(invocation.OutputPath)
}

func (f *fakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func writeOutput(path string) (bool, error) {
	content := "G28\nG1 X10 Y10 E1\n" + completedSentinel + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// resolveOnly is a Table that cannot enumerate its keys.
type resolveOnly map[string]string

func (r resolveOnly) Resolve(key string) string { return r[key] }

type fixture struct {
	runner    *Runner
	engine    *fakeEngine
	manifests *manifest.Store
	metrics   *metrics.Metrics
	clock     *clock.FakeClock
	cacheDir  string
	request   Request
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	directory := t.TempDir()
	cacheDir := filepath.Join(directory, "cache")
	meshPath := testutil.WriteFile(t, directory, "part.stl", "solid part\nendsolid part\n")

	registry := export.NewRegistry()
	registry.Register(settings.KeyLayerHeight, "layerThickness", export.Millimeters)
	registry.Register(settings.KeyStartGCode, "startCode", export.StartGCode)

	f := &fixture{
		engine:    &fakeEngine{},
		manifests: manifest.NewStore(filepath.Join(cacheDir, ManifestDirectory), manifest.CompressionZstd),
		metrics:   metrics.New(),
		clock:     clock.Fake(sliceTime),
		cacheDir:  cacheDir,
		request: Request{
			Table: settings.Map{
				settings.KeyLayerHeight: "0.2",
				settings.KeyTemperature: "210",
				settings.KeyStartGCode:  "G28",
			},
			Scene: partition.StaticScene{
				{MeshPath: meshPath, MaterialIndex: 0},
			},
		},
	}

	runner, err := New(Options{
		CacheDir:          cacheDir,
		ScratchDir:        filepath.Join(directory, "scratch"),
		CompletedSentinel: completedSentinel,
		TrailerSentinel:   trailerSentinel,
		Product:           "Strata",
		Engine:            f.engine,
		Registry:          registry,
		Manifests:         f.manifests,
		Metrics:           f.metrics,
		Clock:             f.clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.runner = runner
	return f
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestSliceWritesConfigAndTrailer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var progress []engine.Progress
	f.engine.run = func(ctx context.Context, invocation engine.Invocation, sink engine.ProgressSink) (bool, error) {
		sink(engine.Progress{Text: "Slicing..."})
		return writeOutput(invocation.OutputPath)
	}
	f.request.Progress = func(p engine.Progress) { progress = append(progress, p) }

	result := f.runner.Slice(context.Background(), f.request)

	if !result.Succeeded || result.State != StateSucceeded {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.CacheHit {
		t.Error("first slice reported a cache hit")
	}
	if want := filepath.Join(f.cacheDir, result.Job.Key.Short()+".gcode"); result.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", result.OutputPath, want)
	}
	if !reflect.DeepEqual(result.ExtrudersUsed, []bool{true}) {
		t.Errorf("ExtrudersUsed = %v, want [true]", result.ExtrudersUsed)
	}
	if len(progress) != 1 || progress[0].Text != "Slicing..." {
		t.Errorf("progress = %v, want one Slicing... update", progress)
	}

	wantConfig := filepath.Join(f.cacheDir,
		"config-"+result.Job.SettingsKey.Short()+"-"+result.Job.Key.Short()+".ini")
	if result.Job.ConfigPath != wantConfig {
		t.Errorf("ConfigPath = %q, want %q", result.Job.ConfigPath, wantConfig)
	}
	config := readLines(t, result.Job.ConfigPath)
	if len(config) != 4 {
		t.Fatalf("config has %d lines, want 4:\n%s", len(config), strings.Join(config, "\n"))
	}
	if config[0] != "layerThickness = 0.2" {
		t.Errorf("config[0] = %q", config[0])
	}
	if config[2] != "booleanOperations = (0)" {
		t.Errorf("config[2] = %q, want merge rule", config[2])
	}
	if !strings.HasPrefix(config[3], "additionalArgsToProcess = -m ") {
		t.Errorf("config[3] = %q, want mesh arguments", config[3])
	}

	output := readLines(t, result.OutputPath)
	want := []string{
		"G28",
		"G1 X10 Y10 E1",
		completedSentinel,
		fmt.Sprintf("; Strata Version %s Build %s : GCode settings used", version.Version, version.Build()),
		"; Date 2026-03-04 Time 05:06",
		"; " + config[0],
		"; " + config[1],
	}
	if !reflect.DeepEqual(output, want) {
		t.Errorf("output:\n%s\nwant:\n%s", strings.Join(output, "\n"), strings.Join(want, "\n"))
	}

	recorded, err := f.manifests.Read(result.Job.Key.String())
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	if recorded.OutputPath != result.OutputPath || recorded.MeshCount != 1 || recorded.MergeRule != "(0)" {
		t.Errorf("manifest = %+v", recorded)
	}
	if recorded.Engine != "fake" || !recorded.CompletedAt.Equal(sliceTime) {
		t.Errorf("manifest engine/time = %q/%v", recorded.Engine, recorded.CompletedAt)
	}
	info, err := os.Stat(result.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if recorded.OutputSize != info.Size() {
		t.Errorf("manifest OutputSize = %d, want %d", recorded.OutputSize, info.Size())
	}
}

func TestSliceCacheHitSkipsEngine(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first := f.runner.Slice(context.Background(), f.request)
	if !first.Succeeded {
		t.Fatalf("first slice failed: %v", first.Err)
	}
	before, err := os.ReadFile(first.OutputPath)
	if err != nil {
		t.Fatal(err)
	}

	second := f.runner.Slice(context.Background(), f.request)
	if !second.Succeeded || !second.CacheHit {
		t.Fatalf("second = %+v, want cache hit", second)
	}
	if calls := f.engine.Calls(); calls != 1 {
		t.Errorf("engine ran %d times, want 1", calls)
	}
	if second.Job.Key != first.Job.Key || second.Job.ID == first.Job.ID {
		t.Errorf("jobs share key %v/%v, IDs %v/%v", first.Job.Key, second.Job.Key, first.Job.ID, second.Job.ID)
	}
	if !reflect.DeepEqual(second.ExtrudersUsed, []bool{true}) {
		t.Errorf("cache hit ExtrudersUsed = %v, want [true] from manifest", second.ExtrudersUsed)
	}
	after, err := os.ReadFile(first.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Error("cache hit modified the output")
	}

	// A settings change produces a new key and runs the engine.
	f.request.Table = settings.Map{
		settings.KeyLayerHeight: "0.3",
		settings.KeyStartGCode:  "G28",
	}
	third := f.runner.Slice(context.Background(), f.request)
	if !third.Succeeded || third.CacheHit || third.Job.Key == first.Job.Key {
		t.Errorf("third = %+v, want a fresh run under a new key", third)
	}
	if calls := f.engine.Calls(); calls != 2 {
		t.Errorf("engine ran %d times, want 2", calls)
	}
}

func TestSliceValidatedOutputNeverRunsEngine(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.run = func(context.Context, engine.Invocation, engine.ProgressSink) (bool, error) {
		t.Error("engine invoked for an already complete output")
		return false, nil
	}
	job, err := f.runner.plan(f.request)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !job.KeyedOutput {
		t.Fatal("default output path is not keyed")
	}
	testutil.WriteFile(t, filepath.Dir(job.OutputPath), filepath.Base(job.OutputPath),
		"G1 X1\n"+completedSentinel+"\n; trailing comment\n")

	result := f.runner.Slice(context.Background(), f.request)
	if !result.Succeeded || !result.CacheHit || result.OutputPath != job.OutputPath {
		t.Fatalf("result = %+v, want cache hit on %s", result, job.OutputPath)
	}
	if result.ExtrudersUsed != nil {
		t.Errorf("ExtrudersUsed = %v, want nil without a manifest", result.ExtrudersUsed)
	}
	if _, err := os.Stat(result.Job.ConfigPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("config written on a cache hit: %v", err)
	}
}

func TestSliceUnrecordedExplicitOutputReslices(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	output := testutil.WriteFile(t, t.TempDir(), "part.gcode",
		"G1 X1\n"+completedSentinel+"\n")
	f.request.OutputPath = output

	result := f.runner.Slice(context.Background(), f.request)
	if !result.Succeeded || result.CacheHit || result.Job.KeyedOutput {
		t.Fatalf("result = %+v, want a fresh run into the explicit path", result)
	}
	if calls := f.engine.Calls(); calls != 1 {
		t.Errorf("engine ran %d times, want 1", calls)
	}

	again := f.runner.Slice(context.Background(), f.request)
	if !again.Succeeded || !again.CacheHit {
		t.Fatalf("again = %+v, want a cache hit once recorded", again)
	}
	if !reflect.DeepEqual(again.ExtrudersUsed, []bool{true}) {
		t.Errorf("ExtrudersUsed = %v, want [true] from manifest", again.ExtrudersUsed)
	}
	if calls := f.engine.Calls(); calls != 1 {
		t.Errorf("engine ran %d times, want 1", calls)
	}
}

func TestSliceExplicitOutputFollowsSettings(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	output := filepath.Join(t.TempDir(), "part.gcode")
	first := f.request
	first.OutputPath = output
	second := first
	second.Table = settings.Map{
		settings.KeyLayerHeight: "0.3",
		settings.KeyTemperature: "250",
		settings.KeyStartGCode:  "G28",
	}

	steps := []struct {
		name      string
		request   Request
		cacheHit  bool
		calls     int
		wantLayer string
	}{
		{name: "first settings", request: first, calls: 1, wantLayer: "0.2"},
		{name: "changed settings", request: second, calls: 2, wantLayer: "0.3"},
		{name: "first settings again", request: first, calls: 3, wantLayer: "0.2"},
		{name: "unchanged", request: first, cacheHit: true, calls: 3, wantLayer: "0.2"},
	}
	for _, step := range steps {
		result := f.runner.Slice(context.Background(), step.request)
		if !result.Succeeded || result.CacheHit != step.cacheHit {
			t.Fatalf("%s: result = %+v, want success with CacheHit=%v", step.name, result, step.cacheHit)
		}
		if calls := f.engine.Calls(); calls != step.calls {
			t.Errorf("%s: engine ran %d times, want %d", step.name, calls, step.calls)
		}
		data, err := os.ReadFile(output)
		if err != nil {
			t.Fatal(err)
		}
		if want := "; layerThickness = " + step.wantLayer + "\n"; !strings.Contains(string(data), want) {
			t.Errorf("%s: output lacks %q:\n%s", step.name, want, data)
		}
	}
}

func TestSliceRerunsIncompleteOutput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.request.OutputPath = testutil.WriteFile(t, t.TempDir(), "part.gcode", "G1 X1\n")

	result := f.runner.Slice(context.Background(), f.request)
	if !result.Succeeded || result.CacheHit {
		t.Fatalf("result = %+v, want a fresh run", result)
	}
	if calls := f.engine.Calls(); calls != 1 {
		t.Errorf("engine ran %d times, want 1", calls)
	}
}

func TestSliceFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		run  runFunc
	}{
		{
			name: "engine exit failure",
			run: func(context.Context, engine.Invocation, engine.ProgressSink) (bool, error) {
				return false, nil
			},
		},
		{
			name: "engine start error",
			run: func(context.Context, engine.Invocation, engine.ProgressSink) (bool, error) {
				return false, errors.New("starting engine: no such file")
			},
		},
		{
			name: "success without output",
			run: func(context.Context, engine.Invocation, engine.ProgressSink) (bool, error) {
				return true, nil
			},
		},
		{
			name: "engine panic",
			run: func(context.Context, engine.Invocation, engine.ProgressSink) (bool, error) {
				panic("engine exploded")
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.engine.run = test.run
			result := f.runner.Slice(context.Background(), f.request)

			if result.Succeeded || result.State != StateFailed {
				t.Fatalf("result = %+v, want failure", result)
			}
			if result.Err == nil {
				t.Error("failed result carries no error")
			}
			if result.OutputPath == "" {
				t.Error("failed result has no output path")
			}
			if _, err := f.manifests.Read(result.Job.Key.String()); !errors.Is(err, manifest.ErrNotFound) {
				t.Errorf("manifest recorded for a failed job: %v", err)
			}
		})
	}
}

func TestSliceRequiresTable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	result := f.runner.Slice(context.Background(), Request{})
	if result.State != StateFailed || result.Err == nil {
		t.Errorf("result = %+v, want failure", result)
	}
	if calls := f.engine.Calls(); calls != 0 {
		t.Errorf("engine ran %d times, want 0", calls)
	}
}

func TestSliceCancelledBeforeEngine(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := f.runner.Slice(ctx, f.request)
	if result.State != StateCancelled || result.Succeeded {
		t.Fatalf("result = %+v, want cancelled", result)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", result.Err)
	}
	if calls := f.engine.Calls(); calls != 0 {
		t.Errorf("engine ran %d times after cancellation", calls)
	}
}

func TestSliceCancelledDuringEngine(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	started := make(chan struct{})
	f.engine.run = func(ctx context.Context, _ engine.Invocation, _ engine.ProgressSink) (bool, error) {
		close(started)
		<-ctx.Done()
		return false, fmt.Errorf("engine cancelled: %w", context.Cause(ctx))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := f.runner.Start(ctx, f.request)
	testutil.RequireClosed(t, started, 5*time.Second, "engine never started")
	cancel()

	result := testutil.RequireReceive(t, results, 5*time.Second, "no result after cancel")
	if result.State != StateCancelled {
		t.Fatalf("State = %v, want cancelled (err %v)", result.State, result.Err)
	}
	if !reflect.DeepEqual(result.ExtrudersUsed, []bool{true}) {
		t.Errorf("ExtrudersUsed = %v, want partition usage", result.ExtrudersUsed)
	}
	if _, open := <-results; open {
		t.Error("Start channel delivered a second result")
	}
}

func TestSliceSharesConcurrentIdenticalJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.engine.run = func(_ context.Context, invocation engine.Invocation, _ engine.ProgressSink) (bool, error) {
		close(started)
		<-release
		return writeOutput(invocation.OutputPath)
	}

	leader := f.runner.Start(context.Background(), f.request)
	testutil.RequireClosed(t, started, 5*time.Second, "engine never started")

	var followers []<-chan Result
	for range 3 {
		followers = append(followers, f.runner.Start(context.Background(), f.request))
	}
	close(release)

	first := testutil.RequireReceive(t, leader, 5*time.Second)
	if !first.Succeeded {
		t.Fatalf("leader failed: %v", first.Err)
	}
	for index, follower := range followers {
		result := testutil.RequireReceive(t, follower, 5*time.Second)
		if !result.Succeeded || result.OutputPath != first.OutputPath {
			t.Errorf("follower %d = %+v", index, result)
		}
		if result.Job.ID == first.Job.ID {
			t.Errorf("follower %d reported the leader's job ID", index)
		}
	}
	if calls := f.engine.Calls(); calls != 1 {
		t.Errorf("engine ran %d times for identical concurrent jobs, want 1", calls)
	}
}

func TestSliceSerializesDifferentJobsForOneOutput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.engine.run = func(ctx context.Context, invocation engine.Invocation, _ engine.ProgressSink) (bool, error) {
		first := false
		once.Do(func() { first = true })
		if first {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
				return false, context.Cause(ctx)
			}
		}
		return writeOutput(invocation.OutputPath)
	}

	output := filepath.Join(t.TempDir(), "part.gcode")
	coarse := f.request
	coarse.OutputPath = output
	fine := coarse
	fine.Table = settings.Map{
		settings.KeyLayerHeight: "0.1",
		settings.KeyStartGCode:  "G28",
	}

	coarseResults := f.runner.Start(context.Background(), coarse)
	testutil.RequireClosed(t, started, 5*time.Second, "engine never started")
	fineResults := f.runner.Start(context.Background(), fine)
	close(release)

	coarseResult := testutil.RequireReceive(t, coarseResults, 5*time.Second)
	fineResult := testutil.RequireReceive(t, fineResults, 5*time.Second)
	for name, result := range map[string]Result{"coarse": coarseResult, "fine": fineResult} {
		if !result.Succeeded || result.CacheHit || result.OutputPath != output {
			t.Errorf("%s = %+v, want its own successful run into %s", name, result, output)
		}
	}
	if coarseResult.Job.Key == fineResult.Job.Key {
		t.Fatal("different settings produced the same job key")
	}
	if calls := f.engine.Calls(); calls != 2 {
		t.Errorf("engine ran %d times, want 2", calls)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "; layerThickness = 0.1\n") {
		t.Errorf("output does not carry the later job's settings:\n%s", data)
	}
}

func TestSettingsKeyCoversResolvedSettings(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	base := map[string]string{
		settings.KeyLayerHeight:    "0.2",
		settings.KeyTemperature:    "210",
		settings.KeyBedTemperature: "60",
		settings.KeyHasHeatedBed:   "0",
		settings.KeyStartGCode:     "G28",
		settings.KeyExtruderCount:  "2",
	}
	tests := []struct {
		name string
		key  string
		to   string
	}{
		{name: "heated bed", key: settings.KeyHasHeatedBed, to: "1"},
		{name: "heat before homing", key: settings.KeyHeatBeforeHoming, to: "1"},
		{name: "second extruder temperature", key: "temperature1", to: "230"},
		{name: "spiral vase", key: settings.KeySpiralVase, to: "1"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			changed := maps.Clone(base)
			changed[test.key] = test.to

			before, err := f.runner.plan(Request{Table: resolveOnly(base)})
			if err != nil {
				t.Fatalf("plan: %v", err)
			}
			after, err := f.runner.plan(Request{Table: resolveOnly(changed)})
			if err != nil {
				t.Fatalf("plan: %v", err)
			}
			if before.SettingsKey == after.SettingsKey {
				t.Errorf("changing %s did not change the settings key", test.key)
			}
		})
	}
}

func TestSettingsKeyCoversConverterReferences(t *testing.T) {
	t.Parallel()

	registry := export.NewRegistry()
	registry.Register("first_layer_extrusion_width", "firstLayerExtrusionWidth", export.PercentOf("nozzle_diameter"))
	runner, err := New(Options{
		CacheDir:          t.TempDir(),
		CompletedSentinel: completedSentinel,
		TrailerSentinel:   trailerSentinel,
		Engine:            &fakeEngine{},
		Registry:          registry,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	narrow, err := runner.plan(Request{Table: resolveOnly{
		"first_layer_extrusion_width": "150%",
		"nozzle_diameter":             "0.4",
	}})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	wide, err := runner.plan(Request{Table: resolveOnly{
		"first_layer_extrusion_width": "150%",
		"nozzle_diameter":             "0.6",
	}})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if narrow.SettingsKey == wide.SettingsKey {
		t.Error("changing nozzle_diameter did not change the settings key")
	}
}

func TestSliceResolveOnlyTableChangesRerun(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.request.Table = resolveOnly{
		settings.KeyBedTemperature: "60",
		settings.KeyHasHeatedBed:   "0",
		settings.KeyStartGCode:     "G28",
	}
	first := f.runner.Slice(context.Background(), f.request)

	f.request.Table = resolveOnly{
		settings.KeyBedTemperature: "60",
		settings.KeyHasHeatedBed:   "1",
		settings.KeyStartGCode:     "G28",
	}
	second := f.runner.Slice(context.Background(), f.request)

	if !first.Succeeded || !second.Succeeded {
		t.Fatalf("results = %+v / %+v, want both to succeed", first, second)
	}
	if second.CacheHit || second.Job.Key == first.Job.Key {
		t.Errorf("heated bed change reused %s", first.Job.Key.Short())
	}
	if calls := f.engine.Calls(); calls != 2 {
		t.Errorf("engine ran %d times, want 2", calls)
	}
}

func TestSliceWaiterSurvivesLeaderCancellation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	started := make(chan struct{})
	var once sync.Once
	f.engine.run = func(ctx context.Context, invocation engine.Invocation, _ engine.ProgressSink) (bool, error) {
		first := false
		once.Do(func() { first = true })
		if first {
			close(started)
			<-ctx.Done()
			return false, context.Cause(ctx)
		}
		return writeOutput(invocation.OutputPath)
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()
	leader := f.runner.Start(leaderCtx, f.request)
	testutil.RequireClosed(t, started, 5*time.Second, "engine never started")

	waiter := f.runner.Start(context.Background(), f.request)
	cancelLeader()

	if result := testutil.RequireReceive(t, leader, 5*time.Second); result.State != StateCancelled {
		t.Errorf("leader State = %v, want cancelled", result.State)
	}
	result := testutil.RequireReceive(t, waiter, 5*time.Second)
	if !result.Succeeded {
		t.Fatalf("waiter = %+v, want success after retry", result)
	}
	if calls := f.engine.Calls(); calls != 2 {
		t.Errorf("engine ran %d times, want 2", calls)
	}
}

func TestSliceMissingMeshUsesPlaceholder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.request.Scene = partition.StaticScene{
		{MeshPath: filepath.Join(t.TempDir(), "deleted.stl")},
	}
	result := f.runner.Slice(context.Background(), f.request)
	if !result.Succeeded {
		t.Fatalf("slice failed: %v", result.Err)
	}
	if !reflect.DeepEqual(result.ExtrudersUsed, []bool{false}) {
		t.Errorf("ExtrudersUsed = %v, want [false]", result.ExtrudersUsed)
	}
	config := readLines(t, result.Job.ConfigPath)
	if !strings.Contains(strings.Join(config, "\n"), "booleanOperations = (0)") {
		t.Errorf("config lacks placeholder merge rule:\n%s", strings.Join(config, "\n"))
	}
}

func TestSliceTimesEngineWithClock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.run = func(_ context.Context, invocation engine.Invocation, _ engine.ProgressSink) (bool, error) {
		f.clock.Advance(90 * time.Second)
		return writeOutput(invocation.OutputPath)
	}

	result := f.runner.Slice(context.Background(), f.request)
	if !result.Succeeded {
		t.Fatalf("slice failed: %v", result.Err)
	}
	recorded, err := f.manifests.Read(result.Job.Key.String())
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	if recorded.Duration != 90*time.Second {
		t.Errorf("manifest Duration = %v, want 1m30s", recorded.Duration)
	}
	if want := sliceTime.Add(90 * time.Second); !recorded.CompletedAt.Equal(want) {
		t.Errorf("manifest CompletedAt = %v, want %v", recorded.CompletedAt, want)
	}
}

func TestSliceMetrics(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.runner.Slice(context.Background(), f.request)
	f.runner.Slice(context.Background(), f.request)

	path := filepath.Join(t.TempDir(), "strata.prom")
	if err := f.metrics.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`strata_slice_jobs_total{outcome="succeeded"} 2`,
		`strata_slice_cache_hits_total 1`,
		`strata_engine_duration_seconds_count{engine="fake",status="success"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics missing %q:\n%s", want, data)
		}
	}
}

func TestNewValidatesOptions(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Fatal("New accepted empty options")
	} else {
		for _, want := range []string{"cache directory", "completed sentinel", "trailer sentinel", "engine"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error %q does not mention %s", err, want)
			}
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Paths.Cache = "/srv/strata/cache"
	cfg.Cache.ManifestCompression = config.CompressionLZ4

	options, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if options.CacheDir != "/srv/strata/cache" || options.CompletedSentinel != cfg.Cache.CompletedSentinel {
		t.Errorf("options = %+v", options)
	}
	if got, want := options.Manifests.Directory(), "/srv/strata/cache/manifests"; got != want {
		t.Errorf("manifest directory = %q, want %q", got, want)
	}

	cfg.Cache.ManifestCompression = "brotli"
	if _, err := OptionsFromConfig(cfg); err == nil {
		t.Error("OptionsFromConfig accepted an unknown compression")
	}
}
