// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slicejob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/strata/lib/digest"
	"github.com/bureau-foundation/strata/lib/engine"
	"github.com/bureau-foundation/strata/lib/export"
	"github.com/bureau-foundation/strata/lib/filelock"
	"github.com/bureau-foundation/strata/lib/manifest"
	"github.com/bureau-foundation/strata/lib/partition"
	"github.com/bureau-foundation/strata/lib/settings"
	"github.com/bureau-foundation/strata/lib/tailscan"
)

// Runner executes slice jobs. It is safe for concurrent use.
type Runner struct {
	options Options
	keys    []string
	flight  singleflight.Group
	logger  *slog.Logger
}

// New validates options and returns a Runner.
func New(options Options) (*Runner, error) {
	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("slice runner: %w", err)
	}
	options.applyDefaults()

	fields := options.Registry.Fields()
	keys := make([]string, len(fields))
	for index, field := range fields {
		keys[index] = field.Key
	}
	return &Runner{
		options: options,
		keys:    keys,
		logger:  options.Logger,
	}, nil
}

// Start runs Slice on a new goroutine. The channel receives exactly
// one Result and is then closed.
func (r *Runner) Start(ctx context.Context, request Request) <-chan Result {
	results := make(chan Result, 1)
	go func() {
		defer close(results)
		results <- r.Slice(ctx, request)
	}()
	return results
}

// Slice runs one job to a terminal state. A caller whose job key and
// output path match a Slice call already in flight waits for that
// execution instead of starting its own; if that execution is
// cancelled by its own caller, the waiter retries under ctx. Jobs with
// different keys for the same output path run one after another under
// the output lock.
func (r *Runner) Slice(ctx context.Context, request Request) Result {
	job, err := r.plan(request)
	if err != nil {
		result := failed(job, err)
		r.finish(result)
		return result
	}

	for {
		var leader atomic.Bool
		shared := r.flight.DoChan(flightKey(job), func() (any, error) {
			leader.Store(true)
			return r.execute(ctx, job, request), nil
		})

		var outcome singleflight.Result
		select {
		case outcome = <-shared:
		case <-ctx.Done():
			// The leader's execution observes ctx itself; wait for it
			// so nothing is left writing after Slice returns.
			if !leader.Load() {
				result := cancelled(job, context.Cause(ctx))
				r.finish(result)
				return result
			}
			outcome = <-shared
		}

		result := outcome.Val.(Result)
		if !leader.Load() {
			if result.State == StateCancelled && ctx.Err() == nil {
				r.logger.Debug("shared slice cancelled by its caller, retrying",
					"job", job.ID.String(),
					"key", job.Key.Short(),
				)
				continue
			}
			r.options.Metrics.ObserveShared()
			result.Job = job
		}
		r.finish(result)
		return result
	}
}

// plan computes the keys and paths of a request.
func (r *Runner) plan(request Request) (Job, error) {
	job := Job{ID: uuid.New(), OutputPath: request.OutputPath}
	if request.Table == nil {
		return job, errors.New("request has no settings table")
	}

	settingsKey, err := r.settingsKey(request.Table)
	if err != nil {
		return job, err
	}
	scene, err := partition.Fingerprint(sceneOf(request))
	if err != nil {
		return job, fmt.Errorf("fingerprinting scene: %w", err)
	}

	job.SettingsKey = settingsKey
	job.Key = digest.Job(settingsKey, scene)
	job.ConfigPath = filepath.Join(r.options.CacheDir,
		"config-"+settingsKey.Short()+"-"+job.Key.Short()+".ini")
	if job.OutputPath == "" {
		job.OutputPath = filepath.Join(r.options.CacheDir, job.Key.Short()+".gcode")
		job.KeyedOutput = true
	}
	return job, nil
}

// settingsKey fingerprints every setting that can change the config:
// the registered fields, the keys the pipeline interprets, and any
// key a converter consults while rendering with every extruder in use.
func (r *Runner) settingsKey(table settings.Table) (digest.Digest, error) {
	recorder := settings.NewRecorder(table)
	allUsed := make([]bool, settings.ExtruderCount(table))
	for index := range allUsed {
		allUsed[index] = true
	}
	r.options.Registry.Lines(export.Source{Table: recorder, ExtrudersUsed: allUsed})

	keys := append([]string(nil), r.keys...)
	keys = append(keys, settings.PipelineKeys(table)...)
	keys = append(keys, recorder.Resolved()...)
	return settings.Fingerprint(table, keys)
}

// flightKey groups Slice calls that would produce identical output in
// the same file.
func flightKey(job Job) string {
	return job.Key.String() + "\x00" + job.OutputPath
}

func (r *Runner) execute(ctx context.Context, job Job, request Request) (result Result) {
	logger := r.logger.With("job", job.ID.String(), "key", job.Key.Short())
	defer r.options.Metrics.JobStarted()()
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("slice job panicked", "panic", recovered)
			result = failed(job, fmt.Errorf("slice job panicked: %v", recovered))
		}
	}()

	if ctx.Err() != nil {
		return cancelled(job, context.Cause(ctx))
	}
	if hit, ok := r.cached(job, logger); ok {
		return hit
	}

	lock, err := filelock.Acquire(ctx, job.OutputPath+".lock")
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(job, context.Cause(ctx))
		}
		return failed(job, fmt.Errorf("locking output: %w", err))
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("releasing output lock", "path", job.OutputPath, "error", err)
		}
	}()

	// Another process may have finished the job while we waited.
	if hit, ok := r.cached(job, logger); ok {
		return hit
	}

	partitioned, err := partition.Partition(sceneOf(request), request.Table, r.options.ScratchDir)
	if err != nil {
		return failed(job, fmt.Errorf("partitioning scene: %w", err))
	}
	for _, path := range partitioned.Dropped {
		logger.Warn("mesh file missing, item dropped", "path", path)
	}

	source := export.Source{
		Table:         request.Table,
		ExtrudersUsed: partitioned.ExtrudersUsed,
		Logger:        logger,
	}
	configLines, err := r.options.Registry.Write(job.ConfigPath, partition.ExtraLines(partitioned), source)
	if err != nil {
		return failed(job, err)
	}
	logger.Debug("slice job state",
		"state", StateConfigWritten.String(),
		"path", job.ConfigPath,
		"meshes", len(partitioned.Meshes),
	)

	if ctx.Err() != nil {
		return withUsage(cancelled(job, context.Cause(ctx)), partitioned)
	}

	engineName := r.options.Engine.Name()
	logger.Debug("slice job state", "state", StateEngineRunning.String(), "engine", engineName)
	started := r.options.Clock.Now()
	ok, err := r.options.Engine.Run(ctx, engine.Invocation{
		OutputPath: job.OutputPath,
		ConfigPath: job.ConfigPath,
	}, request.Progress)
	elapsed := r.options.Clock.Now().Sub(started)
	r.options.Metrics.ObserveEngine(engineName, elapsed, ok && err == nil)

	if !ok || err != nil {
		if ctx.Err() != nil {
			return withUsage(cancelled(job, context.Cause(ctx)), partitioned)
		}
		if err == nil {
			err = fmt.Errorf("%s engine exited unsuccessfully", engineName)
		}
		return withUsage(failed(job, err), partitioned)
	}

	if _, err := os.Stat(job.OutputPath); err != nil {
		return withUsage(failed(job, fmt.Errorf("engine reported success without output: %w", err)), partitioned)
	}

	if err := r.appendTrailer(job.OutputPath, configLines); err != nil {
		logger.Warn("appending settings trailer", "path", job.OutputPath, "error", err)
	}
	r.record(job, partitioned, elapsed, logger)

	return withUsage(succeeded(job), partitioned)
}

// cached reports whether the job's output already exists, is
// complete, and was produced by this job's key. A keyed output path
// names its key; a caller-supplied path must match the manifest
// recorded for the key, content digest included.
func (r *Runner) cached(job Job, logger *slog.Logger) (Result, bool) {
	complete, err := tailscan.FileContains(job.OutputPath, r.options.CompletedSentinel, r.options.PageSize)
	if err != nil {
		logger.Warn("checking cached output", "path", job.OutputPath, "error", err)
		return Result{}, false
	}
	if !complete {
		return Result{}, false
	}

	recorded, matched := r.recorded(job, logger)
	if !job.KeyedOutput && !matched {
		logger.Info("existing output was not produced by this job, reslicing", "path", job.OutputPath)
		return Result{}, false
	}

	result := succeeded(job)
	result.CacheHit = true
	if matched {
		result.ExtrudersUsed = recorded.ExtrudersUsed
	}
	logger.Info("slice satisfied by cached output", "path", job.OutputPath)
	return result, true
}

// recorded returns the manifest for job when it describes the file
// currently at the job's output path.
func (r *Runner) recorded(job Job, logger *slog.Logger) (manifest.Manifest, bool) {
	if r.options.Manifests == nil {
		return manifest.Manifest{}, false
	}
	recorded, err := r.options.Manifests.Read(job.Key.String())
	if err != nil {
		if !errors.Is(err, manifest.ErrNotFound) {
			logger.Warn("reading manifest", "error", err)
		}
		return manifest.Manifest{}, false
	}
	if recorded.OutputPath != job.OutputPath {
		return manifest.Manifest{}, false
	}
	if job.KeyedOutput {
		return recorded, true
	}
	current, _, err := digest.File(job.OutputPath)
	if err != nil {
		logger.Warn("digesting existing output", "path", job.OutputPath, "error", err)
		return manifest.Manifest{}, false
	}
	if current.String() != recorded.OutputDigest {
		return manifest.Manifest{}, false
	}
	return recorded, true
}

func (r *Runner) record(job Job, partitioned partition.Result, elapsed time.Duration, logger *slog.Logger) {
	if r.options.Manifests == nil {
		return
	}
	outputDigest, size, err := digest.File(job.OutputPath)
	if err != nil {
		logger.Warn("digesting output for manifest", "path", job.OutputPath, "error", err)
		return
	}
	err = r.options.Manifests.Write(manifest.Manifest{
		Key:           job.Key.String(),
		SettingsKey:   job.SettingsKey.String(),
		OutputPath:    job.OutputPath,
		ConfigPath:    job.ConfigPath,
		OutputDigest:  outputDigest.String(),
		OutputSize:    size,
		ExtrudersUsed: partitioned.ExtrudersUsed,
		MergeRule:     partitioned.MergeRule,
		MeshCount:     len(partitioned.Meshes),
		Engine:        r.options.Engine.Name(),
		Duration:      elapsed,
		CompletedAt:   r.options.Clock.Now().UTC(),
	})
	if err != nil {
		logger.Warn("recording manifest", "error", err)
	}
}

func (r *Runner) finish(result Result) {
	r.options.Metrics.ObserveJob(result.State.String(), result.CacheHit)

	attributes := []any{
		"job", result.Job.ID.String(),
		"key", result.Job.Key.Short(),
		"state", result.State.String(),
		"path", result.OutputPath,
	}
	switch result.State {
	case StateSucceeded:
		r.logger.Info("slice job finished", append(attributes, "cache_hit", result.CacheHit)...)
	case StateCancelled:
		r.logger.Info("slice job finished", append(attributes, "error", result.Err)...)
	default:
		r.logger.Warn("slice job finished", append(attributes, "error", result.Err)...)
	}
}

func sceneOf(request Request) partition.Scene {
	if request.Scene == nil {
		return partition.StaticScene(nil)
	}
	return request.Scene
}

func succeeded(job Job) Result {
	return Result{State: StateSucceeded, Succeeded: true, OutputPath: job.OutputPath, Job: job}
}

func failed(job Job, err error) Result {
	return Result{State: StateFailed, OutputPath: job.OutputPath, Job: job, Err: err}
}

func cancelled(job Job, cause error) Result {
	return Result{State: StateCancelled, OutputPath: job.OutputPath, Job: job, Err: cause}
}

func withUsage(result Result, partitioned partition.Result) Result {
	result.ExtrudersUsed = partitioned.ExtrudersUsed
	return result
}
