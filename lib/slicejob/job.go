// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slicejob

import (
	"github.com/google/uuid"

	"github.com/bureau-foundation/strata/lib/digest"
	"github.com/bureau-foundation/strata/lib/engine"
	"github.com/bureau-foundation/strata/lib/partition"
	"github.com/bureau-foundation/strata/lib/settings"
)

// State is a step of the job state machine.
type State int

const (
	StateIdle State = iota
	StateConfigWritten
	StateEngineRunning
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigWritten:
		return "config-written"
	case StateEngineRunning:
		return "engine-running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a job.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Request is one slice to perform.
type Request struct {
	// Table supplies every setting. Required.
	Table settings.Table

	// Scene lists the printable items. Nil slices an empty scene.
	Scene partition.Scene

	// OutputPath overrides the content-addressed G-code path in the
	// cache directory. Existing output there is reused only when the
	// manifest for the same key recorded it.
	OutputPath string

	// Progress receives engine progress. Callers that join a job
	// already in flight receive none.
	Progress engine.ProgressSink
}

// Job identifies one execution and the files it uses.
type Job struct {
	ID uuid.UUID

	// SettingsKey digests the resolved settings snapshot.
	SettingsKey digest.Digest

	// Key digests SettingsKey with the scene fingerprint.
	Key digest.Digest

	ConfigPath string
	OutputPath string

	// KeyedOutput is set when OutputPath was derived from Key rather
	// than supplied by the caller.
	KeyedOutput bool
}

// Result is the outcome of a job.
type Result struct {
	// State is always terminal.
	State State

	// Succeeded is State == StateSucceeded.
	Succeeded bool

	// OutputPath is the G-code file, populated even on failure.
	OutputPath string

	Job Job

	// CacheHit is set when validated output already existed and the
	// engine was not run.
	CacheHit bool

	// ExtrudersUsed is the partitioner's usage for this job. On a
	// cache hit it comes from the recorded manifest and may be nil.
	ExtrudersUsed []bool

	// Err describes a failure or cancellation for display. It is nil
	// on success.
	Err error
}
