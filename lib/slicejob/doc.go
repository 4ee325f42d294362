// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package slicejob orchestrates one slice from settings and scene to
// validated G-code.
//
// A job moves through [StateIdle], [StateConfigWritten], and
// [StateEngineRunning] to one of the terminal states
// [StateSucceeded], [StateFailed], or [StateCancelled]:
//
//  1. Idle: the settings key and job key are computed and the output
//     path is derived. An output that already carries the engine's
//     completion sentinel in its tail satisfies the job without
//     partitioning or running the engine.
//  2. ConfigWritten: the scene is partitioned and the engine config
//     is written with the merge rule and mesh arguments appended.
//  3. EngineRunning: the configured [engine.Runner] produces the
//     G-code. Cancellation is checked once before it starts.
//  4. Succeeded: the output must exist. A settings trailer is
//     appended unless one is already present, and a manifest is
//     recorded. Neither step can fail the job.
//
// Concurrent [Runner.Slice] calls for the same output share one
// execution. Separate processes serialize on an advisory lock beside
// the output and repeat the cache check once they hold it.
//
// Nothing crosses the job boundary as an error or a panic: every
// failure resolves to a [Result].
package slicejob
