// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine runs the slicing engine for one job.
//
// [Runner] is the single interface the job runner depends on. Two
// implementations exist and are selected at construction time by
// [New], never per job:
//
//   - [Subprocess] executes the engine binary in its own process
//     group, parses each stdout line into a [Progress], and keeps the
//     tail of stderr for failure logs. Cancellation kills the whole
//     process group.
//   - [InProcess] calls an [Embedded] engine linked into the binary,
//     with the same command line, and routes its log callback through
//     the same parser. Cancellation asks the engine to stop.
//
// Both check for cancellation before starting and again on every
// output line. A cancellation can therefore let one more progress
// line through before it takes effect.
//
// Run reports false with a nil error when the engine ran and failed.
// A non-nil error means the engine could not be run at all or the job
// was cancelled; cancellation errors wrap the context's error.
package engine
