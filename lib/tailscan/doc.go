// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tailscan detects sentinel strings near the end of large text
// files without reading them whole.
//
// Sliced G-code files run to hundreds of megabytes, and the markers
// Strata cares about live at the very end: the engine's "completed"
// line and the settings trailer Strata appends after a successful job.
// [FindSentinel] walks fixed-size windows backwards from the end of any
// [io.ReaderAt], overlapping consecutive windows by the needle length
// so a match straddling a window boundary is still found. Memory use
// is one window buffer regardless of file size.
//
// A missing needle is an ordinary false result, not an error. Only
// genuine read failures produce errors.
//
// This package has no dependencies on other Strata packages.
package tailscan
