// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mesh holds the geometric vocabulary shared by the
// partitioner and the job runner: 4x4 transforms, axis-aligned boxes,
// mesh roles, and the small amount of STL I/O the pipeline needs.
//
// Strata never loads mesh geometry into memory for slicing; the engine
// reads STL files itself. The package only reads STL files far enough
// to compute local bounds (support column compensation needs the
// footprint center) and writes the degenerate placeholder cube the
// engine requires when a scene has no printable solids.
//
// # Matrix Convention
//
// [Matrix4] is row-major with row vectors: a point p transforms as
// p' = p * M, so translation lives in elements 12, 13, and 14. This is
// also the order in which the engine's -m argument lists the sixteen
// values.
package mesh
