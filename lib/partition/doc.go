// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package partition assigns scene items to extruders and special
// roles and renders the mesh arguments the engine consumes.
//
// [Partition] walks a [Scene] once and produces a [Result]: the mesh
// references in emission order, the merge rule that tells the engine's
// boolean-geometry step which meshes combine into which extruder or
// role, and the per-extruder usage flags the start G-code generator
// needs. The merge rule's index tokens always number exactly the mesh
// references, ascending in emission order.
//
// Merge rule grammar, by example:
//
//	(0+1),(2),,(3),S(4),W(5),F(6+7)
//
// Extruder slots come first, one per extruder in index order, so slot
// position identifies the extruder; empty slots stay empty and
// trailing empty slots are dropped. Role groups follow for support
// (S), wipe tower (W), and fuzzy skin (F) meshes, each only when
// non-empty.
//
// When no extruder receives a mesh, a degenerate placeholder cube is
// written to the scratch directory and takes slot 0: the engine's
// argument protocol needs at least one mesh.
//
// Items whose mesh file no longer exists are dropped and reported in
// [Result.Dropped] rather than failing the job.
package partition
