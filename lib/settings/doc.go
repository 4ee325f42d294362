// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings models the abstract, versioned print settings a
// slice job consumes.
//
// A settings table is anything that can [Table.Resolve] an abstract key
// (layer_height, temperature1, start_gcode, ...) to its raw string
// value. The empty string means "unset". [Layered] is the concrete
// table: an ordered stack of named layers (machine defaults, material,
// quality preset, user overrides) where the last layer defining a key
// wins. Layers are authored as JSONC files and loaded with [LoadLayer].
//
// Typed accessors ([Float], [Int], [Bool], [ExtruderTemperature])
// interpret raw values the same way everywhere, so the exporter, the
// partitioner, and the start G-code generator cannot disagree about
// what "1" or "205.0" means.
//
// [Fingerprint] produces the deterministic digest of a resolved table
// that names cached config files.
package settings
