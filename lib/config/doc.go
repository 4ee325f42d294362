// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Strata
// components.
//
// Configuration is loaded from a single file specified by either the
// STRATA_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. When neither is
// given, [Load] returns [ErrNoConfig] and the caller decides whether
// [Default] is acceptable; the CLI accepts it, since a single-user
// slicing cache needs no configuration to be useful.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${STRATA_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Engine, Cache, Product
//   - [Default] -- returns a Config with defaults under ~/.cache/strata
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other Strata packages.
package config
