// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest computes the content addresses Strata uses to find
// reusable work on disk.
//
// Three hash domains exist, each a BLAKE3 keyed hash with a distinct
// fixed key so equal input bytes never collide across domains:
//
//   - settings: the CBOR-encoded snapshot of a resolved settings table.
//     Names the engine config file, so two jobs with identical
//     settings share one config.
//   - job: the settings digest combined with the scene fingerprint.
//     Names the cached G-code output.
//   - file: streamed file contents, recorded in job manifests so a
//     cached G-code file can be checked for tampering.
//
// [Format] and [Parse] convert digests to and from the lowercase hex
// form used in filenames and logs.
package digest
