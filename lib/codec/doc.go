// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Strata's CBOR encoding configuration.
//
// Everything Strata hashes or persists in binary form goes through
// this package: settings snapshots are encoded here before being
// digested into cache keys, and job manifests are encoded here before
// compression. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2) so the same logical value always yields the same bytes; if
// map keys were emitted in Go's random iteration order, identical
// settings would hash to different cache keys.
//
// The package wraps github.com/fxamacker/cbor/v2 so call sites do not
// depend on its option types directly.
package codec
