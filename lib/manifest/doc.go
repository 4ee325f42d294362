// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest records completed slice jobs on disk.
//
// A [Manifest] describes one cached G-code file: which settings and
// scene produced it, the digest and size of the output, which
// extruders it uses, and how long the engine took. Manifests are
// encoded as deterministic CBOR and compressed with zstd or LZ4 into a
// small framed file under the cache directory:
//
//	magic "STMF" | version (1 byte) | compression tag (1 byte)
//	| uncompressed length (uint32 LE) | payload
//
// Payloads that do not shrink are stored uncompressed with
// [CompressionNone] regardless of the configured algorithm.
//
// [Store.List] is what "strata cache list" prints.
package manifest
