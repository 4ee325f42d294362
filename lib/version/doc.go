// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for Strata
// binaries and for the product header written into G-code trailers.
//
// Values are injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/strata/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
