// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags -X.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	// GitDirty is "true" for builds from a modified tree.
	GitDirty  = "false"
	BuildTime = "unknown"
)

// Info is the "strata version" line: version, build, and build time.
func Info() string {
	return fmt.Sprintf("%s (build %s, %s, %s/%s)", Version, Build(), BuildTime, runtime.GOOS, runtime.GOARCH)
}

// Build returns the commit identifier, suffixed with "-dirty" for
// builds from a modified tree. G-code trailers record this value so a
// print can be traced back to the slicer build that produced it.
func Build() string {
	if GitDirty == "true" {
		return GitCommit + "-dirty"
	}
	return GitCommit
}
