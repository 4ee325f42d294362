// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by Strata's tests: bounded
// channel waits ([RequireReceive], [RequireClosed]) so a hung
// goroutine fails the test instead of stalling it, and fixture writers
// ([WriteFile], [WriteExecutable]) for settings layers, meshes, and
// shell-script fake engines.
package testutil
