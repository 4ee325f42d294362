// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filelock provides advisory exclusive locks on files using
// flock(2).
//
// Locks are held by open file descriptions, so they serialize
// processes as well as goroutines that use separate [Lock] calls on
// the same path. The lock file itself is left in place after [Unlock];
// removing it would race with a process that has opened but not yet
// locked it.
package filelock
