// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for Strata
// commands: fatal error reporting to stderr before the structured
// logger exists, and exit-code propagation from run().
package process
