// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package startgcode wraps user-authored start G-code with the heating,
// homing, and mode commands a print needs before the first layer.
//
// Users write start G-code by hand and frequently include some of the
// setup commands themselves. [Build] therefore adds each automatic
// command only when no user line begins with the same command word:
// a user "M104 S200" suppresses the generated "M104 T0 S215". The
// check is a plain prefix match per line, not a semantic comparison.
//
// The result has its newlines replaced by the two-character sequence
// `\n` so it can be embedded in a single engine config line.
package startgcode
