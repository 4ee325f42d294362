// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable wall-clock source.
//
// Strata reads the time in exactly one place that ends up in an
// artifact: the settings trailer appended to finished G-code records
// the date and minute the job completed. Components that stamp output
// hold a [Clock] so tests can pin the timestamp with [Fake] and compare
// trailers byte for byte.
package clock
