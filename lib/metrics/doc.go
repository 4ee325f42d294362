// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus collectors for slice jobs.
//
// Each [Metrics] owns its registry rather than using the global one,
// so tests and multiple runners in one process do not collide. All
// methods are no-ops on a nil *Metrics.
//
// The CLI is short-lived and never serves /metrics; it writes a
// textfile snapshot with [Metrics.WriteTextfile] for node_exporter's
// textfile collector instead.
package metrics
