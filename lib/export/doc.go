// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package export translates an abstract settings table into the
// slicing engine's native config file.
//
// A [Registry] is an ordered data table of fields. Each field maps one
// abstract key to one native engine key and optionally runs a
// [Converter] over the resolved value (percent scaling, boolean
// spelling, millimeter stripping, start G-code synthesis). [Registry.Lines]
// walks the table in registration order, so identical settings always
// produce byte-identical config files; the config filename is keyed by
// a digest of those settings and downstream caching depends on it.
//
// A converter that returns [ErrOmit], or fails to parse its input,
// removes its field from the output. Malformed settings never abort an
// export. Keys present in the table but absent from the registry are
// ignored.
//
// [Default] returns the canonical registry for the bundled engine.
package export
