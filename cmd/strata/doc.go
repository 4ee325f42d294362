// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// strata slices a scene into G-code by driving an external slicing
// engine.
//
//	strata slice --settings machine.jsonc --settings user.jsonc --scene plate.jsonc
//
// Settings layers are JSONC objects applied lowest priority first,
// with --set key=value overrides on top. The scene file is a JSONC
// array of items:
//
//	[{"mesh": "part.stl", "matrix": [1,0,0,0, 0,1,0,0, 0,0,1,0, 100,100,0,1],
//	  "material": 1, "role": "solid", "generated_support": false}]
//
// Relative mesh paths resolve against the scene file's directory. The
// path of the finished G-code is printed on stdout; progress and logs
// go to stderr. Output is content-addressed in the cache directory
// unless --output is given, and an unchanged scene with unchanged
// settings is answered from the cache without running the engine.
//
// "strata cache list" shows recorded jobs and "strata cache remove"
// deletes one. Configuration is read from --config, then
// STRATA_CONFIG, falling back to built-in defaults.
//
// Exit status is 0 on success, 1 when the slice fails, 2 on usage
// errors, and 130 when interrupted.
package main
