// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/strata/lib/mesh"
	"github.com/bureau-foundation/strata/lib/partition"
	"github.com/bureau-foundation/strata/lib/settings"
)

// sceneItem is one entry of a scene file.
type sceneItem struct {
	Mesh             string    `json:"mesh"`
	Matrix           []float64 `json:"matrix"`
	Material         *int      `json:"material"`
	Role             string    `json:"role"`
	GeneratedSupport bool      `json:"generated_support"`
}

func loadScene(path string) (partition.StaticScene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene: %w", err)
	}
	scene, err := parseScene(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return scene, nil
}

// parseScene decodes a JSONC scene. Relative mesh paths are joined to
// baseDir. An omitted material is unset, which prints with the first
// extruder.
func parseScene(data []byte, baseDir string) (partition.StaticScene, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var items []sceneItem
	if err := decoder.Decode(&items); err != nil {
		return nil, fmt.Errorf("parsing scene: %w", err)
	}

	scene := make(partition.StaticScene, 0, len(items))
	for index, item := range items {
		if item.Mesh == "" {
			return nil, fmt.Errorf("item %d: mesh is required", index)
		}
		role, err := mesh.ParseRole(item.Role)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", index, err)
		}

		var world mesh.Matrix4
		switch len(item.Matrix) {
		case 0:
			world = mesh.Identity()
		case len(world):
			copy(world[:], item.Matrix)
		default:
			return nil, fmt.Errorf("item %d: matrix has %d values, want 16", index, len(item.Matrix))
		}

		material := -1
		if item.Material != nil {
			material = *item.Material
		}

		path := item.Mesh
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		scene = append(scene, partition.Item{
			MeshPath:         path,
			World:            world,
			MaterialIndex:    material,
			Role:             role,
			GeneratedSupport: item.GeneratedSupport,
		})
	}
	return scene, nil
}

// loadSettings stacks the layer files and then a command-line layer
// built from key=value overrides.
func loadSettings(paths, overrides []string) (*settings.Layered, error) {
	table, err := settings.LoadLayered(paths...)
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		return table, nil
	}

	values := make(map[string]string, len(overrides))
	for _, override := range overrides {
		key, value, ok := strings.Cut(override, "=")
		if !ok || key == "" {
			return nil, usageError("--set %q: want key=value", override)
		}
		values[key] = value
	}
	table.Push(settings.Layer{Name: "command-line", Values: values})
	return table, nil
}
