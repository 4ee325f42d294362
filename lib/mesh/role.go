// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import "fmt"

// Role is what a mesh contributes to the print.
type Role int

const (
	// Solid meshes print as model material on their assigned extruder.
	Solid Role = iota
	// Support meshes mark regions the engine fills with support.
	Support
	// WipeTower meshes are purge towers for tool changes.
	WipeTower
	// Fuzzy meshes mark regions printed with a fuzzy skin.
	Fuzzy
	// Placeholder is the degenerate cube emitted when a scene has no
	// printable solids.
	Placeholder
)

// String returns the lowercase role name used in scene files and logs.
func (r Role) String() string {
	switch r {
	case Solid:
		return "solid"
	case Support:
		return "support"
	case WipeTower:
		return "wipe_tower"
	case Fuzzy:
		return "fuzzy"
	case Placeholder:
		return "placeholder"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole parses a role name. The empty string is Solid.
func ParseRole(name string) (Role, error) {
	switch name {
	case "", "solid":
		return Solid, nil
	case "support":
		return Support, nil
	case "wipe_tower":
		return WipeTower, nil
	case "fuzzy":
		return Fuzzy, nil
	case "placeholder":
		return Placeholder, nil
	default:
		return 0, fmt.Errorf("unknown mesh role %q", name)
	}
}

// Reference is one mesh handed to the engine: a file on disk and the
// world transform to apply to it.
type Reference struct {
	World Matrix4
	Path  string
	Role  Role
}
