// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package partition

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bureau-foundation/strata/lib/export"
	"github.com/bureau-foundation/strata/lib/mesh"
	"github.com/bureau-foundation/strata/lib/settings"
)

// SupportColumnReduceAmount is how far, in millimeters, the support
// generator shrinks each side of a generated support column. The
// partitioner grows columns back by the same amount.
const SupportColumnReduceAmount = 1.0

// Item is one printable object in a scene.
type Item struct {
	// MeshPath is the STL file the engine reads for this item.
	MeshPath string

	// World places the mesh on the bed.
	World mesh.Matrix4

	// MaterialIndex is the 0-based extruder the item prints with.
	// Negative means unset.
	MaterialIndex int

	// Role selects a special bucket. Solid and Placeholder items are
	// bucketed by material.
	Role mesh.Role

	// GeneratedSupport marks columns produced by the support
	// generator, which need their footprint restored.
	GeneratedSupport bool

	// LocalBounds is the mesh's bounding box in its own coordinates.
	// When empty and GeneratedSupport is set, the bounds are read
	// from the STL file.
	LocalBounds mesh.Box
}

// Scene enumerates the printable items of a job.
type Scene interface {
	Items() []Item
}

// StaticScene is a fixed list of items.
type StaticScene []Item

// Items implements Scene.
func (s StaticScene) Items() []Item { return s }

// Result is the outcome of partitioning one scene.
type Result struct {
	// Meshes is every mesh reference in emission order.
	Meshes []mesh.Reference

	// MergeRule describes how Meshes combine, by index.
	MergeRule string

	// ExtrudersUsed has one entry per effective extruder.
	ExtrudersUsed []bool

	// Dropped lists mesh paths skipped because the file is missing.
	Dropped []string
}

type buckets struct {
	extruders [][]Item
	support   []Item
	wipeTower []Item
	fuzzy     []Item
}

// Partition buckets the scene's items by extruder and role. The only
// error is a failure to write the placeholder mesh into scratchDir.
func Partition(scene Scene, table settings.Table, scratchDir string) (Result, error) {
	extruderCount := settings.EffectiveExtruderCount(table)

	var result Result
	sorted := buckets{extruders: make([][]Item, extruderCount)}
	for _, item := range scene.Items() {
		if _, err := os.Stat(item.MeshPath); err != nil {
			result.Dropped = append(result.Dropped, item.MeshPath)
			continue
		}
		switch item.Role {
		case mesh.Support:
			sorted.support = append(sorted.support, item)
		case mesh.WipeTower:
			sorted.wipeTower = append(sorted.wipeTower, item)
		case mesh.Fuzzy:
			sorted.fuzzy = append(sorted.fuzzy, item)
		default:
			extruder := item.MaterialIndex
			if extruder < 0 || extruder >= extruderCount {
				extruder = 0
			}
			sorted.extruders[extruder] = append(sorted.extruders[extruder], item)
		}
	}

	result.ExtrudersUsed = make([]bool, extruderCount)

	slots := make([]string, extruderCount)
	anySolid := false
	for extruder, items := range sorted.extruders {
		if len(items) == 0 {
			continue
		}
		anySolid = true
		result.ExtrudersUsed[extruder] = true
		slots[extruder] = "(" + result.emit(items, mesh.Solid) + ")"
	}
	if !anySolid {
		path, err := mesh.WritePlaceholder(scratchDir)
		if err != nil {
			return Result{}, fmt.Errorf("writing placeholder mesh: %w", err)
		}
		index := len(result.Meshes)
		result.Meshes = append(result.Meshes, mesh.Reference{World: mesh.Identity(), Path: path, Role: mesh.Placeholder})
		slots[0] = "(" + strconv.Itoa(index) + ")"
	}
	for len(slots) > 0 && slots[len(slots)-1] == "" {
		slots = slots[:len(slots)-1]
	}

	var rule strings.Builder
	rule.WriteString(strings.Join(slots, ","))
	for _, group := range []struct {
		marker string
		items  []Item
		role   mesh.Role
	}{
		{"S", sorted.support, mesh.Support},
		{"W", sorted.wipeTower, mesh.WipeTower},
		{"F", sorted.fuzzy, mesh.Fuzzy},
	} {
		if len(group.items) == 0 {
			continue
		}
		rule.WriteString("," + group.marker + "(" + result.emit(group.items, group.role) + ")")
	}
	result.MergeRule = rule.String()

	supportExtruder := supportExtruderIndex(table, extruderCount)
	if len(sorted.support) > 0 || settings.Bool(table, settings.KeySupportMaterial) {
		result.ExtrudersUsed[supportExtruder] = true
	}
	if settings.Bool(table, settings.KeyCreateRaft) {
		result.ExtrudersUsed[raftExtruderIndex(table, extruderCount, supportExtruder)] = true
	}

	return result, nil
}

// emit appends items to the mesh list and returns their indices
// joined with "+".
func (r *Result) emit(items []Item, role mesh.Role) string {
	indices := make([]string, len(items))
	for position, item := range items {
		indices[position] = strconv.Itoa(len(r.Meshes))
		world := item.World
		if world.IsZero() {
			world = mesh.Identity()
		}
		if item.GeneratedSupport {
			world = restoreColumnFootprint(item).Then(world)
		}
		r.Meshes = append(r.Meshes, mesh.Reference{World: world, Path: item.MeshPath, Role: role})
	}
	return strings.Join(indices, "+")
}

// restoreColumnFootprint returns the local transform growing a support
// column in X and Y about its local center by the amount the support
// generator removed from each side. Columns with unknown or degenerate
// bounds are left as they are.
func restoreColumnFootprint(item Item) mesh.Matrix4 {
	bounds := item.LocalBounds
	if bounds.IsEmpty() {
		read, err := mesh.ReadBounds(item.MeshPath)
		if err != nil || read.IsEmpty() {
			return mesh.Identity()
		}
		bounds = read
	}
	size := bounds.Size()
	center := bounds.Center()
	factors := mesh.Vector3{
		X: (size.X + 2*SupportColumnReduceAmount) / size.X,
		Y: (size.Y + 2*SupportColumnReduceAmount) / size.Y,
		Z: 1,
	}
	return mesh.Translation(center.Scale(-1)).
		Then(mesh.Scaling(factors)).
		Then(mesh.Translation(center))
}

// supportExtruderIndex reads the 1-based support extruder setting. 0
// and out-of-range values mean the first extruder.
func supportExtruderIndex(table settings.Table, extruderCount int) int {
	return foldExtruder(table, settings.KeySupportMaterialExtruder, extruderCount, 0)
}

// raftExtruderIndex reads the 1-based raft extruder setting. 0 means
// the support extruder.
func raftExtruderIndex(table settings.Table, extruderCount, supportExtruder int) int {
	return foldExtruder(table, settings.KeyRaftExtruder, extruderCount, supportExtruder)
}

func foldExtruder(table settings.Table, key string, extruderCount, unset int) int {
	configured, err := settings.Int(table, key)
	if err != nil || configured <= 0 {
		return unset
	}
	index := configured - 1
	if index >= extruderCount {
		return 0
	}
	return index
}

// Arguments renders the additionalArgsToProcess value: one
// ` -m "<matrix>" "<path>"` group per mesh, in order.
func Arguments(meshes []mesh.Reference) string {
	var builder strings.Builder
	for _, reference := range meshes {
		fmt.Fprintf(&builder, " -m \"%s\" \"%s\"", reference.World.Format(), reference.Path)
	}
	return builder.String()
}

// ExtraLines returns the two raw config lines carrying the merge rule
// and the mesh arguments.
func ExtraLines(result Result) []string {
	return []string{
		export.FormatLine(export.NativeMergeRule, result.MergeRule),
		export.NativeMeshArgs + " =" + Arguments(result.Meshes),
	}
}

// CountTokens returns the number of mesh indices in a merge rule.
func CountTokens(mergeRule string) int {
	count := 0
	inNumber := false
	for _, r := range mergeRule {
		digit := r >= '0' && r <= '9'
		if digit && !inNumber {
			count++
		}
		inNumber = digit
	}
	return count
}
