// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import "strconv"

// Abstract keys read directly by the slicing pipeline. The exporter's
// mapping table references many more; these are the ones whose meaning
// is interpreted in Go code rather than passed through to the engine.
const (
	KeyExtruderCount           = "extruder_count"
	KeySpiralVase              = "spiral_vase"
	KeyTemperature             = "temperature"
	KeyBedTemperature          = "bed_temperature"
	KeyHasHeatedBed            = "has_heated_bed"
	KeyHeatBeforeHoming        = "heat_extruder_before_homing"
	KeyStartGCode              = "start_gcode"
	KeyEndGCode                = "end_gcode"
	KeySupportMaterial         = "support_material"
	KeySupportMaterialExtruder = "support_material_extruder"
	KeyCreateRaft              = "create_raft"
	KeyRaftExtruder            = "raft_extruder"
	KeyLayerHeight             = "layer_height"
)

// PipelineKeys lists every key the pipeline interprets for table,
// including the temperature key of each configured extruder.
func PipelineKeys(table Table) []string {
	keys := []string{
		KeyExtruderCount,
		KeySpiralVase,
		KeyTemperature,
		KeyBedTemperature,
		KeyHasHeatedBed,
		KeyHeatBeforeHoming,
		KeyStartGCode,
		KeyEndGCode,
		KeySupportMaterial,
		KeySupportMaterialExtruder,
		KeyCreateRaft,
		KeyRaftExtruder,
		KeyLayerHeight,
	}
	for index := 1; index < ExtruderCount(table); index++ {
		keys = append(keys, KeyTemperature+strconv.Itoa(index))
	}
	return keys
}
