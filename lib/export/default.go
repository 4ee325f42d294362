// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import "github.com/bureau-foundation/strata/lib/settings"

// Native keys written outside the registry by the partitioner.
const (
	NativeMergeRule = "booleanOperations"
	NativeMeshArgs  = "additionalArgsToProcess"
)

var infillPatterns = map[string]string{
	"rectilinear": "LINES",
	"lines":       "LINES",
	"grid":        "GRID",
	"triangles":   "TRIANGLES",
	"hexagon":     "HEXAGON",
	"concentric":  "CONCENTRIC",
}

var supportPatterns = map[string]string{
	"lines": "LINES",
	"grid":  "GRID",
}

// Default returns a new registry holding the canonical field table.
// Callers may register additional fields on the result.
func Default() *Registry {
	r := NewRegistry()

	// Engine constants.
	r.Register("output_type", "outputType", Fixed("REPRAP"))
	r.Register("do_cool_head_lift", "doCoolHeadLift", Fixed("False"))

	// Layers.
	r.Register(settings.KeyLayerHeight, "layerThickness", Millimeters)
	r.Register("first_layer_height", "firstLayerThickness", PercentOf(settings.KeyLayerHeight))
	r.Register("bottom_clip_amount", "bottomClipAmount", OmitEmpty(Millimeters))
	r.Register("z_offset", "zOffset", OmitEmpty(Millimeters))

	// Extrusion.
	r.Register("nozzle_diameter", "extrusionWidth", Millimeters)
	r.Register("first_layer_extrusion_width", "firstLayerExtrusionWidth", PercentOf("nozzle_diameter"))
	r.Register("filament_diameter", "filamentDiameter", Millimeters)
	r.Register("extrusion_multiplier", "extrusionMultiplier", OmitEmpty(Scale(1)))
	r.Register(settings.KeyExtruderCount, "extruderCount", ExtruderCount)

	// Perimeters.
	r.Register("perimeters", "numberOfPerimeters", Int)
	r.Register("top_solid_layers", "numberOfTopLayers", Int)
	r.Register("bottom_solid_layers", "numberOfBottomLayers", Int)
	r.Register("external_perimeters_first", "outsidePerimetersFirst", Bool)
	r.Register(settings.KeySpiralVase, "continuousSpiralOuterPerimeter", Bool)
	r.Register("avoid_crossing_perimeters", "avoidCrossingPerimeters", Bool)
	r.Register("fill_thin_gaps", "fillThinGaps", Bool)
	r.Register("merge_overlapping_lines", "MergeOverlappingLines", Bool)

	// Infill.
	r.Register("fill_density", "infillPercent", Scale(100))
	r.Register("fill_pattern", "infillType", OmitEmpty(Enum(infillPatterns)))
	r.Register("fill_angle", "infillStartingAngle", OmitEmpty(Scale(1)))
	r.Register("infill_overlap_perimeter", "infillExtendIntoPerimeter", PercentOf("nozzle_diameter"))

	// Speeds.
	r.Register("infill_speed", "infillSpeed", Scale(1))
	r.Register("perimeter_speed", "insidePerimetersSpeed", Scale(1))
	r.Register("external_perimeter_speed", "outsidePerimeterSpeed", PercentOf("perimeter_speed"))
	r.Register("top_solid_infill_speed", "topInfillSpeed", PercentOf("infill_speed"))
	r.Register("first_layer_speed", "firstLayerSpeed", PercentOf("infill_speed"))
	r.Register("bridge_speed", "bridgeSpeed", Scale(1))
	r.Register("travel_speed", "travelSpeed", Scale(1))
	r.Register("support_material_speed", "supportMaterialSpeed", Scale(1))

	// Cooling.
	r.Register("min_fan_speed", "fanSpeedMinPercent", Scale(1))
	r.Register("max_fan_speed", "fanSpeedMaxPercent", Scale(1))
	r.Register("disable_fan_first_layers", "firstLayerToAllowFan", Int)
	r.Register("slowdown_below_layer_time", "minimumLayerTimeSeconds", Scale(1))
	r.Register("min_print_speed", "minimumPrintingSpeed", Scale(1))

	// Temperatures.
	r.Register(settings.KeyTemperature, "extruderTemperature", OmitEmpty(Scale(1)))
	r.Register(settings.KeyBedTemperature, "bedTemperature", OmitEmpty(Scale(1)))

	// Support.
	r.Register(settings.KeySupportMaterial, "generateSupport", Bool)
	r.Register("support_material_threshold", "supportAngle", OmitEmpty(Scale(1)))
	r.Register("support_material_spacing", "supportLineSpacing", Millimeters)
	r.Register("support_material_pattern", "supportType", OmitEmpty(Enum(supportPatterns)))
	r.Register("support_material_xy_distance", "supportXYDistanceFromObject", Millimeters)
	r.Register("support_material_z_distance", "supportNumberOfLayersToSkipInZ", Int)
	r.Register("support_material_interface_layers", "supportInterfaceLayers", Int)
	r.Register(settings.KeySupportMaterialExtruder, "supportExtruder", ExtruderIndex)

	// Raft.
	r.Register(settings.KeyCreateRaft, "enableRaft", Bool)
	r.Register("raft_extra_distance_around_part", "raftExtraDistanceAroundPart", Millimeters)
	r.Register("raft_air_gap", "raftAirGap", Millimeters)
	r.Register(settings.KeyRaftExtruder, "raftExtruder", ExtruderIndex)

	// Skirt and brim.
	r.Register("skirts", "numberOfSkirtLoops", Int)
	r.Register("skirt_distance", "skirtDistanceFromObject", Millimeters)
	r.Register("min_skirt_length", "skirtMinLength", Millimeters)
	r.Register("brims", "numberOfBrimLoops", Int)

	// Wipe tower and shield.
	r.Register("wipe_tower_size", "wipeTowerSize", OmitEmpty(Millimeters))
	r.Register("wipe_shield_distance", "wipeShieldDistanceFromObject", OmitEmpty(Millimeters))

	// Retraction.
	r.Register("retract_length", "retractionOnTravel", Millimeters)
	r.Register("retract_speed", "retractionSpeed", Scale(1))
	r.Register("retract_lift", "retractionZHop", Millimeters)
	r.Register("retract_before_travel", "minimumTravelToCauseRetraction", Millimeters)
	r.Register("retract_length_tool_change", "retractionOnExtruderSwitch", Millimeters)
	r.Register("retract_restart_extra", "unretractExtraExtrusion", Millimeters)
	r.Register("min_extrusion_before_retract", "minimumExtrusionBeforeRetraction", Millimeters)

	// G-code blocks.
	r.Register(settings.KeyStartGCode, "startCode", StartGCode)
	r.Register(settings.KeyEndGCode, "endCode", GCode)
	r.Register("layer_gcode", "layerChangeCode", GCode)
	r.Register("toolchange_gcode", "beforeToolchangeCode", GCode)

	// Machine geometry.
	r.Register("bed_size", "bedSize", OmitEmpty(nil))
	r.Register("print_center", "positionToPlaceObjectCenter", OmitEmpty(nil))
	r.Register("bed_shape", "bedShape", OmitEmpty(nil))
	r.Register("build_height", "maxZ", OmitEmpty(Millimeters))

	return r
}
