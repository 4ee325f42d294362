// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/strata/lib/codec"
	"github.com/bureau-foundation/strata/lib/digest"
)

// Float parses key as a float. An unset key is 0 with no error. A
// trailing "mm" or "%" is ignored; callers that care about percentages
// use the exporter's percent converters instead.
func Float(table Table, key string) (float64, error) {
	raw := strings.TrimSpace(table.Resolve(key))
	raw = strings.TrimSuffix(strings.TrimSuffix(raw, "mm"), "%")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", key, err)
	}
	return value, nil
}

// FloatOr is Float that returns fallback for unset or malformed values.
func FloatOr(table Table, key string, fallback float64) float64 {
	if strings.TrimSpace(table.Resolve(key)) == "" {
		return fallback
	}
	value, err := Float(table, key)
	if err != nil {
		return fallback
	}
	return value
}

// Int parses key as an integer, accepting values written as floats
// ("2.0"). An unset key is 0.
func Int(table Table, key string) (int, error) {
	value, err := Float(table, key)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

// Bool interprets key as a boolean. "1", "true", "yes", and "on" (any
// case) are true; everything else, including unset, is false.
func Bool(table Table, key string) bool {
	switch strings.ToLower(strings.TrimSpace(table.Resolve(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// ExtruderTemperature returns the target temperature for the extruder
// at index. Extruder 0 reads "temperature"; extruder n reads
// "temperature<n>" and falls back to "temperature" when unset.
func ExtruderTemperature(table Table, index int) float64 {
	if index > 0 {
		key := KeyTemperature + strconv.Itoa(index)
		if strings.TrimSpace(table.Resolve(key)) != "" {
			return FloatOr(table, key, 0)
		}
	}
	return FloatOr(table, KeyTemperature, 0)
}

// ExtruderCount returns the configured number of extruders, at least
// one. Spiral vase mode is not applied here; see EffectiveExtruderCount.
func ExtruderCount(table Table) int {
	count, err := Int(table, KeyExtruderCount)
	if err != nil || count < 1 {
		return 1
	}
	return count
}

// EffectiveExtruderCount is ExtruderCount collapsed to 1 when spiral
// vase mode is enabled.
func EffectiveExtruderCount(table Table) int {
	if Bool(table, KeySpiralVase) {
		return 1
	}
	return ExtruderCount(table)
}

// Snapshot resolves keys into a map. When table is Enumerable its own
// keys are included as well. Unset values are omitted so that an
// explicit empty override and an absent key fingerprint identically.
func Snapshot(table Table, keys []string) map[string]string {
	values := make(map[string]string)
	add := func(key string) {
		if value := table.Resolve(key); value != "" {
			values[key] = value
		}
	}
	for _, key := range keys {
		add(key)
	}
	if enumerable, ok := table.(Enumerable); ok {
		for _, key := range enumerable.Keys() {
			add(key)
		}
	}
	return values
}

// Fingerprint digests the Snapshot of table over keys. Identical
// resolved settings always produce the same digest.
func Fingerprint(table Table, keys []string) (digest.Digest, error) {
	encoded, err := codec.Marshal(Snapshot(table, keys))
	if err != nil {
		return digest.Digest{}, fmt.Errorf("encoding settings snapshot: %w", err)
	}
	return digest.Settings(encoded), nil
}
