// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bureau-foundation/strata/lib/settings"
	"github.com/bureau-foundation/strata/lib/startgcode"
)

// AsIs passes the value through unchanged.
func AsIs(value string, _ Source) (string, error) {
	return value, nil
}

// Scale multiplies a numeric value by factor. A trailing "%" marks a
// value already expressed in percent, which is divided by 100 before
// scaling, so Scale(100) maps both "0.2" and "20%" to "20".
func Scale(factor float64) Converter {
	return func(value string, _ Source) (string, error) {
		number, percent, err := parseNumber(value)
		if err != nil {
			return "", err
		}
		if percent {
			number /= 100
		}
		return formatNumber(number * factor), nil
	}
}

// Bool spells a boolean setting the way the engine expects.
func Bool(value string, _ Source) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return "True", nil
	default:
		return "False", nil
	}
}

// Int truncates a numeric value to an integer.
func Int(value string, _ Source) (string, error) {
	number, _, err := parseNumber(value)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(int(number)), nil
}

// Millimeters strips a trailing "mm" unit and normalizes the number.
func Millimeters(value string, _ Source) (string, error) {
	number, percent, err := parseNumber(value)
	if err != nil {
		return "", err
	}
	if percent {
		return "", fmt.Errorf("percentage %q where a length is required", value)
	}
	return formatNumber(number), nil
}

// PercentOf resolves values written as "NN%" relative to another
// setting. Absolute values pass through normalized.
func PercentOf(referenceKey string) Converter {
	return func(value string, source Source) (string, error) {
		number, percent, err := parseNumber(value)
		if err != nil {
			return "", err
		}
		if !percent {
			return formatNumber(number), nil
		}
		reference, _, err := parseNumber(source.Table.Resolve(referenceKey))
		if err != nil {
			return "", fmt.Errorf("reference %s: %w", referenceKey, err)
		}
		return formatNumber(reference * number / 100), nil
	}
}

// GCode escapes line breaks so a G-code block fits on one config line.
func GCode(value string, _ Source) (string, error) {
	return startgcode.EscapeNewlines(value), nil
}

// StartGCode replaces the user's start G-code with the complete
// generated preamble wrapped around it.
func StartGCode(_ string, source Source) (string, error) {
	return startgcode.Build(source.Table, source.ExtrudersUsed), nil
}

// Fixed emits a constant regardless of the settings table.
func Fixed(constant string) Converter {
	return func(string, Source) (string, error) {
		return constant, nil
	}
}

// ExtruderCount emits the effective extruder count, which is 1 in
// spiral vase mode.
func ExtruderCount(_ string, source Source) (string, error) {
	return strconv.Itoa(settings.EffectiveExtruderCount(source.Table)), nil
}

// ExtruderIndex converts a 1-based extruder setting to the engine's
// 0-based index. 0 and unset become -1, the engine's "default
// extruder".
func ExtruderIndex(value string, _ Source) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "-1", nil
	}
	number, _, err := parseNumber(value)
	if err != nil {
		return "", err
	}
	if number < 1 {
		return "-1", nil
	}
	return strconv.Itoa(int(number) - 1), nil
}

// Enum maps a setting's value through a fixed vocabulary. Values
// outside the vocabulary omit the field.
func Enum(mapping map[string]string) Converter {
	return func(value string, _ Source) (string, error) {
		native, ok := mapping[strings.ToLower(strings.TrimSpace(value))]
		if !ok {
			return "", fmt.Errorf("unknown value %q", value)
		}
		return native, nil
	}
}

// OmitEmpty wraps a converter so unset values drop the field instead
// of reaching the converter.
func OmitEmpty(convert Converter) Converter {
	return func(value string, source Source) (string, error) {
		if strings.TrimSpace(value) == "" {
			return "", ErrOmit
		}
		if convert == nil {
			return value, nil
		}
		return convert(value, source)
	}
}

// parseNumber parses a numeric setting, reporting whether it carried
// a trailing "%". An "mm" suffix is ignored. Unset values omit.
func parseNumber(value string) (float64, bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false, ErrOmit
	}
	percent := strings.HasSuffix(trimmed, "%")
	trimmed = strings.TrimSuffix(trimmed, "%")
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "mm"))
	number, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false, fmt.Errorf("non-finite number %q", value)
	}
	return number, percent, nil
}

// formatNumber rounds to six decimals and drops trailing zeros.
func formatNumber(value float64) string {
	rounded := math.Round(value*1e6) / 1e6
	if rounded == 0 {
		return "0"
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
