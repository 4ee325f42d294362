// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/strata/lib/settings"
)

// ErrOmit is returned by a converter to drop its field from the
// output entirely.
var ErrOmit = errors.New("export: field omitted")

// Source is everything a converter may consult besides the field's
// own value.
type Source struct {
	// Table is the resolved settings table for the job.
	Table settings.Table

	// ExtrudersUsed reports which extruders print in this job, as
	// computed by the partitioner. Converters that synthesize G-code
	// use it to heat only the extruders that matter.
	ExtrudersUsed []bool

	// Logger receives a debug record for every skipped field. Nil
	// discards.
	Logger *slog.Logger
}

// Converter transforms a resolved raw value into the engine's
// spelling.
type Converter func(value string, source Source) (string, error)

// Field maps one abstract settings key to one native engine key.
type Field struct {
	Key        string
	NativeName string
	// Convert is nil for a verbatim passthrough.
	Convert Converter
}

// Registry is an ordered set of fields, at most one per abstract key.
// Registration is not safe for concurrent use; build a registry fully
// before sharing it. Lines and Write may be called concurrently.
type Registry struct {
	fields []Field
	byKey  map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]int)}
}

// Register appends a field. Registering the same abstract key twice
// is a programming error and panics.
func (r *Registry) Register(key, nativeName string, convert Converter) {
	if key == "" || nativeName == "" {
		panic("export: Register requires both an abstract key and a native name")
	}
	if _, exists := r.byKey[key]; exists {
		panic(fmt.Sprintf("export: abstract key %q registered twice", key))
	}
	r.byKey[key] = len(r.fields)
	r.fields = append(r.fields, Field{Key: key, NativeName: nativeName, Convert: convert})
}

// Fields returns the registered fields in registration order.
func (r *Registry) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// Lookup returns the field registered for key.
func (r *Registry) Lookup(key string) (Field, bool) {
	index, ok := r.byKey[key]
	if !ok {
		return Field{}, false
	}
	return r.fields[index], true
}

// Len returns the number of registered fields.
func (r *Registry) Len() int { return len(r.fields) }

// Value resolves and converts one field. The boolean is false when the
// field is omitted from the output.
func (r *Registry) Value(field Field, source Source) (string, bool) {
	raw := source.Table.Resolve(field.Key)
	if field.Convert == nil {
		return raw, true
	}
	converted, err := field.Convert(raw, source)
	if err != nil {
		if !errors.Is(err, ErrOmit) {
			logger(source).Debug("skipping malformed setting",
				"key", field.Key,
				"native", field.NativeName,
				"value", raw,
				"error", err,
			)
		}
		return "", false
	}
	return converted, true
}

// Lines renders every non-omitted field as "<native> = <value>", in
// registration order.
func (r *Registry) Lines(source Source) []string {
	lines := make([]string, 0, len(r.fields))
	for _, field := range r.fields {
		value, ok := r.Value(field, source)
		if !ok {
			continue
		}
		lines = append(lines, FormatLine(field.NativeName, value))
	}
	return lines
}

// Write renders the config file for source to outputPath, followed by
// extraLines verbatim. The file is replaced atomically. It returns
// every line written, extra lines included.
func (r *Registry) Write(outputPath string, extraLines []string, source Source) ([]string, error) {
	lines := append(r.Lines(source), extraLines...)

	directory := filepath.Dir(outputPath)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(directory, "config-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := writeLines(tmpFile, lines); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("writing config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("closing temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return nil, fmt.Errorf("renaming config file: %w", err)
	}

	success = true
	return lines, nil
}

// FormatLine renders one config line.
func FormatLine(nativeName, value string) string {
	return nativeName + " = " + value
}

// ParseLine splits a config line back into its native name and value.
// Lines without " = " report false. The value is not trimmed, so raw
// lines whose value starts with a space round trip.
func ParseLine(line string) (nativeName, value string, ok bool) {
	nativeName, value, ok = strings.Cut(line, " =")
	if !ok {
		return "", "", false
	}
	return nativeName, strings.TrimPrefix(value, " "), true
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func logger(source Source) *slog.Logger {
	if source.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return source.Logger
}
