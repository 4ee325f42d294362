// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
)

// Table resolves abstract setting keys to raw string values. Unknown
// keys resolve to "".
type Table interface {
	Resolve(key string) string
}

// Enumerable is a Table that can list every key it defines.
type Enumerable interface {
	Table
	Keys() []string
}

// Map is a single-layer table, convenient for tests and for per-job
// overrides.
type Map map[string]string

// Resolve implements Table.
func (m Map) Resolve(key string) string { return m[key] }

// Keys implements Enumerable.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Recorder is a Table that remembers every key resolved through it.
// It is safe for concurrent use.
type Recorder struct {
	table Table

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewRecorder wraps table.
func NewRecorder(table Table) *Recorder {
	return &Recorder{table: table, seen: make(map[string]struct{})}
}

// Resolve implements Table.
func (r *Recorder) Resolve(key string) string {
	r.mu.Lock()
	r.seen[key] = struct{}{}
	r.mu.Unlock()
	return r.table.Resolve(key)
}

// Resolved returns the keys resolved so far, sorted.
func (r *Recorder) Resolved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.seen))
	for key := range r.seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Layer is one named level of the override stack.
type Layer struct {
	Name   string
	Values map[string]string
}

// Layered resolves keys through an ordered stack of layers. Later
// layers override earlier ones. A Layered is not safe for concurrent
// mutation; build it fully before handing it to a job.
type Layered struct {
	layers []Layer
}

// NewLayered returns a table over the given layers, lowest priority
// first.
func NewLayered(layers ...Layer) *Layered {
	return &Layered{layers: append([]Layer(nil), layers...)}
}

// Push adds a layer on top of the stack.
func (l *Layered) Push(layer Layer) {
	l.layers = append(l.layers, layer)
}

// Resolve implements Table.
func (l *Layered) Resolve(key string) string {
	value, _ := l.Lookup(key)
	return value
}

// Lookup returns the winning value for key and the name of the layer
// that supplied it. The layer name is empty when no layer defines key.
func (l *Layered) Lookup(key string) (value, layer string) {
	for index := len(l.layers) - 1; index >= 0; index-- {
		if value, ok := l.layers[index].Values[key]; ok {
			return value, l.layers[index].Name
		}
	}
	return "", ""
}

// Keys implements Enumerable. Keys are sorted.
func (l *Layered) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, layer := range l.layers {
		for key := range layer.Values {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// Layers returns the layer names, lowest priority first.
func (l *Layered) Layers() []string {
	names := make([]string, len(l.layers))
	for index, layer := range l.layers {
		names[index] = layer.Name
	}
	return names
}

// ParseLayer parses a JSONC object of settings into a Layer. String
// values are kept verbatim, booleans become "1" or "0", numbers keep
// their source spelling, and null leaves the key undefined so a lower
// layer shows through. Nested objects and arrays are rejected.
func ParseLayer(name string, data []byte) (Layer, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return Layer{}, fmt.Errorf("parsing settings layer %q: %w", name, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		switch typed := value.(type) {
		case nil:
			continue
		case string:
			values[key] = typed
		case bool:
			if typed {
				values[key] = "1"
			} else {
				values[key] = "0"
			}
		case json.Number:
			values[key] = typed.String()
		default:
			return Layer{}, fmt.Errorf("settings layer %q: key %q has unsupported %T value", name, key, value)
		}
	}
	return Layer{Name: name, Values: values}, nil
}

// LoadLayer reads a JSONC settings file. The layer is named after the
// file, without directory or extension.
func LoadLayer(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layer{}, fmt.Errorf("reading %s: %w", path, err)
	}
	base := filepath.Base(path)
	return ParseLayer(strings.TrimSuffix(base, filepath.Ext(base)), data)
}

// LoadLayered loads each path as a layer, in priority order.
func LoadLayered(paths ...string) (*Layered, error) {
	table := NewLayered()
	for _, path := range paths {
		layer, err := LoadLayer(path)
		if err != nil {
			return nil, err
		}
		table.Push(layer)
	}
	return table, nil
}
