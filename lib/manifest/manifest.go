// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bureau-foundation/strata/lib/codec"
)

// Manifest describes one completed slice job.
type Manifest struct {
	Key           string        `cbor:"key"`
	SettingsKey   string        `cbor:"settings_key"`
	OutputPath    string        `cbor:"output_path"`
	ConfigPath    string        `cbor:"config_path"`
	OutputDigest  string        `cbor:"output_digest"`
	OutputSize    int64         `cbor:"output_size"`
	ExtrudersUsed []bool        `cbor:"extruders_used"`
	MergeRule     string        `cbor:"merge_rule"`
	MeshCount     int           `cbor:"mesh_count"`
	Engine        string        `cbor:"engine"`
	Duration      time.Duration `cbor:"duration"`
	CompletedAt   time.Time     `cbor:"completed_at"`
}

const (
	fileMagic     = "STMF"
	formatVersion = 1
	headerSize    = len(fileMagic) + 1 + 1 + 4
	fileExtension = ".manifest"
)

// ErrNotFound is returned by Read for a key with no manifest.
var ErrNotFound = errors.New("manifest not found")

// Store reads and writes manifests in one directory.
type Store struct {
	directory   string
	compression CompressionTag
}

// NewStore returns a store rooted at directory, compressing new
// manifests with compression.
func NewStore(directory string, compression CompressionTag) *Store {
	return &Store{directory: directory, compression: compression}
}

// Directory returns the store's root directory.
func (s *Store) Directory() string { return s.directory }

func (s *Store) path(key string) string {
	return filepath.Join(s.directory, key+fileExtension)
}

// Write records m under m.Key, replacing any previous manifest for
// the key.
func (s *Store) Write(m Manifest) error {
	if m.Key == "" || strings.ContainsAny(m.Key, `/\`) {
		return fmt.Errorf("invalid manifest key %q", m.Key)
	}

	data, err := Encode(m, s.compression)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.directory, 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.directory, "manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp manifest file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp manifest file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(m.Key)); err != nil {
		return fmt.Errorf("renaming manifest file: %w", err)
	}

	success = true
	return nil
}

// Read returns the manifest recorded for key.
func (s *Store) Read(key string) (Manifest, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Manifest{}, fmt.Errorf("reading manifest %s: %w", key, err)
	}
	return Decode(data)
}

// List returns every readable manifest, most recently completed
// first. Unreadable files are returned as errors alongside the
// manifests that did decode.
func (s *Store) List() ([]Manifest, []error) {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("listing manifests: %w", err)}
	}

	var manifests []Manifest
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		m, err := s.Read(strings.TrimSuffix(name, fileExtension))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		manifests = append(manifests, m)
	}

	sort.SliceStable(manifests, func(i, j int) bool {
		if !manifests[i].CompletedAt.Equal(manifests[j].CompletedAt) {
			return manifests[i].CompletedAt.After(manifests[j].CompletedAt)
		}
		return manifests[i].Key < manifests[j].Key
	})
	return manifests, errs
}

// Remove deletes the manifest for key. Removing a missing manifest is
// not an error.
func (s *Store) Remove(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing manifest %s: %w", key, err)
	}
	return nil
}

// Encode frames m as a manifest file.
func Encode(m Manifest, compression CompressionTag) ([]byte, error) {
	payload, err := codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	tag := compression
	compressed, err := compress(payload, tag)
	if errors.Is(err, errIncompressible) {
		tag, compressed = CompressionNone, payload
	} else if err != nil {
		return nil, err
	}

	var buffer bytes.Buffer
	buffer.Grow(headerSize + len(compressed))
	buffer.WriteString(fileMagic)
	buffer.WriteByte(formatVersion)
	buffer.WriteByte(byte(tag))
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(payload)))
	buffer.Write(size[:])
	buffer.Write(compressed)
	return buffer.Bytes(), nil
}

// Decode parses a manifest file produced by Encode.
func Decode(data []byte) (Manifest, error) {
	if len(data) < headerSize || string(data[:len(fileMagic)]) != fileMagic {
		return Manifest{}, errors.New("not a manifest file")
	}
	if version := data[len(fileMagic)]; version != formatVersion {
		return Manifest{}, fmt.Errorf("unsupported manifest version %d", version)
	}
	tag := CompressionTag(data[len(fileMagic)+1])
	size := binary.LittleEndian.Uint32(data[len(fileMagic)+2 : headerSize])

	payload, err := decompress(data[headerSize:], tag, int(size))
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	if err := codec.Unmarshal(payload, &m); err != nil {
		return Manifest{}, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, nil
}
