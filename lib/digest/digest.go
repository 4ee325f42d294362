// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 hash.
type Digest [32]byte

// String returns the hex encoding of the digest.
func (d Digest) String() string { return Format(d) }

// Short returns the first 16 hex characters, enough to name cache
// files without unwieldy paths.
func (d Digest) Short() string { return Format(d)[:16] }

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool { return d == Digest{} }

type domainKey [32]byte

// Domain separation keys: ASCII domain names zero-padded to 32 bytes.
// Changing one invalidates every cached file in that domain.
var (
	settingsDomainKey = domainKey{
		's', 't', 'r', 'a', 't', 'a', '.', 's', 'e', 't', 't', 'i', 'n', 'g', 's', 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	jobDomainKey = domainKey{
		's', 't', 'r', 'a', 't', 'a', '.', 'j', 'o', 'b', 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	fileDomainKey = domainKey{
		's', 't', 'r', 'a', 't', 'a', '.', 'f', 'i', 'l', 'e', 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// Settings hashes an encoded settings snapshot.
func Settings(encoded []byte) Digest {
	return keyedHash(settingsDomainKey, encoded)
}

// Job combines a settings digest with an encoded scene fingerprint.
func Job(settings Digest, scene []byte) Digest {
	hasher := newKeyed(jobDomainKey)
	hasher.Write(settings[:])
	hasher.Write(scene)
	return sum(hasher)
}

// File streams the file at path through the file-domain hash with
// constant memory.
func File(path string) (Digest, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := newKeyed(fileDomainKey)
	size, err := io.Copy(hasher, file)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return sum(hasher), size, nil
}

// Format returns the lowercase hex encoding of d.
func Format(d Digest) string {
	return hex.EncodeToString(d[:])
}

// Parse decodes a 64-character hex digest.
func Parse(text string) (Digest, error) {
	var d Digest
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return d, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != len(d) {
		return d, fmt.Errorf("digest is %d bytes, want %d", len(decoded), len(d))
	}
	copy(d[:], decoded)
	return d, nil
}

func keyedHash(key domainKey, data []byte) Digest {
	hasher := newKeyed(key)
	hasher.Write(data)
	return sum(hasher)
}

func newKeyed(key domainKey) *blake3.Hasher {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("digest: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

func sum(hasher *blake3.Hasher) Digest {
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}
