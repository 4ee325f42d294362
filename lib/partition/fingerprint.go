// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package partition

import (
	"fmt"

	"github.com/bureau-foundation/strata/lib/codec"
	"github.com/bureau-foundation/strata/lib/digest"
)

// fingerprintItem is the CBOR shape of one item in a scene
// fingerprint. Content is the file digest of the mesh so that editing
// an STL in place invalidates cached output; missing files contribute
// a zero digest and are dropped by Partition anyway.
type fingerprintItem struct {
	Path             string        `cbor:"path"`
	Content          digest.Digest `cbor:"content"`
	World            [16]float64   `cbor:"world"`
	Material         int           `cbor:"material"`
	Role             string        `cbor:"role"`
	GeneratedSupport bool          `cbor:"generated_support,omitempty"`
}

// Fingerprint returns a deterministic encoding of everything in scene
// that affects the engine's output. Two scenes with equal fingerprints
// slice identically under the same settings.
func Fingerprint(scene Scene) ([]byte, error) {
	items := scene.Items()
	encoded := make([]fingerprintItem, len(items))
	for index, item := range items {
		content, _, err := digest.File(item.MeshPath)
		if err != nil {
			content = digest.Digest{}
		}
		encoded[index] = fingerprintItem{
			Path:             item.MeshPath,
			Content:          content,
			World:            item.World,
			Material:         item.MaterialIndex,
			Role:             item.Role.String(),
			GeneratedSupport: item.GeneratedSupport,
		}
	}
	data, err := codec.Marshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("encoding scene fingerprint: %w", err)
	}
	return data, nil
}
