// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slicejob

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bureau-foundation/strata/lib/clock"
	"github.com/bureau-foundation/strata/lib/config"
	"github.com/bureau-foundation/strata/lib/engine"
	"github.com/bureau-foundation/strata/lib/export"
	"github.com/bureau-foundation/strata/lib/manifest"
	"github.com/bureau-foundation/strata/lib/metrics"
	"github.com/bureau-foundation/strata/lib/tailscan"
)

// ManifestDirectory is the subdirectory of the cache directory that
// holds job manifests.
const ManifestDirectory = "manifests"

// Options configures a Runner.
type Options struct {
	// CacheDir holds config files, G-code output, and lock files.
	// Required.
	CacheDir string

	// ScratchDir receives placeholder meshes. Defaults to CacheDir.
	ScratchDir string

	// PageSize is the tail scan window. Zero uses
	// tailscan.DefaultPageSize.
	PageSize int

	// CompletedSentinel is the text a complete engine output carries
	// near its end. Required.
	CompletedSentinel string

	// TrailerSentinel is written into the trailer header and detects
	// an existing trailer. Required.
	TrailerSentinel string

	// Product names the slicer in the trailer header.
	Product string

	// Engine produces G-code. Required.
	Engine engine.Runner

	// Registry maps settings to engine config lines. Nil uses
	// export.Default().
	Registry *export.Registry

	// Manifests records completed jobs. Nil disables recording.
	Manifests *manifest.Store

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// Clock stamps trailers and manifests. Nil uses the real clock.
	Clock clock.Clock

	// Logger may be nil.
	Logger *slog.Logger
}

// OptionsFromConfig fills the directory, cache, product, and manifest
// fields of Options from cfg. The caller supplies Engine and any
// observability fields.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	compression, err := manifest.ParseCompressionTag(cfg.Cache.ManifestCompression)
	if err != nil {
		return Options{}, fmt.Errorf("cache.manifest_compression: %w", err)
	}
	return Options{
		CacheDir:          cfg.Paths.Cache,
		ScratchDir:        cfg.Paths.Scratch,
		PageSize:          cfg.Cache.PageSize,
		CompletedSentinel: cfg.Cache.CompletedSentinel,
		TrailerSentinel:   cfg.Cache.TrailerSentinel,
		Product:           cfg.Product.Name,
		Manifests:         manifest.NewStore(filepath.Join(cfg.Paths.Cache, ManifestDirectory), compression),
	}, nil
}

func (o *Options) validate() error {
	var errs []error
	if o.CacheDir == "" {
		errs = append(errs, errors.New("cache directory is required"))
	}
	if o.CompletedSentinel == "" {
		errs = append(errs, errors.New("completed sentinel is required"))
	}
	if o.TrailerSentinel == "" {
		errs = append(errs, errors.New("trailer sentinel is required"))
	}
	if o.Engine == nil {
		errs = append(errs, errors.New("engine is required"))
	}
	return errors.Join(errs...)
}

func (o *Options) applyDefaults() {
	if o.ScratchDir == "" {
		o.ScratchDir = o.CacheDir
	}
	if o.PageSize <= 0 {
		o.PageSize = tailscan.DefaultPageSize
	}
	if o.Product == "" {
		o.Product = "Strata"
	}
	if o.Registry == nil {
		o.Registry = export.Default()
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}
