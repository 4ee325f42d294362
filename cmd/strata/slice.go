// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/strata/lib/config"
	"github.com/bureau-foundation/strata/lib/engine"
	"github.com/bureau-foundation/strata/lib/metrics"
	"github.com/bureau-foundation/strata/lib/process"
	"github.com/bureau-foundation/strata/lib/slicejob"
)

type sliceFlags struct {
	common        commonFlags
	settingsPaths []string
	overrides     []string
	scenePath     string
	outputPath    string
	metricsPath   string
	quiet         bool
}

func runSlice(args []string, stdout, stderr io.Writer) error {
	var flags sliceFlags
	flagSet := pflag.NewFlagSet("strata slice", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flags.common.register(flagSet)
	flagSet.StringArrayVarP(&flags.settingsPaths, "settings", "s", nil, "JSONC settings layer, lowest priority first (repeatable)")
	flagSet.StringArrayVar(&flags.overrides, "set", nil, "override one setting as key=value (repeatable)")
	flagSet.StringVar(&flags.scenePath, "scene", "", "JSONC scene file (required)")
	flagSet.StringVarP(&flags.outputPath, "output", "o", "", "G-code path (default: content-addressed file in the cache)")
	flagSet.StringVar(&flags.metricsPath, "metrics-textfile", "", "write Prometheus metrics here after the job")
	flagSet.BoolVarP(&flags.quiet, "quiet", "q", false, "suppress progress output")

	if err := parseFlags(flagSet, args); err != nil {
		if errors.Is(err, errHelpShown) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return usageError("unexpected argument %q", flagSet.Arg(0))
	}
	if flags.scenePath == "" {
		return usageError("--scene is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return slice(ctx, flags, stdout, stderr)
}

func slice(ctx context.Context, flags sliceFlags, stdout, stderr io.Writer) error {
	logger, err := newLogger(stderr, flags.common.logLevel)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(flags.common.configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	table, err := loadSettings(flags.settingsPaths, flags.overrides)
	if err != nil {
		return err
	}
	scene, err := loadScene(flags.scenePath)
	if err != nil {
		return err
	}

	var enginePath string
	if cfg.Engine.Mode == config.EngineSubprocess {
		enginePath, err = cfg.EnginePath()
		if err != nil {
			return err
		}
	}
	// No engine is linked into this binary, so embedded mode is a
	// configuration error reported by engine.New.
	engineRunner, err := engine.New(cfg.Engine, enginePath, nil, logger)
	if err != nil {
		return err
	}

	options, err := slicejob.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	collectors := metrics.New()
	options.Engine = engineRunner
	options.Metrics = collectors
	options.Logger = logger
	runner, err := slicejob.New(options)
	if err != nil {
		return err
	}

	printer := newProgressPrinter(stderr, flags.quiet)
	result := runner.Slice(ctx, slicejob.Request{
		Table:      table,
		Scene:      scene,
		OutputPath: flags.outputPath,
		Progress:   printer.Report,
	})
	printer.Finish()

	if flags.metricsPath != "" {
		if err := collectors.WriteTextfile(flags.metricsPath); err != nil {
			logger.Warn("writing metrics", "path", flags.metricsPath, "error", err)
		}
	}

	switch result.State {
	case slicejob.StateSucceeded:
		if result.CacheHit {
			logger.Info("output already up to date", "path", result.OutputPath)
		}
		fmt.Fprintln(stdout, result.OutputPath)
		return nil
	case slicejob.StateCancelled:
		return &process.Exit{Status: 130, Err: fmt.Errorf("slice cancelled: %w", result.Err)}
	default:
		return &process.Exit{Status: 1, Err: fmt.Errorf("slice failed: %w", result.Err)}
	}
}
