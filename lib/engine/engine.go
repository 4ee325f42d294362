// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/strata/lib/config"
)

// Invocation names the files of one engine run.
type Invocation struct {
	OutputPath string
	ConfigPath string
}

// Args returns the engine's argument vector.
func (i Invocation) Args() []string {
	return []string{"-v", "-o", i.OutputPath, "-c", i.ConfigPath}
}

// CommandLine returns the arguments as a single quoted string, the
// form embedded engines parse.
func (i Invocation) CommandLine() string {
	return `-v -o "` + i.OutputPath + `" -c "` + i.ConfigPath + `"`
}

// ProgressSink receives parsed progress. It is called on the goroutine
// running the engine and must not block for long.
type ProgressSink func(Progress)

// Runner runs the engine for one invocation.
type Runner interface {
	Run(ctx context.Context, invocation Invocation, progress ProgressSink) (bool, error)
	Name() string
}

// New returns the runner selected by cfg. embedded is required in
// embedded mode and ignored otherwise. enginePath is the resolved
// executable for subprocess mode.
func New(cfg config.EngineConfig, enginePath string, embedded Embedded, logger *slog.Logger) (Runner, error) {
	switch cfg.Mode {
	case "", config.EngineSubprocess:
		if enginePath == "" {
			return nil, errors.New("subprocess engine requires an executable path")
		}
		return &Subprocess{Path: enginePath, StderrLimit: cfg.StderrLimit, Logger: logger}, nil
	case config.EngineEmbedded:
		if embedded == nil {
			return nil, errors.New("embedded engine mode configured but no engine is linked into this binary")
		}
		return &InProcess{Engine: embedded, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown engine mode %q", cfg.Mode)
	}
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("engine cancelled: %w", context.Cause(ctx))
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
