// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Embedded is a slicing engine linked into the current binary.
type Embedded interface {
	// Process parses commandLine exactly as the engine executable
	// would, runs the slice, and reports success. logLine receives
	// each line the engine would have printed.
	Process(commandLine string, logLine func(string)) bool

	// Stop asks a running Process call to return early. It may be
	// called from any goroutine, and when nothing is running.
	Stop()
}

// InProcess runs an embedded engine. Embedded engines keep global
// state, so InProcess runs one job at a time.
type InProcess struct {
	Engine Embedded

	// Logger receives engine failure details. Nil discards.
	Logger *slog.Logger

	mutex sync.Mutex
}

// Name implements Runner.
func (p *InProcess) Name() string { return "embedded" }

// Run implements Runner.
func (p *InProcess) Run(ctx context.Context, invocation Invocation, progress ProgressSink) (bool, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if ctx.Err() != nil {
		return false, cancelled(ctx)
	}

	stopWatching := context.AfterFunc(ctx, p.Engine.Stop)
	defer stopWatching()

	commandLine := invocation.CommandLine()
	succeeded := p.Engine.Process(commandLine, func(line string) {
		if ctx.Err() != nil {
			p.Engine.Stop()
			return
		}
		if parsed, ok := ParseProgress(line); ok && progress != nil {
			progress(parsed)
		}
	})

	if ctx.Err() != nil {
		return false, cancelled(ctx)
	}
	if !succeeded {
		orDiscard(p.Logger).Warn("embedded engine failed", "command_line", commandLine)
		return false, nil
	}
	return true, nil
}
