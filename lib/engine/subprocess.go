// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// waitDelay bounds how long Wait blocks on output pipes after the
// process group has been killed.
const waitDelay = 5 * time.Second

// maxLineLength is the longest stdout line parsed as progress.
const maxLineLength = 1024 * 1024

// Subprocess runs the engine as a child process.
type Subprocess struct {
	// Path is the engine executable.
	Path string

	// StderrLimit is how many trailing stderr bytes to keep. Zero
	// means DefaultStderrLimit.
	StderrLimit int

	// Logger receives engine failure details. Nil discards.
	Logger *slog.Logger
}

// Name implements Runner.
func (s *Subprocess) Name() string { return "subprocess" }

// Run implements Runner.
//
// The engine runs in its own process group so that killing it also
// kills anything it spawned; otherwise a surviving child holds the
// stdout pipe open and Run cannot return.
func (s *Subprocess) Run(ctx context.Context, invocation Invocation, progress ProgressSink) (bool, error) {
	if ctx.Err() != nil {
		return false, cancelled(ctx)
	}
	logger := orDiscard(s.Logger)

	cmd := exec.CommandContext(ctx, s.Path, invocation.Args()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	stderr := newTailBuffer(s.StderrLimit)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return false, fmt.Errorf("creating engine stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("starting engine %s: %w", s.Path, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		if ctx.Err() != nil {
			killGroup(cmd)
			break
		}
		if parsed, ok := ParseProgress(scanner.Text()); ok && progress != nil {
			progress(parsed)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		// An overlong line stops progress parsing; the engine itself
		// keeps running and its exit status still decides the outcome.
		logger.Warn("engine output unreadable", "engine", s.Path, "error", err)
		io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return false, cancelled(ctx)
	}
	if waitErr != nil {
		var exitError *exec.ExitError
		if !errors.As(waitErr, &exitError) {
			return false, fmt.Errorf("waiting for engine: %w", waitErr)
		}
		logger.Warn("engine failed",
			"engine", s.Path,
			"exit_code", exitError.ExitCode(),
			"stderr", string(stderr.Bytes()),
			"stderr_truncated", stderr.Truncated(),
		)
		return false, nil
	}
	return true, nil
}

// killGroup sends SIGKILL to the engine's whole process group.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
