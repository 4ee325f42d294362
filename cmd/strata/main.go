// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/strata/lib/config"
	"github.com/bureau-foundation/strata/lib/process"
	"github.com/bureau-foundation/strata/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return usageError("no command given")
	}

	switch args[0] {
	case "slice":
		return runSlice(args[1:], stdout, stderr)
	case "cache":
		return runCache(args[1:], stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "strata %s\n", version.Info())
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return usageError("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Strata slices 3D scenes into G-code.

Usage:
  strata slice --scene FILE [--settings FILE]... [--set KEY=VALUE]... [flags]
  strata cache list [flags]
  strata cache remove KEY [flags]
  strata version

Run "strata <command> --help" for command flags.
`)
}

func usageError(format string, args ...any) error {
	return &process.Exit{Status: 2, Err: fmt.Errorf(format, args...)}
}

// commonFlags are accepted by every command that touches the cache.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "configuration file (default: $STRATA_CONFIG, then built-in defaults)")
	flagSet.StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn, or error")
}

// parseFlags parses args into flagSet. It returns errHelpShown after
// printing help for --help.
func parseFlags(flagSet *pflag.FlagSet, args []string) error {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelpShown
		}
		return usageError("%v", err)
	}
	return nil
}

var errHelpShown = errors.New("help shown")

// loadConfig reads path, or STRATA_CONFIG when path is empty. With
// neither, the defaults apply.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
		if errors.Is(err, config.ErrNoConfig) {
			cfg, err = config.Default(), nil
		}
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
