// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/strata/lib/manifest"
	"github.com/bureau-foundation/strata/lib/slicejob"
)

func runCache(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usageError("usage: strata cache list|remove")
	}

	var common commonFlags
	flagSet := pflag.NewFlagSet("strata cache "+args[0], pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	common.register(flagSet)
	if err := parseFlags(flagSet, args[1:]); err != nil {
		if errors.Is(err, errHelpShown) {
			return nil
		}
		return err
	}

	logger, err := newLogger(stderr, common.logLevel)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(common.configPath)
	if err != nil {
		return err
	}
	options, err := slicejob.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	store := options.Manifests

	switch args[0] {
	case "list":
		if flagSet.NArg() > 0 {
			return usageError("unexpected argument %q", flagSet.Arg(0))
		}
		manifests, errs := store.List()
		for _, err := range errs {
			logger.Warn("skipping unreadable manifest", "error", err)
		}
		return printManifests(stdout, manifests)

	case "remove":
		if flagSet.NArg() != 1 {
			return usageError("usage: strata cache remove KEY")
		}
		return removeJob(store, flagSet.Arg(0))

	default:
		return usageError("unknown cache command %q", args[0])
	}
}

func printManifests(w io.Writer, manifests []manifest.Manifest) error {
	renderer := lipgloss.NewRenderer(w)
	headerStyle := renderer.NewStyle().Bold(true).PaddingRight(2)
	cellStyle := renderer.NewStyle().PaddingRight(2)

	listing := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("KEY", "COMPLETED", "MESHES", "EXTRUDERS", "SIZE", "ENGINE", "OUTPUT")

	for _, m := range manifests {
		listing.Row(
			shortKey(m.Key),
			m.CompletedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprint(m.MeshCount),
			formatExtruders(m.ExtrudersUsed),
			fmt.Sprint(m.OutputSize),
			m.Engine,
			m.OutputPath,
		)
	}
	_, err := fmt.Fprintln(w, listing.Render())
	return err
}

// removeJob deletes a job's output, config, and manifest. key may be
// any unambiguous prefix of the full job key.
func removeJob(store *manifest.Store, key string) error {
	manifests, _ := store.List()
	var matches []manifest.Manifest
	for _, m := range manifests {
		if strings.HasPrefix(m.Key, key) {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		return fmt.Errorf("%w: %s", manifest.ErrNotFound, key)
	case 1:
	default:
		return fmt.Errorf("key prefix %q matches %d jobs", key, len(matches))
	}

	m := matches[0]
	for _, path := range []string{m.OutputPath, m.ConfigPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return store.Remove(m.Key)
}

func shortKey(key string) string {
	if len(key) > 16 {
		return key[:16]
	}
	return key
}

// formatExtruders renders usage as the indices of used extruders,
// "T0,T2".
func formatExtruders(used []bool) string {
	var names []string
	for index, inUse := range used {
		if inUse {
			names = append(names, fmt.Sprintf("T%d", index))
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}
