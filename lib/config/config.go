// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrNoConfig is returned by Load when STRATA_CONFIG is not set.
var ErrNoConfig = errors.New("STRATA_CONFIG environment variable not set")

// Engine modes.
const (
	// EngineSubprocess runs the engine executable as a child process.
	EngineSubprocess = "subprocess"
	// EngineEmbedded calls an engine linked into the current binary.
	EngineEmbedded = "embedded"
)

// Manifest compression algorithms.
const (
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
	CompressionNone = "none"
)

// Config is the master configuration for Strata.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Engine selects and configures the slicing engine.
	Engine EngineConfig `yaml:"engine"`

	// Cache configures output validation and job manifests.
	Cache CacheConfig `yaml:"cache"`

	// Product is stamped into the settings trailer of every G-code
	// file.
	Product ProductConfig `yaml:"product"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Strata data.
	Root string `yaml:"root"`

	// Cache holds config files, G-code output, lock files, and
	// manifests, all named by content key.
	Cache string `yaml:"cache"`

	// Scratch holds per-job temporary meshes such as the placeholder
	// cube.
	Scratch string `yaml:"scratch"`

	// Bin is searched for the engine executable before PATH.
	Bin string `yaml:"bin"`
}

// EngineConfig configures the slicing engine.
type EngineConfig struct {
	// Mode is EngineSubprocess or EngineEmbedded.
	// Default: subprocess
	Mode string `yaml:"mode"`

	// Path is the engine executable for subprocess mode. A bare name
	// is resolved through Paths.Bin and then PATH.
	// Default: strata-engine
	Path string `yaml:"path"`

	// StderrLimit is how many trailing bytes of engine stderr are
	// kept for failure logs.
	// Default: 65536
	StderrLimit int `yaml:"stderr_limit"`
}

// CacheConfig configures output validation.
type CacheConfig struct {
	// PageSize is the tail scan window in bytes.
	// Default: 4096
	PageSize int `yaml:"page_size"`

	// CompletedSentinel is the text the engine writes near the end of
	// a complete G-code file.
	CompletedSentinel string `yaml:"completed_sentinel"`

	// TrailerSentinel marks a G-code file whose settings trailer has
	// already been appended.
	TrailerSentinel string `yaml:"trailer_sentinel"`

	// ManifestCompression is zstd, lz4, or none.
	// Default: zstd
	ManifestCompression string `yaml:"manifest_compression"`
}

// ProductConfig names the product in trailers.
type ProductConfig struct {
	// Name defaults to Strata.
	Name string `yaml:"name"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "strata")

	return &Config{
		Paths: PathsConfig{
			Root:    defaultRoot,
			Cache:   filepath.Join(defaultRoot, "cache"),
			Scratch: filepath.Join(defaultRoot, "scratch"),
			Bin:     filepath.Join(defaultRoot, "bin"),
		},
		Engine: EngineConfig{
			Mode:        EngineSubprocess,
			Path:        "strata-engine",
			StderrLimit: 64 * 1024,
		},
		Cache: CacheConfig{
			PageSize:            4096,
			CompletedSentinel:   "; Slicing completed successfully",
			TrailerSentinel:     "GCode settings used",
			ManifestCompression: CompressionZstd,
		},
		Product: ProductConfig{
			Name: "Strata",
		},
	}
}

// Load loads configuration from the STRATA_CONFIG environment
// variable. It returns ErrNoConfig when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv("STRATA_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("%w; set it to the path of your strata.yaml config file, or use --config flag", ErrNoConfig)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Values in
// the file are merged over Default, then path variables are expanded.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"STRATA_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["STRATA_ROOT"] = c.Paths.Root

	c.Paths.Cache = expandVars(c.Paths.Cache, vars)
	c.Paths.Scratch = expandVars(c.Paths.Scratch, vars)
	c.Paths.Bin = expandVars(c.Paths.Bin, vars)
	c.Engine.Path = expandVars(c.Engine.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Cache == "" {
		errs = append(errs, fmt.Errorf("paths.cache is required"))
	}
	if c.Paths.Scratch == "" {
		errs = append(errs, fmt.Errorf("paths.scratch is required"))
	}

	switch c.Engine.Mode {
	case EngineSubprocess:
		if c.Engine.Path == "" {
			errs = append(errs, fmt.Errorf("engine.path is required in %s mode", EngineSubprocess))
		}
	case EngineEmbedded:
	default:
		errs = append(errs, fmt.Errorf("engine.mode must be one of: %v", []string{EngineSubprocess, EngineEmbedded}))
	}
	if c.Engine.StderrLimit < 0 {
		errs = append(errs, fmt.Errorf("engine.stderr_limit must not be negative"))
	}

	if c.Cache.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("cache.page_size must be positive"))
	}
	if c.Cache.CompletedSentinel == "" {
		errs = append(errs, fmt.Errorf("cache.completed_sentinel is required"))
	}
	if c.Cache.TrailerSentinel == "" {
		errs = append(errs, fmt.Errorf("cache.trailer_sentinel is required"))
	}
	compressions := []string{CompressionZstd, CompressionLZ4, CompressionNone}
	if !contains(compressions, c.Cache.ManifestCompression) {
		errs = append(errs, fmt.Errorf("cache.manifest_compression must be one of: %v", compressions))
	}

	if c.Product.Name == "" {
		errs = append(errs, fmt.Errorf("product.name is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Cache,
		c.Paths.Scratch,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// EnginePath resolves Engine.Path to an executable. Paths containing
// a separator are used as given. Bare names are looked up in
// Paths.Bin first, then PATH.
func (c *Config) EnginePath() (string, error) {
	name := c.Engine.Path
	if filepath.Base(name) != name {
		return name, nil
	}

	if c.Paths.Bin != "" {
		binPath := filepath.Join(c.Paths.Bin, name)
		if _, err := os.Stat(binPath); err == nil {
			return binPath, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		if c.Paths.Bin != "" {
			return "", fmt.Errorf("%s not found in %s or PATH", name, c.Paths.Bin)
		}
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}
