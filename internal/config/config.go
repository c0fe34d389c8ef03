// Package config loads structsight.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ieee-cs-bmsit/structsight/internal/cache"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

// FileName is the configuration file looked up from the working directory
// upwards.
const FileName = "structsight.toml"

// Config is the decoded configuration file.
type Config struct {
	Analysis Analysis `toml:"analysis"`
	Cache    Cache    `toml:"cache"`
	History  History  `toml:"history"`
	Output   Output   `toml:"output"`

	// Path of the file the values were read from, empty for defaults.
	Path string `toml:"-"`
}

type Analysis struct {
	Architecture string   `toml:"architecture"`
	Compiler     string   `toml:"compiler"`
	Flags        []string `toml:"flags"`
	Jobs         int      `toml:"jobs"` // 0 = GOMAXPROCS
}

type Cache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
	TTL     string `toml:"ttl"` // time.ParseDuration syntax
}

type History struct {
	Database string `toml:"database"` // Empty disables history
}

type Output struct {
	Format string `toml:"format"` // text | json
	Color  string `toml:"color"`  // auto | on | off
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Analysis: Analysis{
			Architecture: "x64",
			Compiler:     string(layout.Clang),
		},
		Cache: Cache{
			Enabled: true,
			TTL:     cache.DefaultTTL.String(),
		},
		Output: Output{
			Format: "text",
			Color:  "auto",
		},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path on top of the defaults. Keys missing from the file keep
// their default values; unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest configuration file above startDir, or the
// defaults when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate rejects values the rest of the program cannot interpret.
func (c Config) Validate() error {
	if _, err := layout.ParseArchitecture(c.Analysis.Architecture); err != nil {
		return fmt.Errorf("[analysis].architecture: %w", err)
	}
	if _, err := layout.ParseCompiler(c.Analysis.Compiler); err != nil {
		return fmt.Errorf("[analysis].compiler: %w", err)
	}
	if c.Analysis.Jobs < 0 {
		return fmt.Errorf("[analysis].jobs must not be negative, got %d", c.Analysis.Jobs)
	}
	if _, err := c.CacheTTL(); err != nil {
		return fmt.Errorf("[cache].ttl: %w", err)
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("[output].format must be text or json, got %q", c.Output.Format)
	}
	switch c.Output.Color {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("[output].color must be auto, on or off, got %q", c.Output.Color)
	}
	return nil
}

// Architecture returns the parsed target architecture.
func (c Config) Architecture() layout.Architecture {
	a, _ := layout.ParseArchitecture(c.Analysis.Architecture)
	return a
}

// Compiler returns the parsed compiler identity.
func (c Config) Compiler() layout.Compiler {
	comp, _ := layout.ParseCompiler(c.Analysis.Compiler)
	return comp
}

// CacheTTL returns the cache entry lifetime; empty selects the default.
func (c Config) CacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return cache.DefaultTTL, nil
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

// HistoryPath resolves the history database relative to the config file.
func (c Config) HistoryPath() string {
	p := c.History.Database
	if p == "" || filepath.IsAbs(p) || c.Path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.Path), filepath.FromSlash(p))
}
