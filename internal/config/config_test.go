package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, layout.X64, cfg.Architecture())
	assert.Equal(t, layout.Clang, cfg.Compiler())
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "text", cfg.Output.Format)

	ttl, err := cfg.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[analysis]
architecture = "x86"
compiler = "gcc"
flags = ["-std=c++20", "-DNDEBUG"]
jobs = 4

[cache]
enabled = false
ttl = "90m"

[history]
database = "history.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, layout.X86, cfg.Architecture())
	assert.Equal(t, layout.GCC, cfg.Compiler())
	assert.Equal(t, []string{"-std=c++20", "-DNDEBUG"}, cfg.Analysis.Flags)
	assert.Equal(t, 4, cfg.Analysis.Jobs)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "text", cfg.Output.Format, "missing keys keep defaults")
	assert.Equal(t, "auto", cfg.Output.Color)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "history.db"), cfg.HistoryPath())

	ttl, err := cfg.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, ttl)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"syntax", "[analysis\n", "failed to parse TOML"},
		{"unknown key", "[analysis]\narch = \"x64\"\n", "unknown keys: analysis.arch"},
		{"architecture", "[analysis]\narchitecture = \"arm\"\n", "[analysis].architecture"},
		{"compiler", "[analysis]\ncompiler = \"icc\"\n", "[analysis].compiler"},
		{"jobs", "[analysis]\njobs = -1\n", "[analysis].jobs"},
		{"ttl", "[cache]\nttl = \"soon\"\n", "[cache].ttl"},
		{"negative ttl", "[cache]\nttl = \"-1h\"\n", "[cache].ttl"},
		{"format", "[output]\nformat = \"xml\"\n", "[output].format"},
		{"color", "[output]\ncolor = \"always\"\n", "[output].color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := Discover(nested)
	require.NoError(t, err)
	assert.Empty(t, cfg.Path, "no file found, defaults")

	path := writeConfig(t, root, "[output]\nformat = \"json\"\n")
	cfg, err = Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestHistoryPath(t *testing.T) {
	assert.Empty(t, Config{}.HistoryPath())
	assert.Equal(t, "/var/h.db", Config{History: History{Database: "/var/h.db"}, Path: "/etc/structsight.toml"}.HistoryPath())
	assert.Equal(t, "h.db", Config{History: History{Database: "h.db"}}.HistoryPath())
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "example", FileName))
	require.NoError(t, err)
	assert.Equal(t, layout.GC, cfg.Compiler())
	assert.Equal(t, 24*time.Hour, mustTTL(t, cfg))
	assert.Equal(t, filepath.Join("..", "..", "example", ".structsight", "history.db"), cfg.HistoryPath())
}

func mustTTL(t *testing.T, cfg Config) time.Duration {
	t.Helper()
	d, err := cfg.CacheTTL()
	require.NoError(t, err)
	return d
}
