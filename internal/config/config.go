package config

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/plugreg/plugreg/internal/appfs"
)

// Config holds tool-wide settings. Everything has a sensible default so a
// bare CI checkout needs no config file at all.
type Config struct {
	// Registry is the conventional registry file location.
	Registry string       `toml:"registry"`
	LogLevel string       `toml:"log_level"`
	GitHub   GitHubConfig `toml:"github"`
	Scan     ScanConfig   `toml:"scan"`
}

// GitHubConfig holds hosting API settings. The token here is a fallback;
// the GITHUB_TOKEN environment variable takes precedence in the CLI.
type GitHubConfig struct {
	APIURL string `toml:"api_url"`
	Token  string `toml:"token"`
}

// ScanConfig holds archive scanner settings.
type ScanConfig struct {
	// CachePath is the scan verdict database. Empty means the default
	// cache directory.
	CachePath string `toml:"cache_path"`
	// CacheDays is how long a verdict is reused before the archive is
	// fetched and scanned again.
	CacheDays int `toml:"cache_days"`
	// MaxArchiveBytes caps how much of an archive member is read.
	MaxArchiveBytes int64 `toml:"max_archive_bytes"`
	// Rules replaces the built-in suspicious pattern set when non-empty.
	Rules []RuleConfig `toml:"rules"`
}

// RuleConfig is one scanner rule as written in the config file.
type RuleConfig struct {
	Name     string `toml:"name"`
	Pattern  string `toml:"pattern"`
	Severity string `toml:"severity"`
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(appfs.ConfigDir(), "config.toml")
}

// Load reads and parses a TOML config file.
// Returns a default Config if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Registry: "plugins.v4.json",
		LogLevel: "info",
		Scan: ScanConfig{
			CacheDays:       30,
			MaxArchiveBytes: 64 * 1024 * 1024,
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}
