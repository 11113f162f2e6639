// Package config loads relschema settings. Precedence, highest first:
// flags > RELSCHEMA_* environment > relschema.yaml > defaults. A .env file
// next to the config file (or in the working directory) is loaded first and
// never overrides variables that are already set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "RELSCHEMA_"

// DefaultIgnoreTables are framework bookkeeping tables skipped when no table list is given
var DefaultIgnoreTables = []string{
	"migrations", "sessions", "cache", "cache_locks", "jobs", "failed_jobs", "password_reset_tokens",
}

var ErrNoConnection = errors.New("no database connection configured")

// Connection is a named database in the config file
type Connection struct {
	URL    string `koanf:"url"`
	Schema string `koanf:"schema"`
}

// Config holds all settings
type Config struct {
	URL          string                `koanf:"url"`
	Connection   string                `koanf:"connection"`
	Connections  map[string]Connection `koanf:"connections"`
	Schema       string                `koanf:"schema"`
	Tables       []string              `koanf:"tables"`
	Exclude      []string              `koanf:"exclude"`
	IgnoreTables []string              `koanf:"ignore_tables"`
	Concurrency  int                   `koanf:"concurrency"`
	Timeout      time.Duration         `koanf:"timeout"`
	CacheTTL     time.Duration         `koanf:"cache_ttl"`
	Format       string                `koanf:"format"`
	Output       string                `koanf:"output"`
	OutputDir    string                `koanf:"output_dir"`
	Verbose      bool                  `koanf:"verbose"`

	// File is the config file that was read, empty if none
	File string `koanf:"-"`
}

// listKeys are split on commas when they come from the environment
var listKeys = []string{"tables", "exclude", "ignore_tables"}

// findConfigFile returns the explicit path or the first relschema.y(a)ml in dir
func findConfigFile(explicit, dir string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"relschema.yaml", "relschema.yml"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Load reads configuration from dir (usually the working directory). flags
// may be nil; only flags that were explicitly set take part.
func Load(cfgFile, dir string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	configFile := findConfigFile(cfgFile, dir)

	// 1. .env, so file values and URLs can reference secrets
	envDir := dir
	if configFile != "" {
		envDir = filepath.Dir(configFile)
	}
	if err := loadDotEnv(filepath.Join(envDir, ".env")); err != nil {
		return nil, err
	}

	// 2. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"ignore_tables": DefaultIgnoreTables,
		"concurrency":   4,
		"timeout":       "30s",
		"cache_ttl":     "5m",
		"format":        "text",
		"verbose":       false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 3. Config file
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// 4. Environment: RELSCHEMA_IGNORE_TABLES -> ignore_tables
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if slices.Contains(listKeys, key) {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = configFile

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.Output != "" && c.OutputDir != "" {
		return errors.New("cannot use both output and output_dir")
	}
	if c.Connection != "" && c.URL == "" {
		if _, ok := c.Connections[c.Connection]; !ok {
			return fmt.Errorf("connection %q is not defined (available: %s)", c.Connection, strings.Join(c.ConnectionNames(), ", "))
		}
	}
	return nil
}

// ConnectionNames returns the configured connection names, sorted
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveConnection returns the database URL and schema to use. An explicit
// URL wins; otherwise the selected connection, or the only one defined.
// ${VAR} references are expanded.
func (c *Config) ResolveConnection() (url, schemaName string, err error) {
	if c.URL != "" {
		return expandEnvVars(c.URL), c.Schema, nil
	}

	name := c.Connection
	if name == "" {
		if len(c.Connections) != 1 {
			return "", "", ErrNoConnection
		}
		name = c.ConnectionNames()[0]
	}

	conn, ok := c.Connections[name]
	if !ok || conn.URL == "" {
		return "", "", fmt.Errorf("%w: connection %q has no url", ErrNoConnection, name)
	}

	schemaName = conn.Schema
	if c.Schema != "" {
		schemaName = c.Schema
	}
	return expandEnvVars(conn.URL), schemaName, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns, leaving unknown variables untouched
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
