// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	maxWalkDepth = 25
)

// Config represents the fenix configuration from fenix.yaml.
type Config struct {
	Documents DocumentsConfig `mapstructure:"documents" json:"documents"`
	Handlers  HandlersConfig  `mapstructure:"handlers" json:"handlers"`
	Cache     CacheConfig     `mapstructure:"cache" json:"cache"`
	Debug     bool            `mapstructure:"debug" json:"debug"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

// DocumentsConfig lists the directories holding template documents.
type DocumentsConfig struct {
	Dirs []string `mapstructure:"dirs" json:"dirs"`
}

// HandlersConfig lists the directories holding handler descriptors.
type HandlersConfig struct {
	Dirs []string `mapstructure:"dirs" json:"dirs"`
}

// CacheConfig bounds the expression caches of the engine.
type CacheConfig struct {
	Size int `mapstructure:"size" json:"size"`
	// TTL is a duration such as "30m".
	TTL string `mapstructure:"ttl" json:"ttl"`
}

// LogConfig selects the level and format of the logs written to stderr.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// env > config file > defaults. Flags are applied by the commands.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("FENIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, configPath, err
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("documents.dirs", []string{"."})
	v.SetDefault("handlers.dirs", []string{})

	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", "30m")

	v.SetDefault("debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks the values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// CacheTTL returns cache.ttl as a duration.
func (c *Config) CacheTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("cache.ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	return d, nil
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for fenix.yaml or fenix.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"fenix.yaml", "fenix.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Stop at the repository root.
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}
