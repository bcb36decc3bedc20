package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/pebble/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyMaxEntries    = "max_entries"
	cfgKeyMaxBytes      = "max_bytes"
	cfgKeyCaseSensitive = "case_sensitive"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# pebble configuration

# Storage backend: jsonl or sqlite
backend: jsonl

# Data directory (optional; relative paths are taken from this directory)
# data_dir:

# Limits given to new tables whose definition sets none. 0 keeps the
# built-in defaults.
max_entries: 0
max_bytes: 0

# Compare strings in filters and queries exactly.
case_sensitive: false
`

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run.
func loadConfig(configDir string) (types.Config, error) {
	var cfg types.Config
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return cfg, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return cfg, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendJSONL)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyMaxEntries, 0)
	v.SetDefault(cfgKeyMaxBytes, 0)
	v.SetDefault(cfgKeyCaseSensitive, false)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// ensureDefaultConfigFile creates config.yaml if it does not exist.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
