// Package paths resolves where pebble keeps its configuration file and its
// table data.
package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directory under the platform config root.
const AppName = "pebble"

// Working-directory names used when nothing else is configured.
const (
	DefaultConfigDirName = ".pebble"
	DefaultDataDirName   = ".pebble-db"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "PEBBLE_CONFIG_DIR"
	EnvDataDir   = "PEBBLE_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultConfigDir returns the per-user configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/pebble (fallback ~/.config/pebble)
// macOS:   ~/Library/Application Support/pebble
// Windows: %APPDATA%/pebble
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// ResolveConfigDir returns the configuration directory:
// flag > PEBBLE_CONFIG_DIR > ./.pebble if it exists > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	local := filepath.Join(cwd, DefaultConfigDirName)
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local, nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory:
// flag > configured (the config file's data_dir) > PEBBLE_DATA_DIR >
// ./.pebble-db. A relative configured value is taken relative to configDir
// so the config file can move with its data.
func ResolveDataDir(flag, configured, configDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configured != "" {
		if !filepath.IsAbs(configured) && configDir != "" {
			return filepath.Join(configDir, configured), nil
		}
		return filepath.Abs(configured)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}
