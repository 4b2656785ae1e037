// SPDX-License-Identifier: MPL-2.0

// Package config loads ambient settings.toml — orchestration knobs for
// the installer and VCS adapter, layered under XDG-style config paths.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

const (
	// AppName names the XDG config subdirectory.
	AppName = "packksh"
	// SettingsFileName is the settings file name without extension.
	SettingsFileName = "settings"
	// SettingsFileExt is the settings file format.
	SettingsFileExt = "toml"
	// EnvPrefix is the prefix recognized for environment variable
	// overrides, e.g. PACKKSH_CONCURRENCY.
	EnvPrefix = "PACKKSH"
)

// ConfigDir returns packksh's configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, Linux and others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var dir string
	switch runtime.GOOS {
	case "windows":
		dir = os.Getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default:
		dir = os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("get home directory: %w", err)
			}
			dir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(dir, AppName), nil
}

// PackagesDir returns the directory under which remote packages are
// cloned, $CONFIG/packksh/packages.
func PackagesDir() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, "packages"), nil
}

// PkgsDDir returns the aggregation-layer directory, $CONFIG/packksh/pkgs.d.
func PkgsDDir() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, "pkgs.d"), nil
}

// LockPath returns the default lockfile path, $CONFIG/packksh/pack.lock.
func LockPath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, "pack.lock"), nil
}

func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load settings canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("concurrency", defaults.Concurrency)
	v.SetDefault("default_branch_probe_order", defaults.DefaultBranchProbeOrder)
	v.SetDefault("shallow_depth", defaults.ShallowDepth)
	v.SetDefault("git_timeout_seconds", defaults.GitTimeoutSeconds)
	v.SetDefault("entry_suffix", defaults.EntrySuffix)

	resolvedPath := ""

	switch {
	case opts.ConfigFilePath != "":
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("read settings file %s: %w", opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath

	default:
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		candidate := filepath.Join(cfgDir, SettingsFileName+"."+SettingsFileExt)
		if fileExists(candidate) {
			v.SetConfigFile(candidate)
			if err := v.ReadInConfig(); err != nil {
				return nil, "", fmt.Errorf("read settings file %s: %w", candidate, err)
			}
			resolvedPath = candidate
		}
		// No settings file found: proceed with defaults and env overrides.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("parse settings: %w", err)
	}

	return &cfg, resolvedPath, nil
}

func configDirWithOverride(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return ConfigDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
