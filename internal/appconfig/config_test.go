// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
	if len(cfg.DefaultBranchProbeOrder) != 2 {
		t.Errorf("DefaultBranchProbeOrder = %v", cfg.DefaultBranchProbeOrder)
	}
	if cfg.ShallowDepth != 1 {
		t.Errorf("ShallowDepth = %d, want 1", cfg.ShallowDepth)
	}
}

func TestLoadWithOptions_NoFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, path, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty when no settings file exists", path)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want default 4", cfg.Concurrency)
	}
}

func TestLoadWithOptions_ReadsSettingsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := "concurrency = 8\nshallow_depth = 2\n"
	if err := os.WriteFile(filepath.Join(dir, "settings.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("path empty, want the resolved settings file")
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.Concurrency)
	}
	if cfg.ShallowDepth != 2 {
		t.Errorf("ShallowDepth = %d, want 2", cfg.ShallowDepth)
	}
}

func TestLoadWithOptions_EnvOverride(t *testing.T) {
	t.Setenv("PACKKSH_CONCURRENCY", "16")

	cfg, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Concurrency != 16 {
		t.Errorf("Concurrency = %d, want 16 from env override", cfg.Concurrency)
	}
}

func TestLoadWithOptions_MissingExplicitFileErrors(t *testing.T) {
	t.Parallel()

	_, _, err := loadWithOptions(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.toml"),
	})
	if err == nil {
		t.Fatal("want an error for a missing explicit settings file")
	}
}

func TestConfigDir_RespectsOverride(t *testing.T) {
	SetConfigDirOverride("/tmp/packksh-test-config")
	defer Reset()

	dir, err := ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/packksh-test-config" {
		t.Errorf("ConfigDir = %q", dir)
	}
}

func TestPackagesDir_UnderConfigDir(t *testing.T) {
	SetConfigDirOverride("/tmp/packksh-test-config")
	defer Reset()

	dir, err := PackagesDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/packksh-test-config", "packages") {
		t.Errorf("PackagesDir = %q", dir)
	}
}

func TestProvider_Load(t *testing.T) {
	t.Parallel()

	p := NewProvider()
	cfg, err := p.Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if cfg == nil {
		t.Fatal("cfg is nil")
	}
}
