// SPDX-License-Identifier: MPL-2.0

package config

// Config holds the ambient orchestration settings — knobs for how the
// installer and VCS adapter behave, not package declarations (those stay
// in the three-layer ingestion model).
type Config struct {
	// Concurrency bounds the installer's parallel clone fan-out.
	Concurrency int `mapstructure:"concurrency"`
	// DefaultBranchProbeOrder lists candidate default-branch names tried,
	// in order, when cloning a package with no pinned ref.
	DefaultBranchProbeOrder []string `mapstructure:"default_branch_probe_order"`
	// ShallowDepth is the clone depth used for tag/branch pins.
	ShallowDepth int `mapstructure:"shallow_depth"`
	// GitTimeoutSeconds bounds any single VCS operation.
	GitTimeoutSeconds int `mapstructure:"git_timeout_seconds"`
	// EntrySuffix is the shell-specific extension the loader's entry-point
	// search appends to "init"/"plugin"/<name> candidates; empty means bare
	// names with no extension.
	EntrySuffix string `mapstructure:"entry_suffix"`
}

// DefaultConfig returns the settings used when no settings file or
// environment override is present.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:             4,
		DefaultBranchProbeOrder: []string{"main", "master"},
		ShallowDepth:            1,
		GitTimeoutSeconds:       30,
		EntrySuffix:             "",
	}
}
