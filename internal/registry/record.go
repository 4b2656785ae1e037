// SPDX-License-Identifier: MPL-2.0

// Package registry is the canonical in-memory store of package records and
// configuration fields. It owns PackageRecord and PackageConfig
// exclusively; the loader and appliers read from it but never write to it.
package registry

type (
	// RefKind discriminates which of branch/tag/commit/none a Record's Ref
	// pins, modeled as a sum type rather than three optional strings.
	RefKind int

	// Ref pins a package to a branch, tag, commit, or nothing.
	Ref struct {
		Kind  RefKind
		Value string
	}

	// LoadMode selects when a package's entry point is sourced.
	LoadMode string

	// Record is one declared package.
	Record struct {
		// Name is the unique, validated package identifier.
		Name string
		// Source is the canonical URL or absolute filesystem path.
		Source string
		// Path is the on-disk location: a path under the managed packages
		// directory for remote packages, or Source itself for local ones.
		Path string
		// Ref pins at most one of branch/tag/commit.
		Ref Ref
		// Local is true when Source is a filesystem path.
		Local bool
		// URLOverride is the canonical URL used for updates when Local is
		// true, letting a local tree track a remote.
		URLOverride string
		// LoadMode is one of autoload, now, manual.
		LoadMode LoadMode
		// Build is an optional shell snippet run after install/update.
		Build string
		// Disabled excludes the record from resolution and loading while
		// keeping it around for diagnostics.
		Disabled bool
		// EntryOverride is an optional relative or absolute path to the
		// package's entry point.
		EntryOverride string
	}

	// Config is co-keyed with a Record.
	Config struct {
		// Env is an ordered list of "NAME=VALUE" strings.
		Env []string
		// Paths are directories prepended to the search path; relative
		// entries resolve against the record's Path.
		Paths []string
		// FPaths are directories prepended to the function search path.
		FPaths []string
		// Aliases is an ordered list of "name=value" strings.
		Aliases []string
		// Depends is an ordered list of "name" or "name@constraint"
		// dependency specifiers.
		Depends []string
		// RC is an optional shell snippet evaluated after entry-point
		// sourcing, with PKG_DIR/PKG_NAME injected.
		RC string
	}
)

const (
	// RefNone means the package floats on whatever ref a plain clone
	// lands on (the remote's default branch).
	RefNone RefKind = iota
	RefBranch
	RefTag
	RefCommit
)

const (
	// LoadAutoload defers sourcing to the caller (the default).
	LoadAutoload LoadMode = "autoload"
	// LoadNow sources the entry point as part of the loader's pass 2.
	LoadNow LoadMode = "now"
	// LoadManual excludes the package from automatic installation and
	// loading entirely.
	LoadManual LoadMode = "manual"
)

// String renders a Ref as it would appear in a declaration, e.g.
// "tag=v1.2.3", or "" when RefNone.
func (r Ref) String() string {
	switch r.Kind {
	case RefBranch:
		return "branch=" + r.Value
	case RefTag:
		return "tag=" + r.Value
	case RefCommit:
		return "commit=" + r.Value
	default:
		return ""
	}
}

// Clone returns a deep copy of the Config so callers can mutate a returned
// value without reaching back into the registry's storage.
func (c Config) Clone() Config {
	return Config{
		Env:     append([]string(nil), c.Env...),
		Paths:   append([]string(nil), c.Paths...),
		FPaths:  append([]string(nil), c.FPaths...),
		Aliases: append([]string(nil), c.Aliases...),
		Depends: append([]string(nil), c.Depends...),
		RC:      c.RC,
	}
}
