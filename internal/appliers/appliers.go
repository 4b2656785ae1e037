// SPDX-License-Identifier: MPL-2.0

// Package appliers projects a package's declared env/path/alias/fpath/rc
// fields onto a HostSession, in a fixed order: env, then path, then
// alias, then fpath. Each applier is idempotent per (package, session)
// and silently no-ops on empty fields.
package appliers

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/lane-core/pack.ksh/internal/issuekind"
	"github.com/lane-core/pack.ksh/internal/registry"
	"github.com/lane-core/pack.ksh/internal/session"
)

// ApplyEnv exports every "NAME=VALUE" entry in cfg.Env. The package may
// overwrite any variable already set (no protection against clobbering).
func ApplyEnv(sess session.HostSession, cfg registry.Config) error {
	for _, entry := range cfg.Env {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if err := sess.ExportEnv(name, value); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPath prepends every directory in cfg.Paths to the session's search
// path. Relative entries resolve against packagePath. Directories that do
// not exist on disk are skipped, not reported as an error.
func ApplyPath(sess session.HostSession, packagePath string, cfg registry.Config) error {
	for _, dir := range cfg.Paths {
		resolved := resolve(packagePath, dir)
		if !isDir(resolved) {
			continue
		}
		if err := sess.PrependSearchPath(resolved); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAlias defines every "name=value" pair in cfg.Aliases.
func ApplyAlias(sess session.HostSession, cfg registry.Config) error {
	for _, entry := range cfg.Aliases {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if err := sess.AddAlias(name, value); err != nil {
			return err
		}
	}
	return nil
}

// ApplyFPath registers every non-hidden file within each directory in
// cfg.FPaths for autoload under its basename with the source-file suffix
// stripped; each registration puts that directory at the front of the
// function search path. A directory that cannot be read, or that holds
// no such file, is not added to the search path.
func ApplyFPath(sess session.HostSession, packagePath string, cfg registry.Config) error {
	for _, dir := range cfg.FPaths {
		resolved := resolve(packagePath, dir)
		entries, err := os.ReadDir(resolved)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			if err := sess.RegisterAutoload(resolved, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyRC evaluates cfg.RC in the session with PKG_DIR/PKG_NAME injected.
// Failure is reported as a RcFailureWarning, never fatal to the caller.
func ApplyRC(ctx context.Context, sess session.HostSession, pkgName, packagePath string, cfg registry.Config) error {
	if strings.TrimSpace(cfg.RC) == "" {
		return nil
	}
	env := map[string]string{
		"PKG_DIR":  packagePath,
		"PKG_NAME": pkgName,
	}
	if err := sess.EvalSnippet(ctx, cfg.RC, env); err != nil {
		return &issuekind.RcFailureWarning{Name: pkgName, Message: err.Error()}
	}
	return nil
}

// ApplyBuild evaluates build in the session with PKG_DIR/PKG_NAME
// injected, the same as ApplyRC. Callers run it once per fresh clone or
// update, never on every load. Failure is reported as a
// BuildFailureWarning, never fatal to the caller.
func ApplyBuild(ctx context.Context, sess session.HostSession, pkgName, packagePath, build string) error {
	if strings.TrimSpace(build) == "" {
		return nil
	}
	env := map[string]string{
		"PKG_DIR":  packagePath,
		"PKG_NAME": pkgName,
	}
	if err := sess.EvalSnippet(ctx, build, env); err != nil {
		return &issuekind.BuildFailureWarning{Name: pkgName, Message: err.Error()}
	}
	return nil
}

// ApplyAll runs every applier in the fixed order env -> path -> alias ->
// fpath, stopping at the first fatal error. The rc and build appliers are
// intentionally excluded: rc runs separately after entry-point sourcing,
// and build runs only after a fresh clone or update; both report failure
// as a warning rather than a pipeline abort.
func ApplyAll(sess session.HostSession, packagePath string, cfg registry.Config) error {
	if err := ApplyEnv(sess, cfg); err != nil {
		return err
	}
	if err := ApplyPath(sess, packagePath, cfg); err != nil {
		return err
	}
	if err := ApplyAlias(sess, cfg); err != nil {
		return err
	}
	if err := ApplyFPath(sess, packagePath, cfg); err != nil {
		return err
	}
	return nil
}

func resolve(base, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
