// SPDX-License-Identifier: MPL-2.0

// Package loader implements the two-pass install/load pipeline: a
// fan-out pass that submits clone tasks for missing packages, then an
// ordered drain pass that applies field effects and sources entry
// points in LoadOrder.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lane-core/pack.ksh/internal/appliers"
	"github.com/lane-core/pack.ksh/internal/hooks"
	"github.com/lane-core/pack.ksh/internal/installer"
	"github.com/lane-core/pack.ksh/internal/issuekind"
	"github.com/lane-core/pack.ksh/internal/registry"
	"github.com/lane-core/pack.ksh/internal/session"
	"github.com/lane-core/pack.ksh/internal/vcs"
)

// Cloner is the subset of *vcs.Adapter the loader depends on, so tests
// can substitute a fake that never touches the network.
type Cloner interface {
	Checkout(ctx context.Context, source, dest string, pin vcs.Pin) error
}

// EntrySuffix names the shell-specific suffix the entry-point search
// appends to init/plugin/<name> candidates. A configurable parameter
// rather than a hard-coded literal, since it depends on the host shell.
type EntrySuffix string

// Loader drives the two-pass pipeline over a Registry's LoadOrder.
type Loader struct {
	Registry *registry.Registry
	Session  session.HostSession
	Cloner   Cloner
	Hooks    *hooks.Bus
	Pool     *installer.Pool
	Suffix   EntrySuffix

	loaded map[string]bool
}

// New builds a Loader. suffix is the shell-specific entry-point suffix
// (e.g. "zsh"); an empty suffix matches bare "init"/"plugin"/"<name>"
// with no extension.
func New(reg *registry.Registry, sess session.HostSession, cloner Cloner, bus *hooks.Bus, pool *installer.Pool, suffix EntrySuffix) *Loader {
	return &Loader{
		Registry: reg,
		Session:  sess,
		Cloner:   cloner,
		Hooks:    bus,
		Pool:     pool,
		Suffix:   suffix,
		loaded:   make(map[string]bool),
	}
}

// Run executes both passes and returns a Summary of warnings/failures
// accumulated across the batch. Fires Ready once pass 2 completes,
// regardless of whether any package reported a failure.
func (l *Loader) Run(ctx context.Context) *issuekind.Summary {
	summary := &issuekind.Summary{}
	order := l.Registry.LoadOrder()

	futures := l.fanOut(ctx, order, summary)
	l.drain(ctx, order, futures, summary)

	l.Hooks.Fire(hooks.Ready)

	return summary
}

func (l *Loader) fanOut(ctx context.Context, order []string, summary *issuekind.Summary) map[string]*installer.Future {
	futures := make(map[string]*installer.Future)

	for _, name := range order {
		rec, ok := l.candidate(name)
		if !ok {
			continue
		}
		if rec.Local || !isURL(rec.Source) {
			continue
		}

		l.Hooks.Fire(hooks.PreInstall, name)

		var pin vcs.Pin
		switch rec.Ref.Kind {
		case registry.RefBranch:
			pin.Branch = rec.Ref.Value
		case registry.RefTag:
			pin.Tag = rec.Ref.Value
		case registry.RefCommit:
			pin.Commit = rec.Ref.Value
		}

		source := rec.Source
		if rec.URLOverride != "" {
			source = rec.URLOverride
		}
		dest := rec.Path

		futures[name] = l.Pool.Defer(name, func(ctx context.Context) error {
			return l.Cloner.Checkout(ctx, source, dest, pin)
		})
	}

	return futures
}

// candidate reports whether name needs pass-1 attention: not loaded, not
// disabled, not load_mode=manual, and its path absent on disk.
func (l *Loader) candidate(name string) (registry.Record, bool) {
	rec, _, ok := l.Registry.Lookup(name)
	if !ok || l.loaded[name] || rec.Disabled || rec.LoadMode == registry.LoadManual {
		return registry.Record{}, false
	}
	if pathExists(rec.Path) {
		return registry.Record{}, false
	}
	return rec, true
}

func (l *Loader) drain(ctx context.Context, order []string, futures map[string]*installer.Future, summary *issuekind.Summary) {
	for _, name := range order {
		rec, cfg, ok := l.Registry.Lookup(name)
		if !ok || rec.Disabled || rec.LoadMode == registry.LoadManual || l.loaded[name] {
			continue
		}

		if future, pending := futures[name]; pending {
			result := future.Await()
			if result.Err != nil {
				summary.AddFailure(&issuekind.VCSError{Name: name, Source: rec.Source, Message: result.Err.Error()})
				continue
			}
			l.Hooks.Fire(hooks.PostInstall, name)

			if err := appliers.ApplyBuild(ctx, l.Session, name, rec.Path, rec.Build); err != nil {
				summary.AddWarning(err)
			}
		} else if !rec.Local && !pathExists(rec.Path) {
			summary.AddFailure(&issuekind.VCSError{Name: name, Source: rec.Source, Message: "package directory missing"})
			continue
		}

		if err := appliers.ApplyAll(l.Session, rec.Path, cfg); err != nil {
			summary.AddFailure(fmt.Errorf("package %q: apply field effects: %w", name, err))
			continue
		}

		l.Hooks.Fire(hooks.PreLoad, name)

		if rec.LoadMode == registry.LoadNow {
			entry, found := l.findEntry(rec)
			if !found {
				summary.AddWarning(&issuekind.EntryMissingWarning{Name: name, SearchedAt: l.searchedCandidates(rec)})
			} else if err := l.Session.SourceScript(ctx, entry, nil); err != nil {
				summary.AddFailure(fmt.Errorf("package %q: source entry point: %w", name, err))
			}
		}

		if err := appliers.ApplyRC(ctx, l.Session, name, rec.Path, cfg); err != nil {
			summary.AddWarning(err)
		}

		l.Hooks.Fire(hooks.PostLoad, name)
		l.loaded[name] = true
	}
}

// findEntry resolves entry_override if set, else the first of
// init.<suffix>, plugin.<suffix>, <name>.<suffix> that exists under
// rec.Path. Absence is not an error.
func (l *Loader) findEntry(rec registry.Record) (string, bool) {
	if rec.EntryOverride != "" {
		path := rec.EntryOverride
		if !filepath.IsAbs(path) {
			path = filepath.Join(rec.Path, path)
		}
		if pathExists(path) {
			return path, true
		}
		return "", false
	}

	for _, candidate := range l.entryCandidates(rec.Name) {
		path := filepath.Join(rec.Path, candidate)
		if pathExists(path) {
			return path, true
		}
	}
	return "", false
}

func (l *Loader) entryCandidates(name string) []string {
	suffix := string(l.Suffix)
	if suffix == "" {
		return []string{"init", "plugin", name}
	}
	return []string{
		"init." + suffix,
		"plugin." + suffix,
		name + "." + suffix,
	}
}

func (l *Loader) searchedCandidates(rec registry.Record) []string {
	var out []string
	for _, candidate := range l.entryCandidates(rec.Name) {
		out = append(out, filepath.Join(rec.Path, candidate))
	}
	return out
}

func pathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func isURL(source string) bool {
	return strings.Contains(source, "://") || strings.HasPrefix(source, "git@")
}
