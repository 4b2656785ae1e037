// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/lane-core/pack.ksh/internal/issuekind"
	"github.com/lane-core/pack.ksh/internal/source"
)

// PackagesDirFunc resolves the on-disk directory for a remote package's
// working tree, given its derived name. Injected so the registry never
// hard-codes the managed packages directory (kept in internal/appconfig).
type PackagesDirFunc func(name string) string

type entry struct {
	record Record
	config Config
}

// Registry is the canonical in-memory store of package records and
// configuration. One writer operates on it at a time — the
// ingesters at startup, or a mutating CLI subcommand — never concurrently
// with the loader.
type Registry struct {
	mu        sync.Mutex
	order     []string // registry order: first-declared-wins position
	entries   map[string]*entry
	loadOrder []string // populated by the resolver; empty until then

	packagesDir PackagesDirFunc
}

// New creates an empty Registry. packagesDir resolves the managed
// on-disk path for remote packages; pass nil to leave every remote
// package's Path empty (suitable for tests that don't touch disk).
func New(packagesDir PackagesDirFunc) *Registry {
	if packagesDir == nil {
		packagesDir = func(name string) string { return "" }
	}
	return &Registry{
		entries:     make(map[string]*entry),
		packagesDir: packagesDir,
	}
}

// Declare canonicalizes id and fields into a Record/Config pair and
// stores them, overwriting any prior declaration for the same name in
// full (invariant 1: last-writer-wins on every field). Returns the
// resolved name, any non-fatal warnings (unknown fields, an absolute
// source_file), and a fatal error if the name itself is invalid.
func (r *Registry) Declare(id string, fields Fields) (name string, warnings []error, err error) {
	as, _ := fields.scalar("as")
	resolved, rerr := source.Resolve(id, as)
	if rerr != nil {
		return "", nil, fmt.Errorf("%w: %w", &issuekind.DeclarationError{Name: id, Field: "as", Message: "name rejected"}, rerr)
	}
	name = resolved.Name.String()

	for _, unknown := range fields.UnknownFieldNames() {
		warnings = append(warnings, &issuekind.DeclarationError{
			Name: name, Field: unknown, Message: "unknown field",
		})
	}

	if fields.boolean("disabled") {
		r.mu.Lock()
		r.entries[name] = &entry{record: Record{Name: name, Disabled: true}}
		r.appendOrder(name)
		r.mu.Unlock()
		return name, warnings, nil
	}

	record, config, fwarn := r.buildRecord(name, resolved, fields)
	warnings = append(warnings, fwarn...)

	r.mu.Lock()
	r.entries[name] = &entry{record: record, config: config}
	r.appendOrder(name)
	r.mu.Unlock()

	return name, warnings, nil
}

func (r *Registry) appendOrder(name string) {
	for _, n := range r.order {
		if n == name {
			return
		}
	}
	r.order = append(r.order, name)
}

func (r *Registry) buildRecord(name string, resolved source.Resolved, fields Fields) (Record, Config, []error) {
	var warnings []error

	record := Record{
		Name:   name,
		Source: resolved.Source.String(),
		Local:  resolved.Local,
	}
	if sourceField, ok := fields.scalar("source"); ok && sourceField != "" {
		record.Source = sourceField
	}
	if localField, ok := fields.scalar("local"); ok {
		b, _ := parseBoolLoose(localField)
		record.Local = b
	}

	if record.Local {
		record.Path = record.Source
	} else {
		record.Path = r.packagesDir(name)
	}

	record.Ref, warnings = resolveRef(fields, warnings)

	if url, ok := fields.scalar("url"); ok {
		record.URLOverride = url
	}

	record.LoadMode = LoadAutoload
	if load, ok := fields.scalar("load"); ok && load != "" {
		record.LoadMode = LoadMode(load)
	}

	if build, ok := fields.scalar("build"); ok {
		record.Build = build
	}

	if entry, ok := fields.scalar("source_file"); ok {
		record.EntryOverride = entry
		if filepath.IsAbs(entry) {
			warnings = append(warnings, &issuekind.DeclarationError{
				Name: name, Field: "source_file",
				Message: "absolute path escapes the package directory; permitted but unusual",
			})
		}
	}

	config := Config{
		Env:     fields.array("env"),
		Paths:   fields.array("path"),
		FPaths:  fields.array("fpath"),
		Aliases: fields.array("alias"),
		Depends: fields.array("depends"),
	}
	if rc, ok := fields.scalar("rc"); ok {
		config.RC = rc
	}

	return record, config, warnings
}

func resolveRef(fields Fields, warnings []error) (Ref, []error) {
	branch, hasBranch := fields.scalar("branch")
	tag, hasTag := fields.scalar("tag")
	commit, hasCommit := fields.scalar("commit")

	switch {
	case hasCommit && commit != "":
		return Ref{Kind: RefCommit, Value: commit}, warnings
	case hasTag && tag != "":
		return Ref{Kind: RefTag, Value: tag}, warnings
	case hasBranch && branch != "":
		return Ref{Kind: RefBranch, Value: branch}, warnings
	default:
		return Ref{}, warnings
	}
}

func parseBoolLoose(s string) (bool, bool) {
	switch s {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no", "":
		return false, true
	default:
		return false, false
	}
}

// Disable marks name as disabled and evicts it from the load order,
// firing "package-disabled" is the caller's responsibility (the hook bus
// lives above the registry). Returns false if name is not declared.
func (r *Registry) Disable(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.record.Disabled = true

	filtered := r.loadOrder[:0:0]
	for _, n := range r.loadOrder {
		if n != name {
			filtered = append(filtered, n)
		}
	}
	r.loadOrder = filtered
	return true
}

// Lookup returns the Record and Config declared for name, and whether it
// exists at all.
func (r *Registry) Lookup(name string) (Record, Config, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return Record{}, Config{}, false
	}
	return e.record, e.config.Clone(), true
}

// SetLoadOrder installs the resolver's output. Subsequent Each calls with
// no filter iterate in this order rather than registry order.
func (r *Registry) SetLoadOrder(order []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadOrder = append([]string(nil), order...)
}

// LoadOrder returns a copy of the currently installed load order, or nil
// if the resolver has not run yet.
func (r *Registry) LoadOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.loadOrder...)
}

// Filter selects which declared packages Each visits.
type Filter func(Record) bool

// Enabled selects non-disabled records.
func Enabled(r Record) bool { return !r.Disabled }

// RemoteEnabled selects non-disabled, non-local records.
func RemoteEnabled(r Record) bool { return !r.Disabled && !r.Local }

// InstalledEnabled selects non-disabled records whose Path already exists.
// statFn is injected so tests don't need a real filesystem.
func InstalledEnabled(statFn func(string) bool) Filter {
	return func(r Record) bool {
		return !r.Disabled && statFn(r.Path)
	}
}

// Each iterates declared packages in LoadOrder if populated, otherwise in
// registry declaration order, applying filter if non-nil.
func (r *Registry) Each(filter Filter, fn func(Record, Config)) {
	r.mu.Lock()
	order := r.order
	if len(r.loadOrder) > 0 {
		order = r.loadOrder
	}
	names := append([]string(nil), order...)
	r.mu.Unlock()

	for _, name := range names {
		r.mu.Lock()
		e, ok := r.entries[name]
		r.mu.Unlock()
		if !ok {
			continue
		}
		if filter != nil && !filter(e.record) {
			continue
		}
		fn(e.record, e.config.Clone())
	}
}

// Names returns every declared package name in registry order, including
// disabled ones.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}
