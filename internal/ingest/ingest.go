// SPDX-License-Identifier: MPL-2.0

// Package ingest implements the three config-ingestion layers: a script
// layer that calls registry operations directly, a filesystem layer of
// one subdirectory per package, and an aggregation layer that runs every
// matching file under pkgs.d/ as another script layer. Later layers
// overwrite earlier ones (declaration last-writer-wins).
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/lane-core/pack.ksh/internal/hooks"
	"github.com/lane-core/pack.ksh/internal/registry"
)

// ScriptSuffix is the file extension the aggregation layer recognizes
// under pkgs.d/.
const ScriptSuffix = ".pack"

// Script evaluates content as a POSIX-ish shell script whose only
// meaningful commands are "pack <id> [field=value|field=(v1 v2) ...]"
// and "disable <name>"; every other command is a no-op. bus may be nil;
// when set, disable fires PackageDisabled for each name.
func Script(ctx context.Context, reg *registry.Registry, bus *hooks.Bus, content, name string) ([]error, error) {
	parser := syntax.NewParser()
	prog, err := parser.Parse(strings.NewReader(content), name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	var warnings []error
	var declErr error

	handler := func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return next(ctx, args)
			}
			switch args[0] {
			case "pack":
				w, err := runPack(reg, args[1:])
				warnings = append(warnings, w...)
				if err != nil {
					declErr = err
				}
				return nil
			case "disable":
				for _, name := range args[1:] {
					reg.Disable(name)
					if bus != nil {
						bus.Fire(hooks.PackageDisabled, name)
					}
				}
				return nil
			default:
				// Unknown command: the script layer only interprets pack
				// and disable; anything else is silently accepted so a
				// user's stray shell logic (comments-as-commands, etc.)
				// does not abort ingestion.
				return nil
			}
		}
	}

	runner, err := interp.New(interp.ExecHandlers(handler))
	if err != nil {
		return nil, fmt.Errorf("create interpreter: %w", err)
	}
	if err := runner.Run(ctx, prog); err != nil {
		return warnings, fmt.Errorf("run %s: %w", name, err)
	}
	return warnings, declErr
}

// runPack parses "pack id field=value field=(v1 v2 ...) ..." positional
// arguments into a declare call.
func runPack(reg *registry.Registry, args []string) ([]error, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("pack: missing package id")
	}
	id := args[0]

	fields := registry.Fields{}
	for _, arg := range args[1:] {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			continue
		}
		if strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
			inner := strings.TrimSuffix(strings.TrimPrefix(value, "("), ")")
			fields[key] = registry.ArrayField(strings.Fields(inner)...)
			continue
		}
		if existing, ok := fields[key]; ok && existing.Array {
			fields[key] = registry.ArrayField(append(existing.Values, value)...)
			continue
		}
		fields[key] = registry.Scalar(value)
	}

	_, warnings, err := reg.Declare(id, fields)
	return warnings, err
}

// Filesystem ingests the layout layer: dir contains one
// subdirectory per package, each scalar field a file and each array
// field a subdirectory.
func Filesystem(reg *registry.Registry, dir string) ([]error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read packages config directory %s: %w", dir, err)
	}

	var warnings []error
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		fields, err := readPackageDir(filepath.Join(dir, name))
		if err != nil {
			return warnings, fmt.Errorf("package %q: %w", name, err)
		}
		source, ok := fields.First("source")
		if !ok || source == "" {
			warnings = append(warnings, fmt.Errorf("package %q: missing required %q file", name, "source"))
			continue
		}
		fields.SetIfAbsent("as", name)

		_, w, err := reg.Declare(source, fields.Fields)
		warnings = append(warnings, w...)
		if err != nil {
			return warnings, err
		}
	}

	return warnings, nil
}

var scalarFileFields = map[string]bool{
	"branch": true, "tag": true, "commit": true, "as": true, "local": true,
	"load": true, "build": true, "disabled": true, "source_file": true,
	"rc": true, "url": true, "source": true,
}

var arraySubdirFields = map[string]bool{"fpath": true, "path": true}
var kvSubdirFields = map[string]bool{"alias": true, "env": true}

// fieldSet accumulates parsed fields from one package's filesystem
// subdirectory. A thin wrapper over registry.Fields that remembers which
// names were explicitly present, so Filesystem can detect "source" and
// SetIfAbsent can avoid clobbering an explicit "as" file.
type fieldSet struct {
	registry.Fields
}

func (fs fieldSet) First(name string) (string, bool) {
	f, ok := fs.Fields[name]
	if !ok {
		return "", false
	}
	return f.First(), true
}

func (fs fieldSet) SetIfAbsent(name, value string) {
	if _, ok := fs.Fields[name]; !ok {
		fs.Fields[name] = registry.Scalar(value)
	}
}

func readPackageDir(dir string) (fieldSet, error) {
	fs := fieldSet{Fields: registry.Fields{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fs, err
	}

	for _, e := range entries {
		name := e.Name()
		switch {
		case !e.IsDir() && scalarFileFields[name]:
			content, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return fs, err
			}
			fs.Fields[name] = registry.Scalar(firstLine(content))

		case e.IsDir() && arraySubdirFields[name]:
			values, err := listDirNames(filepath.Join(dir, name))
			if err != nil {
				return fs, err
			}
			fs.Fields[name] = registry.ArrayField(values...)

		case e.IsDir() && name == "depends":
			values, err := readDependsDir(filepath.Join(dir, name))
			if err != nil {
				return fs, err
			}
			fs.Fields[name] = registry.ArrayField(values...)

		case e.IsDir() && kvSubdirFields[name]:
			values, err := readKVDir(filepath.Join(dir, name))
			if err != nil {
				return fs, err
			}
			fs.Fields[name] = registry.ArrayField(values...)
		}
	}

	return fs, nil
}

func listDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func readDependsDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []string
	for _, e := range entries {
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, joinDependsEntry(e.Name(), firstLine(content)))
	}
	return out, nil
}

func readKVDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []string
	for _, e := range entries {
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, e.Name()+"="+firstLine(content))
	}
	return out, nil
}

func firstLine(content []byte) string {
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

func joinDependsEntry(name, constraint string) string {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return name
	}
	return name + "@" + constraint
}

// Aggregate runs every file matching *ScriptSuffix under pkgs.d (in
// lexicographic order) as an additional Script layer.
func Aggregate(ctx context.Context, reg *registry.Registry, bus *hooks.Bus, pkgsDir string) ([]error, error) {
	entries, err := os.ReadDir(pkgsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read aggregation directory %s: %w", pkgsDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ScriptSuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var warnings []error
	for _, name := range names {
		path := filepath.Join(pkgsDir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return warnings, fmt.Errorf("read %s: %w", path, err)
		}
		w, err := Script(ctx, reg, bus, string(content), path)
		warnings = append(warnings, w...)
		if err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}
