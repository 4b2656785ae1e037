// SPDX-License-Identifier: MPL-2.0

// Package lockfile implements the pipe-delimited lockfile format and the
// freeze/restore/diff operations. Concurrent freeze/restore against the
// same lockfile path is serialized with an advisory file lock backed by
// the portable gofrs/flock library.
package lockfile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/lane-core/pack.ksh/internal/issuekind"
	"github.com/lane-core/pack.ksh/internal/registry"
	"github.com/lane-core/pack.ksh/internal/vcs"
)

// ErrLockContention is returned when the advisory lock on the lockfile
// path cannot be acquired within the caller's context deadline.
var ErrLockContention = fmt.Errorf("lockfile is held by another process")

// Entry is one pinned package in the lockfile: name|source|commit|timestamp.
type Entry struct {
	Name      string
	Source    string
	Commit    string
	Timestamp int64
}

// Status classifies one package when Diff compares the lockfile against
// the current working trees.
type Status string

const (
	Unchanged Status = "unchanged"
	Drifted   Status = "drifted"
	Missing   Status = "missing"
	Untracked Status = "untracked"
)

// DiffEntry is one row of a Diff report.
type DiffEntry struct {
	Name       string
	Status     Status
	LockCommit string
	DiskCommit string
}

// Revparser is the subset of the VCS adapter Freeze/Diff need: the full
// commit hash currently checked out at a working tree.
type Revparser func(path string) (string, error)

// DefaultRevparser wraps vcs.RevParse.
func DefaultRevparser(path string) (string, error) { return vcs.RevParse(path) }

// File manages one lockfile path, serializing writers with an advisory
// flock sibling file (path + ".flock") so that concurrent freeze/restore
// calls degrade to a wait rather than a corrupted write.
type File struct {
	Path string
}

// New returns a File bound to path.
func New(path string) *File { return &File{Path: path} }

// Freeze iterates the registry's enabled, installed, non-local packages
// and writes their current revision to the lockfile atomically (write to
// a sibling temp file, then rename).
func (f *File) Freeze(ctx context.Context, reg *registry.Registry, revparse Revparser, now int64) error {
	release, err := f.lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	var entries []Entry
	var ferr error
	reg.Each(registry.RemoteEnabled, func(rec registry.Record, _ registry.Config) {
		if ferr != nil {
			return
		}
		if _, statErr := os.Stat(rec.Path); statErr != nil {
			return
		}
		commit, err := revparse(rec.Path)
		if err != nil {
			ferr = &issuekind.VCSError{Name: rec.Name, Source: rec.Source, Message: err.Error()}
			return
		}
		source := rec.Source
		if rec.URLOverride != "" {
			source = rec.URLOverride
		}
		entries = append(entries, Entry{Name: rec.Name, Source: source, Commit: commit, Timestamp: now})
	})
	if ferr != nil {
		return ferr
	}

	return writeAtomic(f.Path, entries)
}

// Restore re-clones every lockfile entry into its canonical managed path
// (via cloner, keyed by name) and checks out the recorded commit. Local
// packages are never in the lockfile and are therefore untouched.
func (f *File) Restore(ctx context.Context, checkout func(name, source, commit string) error) (*issuekind.Summary, error) {
	release, err := f.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := Read(f.Path)
	if err != nil {
		return nil, err
	}

	summary := &issuekind.Summary{}
	for _, e := range entries {
		if err := checkout(e.Name, e.Source, e.Commit); err != nil {
			summary.AddFailure(&issuekind.VCSError{Name: e.Name, Source: e.Source, Message: err.Error()})
		}
	}
	return summary, nil
}

// Diff compares the lockfile's entries against the current working-tree
// revisions named by path, classifying each as unchanged/drifted/missing,
// plus any on-disk, registry-enabled package absent from the lockfile as
// untracked.
func Diff(lockPath string, reg *registry.Registry, revparse Revparser) ([]DiffEntry, error) {
	entries, err := Read(lockPath)
	if err != nil {
		return nil, err
	}

	locked := make(map[string]Entry, len(entries))
	for _, e := range entries {
		locked[e.Name] = e
	}

	var diffs []DiffEntry
	seen := make(map[string]bool)

	reg.Each(registry.RemoteEnabled, func(rec registry.Record, _ registry.Config) {
		seen[rec.Name] = true
		lockEntry, inLock := locked[rec.Name]

		if _, statErr := os.Stat(rec.Path); statErr != nil {
			if inLock {
				diffs = append(diffs, DiffEntry{Name: rec.Name, Status: Missing, LockCommit: lockEntry.Commit})
			}
			return
		}

		commit, rpErr := revparse(rec.Path)
		if rpErr != nil && inLock {
			return
		}

		switch {
		case !inLock:
			diffs = append(diffs, DiffEntry{Name: rec.Name, Status: Untracked, DiskCommit: commit})
		case commit == lockEntry.Commit:
			diffs = append(diffs, DiffEntry{Name: rec.Name, Status: Unchanged, LockCommit: lockEntry.Commit, DiskCommit: commit})
		default:
			diffs = append(diffs, DiffEntry{Name: rec.Name, Status: Drifted, LockCommit: lockEntry.Commit, DiskCommit: commit})
		}
	})

	for name, e := range locked {
		if !seen[name] {
			diffs = append(diffs, DiffEntry{Name: name, Status: Missing, LockCommit: e.Commit})
		}
	}

	return diffs, nil
}

// Read parses the pipe-delimited lockfile at path. A missing file is
// treated as an empty lockfile, not an error.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open lockfile %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 4 {
			return nil, fmt.Errorf("malformed lockfile line (want 4 fields): %q", line)
		}
		ts, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed timestamp in lockfile line %q: %w", line, err)
		}
		entries = append(entries, Entry{Name: parts[0], Source: parts[1], Commit: parts[2], Timestamp: ts})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lockfile %s: %w", path, err)
	}
	return entries, nil
}

func writeAtomic(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create lockfile directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp lockfile: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s|%s|%s|%d\n", e.Name, e.Source, e.Commit, e.Timestamp); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("write lockfile entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush lockfile: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp lockfile: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp lockfile into place: %w", err)
	}
	return nil
}

func (f *File) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create lockfile directory: %w", err)
	}

	fl := flock.New(f.Path + ".flock")

	deadline := 10 * time.Second
	if d, ok := ctx.Deadline(); ok {
		deadline = time.Until(d)
	}
	lockCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil || !locked {
		return nil, ErrLockContention
	}

	return func() { _ = fl.Unlock() }, nil
}

// Now returns the current time as the integer-seconds-since-epoch value
// Freeze writes. Kept separate from time.Now() at the call site so tests
// can inject a fixed value.
func Now() int64 { return time.Now().Unix() }
