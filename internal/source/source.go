// SPDX-License-Identifier: MPL-2.0

// Package source canonicalizes the identifiers users pass when declaring a
// package — shorthand like "user/repo", host prefixes like "gl:user/repo",
// local filesystem paths, or already-canonical URLs — into a canonical
// source string and a derived package name.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidName is the sentinel error wrapped by InvalidNameError.
	ErrInvalidName = errors.New("invalid package name")

	// globMetacharacters matches the characters disallowed in package
	// names: whitespace and glob metacharacters * ? [.
	globMetacharacters = regexp.MustCompile(`[\s*?\[]`)
)

type (
	// Name is a validated package identifier: no whitespace, no glob
	// metacharacters (* ? [).
	Name string

	// InvalidNameError is returned when a Name contains whitespace or a
	// glob metacharacter.
	InvalidNameError struct {
		Value Name
	}

	// Resolved is the result of canonicalizing a user-supplied identifier:
	// the canonical source string, the derived name, and whether the
	// source is a local filesystem path.
	Resolved struct {
		Source Name
		Name   Name
		Local  bool
	}
)

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid package name %q: must not contain whitespace or glob metacharacters (* ? [)", e.Value)
}

// Unwrap returns ErrInvalidName for errors.Is compatibility.
func (e *InvalidNameError) Unwrap() error { return ErrInvalidName }

//goplint:nonzero

// Validate returns nil if n is non-empty and free of whitespace and glob
// metacharacters, or an error describing the violation.
func (n Name) Validate() error {
	if n == "" || globMetacharacters.MatchString(string(n)) {
		return &InvalidNameError{Value: n}
	}
	return nil
}

// String returns the string representation of the Name.
func (n Name) String() string { return string(n) }

// hostPrefixes maps a shorthand host prefix to the HTTPS template used to
// build a canonical clone URL.
var hostPrefixes = map[string]string{
	"gl:": "https://gitlab.com/%s.git",
	"bb:": "https://bitbucket.org/%s.git",
}

// Resolve canonicalizes id into a Resolved source and name. as, if
// non-empty, overrides the derived name (the "as=<name>" field).
func Resolve(id string, as string) (Resolved, error) {
	id = strings.TrimSpace(id)

	canonical, local := canonicalize(id)

	name := as
	if name == "" {
		name = deriveName(canonical, local)
	}

	r := Resolved{
		Source: Name(canonical),
		Name:   Name(name),
		Local:  local,
	}
	if err := r.Name.Validate(); err != nil {
		return Resolved{}, err
	}
	return r, nil
}

// canonicalize applies the first-match resolution table and
// reports whether the result is a local filesystem path.
func canonicalize(id string) (canonical string, local bool) {
	switch {
	case hasAnyPrefix(id, "https://", "http://", "git://", "ssh://"):
		return id, false

	case hasAnyPrefix(id, "gl:", "bb:"):
		for prefix, tmpl := range hostPrefixes {
			if strings.HasPrefix(id, prefix) {
				return fmt.Sprintf(tmpl, strings.TrimPrefix(id, prefix)), false
			}
		}
		return id, false

	case strings.HasPrefix(id, "/"):
		return id, true

	case id == "~" || strings.HasPrefix(id, "~/"):
		return expandHome(id), true

	case strings.HasPrefix(id, "git@"):
		return id, false

	case strings.Contains(id, "/") && !strings.Contains(id, "://") && !strings.HasPrefix(id, "git@"):
		return fmt.Sprintf("https://github.com/%s.git", id), false

	default:
		return id, false
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// expandHome resolves a leading "~" to the user's home directory, matching
// the shell's own tilde expansion for local package paths.
func expandHome(id string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return id
	}
	if id == "~" {
		return home
	}
	return filepath.Join(home, strings.TrimPrefix(id, "~/"))
}

// deriveName strips scheme, known host prefix, and ".git" suffix, then
// takes the final path segment.
func deriveName(canonical string, local bool) string {
	if local {
		return filepath.Base(filepath.Clean(canonical))
	}

	s := canonical
	for _, scheme := range []string{"https://", "http://", "git://", "ssh://"} {
		s = strings.TrimPrefix(s, scheme)
	}
	s = strings.TrimPrefix(s, "git@")
	s = strings.TrimSuffix(s, ".git")

	// git@host:user/repo form uses ":" instead of "/" after the host.
	if idx := strings.Index(s, ":"); idx != -1 && !strings.Contains(s[:idx], "/") {
		s = s[idx+1:]
	}

	segments := strings.Split(s, "/")
	return segments[len(segments)-1]
}
