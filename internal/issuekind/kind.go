package issuekind

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Sentinel errors for the seven error kinds. Each is wrapped by a
// typed error below carrying the package name and any extra context, so
// callers can both errors.Is against the kind and inspect the details.
var (
	// ErrDeclaration marks an invalid name, unknown field, or malformed
	// array syntax encountered while parsing a declaration. Reported to
	// stderr; the declaration is rejected but ingestion continues.
	ErrDeclaration = errors.New("invalid package declaration")

	// ErrResolution marks a dependency cycle. Fatal to the current
	// operation; the pipeline aborts with a diagnostic.
	ErrResolution = errors.New("dependency resolution failed")

	// ErrDependency marks an unsatisfied or misversioned dependency edge.
	// Non-fatal; the dependent still appears in the load order.
	ErrDependency = errors.New("unsatisfied package dependency")

	// ErrVCS marks a clone/fetch/checkout failure. Per-package fatal;
	// accumulated across a batch and surfaced once at the end.
	ErrVCS = errors.New("version control operation failed")

	// ErrEntryMissing marks an absent entry point for a load=now package.
	// Warning only; the package is still considered loaded.
	ErrEntryMissing = errors.New("package entry point not found")

	// ErrRcFailure marks a non-zero exit from an rc snippet. Warning only.
	ErrRcFailure = errors.New("rc snippet failed")

	// ErrBuildFailure marks a non-zero exit from a package's build
	// snippet. Warning only; the package is still considered installed.
	ErrBuildFailure = errors.New("build snippet failed")
)

// DeclarationError reports a problem in a single package declaration.
type DeclarationError struct {
	Name    string
	Field   string
	Message string
}

func (e *DeclarationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("package %q: field %q: %s", e.Name, e.Field, e.Message)
	}
	return fmt.Sprintf("package %q: %s", e.Name, e.Message)
}

func (e *DeclarationError) Unwrap() error { return ErrDeclaration }

// ResolutionError reports a dependency cycle, naming every node still
// stuck with a positive in-degree when the topological sort stalled.
type ResolutionError struct {
	Cycle []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("dependency cycle detected among: %s", strings.Join(e.Cycle, ", "))
}

func (e *ResolutionError) Unwrap() error { return ErrResolution }

// DependencyWarning reports a problem with one dependency edge: the
// dependency is undeclared or disabled (the resolver drops the edge), or
// its pinned tag does not match the constraint (the edge is kept).
type DependencyWarning struct {
	Dependent  string
	Dependency string
	Constraint string
	Message    string
}

func (w *DependencyWarning) Error() string {
	if w.Constraint != "" {
		return fmt.Sprintf("%s depends on %s@%s but %s", w.Dependent, w.Dependency, w.Constraint, w.Message)
	}
	return fmt.Sprintf("%s depends on %s but %s", w.Dependent, w.Dependency, w.Message)
}

func (w *DependencyWarning) Unwrap() error { return ErrDependency }

// VCSError reports a clone/fetch/checkout failure for one package,
// carrying the adapter's message verbatim.
type VCSError struct {
	Name    string
	Source  string
	Message string
}

func (e *VCSError) Error() string {
	return fmt.Sprintf("package %q (%s): %s", e.Name, e.Source, e.Message)
}

func (e *VCSError) Unwrap() error { return ErrVCS }

// EntryMissingWarning reports a load=now package with no entry point found.
type EntryMissingWarning struct {
	Name       string
	SearchedAt []string
}

func (w *EntryMissingWarning) Error() string {
	return fmt.Sprintf("package %q: no entry point found (looked for: %s)", w.Name, strings.Join(w.SearchedAt, ", "))
}

func (w *EntryMissingWarning) Unwrap() error { return ErrEntryMissing }

// RcFailureWarning reports a non-zero exit from a package's rc snippet.
type RcFailureWarning struct {
	Name    string
	Message string
}

func (w *RcFailureWarning) Error() string {
	return fmt.Sprintf("package %q: rc snippet failed: %s", w.Name, w.Message)
}

func (w *RcFailureWarning) Unwrap() error { return ErrRcFailure }

// BuildFailureWarning reports a non-zero exit from a package's build
// snippet, run once after a fresh clone or an update.
type BuildFailureWarning struct {
	Name    string
	Message string
}

func (w *BuildFailureWarning) Error() string {
	return fmt.Sprintf("package %q: build snippet failed: %s", w.Name, w.Message)
}

func (w *BuildFailureWarning) Unwrap() error { return ErrBuildFailure }

// Summary accumulates errors across independent units of a batch
// operation (declarations, clones, loads) so the core can surface them
// once at the end rather than halting on the first failure. A Summary is
// safe for concurrent use by multiple
// goroutines adding errors for distinct packages.
type Summary struct {
	mu       sync.Mutex
	warnings []error
	failures []error
}

// AddWarning records a non-fatal issue (DependencyWarning, EntryMissing,
// RcFailure, or a DeclarationError that did not block ingestion).
func (s *Summary) AddWarning(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, err)
}

// AddFailure records a fatal-to-its-unit issue (VCSError, or any other
// error that caused one package's operation to be skipped).
func (s *Summary) AddFailure(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

// Warnings returns a snapshot of recorded warnings.
func (s *Summary) Warnings() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.warnings...)
}

// Failures returns a snapshot of recorded failures.
func (s *Summary) Failures() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.failures...)
}

// HasFailures reports whether any fatal-to-its-unit error was recorded.
// Mutating commands exit non-zero when this is true.
func (s *Summary) HasFailures() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures) > 0
}

// Render formats the summary as a multi-line report: warnings first, then
// failures, surfacing the offending package name and the original
// message verbatim.
func (s *Summary) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for _, w := range s.warnings {
		fmt.Fprintf(&b, "warning: %s\n", w.Error())
	}
	for _, f := range s.failures {
		fmt.Fprintf(&b, "error: %s\n", f.Error())
	}
	return b.String()
}
