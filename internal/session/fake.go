// SPDX-License-Identifier: MPL-2.0

package session

import "context"

// Fake is an in-memory HostSession for tests: it records every call
// instead of mutating process-global state.
type Fake struct {
	Env      map[string]string
	Paths    []string
	Aliases  map[string]string
	Autoload map[string]string // function name -> directory

	// Sourced records every SourceScript/EvalSnippet call, in order, for
	// assertions on evaluation order.
	Sourced []FakeEval

	// EvalErr, if set, is returned by EvalSnippet and SourceScript instead
	// of actually interpreting anything.
	EvalErr error
}

// FakeEval is one recorded SourceScript or EvalSnippet call.
type FakeEval struct {
	Path    string // empty for EvalSnippet
	Content string
	Env     map[string]string
}

// NewFake creates an empty Fake session.
func NewFake() *Fake {
	return &Fake{
		Env:      make(map[string]string),
		Aliases:  make(map[string]string),
		Autoload: make(map[string]string),
	}
}

func (f *Fake) ExportEnv(name, value string) error {
	f.Env[name] = value
	return nil
}

func (f *Fake) PrependSearchPath(dir string) error {
	for _, existing := range f.Paths {
		if existing == dir {
			return nil
		}
	}
	f.Paths = append([]string{dir}, f.Paths...)
	return nil
}

func (f *Fake) AddAlias(name, value string) error {
	f.Aliases[name] = value
	return nil
}

func (f *Fake) RegisterAutoload(dir, name string) error {
	f.Autoload[name] = dir
	return nil
}

func (f *Fake) SourceScript(ctx context.Context, path string, env map[string]string) error {
	if f.EvalErr != nil {
		return f.EvalErr
	}
	f.Sourced = append(f.Sourced, FakeEval{Path: path, Env: env})
	return nil
}

func (f *Fake) EvalSnippet(ctx context.Context, snippet string, env map[string]string) error {
	if f.EvalErr != nil {
		return f.EvalErr
	}
	f.Sourced = append(f.Sourced, FakeEval{Content: snippet, Env: env})
	return nil
}
