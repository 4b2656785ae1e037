// SPDX-License-Identifier: MPL-2.0

// Package session models the process-global shell state the field
// appliers mutate, behind the HostSession interface:
// export_env, prepend_search_path, add_alias,
// register_autoload, source_script, eval_snippet.
package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// HostSession is the process-global shell environment every field
// applier projects onto. The shell environment is unavoidably global;
// this interface exists so tests can substitute an in-memory fake
// instead of mutating the test process's real environment.
type HostSession interface {
	// ExportEnv sets an environment variable, overwriting any prior value.
	ExportEnv(name, value string) error
	// PrependSearchPath adds dir to the front of the executable search path.
	PrependSearchPath(dir string) error
	// AddAlias defines an alias in the session's alias table.
	AddAlias(name, value string) error
	// RegisterAutoload puts dir at the front of the function search path
	// (once) and records name as autoloadable from it.
	RegisterAutoload(dir, name string) error
	// SourceScript evaluates the script at path in the session, with env
	// injected as additional variables visible only to that evaluation.
	SourceScript(ctx context.Context, path string, env map[string]string) error
	// EvalSnippet evaluates an inline snippet in the session, with env
	// injected the same way as SourceScript.
	EvalSnippet(ctx context.Context, snippet string, env map[string]string) error
}

// Real is the process-global HostSession implementation: ExportEnv and
// PrependSearchPath mutate this process's actual environment; aliases and
// autoload registrations are tracked in-memory (there is no OS-level
// concept for either);
// SourceScript and EvalSnippet run the content through an in-process
// mvdan.cc/sh interpreter against the current environment.
type Real struct {
	aliases  map[string]string
	autoload map[string]string // function name -> directory
	fpaths   []string
	paths    []string
}

// NewReal creates a Real session seeded from the process's current PATH.
func NewReal() *Real {
	r := &Real{
		aliases:  make(map[string]string),
		autoload: make(map[string]string),
	}
	if path := os.Getenv("PATH"); path != "" {
		r.paths = strings.Split(path, string(os.PathListSeparator))
	}
	return r
}

func (r *Real) ExportEnv(name, value string) error {
	return os.Setenv(name, value)
}

func (r *Real) PrependSearchPath(dir string) error {
	for _, existing := range r.paths {
		if existing == dir {
			return nil
		}
	}
	r.paths = append([]string{dir}, r.paths...)
	return os.Setenv("PATH", strings.Join(r.paths, string(os.PathListSeparator)))
}

func (r *Real) AddAlias(name, value string) error {
	r.aliases[name] = value
	return nil
}

func (r *Real) RegisterAutoload(dir, name string) error {
	present := false
	for _, existing := range r.fpaths {
		present = present || existing == dir
	}
	if !present {
		r.fpaths = append([]string{dir}, r.fpaths...)
	}
	r.autoload[name] = dir
	return nil
}

// Aliases returns a snapshot of the alias table.
func (r *Real) Aliases() map[string]string {
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

func (r *Real) SourceScript(ctx context.Context, path string, env map[string]string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script %s: %w", path, err)
	}
	return r.run(ctx, path, string(content), env)
}

func (r *Real) EvalSnippet(ctx context.Context, snippet string, env map[string]string) error {
	return r.run(ctx, "snippet", snippet, env)
}

func (r *Real) run(ctx context.Context, name, content string, env map[string]string) error {
	parser := syntax.NewParser()
	prog, err := parser.Parse(strings.NewReader(content), name)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	vars := append(os.Environ(), envToSlice(env)...)

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Env(expand.ListEnviron(vars...)),
		interp.StdIO(nil, &stdout, &stderr),
	)
	if err != nil {
		return fmt.Errorf("create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func envToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
