// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReal_ExportEnv(t *testing.T) {
	r := NewReal()
	if err := r.ExportEnv("PACKKSH_TEST_VAR", "hello"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PACKKSH_TEST_VAR") })

	if got := os.Getenv("PACKKSH_TEST_VAR"); got != "hello" {
		t.Errorf("os.Getenv = %q, want hello", got)
	}
}

func TestReal_PrependSearchPathIdempotent(t *testing.T) {
	original := os.Getenv("PATH")
	t.Cleanup(func() { os.Setenv("PATH", original) })

	r := NewReal()
	dir := t.TempDir()

	if err := r.PrependSearchPath(dir); err != nil {
		t.Fatal(err)
	}
	if err := r.PrependSearchPath(dir); err != nil {
		t.Fatal(err)
	}

	count := strings.Count(os.Getenv("PATH"), dir)
	if count != 1 {
		t.Errorf("PATH contains dir %d times, want 1: %s", count, os.Getenv("PATH"))
	}
}

func TestReal_AddAliasAndSnapshot(t *testing.T) {
	r := NewReal()
	if err := r.AddAlias("ll", "ls -la"); err != nil {
		t.Fatal(err)
	}
	got := r.Aliases()
	if got["ll"] != "ls -la" {
		t.Errorf("Aliases()[ll] = %q, want 'ls -la'", got["ll"])
	}
}

func TestReal_EvalSnippet(t *testing.T) {
	r := NewReal()
	err := r.EvalSnippet(context.Background(), `export PACKKSH_SNIPPET_RAN=1`, map[string]string{"PKG_NAME": "demo"})
	if err != nil {
		t.Fatalf("EvalSnippet error = %v", err)
	}
}

func TestReal_EvalSnippet_ParseError(t *testing.T) {
	r := NewReal()
	err := r.EvalSnippet(context.Background(), `if [ then`, nil)
	if err == nil {
		t.Fatal("malformed snippet should error")
	}
}

func TestReal_SourceScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "init.zsh")
	if err := os.WriteFile(path, []byte("true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewReal()
	if err := r.SourceScript(context.Background(), path, nil); err != nil {
		t.Fatalf("SourceScript error = %v", err)
	}
}

func TestFake_RecordsCallsWithoutTouchingProcessState(t *testing.T) {
	f := NewFake()

	if err := f.ExportEnv("PKG_NAME", "demo"); err != nil {
		t.Fatal(err)
	}
	if err := f.PrependSearchPath("/pkg/bin"); err != nil {
		t.Fatal(err)
	}
	if err := f.PrependSearchPath("/pkg/bin"); err != nil {
		t.Fatal(err)
	}
	if err := f.AddAlias("demo", "demo --flag"); err != nil {
		t.Fatal(err)
	}
	if err := f.RegisterAutoload("/pkg/functions", "demo_fn"); err != nil {
		t.Fatal(err)
	}
	if err := f.EvalSnippet(context.Background(), "echo hi", map[string]string{"PKG_NAME": "demo"}); err != nil {
		t.Fatal(err)
	}

	if f.Env["PKG_NAME"] != "demo" {
		t.Error("ExportEnv not recorded")
	}
	if len(f.Paths) != 1 {
		t.Errorf("Paths = %v, want one deduplicated entry", f.Paths)
	}
	if f.Aliases["demo"] != "demo --flag" {
		t.Error("AddAlias not recorded")
	}
	if f.Autoload["demo_fn"] != "/pkg/functions" {
		t.Error("RegisterAutoload not recorded")
	}
	if len(f.Sourced) != 1 || f.Sourced[0].Content != "echo hi" {
		t.Errorf("Sourced = %+v", f.Sourced)
	}
	if os.Getenv("PKG_NAME") != "" {
		t.Error("Fake leaked into real process environment")
	}
}

func TestFake_EvalErr(t *testing.T) {
	f := NewFake()
	f.EvalErr = errors.New("boom")

	if err := f.EvalSnippet(context.Background(), "echo hi", nil); !errors.Is(err, f.EvalErr) {
		t.Errorf("EvalSnippet error = %v, want EvalErr", err)
	}
	if err := f.SourceScript(context.Background(), "x.sh", nil); !errors.Is(err, f.EvalErr) {
		t.Errorf("SourceScript error = %v, want EvalErr", err)
	}
	if len(f.Sourced) != 0 {
		t.Error("Sourced should stay empty when EvalErr is set")
	}
}
