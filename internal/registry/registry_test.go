// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"testing"

	"github.com/lane-core/pack.ksh/internal/source"
)

func TestRegistry_DeclareAndLookup(t *testing.T) {
	t.Parallel()

	r := New(func(name string) string { return "/packages/" + name })

	name, warnings, err := r.Declare("zsh-users/zsh-autosuggestions", Fields{
		"tag":     Scalar("v0.7.0"),
		"load":    Scalar("now"),
		"depends": ArrayField("zsh-users/zsh-completions"),
	})
	if err != nil {
		t.Fatalf("Declare error = %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if name != "zsh-autosuggestions" {
		t.Fatalf("name = %q, want zsh-autosuggestions", name)
	}

	record, config, ok := r.Lookup(name)
	if !ok {
		t.Fatal("Lookup found nothing")
	}
	if record.Ref.Kind != RefTag || record.Ref.Value != "v0.7.0" {
		t.Errorf("Ref = %+v, want tag=v0.7.0", record.Ref)
	}
	if record.LoadMode != LoadNow {
		t.Errorf("LoadMode = %q, want now", record.LoadMode)
	}
	if record.Path != "/packages/zsh-autosuggestions" {
		t.Errorf("Path = %q", record.Path)
	}
	if len(config.Depends) != 1 || config.Depends[0] != "zsh-users/zsh-completions" {
		t.Errorf("Depends = %v", config.Depends)
	}
}

func TestRegistry_DeclareLastWriterWins(t *testing.T) {
	t.Parallel()

	r := New(nil)
	if _, _, err := r.Declare("user/repo", Fields{"branch": Scalar("main")}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Declare("user/repo", Fields{"tag": Scalar("v1.0.0")}); err != nil {
		t.Fatal(err)
	}

	record, _, _ := r.Lookup("repo")
	if record.Ref.Kind != RefTag || record.Ref.Value != "v1.0.0" {
		t.Errorf("second declaration did not fully overwrite the first: %+v", record.Ref)
	}
	if len(r.Names()) != 1 {
		t.Errorf("re-declaration should not duplicate registry order, got %v", r.Names())
	}
}

func TestRegistry_DeclareUnknownFieldWarns(t *testing.T) {
	t.Parallel()

	r := New(nil)
	_, warnings, err := r.Declare("user/repo", Fields{"typo_field": Scalar("x")})
	if err != nil {
		t.Fatalf("unknown field should warn, not fail: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
}

func TestRegistry_DeclareInvalidName(t *testing.T) {
	t.Parallel()

	r := New(nil)
	_, _, err := r.Declare("user/repo", Fields{"as": Scalar("bad name")})
	if !errors.Is(err, source.ErrInvalidName) {
		t.Fatalf("err = %v, want wrapping ErrInvalidName", err)
	}
}

func TestRegistry_DeclareDisabled(t *testing.T) {
	t.Parallel()

	r := New(nil)
	name, _, err := r.Declare("user/repo", Fields{"disabled": Scalar("true")})
	if err != nil {
		t.Fatal(err)
	}
	record, _, ok := r.Lookup(name)
	if !ok || !record.Disabled {
		t.Fatalf("record = %+v, ok = %v, want Disabled", record, ok)
	}
}

func TestRegistry_Disable(t *testing.T) {
	t.Parallel()

	r := New(nil)
	name, _, _ := r.Declare("user/repo", Fields{})
	r.SetLoadOrder([]string{name})

	if !r.Disable(name) {
		t.Fatal("Disable returned false for a declared package")
	}
	if r.Disable("nope") {
		t.Fatal("Disable returned true for an undeclared package")
	}

	record, _, _ := r.Lookup(name)
	if !record.Disabled {
		t.Error("record not marked disabled")
	}
	if len(r.LoadOrder()) != 0 {
		t.Errorf("LoadOrder = %v, want empty after disable", r.LoadOrder())
	}
}

func TestRegistry_EachRespectsLoadOrderAndFilter(t *testing.T) {
	t.Parallel()

	r := New(nil)
	r.Declare("user/alpha", Fields{})
	r.Declare("user/beta", Fields{})
	r.Declare("user/gamma", Fields{"disabled": Scalar("true")})

	r.SetLoadOrder([]string{"beta", "alpha"})

	var visited []string
	r.Each(Enabled, func(rec Record, _ Config) {
		visited = append(visited, rec.Name)
	})

	if len(visited) != 2 || visited[0] != "beta" || visited[1] != "alpha" {
		t.Fatalf("visited = %v, want [beta alpha]", visited)
	}
}

func TestRegistry_EachWithoutLoadOrderUsesRegistryOrder(t *testing.T) {
	t.Parallel()

	r := New(nil)
	r.Declare("user/alpha", Fields{})
	r.Declare("user/beta", Fields{})

	var visited []string
	r.Each(nil, func(rec Record, _ Config) {
		visited = append(visited, rec.Name)
	})

	if len(visited) != 2 || visited[0] != "alpha" || visited[1] != "beta" {
		t.Fatalf("visited = %v, want [alpha beta]", visited)
	}
}

func TestRegistry_AbsoluteEntryOverrideWarns(t *testing.T) {
	t.Parallel()

	r := New(nil)
	name, warnings, err := r.Declare("user/repo", Fields{"source_file": Scalar("/etc/elsewhere/entry.sh")})
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one", warnings)
	}
	record, _, _ := r.Lookup(name)
	if record.EntryOverride != "/etc/elsewhere/entry.sh" {
		t.Errorf("EntryOverride = %q", record.EntryOverride)
	}
}

func TestRegistry_LocalPackageUsesSourceAsPath(t *testing.T) {
	t.Parallel()

	r := New(func(string) string { return "/should-not-be-used" })
	name, _, err := r.Declare("/opt/plugins/foo", Fields{})
	if err != nil {
		t.Fatal(err)
	}
	record, _, _ := r.Lookup(name)
	if !record.Local {
		t.Error("want Local = true")
	}
	if record.Path != "/opt/plugins/foo" {
		t.Errorf("Path = %q, want the local source path", record.Path)
	}
}
