// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPin_Kind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pin  Pin
		want string
	}{
		{"none", Pin{}, "none"},
		{"branch", Pin{Branch: "main"}, "branch"},
		{"tag", Pin{Tag: "v1.0.0"}, "tag"},
		{"commit", Pin{Commit: "deadbeef"}, "commit"},
		{"tag_over_branch", Pin{Branch: "main", Tag: "v1.0.0"}, "tag"},
		{"commit_over_all", Pin{Branch: "main", Tag: "v1.0.0", Commit: "deadbeef"}, "commit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.pin.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdapter_ShallowDepthDefault(t *testing.T) {
	t.Parallel()

	a := &Adapter{}
	if got := a.shallowDepth(); got != 1 {
		t.Errorf("shallowDepth() = %d, want 1", got)
	}
	a.ShallowDepth = 5
	if got := a.shallowDepth(); got != 5 {
		t.Errorf("shallowDepth() = %d, want 5", got)
	}
}

func TestAdapter_ProbeOrderDefault(t *testing.T) {
	t.Parallel()

	a := &Adapter{}
	got := a.probeOrder()
	if len(got) != 2 || got[0] != "main" || got[1] != "master" {
		t.Errorf("probeOrder() = %v, want [main master]", got)
	}

	a.DefaultBranchProbeOrder = []string{"trunk"}
	got = a.probeOrder()
	if len(got) != 1 || got[0] != "trunk" {
		t.Errorf("probeOrder() = %v, want [trunk]", got)
	}
}

func TestAdapter_CleanupPartial_OnlyUnderManagedRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	inside := filepath.Join(root, "pkg")
	outside := t.TempDir()

	if err := os.MkdirAll(inside, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatal(err)
	}

	a := &Adapter{ManagedRoot: root}

	a.cleanupPartial(outside)
	if _, err := os.Stat(outside); err != nil {
		t.Fatal("cleanupPartial removed a path outside ManagedRoot")
	}

	a.cleanupPartial(inside)
	if _, err := os.Stat(inside); !os.IsNotExist(err) {
		t.Fatal("cleanupPartial did not remove a path under ManagedRoot")
	}
}

func TestHasCheckout(t *testing.T) {
	t.Parallel()

	empty := t.TempDir()
	if hasCheckout(empty) {
		t.Error("empty directory should not report a checkout")
	}

	withGit := t.TempDir()
	if err := os.Mkdir(filepath.Join(withGit, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if !hasCheckout(withGit) {
		t.Error("directory with .git should report a checkout")
	}
}

func TestRevParse_NotARepo(t *testing.T) {
	t.Parallel()

	_, err := RevParse(t.TempDir())
	if err == nil {
		t.Fatal("RevParse on a non-repo directory should fail")
	}
}
