// SPDX-License-Identifier: MPL-2.0

// Package vcs adapts go-git to the clone/fetch/checkout contract the
// concurrent installer needs: given a source, destination, and an
// optional branch/tag/commit pin, produce a working tree at dest.
package vcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Pin selects a revision to check out. The zero value floats on the
// remote's default branch.
type Pin struct {
	Branch string
	Tag    string
	Commit string
}

// Kind reports which of branch/tag/commit is set, tag taking precedence
// over branch when both are present.
func (p Pin) Kind() string {
	switch {
	case p.Commit != "":
		return "commit"
	case p.Tag != "":
		return "tag"
	case p.Branch != "":
		return "branch"
	default:
		return "none"
	}
}

// Adapter performs clone/fetch/checkout against git remotes and local
// filesystem paths.
type Adapter struct {
	// ManagedRoot is the managed packages directory. A failed shallow
	// clone's partial dest is only deleted when it falls under this root,
	// never for a caller-specified arbitrary path.
	ManagedRoot string
	// ShallowDepth is the clone depth used for branch/tag/default-branch
	// clones (an ambient setting, default 1).
	ShallowDepth int
	// DefaultBranchProbeOrder lists branch names to try, in order, when
	// cloning with no pin and the remote's HEAD cannot be resolved.
	DefaultBranchProbeOrder []string
	// Timeout bounds every network operation.
	Timeout time.Duration

	auth transport.AuthMethod
}

// NewAdapter builds an Adapter and probes for SSH key / token auth.
func NewAdapter(managedRoot string, shallowDepth int, probeOrder []string, timeout time.Duration) *Adapter {
	a := &Adapter{
		ManagedRoot:             managedRoot,
		ShallowDepth:            shallowDepth,
		DefaultBranchProbeOrder: probeOrder,
		Timeout:                 timeout,
	}
	a.auth = detectAuth()
	return a
}

func detectAuth() transport.AuthMethod {
	if auth := trySSHAuth(); auth != nil {
		return auth
	}
	return tryHTTPAuth()
}

func trySSHAuth() transport.AuthMethod {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		path := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if auth, err := ssh.NewPublicKeysFromFile("git", path, ""); err == nil {
			return auth
		}
	}
	return nil
}

func tryHTTPAuth() transport.AuthMethod {
	switch {
	case os.Getenv("GITHUB_TOKEN") != "":
		return &http.BasicAuth{Username: "x-access-token", Password: os.Getenv("GITHUB_TOKEN")}
	case os.Getenv("GITLAB_TOKEN") != "":
		return &http.BasicAuth{Username: "gitlab-ci-token", Password: os.Getenv("GITLAB_TOKEN")}
	case os.Getenv("GIT_TOKEN") != "":
		return &http.BasicAuth{Username: "git", Password: os.Getenv("GIT_TOKEN")}
	default:
		return nil
	}
}

// Checkout returns successfully iff a working tree matching pin exists
// at dest when it returns. If dest already contains a checkout, it
// returns immediately without touching the network — use Update to
// fetch new commits into an existing checkout.
func (a *Adapter) Checkout(ctx context.Context, source, dest string, pin Pin) error {
	if hasCheckout(dest) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	switch pin.Kind() {
	case "commit":
		return a.checkoutCommit(ctx, source, dest, pin.Commit)
	case "tag":
		if err := a.shallowCheckout(ctx, source, dest, plumbing.NewTagReferenceName(pin.Tag)); err == nil {
			return nil
		}
		a.cleanupPartial(dest)
		return a.shallowDefaultBranch(ctx, source, dest)
	case "branch":
		if err := a.shallowCheckout(ctx, source, dest, plumbing.NewBranchReferenceName(pin.Branch)); err == nil {
			return nil
		}
		a.cleanupPartial(dest)
		return a.shallowDefaultBranch(ctx, source, dest)
	default:
		return a.shallowDefaultBranch(ctx, source, dest)
	}
}

func hasCheckout(dest string) bool {
	return HasCheckout(dest)
}

// HasCheckout reports whether dest already contains a git working tree.
func HasCheckout(dest string) bool {
	info, err := os.Stat(filepath.Join(dest, ".git"))
	return err == nil && (info.IsDir() || info.Mode().IsRegular())
}

// Update fetches new commits for an existing checkout at dest and moves
// the worktree to the tip of pin. With no pin it pulls the branch
// currently checked out. A tag or commit pin is fetched explicitly since
// neither is reachable by a plain branch pull.
func (a *Adapter) Update(ctx context.Context, dest string, pin Pin) error {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	repo, err := git.PlainOpen(dest)
	if err != nil {
		return fmt.Errorf("open repository at %s: %w", dest, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	switch pin.Kind() {
	case "commit":
		err := repo.FetchContext(ctx, &git.FetchOptions{Auth: a.auth, Force: true})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("fetch: %w", err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{
			Hash:  plumbing.NewHash(pin.Commit),
			Force: true,
		}); err != nil {
			return fmt.Errorf("checkout commit %s: %w", pin.Commit, err)
		}
		return nil

	case "tag":
		ref := plumbing.NewTagReferenceName(pin.Tag)
		refspec := config.RefSpec(fmt.Sprintf("+%s:%s", ref, ref))
		err := repo.FetchContext(ctx, &git.FetchOptions{
			Auth:     a.auth,
			RefSpecs: []config.RefSpec{refspec},
			Force:    true,
		})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("fetch tag %s: %w", pin.Tag, err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Force: true}); err != nil {
			return fmt.Errorf("checkout tag %s: %w", pin.Tag, err)
		}
		return nil

	case "branch":
		err := wt.PullContext(ctx, &git.PullOptions{
			Auth:          a.auth,
			ReferenceName: plumbing.NewBranchReferenceName(pin.Branch),
			SingleBranch:  true,
			Force:         true,
		})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("pull branch %s: %w", pin.Branch, err)
		}
		return nil

	default:
		err := wt.PullContext(ctx, &git.PullOptions{Auth: a.auth, Force: true})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("pull: %w", err)
		}
		return nil
	}
}

func (a *Adapter) checkoutCommit(ctx context.Context, source, dest, commit string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:  source,
		Auth: a.auth,
	})
	if err != nil {
		return fmt.Errorf("full clone for commit pin: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Hash:  plumbing.NewHash(commit),
		Force: true,
	}); err != nil {
		return fmt.Errorf("checkout commit %s: %w", commit, err)
	}
	return nil
}

func (a *Adapter) shallowCheckout(ctx context.Context, source, dest string, ref plumbing.ReferenceName) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:           source,
		Auth:          a.auth,
		ReferenceName: ref,
		SingleBranch:  true,
		Depth:         a.shallowDepth(),
	})
	if err != nil {
		return fmt.Errorf("shallow clone of %s: %w", ref, err)
	}
	return nil
}

func (a *Adapter) shallowDefaultBranch(ctx context.Context, source, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	var lastErr error
	for _, branch := range a.probeOrder() {
		_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
			URL:           source,
			Auth:          a.auth,
			ReferenceName: plumbing.NewBranchReferenceName(branch),
			SingleBranch:  true,
			Depth:         a.shallowDepth(),
		})
		if err == nil {
			return nil
		}
		lastErr = err
		a.cleanupPartial(dest)
	}

	// Last resort: let go-git resolve whatever HEAD actually is.
	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:          source,
		Auth:         a.auth,
		SingleBranch: true,
		Depth:        a.shallowDepth(),
	})
	if err != nil {
		if lastErr != nil {
			return fmt.Errorf("shallow clone of default branch: %w (probe order exhausted: %v)", err, lastErr)
		}
		return fmt.Errorf("shallow clone of default branch: %w", err)
	}
	return nil
}

func (a *Adapter) shallowDepth() int {
	if a.ShallowDepth <= 0 {
		return 1
	}
	return a.ShallowDepth
}

func (a *Adapter) probeOrder() []string {
	if len(a.DefaultBranchProbeOrder) > 0 {
		return a.DefaultBranchProbeOrder
	}
	return []string{"main", "master"}
}

// cleanupPartial removes dest only when it is nested under ManagedRoot,
// guarding against deleting a caller's arbitrary path.
func (a *Adapter) cleanupPartial(dest string) {
	if a.ManagedRoot == "" {
		return
	}
	rel, err := filepath.Rel(a.ManagedRoot, dest)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	_ = os.RemoveAll(dest)
}

// ProbeDefaultBranch lists the remote's refs without cloning and returns
// the first branch among them; no command calls it.
func (a *Adapter) ProbeDefaultBranch(ctx context.Context, source string) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{source},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: a.auth})
	if err != nil {
		return "", fmt.Errorf("list remote refs: %w", err)
	}

	for _, ref := range refs {
		if ref.Name().IsBranch() {
			return ref.Name().Short(), nil
		}
	}
	return "", fmt.Errorf("no branches found on remote %s", source)
}

// RevParse returns the commit hash dest's worktree is currently at.
func RevParse(dest string) (string, error) {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return "", fmt.Errorf("open repository at %s: %w", dest, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}
