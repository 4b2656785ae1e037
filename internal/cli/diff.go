// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lane-core/pack.ksh/internal/lockfile"
)

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare the lockfile against the current working trees",
		Long: `Diff reports, per lockfile entry, whether the on-disk package is
unchanged, drifted to a different commit, missing entirely, or present
on disk but untracked by the lockfile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			code, err := runDiff(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return &ExitError{Code: code, Err: err}
			}
			return nil
		},
	}
	return cmd
}

func runDiff(ctx context.Context, out io.Writer) (ExitCode, error) {
	a, _, err := newApp(ctx)
	if err != nil {
		return ExitFailure, err
	}

	lf, lferr := a.lockfile()
	if lferr != nil {
		return ExitFailure, lferr
	}

	entries, err := lockfile.Diff(lf.Path, a.reg, lockfile.DefaultRevparser)
	if err != nil {
		return ExitFailure, err
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, SubtitleStyle.Render("no lockfile entries"))
		return ExitSuccess, nil
	}

	for _, e := range entries {
		fmt.Fprintf(out, "%s %-24s %s\n", diffBadge(e.Status), e.Name, diffDetail(e))
	}

	return ExitSuccess, nil
}

func diffBadge(status lockfile.Status) string {
	switch status {
	case lockfile.Unchanged:
		return SuccessStyle.Render("unchanged")
	case lockfile.Drifted:
		return WarningStyle.Render("drifted  ")
	case lockfile.Missing:
		return ErrorStyle.Render("missing  ")
	case lockfile.Untracked:
		return VerboseStyle.Render("untracked")
	default:
		return string(status)
	}
}

func diffDetail(e lockfile.DiffEntry) string {
	if e.Status == lockfile.Drifted {
		return fmt.Sprintf("%s → %s", e.LockCommit, e.DiskCommit)
	}
	if e.LockCommit != "" {
		return e.LockCommit
	}
	return e.DiskCommit
}
