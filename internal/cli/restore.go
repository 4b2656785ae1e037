// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lane-core/pack.ksh/internal/vcs"
)

func newRestoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Check out every lockfile-pinned package at its recorded commit",
		Long: `Restore reads the lockfile and checks out each entry's recorded
source at its recorded commit, reproducing the exact tree freeze last
captured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			code, err := runRestore(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return &ExitError{Code: code, Err: err}
			}
			if code != ExitSuccess {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	return cmd
}

func runRestore(ctx context.Context, out io.Writer) (ExitCode, error) {
	a, _, err := newApp(ctx)
	if err != nil {
		return ExitFailure, err
	}

	lf, err := a.lockfile()
	if err != nil {
		return ExitFailure, err
	}

	checkout := func(name, source, commit string) error {
		rec, _, ok := a.reg.Lookup(name)
		dest := rec.Path
		if !ok || dest == "" {
			return fmt.Errorf("package %q not declared, cannot determine destination", name)
		}
		return a.vcs.Checkout(ctx, source, dest, vcs.Pin{Commit: commit})
	}

	summary, err := lf.Restore(ctx, checkout)
	if err != nil {
		return ExitFailure, err
	}

	for _, w := range summary.Warnings() {
		fmt.Fprintln(out, WarningStyle.Render("warning:"), w)
	}
	for _, failure := range summary.Failures() {
		fmt.Fprintln(out, ErrorStyle.Render("error:"), failure)
	}

	fmt.Fprintf(out, "%s lockfile at %s\n", SuccessStyle.Render("restored"), lf.Path)

	if summary.HasFailures() {
		return ExitFailure, fmt.Errorf("restore completed with failures")
	}
	return ExitSuccess, nil
}
