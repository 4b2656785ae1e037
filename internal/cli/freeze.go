// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lane-core/pack.ksh/internal/lockfile"
)

func newFreezeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Pin every installed package to its current commit in the lockfile",
		Long: `Freeze records the exact commit each non-local, non-disabled package
has checked out, writing name|source|commit|timestamp rows to the
lockfile. A later "restore" reproduces this exact state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			if err := runFreeze(cmd.Context(), cmd.OutOrStdout()); err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}
			return nil
		},
	}
	return cmd
}

func runFreeze(ctx context.Context, out io.Writer) error {
	a, _, err := newApp(ctx)
	if err != nil {
		return err
	}

	lf, err := a.lockfile()
	if err != nil {
		return err
	}

	if err := lf.Freeze(ctx, a.reg, lockfile.DefaultRevparser, lockfile.Now()); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s lockfile at %s\n", SuccessStyle.Render("froze"), lf.Path)
	return nil
}
