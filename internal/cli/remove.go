// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lane-core/pack.ksh/internal/hooks"
	"github.com/lane-core/pack.ksh/internal/issuekind"
)

func newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Disable a package and delete its on-disk clone",
		Long: `Remove disables the named package in the registry and, unless
--keep-files is given, deletes its managed clone from disk. The
declaration itself (script, filesystem, or pkgs.d entry) is left
untouched, and the disable lasts only for this invocation: re-running
install declares the package again as enabled and clones it again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			keepFiles, _ := cmd.Flags().GetBool("keep-files")

			code, err := runRemove(cmd.Context(), cmd.OutOrStdout(), args[0], keepFiles)
			if err != nil {
				return &ExitError{Code: code, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().Bool("keep-files", false, "Disable the package without deleting its managed clone")
	return cmd
}

func runRemove(ctx context.Context, out io.Writer, name string, keepFiles bool) (ExitCode, error) {
	a, _, err := newApp(ctx)
	if err != nil {
		return ExitFailure, err
	}
	return runRemoveForApp(a, out, name, keepFiles)
}

func runRemoveForApp(a *app, out io.Writer, name string, keepFiles bool) (ExitCode, error) {
	rec, _, ok := a.reg.Lookup(name)
	if !ok {
		return ExitUsage, &issuekind.DeclarationError{Name: name, Message: "unknown package"}
	}

	a.reg.Disable(name)
	a.bus.Fire(hooks.PackageDisabled, name)

	if !keepFiles && !rec.Local {
		if err := os.RemoveAll(rec.Path); err != nil && !os.IsNotExist(err) {
			return ExitFailure, &issuekind.VCSError{Name: name, Source: rec.Path, Message: err.Error()}
		}
	}

	fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("removed"), name)
	return ExitSuccess, nil
}
