// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lane-core/pack.ksh/internal/issuekind"
)

func newPathCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path <name>",
		Short: "Print the on-disk path of a declared package",
		Long: `Path prints the resolved on-disk location of a package, for use in
shell substitutions such as:

  export PATH="$(packksh path mytool)/bin:$PATH"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			if err := runPath(cmd.Context(), cmd.OutOrStdout(), args[0]); err != nil {
				return &ExitError{Code: ExitUsage, Err: err}
			}
			return nil
		},
	}
	return cmd
}

func runPath(ctx context.Context, out io.Writer, name string) error {
	a, _, err := newApp(ctx)
	if err != nil {
		return err
	}
	return runPathForApp(a, out, name)
}

func runPathForApp(a *app, out io.Writer, name string) error {
	rec, _, ok := a.reg.Lookup(name)
	if !ok {
		return &issuekind.DeclarationError{Name: name, Message: "unknown package"}
	}

	fmt.Fprintln(out, rec.Path)
	return nil
}
