// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lane-core/pack.ksh/internal/registry"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List declared packages and their state",
		Long: `List shows every declared package with its source, pin, and whether
it is installed, missing, or disabled on disk.

list always exits 0: it reports state, it does not
validate it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			return runList(cmd.Context(), cmd.OutOrStdout())
		},
	}
	return cmd
}

func runList(ctx context.Context, out io.Writer) error {
	a, ingestSummary, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(out, ErrorStyle.Render("error:"), err)
		return nil
	}
	for _, w := range ingestSummary.Warnings() {
		fmt.Fprintln(out, WarningStyle.Render("warning:"), w)
	}
	runListForApp(a, out)
	return nil
}

func runListForApp(a *app, out io.Writer) {
	names := a.reg.Names()
	if len(names) == 0 {
		fmt.Fprintln(out, SubtitleStyle.Render("no packages declared"))
		return
	}

	a.reg.Each(nil, func(rec registry.Record, cfg registry.Config) {
		state := "installed"
		switch {
		case rec.Disabled:
			state = "disabled"
		case !rec.Local && !pathExistsCLI(rec.Path):
			state = "missing"
		}

		ref := rec.Ref.String()
		if ref == "" {
			ref = "-"
		}

		fmt.Fprintf(out, "%s  %-24s %-10s %s\n", stateBadge(state), rec.Name, ref, rec.Source)
	})
}

func stateBadge(state string) string {
	switch state {
	case "installed":
		return SuccessStyle.Render("●")
	case "missing":
		return WarningStyle.Render("○")
	case "disabled":
		return VerboseStyle.Render("×")
	default:
		return " "
	}
}

func pathExistsCLI(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
