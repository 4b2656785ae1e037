// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lane-core/pack.ksh/internal/issuekind"
)

func newInstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [name]",
		Short: "Resolve, clone, and load declared packages",
		Long: `Install ingests declared packages, resolves their load order, clones
any that are missing from the managed packages directory, and sources
entry points for packages loaded now.

Without an argument, every declared package is installed. With a name,
only that package (and its dependencies) is considered.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			var target string
			if len(args) > 0 {
				target = args[0]
			}

			code, err := runInstall(cmd.Context(), cmd.OutOrStdout(), target)
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

// runInstall wires the shared app (ingest, resolve, load) and reports the
// outcome, returning the exit code: 1 for a resolution-time logic error
// (cycle, unknown package), 2 if any package failed to clone or load, 0
// otherwise.
func runInstall(ctx context.Context, out io.Writer, target string) (ExitCode, error) {
	a, ingestSummary, err := newApp(ctx)
	if err != nil {
		return ExitFailure, err
	}

	order, warnings, err := a.resolve()
	if err != nil {
		return ExitUsage, err
	}
	for _, w := range warnings {
		fmt.Fprintln(out, WarningStyle.Render("warning:"), w)
	}
	for _, w := range ingestSummary.Warnings() {
		fmt.Fprintln(out, WarningStyle.Render("warning:"), w)
	}

	if target != "" {
		if _, _, ok := a.reg.Lookup(target); !ok {
			return ExitUsage, &issuekind.DeclarationError{Name: target, Message: "unknown package"}
		}
		order = closure(a, target, order)
		a.reg.SetLoadOrder(order)
	}

	ld := a.newLoader(ctx)
	summary := ld.Run(ctx)

	for _, w := range summary.Warnings() {
		fmt.Fprintln(out, WarningStyle.Render("warning:"), w)
	}
	for _, failure := range summary.Failures() {
		fmt.Fprintln(out, ErrorStyle.Render("error:"), failure)
	}

	fmt.Fprintf(out, "%s %d package(s) in load order\n", SuccessStyle.Render("installed"), len(order))

	if summary.HasFailures() {
		return ExitFailure, fmt.Errorf("install completed with failures")
	}
	return ExitSuccess, nil
}

// closure walks target's transitive dependencies through the registry and
// returns the subsequence of order (the resolver's topological sort) that
// target's install actually needs: target itself plus every dependency it
// reaches, in resolved order.
func closure(a *app, target string, order []string) []string {
	want := map[string]bool{target: true}
	queue := []string{target}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		_, cfg, ok := a.reg.Lookup(name)
		if !ok {
			continue
		}
		for _, dep := range cfg.Depends {
			bare, _, _ := strings.Cut(dep, "@")
			if !want[bare] {
				want[bare] = true
				queue = append(queue, bare)
			}
		}
	}

	scoped := make([]string, 0, len(want))
	for _, name := range order {
		if want[name] {
			scoped = append(scoped, name)
		}
	}
	return scoped
}
