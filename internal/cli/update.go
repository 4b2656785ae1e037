// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lane-core/pack.ksh/internal/appliers"
	"github.com/lane-core/pack.ksh/internal/issuekind"
	"github.com/lane-core/pack.ksh/internal/registry"
	"github.com/lane-core/pack.ksh/internal/session"
	"github.com/lane-core/pack.ksh/internal/vcs"
)

func newUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [name]",
		Short: "Fetch and check out the latest pinned ref for installed packages",
		Long: `Update re-fetches each installed package's source and checks out its
current pin (branch head, tag, or commit), then re-runs the loader to
pick up any entry-point or field changes.

Without an argument, every non-disabled, non-local package is updated.
With a name, only that package is updated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			var target string
			if len(args) > 0 {
				target = args[0]
			}

			code, err := runUpdate(cmd.Context(), cmd.OutOrStdout(), target)
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

func runUpdate(ctx context.Context, out io.Writer, target string) (ExitCode, error) {
	a, ingestSummary, err := newApp(ctx)
	if err != nil {
		return ExitFailure, err
	}
	for _, w := range ingestSummary.Warnings() {
		fmt.Fprintln(out, WarningStyle.Render("warning:"), w)
	}

	if target != "" {
		if _, _, ok := a.reg.Lookup(target); !ok {
			return ExitUsage, &issuekind.DeclarationError{Name: target, Message: "unknown package"}
		}
	}

	failed := 0
	sess := session.NewReal()

	var names []string
	for _, name := range a.reg.Names() {
		if target != "" && name != target {
			continue
		}
		names = append(names, name)
	}

	for _, name := range names {
		rec, _, ok := a.reg.Lookup(name)
		if !ok || rec.Disabled || rec.Local {
			continue
		}

		var pin vcs.Pin
		switch rec.Ref.Kind {
		case registry.RefBranch:
			pin.Branch = rec.Ref.Value
		case registry.RefTag:
			pin.Tag = rec.Ref.Value
		case registry.RefCommit:
			pin.Commit = rec.Ref.Value
		}

		source := rec.Source
		if rec.URLOverride != "" {
			source = rec.URLOverride
		}

		var vcsErr error
		if vcs.HasCheckout(rec.Path) {
			vcsErr = a.vcs.Update(ctx, rec.Path, pin)
		} else {
			vcsErr = a.vcs.Checkout(ctx, source, rec.Path, pin)
		}
		if vcsErr != nil {
			fmt.Fprintln(out, ErrorStyle.Render("error:"), &issuekind.VCSError{Name: name, Source: source, Message: vcsErr.Error()})
			failed++
			continue
		}
		if err := appliers.ApplyBuild(ctx, sess, name, rec.Path, rec.Build); err != nil {
			fmt.Fprintln(out, WarningStyle.Render("warning:"), err)
		}
		fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("updated"), name)
	}

	if _, _, err := a.resolve(); err != nil {
		return ExitUsage, err
	}

	ld := a.newLoader(ctx)
	summary := ld.Run(ctx)
	for _, failure := range summary.Failures() {
		fmt.Fprintln(out, ErrorStyle.Render("error:"), failure)
		failed++
	}

	if failed > 0 {
		return ExitFailure, fmt.Errorf("update completed with %d failure(s)", failed)
	}
	return ExitSuccess, nil
}
