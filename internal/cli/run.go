// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lane-core/pack.ksh/internal/issuekind"
)

func newRunCommand() *cobra.Command {
	var pkgName string

	cmd := &cobra.Command{
		Use:   "run [--pkg NAME] -- CMD [ARGS...]",
		Short: "Run a command, optionally with a package's environment applied",
		Long: `Run executes CMD as a child process. With --pkg, the named package's
PATH entries and declared env vars are applied to the child's
environment first, without mutating the current shell session.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			code, err := runRun(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), pkgName, args)
			if err != nil {
				return &ExitError{Code: code, Err: err}
			}
			if code != ExitSuccess {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pkgName, "pkg", "", "Apply this package's env and path before running CMD")
	return cmd
}

func runRun(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, pkgName string, args []string) (ExitCode, error) {
	a, _, err := newApp(ctx)
	if err != nil {
		return ExitFailure, err
	}

	env := append([]string(nil), os.Environ()...)
	pathEntries := []string{}

	if pkgName != "" {
		rec, cfg, ok := a.reg.Lookup(pkgName)
		if !ok {
			return ExitUsage, &issuekind.DeclarationError{Name: pkgName, Message: "unknown package"}
		}

		for _, kv := range cfg.Env {
			env = append(env, kv)
		}
		for _, p := range cfg.Paths {
			if !filepath.IsAbs(p) {
				p = filepath.Join(rec.Path, p)
			}
			pathEntries = append(pathEntries, p)
		}
	}

	if len(pathEntries) > 0 {
		currentPath := os.Getenv("PATH")
		env = append(env, "PATH="+strings.Join(append(pathEntries, currentPath), string(os.PathListSeparator)))
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = env
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return ExitCode(exitErr.ExitCode()), fmt.Errorf("%s: %w", args[0], err)
		}
		return ExitFailure, err
	}

	return ExitSuccess, nil
}
