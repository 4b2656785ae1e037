// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lane-core/pack.ksh/internal/selfupdate"
)

// selfUpdateParams bundles the dependencies and flags for the self-update
// command so the core logic in runSelfUpdate can be tested without a real
// Cobra command or live GitHub API calls.
type selfUpdateParams struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	updater *selfupdate.Updater
	target  string
	check   bool
	yes     bool
}

// newSelfUpdateCommand creates the `packksh self-update` command.
func newSelfUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "self-update [version]",
		Short: "Update packksh to the latest stable release or a specific version",
		Long: `Update packksh to the latest stable release or a specific version.

Downloads the new binary from GitHub Releases, verifies its SHA256
checksum, and atomically replaces the current binary.

If packksh was installed via Homebrew or go install, the command
suggests using the appropriate package manager instead.`,
		Example: `  packksh self-update
  packksh self-update --check
  packksh self-update v1.2.0
  packksh self-update --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			checkFlag, _ := cmd.Flags().GetBool("check")
			yesFlag, _ := cmd.Flags().GetBool("yes")

			var target string
			if len(args) > 0 {
				target = args[0]
			}

			var clientOpts []selfupdate.ClientOption
			if token := os.Getenv("GITHUB_TOKEN"); token != "" {
				clientOpts = append(clientOpts, selfupdate.WithToken(token))
			}
			clientOpts = append(clientOpts, selfupdate.WithUserAgent("packksh/"+Version))

			client := selfupdate.NewGitHubClient(clientOpts...)
			updater := selfupdate.NewUpdater(Version, selfupdate.WithGitHubClient(client))

			p := selfUpdateParams{
				stdin:   cmd.InOrStdin(),
				stdout:  cmd.OutOrStdout(),
				stderr:  cmd.ErrOrStderr(),
				updater: updater,
				target:  target,
				check:   checkFlag,
				yes:     yesFlag,
			}

			if err := runSelfUpdate(cmd.Context(), p); err != nil {
				fmt.Fprintln(p.stderr, formatSelfUpdateError(err))
				return &ExitError{Code: classifySelfUpdateExitCode(err), Err: err}
			}

			return nil
		},
	}

	cmd.Flags().Bool("check", false, "Check for an available update without installing")
	cmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	return cmd
}

func runSelfUpdate(ctx context.Context, p selfUpdateParams) error {
	check, err := p.updater.Check(ctx, p.target)
	if err != nil {
		return fmt.Errorf("checking for update: %w", err)
	}

	if check.InstallMethod == selfupdate.InstallMethodHomebrew ||
		check.InstallMethod == selfupdate.InstallMethodGoInstall {
		fmt.Fprintln(p.stdout, check.Message)
		return nil
	}

	if !check.UpgradeAvailable {
		fmt.Fprintf(p.stdout, "Current version: %s\n", check.CurrentVersion)
		if check.LatestVersion != "" {
			fmt.Fprintf(p.stdout, "Latest version:  %s\n", check.LatestVersion)
		}
		fmt.Fprintf(p.stdout, "\n%s\n", check.Message)
		return nil
	}

	if p.check {
		fmt.Fprintf(p.stdout, "Current version: %s\n", check.CurrentVersion)
		fmt.Fprintf(p.stdout, "Latest version:  %s\n", check.LatestVersion)
		fmt.Fprintf(p.stdout, "\nAn update is available: %s → %s\n", check.CurrentVersion, check.LatestVersion)
		fmt.Fprintln(p.stdout, "Run 'packksh self-update' to install.")
		return nil
	}

	fmt.Fprintf(p.stdout, "Current version: %s\n", check.CurrentVersion)
	fmt.Fprintf(p.stdout, "Latest version:  %s\n", check.LatestVersion)

	if !p.yes {
		confirmed, confirmErr := confirmPrompt(p.stdin, p.stdout,
			fmt.Sprintf("Update packksh from %s to %s? [y/N] ", check.CurrentVersion, check.LatestVersion))
		if confirmErr != nil {
			return fmt.Errorf("confirmation prompt: %w", confirmErr)
		}
		if !confirmed {
			return nil
		}
	}

	fmt.Fprintf(p.stdout, "\nDownloading packksh %s...\n", check.LatestVersion)

	if err := p.updater.Apply(ctx, check.TargetRelease); err != nil {
		return fmt.Errorf("applying update: %w", err)
	}

	fmt.Fprintln(p.stdout, "Verifying checksum... OK")
	fmt.Fprintln(p.stdout, "Replacing binary...  OK")
	fmt.Fprintln(p.stdout, SuccessStyle.Render(fmt.Sprintf("Successfully updated to %s", check.LatestVersion)))

	return nil
}

// confirmPrompt writes prompt to out, reads one line from in, and reports
// whether it was an affirmative ("y" or "yes", case-insensitive).
func confirmPrompt(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func classifySelfUpdateExitCode(err error) ExitCode {
	switch {
	case errors.Is(err, os.ErrPermission):
		return ExitUsage
	case errors.Is(err, selfupdate.ErrReleaseNotFound):
		return ExitUsage
	default:
		return ExitFailure
	}
}

func formatSelfUpdateError(err error) string {
	var rateLimitErr *selfupdate.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Sprintf("%s\n\nTo increase your rate limit, set a GitHub token:\n  export GITHUB_TOKEN=ghp_...\nThen retry: packksh self-update",
			rateLimitErr.Error())
	}

	var checksumErr *selfupdate.ChecksumError
	if errors.As(err, &checksumErr) {
		return fmt.Sprintf("checksum verification failed for %s\n\nExpected: %s\nGot:      %s\n\nThe download may be corrupted. Please try again.",
			checksumErr.Filename, checksumErr.Expected, checksumErr.Got)
	}

	if errors.Is(err, os.ErrPermission) {
		return "insufficient permissions to replace the binary\n\nTry running with elevated privileges:\n  sudo packksh self-update"
	}

	return fmt.Sprintf("%s\n\nCheck your network connection and try again.\nIf behind a firewall, set GITHUB_TOKEN for authenticated access.", err.Error())
}
