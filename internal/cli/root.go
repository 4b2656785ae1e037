// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	config "github.com/lane-core/pack.ksh/internal/appconfig"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	verbose bool
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "packksh",
		Short: "A declarative package manager for shell plugins",
		Long: TitleStyle.Render("packksh") + SubtitleStyle.Render(" - a declarative package manager for shell plugins") + `

packksh declares shell plugins by source URL or shorthand, resolves
their dependencies, clones them concurrently, and loads them into the
current shell session.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Declare packages in $CONFIG/packksh/config or pkgs.d/*.pack
  2. Run: packksh install
  3. Source the loader from your shell rc file

` + SubtitleStyle.Render("Examples:") + `
  packksh install               Clone and load every declared package
  packksh list                  Show declared packages and their state
  packksh info zsh-autosuggestions   Show one package's resolved fields
  packksh freeze                 Pin every installed package to its commit`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default is $CONFIG/packksh/settings.toml)")

	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newUpdateCommand())
	rootCmd.AddCommand(newRemoveCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newFreezeCommand())
	rootCmd.AddCommand(newRestoreCommand())
	rootCmd.AddCommand(newInfoCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newPathCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newDoctorCommand())
	rootCmd.AddCommand(newSelfUpdateCommand())
	rootCmd.AddCommand(newCompletionCommand())
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and runs it. It is
// called once from main.main.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(int(ExitUsage))
	}
}

// loadSettings resolves ambient settings honoring --config, falling back
// to defaults and PACKKSH_-prefixed environment overrides.
func loadSettings(ctx context.Context) (*config.Config, error) {
	opts := config.LoadOptions{}
	if cfgFile != "" {
		opts.ConfigFilePath = cfgFile
	}
	return config.NewProvider().Load(ctx, opts)
}
