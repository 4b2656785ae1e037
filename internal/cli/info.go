// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lane-core/pack.ksh/internal/issuekind"
)

// infoView is the YAML-renderable shape of a package's resolved record
// and config, for `packksh info --format yaml`.
type infoView struct {
	Name     string   `yaml:"name"`
	Source   string   `yaml:"source"`
	Path     string   `yaml:"path"`
	Ref      string   `yaml:"ref,omitempty"`
	Local    bool     `yaml:"local"`
	LoadMode string   `yaml:"load_mode"`
	Disabled bool     `yaml:"disabled"`
	Env      []string `yaml:"env,omitempty"`
	Paths    []string `yaml:"path_entries,omitempty"`
	FPaths   []string `yaml:"fpath_entries,omitempty"`
	Aliases  []string `yaml:"aliases,omitempty"`
	Depends  []string `yaml:"depends,omitempty"`
	RC       string   `yaml:"rc,omitempty"`
}

func newInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <name>",
		Short: "Show a declared package's resolved fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			format, _ := cmd.Flags().GetString("format")

			if err := runInfo(cmd.Context(), cmd.OutOrStdout(), args[0], format); err != nil {
				return &ExitError{Code: ExitUsage, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().String("format", "text", "Output format: text or yaml")
	return cmd
}

func runInfo(ctx context.Context, out io.Writer, name, format string) error {
	a, _, err := newApp(ctx)
	if err != nil {
		return err
	}
	return runInfoForApp(a, out, name, format)
}

func runInfoForApp(a *app, out io.Writer, name, format string) error {
	rec, cfg, ok := a.reg.Lookup(name)
	if !ok {
		return &issuekind.DeclarationError{Name: name, Message: "unknown package"}
	}

	view := infoView{
		Name:     rec.Name,
		Source:   rec.Source,
		Path:     rec.Path,
		Ref:      rec.Ref.String(),
		Local:    rec.Local,
		LoadMode: string(rec.LoadMode),
		Disabled: rec.Disabled,
		Env:      cfg.Env,
		Paths:    cfg.Paths,
		FPaths:   cfg.FPaths,
		Aliases:  cfg.Aliases,
		Depends:  cfg.Depends,
		RC:       cfg.RC,
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(view)
	}

	fmt.Fprintf(out, "%s\n", TitleStyle.Render(view.Name))
	fmt.Fprintf(out, "  source:     %s\n", view.Source)
	fmt.Fprintf(out, "  path:       %s\n", view.Path)
	if view.Ref != "" {
		fmt.Fprintf(out, "  ref:        %s\n", view.Ref)
	}
	fmt.Fprintf(out, "  local:      %v\n", view.Local)
	fmt.Fprintf(out, "  load_mode:  %s\n", view.LoadMode)
	fmt.Fprintf(out, "  disabled:   %v\n", view.Disabled)
	if len(view.Depends) > 0 {
		fmt.Fprintf(out, "  depends:    %v\n", view.Depends)
	}
	if len(view.Env) > 0 {
		fmt.Fprintf(out, "  env:        %v\n", view.Env)
	}
	if len(view.Aliases) > 0 {
		fmt.Fprintf(out, "  aliases:    %v\n", view.Aliases)
	}

	return nil
}
