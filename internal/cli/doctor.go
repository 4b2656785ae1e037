// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	config "github.com/lane-core/pack.ksh/internal/appconfig"
	"github.com/lane-core/pack.ksh/internal/issuekind"
	"github.com/lane-core/pack.ksh/internal/registry"
)

// doctorCheck is one diagnostic probe. ok reports pass/fail; detail is
// shown alongside the check's name regardless of outcome.
type doctorCheck struct {
	name   string
	ok     bool
	detail string
}

func newDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the local packksh environment for common problems",
		Long: `Doctor probes the config directory, the git binary, and the
registry's ingestion layers for problems that would otherwise surface
as confusing failures during install or update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			if !runDoctor(cmd.Context(), cmd.OutOrStdout()) {
				return &ExitError{Code: ExitUsage}
			}
			return nil
		},
	}
	return cmd
}

func runDoctor(ctx context.Context, out io.Writer) bool {
	checks := []doctorCheck{
		checkConfigDir(),
		checkGitBinary(),
	}

	a, summary, err := newApp(ctx)
	if err != nil {
		checks = append(checks, doctorCheck{name: "package ingestion", ok: false, detail: err.Error()})
	} else {
		checks = append(checks, ingestCheck(a, summary))
		checks = append(checks, dependencyChecks(a)...)
		checks = append(checks, packageDirectoryChecks(a)...)
		checks = append(checks, localSourceChecks(a)...)
		checks = append(checks, orphanChecks(a)...)
	}

	allOK := true
	for _, c := range checks {
		badge := SuccessStyle.Render("ok  ")
		if !c.ok {
			badge = ErrorStyle.Render("fail")
			allOK = false
		}
		fmt.Fprintf(out, "%s %-22s %s\n", badge, c.name, c.detail)
	}

	return allOK
}

func checkConfigDir() doctorCheck {
	dir, err := config.ConfigDir()
	if err != nil {
		return doctorCheck{name: "config directory", ok: false, detail: err.Error()}
	}
	if _, err := os.Stat(dir); err != nil {
		return doctorCheck{name: "config directory", ok: false, detail: dir + " (does not exist yet)"}
	}
	return doctorCheck{name: "config directory", ok: true, detail: dir}
}

func checkGitBinary() doctorCheck {
	path, err := exec.LookPath("git")
	if err != nil {
		return doctorCheck{name: "git binary", ok: false, detail: "not found on PATH"}
	}
	return doctorCheck{name: "git binary", ok: true, detail: path}
}

func ingestCheck(a *app, summary *issuekind.Summary) doctorCheck {
	if len(summary.Warnings()) > 0 {
		return doctorCheck{name: "package ingestion", ok: false, detail: fmt.Sprintf("%d warning(s)", len(summary.Warnings()))}
	}
	return doctorCheck{name: "package ingestion", ok: true, detail: fmt.Sprintf("%d package(s) declared", len(a.reg.Names()))}
}

// dependencyChecks runs the resolver without installing its result,
// surfacing every unsatisfied or constraint-mismatched dependency edge it
// would otherwise only report mid-install.
func dependencyChecks(a *app) []doctorCheck {
	_, warnings, err := a.resolve()
	if err != nil {
		return []doctorCheck{{name: "dependency graph", ok: false, detail: err.Error()}}
	}
	if len(warnings) == 0 {
		return []doctorCheck{{name: "dependency graph", ok: true, detail: "no dangling edges"}}
	}
	checks := make([]doctorCheck, 0, len(warnings))
	for _, w := range warnings {
		checks = append(checks, doctorCheck{name: "dependency edge", ok: false, detail: w.Error()})
	}
	return checks
}

// packageDirectoryChecks flags every enabled, non-local package whose Path
// does not exist on disk, the condition install would otherwise resolve by
// cloning rather than reporting.
func packageDirectoryChecks(a *app) []doctorCheck {
	var checks []doctorCheck
	a.reg.Each(registry.Enabled, func(rec registry.Record, _ registry.Config) {
		if rec.Local {
			return
		}
		if _, err := os.Stat(rec.Path); err != nil {
			checks = append(checks, doctorCheck{
				name:   "package directory",
				ok:     false,
				detail: fmt.Sprintf("%s: %s missing (run install)", rec.Name, rec.Path),
			})
		}
	})
	return checks
}

var urlSchemes = []string{"https://", "http://", "git://", "ssh://"}

// localSourceChecks flags declarations where source looks like a remote
// URL but local=true was also set, a combination that silently discards
// the remote source in favor of treating source itself as a filesystem
// path.
func localSourceChecks(a *app) []doctorCheck {
	var checks []doctorCheck
	a.reg.Each(registry.Enabled, func(rec registry.Record, _ registry.Config) {
		if !rec.Local {
			return
		}
		for _, scheme := range urlSchemes {
			if strings.HasPrefix(rec.Source, scheme) {
				checks = append(checks, doctorCheck{
					name:   "local source",
					ok:     false,
					detail: fmt.Sprintf("%s: source %q looks like a URL but local=true", rec.Name, rec.Source),
				})
				break
			}
		}
	})
	return checks
}

// orphanChecks lists directories under the managed packages directory that
// are not declared in the registry: clones left behind by a removed or
// renamed declaration.
func orphanChecks(a *app) []doctorCheck {
	packagesDir, err := config.PackagesDir()
	if err != nil {
		return []doctorCheck{{name: "orphaned clones", ok: false, detail: err.Error()}}
	}

	entries, err := os.ReadDir(packagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []doctorCheck{{name: "orphaned clones", ok: true, detail: "none"}}
		}
		return []doctorCheck{{name: "orphaned clones", ok: false, detail: err.Error()}}
	}

	declared := make(map[string]bool)
	for _, name := range a.reg.Names() {
		rec, _, ok := a.reg.Lookup(name)
		if !ok {
			continue
		}
		declared[filepath.Base(rec.Path)] = true
	}

	var orphans []string
	for _, e := range entries {
		if e.IsDir() && !declared[e.Name()] {
			orphans = append(orphans, e.Name())
		}
	}
	if len(orphans) == 0 {
		return []doctorCheck{{name: "orphaned clones", ok: true, detail: "none"}}
	}
	sort.Strings(orphans)

	checks := make([]doctorCheck, 0, len(orphans))
	for _, name := range orphans {
		checks = append(checks, doctorCheck{
			name:   "orphaned clone",
			ok:     false,
			detail: filepath.Join(packagesDir, name),
		})
	}
	return checks
}
