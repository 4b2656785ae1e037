// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	config "github.com/lane-core/pack.ksh/internal/appconfig"
	"github.com/lane-core/pack.ksh/internal/hooks"
	"github.com/lane-core/pack.ksh/internal/ingest"
	"github.com/lane-core/pack.ksh/internal/installer"
	"github.com/lane-core/pack.ksh/internal/issuekind"
	"github.com/lane-core/pack.ksh/internal/loader"
	"github.com/lane-core/pack.ksh/internal/lockfile"
	"github.com/lane-core/pack.ksh/internal/registry"
	"github.com/lane-core/pack.ksh/internal/resolver"
	"github.com/lane-core/pack.ksh/internal/session"
	"github.com/lane-core/pack.ksh/internal/vcs"
)

// app bundles everything a subcommand needs to ingest, resolve, install,
// and load declared packages, wired once per invocation (external
// interfaces: $DATA/<app>/packages, $CONFIG/<app>/config,
// $CONFIG/<app>/packages/<name>, $CONFIG/<app>/pkgs.d).
type app struct {
	cfg    *config.Config
	reg    *registry.Registry
	vcs    *vcs.Adapter
	bus    *hooks.Bus
	logger *slog.Logger
}

func newApp(ctx context.Context) (*app, *issuekind.Summary, error) {
	cfg, err := loadSettings(ctx)
	if err != nil {
		return nil, nil, err
	}

	packagesDir, err := config.PackagesDir()
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New(func(name string) string { return filepath.Join(packagesDir, name) })
	summary := &issuekind.Summary{}

	// batchID is attached to the logger handed to the hook bus, so every
	// line that logger emits during this invocation carries it. Hook
	// payloads themselves do not include it.
	batchID := uuid.New().String()
	logger := slog.Default().With("batch_id", batchID)
	bus := hooks.New(logger)

	if err := ingestAll(ctx, reg, bus, summary); err != nil {
		return nil, summary, err
	}

	timeout := time.Duration(cfg.GitTimeoutSeconds) * time.Second
	adapter := vcs.NewAdapter(packagesDir, cfg.ShallowDepth, cfg.DefaultBranchProbeOrder, timeout)

	return &app{
		cfg:    cfg,
		reg:    reg,
		vcs:    adapter,
		bus:    bus,
		logger: logger,
	}, summary, nil
}

// ingestAll runs the three config-ingestion layers, in order,
// accumulating warnings into summary and stopping at the first
// fatal declaration error. The script and aggregation layers fire
// PackageDisabled through bus for every "disable <name>" they evaluate.
func ingestAll(ctx context.Context, reg *registry.Registry, bus *hooks.Bus, summary *issuekind.Summary) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	scriptPath := filepath.Join(cfgDir, "config")
	if content, err := os.ReadFile(scriptPath); err == nil {
		warnings, err := ingest.Script(ctx, reg, bus, string(content), scriptPath)
		addWarnings(summary, warnings)
		if err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	warnings, err := ingest.Filesystem(reg, filepath.Join(cfgDir, "packages"))
	addWarnings(summary, warnings)
	if err != nil {
		return err
	}

	warnings, err = ingest.Aggregate(ctx, reg, bus, filepath.Join(cfgDir, "pkgs.d"))
	addWarnings(summary, warnings)
	if err != nil {
		return err
	}

	return nil
}

func addWarnings(summary *issuekind.Summary, warnings []error) {
	for _, w := range warnings {
		summary.AddWarning(w)
	}
}

// resolve runs the dependency resolver and installs the resulting load
// order onto the registry. A cycle is fatal. Fires PreResolve before the
// sort runs and PostResolve once a load order is installed.
func (a *app) resolve() ([]string, []error, error) {
	a.bus.Fire(hooks.PreResolve)

	pkgs, declared := resolver.FromRegistry(a.reg)
	order, warnings, err := resolver.Resolve(pkgs, declared)
	if err != nil {
		return nil, warnings, err
	}
	a.reg.SetLoadOrder(order)

	a.bus.Fire(hooks.PostResolve, order)

	return order, warnings, nil
}

// newLoader wires a fresh Loader against a real host session and a
// bounded concurrent installer pool.
func (a *app) newLoader(ctx context.Context) *loader.Loader {
	pool := installer.New(ctx, a.cfg.Concurrency)
	sess := session.NewReal()
	return loader.New(a.reg, sess, a.vcs, a.bus, pool, loader.EntrySuffix(a.cfg.EntrySuffix))
}

func (a *app) lockfile() (*lockfile.File, error) {
	path, err := config.LockPath()
	if err != nil {
		return nil, err
	}
	return lockfile.New(path), nil
}
