// Package install materializes a lockfile on disk: every package is imported
// from the store into the virtual store, its dependencies are linked beside it,
// and the project's direct dependencies are linked into node_modules.
package install

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/git-pkgs/nodelink/fetch"
	"github.com/git-pkgs/nodelink/internal/core"
	"github.com/git-pkgs/nodelink/internal/linker"
	"github.com/git-pkgs/nodelink/internal/lockfile"
	"github.com/git-pkgs/nodelink/internal/logging"
	"github.com/git-pkgs/nodelink/internal/store"
)

// CasIndex maps a package to the store files it consists of. *store.CAS satisfies it.
type CasIndex interface {
	CasPaths(pkg, integrity string) (map[string]string, error)
}

// Installer holds the directories and limits of one project install.
type Installer struct {
	Store           CasIndex
	VirtualStoreDir string
	ModulesDir      string
	ImportMethod    core.ImportMethod
	Concurrency     int
}

func (in *Installer) concurrency() int {
	if in.Concurrency < 1 {
		return store.DefaultConcurrency()
	}
	return in.Concurrency
}

func (in *Installer) importMethod() core.ImportMethod {
	if in.ImportMethod == "" {
		return core.ImportAuto
	}
	return in.ImportMethod
}

// Install lays out every package of lock that the selected groups need.
// With no groups, all groups are installed. Workspace lockfiles are rejected
// before anything is written.
func (in *Installer) Install(ctx context.Context, lock *lockfile.Lockfile, groups ...core.DependencyGroup) error {
	if _, err := lock.Importers.Project(); err != nil {
		return err
	}
	if len(groups) == 0 {
		groups = core.AllGroups()
	}

	entries, err := lock.PackageEntries()
	if err != nil {
		return err
	}
	entries = selectEntries(entries, groups)

	logger := logging.GetLogger("install")
	done := logging.LogOperationStart(logger, "install")
	defer done()
	logger.Info().
		Int("packages", len(entries)).
		Str("virtual_store", in.VirtualStoreDir).
		Msg("Installing packages")

	installed := make(map[string]bool, len(entries))
	for _, entry := range entries {
		installed[entry.Path.PackageSpecifier.VirtualStoreName()] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency())
	for _, entry := range entries {
		g.Go(func() error {
			return in.installPackage(gctx, entry, installed)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return linker.SymlinkDirectDependencies{
		Config: linker.Config{
			VirtualStoreDir: in.VirtualStoreDir,
			ModulesDir:      in.ModulesDir,
			Concurrency:     in.Concurrency,
		},
		ProjectSnapshot:  lock.Importers,
		DependencyGroups: groups,
	}.Run(ctx)
}

func (in *Installer) installPackage(ctx context.Context, entry lockfile.PackageEntry, installed map[string]bool) error {
	unit := entry.Path.PackageSpecifier
	integrity := entry.Snapshot.Resolution.Integrity
	if integrity == "" {
		return &core.MissingIndexError{Package: unit.String()}
	}

	casPaths, err := in.Store.CasPaths(unit.String(), integrity)
	if err != nil {
		return err
	}

	packageDir := linker.PackageDir(in.VirtualStoreDir, unit)
	if err := store.ImportCasFiles(ctx, in.importMethod(), packageDir, casPaths, store.WithConcurrency(in.Concurrency)); err != nil {
		return err
	}

	// Dependencies left out of this install (skipped optional or dev packages)
	// would only produce dangling links.
	deps := entry.Snapshot.AllDependencies()
	for name, dep := range deps {
		if !installed[dep.VirtualStoreName(name)] {
			delete(deps, name)
		}
	}

	nodeModules := filepath.Join(in.VirtualStoreDir, unit.VirtualStoreName(), "node_modules")
	return linker.CreateSymlinkLayout(ctx, deps, in.VirtualStoreDir, nodeModules, linker.WithConcurrency(in.Concurrency))
}

// selectEntries drops dev-only and optional-only packages whose group was not requested.
func selectEntries(entries []lockfile.PackageEntry, groups []core.DependencyGroup) []lockfile.PackageEntry {
	wantDev := slices.Contains(groups, core.Dev)
	wantOptional := slices.Contains(groups, core.Optional)

	selected := make([]lockfile.PackageEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Snapshot.Dev && !wantDev {
			continue
		}
		if entry.Snapshot.Optional && !wantOptional {
			continue
		}
		selected = append(selected, entry)
	}
	return selected
}

// MissingArtifacts lists the tarballs of lockfile packages the store has no index
// for, in lockfile order. Those must be fetched and added before Install can run.
func (in *Installer) MissingArtifacts(lock *lockfile.Lockfile, resolver *fetch.Resolver) ([]*fetch.ArtifactInfo, error) {
	entries, err := lock.PackageEntries()
	if err != nil {
		return nil, err
	}

	var missing []*fetch.ArtifactInfo
	for _, entry := range entries {
		unit := entry.Path.PackageSpecifier
		res := entry.Snapshot.Resolution
		if res.Integrity != "" {
			_, err := in.Store.CasPaths(unit.String(), res.Integrity)
			var indexErr *core.MissingIndexError
			switch {
			case err == nil:
				continue
			case !errors.As(err, &indexErr):
				return nil, err
			}
		}

		info, err := resolver.ResolveSnapshot(unit, res)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", unit, err)
		}
		missing = append(missing, info)
	}
	return missing, nil
}
