package linker

import (
	"context"
	"path/filepath"

	"github.com/git-pkgs/nodelink/internal/core"
	"github.com/git-pkgs/nodelink/internal/lockfile"
	"github.com/git-pkgs/nodelink/internal/logging"
)

// Config holds the directories the direct dependency links connect.
type Config struct {
	VirtualStoreDir string
	ModulesDir      string
	Concurrency     int
}

// SymlinkDirectDependencies links the project's direct dependencies of the
// selected groups into ModulesDir. Transitive dependencies are reached through
// each package's virtual node_modules and are never linked here.
type SymlinkDirectDependencies struct {
	Config           Config
	ProjectSnapshot  lockfile.RootProjectSnapshot
	DependencyGroups []core.DependencyGroup
}

// Run creates the links. A workspace snapshot fails with core.ErrUnsupportedWorkspace
// before anything is written; symlink failures are collected as in CreateSymlinkLayout.
func (s SymlinkDirectDependencies) Run(ctx context.Context) error {
	project, err := s.ProjectSnapshot.Project()
	if err != nil {
		return err
	}

	deps := project.DependenciesByGroups(s.DependencyGroups...)
	links := make([]symlink, 0, len(deps))
	for _, dep := range deps {
		unit := lockfile.NewPkgNameVerPeer(dep.Name, dep.Spec.Version)
		links = append(links, symlink{
			target: PackageDir(s.Config.VirtualStoreDir, unit),
			path:   filepath.Join(s.Config.ModulesDir, filepath.FromSlash(dep.Name.String())),
		})
	}

	logger := logging.GetLogger("linker")
	logger.Debug().
		Str("modules_dir", s.Config.ModulesDir).
		Int("dependencies", len(links)).
		Msg("Linking direct dependencies")

	return symlinkAll(ctx, links, buildOptions([]Option{WithConcurrency(s.Config.Concurrency)}))
}
