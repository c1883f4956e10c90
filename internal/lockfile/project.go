package lockfile

import (
	"fmt"
	"sort"

	"github.com/git-pkgs/nodelink/internal/core"
)

// ResolvedDependencySpec is a direct dependency of a project: the specifier the
// manifest declares and the version the lockfile resolved it to.
type ResolvedDependencySpec struct {
	Specifier string
	Version   PkgVerPeer
}

// ProjectSnapshot lists the resolved direct dependencies of one project.
type ProjectSnapshot struct {
	Dependencies         map[PkgName]ResolvedDependencySpec
	DevDependencies      map[PkgName]ResolvedDependencySpec
	OptionalDependencies map[PkgName]ResolvedDependencySpec
}

// Group returns the dependency map of one group.
func (p *ProjectSnapshot) Group(group core.DependencyGroup) map[PkgName]ResolvedDependencySpec {
	switch group {
	case core.Prod:
		return p.Dependencies
	case core.Dev:
		return p.DevDependencies
	case core.Optional:
		return p.OptionalDependencies
	}
	return nil
}

// DirectDependency is one entry yielded by DependenciesByGroups.
type DirectDependency struct {
	Name  PkgName
	Spec  ResolvedDependencySpec
	Group core.DependencyGroup
}

// DependenciesByGroups returns the direct dependencies of the given groups in
// group order, sorted by name within a group. Repeated groups are visited once.
func (p *ProjectSnapshot) DependenciesByGroups(groups ...core.DependencyGroup) []DirectDependency {
	var deps []DirectDependency
	seen := make(map[core.DependencyGroup]bool, len(groups))

	for _, group := range groups {
		if seen[group] {
			continue
		}
		seen[group] = true

		entries := p.Group(group)
		names := make([]PkgName, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			return names[i].String() < names[j].String()
		})
		for _, name := range names {
			deps = append(deps, DirectDependency{Name: name, Spec: entries[name], Group: group})
		}
	}
	return deps
}

// RootProjectSnapshot is either a single project or a workspace of several.
// Exactly one of Single and Multi is set.
type RootProjectSnapshot struct {
	Single *ProjectSnapshot
	Multi  map[string]*ProjectSnapshot
}

// SingleProject wraps a project snapshot as the root of a non-workspace install.
func SingleProject(p *ProjectSnapshot) RootProjectSnapshot {
	return RootProjectSnapshot{Single: p}
}

// MultiProject wraps workspace importers keyed by their relative path.
func MultiProject(importers map[string]*ProjectSnapshot) RootProjectSnapshot {
	return RootProjectSnapshot{Multi: importers}
}

// Project returns the single project, or core.ErrUnsupportedWorkspace for workspaces.
func (r RootProjectSnapshot) Project() (*ProjectSnapshot, error) {
	if r.Multi != nil {
		return nil, fmt.Errorf("%d importers: %w", len(r.Multi), core.ErrUnsupportedWorkspace)
	}
	if r.Single == nil {
		return &ProjectSnapshot{}, nil
	}
	return r.Single, nil
}

// PackageResolution locates the tarball a package snapshot was installed from.
type PackageResolution struct {
	Integrity string
	Tarball   string
}

// PackageSnapshot describes one install unit of the lockfile.
type PackageSnapshot struct {
	Resolution           PackageResolution
	Dependencies         map[PkgName]PackageSnapshotDependency
	OptionalDependencies map[PkgName]PackageSnapshotDependency
	Dev                  bool
	Optional             bool
}

// AllDependencies returns regular and optional dependencies in one map.
func (s *PackageSnapshot) AllDependencies() map[PkgName]PackageSnapshotDependency {
	all := make(map[PkgName]PackageSnapshotDependency, len(s.Dependencies)+len(s.OptionalDependencies))
	for name, dep := range s.OptionalDependencies {
		all[name] = dep
	}
	for name, dep := range s.Dependencies {
		all[name] = dep
	}
	return all
}

// Lockfile is the parsed content of a lockfile document.
type Lockfile struct {
	LockfileVersion string
	Importers       RootProjectSnapshot
	Packages        map[string]*PackageSnapshot // keyed by dependency path
}

// PackageEntry is a lockfile package with its parsed key.
type PackageEntry struct {
	Path     DependencyPath
	Snapshot *PackageSnapshot
}

// PackageEntries parses every package key, returning entries sorted by key.
func (l *Lockfile) PackageEntries() ([]PackageEntry, error) {
	keys := make([]string, 0, len(l.Packages))
	for key := range l.Packages {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]PackageEntry, 0, len(keys))
	for _, key := range keys {
		path, err := ParseDependencyPath(key)
		if err != nil {
			return nil, err
		}
		snapshot := l.Packages[key]
		if snapshot == nil {
			snapshot = &PackageSnapshot{}
		}
		entries = append(entries, PackageEntry{Path: path, Snapshot: snapshot})
	}
	return entries, nil
}
