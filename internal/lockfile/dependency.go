package lockfile

import (
	"strings"

	"github.com/git-pkgs/nodelink/internal/core"
)

// DependencyPath is a lockfile package key such as "/is-odd@3.0.1" or
// "registry.example.com/@scope/pkg@1.0.0(peer@2.0.0)".
type DependencyPath struct {
	CustomRegistry   string
	PackageSpecifier PkgNameVerPeer
}

// ParseDependencyPath parses a dependency path with an optional custom registry prefix.
// The leading slash is optional, as newer lockfiles omit it.
func ParseDependencyPath(s string) (DependencyPath, error) {
	rest := s
	var registry string

	switch {
	case strings.HasPrefix(rest, "/"):
		rest = rest[1:]
	case !strings.HasPrefix(rest, "@"):
		if host, tail, ok := strings.Cut(rest, "/"); ok && looksLikeHost(host) {
			registry, rest = host, tail
		}
	}

	spec, err := ParsePkgNameVerPeer(rest)
	if err != nil {
		return DependencyPath{}, &core.InvalidDependencyPathError{Path: s, Err: err}
	}
	return DependencyPath{CustomRegistry: registry, PackageSpecifier: spec}, nil
}

// looksLikeHost tells a registry prefix from the start of an unscoped specifier,
// which always carries an '@' before any '/'.
func looksLikeHost(s string) bool {
	if strings.Contains(s, "@") {
		return false
	}
	return strings.ContainsAny(s, ".:") || s == "localhost"
}

func (d DependencyPath) String() string {
	return d.CustomRegistry + "/" + d.PackageSpecifier.String()
}

// DependencyKind discriminates the two shapes of PackageSnapshotDependency.
type DependencyKind int

const (
	// KindPkgVerPeer is a plain "version(peers)" reference to a package of the same name.
	KindPkgVerPeer DependencyKind = iota + 1
	// KindDependencyPath is a full dependency path, used for aliases and custom registries.
	KindDependencyPath
)

// PackageSnapshotDependency is how one package's snapshot refers to one of its dependencies.
type PackageSnapshotDependency struct {
	Kind    DependencyKind
	VerPeer PkgVerPeer
	Path    DependencyPath
}

// VerPeerDependency returns a KindPkgVerPeer dependency.
func VerPeerDependency(v PkgVerPeer) PackageSnapshotDependency {
	return PackageSnapshotDependency{Kind: KindPkgVerPeer, VerPeer: v}
}

// PathDependency returns a KindDependencyPath dependency.
func PathDependency(p DependencyPath) PackageSnapshotDependency {
	return PackageSnapshotDependency{Kind: KindDependencyPath, Path: p}
}

// ParsePackageSnapshotDependency parses a lockfile dependency value. Values that
// parse as "version(peers)" are KindPkgVerPeer; everything else must be a dependency path.
func ParsePackageSnapshotDependency(s string) (PackageSnapshotDependency, error) {
	if v, err := ParsePkgVerPeer(s); err == nil {
		return VerPeerDependency(v), nil
	}
	p, err := ParseDependencyPath(s)
	if err != nil {
		return PackageSnapshotDependency{}, err
	}
	return PathDependency(p), nil
}

// Specifier returns the install unit the dependency refers to. alias is the key
// the dependency is listed under.
func (d PackageSnapshotDependency) Specifier(alias PkgName) PkgNameVerPeer {
	if d.Kind == KindDependencyPath {
		return d.Path.PackageSpecifier
	}
	return NewPkgNameVerPeer(alias, d.VerPeer)
}

// VirtualStoreName returns the virtual store directory of the dependency listed under alias.
func (d PackageSnapshotDependency) VirtualStoreName(alias PkgName) string {
	return d.Specifier(alias).VirtualStoreName()
}

func (d PackageSnapshotDependency) String() string {
	if d.Kind == KindDependencyPath {
		return d.Path.String()
	}
	return d.VerPeer.String()
}
