// Package registry fetches npm package metadata and picks versions from it.
package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/git-pkgs/nodelink/client"
	"github.com/git-pkgs/nodelink/internal/core"
)

// LatestTag is the dist-tag that names the default version of a package.
const LatestTag = "latest"

// Package is the metadata document the registry serves for one package name.
type Package struct {
	Name     string                     `json:"name"`
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]*PackageVersion `json:"versions"`
}

// Equal reports whether p and other describe the same package.
// Only names are compared: two fetches of one package are equal whatever versions they list.
func (p *Package) Equal(other *Package) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Name == other.Name
}

// FetchPackage issues a single GET to registry+name and decodes the metadata document.
// Transport, status and decode failures are all reported as *core.NetworkError.
func FetchPackage(ctx context.Context, name string, c *client.Client, registry string) (*Package, error) {
	url := client.NormalizeRegistry(registry) + name

	var pkg Package
	if err := c.GetJSON(ctx, url, &pkg); err != nil {
		return nil, &core.NetworkError{URL: url, Err: err}
	}
	return &pkg, nil
}

// PinnedVersion returns the highest version satisfying rng, or nil if none does.
// An empty range or "*" accepts every non-prerelease version. A prerelease only
// satisfies rng when a comparator of the same "||" alternative carries a
// prerelease on the same major.minor.patch, as npm decides.
func (p *Package) PinnedVersion(rng string) (*PackageVersion, error) {
	rng = strings.TrimSpace(rng)
	if rng == "" {
		rng = "*"
	}

	constraint, err := parseNpmRange(rng)
	if err != nil {
		return nil, &core.InvalidRangeError{Range: rng, Err: err}
	}

	var best *PackageVersion
	for _, v := range p.Versions {
		if v == nil || v.Version == nil || !constraint.Check(v.Version) {
			continue
		}
		if best == nil || newer(v.Version, best.Version) {
			best = v
		}
	}
	return best, nil
}

// newer orders by semver precedence. Versions differing only in build metadata
// have equal precedence, so their original strings break the tie.
func newer(a, b *semver.Version) bool {
	if c := a.Compare(b); c != 0 {
		return c > 0
	}
	return a.Original() > b.Original()
}

// Latest returns the version the "latest" dist-tag points at.
func (p *Package) Latest() (*PackageVersion, error) {
	return p.Tagged(LatestTag)
}

// Tagged returns the version a dist-tag points at.
func (p *Package) Tagged(tag string) (*PackageVersion, error) {
	version, ok := p.DistTags[tag]
	if !ok {
		return nil, &core.MissingDistTagError{Package: p.Name, Tag: tag}
	}
	v, ok := p.Versions[version]
	if !ok || v == nil {
		return nil, &core.MissingVersionError{Package: p.Name, Version: version}
	}
	return v, nil
}

// Resolve picks a version for a manifest specifier: a dist-tag name or a semver range.
func (p *Package) Resolve(spec string) (*PackageVersion, error) {
	if _, ok := p.DistTags[spec]; ok {
		return p.Tagged(spec)
	}
	return p.PinnedVersion(spec)
}

// SortedVersions returns all parsed versions in ascending precedence.
func (p *Package) SortedVersions() []*PackageVersion {
	versions := make([]*PackageVersion, 0, len(p.Versions))
	for _, v := range p.Versions {
		if v != nil && v.Version != nil {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		return newer(versions[j].Version, versions[i].Version)
	})
	return versions
}
