package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/nodelink/client"
	"github.com/git-pkgs/nodelink/internal/lockfile"
	"github.com/git-pkgs/nodelink/internal/registry"
)

var ErrNoDownloadURL = errors.New("no download URL available")

// MetadataSource provides package metadata. *registry.Cache satisfies it.
type MetadataSource interface {
	Get(ctx context.Context, name string) (*registry.Package, error)
}

// Resolver determines where package tarballs are downloaded from.
type Resolver struct {
	urls     client.URLBuilder
	metadata MetadataSource
}

// NewResolver creates a resolver for registryURL. When metadata is nil, tarball
// URLs are derived from the registry's conventional layout without any request.
func NewResolver(registryURL string, metadata MetadataSource) *Resolver {
	return &Resolver{
		urls:     client.NewNpmURLs(registryURL),
		metadata: metadata,
	}
}

// ArtifactInfo describes a downloadable tarball.
type ArtifactInfo struct {
	URL       string
	Filename  string
	Integrity string // SRI, e.g. sha512-...
}

// Resolve returns the tarball of name@version. The dist section of the version
// metadata is preferred; the conventional URL is used when it has no tarball.
func (r *Resolver) Resolve(ctx context.Context, name, version string) (*ArtifactInfo, error) {
	if r.metadata != nil {
		pkg, err := r.metadata.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("fetching metadata: %w", err)
		}
		v, ok := pkg.Versions[version]
		if !ok {
			return nil, fmt.Errorf("%s@%s: %w", name, version, ErrNotFound)
		}
		if v.Dist.Tarball != "" {
			return &ArtifactInfo{
				URL:       v.Dist.Tarball,
				Filename:  filenameFromURL(v.Dist.Tarball),
				Integrity: v.Dist.IntegrityOrShasum(),
			}, nil
		}
	}
	return r.conventional(name, version, "")
}

// ResolveSnapshot returns the tarball recorded for a lockfile package, falling
// back to the conventional URL. It never touches the network.
func (r *Resolver) ResolveSnapshot(unit lockfile.PkgNameVerPeer, res lockfile.PackageResolution) (*ArtifactInfo, error) {
	if res.Tarball != "" {
		return &ArtifactInfo{
			URL:       res.Tarball,
			Filename:  filenameFromURL(res.Tarball),
			Integrity: res.Integrity,
		}, nil
	}
	version := ""
	if unit.Suffix.Version != nil {
		version = unit.Suffix.Version.String()
	}
	return r.conventional(unit.Name.String(), version, res.Integrity)
}

func (r *Resolver) conventional(name, version, integrity string) (*ArtifactInfo, error) {
	url := r.urls.Download(name, version)
	if url == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNoDownloadURL)
	}
	return &ArtifactInfo{
		URL:       url,
		Filename:  filenameFromURL(url),
		Integrity: integrity,
	}, nil
}

func filenameFromURL(url string) string {
	url, _, _ = strings.Cut(url, "?")
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}
