// Package nodelink installs npm packages the way pnpm lays them out: files live
// once in a content-addressable store, every package version gets a directory in
// a virtual store whose node_modules links to its dependencies, and the project's
// node_modules only links to its direct dependencies.
//
// Basic usage:
//
//	cfg, err := nodelink.LoadConfig(".")
//	if err != nil {
//		log.Fatal(err)
//	}
//	installer := nodelink.NewInstaller(cfg)
//	if err := installer.Install(ctx, lock, nodelink.Prod, nodelink.Dev); err != nil {
//		os.Exit(nodelink.ExitCode(err))
//	}
//
// Versions are picked from registry metadata:
//
//	cache := nodelink.NewCache(nodelink.DefaultClient(), "")
//	v, err := cache.ResolveVersion(ctx, "is-odd", "^3.0.0")
package nodelink

import (
	"context"

	"github.com/git-pkgs/nodelink/client"
	"github.com/git-pkgs/nodelink/fetch"
	"github.com/git-pkgs/nodelink/install"
	"github.com/git-pkgs/nodelink/internal/config"
	"github.com/git-pkgs/nodelink/internal/core"
	"github.com/git-pkgs/nodelink/internal/lockfile"
	"github.com/git-pkgs/nodelink/internal/logging"
	"github.com/git-pkgs/nodelink/internal/registry"
	"github.com/git-pkgs/nodelink/internal/store"
)

// Re-export types from internal packages
type (
	// Config is the resolved configuration of one project.
	Config = config.Config

	// Installer lays a lockfile out on disk.
	Installer = install.Installer

	// Lockfile is the in-memory form of a lockfile.
	Lockfile = lockfile.Lockfile

	// Package is the registry metadata of one package name.
	Package = registry.Package

	// PackageVersion is the metadata of one published version.
	PackageVersion = registry.PackageVersion

	// Cache shares registry metadata fetches by package name.
	Cache = registry.Cache

	// Store is the content-addressable file store installs read from.
	Store = store.CAS

	// StoreFile is one file of a package added to the Store.
	StoreFile = store.File

	// Resolver maps package versions and lockfile entries to tarball URLs.
	Resolver = fetch.Resolver

	// ArtifactInfo describes one tarball to download.
	ArtifactInfo = fetch.ArtifactInfo

	// PkgName is a validated npm package name.
	PkgName = lockfile.PkgName

	// PkgNameVerPeer identifies one install unit: name, version and peers.
	PkgNameVerPeer = lockfile.PkgNameVerPeer

	// DependencyGroup selects prod, dev or optional dependencies.
	DependencyGroup = core.DependencyGroup

	// ImportMethod controls how store files reach a package directory.
	ImportMethod = core.ImportMethod

	// ErrorCode classifies an install error.
	ErrorCode = core.Code
)

// Re-export types from client
type (
	// Client is an HTTP client with retry logic for registry APIs.
	Client = client.Client

	// Option configures a Client.
	Option = client.Option
)

// Re-export constants
const (
	Prod     = core.Prod
	Dev      = core.Dev
	Optional = core.Optional

	ImportAuto = core.ImportAuto
)

// Re-export errors
var (
	ErrUnsupportedWorkspace    = core.ErrUnsupportedWorkspace
	ErrUnsupportedImportMethod = core.ErrUnsupportedImportMethod
	ErrNotFound                = client.ErrNotFound
)

// Error types
type (
	NetworkError        = core.NetworkError
	InvalidRangeError   = core.InvalidRangeError
	MissingDistTagError = core.MissingDistTagError
	MissingVersionError = core.MissingVersionError
	MissingIndexError   = core.MissingIndexError
	LinkFileError       = core.LinkFileError
	SymlinkError        = core.SymlinkError
)

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	return client.NewClient(opts...)
}

// WithTimeout sets the HTTP client timeout.
var WithTimeout = client.WithTimeout

// WithMaxRetries sets the maximum number of retries.
var WithMaxRetries = client.WithMaxRetries

// LoadConfig reads the configuration of the project in dir and applies its
// verbosity to the global logger.
func LoadConfig(dir string) (*Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Verbosity, nil)
	return cfg, nil
}

// NewStore opens the store rooted at dir. Packages are added with AddPackage.
func NewStore(dir string) *Store {
	return store.New(dir)
}

// NewInstaller returns an installer reading from the store and writing to the
// directories of cfg.
func NewInstaller(cfg *Config) *Installer {
	return &Installer{
		Store:           NewStore(cfg.StoreDir),
		VirtualStoreDir: cfg.VirtualStoreDir,
		ModulesDir:      cfg.ModulesDir,
		ImportMethod:    cfg.PackageImportMethod,
		Concurrency:     cfg.Concurrency,
	}
}

// NewFetcher returns a tarball fetcher that retries transient failures and stops
// calling a registry host after repeated errors.
func NewFetcher(opts ...fetch.Option) fetch.FetcherInterface {
	return fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(opts...))
}

// FetchPackage fetches the metadata document of name from registryURL.
// An empty registryURL means the public npm registry.
func FetchPackage(ctx context.Context, c *Client, registryURL, name string) (*Package, error) {
	return registry.FetchPackage(ctx, name, c, registryURL)
}

// NewCache returns a metadata cache for registryURL. Concurrent and repeated
// lookups of one package share a single request. A nil client means DefaultClient().
func NewCache(c *Client, registryURL string) *Cache {
	return registry.NewCache(c, registryURL)
}

// ResolveVersion fetches name and picks the version spec selects. spec is a
// dist-tag or a semver range; no match is a *MissingVersionError.
// Use a Cache to resolve many specs without refetching metadata.
func ResolveVersion(ctx context.Context, c *Client, registryURL, name, spec string) (*PackageVersion, error) {
	return NewCache(c, registryURL).ResolveVersion(ctx, name, spec)
}

// NewResolver returns a tarball resolver for registryURL. With a cache, tarball
// URLs and integrity come from package metadata; without one the conventional
// npm layout is assumed.
func NewResolver(registryURL string, cache *Cache) *Resolver {
	if cache == nil {
		return fetch.NewResolver(registryURL, nil)
	}
	return fetch.NewResolver(registryURL, cache)
}

// ParsePURL parses an npm package URL with a version, e.g. pkg:npm/%40babel/core@7.24.0.
func ParsePURL(purl string) (PkgNameVerPeer, error) {
	return lockfile.ParsePURL(purl)
}

// CodeOf classifies err.
func CodeOf(err error) ErrorCode {
	return core.CodeOf(err)
}

// ExitCode maps err to a process exit status; nil maps to 0.
func ExitCode(err error) int {
	return core.ExitCode(err)
}
