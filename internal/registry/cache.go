package registry

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/git-pkgs/nodelink/client"
	"github.com/git-pkgs/nodelink/internal/core"
	"github.com/git-pkgs/nodelink/internal/logging"
)

const defaultConcurrency = 16

// Cache de-duplicates registry fetches by package name for the lifetime of one install.
// Concurrent requests for the same name share a single HTTP request. Failed fetches
// are not cached, so a later call retries.
type Cache struct {
	client   *client.Client
	registry string

	group singleflight.Group

	mu       sync.RWMutex
	packages map[string]*Package
}

// NewCache creates an empty cache that fetches from registry with c.
// A nil client means client.DefaultClient().
func NewCache(c *client.Client, registry string) *Cache {
	if c == nil {
		c = client.DefaultClient()
	}
	return &Cache{
		client:   c,
		registry: client.NormalizeRegistry(registry),
		packages: make(map[string]*Package),
	}
}

// Get returns the metadata for name, fetching it at most once.
func (c *Cache) Get(ctx context.Context, name string) (*Package, error) {
	c.mu.RLock()
	pkg, ok := c.packages[name]
	c.mu.RUnlock()
	if ok {
		return pkg, nil
	}

	v, err, shared := c.group.Do(name, func() (any, error) {
		// Double-check after winning the flight
		c.mu.RLock()
		pkg, ok := c.packages[name]
		c.mu.RUnlock()
		if ok {
			return pkg, nil
		}

		logger := logging.GetLogger("registry")
		logger.Debug().Str("package", name).Msg("Fetching package metadata")

		pkg, err := FetchPackage(ctx, name, c.client, c.registry)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.packages[name] = pkg
		c.mu.Unlock()
		return pkg, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger := logging.GetLogger("registry")
		logger.Trace().Str("package", name).Msg("Shared in-flight metadata fetch")
	}
	return v.(*Package), nil
}

// ResolveVersion picks the version of name that spec selects, a dist-tag or a
// range, from cached metadata. No match is a *core.MissingVersionError.
func (c *Cache) ResolveVersion(ctx context.Context, name, spec string) (*PackageVersion, error) {
	pkg, err := c.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	v, err := pkg.Resolve(spec)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, &core.MissingVersionError{Package: name, Version: spec}
	}
	return v, nil
}

// GetAll fetches metadata for every name with at most concurrency requests in
// flight. It stops at the first failure.
func (c *Cache) GetAll(ctx context.Context, names []string, concurrency int) (map[string]*Package, error) {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	var mu sync.Mutex
	results := make(map[string]*Package, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, name := range names {
		g.Go(func() error {
			pkg, err := c.Get(ctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			results[name] = pkg
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Len returns the number of cached packages.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.packages)
}
