// Package linker builds the symlink farms of an install: the node_modules of
// every virtual store entry, and the project's own node_modules.
package linker

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/git-pkgs/nodelink/internal/core"
	"github.com/git-pkgs/nodelink/internal/fsutil"
	"github.com/git-pkgs/nodelink/internal/lockfile"
	"github.com/git-pkgs/nodelink/internal/logging"
)

// Option configures a symlink fan-out.
type Option func(*options)

type options struct {
	concurrency int
}

// WithConcurrency bounds the number of symlinks created at once.
// Values below one select DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// DefaultConcurrency is the symlink limit used when none is configured.
func DefaultConcurrency() int {
	return runtime.GOMAXPROCS(0) * 4
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = DefaultConcurrency()
	}
	return o
}

type symlink struct {
	target string
	path   string
}

// PackageDir returns the directory a package occupies inside its virtual store entry:
// <virtualStoreDir>/<virtualStoreName>/node_modules/<name>.
func PackageDir(virtualStoreDir string, unit lockfile.PkgNameVerPeer) string {
	return filepath.Join(virtualStoreDir, unit.VirtualStoreName(), "node_modules", filepath.FromSlash(unit.Name.String()))
}

// CreateSymlinkLayout links each dependency of one package into that package's
// virtual node_modules directory. The link is named after the key the dependency is
// listed under, and points at the dependency's own directory in virtualRoot.
//
// Every symlink is attempted. Failures are returned together as *core.SymlinkError
// values joined with errors.Join.
func CreateSymlinkLayout(ctx context.Context, deps map[lockfile.PkgName]lockfile.PackageSnapshotDependency, virtualRoot, virtualNodeModulesDir string, opts ...Option) error {
	links := make([]symlink, 0, len(deps))
	for name, dep := range deps {
		links = append(links, symlink{
			target: PackageDir(virtualRoot, dep.Specifier(name)),
			path:   filepath.Join(virtualNodeModulesDir, filepath.FromSlash(name.String())),
		})
	}

	logger := logging.GetLogger("linker")
	logger.Trace().
		Str("dir", virtualNodeModulesDir).
		Int("dependencies", len(links)).
		Msg("Creating symlink layout")

	return symlinkAll(ctx, links, buildOptions(opts))
}

// symlinkAll creates every link with at most o.concurrency in flight and
// collects all failures. Links not yet started when ctx is done are skipped.
func symlinkAll(ctx context.Context, links []symlink, o options) error {
	sort.Slice(links, func(i, j int) bool {
		return links[i].path < links[j].path
	})

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, o.concurrency)

	for _, l := range links {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(l symlink) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := fsutil.SymlinkPackage(l.target, l.path); err != nil {
				mu.Lock()
				errs = append(errs, &core.SymlinkError{Path: l.path, Target: l.target, Err: err})
				mu.Unlock()
			}
		}(l)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	sort.SliceStable(errs, func(i, j int) bool {
		return errorPath(errs[i]) < errorPath(errs[j])
	})
	return errors.Join(errs...)
}

func errorPath(err error) string {
	var symlinkErr *core.SymlinkError
	if errors.As(err, &symlinkErr) {
		return symlinkErr.Path
	}
	return ""
}
