package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/git-pkgs/nodelink/internal/core"
	"github.com/git-pkgs/nodelink/internal/fsutil"
	"github.com/git-pkgs/nodelink/internal/logging"
)

// Option configures ImportCasFiles.
type Option func(*importOptions)

type importOptions struct {
	concurrency int
}

// WithConcurrency bounds the number of files linked at once.
// Values below one select the default of GOMAXPROCS*4.
func WithConcurrency(n int) Option {
	return func(o *importOptions) {
		o.concurrency = n
	}
}

// DefaultConcurrency is the file link limit used when none is configured.
func DefaultConcurrency() int {
	return runtime.GOMAXPROCS(0) * 4
}

// ImportCasFiles populates packageDir with the store files in casPaths, keyed by
// their cleaned path inside the package.
//
// An existing packageDir is trusted as complete and left untouched. Otherwise the
// files are linked into a sibling staging directory which is renamed onto
// packageDir only once every link succeeded, so packageDir is either absent or
// complete. A failed import removes the staging directory and returns a
// *core.CreateCasFilesError wrapping the first *core.LinkFileError.
func ImportCasFiles(ctx context.Context, method core.ImportMethod, packageDir string, casPaths map[string]string, opts ...Option) error {
	if method != core.ImportAuto {
		return &core.ImportMethodError{Method: method, Dir: packageDir}
	}

	logger := logging.GetLogger("store")

	if _, err := os.Lstat(packageDir); err == nil {
		logger.Trace().Str("dir", packageDir).Msg("Package directory exists, skipping import")
		return nil
	}

	o := importOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = DefaultConcurrency()
	}

	parent := filepath.Dir(packageDir)
	if err := os.MkdirAll(parent, dirMode); err != nil {
		return &core.CreateCasFilesError{Dir: packageDir, Err: err}
	}
	stage, err := os.MkdirTemp(parent, filepath.Base(packageDir)+".stage-")
	if err != nil {
		return &core.CreateCasFilesError{Dir: packageDir, Err: err}
	}
	// MkdirTemp creates 0700 directories.
	if err := os.Chmod(stage, dirMode); err != nil {
		_ = os.RemoveAll(stage)
		return &core.CreateCasFilesError{Dir: packageDir, Err: err}
	}

	logger.Debug().
		Str("dir", packageDir).
		Int("files", len(casPaths)).
		Int("concurrency", o.concurrency).
		Msg("Importing package files")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for name, src := range casPaths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			to := filepath.Join(packageDir, name)
			if !filepath.IsLocal(name) {
				return &core.LinkFileError{From: src, To: to, Err: errors.New("file name escapes the package directory")}
			}
			if err := fsutil.LinkFile(src, filepath.Join(stage, name)); err != nil {
				return &core.LinkFileError{From: src, To: to, Err: err}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = os.RemoveAll(stage)
		var linkErr *core.LinkFileError
		if errors.As(err, &linkErr) {
			return &core.CreateCasFilesError{Dir: packageDir, Err: linkErr}
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = os.RemoveAll(stage)
		return err
	}

	if err := os.Rename(stage, packageDir); err != nil {
		_ = os.RemoveAll(stage)
		if _, statErr := os.Lstat(packageDir); statErr == nil {
			logger.Debug().Str("dir", packageDir).Msg("Package directory published concurrently")
			return nil
		}
		return &core.CreateCasFilesError{Dir: packageDir, Err: err}
	}
	return nil
}
