package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/nodelink/internal/core"
	"github.com/git-pkgs/nodelink/internal/store"
)

// seedStore writes n distinct files and returns their cas paths.
func seedStore(t *testing.T, cas *store.CAS, n int) map[string]string {
	t.Helper()
	paths := make(map[string]string, n)
	for i := 0; i < n; i++ {
		path, _, err := cas.WriteFile([]byte(fmt.Sprintf("file %d", i)), false)
		require.NoError(t, err)
		paths[fmt.Sprintf("file-%d.js", i)] = path
	}
	return paths
}

func assertNoStagingDirs(t *testing.T, parent string) {
	t.Helper()
	entries, err := os.ReadDir(parent)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".stage-", "staging directory left behind")
	}
}

func TestImportCasFiles(t *testing.T) {
	dir := t.TempDir()
	cas := store.New(filepath.Join(dir, "store"))
	casPaths := seedStore(t, cas, 25)
	packageDir := filepath.Join(dir, "vstore", "pkg@1.0.0", "node_modules", "pkg")

	err := store.ImportCasFiles(context.Background(), core.ImportAuto, packageDir, casPaths, store.WithConcurrency(4))
	require.NoError(t, err)

	entries, err := os.ReadDir(packageDir)
	require.NoError(t, err)
	assert.Len(t, entries, 25)

	for name, src := range casPaths {
		srcInfo, err := os.Stat(src)
		require.NoError(t, err)
		dstInfo, err := os.Stat(filepath.Join(packageDir, name))
		require.NoError(t, err)
		assert.True(t, os.SameFile(srcInfo, dstInfo), "%s should be a hardlink to %s", name, src)
	}

	info, err := os.Stat(packageDir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assertNoStagingDirs(t, filepath.Dir(packageDir))
}

func TestImportCasFiles_NestedNames(t *testing.T) {
	dir := t.TempDir()
	cas := store.New(filepath.Join(dir, "store"))
	src, _, err := cas.WriteFile([]byte("nested"), false)
	require.NoError(t, err)

	packageDir := filepath.Join(dir, "pkg")
	casPaths := map[string]string{"README.md": src}
	casPaths[filepath.Join("lib", "deep", "index.js")] = src
	require.NoError(t, store.ImportCasFiles(context.Background(), core.ImportAuto, packageDir, casPaths))

	data, err := os.ReadFile(filepath.Join(packageDir, "lib", "deep", "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "nested", string(data))
	assert.Equal(t, 2, countFiles(t, packageDir))
}

func TestImportCasFiles_Idempotent(t *testing.T) {
	dir := t.TempDir()
	cas := store.New(filepath.Join(dir, "store"))
	casPaths := seedStore(t, cas, 3)
	packageDir := filepath.Join(dir, "pkg")

	require.NoError(t, store.ImportCasFiles(context.Background(), core.ImportAuto, packageDir, casPaths))

	before, err := os.Stat(packageDir)
	require.NoError(t, err)

	// A second import must not touch the store files at all.
	for _, src := range casPaths {
		require.NoError(t, os.Remove(src))
	}
	require.NoError(t, store.ImportCasFiles(context.Background(), core.ImportAuto, packageDir, casPaths))

	after, err := os.Stat(packageDir)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.Equal(t, 3, countFiles(t, packageDir))
}

func TestImportCasFiles_ExecutableMode(t *testing.T) {
	dir := t.TempDir()
	cas := store.New(filepath.Join(dir, "store"))

	_, err := cas.AddPackage(testIntegrity, "tool", "1.0.0", []store.File{
		{Name: "bin/tool", Data: []byte("#!/bin/sh\necho tool\n"), Executable: true},
		{Name: "lib/index.js", Data: []byte("module.exports = {}")},
		{Name: "package.json", Data: []byte(`{"name":"tool"}`)},
	})
	require.NoError(t, err)

	casPaths, err := cas.CasPaths("tool@1.0.0", testIntegrity)
	require.NoError(t, err)

	var execCount int
	for _, src := range casPaths {
		if strings.HasSuffix(src, "-exec") {
			execCount++
		}
	}
	require.Equal(t, 1, execCount)

	packageDir := filepath.Join(dir, "tool")
	require.NoError(t, store.ImportCasFiles(context.Background(), core.ImportAuto, packageDir, casPaths))

	for name, src := range casPaths {
		info, err := os.Stat(filepath.Join(packageDir, name))
		require.NoError(t, err)
		if strings.HasSuffix(src, "-exec") {
			assert.Equal(t, os.FileMode(0o755), info.Mode().Perm(), name)
		} else {
			assert.Zero(t, info.Mode().Perm()&0o111, "%s must not be executable", name)
		}
	}
}

func TestImportCasFiles_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	cas := store.New(filepath.Join(dir, "store"))
	casPaths := seedStore(t, cas, 10)
	casPaths["missing.js"] = filepath.Join(cas.Dir(), "files", "00", "does-not-exist")
	packageDir := filepath.Join(dir, "vstore", "pkg")

	err := store.ImportCasFiles(context.Background(), core.ImportAuto, packageDir, casPaths)
	require.Error(t, err)

	var casErr *core.CreateCasFilesError
	require.True(t, errors.As(err, &casErr))
	assert.Equal(t, packageDir, casErr.Dir)

	var linkErr *core.LinkFileError
	require.True(t, errors.As(err, &linkErr))
	assert.Equal(t, filepath.Join(packageDir, "missing.js"), linkErr.To)
	assert.Equal(t, core.CodeLinkFile, core.CodeOf(err))

	_, statErr := os.Lstat(packageDir)
	assert.True(t, os.IsNotExist(statErr), "package directory must not be published after a failure")
	assertNoStagingDirs(t, filepath.Dir(packageDir))

	// The retry sees no directory and imports again once the file is there.
	delete(casPaths, "missing.js")
	require.NoError(t, store.ImportCasFiles(context.Background(), core.ImportAuto, packageDir, casPaths))
	assert.Equal(t, 10, countFiles(t, packageDir))
}

func TestImportCasFiles_UnsupportedMethod(t *testing.T) {
	dir := t.TempDir()
	packageDir := filepath.Join(dir, "pkg")

	for _, method := range []core.ImportMethod{core.ImportHardlink, core.ImportCopy, core.ImportClone, core.ImportCloneOrCopy} {
		err := store.ImportCasFiles(context.Background(), method, packageDir, map[string]string{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrUnsupportedImportMethod), method)

		var methodErr *core.ImportMethodError
		require.True(t, errors.As(err, &methodErr))
		assert.Equal(t, method, methodErr.Method)
	}

	_, statErr := os.Lstat(packageDir)
	assert.True(t, os.IsNotExist(statErr), "nothing may be written for a rejected method")
}

func TestImportCasFiles_ConcurrentPublishers(t *testing.T) {
	dir := t.TempDir()
	cas := store.New(filepath.Join(dir, "store"))
	casPaths := seedStore(t, cas, 20)
	packageDir := filepath.Join(dir, "vstore", "pkg")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.ImportCasFiles(context.Background(), core.ImportAuto, packageDir, casPaths)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 20, countFiles(t, packageDir))
	assertNoStagingDirs(t, filepath.Dir(packageDir))
}

func TestImportCasFiles_Canceled(t *testing.T) {
	dir := t.TempDir()
	cas := store.New(filepath.Join(dir, "store"))
	casPaths := seedStore(t, cas, 5)
	packageDir := filepath.Join(dir, "pkg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.ImportCasFiles(ctx, core.ImportAuto, packageDir, casPaths)
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Lstat(packageDir)
	assert.True(t, os.IsNotExist(statErr))
	assertNoStagingDirs(t, dir)
}
