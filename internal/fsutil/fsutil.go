// Package fsutil holds the two filesystem primitives the installer is built on:
// linking a store file into a package directory and symlinking a package.
// Both create missing parent directories and treat an existing destination as done.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const dirPerm = 0o755

// LinkFile hardlinks src to dst. When hardlinking fails (cross-device, unsupported
// filesystem) the file is copied with its permission bits instead.
func LinkFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return fmt.Errorf("creating parent of %s: %w", dst, err)
	}

	err := os.Link(src, dst)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("linking %s to %s: %w", src, dst, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile's mode is filtered by the umask.
	return os.Chmod(dst, info.Mode().Perm())
}

// SymlinkPackage creates a symlink at path pointing to target.
// The target does not need to exist yet.
func SymlinkPackage(target, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("creating parent of %s: %w", path, err)
	}

	if err := os.Symlink(target, path); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("symlinking %s to %s: %w", path, target, err)
	}
	return nil
}
