// Package store manages the content-addressable file store and imports store
// files into package directories.
//
// Layout under the store directory:
//
//	files/<hh>/<rest>[-exec]          file contents, named by the hex sha512 of the content
//	index/<hh>/<rest>-index.json      per-package file listings, named by the package integrity
//
// Files shipped with any execute bit carry the "-exec" suffix and mode 0755;
// everything else is stored with mode 0644.
package store

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/git-pkgs/nodelink/internal/core"
)

const (
	execSuffix  = "-exec"
	indexSuffix = "-index.json"

	fileMode = 0o644
	execMode = 0o755
	dirMode  = 0o755
)

// CAS is a content-addressable file store rooted at a directory.
type CAS struct {
	dir string
}

// New returns a store rooted at dir. Nothing is created until the first write.
func New(dir string) *CAS {
	return &CAS{dir: dir}
}

// Dir returns the store root.
func (c *CAS) Dir() string {
	return c.dir
}

// FilePath returns where content with the given hex digest is stored.
func (c *CAS) FilePath(hexDigest string, executable bool) string {
	name := hexDigest[2:]
	if executable {
		name += execSuffix
	}
	return filepath.Join(c.dir, "files", hexDigest[:2], name)
}

// File is one file of a package being added to the store.
type File struct {
	Name       string // path inside the package, slash separated
	Data       []byte
	Executable bool
}

// FileEntry describes one file in a package index.
type FileEntry struct {
	Integrity string `json:"integrity"`
	Mode      uint32 `json:"mode"`
	Size      int64  `json:"size"`
}

// Executable reports whether any execute bit is set.
func (e FileEntry) Executable() bool {
	return e.Mode&0o111 != 0
}

// PackageIndex lists the files of one package tarball.
type PackageIndex struct {
	Name    string               `json:"name,omitempty"`
	Version string               `json:"version,omitempty"`
	Files   map[string]FileEntry `json:"files"`
}

// WriteFile stores data and returns its path and integrity. Writing content that
// is already present is a no-op.
func (c *CAS) WriteFile(data []byte, executable bool) (string, string, error) {
	sum := sha512.Sum512(data)
	integrity := "sha512-" + base64.StdEncoding.EncodeToString(sum[:])
	path := c.FilePath(hex.EncodeToString(sum[:]), executable)

	if _, err := os.Stat(path); err == nil {
		return path, integrity, nil
	}

	mode := os.FileMode(fileMode)
	if executable {
		mode = execMode
	}
	if err := writeAtomic(path, data, mode); err != nil {
		return "", "", fmt.Errorf("writing store file: %w", err)
	}
	return path, integrity, nil
}

// AddPackage stores every file of a package and writes its index under integrity.
func (c *CAS) AddPackage(integrity, name, version string, files []File) (*PackageIndex, error) {
	index := &PackageIndex{
		Name:    name,
		Version: version,
		Files:   make(map[string]FileEntry, len(files)),
	}

	for _, f := range files {
		_, fileIntegrity, err := c.WriteFile(f.Data, f.Executable)
		if err != nil {
			return nil, err
		}
		mode := uint32(fileMode)
		if f.Executable {
			mode = execMode
		}
		index.Files[f.Name] = FileEntry{
			Integrity: fileIntegrity,
			Mode:      mode,
			Size:      int64(len(f.Data)),
		}
	}

	if err := c.WriteIndex(integrity, index); err != nil {
		return nil, err
	}
	return index, nil
}

// IndexPath returns the index file location for a package integrity string.
func (c *CAS) IndexPath(integrity string) (string, error) {
	digest, err := integrityHex(integrity)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.dir, "index", digest[:2], digest[2:]+indexSuffix), nil
}

// WriteIndex records the file listing of a package.
func (c *CAS) WriteIndex(integrity string, index *PackageIndex) error {
	path, err := c.IndexPath(integrity)
	if err != nil {
		return err
	}
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := writeAtomic(path, data, fileMode); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

// ReadIndex loads the file listing of a package. A missing index is a
// *core.MissingIndexError.
func (c *CAS) ReadIndex(integrity string) (*PackageIndex, error) {
	path, err := c.IndexPath(integrity)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &core.MissingIndexError{Integrity: integrity}
	}
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	var index PackageIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decoding index %s: %w", path, err)
	}
	return &index, nil
}

// CasPaths returns the cleaned file name to store path map of a package, ready
// for ImportCasFiles. pkg only labels errors.
func (c *CAS) CasPaths(pkg, integrity string) (map[string]string, error) {
	index, err := c.ReadIndex(integrity)
	if err != nil {
		var missing *core.MissingIndexError
		if errors.As(err, &missing) {
			missing.Package = pkg
		}
		return nil, err
	}

	paths := make(map[string]string, len(index.Files))
	for name, entry := range index.Files {
		clean := filepath.Clean(filepath.FromSlash(name))
		if !filepath.IsLocal(clean) {
			return nil, fmt.Errorf("%s: file %q escapes the package directory", pkg, name)
		}
		digest, err := integrityHex(entry.Integrity)
		if err != nil {
			return nil, fmt.Errorf("%s: file %q: %w", pkg, name, err)
		}
		paths[clean] = c.FilePath(digest, entry.Executable())
	}
	return paths, nil
}

// SortedNames returns the file names of the index in lexical order.
func (i *PackageIndex) SortedNames() []string {
	names := make([]string, 0, len(i.Files))
	for name := range i.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// integrityHex decodes an SRI string like "sha512-<base64>" into a hex digest.
func integrityHex(integrity string) (string, error) {
	algo, encoded, ok := strings.Cut(integrity, "-")
	if !ok || algo == "" || encoded == "" {
		return "", fmt.Errorf("malformed integrity %q", integrity)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("malformed integrity %q: %w", integrity, err)
	}
	if len(raw) < 2 {
		return "", fmt.Errorf("malformed integrity %q: digest too short", integrity)
	}
	return hex.EncodeToString(raw), nil
}

// writeAtomic writes through a temporary sibling so readers never see a partial file.
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
