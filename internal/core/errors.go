package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedWorkspace is returned when a lockfile describes more than one project.
	ErrUnsupportedWorkspace = errors.New("workspaces are not supported")

	// ErrUnsupportedImportMethod is returned for any import method other than ImportAuto.
	ErrUnsupportedImportMethod = errors.New("unsupported package import method")
)

// Code classifies an error for reporting and exit status mapping.
type Code string

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeNetwork               Code = "NETWORK"
	CodeInvalidRange          Code = "INVALID_RANGE"
	CodeMissingDistTag        Code = "MISSING_DIST_TAG"
	CodeMissingVersion        Code = "MISSING_VERSION"
	CodeUnsupportedImport     Code = "UNSUPPORTED_IMPORT_METHOD"
	CodeUnsupportedWorkspace  Code = "UNSUPPORTED_WORKSPACE"
	CodeLinkFile              Code = "LINK_FILE"
	CodeSymlink               Code = "SYMLINK"
	CodeInvalidPackageName    Code = "INVALID_PACKAGE_NAME"
	CodeInvalidDependencyPath Code = "INVALID_DEPENDENCY_PATH"
	CodeMissingIndex          Code = "MISSING_INDEX"
)

// NetworkError is returned when fetching or decoding registry metadata fails.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to request %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// InvalidRangeError is returned when a version range cannot be parsed.
type InvalidRangeError struct {
	Range string
	Err   error
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid version range %q: %v", e.Range, e.Err)
}

func (e *InvalidRangeError) Unwrap() error {
	return e.Err
}

// MissingDistTagError is returned when package metadata lacks a dist-tag.
type MissingDistTagError struct {
	Package string
	Tag     string
}

func (e *MissingDistTagError) Error() string {
	return fmt.Sprintf("package %s has no %q dist-tag", e.Package, e.Tag)
}

// MissingVersionError is returned when a dist-tag points at a version absent from the metadata.
type MissingVersionError struct {
	Package string
	Version string
}

func (e *MissingVersionError) Error() string {
	return fmt.Sprintf("package %s has no version %s", e.Package, e.Version)
}

// ImportMethodError reports a requested import method this engine cannot perform.
type ImportMethodError struct {
	Method ImportMethod
	Dir    string
}

func (e *ImportMethodError) Error() string {
	return fmt.Sprintf("%s requires import method %q: %v", e.Dir, e.Method, ErrUnsupportedImportMethod)
}

func (e *ImportMethodError) Unwrap() error {
	return ErrUnsupportedImportMethod
}

// LinkFileError is returned when a store file cannot be linked into place.
type LinkFileError struct {
	From string
	To   string
	Err  error
}

func (e *LinkFileError) Error() string {
	return fmt.Sprintf("failed to link %s to %s: %v", e.From, e.To, e.Err)
}

func (e *LinkFileError) Unwrap() error {
	return e.Err
}

// CreateCasFilesError is returned when populating a package directory fails.
type CreateCasFilesError struct {
	Dir string
	Err error
}

func (e *CreateCasFilesError) Error() string {
	return fmt.Sprintf("failed to create files in %s: %v", e.Dir, e.Err)
}

func (e *CreateCasFilesError) Unwrap() error {
	return e.Err
}

// SymlinkError is returned when a package symlink cannot be created.
type SymlinkError struct {
	Path   string
	Target string
	Err    error
}

func (e *SymlinkError) Error() string {
	return fmt.Sprintf("failed to symlink %s -> %s: %v", e.Path, e.Target, e.Err)
}

func (e *SymlinkError) Unwrap() error {
	return e.Err
}

// InvalidNameError is returned for strings that are not valid npm package names.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid package name %q: %s", e.Name, e.Reason)
}

// InvalidDependencyPathError is returned when a lockfile dependency path cannot be parsed.
type InvalidDependencyPathError struct {
	Path string
	Err  error
}

func (e *InvalidDependencyPathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid dependency path %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("invalid dependency path %q", e.Path)
}

func (e *InvalidDependencyPathError) Unwrap() error {
	return e.Err
}

// MissingIndexError is returned when the store holds no file index for a package.
type MissingIndexError struct {
	Package   string
	Integrity string
}

func (e *MissingIndexError) Error() string {
	return fmt.Sprintf("no store index for %s (%s)", e.Package, e.Integrity)
}

// CodeOf classifies err. Sentinel errors take precedence over typed errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	var (
		networkErr *NetworkError
		rangeErr   *InvalidRangeError
		tagErr     *MissingDistTagError
		versionErr *MissingVersionError
		linkErr    *LinkFileError
		casErr     *CreateCasFilesError
		symlinkErr *SymlinkError
		nameErr    *InvalidNameError
		depPathErr *InvalidDependencyPathError
		indexErr   *MissingIndexError
	)

	switch {
	case errors.Is(err, ErrUnsupportedWorkspace):
		return CodeUnsupportedWorkspace
	case errors.Is(err, ErrUnsupportedImportMethod):
		return CodeUnsupportedImport
	case errors.As(err, &networkErr):
		return CodeNetwork
	case errors.As(err, &rangeErr):
		return CodeInvalidRange
	case errors.As(err, &tagErr):
		return CodeMissingDistTag
	case errors.As(err, &versionErr):
		return CodeMissingVersion
	case errors.As(err, &linkErr), errors.As(err, &casErr):
		return CodeLinkFile
	case errors.As(err, &symlinkErr):
		return CodeSymlink
	case errors.As(err, &nameErr):
		return CodeInvalidPackageName
	case errors.As(err, &depPathErr):
		return CodeInvalidDependencyPath
	case errors.As(err, &indexErr):
		return CodeMissingIndex
	}
	return CodeUnknown
}

// ExitCode maps an error to a process exit status. nil maps to 0.
func ExitCode(err error) int {
	switch CodeOf(err) {
	case "":
		return 0
	case CodeNetwork:
		return 3
	case CodeInvalidRange, CodeMissingDistTag, CodeMissingVersion:
		return 4
	case CodeUnsupportedImport, CodeUnsupportedWorkspace:
		return 5
	case CodeLinkFile, CodeSymlink:
		return 6
	case CodeInvalidPackageName, CodeInvalidDependencyPath, CodeMissingIndex:
		return 7
	default:
		return 1
	}
}
