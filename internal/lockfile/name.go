// Package lockfile models the resolved dependency data an install consumes:
// package names, version+peer specifiers, dependency paths and project snapshots.
// Reading and writing lockfile documents is left to callers.
package lockfile

import (
	"strings"

	"github.com/git-pkgs/nodelink/internal/core"
)

const maxNameLength = 214

// PkgName is a validated npm package name, either "bare" or "@scope/bare".
// It is a small comparable value, usable as a map key.
type PkgName struct {
	Scope string // without the leading "@"; empty for unscoped packages
	Bare  string
}

// ParsePkgName validates and splits an npm package name.
func ParsePkgName(s string) (PkgName, error) {
	if s == "" {
		return PkgName{}, &core.InvalidNameError{Name: s, Reason: "empty"}
	}
	if len(s) > maxNameLength {
		return PkgName{}, &core.InvalidNameError{Name: s, Reason: "longer than 214 characters"}
	}

	var name PkgName
	if strings.HasPrefix(s, "@") {
		scope, bare, ok := strings.Cut(s[1:], "/")
		if !ok {
			return PkgName{}, &core.InvalidNameError{Name: s, Reason: "scope without package name"}
		}
		if err := validateSegment(scope); err != "" {
			return PkgName{}, &core.InvalidNameError{Name: s, Reason: "scope " + err}
		}
		name.Scope = scope
		name.Bare = bare
	} else {
		name.Bare = s
	}

	if err := validateSegment(name.Bare); err != "" {
		return PkgName{}, &core.InvalidNameError{Name: s, Reason: err}
	}
	return name, nil
}

// MustParsePkgName is like ParsePkgName but panics on invalid input.
// It is intended for tests and constants.
func MustParsePkgName(s string) PkgName {
	name, err := ParsePkgName(s)
	if err != nil {
		panic(err)
	}
	return name
}

func validateSegment(seg string) string {
	if seg == "" {
		return "is empty"
	}
	if seg[0] == '.' || seg[0] == '_' {
		return "cannot start with a period or underscore"
	}
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-._~!*'", r):
		default:
			return "contains invalid character " + string(r)
		}
	}
	return ""
}

// IsScoped reports whether the name has a scope.
func (n PkgName) IsScoped() bool {
	return n.Scope != ""
}

func (n PkgName) String() string {
	if n.Scope == "" {
		return n.Bare
	}
	return "@" + n.Scope + "/" + n.Bare
}

// MarshalText implements encoding.TextMarshaler so names can key JSON maps.
func (n PkgName) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *PkgName) UnmarshalText(b []byte) error {
	parsed, err := ParsePkgName(string(b))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
