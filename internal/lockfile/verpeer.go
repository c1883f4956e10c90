package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	packageurl "github.com/package-url/packageurl-go"
)

// maxVirtualStoreNameLength bounds directory names in the virtual store.
// Longer names are truncated and suffixed with a hash of the full name.
const maxVirtualStoreNameLength = 120

// PkgVerPeer is a version plus the peer dependency fingerprint it was
// resolved with, e.g. "17.0.2" or "1.0.0(react-dom@17.0.2)(react@17.0.2)".
type PkgVerPeer struct {
	Version *semver.Version
	Peer    string // "" or one or more "(...)" groups
}

// ParsePkgVerPeer parses a version optionally followed by peer groups.
func ParsePkgVerPeer(s string) (PkgVerPeer, error) {
	ver, peer := s, ""
	if i := strings.IndexByte(s, '('); i >= 0 {
		ver, peer = s[:i], s[i:]
		if err := validatePeers(peer); err != nil {
			return PkgVerPeer{}, fmt.Errorf("invalid peer suffix in %q: %w", s, err)
		}
	}

	v, err := semver.StrictNewVersion(ver)
	if err != nil {
		return PkgVerPeer{}, fmt.Errorf("invalid version %q: %w", ver, err)
	}
	return PkgVerPeer{Version: v, Peer: peer}, nil
}

// NewPkgVerPeer returns a PkgVerPeer without peers.
func NewPkgVerPeer(v *semver.Version) PkgVerPeer {
	return PkgVerPeer{Version: v}
}

func (p PkgVerPeer) String() string {
	if p.Version == nil {
		return p.Peer
	}
	return p.Version.String() + p.Peer
}

// validatePeers checks that peer is a sequence of "(name@version)" groups,
// each of which may carry peer groups of its own.
func validatePeers(peer string) error {
	for rest := peer; rest != ""; {
		if rest[0] != '(' {
			return fmt.Errorf("expected '(' at %q", rest)
		}
		end := closingParen(rest)
		if end < 0 {
			return fmt.Errorf("unbalanced parentheses in %q", rest)
		}
		if _, err := ParsePkgNameVerPeer(rest[1:end]); err != nil {
			return fmt.Errorf("peer %q: %w", rest[1:end], err)
		}
		rest = rest[end+1:]
	}
	return nil
}

// closingParen returns the index of the ')' matching the '(' at s[0], or -1.
func closingParen(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parenDepth returns the maximum nesting depth of s, or -1 if unbalanced.
func parenDepth(s string) int {
	depth, deepest := 0, 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
			if depth > deepest {
				deepest = depth
			}
		case ')':
			depth--
			if depth < 0 {
				return -1
			}
		}
	}
	if depth != 0 {
		return -1
	}
	return deepest
}

// PkgNameVerPeer identifies one install unit: a package name, its version and
// its peer fingerprint.
type PkgNameVerPeer struct {
	Name   PkgName
	Suffix PkgVerPeer
}

// NewPkgNameVerPeer pairs a name with a version+peer suffix.
func NewPkgNameVerPeer(name PkgName, suffix PkgVerPeer) PkgNameVerPeer {
	return PkgNameVerPeer{Name: name, Suffix: suffix}
}

// ParsePkgNameVerPeer parses "name@version(peers)".
func ParsePkgNameVerPeer(s string) (PkgNameVerPeer, error) {
	head := s
	if i := strings.IndexByte(s, '('); i >= 0 {
		head = s[:i]
	}
	at := strings.LastIndexByte(head, '@')
	if at <= 0 {
		return PkgNameVerPeer{}, fmt.Errorf("missing version in %q", s)
	}

	name, err := ParsePkgName(s[:at])
	if err != nil {
		return PkgNameVerPeer{}, err
	}
	suffix, err := ParsePkgVerPeer(s[at+1:])
	if err != nil {
		return PkgNameVerPeer{}, err
	}
	return PkgNameVerPeer{Name: name, Suffix: suffix}, nil
}

func (p PkgNameVerPeer) String() string {
	return p.Name.String() + "@" + p.Suffix.String()
}

// Equal reports whether both identify the same install unit.
func (p PkgNameVerPeer) Equal(other PkgNameVerPeer) bool {
	return p.String() == other.String()
}

// PURL returns the package URL of the name and version. Peers are not part of a PURL.
func (p PkgNameVerPeer) PURL() string {
	namespace := ""
	if p.Name.IsScoped() {
		namespace = "@" + p.Name.Scope
	}
	version := ""
	if p.Suffix.Version != nil {
		version = p.Suffix.Version.String()
	}
	return packageurl.NewPackageURL(packageurl.TypeNPM, namespace, p.Name.Bare, version, nil, "").ToString()
}

// VirtualStoreName returns the directory name of this unit inside the virtual
// store, e.g. "@babel+core@7.24.0" or "react-dom@17.0.2_react@17.0.2".
// The result depends only on name, version and peers.
func (p PkgNameVerPeer) VirtualStoreName() string {
	full := p.String()

	name := strings.NewReplacer(
		"/", "+",
		")(", "_",
		"(", "_",
		")", "",
		"\\", "+",
		":", "+",
		"*", "+",
		"?", "+",
		"\"", "+",
		"<", "+",
		">", "+",
		"|", "+",
		"#", "+",
	).Replace(full)

	// Nested or malformed peer groups flatten ambiguously, and long names hit
	// path limits; all of them get a hash of the unescaped identity appended.
	if len(name) > maxVirtualStoreNameLength || parenDepth(p.Suffix.Peer) > 1 || validatePeers(p.Suffix.Peer) != nil {
		sum := sha256.Sum256([]byte(full))
		hash := hex.EncodeToString(sum[:])[:32]
		keep := maxVirtualStoreNameLength - len(hash) - 1
		if len(name) > keep {
			name = name[:keep]
		}
		name += "_" + hash
	}
	return name
}
