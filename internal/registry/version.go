package registry

import (
	"encoding/base64"
	"encoding/hex"

	"github.com/Masterminds/semver/v3"
)

// PackageVersion is the metadata of one published version.
type PackageVersion struct {
	Name                 string              `json:"name"`
	Version              *semver.Version     `json:"version"`
	Dist                 PackageDistribution `json:"dist"`
	ProdDependencies     map[string]string   `json:"dependencies,omitempty"`
	DevDependencies      map[string]string   `json:"devDependencies,omitempty"`
	PeerDependencies     map[string]string   `json:"peerDependencies,omitempty"`
	OptionalDependencies map[string]string   `json:"optionalDependencies,omitempty"`
	Deprecated           string              `json:"deprecated,omitempty"`
}

// PackageDistribution describes where and how a version's tarball is published.
type PackageDistribution struct {
	Integrity    string `json:"integrity,omitempty"`
	Shasum       string `json:"shasum,omitempty"`
	Tarball      string `json:"tarball,omitempty"`
	FileCount    int    `json:"fileCount,omitempty"`
	UnpackedSize int64  `json:"unpackedSize,omitempty"`
}

// IntegrityOrShasum returns the SRI integrity, deriving a sha1 one from the legacy
// hex shasum. A malformed shasum yields "".
func (d PackageDistribution) IntegrityOrShasum() string {
	if d.Integrity != "" {
		return d.Integrity
	}
	raw, err := hex.DecodeString(d.Shasum)
	if err != nil || len(raw) == 0 {
		return ""
	}
	return "sha1-" + base64.StdEncoding.EncodeToString(raw)
}

// Dependencies returns the regular dependencies, merged with the peer
// dependencies when includePeers is set. A regular entry wins over a peer
// entry of the same name.
func (v *PackageVersion) Dependencies(includePeers bool) map[string]string {
	deps := make(map[string]string, len(v.ProdDependencies)+len(v.PeerDependencies))
	if includePeers {
		for name, rng := range v.PeerDependencies {
			deps[name] = rng
		}
	}
	for name, rng := range v.ProdDependencies {
		deps[name] = rng
	}
	return deps
}

// Serialize renders the version as written into a manifest:
// exact when pinned, caret range otherwise.
func (v *PackageVersion) Serialize(pinned bool) string {
	if pinned {
		return v.Version.String()
	}
	return "^" + v.Version.String()
}

// String returns name@version.
func (v *PackageVersion) String() string {
	if v.Version == nil {
		return v.Name
	}
	return v.Name + "@" + v.Version.String()
}
