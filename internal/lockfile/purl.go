package lockfile

import (
	"fmt"

	packageurl "github.com/package-url/packageurl-go"
)

// ParsePURL parses an npm package URL such as "pkg:npm/%40babel/core@7.24.0"
// into an install unit. The version is required; peers cannot be expressed
// in a PURL and are always empty.
func ParsePURL(s string) (PkgNameVerPeer, error) {
	p, err := packageurl.FromString(s)
	if err != nil {
		return PkgNameVerPeer{}, err
	}
	if p.Type != packageurl.TypeNPM {
		return PkgNameVerPeer{}, fmt.Errorf("%s: not an npm package URL", s)
	}
	if p.Version == "" {
		return PkgNameVerPeer{}, fmt.Errorf("%s: package URL has no version", s)
	}

	// packageurl-go keeps the @ in the namespace, so "@babel" + "/" + "core".
	full := p.Name
	if p.Namespace != "" {
		full = p.Namespace + "/" + p.Name
	}
	name, err := ParsePkgName(full)
	if err != nil {
		return PkgNameVerPeer{}, err
	}
	suffix, err := ParsePkgVerPeer(p.Version)
	if err != nil {
		return PkgNameVerPeer{}, err
	}
	return NewPkgNameVerPeer(name, suffix), nil
}
