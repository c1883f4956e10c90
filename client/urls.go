package client

import (
	"strings"

	packageurl "github.com/package-url/packageurl-go"
)

// DefaultRegistry is the public npm registry. Registry URLs always end with a slash
// so that the package name can be appended directly.
const DefaultRegistry = "https://registry.npmjs.org/"

// URLBuilder constructs URLs for a registry.
type URLBuilder interface {
	Registry(name, version string) string
	Download(name, version string) string
	Documentation(name, version string) string
	PURL(name, version string) string
}

// NormalizeRegistry returns registry with exactly one trailing slash.
func NormalizeRegistry(registry string) string {
	if registry == "" {
		return DefaultRegistry
	}
	return strings.TrimRight(registry, "/") + "/"
}

// NpmURLs builds URLs for an npm-compatible registry.
type NpmURLs struct {
	BaseURL string
}

// NewNpmURLs returns a URLBuilder for the registry at baseURL.
func NewNpmURLs(baseURL string) *NpmURLs {
	return &NpmURLs{BaseURL: NormalizeRegistry(baseURL)}
}

// Registry returns the metadata document URL. The version is ignored because
// npm serves every version in one document.
func (u *NpmURLs) Registry(name, version string) string {
	return u.BaseURL + name
}

// Download returns the conventional tarball URL for name@version.
func (u *NpmURLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	_, bare := splitScope(name)
	return u.BaseURL + name + "/-/" + bare + "-" + version + ".tgz"
}

func (u *NpmURLs) Documentation(name, version string) string {
	if version != "" {
		return "https://www.npmjs.com/package/" + name + "/v/" + version
	}
	return "https://www.npmjs.com/package/" + name
}

// PURL returns the package URL for name@version, e.g. pkg:npm/%40babel/core@7.24.0.
func (u *NpmURLs) PURL(name, version string) string {
	scope, bare := splitScope(name)
	var qualifiers packageurl.Qualifiers
	if u.BaseURL != DefaultRegistry {
		qualifiers = packageurl.QualifiersFromMap(map[string]string{"repository_url": strings.TrimSuffix(u.BaseURL, "/")})
	}
	return packageurl.NewPackageURL(packageurl.TypeNPM, scope, bare, version, qualifiers, "").ToString()
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "registry", "download", "docs", and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	result := make(map[string]string)
	if v := urls.Registry(name, version); v != "" {
		result["registry"] = v
	}
	if v := urls.Download(name, version); v != "" {
		result["download"] = v
	}
	if v := urls.Documentation(name, version); v != "" {
		result["docs"] = v
	}
	if v := urls.PURL(name, version); v != "" {
		result["purl"] = v
	}
	return result
}

func splitScope(name string) (scope, bare string) {
	if strings.HasPrefix(name, "@") {
		if i := strings.Index(name, "/"); i > 0 {
			return name[:i], name[i+1:]
		}
	}
	return "", name
}
