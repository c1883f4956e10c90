package registry

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var prereleaseComparator = regexp.MustCompile(`\d+\.\d+\.\d+-[0-9A-Za-z.-]+`)

// comparatorSet is one "||" alternative of an npm range.
type comparatorSet struct {
	constraint  *semver.Constraints
	prereleases []*semver.Version
}

// npmRange applies npm's prerelease rule on top of semver constraints. Comparators
// order prereleases by precedence, and a prerelease version only matches a
// comparator set that names a prerelease of the same major.minor.patch.
type npmRange []comparatorSet

func parseNpmRange(rng string) (npmRange, error) {
	if _, err := semver.NewConstraint(rng); err != nil {
		return nil, err
	}

	var sets npmRange
	for _, alt := range strings.Split(rng, "||") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			alt = "*"
		}
		constraint, err := semver.NewConstraint(alt)
		if err != nil {
			return nil, err
		}
		constraint.IncludePrerelease = true

		set := comparatorSet{constraint: constraint}
		for _, s := range prereleaseComparator.FindAllString(alt, -1) {
			if v, err := semver.NewVersion(s); err == nil && v.Prerelease() != "" {
				set.prereleases = append(set.prereleases, v)
			}
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func (r npmRange) Check(v *semver.Version) bool {
	for _, set := range r {
		if set.allows(v) {
			return true
		}
	}
	return false
}

func (s comparatorSet) allows(v *semver.Version) bool {
	if !s.constraint.Check(v) {
		return false
	}
	if v.Prerelease() == "" {
		return true
	}
	for _, p := range s.prereleases {
		if p.Major() == v.Major() && p.Minor() == v.Minor() && p.Patch() == v.Patch() {
			return true
		}
	}
	return false
}
