package lockfile

import (
	"errors"
	"testing"

	"github.com/git-pkgs/nodelink/internal/core"
)

func resolved(t *testing.T, specifier, version string) ResolvedDependencySpec {
	t.Helper()
	v, err := ParsePkgVerPeer(version)
	if err != nil {
		t.Fatal(err)
	}
	return ResolvedDependencySpec{Specifier: specifier, Version: v}
}

func testProject(t *testing.T) *ProjectSnapshot {
	return &ProjectSnapshot{
		Dependencies: map[PkgName]ResolvedDependencySpec{
			MustParsePkgName("is-odd"):      resolved(t, "3.0.1", "3.0.1"),
			MustParsePkgName("@babel/core"): resolved(t, "^7.24.0", "7.24.0"),
		},
		DevDependencies: map[PkgName]ResolvedDependencySpec{
			MustParsePkgName("fast-decode-uri-component"): resolved(t, "1.0.1", "1.0.1"),
		},
		OptionalDependencies: map[PkgName]ResolvedDependencySpec{
			MustParsePkgName("fsevents"): resolved(t, "^2.3.0", "2.3.3"),
		},
	}
}

func directNames(deps []DirectDependency) []string {
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = string(d.Group) + ":" + d.Name.String()
	}
	return names
}

func TestDependenciesByGroups(t *testing.T) {
	p := testProject(t)

	tests := []struct {
		name   string
		groups []core.DependencyGroup
		want   []string
	}{
		{"prod", []core.DependencyGroup{core.Prod}, []string{"prod:@babel/core", "prod:is-odd"}},
		{"dev", []core.DependencyGroup{core.Dev}, []string{"dev:fast-decode-uri-component"}},
		{"prod and dev", []core.DependencyGroup{core.Prod, core.Dev}, []string{"prod:@babel/core", "prod:is-odd", "dev:fast-decode-uri-component"}},
		{"group order kept", []core.DependencyGroup{core.Optional, core.Prod}, []string{"optional:fsevents", "prod:@babel/core", "prod:is-odd"}},
		{"duplicates", []core.DependencyGroup{core.Dev, core.Dev}, []string{"dev:fast-decode-uri-component"}},
		{"none", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := directNames(p.DependenciesByGroups(tt.groups...))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDependenciesByGroupsCarriesSpec(t *testing.T) {
	deps := testProject(t).DependenciesByGroups(core.Optional)
	if len(deps) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(deps))
	}
	if deps[0].Spec.Specifier != "^2.3.0" {
		t.Errorf("Specifier = %q", deps[0].Spec.Specifier)
	}
	if deps[0].Spec.Version.String() != "2.3.3" {
		t.Errorf("Version = %q", deps[0].Spec.Version.String())
	}
}

func TestRootProjectSnapshot(t *testing.T) {
	single := SingleProject(testProject(t))
	p, err := single.Project()
	if err != nil {
		t.Fatalf("Project() failed: %v", err)
	}
	if len(p.Dependencies) != 2 {
		t.Errorf("expected 2 dependencies, got %d", len(p.Dependencies))
	}

	multi := MultiProject(map[string]*ProjectSnapshot{
		".":            testProject(t),
		"packages/app": {},
	})
	_, err = multi.Project()
	if !errors.Is(err, core.ErrUnsupportedWorkspace) {
		t.Errorf("expected ErrUnsupportedWorkspace, got %v", err)
	}

	p, err = RootProjectSnapshot{}.Project()
	if err != nil {
		t.Fatalf("empty root: %v", err)
	}
	if len(p.DependenciesByGroups(core.AllGroups()...)) != 0 {
		t.Error("empty root should have no dependencies")
	}
}

func TestPackageSnapshotAllDependencies(t *testing.T) {
	regular := VerPeerDependency(PkgVerPeer{Version: mustNameVerPeer(t, "a@1.0.0").Suffix.Version})
	optional := VerPeerDependency(PkgVerPeer{Version: mustNameVerPeer(t, "a@2.0.0").Suffix.Version})

	s := &PackageSnapshot{
		Dependencies: map[PkgName]PackageSnapshotDependency{
			MustParsePkgName("a"): regular,
		},
		OptionalDependencies: map[PkgName]PackageSnapshotDependency{
			MustParsePkgName("a"): optional,
			MustParsePkgName("b"): optional,
		},
	}

	all := s.AllDependencies()
	if len(all) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(all))
	}
	if all[MustParsePkgName("a")].String() != "1.0.0" {
		t.Errorf("regular dependency should win, got %s", all[MustParsePkgName("a")])
	}
}

func TestLockfilePackageEntries(t *testing.T) {
	lock := &Lockfile{
		LockfileVersion: "9.0",
		Packages: map[string]*PackageSnapshot{
			"/is-odd@3.0.1":       {Resolution: PackageResolution{Integrity: "sha512-odd"}},
			"/is-number@6.0.0":    nil,
			"/@babel/core@7.24.0": {},
		},
	}

	entries, err := lock.PackageEntries()
	if err != nil {
		t.Fatalf("PackageEntries() failed: %v", err)
	}

	want := []string{"@babel/core@7.24.0", "is-number@6.0.0", "is-odd@3.0.1"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Path.PackageSpecifier.String() != want[i] {
			t.Errorf("[%d] = %q, want %q", i, e.Path.PackageSpecifier.String(), want[i])
		}
		if e.Snapshot == nil {
			t.Errorf("[%d] snapshot should never be nil", i)
		}
	}
	if entries[2].Snapshot.Resolution.Integrity != "sha512-odd" {
		t.Errorf("Integrity = %q", entries[2].Snapshot.Resolution.Integrity)
	}

	lock.Packages["not-a-path"] = &PackageSnapshot{}
	if _, err := lock.PackageEntries(); err == nil {
		t.Error("expected error for invalid key")
	}
}
