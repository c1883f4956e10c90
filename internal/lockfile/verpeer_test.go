package lockfile

import (
	"regexp"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
)

func mustNameVerPeer(t *testing.T, s string) PkgNameVerPeer {
	t.Helper()
	p, err := ParsePkgNameVerPeer(s)
	if err != nil {
		t.Fatalf("ParsePkgNameVerPeer(%q): %v", s, err)
	}
	return p
}

func TestParsePkgVerPeer(t *testing.T) {
	tests := []struct {
		input       string
		wantVersion string
		wantPeer    string
		wantErr     bool
	}{
		{"17.0.2", "17.0.2", "", false},
		{"1.0.0-beta.1", "1.0.0-beta.1", "", false},
		{"1.0.0(react@17.0.2)", "1.0.0", "(react@17.0.2)", false},
		{"1.0.0(react-dom@17.0.2)(react@17.0.2)", "1.0.0", "(react-dom@17.0.2)(react@17.0.2)", false},
		{"1.0.0(a@1.0.0(b@2.0.0))", "1.0.0", "(a@1.0.0(b@2.0.0))", false},

		{"", "", "", true},
		{"1.0", "", "", true},
		{"v1.0.0", "", "", true},
		{"1.0.0(react@17.0.2", "", "", true},
		{"1.0.0(react@17.0.2)x", "", "", true},
		{"1.0.0)(", "", "", true},
		{"1.0.0()", "", "", true},
		{"1.0.0(react)", "", "", true},
		{"1.0.0(a@1.0.0_b@2.0.0)", "", "", true},
		{"1.0.0(react@17.0.2)(", "", "", true},
		{"1.0.0(react@17.0.2)(react-dom@17.0.2(react@x))", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePkgVerPeer(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePkgVerPeer(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Version.String() != tt.wantVersion {
				t.Errorf("Version = %q, want %q", p.Version.String(), tt.wantVersion)
			}
			if p.Peer != tt.wantPeer {
				t.Errorf("Peer = %q, want %q", p.Peer, tt.wantPeer)
			}
			if p.String() != tt.input {
				t.Errorf("String() = %q, want %q", p.String(), tt.input)
			}
		})
	}
}

func TestParsePkgNameVerPeer(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantVer  string
		wantErr  bool
	}{
		{"is-odd@3.0.1", "is-odd", "3.0.1", false},
		{"@babel/core@7.24.0", "@babel/core", "7.24.0", false},
		{"react-dom@17.0.2(react@17.0.2)", "react-dom", "17.0.2(react@17.0.2)", false},
		{"@types/a@1.0.0(@types/b@1.0.0)", "@types/a", "1.0.0(@types/b@1.0.0)", false},

		{"is-odd", "", "", true},
		{"@babel/core", "", "", true},
		{"@1.0.0", "", "", true},
		{"is-odd@latest", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePkgNameVerPeer(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePkgNameVerPeer(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Name.String() != tt.wantName {
				t.Errorf("Name = %q, want %q", p.Name.String(), tt.wantName)
			}
			if p.Suffix.String() != tt.wantVer {
				t.Errorf("Suffix = %q, want %q", p.Suffix.String(), tt.wantVer)
			}
			if p.String() != tt.input {
				t.Errorf("String() = %q, want %q", p.String(), tt.input)
			}
		})
	}
}

func TestVirtualStoreName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"is-odd@3.0.1", "is-odd@3.0.1"},
		{"@babel/core@7.24.0", "@babel+core@7.24.0"},
		{"react-dom@17.0.2(react@17.0.2)", "react-dom@17.0.2_react@17.0.2"},
		{"a@1.0.0(b@1.0.0)(c@2.0.0)", "a@1.0.0_b@1.0.0_c@2.0.0"},
		{"@types/a@1.0.0(@types/b@1.0.0)", "@types+a@1.0.0_@types+b@1.0.0"},
		{"pkg@1.0.0-rc.1+build.5", "pkg@1.0.0-rc.1+build.5"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := mustNameVerPeer(t, tt.input).VirtualStoreName()
			if got != tt.want {
				t.Errorf("VirtualStoreName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVirtualStoreNameDeterministic(t *testing.T) {
	inputs := []string{
		"is-odd@3.0.1",
		"react-dom@17.0.2(react@17.0.2)",
		"a@1.0.0(b@1.0.0(c@1.0.0))",
		"@scope/" + strings.Repeat("x", 150) + "@1.0.0",
	}

	for _, input := range inputs {
		first := mustNameVerPeer(t, input).VirtualStoreName()
		for i := 0; i < 5; i++ {
			if got := mustNameVerPeer(t, input).VirtualStoreName(); got != first {
				t.Errorf("VirtualStoreName(%q) changed between calls: %q vs %q", input, first, got)
			}
		}
	}
}

func TestVirtualStoreNameDiffers(t *testing.T) {
	name := MustParsePkgName("react-dom")
	v1 := semver.MustParse("17.0.2")
	v2 := semver.MustParse("17.0.3")

	units := []PkgNameVerPeer{
		NewPkgNameVerPeer(name, PkgVerPeer{Version: v1}),
		NewPkgNameVerPeer(name, PkgVerPeer{Version: v2}),
		NewPkgNameVerPeer(name, PkgVerPeer{Version: v1, Peer: "(react@17.0.2)"}),
		NewPkgNameVerPeer(name, PkgVerPeer{Version: v1, Peer: "(react@18.0.0)"}),
		NewPkgNameVerPeer(name, PkgVerPeer{Version: v1, Peer: "(react@17.0.2(scheduler@1.0.0))"}),
		NewPkgNameVerPeer(name, PkgVerPeer{Version: v1, Peer: "(react@17.0.2)(scheduler@1.0.0)"}),
		NewPkgNameVerPeer(name, PkgVerPeer{Version: v1, Peer: "(react@17.0.2_scheduler@1.0.0)"}),
		NewPkgNameVerPeer(name, PkgVerPeer{Version: v1, Peer: "(react@17.0.2)scheduler@1.0.0"}),
	}

	seen := make(map[string]string)
	for _, u := range units {
		vsn := u.VirtualStoreName()
		if prev, ok := seen[vsn]; ok {
			t.Errorf("%s and %s share virtual store name %q", prev, u, vsn)
		}
		seen[vsn] = u.String()
	}
}

// Peer groups must be name@version units, so flattening them cannot merge
// two groups into one.
func TestParseRejectsAmbiguousPeers(t *testing.T) {
	split := mustNameVerPeer(t, "foo@1.0.0(a@1.0.0)(b@2.0.0)")
	if got := split.VirtualStoreName(); got != "foo@1.0.0_a@1.0.0_b@2.0.0" {
		t.Errorf("VirtualStoreName() = %q", got)
	}
	if _, err := ParsePkgNameVerPeer("foo@1.0.0(a@1.0.0_b@2.0.0)"); err == nil {
		t.Error("expected error for a peer group that is not name@version")
	}
}

var hashSuffix = regexp.MustCompile(`_[0-9a-f]{32}$`)

func TestVirtualStoreNameHashed(t *testing.T) {
	nested := mustNameVerPeer(t, "a@1.0.0(b@1.0.0(c@1.0.0))").VirtualStoreName()
	if !strings.HasPrefix(nested, "a@1.0.0_b@1.0.0_c@1.0.0_") {
		t.Errorf("nested name = %q, want flattened prefix", nested)
	}
	if !hashSuffix.MatchString(nested) {
		t.Errorf("nested name = %q, want hash suffix", nested)
	}

	long := mustNameVerPeer(t, strings.Repeat("x", 200)+"@1.0.0").VirtualStoreName()
	if len(long) != maxVirtualStoreNameLength {
		t.Errorf("len = %d, want %d", len(long), maxVirtualStoreNameLength)
	}
	if !hashSuffix.MatchString(long) {
		t.Errorf("long name = %q, want hash suffix", long)
	}

	short := mustNameVerPeer(t, "is-odd@3.0.1").VirtualStoreName()
	if hashSuffix.MatchString(short) {
		t.Errorf("short name %q should not be hashed", short)
	}
}

func TestPkgNameVerPeerPURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"is-odd@3.0.1", "pkg:npm/is-odd@3.0.1"},
		{"@babel/core@7.24.0", "pkg:npm/%40babel/core@7.24.0"},
		{"react-dom@17.0.2(react@17.0.2)", "pkg:npm/react-dom@17.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := mustNameVerPeer(t, tt.input).PURL(); got != tt.want {
				t.Errorf("PURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPkgNameVerPeerEqual(t *testing.T) {
	a := mustNameVerPeer(t, "react-dom@17.0.2(react@17.0.2)")
	b := mustNameVerPeer(t, "react-dom@17.0.2(react@17.0.2)")
	c := mustNameVerPeer(t, "react-dom@17.0.2")

	if !a.Equal(b) {
		t.Error("identical units should be equal")
	}
	if a.Equal(c) {
		t.Error("units with different peers should differ")
	}
}
