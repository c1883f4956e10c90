package lockfile

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/git-pkgs/nodelink/internal/core"
)

func TestParsePkgName(t *testing.T) {
	tests := []struct {
		input     string
		wantScope string
		wantBare  string
		wantErr   bool
	}{
		{"lodash", "", "lodash", false},
		{"lodash.get", "", "lodash.get", false},
		{"@babel/core", "babel", "core", false},
		{"@types/node", "types", "node", false},
		{"A-b_c~d", "", "A-b_c~d", false},

		{"", "", "", true},
		{"@scope", "", "", true},
		{"@/core", "", "", true},
		{"@scope/", "", "", true},
		{".hidden", "", "", true},
		{"_private", "", "", true},
		{"@scope/.x", "", "", true},
		{"has space", "", "", true},
		{"semi;colon", "", "", true},
		{"paren(s)", "", "", true},
		{"@scope/a)(b", "", "", true},
		{strings.Repeat("a", 215), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name, err := ParsePkgName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePkgName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				var nameErr *core.InvalidNameError
				if !errors.As(err, &nameErr) {
					t.Errorf("expected *core.InvalidNameError, got %T", err)
				}
				return
			}
			if name.Scope != tt.wantScope {
				t.Errorf("Scope = %q, want %q", name.Scope, tt.wantScope)
			}
			if name.Bare != tt.wantBare {
				t.Errorf("Bare = %q, want %q", name.Bare, tt.wantBare)
			}
			if name.String() != tt.input {
				t.Errorf("String() = %q, want %q", name.String(), tt.input)
			}
		})
	}
}

func TestPkgNameMapKeyJSON(t *testing.T) {
	in := map[PkgName]string{
		MustParsePkgName("@babel/core"): "7.24.0",
		MustParsePkgName("is-odd"):      "3.0.1",
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"@babel/core":"7.24.0","is-odd":"3.0.1"}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var out map[PkgName]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out[MustParsePkgName("@babel/core")] != "7.24.0" {
		t.Errorf("round trip lost scoped key: %v", out)
	}

	if err := json.Unmarshal([]byte(`{"bad name":"1.0.0"}`), &out); err == nil {
		t.Error("expected error for invalid key")
	}
}
