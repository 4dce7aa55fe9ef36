package registry_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomster/embuild/internal/registry"
)

func TestRegistry(t *testing.T) {
	r := registry.Default()
	r.Add(registry.JS, ".ts", "js")

	if diff := cmp.Diff([]string{"js", "ts"}, r.ExtensionsForType(registry.JS)); diff != "" {
		t.Fatal("unexpected extensions (-want, +got)", diff)
	}

	cases := []struct {
		path string
		typ  string
		exp  bool
	}{
		{"vendor/a.js", registry.JS, true},
		{"vendor/a.ts", registry.JS, true},
		{"vendor/a.css", registry.JS, false},
		{"vendor/a.css", registry.CSS, true},
		{"app/templates/a.hbs", registry.Template, true},
		{"vendor/js", registry.JS, false},
		{"vendor/a.js", "unknown", false},
	}

	for _, tc := range cases {
		if act := r.IsType(tc.path, tc.typ); act != tc.exp {
			t.Errorf("IsType(%q, %q): expected %v, got %v", tc.path, tc.typ, tc.exp, act)
		}
	}
}
