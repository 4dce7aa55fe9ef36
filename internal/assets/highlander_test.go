package assets_test

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/tomster/embuild/internal/assets"
)

type op struct {
	path    string
	prepend bool
}

func TestHighlander(t *testing.T) {
	cases := []struct {
		note     string
		strategy assets.Strategy
		ops      []op
		exp      []string
	}{
		{
			note:     "first wins, append twice keeps first position",
			strategy: assets.FirstOneWins,
			ops:      []op{{"a.js", false}, {"b.js", false}, {"a.js", false}},
			exp:      []string{"a.js", "b.js"},
		},
		{
			note:     "first wins, prepend moves to front",
			strategy: assets.FirstOneWins,
			ops:      []op{{"b.js", false}, {"a.js", false}, {"a.js", true}},
			exp:      []string{"a.js", "b.js"},
		},
		{
			note:     "first wins, prepend then append",
			strategy: assets.FirstOneWins,
			ops:      []op{{"b.js", false}, {"a.js", true}, {"a.js", false}},
			exp:      []string{"a.js", "b.js"},
		},
		{
			note:     "last wins, append twice moves to back",
			strategy: assets.LastOneWins,
			ops:      []op{{"a.css", false}, {"b.css", false}, {"a.css", false}},
			exp:      []string{"b.css", "a.css"},
		},
		{
			note:     "last wins, prepend of present file is a no-op",
			strategy: assets.LastOneWins,
			ops:      []op{{"b.css", false}, {"a.css", false}, {"a.css", true}},
			exp:      []string{"b.css", "a.css"},
		},
		{
			note:     "absent files are always inserted",
			strategy: assets.LastOneWins,
			ops:      []op{{"b.css", false}, {"a.css", true}, {"c.css", false}},
			exp:      []string{"a.css", "b.css", "c.css"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			r := assets.NewRegistry(nil)
			for _, o := range tc.ops {
				if tc.strategy == assets.FirstOneWins {
					r.AddScript(assets.VendorJS, o.path, o.prepend)
				} else {
					r.AddStyle(assets.VendorCSS, o.path, o.prepend)
				}
			}

			out := assets.VendorJS
			if tc.strategy == assets.LastOneWins {
				out = assets.VendorCSS
			}
			act, ok := r.Snapshot().Bundle(out)
			if !ok {
				t.Fatalf("bundle %s missing", out)
			}
			if diff := cmp.Diff(tc.exp, act); diff != "" {
				t.Fatal("unexpected bundle (-want, +got)", diff)
			}
		})
	}
}

func TestHighlanderProperties(t *testing.T) {
	paths := []string{"vendor/a/a.js", "vendor/b/b.js", "vendor/c/c.js", "vendor/d/d.js"}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		r := assets.NewRegistry(nil)

		var (
			seen    []string
			lasts   []string
			appends = true
		)
		for range n {
			p := rapid.SampledFrom(paths).Draw(t, "path")
			prepend := rapid.Bool().Draw(t, "prepend")

			r.AddScript(assets.VendorJS, p, prepend)
			r.AddTestStyle(p, prepend)

			if !slices.Contains(seen, p) {
				seen = append(seen, p)
			}
			lasts = slices.DeleteFunc(lasts, func(s string) bool { return s == p })
			lasts = append(lasts, p)
			appends = appends && !prepend
		}

		v := r.Snapshot()
		scripts, _ := v.Bundle(assets.VendorJS)

		for _, list := range [][]string{scripts, v.VendorTestStyles} {
			if len(list) != len(seen) {
				t.Fatalf("expected %d entries, got %v", len(seen), list)
			}
			for _, p := range seen {
				if !slices.Contains(list, p) {
					t.Fatalf("%s missing from %v", p, list)
				}
			}
		}

		if appends {
			if !slices.Equal(scripts, seen) {
				t.Fatalf("scripts: expected first occurrence order %v, got %v", seen, scripts)
			}
			if !slices.Equal(v.VendorTestStyles, lasts) {
				t.Fatalf("styles: expected last occurrence order %v, got %v", lasts, v.VendorTestStyles)
			}
		}
	})
}

func TestVendorCSSAlwaysExists(t *testing.T) {
	v := assets.NewRegistry(nil).Snapshot()
	files, ok := v.Bundle(assets.VendorCSS)
	if !ok {
		t.Fatal("expected vendor.css bundle")
	}
	if len(files) != 0 {
		t.Fatalf("expected empty bundle, got %v", files)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := assets.NewRegistry(nil)
	r.AddScript(assets.VendorJS, "vendor/a/a.js", false)

	v := r.Snapshot()
	v.Scripts[0].Files[0] = "mutated"

	files, _ := r.Snapshot().Bundle(assets.VendorJS)
	if files[0] != "vendor/a/a.js" {
		t.Fatalf("registry changed through its snapshot: %v", files)
	}
}
