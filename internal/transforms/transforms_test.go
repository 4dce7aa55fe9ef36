package transforms_test

import (
	"bytes"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomster/embuild/internal/logging"
	"github.com/tomster/embuild/internal/transforms"
	"github.com/tomster/embuild/internal/tree"
)

func identity(fsys fs.FS, _ map[string]any) (fs.FS, error) { return fsys, nil }

func TestRegister(t *testing.T) {
	cases := []struct {
		note    string
		def     any
		wantErr bool
	}{
		{note: "func", def: identity},
		{note: "named func", def: transforms.Func(identity)},
		{note: "definition", def: transforms.Definition{Transform: identity}},
		{note: "definition pointer", def: &transforms.Definition{Transform: identity}},
		{note: "definition without transform", def: transforms.Definition{}, wantErr: true},
		{note: "nil pointer", def: (*transforms.Definition)(nil), wantErr: true},
		{note: "string", def: "nope", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			r := transforms.NewRegistry(nil)
			err := r.Register("my-addon", "shim", tc.def)
			if tc.wantErr {
				var cfgErr *transforms.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected configuration error, got %v", err)
				}
				if cfgErr.Addon != "my-addon" || cfgErr.Transform != "shim" {
					t.Fatalf("unexpected error %v", cfgErr)
				}
				if r.Has("shim") {
					t.Fatal("expected nothing registered")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !r.Has("shim") {
				t.Fatal("expected shim to be registered")
			}
		})
	}
}

func TestRegisterAllNil(t *testing.T) {
	r := transforms.NewRegistry(nil)
	var cfgErr *transforms.ConfigurationError
	if err := r.RegisterAll("broken", nil); !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRegisterOverride(t *testing.T) {
	var buf bytes.Buffer
	r := transforms.NewRegistry(logging.NewLogger(logging.Config{Format: logging.FormatJSON, Output: &buf}))

	if err := r.Register("a", "shim", identity); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("a", "other", identity); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("b", "shim", identity); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"shim", "other"}, r.Names()); diff != "" {
		t.Fatal("unexpected names (-want, +got)", diff)
	}
	if got := r.Snapshot()[0].Addon; got != "b" {
		t.Fatalf("expected the later addon to win, got %q", got)
	}
	if !strings.Contains(buf.String(), `\"b\"`) || !strings.Contains(buf.String(), "shim") {
		t.Fatalf("expected a warning naming addon and transform, got %q", buf.String())
	}
}

func TestApply(t *testing.T) {
	r := transforms.NewRegistry(nil)

	count := transforms.Definition{
		Transform: identity,
		ProcessOptions: func(path string, args map[string]any, current map[string]any) (map[string]any, error) {
			if args["fail"] == true {
				return nil, errors.New("boom")
			}
			next := map[string]any{"count": 1}
			if n, ok := current["count"].(int); ok {
				next["count"] = n + 1
			}
			return next, nil
		},
	}
	if err := r.Register("a", "count", count); err != nil {
		t.Fatal(err)
	}

	if err := r.Apply("vendor/a.js", []transforms.Ref{{Transformation: "count"}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Apply("vendor/b.js", []transforms.Ref{{Transformation: "count"}}); err != nil {
		t.Fatal(err)
	}

	t.Run("failing call changes nothing", func(t *testing.T) {
		err := r.Apply("vendor/c.js", []transforms.Ref{
			{Transformation: "count"},
			{Transformation: "count", Args: map[string]any{"fail": true}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if err := r.Apply("vendor/d.js", []transforms.Ref{{Transformation: "nope"}}); err == nil {
			t.Fatal("expected error")
		}
	})

	e := r.Snapshot()[0]
	if diff := cmp.Diff(map[string]any{"count": 2}, e.Options); diff != "" {
		t.Fatal("unexpected options (-want, +got)", diff)
	}
	if diff := cmp.Diff([]string{"vendor/a.js", "vendor/b.js"}, e.Files); diff != "" {
		t.Fatal("unexpected files (-want, +got)", diff)
	}
}

func TestAMD(t *testing.T) {
	r := transforms.NewRegistry(nil)
	if err := r.Register(transforms.BuiltinOwner, "amd", transforms.AMD); err != nil {
		t.Fatal(err)
	}

	if err := r.Apply("vendor/moment.js", []transforms.Ref{{Transformation: "amd"}}); err == nil {
		t.Fatal("expected an error without `as`")
	}
	if err := r.Apply("vendor/moment.js", []transforms.Ref{{Transformation: "amd", Args: map[string]any{"as": "moment"}}}); err != nil {
		t.Fatal(err)
	}

	e := r.Snapshot()[0]
	src := tree.MapFS(map[string]string{"vendor/moment.js": "window.moment = 1;"})
	out, err := e.Callback(src, e.Options)
	if err != nil {
		t.Fatal(err)
	}

	bs, err := fs.ReadFile(out, "vendor/moment.js")
	if err != nil {
		t.Fatal(err)
	}
	got := string(bs)
	if !strings.HasPrefix(got, "(function(define){\nwindow.moment = 1;\n") || !strings.Contains(got, `args.unshift("moment")`) {
		t.Fatalf("unexpected output:\n%s", got)
	}
}
