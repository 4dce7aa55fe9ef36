package builder_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomster/embuild/internal/test/tempfs"
	"github.com/tomster/embuild/pkg/builder"
)

var project = map[string]string{
	"embuild.yaml": `
name: my-app
auto_run: false
sourcemaps: {enabled: false}
vendor_files:
  vendor/shim.js: {}
`,
	"embuild.production.yaml": `
environment: production
minify_css: {enabled: false}
`,
	"app/app.js":         "app",
	"app/index.html":     `<base href="{{rootURL}}">`,
	"app/styles/app.css": "body {}",
	"vendor/shim.js":     "shim",
}

type hooks struct {
	calls []string
}

func (*hooks) Name() string { return "hooks" }
func (*hooks) Root() string { return "" }

func (h *hooks) PreBuild(context.Context) error {
	h.calls = append(h.calls, "preBuild")
	return nil
}

func (h *hooks) OutputReady(_ context.Context, r builder.BuildResult) error {
	h.calls = append(h.calls, "outputReady "+filepath.Base(r.Directory))
	return nil
}

func read(t *testing.T, dir string) map[string]string {
	t.Helper()
	got := map[string]string{}
	if err := fs.WalkDir(os.DirFS(dir), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		bs, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
		got[p] = string(bs)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	return got
}

func TestBuild(t *testing.T) {
	tempfs.WithTempFS(t, project, func(t *testing.T, root string) {
		cfg, err := builder.LoadConfig(filepath.Join(root, "embuild.yaml"), filepath.Join(root, "embuild.production.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Root != root {
			t.Fatalf("expected root %s, got %s", root, cfg.Root)
		}

		h := &hooks{}
		p, err := builder.Load(builder.Options{Config: cfg, Addons: []builder.Addon{h}})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = p.Cleanup() })

		if p.Environment() != "production" {
			t.Fatalf("expected production, got %s", p.Environment())
		}

		result, err := p.Build(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if result.Directory != filepath.Join(root, "dist") {
			t.Fatalf("unexpected output directory %s", result.Directory)
		}

		exp := map[string]string{
			"index.html":        `<base href="/">`,
			"assets/my-app.js":  "app\n",
			"assets/my-app.css": "body {}\n",
			"assets/vendor.js":  "shim\n",
			"assets/vendor.css": "",
		}
		if diff := cmp.Diff(exp, read(t, result.Directory)); diff != "" {
			t.Fatal("unexpected build output (-want, +got)", diff)
		}

		// rebuilds read the inputs again
		if err := os.WriteFile(filepath.Join(root, "app", "router.js"), []byte("router"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Build(context.Background()); err != nil {
			t.Fatal(err)
		}
		bs, err := os.ReadFile(filepath.Join(result.Directory, "assets", "my-app.js"))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff("app\nrouter\n", string(bs)); diff != "" {
			t.Fatal("unexpected rebuilt script (-want, +got)", diff)
		}

		if diff := cmp.Diff([]string{"preBuild", "outputReady dist", "preBuild", "outputReady dist"}, h.calls); diff != "" {
			t.Fatal("unexpected hook calls (-want, +got)", diff)
		}
	})
}

func TestTree(t *testing.T) {
	tempfs.WithTempFS(t, project, func(t *testing.T, root string) {
		cfg, err := builder.LoadConfig(filepath.Join(root, "embuild.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		p, err := builder.Load(builder.Options{Config: cfg, Environment: "production"})
		if err != nil {
			t.Fatal(err)
		}

		out, err := p.Tree()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fs.Stat(out, "assets/vendor.js"); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(p.OutputPath()); !os.IsNotExist(err) {
			t.Fatalf("expected nothing to be written, got %v", err)
		}
	})
}

type failing struct{}

func (failing) Name() string { return "failing" }
func (failing) Root() string { return "" }

func (failing) PostprocessTree(typ string, t fs.FS) (fs.FS, error) {
	if typ == "all" {
		return nil, errors.New("boom")
	}
	return t, nil
}

func TestBuildError(t *testing.T) {
	tempfs.WithTempFS(t, project, func(t *testing.T, root string) {
		cfg, err := builder.LoadConfig(filepath.Join(root, "embuild.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		p, err := builder.Load(builder.Options{Config: cfg, Addons: []builder.Addon{failing{}}})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = p.Cleanup() })

		_, err = p.Build(context.Background())

		var berr *builder.Error
		if !errors.As(err, &berr) || berr.Stage != "build" {
			t.Fatalf("expected a build stage error, got %v", err)
		}
	})
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := builder.LoadConfig(); err == nil {
		t.Fatal("expected error")
	}
	if _, err := builder.Load(builder.Options{}); err == nil {
		t.Fatal("expected error")
	}
}
