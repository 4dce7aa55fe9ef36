package builder_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomster/embuild/internal/addon"
	"github.com/tomster/embuild/internal/builder"
	"github.com/tomster/embuild/internal/tree"
)

type project struct {
	addons []addon.Addon
	out    fs.FS
	err    error
	calls  *[]string
}

func (p *project) ToTree(...fs.FS) (fs.FS, error) {
	*p.calls = append(*p.calls, "build")
	return p.out, p.err
}

func (p *project) Addons() []addon.Addon { return p.addons }

type hookAddon struct {
	calls *[]string
	fail  string

	postBuild   []addon.BuildResult
	outputReady []addon.BuildResult
	buildErrors []error
}

var errHook = errors.New("hook failed")

func (*hookAddon) Name() string { return "test-addon" }
func (*hookAddon) Root() string { return "" }

func (a *hookAddon) hook(name string) error {
	*a.calls = append(*a.calls, name)
	if a.fail == name {
		return errHook
	}
	return nil
}

func (a *hookAddon) PreBuild(context.Context) error { return a.hook("preBuild") }

func (a *hookAddon) PostBuild(_ context.Context, r addon.BuildResult) error {
	a.postBuild = append(a.postBuild, r)
	return a.hook("postBuild")
}

func (a *hookAddon) OutputReady(_ context.Context, r addon.BuildResult) error {
	a.outputReady = append(a.outputReady, r)
	return a.hook("outputReady")
}

func (a *hookAddon) BuildError(err error) {
	a.buildErrors = append(a.buildErrors, err)
	*a.calls = append(*a.calls, "buildError")
}

func setup(t *testing.T, fail string) (*builder.Builder, *project, *hookAddon) {
	t.Helper()

	calls := []string{}
	ad := &hookAddon{calls: &calls, fail: fail}
	p := &project{
		addons: []addon.Addon{ad},
		out:    tree.MapFS(map[string]string{"index.html": "index", "assets/app.js": "app"}),
		calls:  &calls,
	}
	if fail == "build" {
		p.err = errHook
	}

	root := t.TempDir()
	b := builder.New(p).
		WithRoot(root).
		WithOutputPath("dist").
		WithTempDir(filepath.Join(root, "tmp"))
	t.Cleanup(func() { _ = b.Cleanup() })

	return b, p, ad
}

func TestHookOrder(t *testing.T) {
	cases := []struct {
		note  string
		fail  string
		exp   []string
		stage string
	}{
		{
			note: "success",
			exp:  []string{"preBuild", "build", "postBuild", "outputReady"},
		},
		{
			note:  "preBuild fails",
			fail:  "preBuild",
			exp:   []string{"preBuild", "buildError"},
			stage: builder.StagePreBuild,
		},
		{
			note:  "build fails",
			fail:  "build",
			exp:   []string{"preBuild", "build", "buildError"},
			stage: builder.StageBuild,
		},
		{
			note:  "postBuild fails",
			fail:  "postBuild",
			exp:   []string{"preBuild", "build", "postBuild", "buildError"},
			stage: builder.StagePostBuild,
		},
		{
			note:  "outputReady fails",
			fail:  "outputReady",
			exp:   []string{"preBuild", "build", "postBuild", "outputReady", "buildError"},
			stage: builder.StageOutputReady,
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			b, p, ad := setup(t, tc.fail)

			_, err := b.Build(context.Background())

			if diff := cmp.Diff(tc.exp, *p.calls); diff != "" {
				t.Fatal("unexpected hook calls (-want, +got)", diff)
			}

			if tc.stage == "" {
				if err != nil {
					t.Fatal(err)
				}
				return
			}

			var berr *builder.Error
			if !errors.As(err, &berr) {
				t.Fatalf("expected a builder error, got %v", err)
			}
			if berr.Stage != tc.stage {
				t.Fatalf("expected stage %s, got %s", tc.stage, berr.Stage)
			}
			if len(ad.buildErrors) != 1 || ad.buildErrors[0] != errHook {
				t.Fatalf("expected BuildError to receive the failing error, got %v", ad.buildErrors)
			}
		})
	}
}

func TestBuildResults(t *testing.T) {
	b, _, ad := setup(t, "")

	result, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(ad.postBuild) != 1 {
		t.Fatalf("expected one postBuild call, got %d", len(ad.postBuild))
	}
	tmp := ad.postBuild[0].Directory
	if tmp == b.OutputPath() {
		t.Fatal("expected postBuild to see the temporary directory")
	}
	if bs, err := os.ReadFile(filepath.Join(tmp, "assets", "app.js")); err != nil || string(bs) != "app" {
		t.Fatalf("expected the build in the temporary directory, got %q, %v", bs, err)
	}

	exp := addon.BuildResult{
		Directory:     b.OutputPath(),
		OutputChanges: []string{"assets/app.js", "index.html"},
	}
	if diff := cmp.Diff([]addon.BuildResult{exp}, ad.outputReady); diff != "" {
		t.Fatal("unexpected outputReady result (-want, +got)", diff)
	}
	if diff := cmp.Diff(exp, result); diff != "" {
		t.Fatal("unexpected build result (-want, +got)", diff)
	}

	if bs, err := os.ReadFile(filepath.Join(b.OutputPath(), "index.html")); err != nil || string(bs) != "index" {
		t.Fatalf("expected index.html in the output path, got %q, %v", bs, err)
	}
}

func TestRebuildReplacesOutput(t *testing.T) {
	b, p, _ := setup(t, "")

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.out = tree.MapFS(map[string]string{"index.html": "v2"})
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, err := tree.Paths(os.DirFS(b.OutputPath()))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"index.html"}, got); diff != "" {
		t.Fatal("unexpected output files (-want, +got)", diff)
	}
}

func TestCopyToOutputPathCreatesDeepPaths(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "files"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "files", "foo.txt"), []byte("foo"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "some", "path", "that", "does", "not", "exist")
	b := builder.New(&project{calls: &[]string{}}).WithOutputPath(out)

	if _, err := b.CopyToOutputPath(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(out, "files", "foo.txt")); err != nil {
		t.Fatal(err)
	}
}

func TestCanDeleteOutputPath(t *testing.T) {
	root := filepath.Join(t.TempDir(), "project")
	b := builder.New(&project{calls: &[]string{}}).WithRoot(root)

	cases := []struct {
		note string
		path string
		exp  bool
	}{
		{
			note: "filesystem root",
			path: string(filepath.Separator),
		},
		{
			note: "project root",
			path: ".",
		},
		{
			note: "parent directory",
			path: filepath.Join("..", ".."),
		},
		{
			note: "absolute project root",
			path: root,
		},
		{
			note: "root path as a prefix",
			path: root[:len(root)-1],
			exp:  true,
		},
		{
			note: "dist",
			path: "dist",
			exp:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			if got := b.CanDeleteOutputPath(tc.path); got != tc.exp {
				t.Fatalf("expected %v, got %v", tc.exp, got)
			}
		})
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	b, _, ad := setup(t, "")

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	tmp := ad.postBuild[0].Directory

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = b.Cleanup()
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("expected the temporary directory to be removed, got %v", err)
	}
	if _, err := b.Build(context.Background()); err == nil {
		t.Fatal("expected build after cleanup to fail")
	}
}
